// Package gemini implements the llm.Client contract on top of
// google.golang.org/genai.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/datar-psa/evalharness/llm"
)

// Client wraps a genai.Client to implement llm.Client.
type Client struct {
	client *genai.Client
}

// NewClient creates a Gemini-backed client.
// client: genai.Client from google.golang.org/genai
func NewClient(client *genai.Client) *Client {
	return &Client{client: client}
}

// Complete implements llm.Client.Complete. When req.ResponseSchema is set the
// model is constrained to emit JSON conforming to the schema; the parsed value
// is returned in Response.Structured alongside the raw text.
func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	content := &genai.Content{
		Role: "user",
		Parts: []*genai.Part{
			{Text: req.Prompt},
		},
	}

	config := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}
	if req.Temperature != nil {
		config.Temperature = req.Temperature
	}
	if req.MaxTokens != nil {
		config.MaxOutputTokens = *req.MaxTokens
	}
	if req.ResponseSchema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseJsonSchema = req.ResponseSchema
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, req.Model, []*genai.Content{content}, config)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to generate content: %w", err))
	}

	if len(resp.Candidates) == 0 {
		return nil, llm.Transient(errors.New("no candidates returned"))
	}
	if resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, llm.Transient(errors.New("no parts in response"))
	}

	out := &llm.Response{
		Text:     resp.Candidates[0].Content.Parts[0].Text,
		Duration: time.Since(start),
	}
	if resp.UsageMetadata != nil {
		out.Usage = llm.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}

	if req.ResponseSchema != nil {
		var structured map[string]any
		if err := json.Unmarshal([]byte(out.Text), &structured); err == nil {
			out.Structured = structured
		}
	}

	return out, nil
}

// classify maps genai errors onto the retry taxonomy: rate limits, timeouts
// and server errors are transient; client errors are permanent.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 408 || apiErr.Code == 429 || apiErr.Code >= 500:
			return llm.Transient(err)
		case apiErr.Code >= 400:
			return llm.Permanent(err)
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	// Network-level failures without a status code are assumed retriable.
	return llm.Transient(err)
}

var _ llm.Client = (*Client)(nil)
