// Package openai implements the llm.Client contract on top of
// github.com/sashabaranov/go-openai. The same client also serves
// OpenAI-compatible endpoints (Azure OpenAI, Ollama) via a custom base URL.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/datar-psa/evalharness/llm"
)

// Client wraps an openai.Client to implement llm.Client.
type Client struct {
	client *openai.Client
}

// NewClient creates an OpenAI-backed client with the given API key.
func NewClient(apiKey string) *Client {
	return &Client{client: openai.NewClient(apiKey)}
}

// NewClientWithConfig creates a client from a full configuration, for
// OpenAI-compatible endpoints such as a local Ollama server.
func NewClientWithConfig(config openai.ClientConfig) *Client {
	return &Client{client: openai.NewClientWithConfig(config)}
}

// rawSchema adapts a JSON schema document to the json.Marshaler the
// go-openai response format expects.
type rawSchema map[string]any

func (s rawSchema) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any(s))
}

// Complete implements llm.Client.Complete.
func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	messages := []openai.ChatCompletionMessage{}
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
	}
	if req.Temperature != nil {
		chatReq.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		chatReq.MaxCompletionTokens = int(*req.MaxTokens)
	}
	if req.ResponseSchema != nil {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "response",
				Schema: rawSchema(req.ResponseSchema),
				Strict: false,
			},
		}
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, classify(fmt.Errorf("chat completion failed: %w", err))
	}
	if len(resp.Choices) == 0 {
		return nil, llm.Transient(errors.New("no choices returned"))
	}

	out := &llm.Response{
		Text: resp.Choices[0].Message.Content,
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
		Duration: time.Since(start),
	}

	if req.ResponseSchema != nil {
		var structured map[string]any
		if err := json.Unmarshal([]byte(out.Text), &structured); err == nil {
			out.Structured = structured
		}
	}

	return out, nil
}

// classify maps go-openai errors onto the retry taxonomy.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return byStatus(err, apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return byStatus(err, reqErr.HTTPStatusCode)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return llm.Transient(err)
}

func byStatus(err error, status int) error {
	switch {
	case status == 408 || status == 429 || status >= 500:
		return llm.Transient(err)
	case status >= 400:
		return llm.Permanent(err)
	default:
		return llm.Transient(err)
	}
}

var _ llm.Client = (*Client)(nil)
