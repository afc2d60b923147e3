package gemini_test

import (
	"context"
	"strings"
	"testing"

	"github.com/datar-psa/evalharness/internal/testutils"
	"github.com/datar-psa/evalharness/llm"
)

const integrationModel = "publishers/google/models/gemini-2.5-flash"

// TestComplete_Integration exercises the Gemini client with real API calls,
// cached through hypert. Run with UPDATE_TESTS=true and valid Google Cloud
// credentials to refresh the cached responses.
func TestComplete_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	client := testutils.NewGeminiClient(t, testutils.DefaultGeminiTestConfig("complete"))

	resp, err := client.Complete(ctx, llm.Request{
		Model:        integrationModel,
		Prompt:       "What is the capital of France? Answer with just the city name.",
		SystemPrompt: "You are a helpful assistant.",
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !strings.Contains(resp.Text, "Paris") {
		t.Errorf("response = %q, want it to contain Paris", resp.Text)
	}
	if resp.Usage.CompletionTokens == 0 {
		t.Error("expected non-zero completion token usage")
	}
}

func TestCompleteStructured_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	client := testutils.NewGeminiClient(t, testutils.DefaultGeminiTestConfig("structured"))

	resp, err := client.Complete(ctx, llm.Request{
		Model:  integrationModel,
		Prompt: "Name the capital of France.",
		ResponseSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"capital": map[string]any{"type": "string"},
			},
			"required": []any{"capital"},
		},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Structured == nil {
		t.Fatalf("expected structured output, got raw text %q", resp.Text)
	}
	if capital, _ := resp.Structured["capital"].(string); capital != "Paris" {
		t.Errorf("capital = %q, want Paris", capital)
	}
}
