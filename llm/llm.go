// Package llm defines the narrow client contract the evaluation engine
// depends on for chat completions, together with the transient-vs-permanent
// error classification the retry policy needs. Provider implementations live
// in the gemini and openai subpackages.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Request describes one chat completion.
type Request struct {
	// Model is the provider-specific model name
	Model string
	// Prompt is the user message
	Prompt string
	// SystemPrompt is optional; providers fall back to their default persona
	SystemPrompt string
	// ResponseSchema, when non-nil, constrains the model to emit structured
	// output conforming to this JSON schema. Providers that cannot honor it
	// still return raw text; parsing is the caller's responsibility.
	ResponseSchema map[string]any
	// Temperature overrides the provider default when non-nil
	Temperature *float32
	// MaxTokens caps completion length when non-nil
	MaxTokens *int32
}

// Usage reports token consumption for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Response is the outcome of one completion.
type Response struct {
	// Text is the raw textual output; always populated
	Text string
	// Structured is the parsed output when a ResponseSchema was honored and
	// the provider returned syntactically valid JSON; nil otherwise
	Structured map[string]any
	Usage      Usage
	Duration   time.Duration
}

// Client issues chat completions against one provider.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// ClassifiedError wraps a provider error with its retry classification.
type ClassifiedError struct {
	Err       error
	Transient bool
}

func (e *ClassifiedError) Error() string {
	if e.Transient {
		return fmt.Sprintf("transient: %v", e.Err)
	}
	return fmt.Sprintf("permanent: %v", e.Err)
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

// Transient marks an error as retriable (timeouts, rate limits, 5xx).
func Transient(err error) error {
	return &ClassifiedError{Err: err, Transient: true}
}

// Permanent marks an error as not retriable (auth failures, invalid requests).
func Permanent(err error) error {
	return &ClassifiedError{Err: err, Transient: false}
}

// IsTransient reports whether err should be retried. Unclassified errors and
// context cancellation are not retried.
func IsTransient(err error) bool {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Transient
	}
	return false
}
