package testutils

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/datar-psa/evalharness/llm"
)

// FakeClient is a scripted llm.Client for unit tests. Handler receives every
// request; recorded requests are available via Calls.
type FakeClient struct {
	Handler func(req llm.Request) (*llm.Response, error)

	mu    sync.Mutex
	calls []llm.Request
}

// Complete implements llm.Client.
func (f *FakeClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.Handler == nil {
		return TextResponse(""), nil
	}
	return f.Handler(req)
}

// Calls returns a copy of the recorded requests.
func (f *FakeClient) Calls() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]llm.Request, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns the number of completions issued.
func (f *FakeClient) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// TextResponse builds a plain-text response.
func TextResponse(text string) *llm.Response {
	return &llm.Response{Text: text}
}

// StructuredResponse builds a response carrying both the JSON text and the
// parsed structured value, as providers that honor a response schema do.
func StructuredResponse(value map[string]any) *llm.Response {
	raw, err := json.Marshal(value)
	if err != nil {
		panic(err)
	}
	return &llm.Response{Text: string(raw), Structured: value}
}

// StaticText returns a handler that always answers with text.
func StaticText(text string) func(llm.Request) (*llm.Response, error) {
	return func(llm.Request) (*llm.Response, error) {
		return TextResponse(text), nil
	}
}

// AlwaysFail returns a handler that always fails with err.
func AlwaysFail(err error) func(llm.Request) (*llm.Response, error) {
	return func(llm.Request) (*llm.Response, error) {
		return nil, err
	}
}

// NewFakeRouter registers a fresh FakeClient under provider and returns both.
func NewFakeRouter(provider string, handler func(llm.Request) (*llm.Response, error)) (*llm.Router, *FakeClient) {
	client := &FakeClient{Handler: handler}
	router := llm.NewRouter()
	router.Register(provider, client)
	return router, client
}

var _ llm.Client = (*FakeClient)(nil)
