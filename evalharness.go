// Package evalharness runs declarative LLM evaluations against a matrix of
// models and keeps an append-only history of the results.
package evalharness

import (
	"context"
	"log/slog"

	"google.golang.org/genai"

	"github.com/datar-psa/evalharness/api"
	"github.com/datar-psa/evalharness/llm"
	"github.com/datar-psa/evalharness/llm/gemini"
	"github.com/datar-psa/evalharness/llm/openai"
	"github.com/datar-psa/evalharness/orchestrator"
	"github.com/datar-psa/evalharness/retry"
	"github.com/datar-psa/evalharness/store"
	"github.com/datar-psa/evalharness/strategy"
)

type EvaluationInstance = api.EvaluationInstance
type EvaluationData = api.EvaluationData
type Evaluation = api.Evaluation
type ResultRecord = api.ResultRecord
type ResultKey = api.ResultKey
type Judge = strategy.Judge
type RunRequest = orchestrator.RunRequest
type Summary = orchestrator.Summary

// Harness ties together the strategy registry, the provider router, the judge
// model and the result store.
type Harness struct {
	store *store.Store
	orch  *orchestrator.Orchestrator
}

// HarnessOptions configures Harness creation
type HarnessOptions struct {
	store    *store.Store
	clients  *llm.Router
	registry *strategy.Registry
	judge    strategy.Judge
	policy   *retry.Policy
	workers  int
	logger   *slog.Logger
}

// WithStore sets the result store; required.
func WithStore(s *store.Store) func(*HarnessOptions) {
	return func(opts *HarnessOptions) {
		opts.store = s
	}
}

// WithClients sets the provider router.
func WithClients(clients *llm.Router) func(*HarnessOptions) {
	return func(opts *HarnessOptions) {
		opts.clients = clients
	}
}

// WithRegistry replaces the built-in strategy registry.
func WithRegistry(registry *strategy.Registry) func(*HarnessOptions) {
	return func(opts *HarnessOptions) {
		opts.registry = registry
	}
}

// WithJudge names the model that adjudicates semantic criteria.
func WithJudge(provider, model string) func(*HarnessOptions) {
	return func(opts *HarnessOptions) {
		opts.judge = strategy.Judge{Provider: provider, Model: model}
	}
}

// WithRetryPolicy overrides the retry policy for model calls.
func WithRetryPolicy(policy retry.Policy) func(*HarnessOptions) {
	return func(opts *HarnessOptions) {
		opts.policy = &policy
	}
}

// WithWorkers bounds how many (instance, model) pairs run concurrently.
func WithWorkers(workers int) func(*HarnessOptions) {
	return func(opts *HarnessOptions) {
		opts.workers = workers
	}
}

// WithLogger sets the logger for run and store events.
func WithLogger(logger *slog.Logger) func(*HarnessOptions) {
	return func(opts *HarnessOptions) {
		opts.logger = logger
	}
}

// WithOpenAI registers an OpenAI-compatible client under the "openai" provider.
func WithOpenAI(apiKey string) func(*HarnessOptions) {
	return func(opts *HarnessOptions) {
		if opts.clients == nil {
			opts.clients = llm.NewRouter()
		}
		opts.clients.Register(llm.ProviderOpenAI, openai.NewClient(apiKey))
	}
}

// WithGemini registers a Gemini client under the "gemini" provider.
func WithGemini(client *genai.Client) func(*HarnessOptions) {
	return func(opts *HarnessOptions) {
		if opts.clients == nil {
			opts.clients = llm.NewRouter()
		}
		opts.clients.Register(llm.ProviderGemini, gemini.NewClient(client))
	}
}

// NewHarness creates a Harness using functional options.
func NewHarness(opts ...func(*HarnessOptions)) (*Harness, error) {
	options := &HarnessOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if options.clients == nil {
		options.clients = llm.NewRouter()
	}

	env := strategy.DefaultEnv(options.clients)
	env.Judge = options.judge
	if options.policy != nil {
		env.Retry = *options.policy
	}

	orch, err := orchestrator.New(orchestrator.Options{
		Registry: options.registry,
		Store:    options.store,
		Env:      env,
		Workers:  options.workers,
		Logger:   options.logger,
	})
	if err != nil {
		return nil, err
	}

	return &Harness{store: options.store, orch: orch}, nil
}

// Run executes every (instance, provider, model) pair and stores the results.
func (h *Harness) Run(ctx context.Context, req RunRequest) (*Summary, error) {
	return h.orch.Run(ctx, req)
}

// Results returns the latest stored record for every distinct
// (name, type, provider, model) key.
func (h *Harness) Results() ([]ResultRecord, error) {
	return h.store.LatestAll()
}
