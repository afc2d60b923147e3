// Package orchestrator fans evaluation instances out across a model matrix.
// Every (instance, provider, model) pair runs independently: a failure in one
// pair is recorded as an error result and never aborts the rest of the run.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/datar-psa/evalharness/api"
	"github.com/datar-psa/evalharness/store"
	"github.com/datar-psa/evalharness/strategy"
)

// Options configures an orchestrator.
type Options struct {
	// Registry resolves declared evaluation types; defaults to the built-ins
	Registry *strategy.Registry
	// Store receives every finalized result; required
	Store *store.Store
	// Env carries the provider router, judge identity and retry policy
	Env strategy.Env
	// Workers bounds concurrent pairs; defaults to 4
	Workers int
	// Logger receives per-pair logging; nil disables logging
	Logger *slog.Logger
	// Now overrides the finalization clock, for tests
	Now func() time.Time
}

// Orchestrator executes the full (instance x model) matrix.
type Orchestrator struct {
	registry *strategy.Registry
	store    *store.Store
	env      strategy.Env
	workers  int
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Store == nil {
		return nil, errors.New("a result store is required")
	}
	if opts.Registry == nil {
		opts.Registry = strategy.DefaultRegistry()
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		registry: opts.Registry,
		store:    opts.Store,
		env:      opts.Env,
		workers:  opts.Workers,
		logger:   opts.Logger,
		now:      opts.Now,
	}, nil
}

// RunRequest describes one orchestration run.
type RunRequest struct {
	// Instances is the ordered sequence of evaluation instances;
	// (name, type) pairs must be unique
	Instances []api.EvaluationInstance
	// Models maps provider names to ordered model name sequences
	Models map[string][]string
	// SkipExisting skips pairs that already have a stored result
	SkipExisting bool
}

// Summary reports the outcome of a run.
type Summary struct {
	// Total is the number of pairs in the matrix
	Total int
	// Succeeded pairs produced a score
	Succeeded int
	// Failed pairs were recorded with an error and no score
	Failed int
	// Skipped pairs were never started (already executed, or cancelled)
	Skipped int
	// Records holds the finalized records of executed pairs, in matrix order
	Records []api.ResultRecord
}

type pair struct {
	instance api.EvaluationInstance
	provider string
	model    string
}

// Run executes every (instance, provider, model) pair and hands each
// finalized result to the store. Pairs run concurrently up to the worker
// bound; execution order is unspecified and carries no correctness weight.
// Cancelling ctx stops new pairs from starting while in-flight model calls
// are allowed to finish; everything already appended stays valid.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*Summary, error) {
	if err := validateInstances(req.Instances); err != nil {
		return nil, err
	}

	pairs := buildMatrix(req)

	var skip map[api.ResultKey]struct{}
	if req.SkipExisting {
		executed, err := o.store.ExecutedKeys()
		if err != nil {
			return nil, fmt.Errorf("load executed keys: %w", err)
		}
		skip = executed
	}

	summary := &Summary{Total: len(pairs)}
	results := make([]*api.ResultRecord, len(pairs))

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(o.workers)

	for i, p := range pairs {
		if _, done := skip[pairKey(p)]; done {
			mu.Lock()
			summary.Skipped++
			mu.Unlock()
			o.logger.Debug("skipping already executed pair",
				"name", p.instance.Name, "type", p.instance.Type,
				"provider", p.provider, "model", p.model)
			continue
		}

		g.Go(func() error {
			// Cancellation stops new pairs; the in-flight call in a running
			// pair finishes on its own detached context.
			if ctx.Err() != nil {
				mu.Lock()
				summary.Skipped++
				mu.Unlock()
				return nil
			}

			record, err := o.runPair(ctx, p)
			if err != nil {
				return err
			}

			mu.Lock()
			results[i] = &record
			if record.Error == nil {
				summary.Succeeded++
			} else {
				summary.Failed++
			}
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()

	for _, record := range results {
		if record != nil {
			summary.Records = append(summary.Records, *record)
		}
	}
	if err != nil {
		return summary, err
	}
	return summary, ctx.Err()
}

// runPair executes the two-phase protocol for one pair and appends the
// finalized result. Only a store failure is returned as an error; every
// evaluation-level failure becomes an error record on the result itself.
func (o *Orchestrator) runPair(ctx context.Context, p pair) (api.ResultRecord, error) {
	data := &api.EvaluationData{
		Name:          p.instance.Name,
		Type:          p.instance.Type,
		ModelName:     p.model,
		ModelProvider: p.provider,
	}

	if failure := o.executePair(ctx, p, data); failure != nil {
		data.Error = failure
		data.Score = nil
		o.logger.Warn("pair failed",
			"name", p.instance.Name, "type", p.instance.Type,
			"provider", p.provider, "model", p.model,
			"phase", failure.Phase, "error", failure.Message)
	} else {
		o.logger.Info("pair evaluated",
			"name", p.instance.Name, "type", p.instance.Type,
			"provider", p.provider, "model", p.model,
			"score", *data.Score)
	}

	data.Timestamp = o.now().UTC()
	record, err := o.store.Append(*data)
	if err != nil {
		return api.ResultRecord{}, fmt.Errorf("append result for %s/%s: %w", p.instance.Key(), p.model, err)
	}
	return record, nil
}

func (o *Orchestrator) executePair(ctx context.Context, p pair, data *api.EvaluationData) *api.ErrorRecord {
	factory, err := o.registry.Resolve(p.instance.Type)
	if err != nil {
		return errorRecord("resolve", err)
	}

	eval, err := factory(p.instance, o.env)
	if err != nil {
		return errorRecord("construct", err)
	}

	if err := eval.GetResult(ctx, data); err != nil {
		return errorRecord("get_result", err)
	}
	if err := eval.Evaluate(ctx, data); err != nil {
		return errorRecord("evaluate", err)
	}
	if data.Score == nil {
		return errorRecord("evaluate", api.ErrNoScore)
	}
	return nil
}

func errorRecord(phase string, err error) *api.ErrorRecord {
	record := &api.ErrorRecord{Phase: phase, Message: err.Error()}
	var callErr *api.ModelCallError
	if errors.As(err, &callErr) {
		record.Transient = callErr.Transient
	}
	return record
}

func validateInstances(instances []api.EvaluationInstance) error {
	seen := make(map[string]struct{}, len(instances))
	for _, inst := range instances {
		if inst.Name == "" {
			return fmt.Errorf("evaluation instance of type %q has no name", inst.Type)
		}
		key := inst.Key()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %s", api.ErrDuplicateInstance, key)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// buildMatrix expands the request into the full pair list: instances in
// declared order, providers sorted for determinism, models in declared order.
func buildMatrix(req RunRequest) []pair {
	providers := make([]string, 0, len(req.Models))
	for provider := range req.Models {
		providers = append(providers, provider)
	}
	sort.Strings(providers)

	var pairs []pair
	for _, inst := range req.Instances {
		for _, provider := range providers {
			for _, model := range req.Models[provider] {
				pairs = append(pairs, pair{instance: inst, provider: provider, model: model})
			}
		}
	}
	return pairs
}

func pairKey(p pair) api.ResultKey {
	return api.ResultKey{
		Name:     p.instance.Name,
		Type:     p.instance.Type,
		Provider: p.provider,
		Model:    p.model,
	}
}
