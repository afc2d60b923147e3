package api

import (
	"context"
	"time"
)

// EvaluationInstance is one declared test case: a prompt plus the scoring
// parameters for the strategy identified by Type.
type EvaluationInstance struct {
	// Name identifies the instance; must be unique in combination with Type
	Name string `json:"name" yaml:"name"`
	// Type is a key into the strategy registry (e.g. "contains_pattern")
	Type string `json:"type" yaml:"type"`
	// Parameters are strategy-specific (pattern, json_schema, semantic_criteria, ...)
	Parameters map[string]any `json:"parameters" yaml:"parameters"`
}

// Key returns the (name, type) identity used for uniqueness checks.
func (i EvaluationInstance) Key() string {
	return i.Name + "/" + i.Type
}

// Metadata carries the raw model output and auxiliary information collected
// while running one (instance, model) pair.
type Metadata struct {
	// Output is the raw model output captured by GetResult: a string for
	// free-text strategies, a parsed value for structured-output strategies.
	// nil until that phase completes.
	Output any `json:"output,omitempty"`
	// ModelParameters records the sampling parameters used for the call
	ModelParameters map[string]any `json:"model_parameters,omitempty"`
	// Details holds strategy-specific audit data, such as the per-criterion
	// outcomes of a judged evaluation
	Details map[string]any `json:"details,omitempty"`
}

// SetDetail records a strategy-specific detail, allocating the map on first use.
func (m *Metadata) SetDetail(key string, value any) {
	if m.Details == nil {
		m.Details = make(map[string]any)
	}
	m.Details[key] = value
}

// ErrorRecord describes why a pair did not produce a score.
type ErrorRecord struct {
	// Phase is "resolve", "construct", "get_result" or "evaluate"
	Phase string `json:"phase"`
	// Message is the rendered error chain
	Message string `json:"message"`
	// Transient reports whether the failure was classified retriable
	Transient bool `json:"transient,omitempty"`
}

// EvaluationData accumulates the outcome of one (instance, model) execution.
// It is owned by the running strategy until the orchestrator finalizes it;
// after hand-off to the result store it is never mutated again.
type EvaluationData struct {
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	ModelName     string   `json:"model_name"`
	ModelProvider string   `json:"model_provider"`
	Metadata      Metadata `json:"metadata"`
	// Score is in [0, 100]; nil means the run did not reach scoring
	Score *float64 `json:"score,omitempty"`
	// Timestamp is assigned at finalization and orders "latest" queries
	Timestamp time.Time `json:"timestamp"`
	// Error is set when either phase failed irrecoverably; Score stays nil
	Error *ErrorRecord `json:"error,omitempty"`
}

// SetScore records the computed score. Strategies are responsible for
// producing values in [0, 100].
func (d *EvaluationData) SetScore(score float64) {
	d.Score = &score
}

// OutputText returns the captured output as text. Structured outputs yield
// their raw textual form when one was recorded, otherwise the empty string.
func (d *EvaluationData) OutputText() string {
	if s, ok := d.Metadata.Output.(string); ok {
		return s
	}
	return ""
}

// ResultRecord is the persisted, append-only form of a finalized
// EvaluationData, keyed by (name, type, provider, model, timestamp).
type ResultRecord struct {
	ID string `json:"id"`
	EvaluationData
}

// ResultKey identifies the (name, type, provider, model) series a record
// belongs to.
type ResultKey struct {
	Name     string
	Type     string
	Provider string
	Model    string
}

// Key returns the record's series identity.
func (r ResultRecord) Key() ResultKey {
	return ResultKey{Name: r.Name, Type: r.Type, Provider: r.ModelProvider, Model: r.ModelName}
}

// Evaluation is the two-phase contract every scoring strategy implements.
// GetResult produces model output and stores it in data.Metadata.Output;
// Evaluate consumes that output and sets data.Score. The phases run strictly
// in order for each (instance, model) pair, and the data value is passed
// explicitly through both phases so no state is shared across pairs.
type Evaluation interface {
	GetResult(ctx context.Context, data *EvaluationData) error
	Evaluate(ctx context.Context, data *EvaluationData) error
}
