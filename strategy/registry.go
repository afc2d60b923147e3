package strategy

import (
	"sort"
	"sync"

	"github.com/datar-psa/evalharness/api"
)

// Factory constructs a strategy for one evaluation instance. Construction
// validates the instance's parameters; an invalid declaration surfaces a
// *api.ConfigurationError here rather than at evaluation time.
type Factory func(inst api.EvaluationInstance, env Env) (api.Evaluation, error)

// Registry maps declared evaluation type identifiers to strategy factories.
// New instances of existing strategies need no code; new strategies register
// a factory under a fresh type name. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with the built-in strategies.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TypeContainsPattern, NewPatternMatcher)
	r.Register(TypeStructuredOutput, NewSchemaValidator)
	r.Register(TypeMeetsCriteria, NewCriteriaJudge)
	r.Register(TypeMultipleChoice, NewMultipleChoice)
	return r
}

// Register adds or replaces the factory for an evaluation type.
func (r *Registry) Register(typ string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typ] = f
}

// Resolve returns the factory for typ, or *api.UnknownTypeError when the
// type was never registered. This is the only validation point for declared
// instance types.
func (r *Registry) Resolve(typ string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[typ]
	if !ok {
		return nil, &api.UnknownTypeError{Type: typ}
	}
	return f, nil
}

// Types returns the registered type names in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for typ := range r.factories {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}
