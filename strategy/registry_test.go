package strategy

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/datar-psa/evalharness/api"
)

func TestRegistryResolve(t *testing.T) {
	r := DefaultRegistry()

	for _, typ := range []string{TypeContainsPattern, TypeStructuredOutput, TypeMeetsCriteria, TypeMultipleChoice} {
		if _, err := r.Resolve(typ); err != nil {
			t.Errorf("Resolve(%q) = %v, want nil", typ, err)
		}
	}

	_, err := r.Resolve("no_such_type")
	var unknownErr *api.UnknownTypeError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("err = %v, want *api.UnknownTypeError", err)
	}
	if unknownErr.Type != "no_such_type" {
		t.Errorf("Type = %q, want no_such_type", unknownErr.Type)
	}
}

func TestRegistryTypes(t *testing.T) {
	r := DefaultRegistry()
	want := []string{TypeContainsPattern, TypeMeetsCriteria, TypeMultipleChoice, TypeStructuredOutput}
	if got := r.Types(); !reflect.DeepEqual(got, want) {
		t.Errorf("Types() = %v, want %v", got, want)
	}
}

type noopEvaluation struct{}

func (noopEvaluation) GetResult(ctx context.Context, data *api.EvaluationData) error { return nil }
func (noopEvaluation) Evaluate(ctx context.Context, data *api.EvaluationData) error  { return nil }

func TestRegistryRegisterCustomStrategy(t *testing.T) {
	r := NewRegistry()
	r.Register("custom", func(inst api.EvaluationInstance, env Env) (api.Evaluation, error) {
		return noopEvaluation{}, nil
	})

	factory, err := r.Resolve("custom")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	eval, err := factory(api.EvaluationInstance{Name: "x", Type: "custom"}, Env{})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if eval == nil {
		t.Fatal("factory returned nil evaluation")
	}
}
