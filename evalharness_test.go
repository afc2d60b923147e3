package evalharness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datar-psa/evalharness/api"
	"github.com/datar-psa/evalharness/internal/testutils"
	"github.com/datar-psa/evalharness/llm"
	"github.com/datar-psa/evalharness/retry"
	"github.com/datar-psa/evalharness/store"
)

func TestHarnessRequiresStore(t *testing.T) {
	_, err := NewHarness()
	assert.Error(t, err)
}

func TestHarnessRunEndToEnd(t *testing.T) {
	s, err := store.Open(store.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	router, _ := testutils.NewFakeRouter("fake", testutils.StaticText("The capital is Paris."))

	h, err := NewHarness(
		WithStore(s),
		WithClients(router),
		WithJudge("fake", "judge-model"),
		WithWorkers(2),
		WithRetryPolicy(retry.Policy{
			MaxAttempts:    1,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
			BackoffFactor:  2,
			Retriable:      llm.IsTransient,
		}),
	)
	require.NoError(t, err)

	summary, err := h.Run(context.Background(), RunRequest{
		Instances: []EvaluationInstance{{
			Name: "capital of france",
			Type: "contains_pattern",
			Parameters: map[string]any{
				"prompt":  "What is the capital of France?",
				"pattern": "Paris",
			},
		}},
		Models: map[string][]string{"fake": {"small", "large"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Succeeded)

	records, err := h.Results()
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, record := range records {
		require.NotNil(t, record.Score)
		assert.Equal(t, 100.0, *record.Score)
		assert.Equal(t, api.ResultKey{
			Name:     "capital of france",
			Type:     "contains_pattern",
			Provider: "fake",
			Model:    record.ModelName,
		}, record.Key())
	}
}
