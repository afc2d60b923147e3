package strategy

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/datar-psa/evalharness/api"
	"github.com/datar-psa/evalharness/internal/testutils"
	"github.com/datar-psa/evalharness/llm"
)

func criteriaInstance(params map[string]any) api.EvaluationInstance {
	return api.EvaluationInstance{Name: "c", Type: TypeMeetsCriteria, Parameters: params}
}

func criteriaParams(criteria ...map[string]any) map[string]any {
	entries := make([]any, 0, len(criteria))
	for _, c := range criteria {
		entries = append(entries, c)
	}
	return map[string]any{
		"prompt":            "List three memorable football games.",
		"semantic_criteria": entries,
	}
}

// judgeByVerdict answers each criterion according to the verdicts map, keyed
// by a substring of the criterion text.
func judgeByVerdict(verdicts map[string]bool) func(llm.Request) (*llm.Response, error) {
	return func(req llm.Request) (*llm.Response, error) {
		for key, verdict := range verdicts {
			if strings.Contains(req.Prompt, key) {
				return testutils.StructuredResponse(map[string]any{
					"reasoning": "judged " + key,
					"answer":    verdict,
				}), nil
			}
		}
		return testutils.StructuredResponse(map[string]any{"reasoning": "unknown", "answer": false}), nil
	}
}

func criteriaEnv(underTest, judge func(llm.Request) (*llm.Response, error)) (Env, *testutils.FakeClient, *testutils.FakeClient) {
	router, testClient := testutils.NewFakeRouter("fake", underTest)
	judgeClient := &testutils.FakeClient{Handler: judge}
	router.Register("judge-provider", judgeClient)
	return Env{
		Clients: router,
		Judge:   Judge{Provider: "judge-provider", Model: "judge-model"},
		Retry:   fastRetryPolicy(),
	}, testClient, judgeClient
}

func TestNewCriteriaJudgeConfiguration(t *testing.T) {
	env, _, _ := criteriaEnv(nil, nil)

	tests := []struct {
		name   string
		params map[string]any
		env    Env
	}{
		{name: "missing prompt", params: map[string]any{"semantic_criteria": []any{map[string]any{"criteria": "x", "importance": 1}}}, env: env},
		{name: "missing criteria", params: map[string]any{"prompt": "q"}, env: env},
		{name: "empty criteria", params: criteriaParams(), env: env},
		{name: "zero importance", params: criteriaParams(map[string]any{"criteria": "x", "importance": 0}), env: env},
		{name: "negative importance", params: criteriaParams(map[string]any{"criteria": "x", "importance": -2}), env: env},
		{name: "criteria not a string", params: criteriaParams(map[string]any{"criteria": 5, "importance": 1}), env: env},
		{name: "no judge configured", params: criteriaParams(map[string]any{"criteria": "x", "importance": 1}), env: Env{Clients: llm.NewRouter(), Retry: fastRetryPolicy()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCriteriaJudge(criteriaInstance(tt.params), tt.env)
			var confErr *api.ConfigurationError
			if !errors.As(err, &confErr) {
				t.Fatalf("err = %v, want *api.ConfigurationError", err)
			}
		})
	}
}

func TestCriteriaJudgeWeightedScore(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		criteria  []map[string]any
		verdicts  map[string]bool
		wantScore float64
	}{
		{
			name: "all satisfied",
			criteria: []map[string]any{
				{"criteria": "mentions a date", "importance": 1},
				{"criteria": "mentions a team", "importance": 1},
			},
			verdicts:  map[string]bool{"mentions a date": true, "mentions a team": true},
			wantScore: 100,
		},
		{
			name: "none satisfied",
			criteria: []map[string]any{
				{"criteria": "mentions a date", "importance": 3},
				{"criteria": "mentions a team", "importance": 7},
			},
			verdicts:  map[string]bool{"mentions a date": false, "mentions a team": false},
			wantScore: 0,
		},
		{
			name: "weighted partial credit",
			criteria: []map[string]any{
				{"criteria": "first criterion", "importance": 3},
				{"criteria": "second criterion", "importance": 3},
				{"criteria": "third criterion", "importance": 3},
				{"criteria": "fourth criterion", "importance": 2},
			},
			verdicts: map[string]bool{
				"first criterion":  true,
				"second criterion": true,
				"third criterion":  true,
				"fourth criterion": false,
			},
			wantScore: 100 * 9.0 / 11.0,
		},
		{
			name: "importance dominates count",
			criteria: []map[string]any{
				{"criteria": "heavy", "importance": 90},
				{"criteria": "light one", "importance": 5},
				{"criteria": "light two", "importance": 5},
			},
			verdicts:  map[string]bool{"heavy": true, "light one": false, "light two": false},
			wantScore: 90,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, _, judgeClient := criteriaEnv(
				testutils.StaticText("Here are three memorable games."),
				judgeByVerdict(tt.verdicts),
			)
			eval, err := NewCriteriaJudge(criteriaInstance(criteriaParams(tt.criteria...)), env)
			if err != nil {
				t.Fatalf("NewCriteriaJudge: %v", err)
			}

			data := newData("football", TypeMeetsCriteria)
			if err := eval.GetResult(ctx, data); err != nil {
				t.Fatalf("GetResult: %v", err)
			}
			if err := eval.Evaluate(ctx, data); err != nil {
				t.Fatalf("Evaluate: %v", err)
			}

			if data.Score == nil {
				t.Fatal("score unset")
			}
			if math.Abs(*data.Score-tt.wantScore) > 1e-9 {
				t.Errorf("score = %v, want %v", *data.Score, tt.wantScore)
			}
			if judgeClient.CallCount() != len(tt.criteria) {
				t.Errorf("judge calls = %d, want %d (one per criterion)", judgeClient.CallCount(), len(tt.criteria))
			}
		})
	}
}

func TestCriteriaJudgeUsesJudgeModel(t *testing.T) {
	ctx := context.Background()

	env, testClient, judgeClient := criteriaEnv(
		testutils.StaticText("output"),
		judgeByVerdict(map[string]bool{"anything": true}),
	)
	eval, err := NewCriteriaJudge(criteriaInstance(criteriaParams(
		map[string]any{"criteria": "anything", "importance": 1},
	)), env)
	if err != nil {
		t.Fatalf("NewCriteriaJudge: %v", err)
	}

	data := newData("c", TypeMeetsCriteria)
	if err := eval.GetResult(ctx, data); err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if err := eval.Evaluate(ctx, data); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if testClient.CallCount() != 1 {
		t.Errorf("model under test calls = %d, want 1", testClient.CallCount())
	}
	judgeCalls := judgeClient.Calls()
	if len(judgeCalls) != 1 {
		t.Fatalf("judge calls = %d, want 1", len(judgeCalls))
	}
	if judgeCalls[0].Model != "judge-model" {
		t.Errorf("judge model = %q, want judge-model", judgeCalls[0].Model)
	}
	if judgeCalls[0].ResponseSchema == nil {
		t.Error("judge call has no response schema")
	}
}

func TestCriteriaJudgeFlakyCriterionCountsUnsatisfied(t *testing.T) {
	ctx := context.Background()

	// The judge permanently fails on one criterion; the others still count.
	judge := func(req llm.Request) (*llm.Response, error) {
		if strings.Contains(req.Prompt, "flaky criterion") {
			return nil, llm.Transient(errors.New("rate limited"))
		}
		return testutils.StructuredResponse(map[string]any{"reasoning": "ok", "answer": true}), nil
	}
	env, _, _ := criteriaEnv(testutils.StaticText("output"), judge)

	eval, err := NewCriteriaJudge(criteriaInstance(criteriaParams(
		map[string]any{"criteria": "good criterion", "importance": 3},
		map[string]any{"criteria": "flaky criterion", "importance": 1},
	)), env)
	if err != nil {
		t.Fatalf("NewCriteriaJudge: %v", err)
	}

	data := newData("c", TypeMeetsCriteria)
	if err := eval.GetResult(ctx, data); err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if err := eval.Evaluate(ctx, data); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if data.Score == nil || *data.Score != 75 {
		t.Errorf("score = %v, want 75 (flaky criterion counts as unsatisfied)", data.Score)
	}

	outcomes, ok := data.Metadata.Details["criteria"].([]CriterionOutcome)
	if !ok {
		t.Fatalf("criteria detail = %T, want []CriterionOutcome", data.Metadata.Details["criteria"])
	}
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(outcomes))
	}
	if outcomes[1].Error == "" {
		t.Error("degraded criterion has no recorded error")
	}
	if outcomes[1].Satisfied {
		t.Error("degraded criterion marked satisfied")
	}
	if outcomes[0].Error != "" || !outcomes[0].Satisfied {
		t.Errorf("healthy criterion outcome = %+v, want satisfied with no error", outcomes[0])
	}
}

func TestCriteriaJudgeStripsThinking(t *testing.T) {
	ctx := context.Background()

	var judged string
	judge := func(req llm.Request) (*llm.Response, error) {
		judged = req.Prompt
		return testutils.StructuredResponse(map[string]any{"reasoning": "ok", "answer": true}), nil
	}
	env, _, _ := criteriaEnv(
		testutils.StaticText("<think>internal deliberation</think>The final answer."),
		judge,
	)

	eval, err := NewCriteriaJudge(criteriaInstance(criteriaParams(
		map[string]any{"criteria": "is final", "importance": 1},
	)), env)
	if err != nil {
		t.Fatalf("NewCriteriaJudge: %v", err)
	}

	data := newData("c", TypeMeetsCriteria)
	if err := eval.GetResult(ctx, data); err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if err := eval.Evaluate(ctx, data); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if strings.Contains(judged, "internal deliberation") {
		t.Error("judge prompt contains thinking block")
	}
	if !strings.Contains(judged, "The final answer.") {
		t.Error("judge prompt is missing the stripped response")
	}
}
