package strategy

import (
	"context"
	"fmt"

	"github.com/datar-psa/evalharness/api"
	"github.com/datar-psa/evalharness/llm"
)

// Criterion is one semantic requirement with its weight in the final score.
type Criterion struct {
	Criteria   string
	Importance float64
}

// CriterionOutcome is the per-criterion audit trail recorded in the result
// metadata, so a weighted score can be traced criterion by criterion.
type CriterionOutcome struct {
	Criteria   string  `json:"criteria"`
	Importance float64 `json:"importance"`
	Satisfied  bool    `json:"satisfied"`
	Reasoning  string  `json:"reasoning,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// CriteriaJudge asks the model under test a question, then has a second
// (judge) model decide, independently per criterion, whether the output
// satisfies each criterion. The final score is the importance-weighted
// fraction of satisfied criteria, scaled to 100.
//
// A judge call that exhausts its retries marks only that criterion as
// unsatisfied; the remaining criteria are still judged, and the degraded
// outcome is recorded in the metadata rather than failing the evaluation.
type CriteriaJudge struct {
	prompt   string
	criteria []Criterion
	env      Env
}

const judgeSystemPrompt = `You are evaluating how well a response meets a given criteria. The criteria can either be met or not met; you must make a choice.
First think step by step about whether the response meets the criteria, then give your final answer as a boolean: true means the criteria is met, false means it is not met.`

const judgeUserPromptTemplate = `RESPONSE:
%s

CRITERIA:
%s

First think step by step about whether the response meets the criteria, then answer true or false.`

// judgeResponseSchema constrains the judge to a reasoning string and a
// boolean verdict, avoiding a second parse-the-prose round trip.
var judgeResponseSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"reasoning": map[string]any{
			"type":        "string",
			"description": "Step by step analysis of whether the response meets the criteria",
		},
		"answer": map[string]any{
			"type":        "boolean",
			"description": "true when the criteria is met",
		},
	},
	"required": []any{"reasoning", "answer"},
}

// NewCriteriaJudge constructs the meets_criteria strategy. Required
// parameters: prompt and semantic_criteria (an ordered sequence of
// {criteria, importance}); importance values must be positive. The judge
// model comes from the environment and must be configured.
func NewCriteriaJudge(inst api.EvaluationInstance, env Env) (api.Evaluation, error) {
	prompt, err := stringParam(TypeMeetsCriteria, inst.Parameters, "prompt")
	if err != nil {
		return nil, err
	}
	rawCriteria, err := sliceParam(TypeMeetsCriteria, inst.Parameters, "semantic_criteria")
	if err != nil {
		return nil, err
	}
	if len(rawCriteria) == 0 {
		return nil, configErr(TypeMeetsCriteria, "semantic_criteria", fmt.Errorf("at least one criterion is required"))
	}
	if env.Judge.Provider == "" || env.Judge.Model == "" {
		return nil, configErr(TypeMeetsCriteria, "", fmt.Errorf("a judge model (evaluation_provider, evaluation_model) is required"))
	}

	criteria := make([]Criterion, 0, len(rawCriteria))
	for i, raw := range rawCriteria {
		entry, ok := raw.(map[string]any)
		if !ok {
			return nil, configErr(TypeMeetsCriteria, "semantic_criteria",
				fmt.Errorf("entry %d: expected mapping, got %T", i, raw))
		}
		text, ok := entry["criteria"].(string)
		if !ok || text == "" {
			return nil, configErr(TypeMeetsCriteria, "semantic_criteria",
				fmt.Errorf("entry %d: criteria must be a non-empty string", i))
		}
		importance, ok := asFloat(entry["importance"])
		if !ok || importance <= 0 {
			return nil, configErr(TypeMeetsCriteria, "semantic_criteria",
				fmt.Errorf("entry %d: importance must be a positive number", i))
		}
		criteria = append(criteria, Criterion{Criteria: text, Importance: importance})
	}

	return &CriteriaJudge{
		prompt:   prompt,
		criteria: criteria,
		env:      env,
	}, nil
}

// GetResult calls the model under test with the prompt and stores the raw
// text output.
func (s *CriteriaJudge) GetResult(ctx context.Context, data *api.EvaluationData) error {
	resp, err := callModel(ctx, s.env, data.ModelProvider, llm.Request{
		Model:        data.ModelName,
		Prompt:       s.prompt,
		SystemPrompt: "You are a helpful assistant that is answering requests for a user.",
		Temperature:  ptr(float32(0.5)),
		MaxTokens:    ptr(int32(4000)),
	})
	if err != nil {
		return err
	}

	data.Metadata.Output = resp.Text
	data.Metadata.ModelParameters = map[string]any{
		"max_tokens":  4000,
		"temperature": 0.5,
	}
	data.Metadata.SetDetail("usage", resp.Usage)
	return nil
}

// Evaluate judges each criterion independently and accumulates the weighted
// score: 100 * sum(importance of satisfied) / sum(importance of all).
func (s *CriteriaJudge) Evaluate(ctx context.Context, data *api.EvaluationData) error {
	response := stripThinking(data.OutputText())

	var total, satisfied float64
	outcomes := make([]CriterionOutcome, 0, len(s.criteria))

	for _, crit := range s.criteria {
		total += crit.Importance
		outcome := s.judgeCriterion(ctx, response, crit)
		if outcome.Satisfied {
			satisfied += crit.Importance
		}
		outcomes = append(outcomes, outcome)
	}

	data.Metadata.SetDetail("criteria", outcomes)
	data.SetScore(100 * satisfied / total)
	return nil
}

func (s *CriteriaJudge) judgeCriterion(ctx context.Context, response string, crit Criterion) CriterionOutcome {
	outcome := CriterionOutcome{Criteria: crit.Criteria, Importance: crit.Importance}

	resp, err := callModel(ctx, s.env, s.env.Judge.Provider, llm.Request{
		Model:          s.env.Judge.Model,
		Prompt:         fmt.Sprintf(judgeUserPromptTemplate, response, crit.Criteria),
		SystemPrompt:   judgeSystemPrompt,
		ResponseSchema: judgeResponseSchema,
		Temperature:    ptr(float32(0.3)),
		MaxTokens:      ptr(int32(3000)),
	})
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	if resp.Structured == nil {
		outcome.Error = "judge did not return structured output"
		return outcome
	}
	answer, ok := resp.Structured["answer"].(bool)
	if !ok {
		outcome.Error = fmt.Sprintf("judge answer is not a boolean: %v", resp.Structured["answer"])
		return outcome
	}

	if reasoning, ok := resp.Structured["reasoning"].(string); ok {
		outcome.Reasoning = reasoning
	}
	outcome.Satisfied = answer
	return outcome
}

var _ api.Evaluation = (*CriteriaJudge)(nil)
