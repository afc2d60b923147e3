package strategy

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/datar-psa/evalharness/api"
	"github.com/datar-psa/evalharness/llm"
)

// PatternMatcher asks the model under test a question and checks whether the
// raw output contains a match of a regular expression. Score is 100 when the
// pattern matches anywhere in the text, otherwise 0; there is no partial
// credit. An empty output simply scores 0.
type PatternMatcher struct {
	prompt       string
	systemPrompt string
	pattern      *regexp.Regexp
	env          Env
}

// NewPatternMatcher constructs the contains_pattern strategy. Required
// parameters: pattern (a regular expression) and prompt; optional:
// system_prompt. An invalid regex is a configuration error raised here, not
// at evaluation time.
func NewPatternMatcher(inst api.EvaluationInstance, env Env) (api.Evaluation, error) {
	prompt, err := stringParam(TypeContainsPattern, inst.Parameters, "prompt")
	if err != nil {
		return nil, err
	}
	rawPattern, err := stringParam(TypeContainsPattern, inst.Parameters, "pattern")
	if err != nil {
		return nil, err
	}
	pattern, err := regexp.Compile(rawPattern)
	if err != nil {
		return nil, configErr(TypeContainsPattern, "pattern", err)
	}
	systemPrompt, err := optionalStringParam(TypeContainsPattern, inst.Parameters, "system_prompt")
	if err != nil {
		return nil, err
	}
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt()
	}

	return &PatternMatcher{
		prompt:       prompt,
		systemPrompt: systemPrompt,
		pattern:      pattern,
		env:          env,
	}, nil
}

func defaultSystemPrompt() string {
	return fmt.Sprintf(`- You are a helpful assistant.
- The current date is %s.
- Answer questions truthfully and accurately.`, time.Now().Format("2006-01-02"))
}

// GetResult calls the model under test once and stores the raw text output.
func (s *PatternMatcher) GetResult(ctx context.Context, data *api.EvaluationData) error {
	resp, err := callModel(ctx, s.env, data.ModelProvider, llm.Request{
		Model:        data.ModelName,
		Prompt:       s.prompt,
		SystemPrompt: s.systemPrompt,
		Temperature:  ptr(float32(0.5)),
		MaxTokens:    ptr(int32(1000)),
	})
	if err != nil {
		return err
	}

	data.Metadata.Output = resp.Text
	data.Metadata.ModelParameters = map[string]any{
		"max_tokens":  1000,
		"temperature": 0.5,
	}
	data.Metadata.SetDetail("usage", resp.Usage)
	return nil
}

// Evaluate searches the output for the pattern. Case-sensitive, unanchored,
// first match wins.
func (s *PatternMatcher) Evaluate(ctx context.Context, data *api.EvaluationData) error {
	if s.pattern.MatchString(data.OutputText()) {
		data.SetScore(100)
	} else {
		data.SetScore(0)
	}
	return nil
}

var _ api.Evaluation = (*PatternMatcher)(nil)
