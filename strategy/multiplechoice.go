package strategy

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/datar-psa/evalharness/api"
	"github.com/datar-psa/evalharness/llm"
)

// choiceLetters are the option labels, capping options at ten.
const choiceLetters = "ABCDEFGHIJ"

// MultipleChoice presents a lettered multiple-choice question with a
// chain-of-thought prompt and scores 100 when the extracted answer letter
// matches the expected one. The extraction uses staged fallbacks: the
// requested "The answer is (X)" format first, then an "Answer: X" line,
// then the last standalone letter in the response.
type MultipleChoice struct {
	question string
	options  []string
	category string
	answer   string
	env      Env
}

// NewMultipleChoice constructs the multiple_choice strategy. Required
// parameters: question, options (2-10 strings) and answer (a letter
// addressing one of the options); optional: category.
func NewMultipleChoice(inst api.EvaluationInstance, env Env) (api.Evaluation, error) {
	question, err := stringParam(TypeMultipleChoice, inst.Parameters, "question")
	if err != nil {
		return nil, err
	}
	rawOptions, err := sliceParam(TypeMultipleChoice, inst.Parameters, "options")
	if err != nil {
		return nil, err
	}
	if len(rawOptions) < 2 || len(rawOptions) > len(choiceLetters) {
		return nil, configErr(TypeMultipleChoice, "options",
			fmt.Errorf("expected between 2 and %d options, got %d", len(choiceLetters), len(rawOptions)))
	}
	options := make([]string, 0, len(rawOptions))
	for i, raw := range rawOptions {
		opt, ok := raw.(string)
		if !ok || opt == "" {
			return nil, configErr(TypeMultipleChoice, "options",
				fmt.Errorf("option %d: expected non-empty string, got %T", i, raw))
		}
		options = append(options, opt)
	}
	answer, err := stringParam(TypeMultipleChoice, inst.Parameters, "answer")
	if err != nil {
		return nil, err
	}
	answer = strings.ToUpper(strings.TrimSpace(answer))
	idx := strings.Index(choiceLetters, answer)
	if len(answer) != 1 || idx < 0 || idx >= len(options) {
		return nil, configErr(TypeMultipleChoice, "answer",
			fmt.Errorf("answer %q does not address any of the %d options", answer, len(options)))
	}
	category, err := optionalStringParam(TypeMultipleChoice, inst.Parameters, "category")
	if err != nil {
		return nil, err
	}
	if category == "" {
		category = "general knowledge"
	}

	return &MultipleChoice{
		question: question,
		options:  options,
		category: category,
		answer:   answer,
		env:      env,
	}, nil
}

func (s *MultipleChoice) buildPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "The following are multiple choice questions (with answers) about %s. ", s.category)
	b.WriteString("Think step by step and then output the answer in the format of \"The answer is (X)\" at the end.\n\n")
	fmt.Fprintf(&b, "Question: %s\nOptions:\n", s.question)
	for i, opt := range s.options {
		fmt.Fprintf(&b, "%c. %s\n", choiceLetters[i], opt)
	}
	b.WriteString("\nAnswer: Let's think step by step.\n")
	return b.String()
}

// GetResult calls the model under test with the chain-of-thought question.
func (s *MultipleChoice) GetResult(ctx context.Context, data *api.EvaluationData) error {
	resp, err := callModel(ctx, s.env, data.ModelProvider, llm.Request{
		Model:       data.ModelName,
		Prompt:      s.buildPrompt(),
		Temperature: ptr(float32(0.7)),
		MaxTokens:   ptr(int32(4000)),
	})
	if err != nil {
		return err
	}

	data.Metadata.Output = resp.Text
	data.Metadata.ModelParameters = map[string]any{
		"max_tokens":  4000,
		"temperature": 0.7,
	}
	data.Metadata.SetDetail("usage", resp.Usage)
	return nil
}

// Evaluate extracts the answer letter and compares it to the expected one.
func (s *MultipleChoice) Evaluate(ctx context.Context, data *api.EvaluationData) error {
	extracted := extractAnswer(stripThinking(data.OutputText()))
	data.Metadata.SetDetail("extracted_answer", extracted)
	if extracted == s.answer {
		data.SetScore(100)
	} else {
		data.SetScore(0)
	}
	return nil
}

var (
	answerIsRegex   = regexp.MustCompile(`answer is \(?([A-J])\)?`)
	answerLineRegex = regexp.MustCompile(`.*[aA]nswer:\s*([A-J])`)
	anyLetterRegex  = regexp.MustCompile(`\b[A-J]\b`)
)

func extractAnswer(text string) string {
	text = strings.ReplaceAll(text, "**", "")
	if m := answerIsRegex.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := answerLineRegex.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	// Last standalone letter wins when the requested format is missing.
	if all := anyLetterRegex.FindAllString(text, -1); len(all) > 0 {
		return all[len(all)-1]
	}
	return ""
}

var _ api.Evaluation = (*MultipleChoice)(nil)
