package strategy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/datar-psa/evalharness/api"
	"github.com/datar-psa/evalharness/llm"
)

// SchemaValidator asks the model under test for structured output and
// validates it against a JSON schema. Score is 100 when the value validates
// fully (required properties, types, const/enum constraints), otherwise 0.
// Output that cannot be parsed as JSON is a legitimate poor outcome of the
// model under test and scores 0; it is never recorded as an error.
type SchemaValidator struct {
	prompt    string
	schemaDoc map[string]any
	schema    *jsonschema.Schema
	env       Env
}

// NewSchemaValidator constructs the structured_output strategy. Required
// parameters: json_schema (a JSON schema document) and prompt. A schema that
// does not compile is a configuration error.
func NewSchemaValidator(inst api.EvaluationInstance, env Env) (api.Evaluation, error) {
	prompt, err := stringParam(TypeStructuredOutput, inst.Parameters, "prompt")
	if err != nil {
		return nil, err
	}
	rawSchema, err := mapParam(TypeStructuredOutput, inst.Parameters, "json_schema")
	if err != nil {
		return nil, err
	}

	// Round-trip through JSON so YAML-decoded documents carry the numeric
	// types the validator expects.
	schemaDoc, err := normalizeJSON(rawSchema)
	if err != nil {
		return nil, configErr(TypeStructuredOutput, "json_schema", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("instance.json", schemaDoc); err != nil {
		return nil, configErr(TypeStructuredOutput, "json_schema", err)
	}
	schema, err := compiler.Compile("instance.json")
	if err != nil {
		return nil, configErr(TypeStructuredOutput, "json_schema", err)
	}

	doc, ok := schemaDoc.(map[string]any)
	if !ok {
		return nil, configErr(TypeStructuredOutput, "json_schema", fmt.Errorf("expected object schema, got %T", schemaDoc))
	}

	return &SchemaValidator{
		prompt:    prompt,
		schemaDoc: doc,
		schema:    schema,
		env:       env,
	}, nil
}

func normalizeJSON(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetResult calls the model requesting output constrained to the schema.
// The parsed value is stored when the provider honored the constraint and
// returned valid JSON; otherwise the raw text is stored and parsing is
// retried during Evaluate.
func (s *SchemaValidator) GetResult(ctx context.Context, data *api.EvaluationData) error {
	resp, err := callModel(ctx, s.env, data.ModelProvider, llm.Request{
		Model:          data.ModelName,
		Prompt:         s.prompt,
		SystemPrompt:   "You are a helpful assistant that is answering tasks in a structured JSON format.",
		ResponseSchema: s.schemaDoc,
		Temperature:    ptr(float32(0.5)),
		MaxTokens:      ptr(int32(1000)),
	})
	if err != nil {
		return err
	}

	if resp.Structured != nil {
		data.Metadata.Output = resp.Structured
	} else {
		data.Metadata.Output = resp.Text
	}
	data.Metadata.ModelParameters = map[string]any{
		"max_tokens":  1000,
		"temperature": 0.5,
	}
	data.Metadata.SetDetail("usage", resp.Usage)
	return nil
}

// Evaluate validates the captured output against the schema. Validation is
// binary: any required-field omission, type mismatch or const/enum violation
// drives the score to 0.
func (s *SchemaValidator) Evaluate(ctx context.Context, data *api.EvaluationData) error {
	value := data.Metadata.Output

	if text, ok := value.(string); ok {
		var parsed any
		if err := json.Unmarshal([]byte(stripThinking(text)), &parsed); err != nil {
			data.Metadata.SetDetail("validation_error", fmt.Sprintf("output is not valid JSON: %v", err))
			data.SetScore(0)
			return nil
		}
		value = parsed
	}

	// The validator works on decoded JSON values; captured structured output
	// may still carry non-JSON numeric types from the provider SDK.
	value, err := normalizeJSON(value)
	if err != nil {
		data.Metadata.SetDetail("validation_error", fmt.Sprintf("output is not representable as JSON: %v", err))
		data.SetScore(0)
		return nil
	}

	if err := s.schema.Validate(value); err != nil {
		data.Metadata.SetDetail("validation_error", err.Error())
		data.SetScore(0)
		return nil
	}

	data.SetScore(100)
	return nil
}

var _ api.Evaluation = (*SchemaValidator)(nil)
