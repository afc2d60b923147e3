package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datar-psa/evalharness/api"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRunConfig(t *testing.T) {
	path := writeFile(t, "config.yaml", `
models:
  openai:
    - gpt-4o-mini
    - gpt-4o
  ollama:
    - phi4
evaluation_provider: openai
evaluation_model: gpt-4o
workers: 8
store_path: /tmp/eval-results
skip_existing: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"gpt-4o-mini", "gpt-4o"}, cfg.Models["openai"])
	assert.Equal(t, []string{"phi4"}, cfg.Models["ollama"])
	assert.Equal(t, "openai", cfg.EvaluationProvider)
	assert.Equal(t, "gpt-4o", cfg.EvaluationModel)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "/tmp/eval-results", cfg.StorePath)
	assert.True(t, cfg.SkipExisting)
}

func TestLoadRunConfigDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", `
models:
  ollama:
    - phi4
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, DefaultStorePath, cfg.StorePath)
	assert.Empty(t, cfg.EvaluationModel)
	assert.False(t, cfg.SkipExisting)
}

func TestLoadRunConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "no providers", content: `workers: 4`},
		{name: "provider without models", content: "models:\n  openai: []\n"},
		{name: "empty model name", content: "models:\n  openai:\n    - \"\"\n"},
		{name: "judge model without provider", content: "models:\n  openai:\n    - gpt-4o\nevaluation_model: gpt-4o\n"},
		{name: "not yaml", content: "models: [unclosed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.yaml", tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadRunConfigMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadInstances(t *testing.T) {
	path := writeFile(t, "instances.yaml", `
- name: capital of france
  type: contains_pattern
  parameters:
    prompt: What is the capital of France?
    pattern: Paris
- name: extract category
  type: structured_output
  parameters:
    prompt: Classify phi-3-mini.
    json_schema:
      type: object
`)

	instances, err := LoadInstances(path)
	require.NoError(t, err)
	require.Len(t, instances, 2)

	assert.Equal(t, "capital of france", instances[0].Name)
	assert.Equal(t, "contains_pattern", instances[0].Type)
	assert.Equal(t, "Paris", instances[0].Parameters["pattern"])

	schema, ok := instances[1].Parameters["json_schema"].(map[string]any)
	require.True(t, ok, "nested parameters should decode as maps")
	assert.Equal(t, "object", schema["type"])
}

func TestLoadInstancesAcrossFiles(t *testing.T) {
	first := writeFile(t, "a.yaml", `
- name: one
  type: contains_pattern
`)
	second := writeFile(t, "b.yaml", `
- name: two
  type: contains_pattern
`)

	instances, err := LoadInstances(first, second)
	require.NoError(t, err)
	require.Len(t, instances, 2)
	assert.Equal(t, "one", instances[0].Name)
	assert.Equal(t, "two", instances[1].Name)
}

func TestLoadInstancesRejectsDuplicates(t *testing.T) {
	first := writeFile(t, "a.yaml", `
- name: repeated
  type: contains_pattern
`)
	second := writeFile(t, "b.yaml", `
- name: repeated
  type: contains_pattern
`)

	_, err := LoadInstances(first, second)
	require.ErrorIs(t, err, api.ErrDuplicateInstance)

	// Same name under a different type is a distinct instance.
	third := writeFile(t, "c.yaml", `
- name: repeated
  type: multiple_choice
`)
	instances, err := LoadInstances(first, third)
	require.NoError(t, err)
	assert.Len(t, instances, 2)
}

func TestLoadInstancesRejectsIncompleteEntries(t *testing.T) {
	missingName := writeFile(t, "a.yaml", "- type: contains_pattern\n")
	_, err := LoadInstances(missingName)
	assert.ErrorContains(t, err, "has no name")

	missingType := writeFile(t, "b.yaml", "- name: x\n")
	_, err = LoadInstances(missingType)
	assert.ErrorContains(t, err, "has no type")
}
