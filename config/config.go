// Package config loads the run configuration and evaluation instance files.
// Both are YAML: the run configuration names the model matrix and the judge
// model, instance files declare the evaluations to execute.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultStorePath is where results land when the configuration does not
// name a store location.
const DefaultStorePath = "data/results"

// RunConfig defines one evaluation run, loaded from a YAML file.
type RunConfig struct {
	// Models maps each provider to the models every instance runs against.
	Models map[string][]string `yaml:"models"`

	// EvaluationProvider and EvaluationModel identify the judge model used
	// by strategies that need a second opinion.
	EvaluationProvider string `yaml:"evaluation_provider"`
	EvaluationModel    string `yaml:"evaluation_model"`

	// Workers bounds how many (instance, model) pairs run concurrently.
	Workers int `yaml:"workers"`

	// StorePath is the result database directory.
	StorePath string `yaml:"store_path"`

	// SkipExisting skips pairs that already have a stored result.
	SkipExisting bool `yaml:"skip_existing"`
}

// Load reads, parses and validates a run configuration.
func Load(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run config %s: %w", path, err)
	}

	var cfg RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse run config %s: %w", path, err)
	}

	if cfg.Workers == 0 {
		cfg.Workers = 4
	}
	if cfg.StorePath == "" {
		cfg.StorePath = DefaultStorePath
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks the configuration for structural problems.
func (c *RunConfig) Validate() error {
	if len(c.Models) == 0 {
		return fmt.Errorf("models must name at least one provider")
	}
	for provider, models := range c.Models {
		if provider == "" {
			return fmt.Errorf("models contains an empty provider name")
		}
		if len(models) == 0 {
			return fmt.Errorf("provider %q has no models", provider)
		}
		for _, model := range models {
			if model == "" {
				return fmt.Errorf("provider %q has an empty model name", provider)
			}
		}
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if (c.EvaluationModel == "") != (c.EvaluationProvider == "") {
		return fmt.Errorf("evaluation_model and evaluation_provider must be set together")
	}
	return nil
}
