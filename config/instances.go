package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/datar-psa/evalharness/api"
)

type instanceEntry struct {
	Name       string         `yaml:"name"`
	Type       string         `yaml:"type"`
	Parameters map[string]any `yaml:"parameters"`
}

// LoadInstances reads evaluation instances from one or more YAML files, each
// holding a list of {name, type, parameters} entries. Entries keep their file
// order; a (name, type) pair appearing twice across all files is an error.
func LoadInstances(paths ...string) ([]api.EvaluationInstance, error) {
	var instances []api.EvaluationInstance
	seen := make(map[string]string)

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read instance file %s: %w", path, err)
		}

		var entries []instanceEntry
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("parse instance file %s: %w", path, err)
		}

		for i, entry := range entries {
			if entry.Name == "" {
				return nil, fmt.Errorf("%s: entry %d has no name", path, i)
			}
			if entry.Type == "" {
				return nil, fmt.Errorf("%s: instance %q has no type", path, entry.Name)
			}

			inst := api.EvaluationInstance{
				Name:       entry.Name,
				Type:       entry.Type,
				Parameters: entry.Parameters,
			}
			if origin, dup := seen[inst.Key()]; dup {
				return nil, fmt.Errorf("%w: %s declared in both %s and %s",
					api.ErrDuplicateInstance, inst.Key(), origin, path)
			}
			seen[inst.Key()] = path
			instances = append(instances, inst)
		}
	}
	return instances, nil
}
