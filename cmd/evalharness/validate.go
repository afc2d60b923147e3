package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/datar-psa/evalharness/config"
	"github.com/datar-psa/evalharness/llm"
	"github.com/datar-psa/evalharness/strategy"
)

var validateCmd = &cobra.Command{
	Use:   "validate [instance files...]",
	Short: "Check the run configuration and instance files without calling any model",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, files, err := loadRun(cmd, args)
	if err != nil {
		return err
	}

	instances, err := config.LoadInstances(files...)
	if err != nil {
		return err
	}

	// Construction exercises the full parameter validation of each strategy.
	env := strategy.DefaultEnv(llm.NewRouter())
	env.Judge = strategy.Judge{Provider: cfg.EvaluationProvider, Model: cfg.EvaluationModel}
	registry := strategy.DefaultRegistry()

	out := cmd.OutOrStdout()
	invalid := 0
	for _, inst := range instances {
		factory, err := registry.Resolve(inst.Type)
		if err != nil {
			fmt.Fprintf(out, "INVALID %s: %v\n", inst.Key(), err)
			invalid++
			continue
		}
		if _, err := factory(inst, env); err != nil {
			fmt.Fprintf(out, "INVALID %s: %v\n", inst.Key(), err)
			invalid++
			continue
		}
		fmt.Fprintf(out, "ok      %s\n", inst.Key())
	}

	fmt.Fprintf(out, "\n%d instances, %d invalid\n", len(instances), invalid)
	if invalid > 0 {
		return fmt.Errorf("%d invalid instances", invalid)
	}
	return nil
}
