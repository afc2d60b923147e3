package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/datar-psa/evalharness/config"
)

var rootCmd = &cobra.Command{
	Use:   "evalharness",
	Short: "Run declarative LLM evaluations against a matrix of models",
	Long: "evalharness executes evaluation instances declared in YAML files against " +
		"every model in the configured provider matrix and keeps an append-only " +
		"history of the scores.",
}

func init() {
	rootCmd.PersistentFlags().String("config", "data/evaluations/config.yaml", "Path to the run configuration file")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadRun loads the run configuration plus the instance files to use. With no
// positional arguments every .yaml file next to the configuration file is
// used, except the configuration file itself.
func loadRun(cmd *cobra.Command, args []string) (*config.RunConfig, []string, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	files := args
	if len(files) == 0 {
		matches, err := filepath.Glob(filepath.Join(filepath.Dir(configPath), "*.yaml"))
		if err != nil {
			return nil, nil, err
		}
		for _, match := range matches {
			if filepath.Base(match) == filepath.Base(configPath) {
				continue
			}
			files = append(files, match)
		}
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("no instance files found next to %s; pass them as arguments", configPath)
	}
	return cfg, files, nil
}
