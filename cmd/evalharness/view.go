package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/datar-psa/evalharness/api"
	"github.com/datar-psa/evalharness/config"
	"github.com/datar-psa/evalharness/store"
)

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Print the latest result for every evaluation and model",
	RunE:  runView,
}

func init() {
	viewCmd.Flags().Bool("outputs", false, "Additionally print model outputs")
	rootCmd.AddCommand(viewCmd)
}

func runView(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	showOutputs, _ := cmd.Flags().GetBool("outputs")

	cfg, err := configForView(configPath)
	if err != nil {
		return err
	}

	s, err := store.Open(store.Options{Path: cfg.StorePath, Logger: newLogger(cmd)})
	if err != nil {
		return err
	}
	defer s.Close()

	records, err := s.LatestAll()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no results stored yet")
		return nil
	}

	out := cmd.OutOrStdout()

	// Group by evaluation, one line per provider.model underneath.
	type evalKey struct{ Name, Type string }
	grouped := make(map[evalKey][]api.ResultRecord)
	var order []evalKey
	for _, record := range records {
		key := evalKey{Name: record.Name, Type: record.Type}
		if _, seen := grouped[key]; !seen {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], record)
	}

	for _, key := range order {
		fmt.Fprintf(out, "%s (%s)\n", key.Name, key.Type)
		for _, record := range grouped[key] {
			modelKey := record.ModelProvider + "." + record.ModelName
			switch {
			case record.Error != nil:
				fmt.Fprintf(out, "  %s: error in %s: %s\n", modelKey, record.Error.Phase, record.Error.Message)
			case record.Score != nil:
				fmt.Fprintf(out, "  %s: %.2f\n", modelKey, *record.Score)
			default:
				fmt.Fprintf(out, "  %s: no score\n", modelKey)
			}
			if showOutputs {
				if text := record.OutputText(); text != "" {
					fmt.Fprintf(out, "    %s\n", text)
				}
			}
		}
		fmt.Fprintln(out)
	}

	printModelAverages(out, records)
	return nil
}

// configForView loads the run configuration for its store path, falling back
// to the default location when no configuration file exists.
func configForView(path string) (*config.RunConfig, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return &config.RunConfig{StorePath: config.DefaultStorePath}, nil
	}
	return cfg, err
}

// printModelAverages aggregates scored records per provider.model. Errored
// records are counted separately and never pulled into the average.
func printModelAverages(out io.Writer, records []api.ResultRecord) {
	type modelStats struct {
		sum    float64
		scored int
		errors int
	}
	stats := make(map[string]*modelStats)
	for _, record := range records {
		modelKey := record.ModelProvider + "." + record.ModelName
		st := stats[modelKey]
		if st == nil {
			st = &modelStats{}
			stats[modelKey] = st
		}
		if record.Error != nil {
			st.errors++
			continue
		}
		if record.Score != nil {
			st.sum += *record.Score
			st.scored++
		}
	}

	models := make([]string, 0, len(stats))
	for modelKey := range stats {
		models = append(models, modelKey)
	}
	sort.Strings(models)

	fmt.Fprintln(out, "Model Averages")
	for _, modelKey := range models {
		st := stats[modelKey]
		line := fmt.Sprintf("  %s (%d evals)", modelKey, st.scored)
		if st.scored > 0 {
			line += fmt.Sprintf(": %.2f", st.sum/float64(st.scored))
		} else {
			line += ": no scores"
		}
		if st.errors > 0 {
			line += fmt.Sprintf(", %d errored", st.errors)
		}
		fmt.Fprintln(out, line)
	}
}
