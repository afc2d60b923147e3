package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/genai"

	"github.com/datar-psa/evalharness"
	"github.com/datar-psa/evalharness/config"
	"github.com/datar-psa/evalharness/llm"
	"github.com/datar-psa/evalharness/llm/gemini"
	"github.com/datar-psa/evalharness/llm/openai"
	"github.com/datar-psa/evalharness/store"
)

var runCmd = &cobra.Command{
	Use:   "run [instance files...]",
	Short: "Execute evaluation instances against the configured model matrix",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().Bool("skip-existing", false, "Skip pairs that already have a stored result")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)

	cfg, files, err := loadRun(cmd, args)
	if err != nil {
		return err
	}
	if skip, _ := cmd.Flags().GetBool("skip-existing"); skip {
		cfg.SkipExisting = true
	}

	instances, err := config.LoadInstances(files...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clients, err := buildRouter(ctx, cfg)
	if err != nil {
		return err
	}

	s, err := store.Open(store.Options{Path: cfg.StorePath, SyncWrites: true, Logger: logger})
	if err != nil {
		return err
	}
	defer s.Close()

	h, err := evalharness.NewHarness(
		evalharness.WithStore(s),
		evalharness.WithClients(clients),
		evalharness.WithJudge(cfg.EvaluationProvider, cfg.EvaluationModel),
		evalharness.WithWorkers(cfg.Workers),
		evalharness.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	summary, err := h.Run(ctx, evalharness.RunRequest{
		Instances:    instances,
		Models:       cfg.Models,
		SkipExisting: cfg.SkipExisting,
	})
	if summary != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%d pairs: %d succeeded, %d failed, %d skipped\n",
			summary.Total, summary.Succeeded, summary.Failed, summary.Skipped)
	}
	return err
}

// buildRouter registers a client for every provider the run configuration
// names. API keys come from the environment, matching each SDK's convention.
func buildRouter(ctx context.Context, cfg *config.RunConfig) (*llm.Router, error) {
	router := llm.NewRouter()
	for provider := range cfg.Models {
		if err := registerProvider(ctx, router, provider); err != nil {
			return nil, err
		}
	}
	if cfg.EvaluationProvider != "" {
		if _, err := router.Client(cfg.EvaluationProvider); err != nil {
			if err := registerProvider(ctx, router, cfg.EvaluationProvider); err != nil {
				return nil, err
			}
		}
	}
	return router, nil
}

func registerProvider(ctx context.Context, router *llm.Router, provider string) error {
	switch provider {
	case llm.ProviderOpenAI:
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return fmt.Errorf("provider %q requires OPENAI_API_KEY", provider)
		}
		router.Register(provider, openai.NewClient(key))
	case llm.ProviderGemini:
		client, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
		if err != nil {
			return fmt.Errorf("create gemini client: %w", err)
		}
		router.Register(provider, gemini.NewClient(client))
	default:
		return fmt.Errorf("unsupported provider %q", provider)
	}
	return nil
}
