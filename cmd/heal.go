package cmd

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/suture-cli/internal/config"
	"github.com/xkilldash9x/suture-cli/internal/healer"
	"github.com/xkilldash9x/suture-cli/internal/heuristics"
	"github.com/xkilldash9x/suture-cli/internal/llmclient"
	"github.com/xkilldash9x/suture-cli/internal/observability"
	"github.com/xkilldash9x/suture-cli/internal/patch"
	"github.com/xkilldash9x/suture-cli/internal/reasoner"
	"github.com/xkilldash9x/suture-cli/internal/runner"
)

// newHealCmd creates and configures the `heal` command.
func newHealCmd() *cobra.Command {
	healCmd := &cobra.Command{
		Use:   "heal [test-files...]",
		Short: "Runs the failing tests and attempts to repair them",
		Long: `Runs each test file through the healing pipeline: collect failure
evidence, classify it, diagnose the root cause, apply a minimal patch and
verify the fix. One decision and one timeline artifact are written per
attempt. Files are healed concurrently; two invocations must never target
the same file.`,
		Args: cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their Viper keys so command-line values override
			// the config file and environment with the right precedence.
			if err := viper.BindPFlag("healer.max_attempts", cmd.Flags().Lookup("attempts")); err != nil {
				return err
			}
			if err := viper.BindPFlag("healer.artifacts_dir", cmd.Flags().Lookup("artifacts-dir")); err != nil {
				return err
			}
			if err := viper.BindPFlag("runner.timeout", cmd.Flags().Lookup("runner-timeout")); err != nil {
				return err
			}
			return viper.BindPFlag("runner.results_dir", cmd.Flags().Lookup("results-dir"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}
			config.Set(cfg)
			return runHeal(cmd.Context(), cfg, observability.GetLogger(), args)
		},
	}

	healCmd.Flags().Int("attempts", 2, "maximum healing attempts per file")
	healCmd.Flags().String("artifacts-dir", "artifacts", "directory for decision and timeline artifacts")
	healCmd.Flags().Duration("runner-timeout", 0, "wall-clock bound for one test run (0 uses config)")
	healCmd.Flags().String("results-dir", "test-results", "runner results directory scanned for screenshots")

	return healCmd
}

// runHeal contains the testable business logic for the command.
func runHeal(ctx context.Context, cfg *config.Config, logger *zap.Logger, files []string) error {
	llmClient, err := llmclient.NewClient(ctx, cfg.Agent, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	defer llmClient.Close()

	testRunner, err := runner.New(cfg.Runner, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize test runner: %w", err)
	}
	recorder, err := healer.NewRecorder(cfg.Healer.ArtifactsDir, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize artifact recorder: %w", err)
	}

	h := healer.New(
		testRunner,
		heuristics.Default(logger),
		reasoner.New(llmClient, cfg.Agent.LLM.Temperature, logger),
		patch.NewApplier(cfg.Healer.SimilarityThreshold, logger),
		recorder,
		cfg.Healer.MaxAttempts,
		logger,
	)

	// Distinct files share no mutable state, so they heal concurrently.
	var mu sync.Mutex
	results := make(map[string]*healer.Result, len(files))

	g, gctx := errgroup.WithContext(ctx)
	for _, file := range files {
		g.Go(func() error {
			res, err := h.Heal(gctx, file)
			if err != nil {
				return fmt.Errorf("healing %s: %w", file, err)
			}
			mu.Lock()
			results[file] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	exhausted := 0
	for _, file := range files {
		res := results[file]
		switch {
		case res.AlreadyPassing:
			logger.Info("Test already passing, nothing to heal", zap.String("file", file))
		case res.State == healer.StateSucceeded:
			logger.Info("Test healed",
				zap.String("file", file),
				zap.Int("attempts", res.Attempts),
				zap.Strings("decisions", res.Decisions),
			)
		default:
			exhausted++
			logger.Warn("Healing exhausted",
				zap.String("file", file),
				zap.Int("attempts", res.Attempts),
				zap.Strings("decisions", res.Decisions),
			)
		}
	}

	if exhausted > 0 {
		return fmt.Errorf("%d of %d test file(s) could not be healed", exhausted, len(files))
	}
	return nil
}
