package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/ai-visibility-audit/internal/config"
	"github.com/JakeFAU/ai-visibility-audit/internal/logging"
)

// envKeyType is the key for storing the command environment in the context.
type envKeyType string

const envKey envKeyType = "env"

// cmdEnv is what every subcommand needs before it starts.
type cmdEnv struct {
	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "ai-visibility-audit",
		Short: "Crawls a company's site and competitors and writes an AI visibility audit.",
		Long: `ai-visibility-audit accepts audit requests over HTTP, crawls the target
domain and its competitors, extracts evidence from the pages and asks an
LLM for a structured visibility audit.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			zap.ReplaceGlobals(logger)
			cmd.SetContext(context.WithValue(cmd.Context(), envKey, &cmdEnv{cfg: cfg, logger: logger}))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if env, ok := cmd.Context().Value(envKey).(*cmdEnv); ok {
				_ = env.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML)")
	cmd.AddCommand(newWorkerCmd(), newCrawlCmd())
	return cmd
}

func resolveEnv(ctx context.Context) (*cmdEnv, error) {
	env, ok := ctx.Value(envKey).(*cmdEnv)
	if !ok || env == nil {
		return nil, errors.New("command environment not initialized")
	}
	return env, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
