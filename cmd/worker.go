package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/ai-visibility-audit/internal/server"
)

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Runs the HTTP API and the audit worker",
		Long: `Serves the audit API and runs the single-instance worker until SIGINT or
SIGTERM. The process exits with an error when another worker holds the lease.`,
		Args: cobra.NoArgs,
		RunE: runWorker,
	}
}

func runWorker(cmd *cobra.Command, _ []string) error {
	env, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := server.Build(ctx, env.cfg, env.logger)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	defer app.Close(context.WithoutCancel(ctx))

	if err := app.Run(ctx); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}
