package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kebairia/bakd/internal/logger"
	"github.com/kebairia/bakd/internal/run"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the backup scheduler as a daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, orch, workspaces, err := buildPipeline(ctx)
		if err != nil {
			return err
		}

		sched, err := run.NewScheduler(cfg.Backup.Schedule, orch, workspaces, logger.Global())
		if err != nil {
			return err
		}
		return sched.Start(ctx)
	},
}
