package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kebairia/bakd/internal/config"
	"github.com/kebairia/bakd/internal/export"
	"github.com/kebairia/bakd/internal/logger"
	"github.com/kebairia/bakd/internal/notify"
	"github.com/kebairia/bakd/internal/run"
	"github.com/kebairia/bakd/internal/vault"
	"github.com/kebairia/bakd/internal/workspace"
)

// ConfigFile is the path to the YAML configuration.
var (
	ConfigFile string
	// rootCmd is the base command for bakd.
	rootCmd = &cobra.Command{
		Use:   "bakd",
		Short: "Nightly backup pipeline",
		Long: `bakd snapshots the relational and document stores, bundles the
snapshots into one archive, delivers the archive by mail, and cleans
up after itself. Run it once with "run" or as a daemon with "serve".`,
	}
)

// Execute runs the root command.
func Execute() {
	log, err := logger.Init()
	if err != nil {
		panic(err)
	}
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		log.Error("command failed", "error", err.Error())
	}
}

func init() {
	rootCmd.PersistentFlags().
		StringVarP(&ConfigFile, "config", "c", "./configs/config.yaml", "path to YAML config file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
}

// buildPipeline loads and validates the config, then wires the orchestrator,
// its workspace manager, and the scheduler's collaborators together.
func buildPipeline(ctx context.Context) (config.Config, *run.Orchestrator, *workspace.Manager, error) {
	var cfg config.Config
	if err := cfg.Load(ConfigFile); err != nil {
		return cfg, nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, nil, err
	}

	log, err := logger.Init()
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("logger init: %w", err)
	}

	var vaultClient *vault.Client
	if cfg.Vault.Enabled {
		vaultClient, err = vault.NewClient(ctx,
			vault.WithAddress(cfg.Vault.Address),
			vault.WithAppRole(cfg.Vault.RoleID, cfg.Vault.RoleName),
		)
		if err != nil {
			return cfg, nil, nil, fmt.Errorf("vault client init: %w", err)
		}
	}

	relational, document, err := export.InitExporters(ctx, cfg, vaultClient)
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("initialize exporters: %w", err)
	}

	notifier, err := notify.NewMailer(
		notify.WithMailerHost(cfg.Mail.Host),
		notify.WithMailerPort(cfg.Mail.Port),
		notify.WithMailerCredentials(cfg.Mail.Username, cfg.Mail.Password),
		notify.WithMailerFrom(cfg.Mail.From),
	)
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("initialize mailer: %w", err)
	}

	workspaces := workspace.NewManager(cfg.Backup.WorkspaceRoot, cfg.Backup.PreserveDir, log)
	orch := run.NewOrchestrator(cfg, log, workspaces, relational, document, notifier)
	return cfg, orch, workspaces, nil
}
