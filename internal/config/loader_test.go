package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestLoad_ParsesPipelineSettings(t *testing.T) {
	yaml := `
backup:
  schedule: "30 1 * * *"
  workspace_root: "/var/lib/bakd/work"
  preserve_dir: "/var/lib/bakd/preserved"
  export_timeout: 20m
  delivery_retries: 5
mail:
  host: "smtp.example.com"
  from: "backups@example.com"
  to: "ops@example.com"
relational:
  host: "db.example.com"
  port: "5432"
  database: "app"
  username: "backup"
document:
  host: "mongo.example.com"
  port: "27017"
  database: "app"
  username: "backup"
`
	var cfg Config
	require.NoError(t, cfg.Load(writeConfig(t, yaml)))

	assert.Equal(t, "30 1 * * *", cfg.Backup.Schedule)
	assert.Equal(t, "/var/lib/bakd/work", cfg.Backup.WorkspaceRoot)
	assert.Equal(t, 20*time.Minute, cfg.Backup.ExportTimeout)
	assert.Equal(t, 5, cfg.Backup.DeliveryRetries)
	assert.Equal(t, "app", cfg.Relational.Database)
	assert.Equal(t, "mongo.example.com", cfg.Document.Host)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	yaml := `
backup:
  workspace_root: "/tmp/work"
  preserve_dir: "/tmp/preserved"
mail:
  host: "smtp.example.com"
  from: "backups@example.com"
  to: "ops@example.com"
`
	var cfg Config
	require.NoError(t, cfg.Load(writeConfig(t, yaml)))

	assert.Equal(t, "0 2 * * *", cfg.Backup.Schedule)
	assert.Equal(t, 15*time.Minute, cfg.Backup.ExportTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Backup.DeliveryTimeout)
	assert.Equal(t, 3, cfg.Backup.DeliveryRetries)
	assert.Equal(t, 30*time.Second, cfg.Backup.DeliveryBackoff)
	assert.Equal(t, 587, cfg.Mail.Port)
}

func TestLoad_NegativeDeliveryRetriesFallsBackToDefault(t *testing.T) {
	yaml := `
backup:
  workspace_root: "/tmp/work"
  preserve_dir: "/tmp/preserved"
  delivery_retries: -1
mail:
  host: "smtp.example.com"
  from: "backups@example.com"
  to: "ops@example.com"
`
	var cfg Config
	require.NoError(t, cfg.Load(writeConfig(t, yaml)))

	assert.Equal(t, 3, cfg.Backup.DeliveryRetries)
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	yaml := `
backup:
  workspace_root: "/tmp/work"
  not_a_setting: true
`
	var cfg Config
	err := cfg.Load(writeConfig(t, yaml))
	require.ErrorIs(t, err, ErrLoadConfig)
}

func TestValidate_ReportsMissingSettings(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrValidateConfig)
	assert.Contains(t, err.Error(), "mail.to is required")
	assert.Contains(t, err.Error(), "backup.workspace_root is required")
}

func TestValidate_RequiresCredentialSource(t *testing.T) {
	cfg := Config{
		Backup: BackupConfig{WorkspaceRoot: "/tmp/w", PreserveDir: "/tmp/p"},
		Mail:   MailConfig{Host: "smtp.example.com", From: "a@b.c", To: "d@e.f"},
		Vault:  VaultConfig{Enabled: true, RoleID: "rid"},
		Relational: StoreConfig{
			Host: "db", Database: "app", // no vault_role, no username
		},
		Document: StoreConfig{Host: "mongo", Database: "app", VaultRole: "mongo-backup"},
	}
	cfg.applyDefaults()

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrValidateConfig)
	assert.Contains(t, err.Error(), "relational: either vault_role or username is required")
}
