package export

import (
	"context"
	"fmt"

	"github.com/kebairia/bakd/internal/config"
	"github.com/kebairia/bakd/internal/vault"
)

// resolveCredentials returns the username/password for one store: a dynamic
// Vault credential when a role is configured, otherwise the static config pair.
func resolveCredentials(
	ctx context.Context,
	cfg config.Config,
	store config.StoreConfig,
	vaultClient *vault.Client,
) (string, string, error) {
	if cfg.Vault.Enabled && store.VaultRole != "" {
		if vaultClient == nil {
			return "", "", fmt.Errorf("vault role %q configured but no vault client", store.VaultRole)
		}
		creds, err := vaultClient.GetDynamicCredentials(ctx, store.VaultRole)
		if err != nil {
			return "", "", fmt.Errorf("vault read %q: %w", store.VaultRole, err)
		}
		return creds.Username, creds.Password, nil
	}
	return store.Username, store.Password, nil
}

// InitExporters builds the relational and document exporters from config,
// resolving store credentials through Vault when enabled.
func InitExporters(
	ctx context.Context,
	cfg config.Config,
	vaultClient *vault.Client,
) (relational, document Exporter, err error) {
	user, pass, err := resolveCredentials(ctx, cfg, cfg.Relational, vaultClient)
	if err != nil {
		return nil, nil, fmt.Errorf("relational credentials: %w", err)
	}
	pg, err := NewPostgres(
		WithPostgresHost(cfg.Relational.Host),
		WithPostgresPort(cfg.Relational.Port),
		WithPostgresCredentials(user, pass),
		WithPostgresDatabase(cfg.Relational.Database),
		WithPostgresTimeout(cfg.Backup.ExportTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize postgres exporter: %w", err)
	}

	user, pass, err = resolveCredentials(ctx, cfg, cfg.Document, vaultClient)
	if err != nil {
		return nil, nil, fmt.Errorf("document credentials: %w", err)
	}
	mg, err := NewMongoDB(
		WithMongoHost(cfg.Document.Host),
		WithMongoPort(cfg.Document.Port),
		WithMongoCredentials(user, pass),
		WithMongoDatabase(cfg.Document.Database),
		WithMongoTimeout(cfg.Backup.ExportTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize mongodb exporter: %w", err)
	}

	return pg, mg, nil
}
