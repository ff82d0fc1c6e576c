package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// ErrLoadConfig indicates a failure to read or parse the YAML configuration.
var ErrLoadConfig = errors.New("config load failed")

// ErrValidateConfig indicates that the loaded configuration is invalid.
var ErrValidateConfig = errors.New("configuration validation failed")

// Config represents the top-level YAML configuration file.
type Config struct {
	Include []string     `mapstructure:"include"    yaml:"include,omitempty"`
	Backup  BackupConfig `mapstructure:"backup"     yaml:"backup"`
	Mail    MailConfig   `mapstructure:"mail"       yaml:"mail"`
	Vault   VaultConfig  `mapstructure:"vault"      yaml:"vault"`

	// The two stores the pipeline snapshots
	Relational StoreConfig `mapstructure:"relational" yaml:"relational"`
	Document   StoreConfig `mapstructure:"document"   yaml:"document"`
}

// BackupConfig contains the pipeline options.
type BackupConfig struct {
	Schedule        string        `mapstructure:"schedule"         yaml:"schedule"`
	WorkspaceRoot   string        `mapstructure:"workspace_root"   yaml:"workspace_root"`
	PreserveDir     string        `mapstructure:"preserve_dir"     yaml:"preserve_dir"`
	ExportTimeout   time.Duration `mapstructure:"export_timeout"   yaml:"export_timeout"`
	DeliveryTimeout time.Duration `mapstructure:"delivery_timeout" yaml:"delivery_timeout"`
	DeliveryRetries int           `mapstructure:"delivery_retries" yaml:"delivery_retries"`
	DeliveryBackoff time.Duration `mapstructure:"delivery_backoff" yaml:"delivery_backoff"`
}

// MailConfig holds the SMTP delivery settings.
type MailConfig struct {
	Host     string `mapstructure:"host"     yaml:"host"`
	Port     int    `mapstructure:"port"     yaml:"port"`
	Username string `mapstructure:"username" yaml:"username,omitempty"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	From     string `mapstructure:"from"     yaml:"from"`
	To       string `mapstructure:"to"       yaml:"to"`
}

// VaultConfig holds connection settings for HashiCorp Vault.
type VaultConfig struct {
	Enabled  bool   `mapstructure:"enabled"   yaml:"enabled"`
	Address  string `mapstructure:"address"   yaml:"address,omitempty"`
	RoleID   string `mapstructure:"role_id"   yaml:"role_id,omitempty"`
	RoleName string `mapstructure:"role_name" yaml:"role_name,omitempty"`
}

// StoreConfig describes one data store to export.
type StoreConfig struct {
	Host      string `mapstructure:"host"       yaml:"host"`
	Port      string `mapstructure:"port"       yaml:"port"`
	Database  string `mapstructure:"database"   yaml:"database"`
	Username  string `mapstructure:"username"   yaml:"username,omitempty"`
	Password  string `mapstructure:"password"   yaml:"password,omitempty"`
	VaultRole string `mapstructure:"vault_role" yaml:"vault_role,omitempty"`
}

// Load reads the configuration from the given YAML file using Viper,
// merges any included files, and unmarshals into the Config struct.
func (c *Config) Load(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	// Read base configuration
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: read base config %s: %v", ErrLoadConfig, path, err)
	}

	// Merge include files (if any)
	for _, inc := range v.GetStringSlice("include") {
		data, err := os.ReadFile(inc)
		if err != nil {
			return fmt.Errorf("%w: read include %s: %v", ErrLoadConfig, inc, err)
		}
		if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
			return fmt.Errorf("%w: merge include %s: %v", ErrLoadConfig, inc, err)
		}
	}

	// Unmarshal into the Config struct
	if err := v.UnmarshalExact(c); err != nil {
		return fmt.Errorf("%w: unmarshal config: %v", ErrLoadConfig, err)
	}

	c.applyDefaults()

	return nil
}

// applyDefaults fills in the optional pipeline settings.
func (c *Config) applyDefaults() {
	if c.Backup.Schedule == "" {
		c.Backup.Schedule = "0 2 * * *" // nightly at 02:00 local time
	}
	if c.Backup.ExportTimeout == 0 {
		c.Backup.ExportTimeout = 15 * time.Minute
	}
	if c.Backup.DeliveryTimeout == 0 {
		c.Backup.DeliveryTimeout = 2 * time.Minute
	}
	// A negative retry count would wrap when converted for the retry policy.
	if c.Backup.DeliveryRetries <= 0 {
		c.Backup.DeliveryRetries = 3
	}
	if c.Backup.DeliveryBackoff == 0 {
		c.Backup.DeliveryBackoff = 30 * time.Second
	}
	if c.Mail.Port == 0 {
		c.Mail.Port = 587
	}
}

// Validate checks the settings the pipeline cannot run without.
func (c *Config) Validate() error {
	var problems []string

	if c.Backup.WorkspaceRoot == "" {
		problems = append(problems, "backup.workspace_root is required")
	}
	if c.Backup.PreserveDir == "" {
		problems = append(problems, "backup.preserve_dir is required")
	}
	if c.Mail.Host == "" {
		problems = append(problems, "mail.host is required")
	}
	if c.Mail.From == "" {
		problems = append(problems, "mail.from is required")
	}
	if c.Mail.To == "" {
		problems = append(problems, "mail.to is required")
	}
	for name, store := range map[string]StoreConfig{
		"relational": c.Relational,
		"document":   c.Document,
	} {
		if store.Host == "" {
			problems = append(problems, name+".host is required")
		}
		if store.Database == "" {
			problems = append(problems, name+".database is required")
		}
		if c.Vault.Enabled && store.VaultRole == "" && store.Username == "" {
			problems = append(problems, name+": either vault_role or username is required")
		}
	}
	if c.Vault.Enabled && c.Vault.RoleID == "" {
		problems = append(problems, "vault.role_id is required when vault is enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %v", ErrValidateConfig, problems)
	}
	return nil
}
