package export

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/kebairia/bakd/internal/logger"
)

// PostgresOption lets you override default settings on a Postgres.
type PostgresOption func(*Postgres)

// Postgres exports a PostgreSQL database with pg_dump.
type Postgres struct {
	Username string
	Password string
	Database string
	Host     string
	Port     string
	Method   string // pg_dump output format: "custom", "plain", "tar"
	Timeout  time.Duration
	Logger   logger.Logger
}

// NewPostgres returns a Postgres exporter with the given overrides applied.
func NewPostgres(opts ...PostgresOption) (*Postgres, error) {
	log, err := logger.Init()
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	p := &Postgres{
		Host:    "localhost",
		Port:    "5432",
		Method:  "custom",
		Timeout: 15 * time.Minute,
		Logger:  log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// WithPostgresHost overrides the host.
func WithPostgresHost(host string) PostgresOption {
	return func(p *Postgres) {
		if host != "" {
			p.Host = host
		}
	}
}

// WithPostgresPort overrides the port.
func WithPostgresPort(port string) PostgresOption {
	return func(p *Postgres) {
		if port != "" {
			p.Port = port
		}
	}
}

// WithPostgresCredentials sets username and password.
func WithPostgresCredentials(user, pass string) PostgresOption {
	return func(p *Postgres) {
		if user != "" {
			p.Username = user
		}
		if pass != "" {
			p.Password = pass
		}
	}
}

// WithPostgresDatabase overrides the database name.
func WithPostgresDatabase(db string) PostgresOption {
	return func(p *Postgres) {
		if db != "" {
			p.Database = db
		}
	}
}

// WithPostgresMethod overrides the dump format (custom/plain/tar).
func WithPostgresMethod(method string) PostgresOption {
	return func(p *Postgres) {
		if method != "" {
			p.Method = method
		}
	}
}

// WithPostgresTimeout overrides the per-export timeout.
func WithPostgresTimeout(timeout time.Duration) PostgresOption {
	return func(p *Postgres) {
		if timeout > 0 {
			p.Timeout = timeout
		}
	}
}

// Export runs `pg_dump` and writes the snapshot to dest as a single file.
func (p *Postgres) Export(ctx context.Context, dest string) error {
	log := p.Logger
	ctx, cancel := context.WithTimeoutCause(ctx, p.Timeout, ErrTimeout)
	defer cancel()

	// Ensure the parent directory exists
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("mkdir %q: %w", filepath.Dir(dest), err)
	}

	args := []string{
		"-h", p.Host,
		"-p", p.Port,
		"-U", p.Username,
		"-d", p.Database,
		"-F", p.Method,
		"-f", dest,
	}

	cmd := exec.CommandContext(ctx, "pg_dump", args...)
	// Pass PGPASSWORD for non-interactive auth
	cmd.Env = append(os.Environ(), "PGPASSWORD="+p.Password)
	cmd.Stderr = os.Stderr

	log.Info("export started",
		"store", p.Database,
		"kind", KindRelational,
		"method", p.Method,
		"path", dest,
	)

	startTime := time.Now()
	if err := cmd.Run(); err != nil {
		if cause := context.Cause(ctx); cause != nil && ctx.Err() != nil {
			err = cause
		}
		return fmt.Errorf("%w: pg_dump: %v", ErrExportFailed, err)
	}
	executionDuration := time.Since(startTime)

	log.Info("export completed",
		"store", p.Database,
		"kind", KindRelational,
		"path", dest,
		"duration", executionDuration.String(),
	)
	return nil
}

func (p *Postgres) Kind() Kind { return KindRelational }

func (p *Postgres) Store() string { return p.Database }
