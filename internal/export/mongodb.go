package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/kebairia/bakd/internal/logger"
)

// MongoDBOption defines a functional option for configuring a MongoDB exporter.
type MongoDBOption func(*MongoDB)

// MongoDB exports a MongoDB database with mongodump.
type MongoDB struct {
	Username string
	Password string
	Database string
	Host     string
	Port     string
	Timeout  time.Duration
	Logger   logger.Logger
}

// NewMongoDB returns a MongoDB exporter with the given overrides applied.
func NewMongoDB(opts ...MongoDBOption) (*MongoDB, error) {
	log, err := logger.Init()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	m := &MongoDB{
		Host:    "localhost",
		Port:    "27017",
		Timeout: 15 * time.Minute,
		Logger:  log,
	}

	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// WithMongoHost overrides the database host.
func WithMongoHost(host string) MongoDBOption {
	return func(m *MongoDB) {
		if host != "" {
			m.Host = host
		}
	}
}

// WithMongoPort overrides the database port.
func WithMongoPort(port string) MongoDBOption {
	return func(m *MongoDB) {
		if port != "" {
			m.Port = port
		}
	}
}

// WithMongoCredentials overrides the username and password.
func WithMongoCredentials(username, password string) MongoDBOption {
	return func(m *MongoDB) {
		if username != "" {
			m.Username = username
		}
		if password != "" {
			m.Password = password
		}
	}
}

// WithMongoDatabase overrides the database name.
func WithMongoDatabase(database string) MongoDBOption {
	return func(m *MongoDB) {
		if database != "" {
			m.Database = database
		}
	}
}

// WithMongoTimeout overrides the per-export timeout.
func WithMongoTimeout(timeout time.Duration) MongoDBOption {
	return func(m *MongoDB) {
		if timeout > 0 {
			m.Timeout = timeout
		}
	}
}

// Export runs `mongodump` in directory mode; dest becomes the dump directory.
func (m *MongoDB) Export(ctx context.Context, dest string) error {
	log := m.Logger
	ctx, cancel := context.WithTimeoutCause(ctx, m.Timeout, ErrTimeout)
	defer cancel()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("mkdir %q: %w", filepath.Dir(dest), err)
	}

	args := []string{
		"--host=" + m.Host,
		"--port=" + m.Port,
		"--username=" + m.Username,
		"--password=" + m.Password,
		"--authenticationDatabase=admin",
		"--db=" + m.Database,
		"--quiet",
		"--out=" + dest,
	}

	cmd := exec.CommandContext(ctx, "mongodump", args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = os.Stderr

	log.Info("export started",
		"store", m.Database,
		"kind", KindDocument,
		"path", dest,
	)
	startTime := time.Now()
	if err := cmd.Run(); err != nil {
		if cause := context.Cause(ctx); cause != nil && ctx.Err() != nil {
			err = cause
		}
		return fmt.Errorf("%w: mongodump: %v", ErrExportFailed, err)
	}
	executionDuration := time.Since(startTime)

	log.Info("export completed",
		"store", m.Database,
		"kind", KindDocument,
		"path", dest,
		"duration", executionDuration.String(),
	)
	return nil
}

func (m *MongoDB) Kind() Kind { return KindDocument }

func (m *MongoDB) Store() string { return m.Database }
