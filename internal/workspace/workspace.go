package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kebairia/bakd/internal/logger"
)

var (
	ErrAllocateFailed = errors.New("workspace allocation failed")
	ErrReleaseFailed  = errors.New("workspace release failed")
)

// runDirPrefix names every run workspace under the root.
const runDirPrefix = "run-"

// Manager owns the temporary directories backup runs write into, and the
// preserve directory that outlives them.
type Manager struct {
	root        string
	preserveDir string
	log         logger.Logger
}

// NewManager returns a Manager rooted at root. preserveDir receives archives
// rescued from runs whose delivery failed; it is never swept.
func NewManager(root, preserveDir string, log logger.Logger) *Manager {
	return &Manager{root: root, preserveDir: preserveDir, log: log}
}

// Allocate creates a fresh directory for runID and returns its path. It fails
// if the directory already exists, guarding against two runs sharing a
// workspace.
func (m *Manager) Allocate(runID string) (string, error) {
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return "", fmt.Errorf("%w: mkdir root %q: %v", ErrAllocateFailed, m.root, err)
	}
	path := filepath.Join(m.root, runDirPrefix+runID)
	if err := os.Mkdir(path, 0o755); err != nil {
		if os.IsExist(err) {
			return "", fmt.Errorf("%w: workspace for run %q already exists", ErrAllocateFailed, runID)
		}
		return "", fmt.Errorf("%w: mkdir %q: %v", ErrAllocateFailed, path, err)
	}
	return path, nil
}

// Release removes the workspace directory and everything inside it. It is
// idempotent: releasing an already-removed path succeeds. Paths outside the
// managed root are refused.
func (m *Manager) Release(path string) error {
	if !m.owns(path) {
		return fmt.Errorf("%w: %q is not under workspace root %q", ErrReleaseFailed, path, m.root)
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("%w: remove %q: %v", ErrReleaseFailed, path, err)
	}
	return nil
}

// Sweep removes every run directory under the root. Called at startup so
// workspaces left by a crashed process are treated as failed runs and cleaned,
// never resumed.
func (m *Manager) Sweep() ([]string, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read root %q: %v", ErrReleaseFailed, m.root, err)
	}

	var removed []string
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), runDirPrefix) {
			continue
		}
		path := filepath.Join(m.root, entry.Name())
		if err := m.Release(path); err != nil {
			return removed, err
		}
		m.log.Warn("removed stale workspace from a previous run", "path", path)
		removed = append(removed, path)
	}
	return removed, nil
}

// Preserve moves a run artifact out of the workspace into the preserve
// directory, so the following cleanup does not destroy it. Returns the
// artifact's new path.
func (m *Manager) Preserve(artifactPath, runID string) (string, error) {
	if err := os.MkdirAll(m.preserveDir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir preserve dir %q: %w", m.preserveDir, err)
	}
	dest := filepath.Join(m.preserveDir, filepath.Base(artifactPath))
	if err := os.Rename(artifactPath, dest); err != nil {
		return "", fmt.Errorf("preserve %q for run %s: %w", artifactPath, runID, err)
	}
	return dest, nil
}

// owns reports whether path is a direct child of the managed root.
func (m *Manager) owns(path string) bool {
	rel, err := filepath.Rel(m.root, path)
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..") && !strings.Contains(rel, string(os.PathSeparator))
}
