package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebairia/bakd/internal/logger"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	base := t.TempDir()
	return NewManager(
		filepath.Join(base, "work"),
		filepath.Join(base, "preserved"),
		logger.Discard(),
	)
}

func TestAllocate_CreatesFreshDirectory(t *testing.T) {
	m := newManager(t)

	path, err := m.Allocate("2026-08-25")
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, "run-2026-08-25", filepath.Base(path))
}

func TestAllocate_RefusesExistingWorkspace(t *testing.T) {
	m := newManager(t)

	_, err := m.Allocate("2026-08-25")
	require.NoError(t, err)

	_, err = m.Allocate("2026-08-25")
	require.ErrorIs(t, err, ErrAllocateFailed)
}

func TestRelease_IsIdempotent(t *testing.T) {
	m := newManager(t)

	path, err := m.Allocate("2026-08-25")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(path, "artifact"), []byte("x"), 0o644))

	require.NoError(t, m.Release(path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Releasing an already-removed workspace succeeds
	require.NoError(t, m.Release(path))
}

func TestRelease_RefusesPathsOutsideRoot(t *testing.T) {
	m := newManager(t)

	outside := t.TempDir()
	err := m.Release(outside)
	require.ErrorIs(t, err, ErrReleaseFailed)

	// the root itself is also refused
	err = m.Release(m.root)
	require.ErrorIs(t, err, ErrReleaseFailed)
}

func TestSweep_RemovesOnlyStaleRunDirectories(t *testing.T) {
	m := newManager(t)

	stale1, err := m.Allocate("2026-08-23")
	require.NoError(t, err)
	stale2, err := m.Allocate("2026-08-24")
	require.NoError(t, err)
	unrelated := filepath.Join(m.root, "keepme")
	require.NoError(t, os.Mkdir(unrelated, 0o755))

	removed, err := m.Sweep()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{stale1, stale2}, removed)

	_, err = os.Stat(unrelated)
	assert.NoError(t, err)
}

func TestSweep_NoRootIsNotAnError(t *testing.T) {
	m := newManager(t)

	removed, err := m.Sweep()
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestPreserve_MovesArtifactOutOfWorkspace(t *testing.T) {
	m := newManager(t)

	path, err := m.Allocate("2026-08-25")
	require.NoError(t, err)
	archive := filepath.Join(path, "2026-08-25-backup.zip")
	require.NoError(t, os.WriteFile(archive, []byte("zip"), 0o644))

	dest, err := m.Preserve(archive, "2026-08-25")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(m.preserveDir, "2026-08-25-backup.zip"), dest)

	// gone from the workspace, present in the preserve dir
	_, err = os.Stat(archive)
	assert.True(t, os.IsNotExist(err))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "zip", string(data))

	// workspace cleanup does not touch the preserved artifact
	require.NoError(t, m.Release(path))
	_, err = os.Stat(dest)
	assert.NoError(t, err)
}
