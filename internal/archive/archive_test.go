package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestBuild_BundlesFileAndDirectory(t *testing.T) {
	dir := t.TempDir()
	dump := filepath.Join(dir, "relational-2026-08-25.dump")
	writeFile(t, dump, "dump contents")
	docs := filepath.Join(dir, "document-2026-08-25")
	writeFile(t, filepath.Join(docs, "app", "users.bson"), "bson")
	writeFile(t, filepath.Join(docs, "app", "users.metadata.json"), "{}")

	archivePath := filepath.Join(dir, "2026-08-25-backup.zip")
	sum, err := Build(context.Background(), archivePath, []Entry{
		{Source: dump, Name: "relational-2026-08-25"},
		{Source: docs, Name: "document-2026-08-25"},
	})
	require.NoError(t, err)
	assert.Equal(t, archivePath, sum.Path)
	assert.Equal(t, 3, sum.Entries)
	assert.Positive(t, sum.SizeBytes)

	r, err := zip.OpenReader(archivePath)
	require.NoError(t, err)
	defer r.Close()

	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "relational-2026-08-25")
	assert.Contains(t, names, "document-2026-08-25/app/users.bson")
	assert.Contains(t, names, "document-2026-08-25/app/users.metadata.json")

	// No partial file left behind
	_, err = os.Stat(archivePath + ".partial")
	assert.True(t, os.IsNotExist(err))
}

func TestBuild_MissingSourceLeavesNoArchive(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "2026-08-25-backup.zip")

	_, err := Build(context.Background(), archivePath, []Entry{
		{Source: filepath.Join(dir, "does-not-exist"), Name: "relational-2026-08-25"},
	})
	require.ErrorIs(t, err, ErrArchiveFailed)

	// Neither the final path nor the partial exists
	_, err = os.Stat(archivePath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(archivePath + ".partial")
	assert.True(t, os.IsNotExist(err))
}

func TestBuild_EmptyDirectoryExportStaysInArchive(t *testing.T) {
	dir := t.TempDir()
	dump := filepath.Join(dir, "relational-2026-08-25.dump")
	writeFile(t, dump, "dump contents")
	// A document store with no collections dumps to an empty directory.
	docs := filepath.Join(dir, "document-2026-08-25")
	require.NoError(t, os.MkdirAll(docs, 0o755))

	archivePath := filepath.Join(dir, "2026-08-25-backup.zip")
	sum, err := Build(context.Background(), archivePath, []Entry{
		{Source: dump, Name: "relational-2026-08-25"},
		{Source: docs, Name: "document-2026-08-25"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Entries)

	r, err := zip.OpenReader(archivePath)
	require.NoError(t, err)
	defer r.Close()
	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "document-2026-08-25/")

	require.NoError(t, Verify(archivePath, []string{
		"relational-2026-08-25",
		"document-2026-08-25",
	}))
}

func TestBuild_CancelledContextLeavesNoArchive(t *testing.T) {
	dir := t.TempDir()
	dump := filepath.Join(dir, "relational-2026-08-25.dump")
	writeFile(t, dump, "dump contents")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	archivePath := filepath.Join(dir, "2026-08-25-backup.zip")
	_, err := Build(ctx, archivePath, []Entry{
		{Source: dump, Name: "relational-2026-08-25"},
	})
	require.ErrorIs(t, err, ErrArchiveFailed)

	_, err = os.Stat(archivePath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(archivePath + ".partial")
	assert.True(t, os.IsNotExist(err))
}

func TestVerify_AcceptsCompleteArchive(t *testing.T) {
	dir := t.TempDir()
	dump := filepath.Join(dir, "relational-2026-08-25.dump")
	writeFile(t, dump, "dump contents")
	docs := filepath.Join(dir, "document-2026-08-25")
	writeFile(t, filepath.Join(docs, "app.bson"), "bson")

	archivePath := filepath.Join(dir, "2026-08-25-backup.zip")
	_, err := Build(context.Background(), archivePath, []Entry{
		{Source: dump, Name: "relational-2026-08-25"},
		{Source: docs, Name: "document-2026-08-25"},
	})
	require.NoError(t, err)

	require.NoError(t, Verify(archivePath, []string{
		"relational-2026-08-25",
		"document-2026-08-25",
	}))
}

func TestVerify_RejectsMissingEntryAndGarbage(t *testing.T) {
	dir := t.TempDir()
	dump := filepath.Join(dir, "relational-2026-08-25.dump")
	writeFile(t, dump, "dump contents")

	archivePath := filepath.Join(dir, "2026-08-25-backup.zip")
	_, err := Build(context.Background(), archivePath, []Entry{
		{Source: dump, Name: "relational-2026-08-25"},
	})
	require.NoError(t, err)

	err = Verify(archivePath, []string{"relational-2026-08-25", "document-2026-08-25"})
	require.ErrorIs(t, err, ErrInvalidArchive)

	// A truncated file is not a readable archive
	garbage := filepath.Join(dir, "garbage.zip")
	writeFile(t, garbage, "not a zip")
	err = Verify(garbage, nil)
	require.ErrorIs(t, err, ErrInvalidArchive)
}
