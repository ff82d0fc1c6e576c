package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

var (
	ErrArchiveFailed  = errors.New("archive build failed")
	ErrInvalidArchive = errors.New("archive is invalid")
)

// Entry maps a filesystem path (file or directory tree) to its name inside
// the archive.
type Entry struct {
	Source string
	Name   string
}

// Summary describes a finished archive.
type Summary struct {
	Path      string
	SizeBytes int64
	Entries   int
}

// Build writes all entries into a zip at archivePath. The archive is written
// to a temporary sibling first and renamed into place only after every entry
// is added and the writer closes cleanly, so a reader never observes a
// half-written archive at the final path.
func Build(ctx context.Context, archivePath string, entries []Entry) (Summary, error) {
	partial := archivePath + ".partial"

	f, err := os.Create(partial)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: create %q: %v", ErrArchiveFailed, partial, err)
	}

	count, err := writeEntries(ctx, f, entries)
	if err != nil {
		f.Close()
		os.Remove(partial)
		return Summary{}, fmt.Errorf("%w: %v", ErrArchiveFailed, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(partial)
		return Summary{}, fmt.Errorf("%w: close %q: %v", ErrArchiveFailed, partial, err)
	}

	if err := os.Rename(partial, archivePath); err != nil {
		os.Remove(partial)
		return Summary{}, fmt.Errorf("%w: rename into place: %v", ErrArchiveFailed, err)
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: stat %q: %v", ErrArchiveFailed, archivePath, err)
	}

	return Summary{Path: archivePath, SizeBytes: info.Size(), Entries: count}, nil
}

func writeEntries(ctx context.Context, f *os.File, entries []Entry) (int, error) {
	zw := zip.NewWriter(f)
	count := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			zw.Close()
			return 0, fmt.Errorf("entry %q: %w", entry.Name, context.Cause(ctx))
		}
		info, err := os.Stat(entry.Source)
		if err != nil {
			zw.Close()
			return 0, fmt.Errorf("stat %q: %w", entry.Source, err)
		}
		if info.IsDir() {
			n, err := addTree(zw, entry.Source, entry.Name)
			if err != nil {
				zw.Close()
				return 0, err
			}
			count += n
		} else {
			if err := addFile(zw, entry.Source, entry.Name); err != nil {
				zw.Close()
				return 0, err
			}
			count++
		}
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("finalize archive: %w", err)
	}
	return count, nil
}

// addFile streams one file into the archive under name.
func addFile(zw *zip.Writer, source, name string) error {
	in, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("open %q: %w", source, err)
	}
	defer in.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:   name,
		Method: zip.Deflate,
	})
	if err != nil {
		return fmt.Errorf("create entry %q: %w", name, err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("write entry %q: %w", name, err)
	}
	return nil
}

// addTree walks a directory and stores each file under prefix/<relative path>.
// An export of an empty store is still a valid snapshot, so a tree with no
// files gets an explicit directory entry instead of vanishing from the
// archive.
func addTree(zw *zip.Writer, root, prefix string) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := prefix + "/" + filepath.ToSlash(rel)
		if err := addFile(zw, path, name); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk %q: %w", root, err)
	}
	if count == 0 {
		if _, err := zw.CreateHeader(&zip.FileHeader{Name: prefix + "/"}); err != nil {
			return 0, fmt.Errorf("create entry %q: %w", prefix+"/", err)
		}
		count++
	}
	return count, nil
}

// Verify opens the archive and checks that it is readable, non-empty, and
// contains every wanted top-level entry name. The orchestrator calls this
// before delivery so a truncated or empty archive is never sent.
func Verify(archivePath string, wantNames []string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("%w: open %q: %v", ErrInvalidArchive, archivePath, err)
	}
	defer r.Close()

	if len(r.File) == 0 {
		return fmt.Errorf("%w: %q has no entries", ErrInvalidArchive, archivePath)
	}

	topLevel := make(map[string]bool, len(r.File))
	for _, f := range r.File {
		name := f.Name
		if i := strings.IndexByte(name, '/'); i >= 0 {
			name = name[:i]
		}
		topLevel[name] = true
	}
	for _, want := range wantNames {
		if !topLevel[want] {
			return fmt.Errorf("%w: %q is missing entry %q", ErrInvalidArchive, archivePath, want)
		}
	}
	return nil
}
