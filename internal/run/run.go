package run

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// DateLayout formats trigger times into run IDs and artifact names.
const DateLayout = "2006-01-02"

var ErrRunInFlight = errors.New("a backup run is already in flight")

// Stage is one step of the pipeline. Transitions are monotonic.
type Stage string

const (
	StageScheduled           Stage = "scheduled"
	StageExportingRelational Stage = "exporting_relational"
	StageExportingDocument   Stage = "exporting_document"
	StageArchiving           Stage = "archiving"
	StageNotifying           Stage = "notifying"
	StageCleaningUp          Stage = "cleaning_up"
	StageCompleted           Stage = "completed"
	StageFailed              Stage = "failed"
)

// stageOrder backs the no-backward-transition check.
var stageOrder = map[Stage]int{
	StageScheduled:           0,
	StageExportingRelational: 1,
	StageExportingDocument:   2,
	StageArchiving:           3,
	StageNotifying:           4,
	StageCleaningUp:          5,
	StageCompleted:           6,
	StageFailed:              6,
}

// StageError carries the stage a pipeline failure happened in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Artifact is one file or directory a run produced, in production order.
type Artifact struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	SHA256    string `json:"sha256,omitempty"`
}

// Failure records where and why a run went wrong.
type Failure struct {
	Stage Stage
	Cause error
}

// Run is one execution of the pipeline for a single trigger.
type Run struct {
	ID            string
	StartedAt     time.Time
	EndedAt       time.Time
	Stage         Stage
	WorkspacePath string
	Artifacts     []Artifact
	Failure       *Failure
}

// NewRun derives a run from its trigger time; one run per calendar day is the
// natural key.
func NewRun(trigger time.Time) *Run {
	return &Run{
		ID:        trigger.Format(DateLayout),
		StartedAt: time.Now(),
		Stage:     StageScheduled,
	}
}

// Advance moves the run to next. Backward transitions are a programming error
// and are rejected.
func (r *Run) Advance(next Stage) error {
	if stageOrder[next] < stageOrder[r.Stage] {
		return fmt.Errorf("illegal stage transition %s -> %s", r.Stage, next)
	}
	r.Stage = next
	return nil
}

// Fail records the terminal failure for the run.
func (r *Run) Fail(stage Stage, cause error) {
	r.Failure = &Failure{Stage: stage, Cause: cause}
}

// AddArtifact records a produced artifact with its size and, for plain files,
// a checksum.
func (r *Run) AddArtifact(name, path string) {
	a := Artifact{Name: name, Path: path}
	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			a.SizeBytes = dirSize(path)
		} else {
			a.SizeBytes = info.Size()
			if sum, err := checksumFile(path); err == nil {
				a.SHA256 = sum
			}
		}
	}
	r.Artifacts = append(r.Artifacts, a)
}

// Result is the operator-visible outcome of one run.
type Result struct {
	RunID         string
	Outcome       Stage // StageCompleted or StageFailed
	FailedStage   Stage
	Err           error
	ArchiveName   string
	ArchiveSize   int64
	Receipt       string
	PreservedPath string
	CleanupErr    error
	Duration      time.Duration
}

// Completed reports whether the run delivered its archive.
func (res Result) Completed() bool { return res.Outcome == StageCompleted }

func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func dirSize(root string) int64 {
	var total int64
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0
	}
	for _, entry := range entries {
		sub := filepath.Join(root, entry.Name())
		if entry.IsDir() {
			total += dirSize(sub)
			continue
		}
		if info, err := entry.Info(); err == nil {
			total += info.Size()
		}
	}
	return total
}
