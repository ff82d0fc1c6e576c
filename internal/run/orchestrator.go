package run

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kebairia/bakd/internal/archive"
	"github.com/kebairia/bakd/internal/config"
	"github.com/kebairia/bakd/internal/export"
	"github.com/kebairia/bakd/internal/logger"
	"github.com/kebairia/bakd/internal/notify"
	"github.com/kebairia/bakd/internal/workspace"
)

// Orchestrator owns the end-to-end lifecycle of a backup run: workspace,
// exports, archive, delivery, cleanup. One run at a time, system-wide.
type Orchestrator struct {
	cfg        config.Config
	log        logger.Logger
	workspaces *workspace.Manager
	relational export.Exporter
	document   export.Exporter
	notifier   notify.Notifier

	inFlight sync.Mutex
}

// NewOrchestrator wires the pipeline's collaborators together.
func NewOrchestrator(
	cfg config.Config,
	log logger.Logger,
	workspaces *workspace.Manager,
	relational, document export.Exporter,
	notifier notify.Notifier,
) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		log:        log,
		workspaces: workspaces,
		relational: relational,
		document:   document,
		notifier:   notifier,
	}
}

// RunOnce executes one full pipeline run for the given trigger time. It
// returns ErrRunInFlight without side effects if another run holds the
// in-flight lock. Pipeline failures do not surface as errors; they are
// reported in the Result so a failed backup never takes down the host.
func (o *Orchestrator) RunOnce(ctx context.Context, trigger time.Time) (Result, error) {
	if !o.inFlight.TryLock() {
		return Result{}, ErrRunInFlight
	}
	defer o.inFlight.Unlock()

	r := NewRun(trigger)
	o.log.Info("backup run started", "run_id", r.ID)

	res := Result{RunID: r.ID}
	archivePath, stageErr := o.pipeline(ctx, r, &res)

	// Delivery failed but the archive is valid: rescue it before cleanup.
	if stageErr != nil && stageErr.Stage == StageNotifying && archivePath != "" {
		preserved, err := o.workspaces.Preserve(archivePath, r.ID)
		if err != nil {
			o.log.Error("could not preserve archive",
				"run_id", r.ID,
				"error", err.Error(),
			)
		} else {
			res.PreservedPath = preserved
			o.log.Warn("archive preserved for manual delivery",
				"run_id", r.ID,
				"path", preserved,
			)
		}
	}

	// Cleanup happens exactly once, on every exit path that got a workspace.
	if r.WorkspacePath != "" {
		r.Advance(StageCleaningUp)
		if err := o.workspaces.Release(r.WorkspacePath); err != nil {
			res.CleanupErr = err
			o.log.Error("workspace cleanup failed",
				"run_id", r.ID,
				"path", r.WorkspacePath,
				"error", err.Error(),
			)
		}
	}

	r.EndedAt = time.Now()
	res.Duration = r.EndedAt.Sub(r.StartedAt)

	if stageErr != nil {
		r.Fail(stageErr.Stage, stageErr.Err)
		r.Advance(StageFailed)
		res.Outcome = StageFailed
		res.FailedStage = stageErr.Stage
		res.Err = stageErr
		o.log.Error("backup run failed",
			"run_id", r.ID,
			"stage", string(stageErr.Stage),
			"error", stageErr.Err.Error(),
			"preserved_archive", res.PreservedPath,
		)
		return res, nil
	}

	r.Advance(StageCompleted)
	res.Outcome = StageCompleted
	o.log.Info("backup run completed",
		"run_id", r.ID,
		"archive", res.ArchiveName,
		"size_bytes", res.ArchiveSize,
		"duration", res.Duration.String(),
	)
	return res, nil
}

// TryRunOnce is the scheduler entry point: a trigger arriving while a run is
// in flight is coalesced, not queued.
func (o *Orchestrator) TryRunOnce(ctx context.Context, trigger time.Time) (Result, bool) {
	res, err := o.RunOnce(ctx, trigger)
	if errors.Is(err, ErrRunInFlight) {
		o.log.Warn("trigger coalesced, a run is already in flight",
			"trigger", trigger.Format(DateLayout),
		)
		return Result{}, true
	}
	return res, false
}

// pipeline drives the forward-only stages. Each stage is gated on the
// previous one's success; the first failure stops forward progress and is
// returned with its stage. The archive path is returned once it exists so the
// caller can preserve it when only delivery failed.
func (o *Orchestrator) pipeline(
	ctx context.Context,
	r *Run,
	res *Result,
) (archivePath string, stageErr *StageError) {
	date := r.ID

	ws, err := o.workspaces.Allocate(r.ID)
	if err != nil {
		// Nothing was written; there is nothing to clean.
		return "", &StageError{Stage: StageScheduled, Err: err}
	}
	r.WorkspacePath = ws

	// The two exports are sequential, not parallel: it bounds peak disk and
	// network usage and keeps partial-failure cleanup ordering trivial. They
	// are not atomic relative to each other; the artifact records carry the
	// wall-clock skew.
	r.Advance(StageExportingRelational)
	relationalPath := filepath.Join(ws, "relational-"+date+".dump")
	if err := o.relational.Export(ctx, relationalPath); err != nil {
		return "", &StageError{Stage: StageExportingRelational, Err: err}
	}
	r.AddArtifact("relational-"+date, relationalPath)

	r.Advance(StageExportingDocument)
	documentPath := filepath.Join(ws, "document-"+date)
	if err := o.document.Export(ctx, documentPath); err != nil {
		return "", &StageError{Stage: StageExportingDocument, Err: err}
	}
	r.AddArtifact("document-"+date, documentPath)

	r.Advance(StageArchiving)
	archiveName := date + "-backup.zip"
	archivePath = filepath.Join(ws, archiveName)
	entryNames := []string{"relational-" + date, "document-" + date}
	sum, err := archive.Build(ctx, archivePath, []archive.Entry{
		{Source: relationalPath, Name: entryNames[0]},
		{Source: documentPath, Name: entryNames[1]},
	})
	if err != nil {
		return "", &StageError{Stage: StageArchiving, Err: err}
	}
	// A truncated or empty archive must never reach delivery.
	if err := archive.Verify(archivePath, entryNames); err != nil {
		return "", &StageError{Stage: StageArchiving, Err: err}
	}
	r.AddArtifact(archiveName, archivePath)
	res.ArchiveName = archiveName
	res.ArchiveSize = sum.SizeBytes

	r.Advance(StageNotifying)
	receipt, err := o.deliver(ctx, date, archivePath)
	if err != nil {
		return archivePath, &StageError{Stage: StageNotifying, Err: err}
	}
	res.Receipt = receipt.MessageID

	return archivePath, nil
}

// deliver sends the archive, retrying transient failures with exponential
// backoff. Delivery may duplicate on the wire (an error does not prove the
// message was not sent); duplicates are acceptable, a lost backup is not.
func (o *Orchestrator) deliver(
	ctx context.Context,
	date, archivePath string,
) (notify.Receipt, error) {
	msg := notify.Message{
		To:      o.cfg.Mail.To,
		Subject: fmt.Sprintf("Nightly backup %s", date),
		Body: fmt.Sprintf(
			"The nightly backup for %s is attached as %s-backup.zip.\n", date, date,
		),
		AttachmentPath: archivePath,
	}

	bo := backoff.NewExponentialBackOff()
	if o.cfg.Backup.DeliveryBackoff > 0 {
		bo.InitialInterval = o.cfg.Backup.DeliveryBackoff
	}
	retries := o.cfg.Backup.DeliveryRetries
	if retries < 0 {
		retries = 0
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(retries)),
		ctx,
	)

	var receipt notify.Receipt
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		sendCtx, cancel := context.WithTimeoutCause(
			ctx, o.cfg.Backup.DeliveryTimeout, notify.ErrTimeout,
		)
		defer cancel()

		var err error
		receipt, err = o.notifier.Send(sendCtx, msg)
		if err != nil {
			o.log.Warn("delivery attempt failed",
				"attempt", attempt,
				"error", err.Error(),
			)
		}
		return err
	}, policy)

	return receipt, err
}
