package run

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kebairia/bakd/internal/logger"
	"github.com/kebairia/bakd/internal/workspace"
)

// Scheduler fires the orchestrator on a cron cadence. Missed triggers are
// not backfilled: a trigger that arrives while the process is down, or while
// a run is in flight, is simply skipped.
type Scheduler struct {
	schedule   string
	orch       *Orchestrator
	workspaces *workspace.Manager
	log        logger.Logger
	cron       *cron.Cron
}

// NewScheduler validates the cron expression and prepares the trigger loop.
func NewScheduler(
	schedule string,
	orch *Orchestrator,
	workspaces *workspace.Manager,
	log logger.Logger,
) (*Scheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return &Scheduler{
		schedule:   schedule,
		orch:       orch,
		workspaces: workspaces,
		log:        log,
		cron:       cron.New(),
	}, nil
}

// Start sweeps stale workspaces from a crashed prior process, then runs the
// trigger loop until ctx is cancelled. An in-flight run finishes before
// Start returns.
func (s *Scheduler) Start(ctx context.Context) error {
	removed, err := s.workspaces.Sweep()
	if err != nil {
		return fmt.Errorf("startup sweep: %w", err)
	}
	if len(removed) > 0 {
		s.log.Warn("recovered from an unclean shutdown",
			"stale_workspaces", len(removed),
		)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		res, skipped := s.orch.TryRunOnce(ctx, time.Now())
		if skipped {
			return
		}
		s.log.Debug("scheduled run finished",
			"run_id", res.RunID,
			"outcome", string(res.Outcome),
		)
	}); err != nil {
		return fmt.Errorf("register schedule: %w", err)
	}

	s.log.Info("scheduler started", "schedule", s.schedule)
	s.cron.Start()

	<-ctx.Done()

	// Stop firing new triggers and wait for a run in flight to finish.
	stopped := s.cron.Stop()
	<-stopped.Done()
	s.log.Info("scheduler stopped")
	return nil
}
