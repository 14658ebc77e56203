package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"tfl-lake/internal/domain"
)

// Scheduler triggers bronze runs on a cron schedule. A tick that finds a run
// still in progress is skipped.
type Scheduler struct {
	cron   *cron.Cron
	orch   *Orchestrator
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID // schedule → cron entry
	ctx     context.Context
}

// NewScheduler creates a Scheduler.
func NewScheduler(orch *Orchestrator, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		orch:    orch,
		logger:  logger.With("component", "scheduler"),
		entries: make(map[string]cron.EntryID),
		ctx:     context.Background(),
	}
}

// Add registers a standard five-field cron expression or descriptor such as
// "@hourly". Adding the same schedule twice is a no-op.
func (s *Scheduler) Add(schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[schedule]; ok {
		return nil
	}
	id, err := s.cron.AddFunc(schedule, s.trigger)
	if err != nil {
		return domain.ErrValidation("invalid cron schedule %q: %v", schedule, err)
	}
	s.entries[schedule] = id
	s.logger.Info("bronze run scheduled", "schedule", schedule)
	return nil
}

// Start runs the scheduler until Stop. Runs it triggers use ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
	s.logger.Info("scheduler started", "next", s.Next())
}

// Stop halts the scheduler and waits for a triggered run to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// Next returns the earliest upcoming trigger time, or zero when none is known.
func (s *Scheduler) Next() time.Time {
	var next time.Time
	for _, e := range s.cron.Entries() {
		if !e.Next.IsZero() && (next.IsZero() || e.Next.Before(next)) {
			next = e.Next
		}
	}
	return next
}

func (s *Scheduler) trigger() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	run, err := s.orch.RunBronze(ctx, domain.TriggerTypeScheduled)
	if err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			s.logger.Info("scheduled run skipped; previous run still active")
			return
		}
		runID := ""
		if run != nil {
			runID = run.ID
		}
		s.logger.Warn("scheduled run failed", "run_id", runID, "error", err)
		return
	}
	s.logger.Info("scheduled run finished", "run_id", run.ID, "next", s.Next())
}
