package maintenance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Store is the upkeep surface of the database manager.
type Store interface {
	IsConnected() bool
	Optimize(ctx context.Context) error
	Checkpoint(ctx context.Context) error
}

// Status is a snapshot of the scheduler.
type Status struct {
	Running   bool       `json:"running"`
	Schedule  string     `json:"schedule,omitempty"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// Scheduler runs store upkeep on a cron schedule.
type Scheduler struct {
	store       Store
	cron        *cron.Cron
	cronEntryID cron.EntryID
	schedule    string
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	running     bool
	lastRun     *time.Time
	lastErr     error
}

// NewScheduler creates a stopped scheduler for store.
func NewScheduler(store Store) *Scheduler {
	return &Scheduler{
		store: store,
		cron:  cron.New(),
	}
}

// Disabled reports whether schedule turns scheduled upkeep off.
func Disabled(schedule string) bool {
	s := strings.TrimSpace(strings.ToLower(schedule))
	return s == "" || s == "off"
}

// Start begins running upkeep on schedule.
func (s *Scheduler) Start(schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if Disabled(schedule) {
		log.Info().Msg("Scheduled maintenance disabled")
		return nil
	}

	id, err := s.cron.AddFunc(schedule, s.scheduledRun)
	if err != nil {
		return fmt.Errorf("invalid maintenance schedule %q: %w", schedule, err)
	}
	s.cronEntryID = id
	s.schedule = schedule

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron.Start()
	s.running = true

	log.Info().Str("schedule", schedule).Msg("Maintenance scheduler started")
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.mu.Lock()
	if s.cronEntryID != 0 {
		s.cron.Remove(s.cronEntryID)
		s.cronEntryID = 0
	}
	s.mu.Unlock()

	log.Info().Msg("Maintenance scheduler stopped")
}

// Status returns the current scheduler status.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := Status{
		Running:  s.running,
		Schedule: s.schedule,
		LastRun:  s.lastRun,
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	if s.running && s.cronEntryID != 0 {
		if next := s.cron.Entry(s.cronEntryID).Next; !next.IsZero() {
			status.NextRun = &next
		}
	}
	return status
}

// RunOnce performs one upkeep pass. A disconnected store is skipped.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if !s.store.IsConnected() {
		log.Debug().Msg("Skipping maintenance: database not connected")
		return nil
	}

	start := time.Now()
	err := errors.Join(
		s.store.Optimize(ctx),
		s.store.Checkpoint(ctx),
	)

	s.mu.Lock()
	s.lastRun = &start
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		return err
	}
	log.Debug().Dur("duration", time.Since(start)).Msg("Maintenance completed")
	return nil
}

func (s *Scheduler) scheduledRun() {
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()
	if ctx == nil {
		return
	}

	if err := s.RunOnce(ctx); err != nil {
		log.Warn().Err(err).Msg("Scheduled maintenance failed")
	}
}
