package remote

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jordanw/callscope/internal/logger"
	"github.com/jordanw/callscope/internal/store"
)

// Scheduler runs Manager.Sync on a fixed interval. Only one sync runs at a
// time: a tick that fires while a sync is still in progress is dropped, and
// manual triggers while busy report that a sync is already running.
type Scheduler struct {
	manager  *Manager
	st       store.Store
	interval time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	running bool

	stop chan struct{}
	done chan struct{}
}

// NewScheduler creates a Scheduler. Start must be called to begin ticking.
func NewScheduler(manager *Manager, st store.Store, interval time.Duration, log *logger.Logger) *Scheduler {
	return &Scheduler{
		manager:  manager,
		st:       st,
		interval: interval,
		log:      log.WithField(logger.FieldComponent, "sync_scheduler"),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the background sync loop. An initial sync runs immediately.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		defer close(s.done)

		s.runOnce(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runOnce(ctx)
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop terminates the loop and waits for it to exit. A sync already in
// flight finishes first.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

// TriggerSync runs a sync immediately, unless one is already in progress.
// Returns the result, or false when the trigger was suppressed.
func (s *Scheduler) TriggerSync(ctx context.Context) (*SyncResult, bool, error) {
	if !s.tryAcquire() {
		return nil, false, nil
	}
	defer s.release()

	result, err := s.manager.Sync(ctx, s.st)
	return result, true, err
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if !s.tryAcquire() {
		s.log.Warn("Skipping scheduled sync, previous sync still running")
		return
	}
	defer s.release()

	syncID := uuid.New().String()[:8]
	log := s.log.WithField(logger.FieldSyncID, syncID)

	start := time.Now()
	if _, err := s.manager.Sync(ctx, s.st); err != nil {
		log.WithError(err).Error("Scheduled sync failed")
		return
	}
	log.WithField(logger.FieldDurationMs, time.Since(start).Milliseconds()).Debug("Scheduled sync finished")
}

func (s *Scheduler) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Scheduler) release() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}
