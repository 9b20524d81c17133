package refresh

import (
	"context"
	"log"
	"sync"
	"time"

	"showtrackr/config"
)

// Scheduler runs the all-users refresh on a fixed interval. It is the
// timer-triggered counterpart of the manual refresh endpoint and performs
// the same per-user flow.
type Scheduler struct {
	cfg     *config.Manager
	refresh *Service

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler for the given refresh service.
func NewScheduler(cfg *config.Manager, refresh *Service) *Scheduler {
	return &Scheduler{cfg: cfg, refresh: refresh}
}

// Start begins the background refresh loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.wg.Add(1)
	go s.loop()

	log.Println("[scheduler] refresh scheduler started")
}

// Stop shuts the loop down, waiting for an in-flight run up to the
// deadline of ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[scheduler] refresh scheduler stopped")
	case <-ctx.Done():
		log.Println("[scheduler] refresh scheduler stopped (timeout)")
	}
	s.running = false
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	interval := s.interval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

// runOnce refreshes all users, silently no-oping when the API key is not
// configured.
func (s *Scheduler) runOnce() {
	if s.cfg.TVDBAPIKey() == "" {
		return
	}

	start := time.Now()
	summary := s.refresh.RefreshAllUsers(s.ctx)
	log.Printf("[scheduler] scheduled refresh done in %s: shows=%d episodes=%d failures=%d",
		time.Since(start).Round(time.Millisecond), summary.UpdatedShows, summary.UpdatedEpisodes, summary.Failures)
}

func (s *Scheduler) interval() time.Duration {
	settings, err := s.cfg.Load()
	if err != nil || settings.Refresh.IntervalHours <= 0 {
		return 12 * time.Hour
	}
	return time.Duration(settings.Refresh.IntervalHours) * time.Hour
}
