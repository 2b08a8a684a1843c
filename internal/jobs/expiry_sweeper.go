package jobs

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shelfmark/circulation/internal/service"
)

// holdExpirer is the slice of the reservation service the sweeper drives.
type holdExpirer interface {
	RunExpirySweep(ctx context.Context, asOf time.Time) (service.SweepResult, error)
}

// ExpirySweeper runs scheduled reservation hold expiry
// - Expires ready_for_pickup reservations whose pickup window has lapsed
// - Hands each freed copy to the next waiting reservation or back to the shelf
type ExpirySweeper struct {
	reservations holdExpirer
	interval     time.Duration
	stopCh       chan struct{}
	wg           sync.WaitGroup
	running      bool
	mu           sync.Mutex
}

// NewExpirySweeper creates a new expiry sweeper job
func NewExpirySweeper(reservations holdExpirer, interval time.Duration) *ExpirySweeper {
	if interval == 0 {
		interval = 5 * time.Minute // Default check every five minutes
	}
	return &ExpirySweeper{
		reservations: reservations,
		interval:     interval,
		stopCh:       make(chan struct{}),
	}
}

// Start begins the expiry sweeper job
func (s *ExpirySweeper) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run()
	log.Printf("Expiry sweeper started (interval: %v)", s.interval)
}

// Stop gracefully stops the expiry sweeper job
func (s *ExpirySweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	log.Println("Expiry sweeper stopped")
}

// run is the main loop
func (s *ExpirySweeper) run() {
	defer s.wg.Done()

	// Run immediately on start (but with a short delay to let services initialize)
	select {
	case <-time.After(5 * time.Second):
	case <-s.stopCh:
		return
	}
	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

// sweep processes all lapsed holds
func (s *ExpirySweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Short run id so interleaved runs can be told apart in the logs.
	run := uuid.NewString()[:8]

	result, err := s.reservations.RunExpirySweep(ctx, time.Now())
	if err != nil {
		log.Printf("Error sweeping expired holds (run %s): %v", run, err)
	}
	if result.Processed > 0 || result.Failed > 0 {
		log.Printf("Expiry sweep %s: %d holds expired, %d failed", run, result.Processed, result.Failed)
	}
}

// RunOnce runs the sweep once (for testing or manual trigger)
func (s *ExpirySweeper) RunOnce(ctx context.Context) (service.SweepResult, error) {
	return s.reservations.RunExpirySweep(ctx, time.Now())
}

// IsRunning returns whether the sweeper is running
func (s *ExpirySweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
