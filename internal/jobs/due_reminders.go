package jobs

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/shelfmark/circulation/internal/model"
)

// dueLister is the slice of the lending service the reminder job reads.
type dueLister interface {
	LoansDueWithin(ctx context.Context, asOf time.Time, days int) ([]*model.DueSoonLoan, error)
}

// DueReminderProcessor surfaces loans coming due within the reminder
// window. It only produces the decision feed; each tuple is handed to
// the dispatch func, and delivery of the actual reminders happens
// outside this process.
type DueReminderProcessor struct {
	lending    dueLister
	dispatch   func(loan *model.DueSoonLoan)
	interval   time.Duration
	windowDays int
	stopCh     chan struct{}
	wg         sync.WaitGroup
	running    bool
	mu         sync.Mutex
}

// NewDueReminderProcessor creates a new due reminder processor job.
// A nil dispatch logs each reminder.
func NewDueReminderProcessor(lending dueLister, interval time.Duration, windowDays int, dispatch func(loan *model.DueSoonLoan)) *DueReminderProcessor {
	if interval == 0 {
		interval = 24 * time.Hour // Default once a day
	}
	if windowDays <= 0 {
		windowDays = model.DefaultPickupWindowDays
	}
	if dispatch == nil {
		dispatch = logReminder
	}
	return &DueReminderProcessor{
		lending:    lending,
		dispatch:   dispatch,
		interval:   interval,
		windowDays: windowDays,
		stopCh:     make(chan struct{}),
	}
}

func logReminder(loan *model.DueSoonLoan) {
	log.Printf("Reminder: %q due %s for %s <%s>", loan.TitleName, loan.DueDate.Format("2006-01-02"), loan.ReaderName, loan.ReaderEmail)
}

// Start begins the due reminder processor job
func (p *DueReminderProcessor) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run()
	log.Printf("Due reminder processor started (interval: %v, window: %d days)", p.interval, p.windowDays)
}

// Stop gracefully stops the due reminder processor job
func (p *DueReminderProcessor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	close(p.stopCh)
	p.wg.Wait()
	log.Println("Due reminder processor stopped")
}

// run is the main loop
func (p *DueReminderProcessor) run() {
	defer p.wg.Done()

	// Run immediately on start (but with a short delay to let services initialize)
	select {
	case <-time.After(5 * time.Second):
	case <-p.stopCh:
		return
	}
	p.remind()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.remind()
		case <-p.stopCh:
			return
		}
	}
}

// remind lists loans due within the window and logs the feed
func (p *DueReminderProcessor) remind() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	loans, err := p.lending.LoansDueWithin(ctx, time.Now(), p.windowDays)
	if err != nil {
		log.Printf("Error listing loans due soon: %v", err)
		return
	}
	if len(loans) == 0 {
		return
	}

	log.Printf("Due reminders: %d loans due within %d days", len(loans), p.windowDays)
	for _, loan := range loans {
		p.dispatch(loan)
	}
}

// RunOnce lists the loans due within the window once (for testing or manual trigger)
func (p *DueReminderProcessor) RunOnce(ctx context.Context) ([]*model.DueSoonLoan, error) {
	return p.lending.LoansDueWithin(ctx, time.Now(), p.windowDays)
}

// IsRunning returns whether the processor is running
func (p *DueReminderProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
