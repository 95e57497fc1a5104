/*
scheduler.go - Automated draft refresh

PURPOSE:
  Keeps draft bills current while a month is open. Each tick re-saves the
  draft for the current month and the previous one, so staff reviewing
  bills see a persisted snapshot that follows attendance corrections.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Published months are skipped; publishing stays an explicit action
  - Months without a per-day rate are skipped and logged

USAGE:
  scheduler := mess.NewDraftScheduler(svc)
  scheduler.Start()
  // ... later
  scheduler.Stop()
*/
package mess

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/hostel/mess-engine/billing"
)

// DraftScheduler periodically refreshes draft bills.
type DraftScheduler struct {
	Service       *Service
	CheckInterval time.Duration
	Enabled       bool
	Now           func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewDraftScheduler creates a scheduler with a one hour interval.
func NewDraftScheduler(svc *Service) *DraftScheduler {
	return &DraftScheduler{
		Service:       svc,
		CheckInterval: time.Hour,
		Enabled:       true,
		Now:           func() time.Time { return time.Now().UTC() },
	}
}

// Start begins the scheduler.
func (ds *DraftScheduler) Start() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if !ds.Enabled || ds.CheckInterval <= 0 {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}
	if ds.ticker != nil {
		return
	}

	ds.ticker = time.NewTicker(ds.CheckInterval)
	ds.stop = make(chan struct{})
	ds.wg.Add(1)
	go ds.run()

	log.Printf("[Scheduler] Started with check interval: %v", ds.CheckInterval)
}

// Stop stops the scheduler and waits for a running refresh to finish.
func (ds *DraftScheduler) Stop() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.ticker == nil {
		return
	}
	ds.ticker.Stop()
	close(ds.stop)
	ds.wg.Wait()
	ds.ticker = nil
	log.Println("[Scheduler] Stopped")
}

func (ds *DraftScheduler) run() {
	defer ds.wg.Done()

	// Run immediately on start
	ds.RunOnce(context.Background())

	for {
		select {
		case <-ds.ticker.C:
			ds.RunOnce(context.Background())
		case <-ds.stop:
			return
		}
	}
}

// RunOnce refreshes the drafts of the current and previous month.
func (ds *DraftScheduler) RunOnce(ctx context.Context) (refreshed, skipped int) {
	current := billing.MonthOf(ds.Now())

	for _, month := range []billing.Month{current.Previous(), current} {
		bills, err := ds.Service.SaveDraft(ctx, month)
		switch {
		case err == nil:
			refreshed++
			log.Printf("[Scheduler] Draft %s refreshed: %d bills", month, len(bills))
		case errors.Is(err, ErrAlreadyPublished):
			skipped++
		case errors.Is(err, billing.ErrInvalidRate):
			skipped++
			log.Printf("[Scheduler] Draft %s skipped: %v", month, err)
		default:
			log.Printf("[Scheduler] Error refreshing draft %s: %v", month, err)
		}
	}
	return refreshed, skipped
}
