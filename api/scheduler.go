/*
scheduler.go - Automated daily settlement scheduler

PURPOSE:
  Periodically runs the settlement pass for every auto-reset user:
  approving outstanding chore rewards, applying the completion bonus
  or incompletion fine, and reopening the daily cycle. Replaces the
  external cron trigger the system previously relied on.

DESIGN:
  - Single background goroutine with a configurable tick interval
  - Runs once immediately on start
  - Per-user failures stay inside the Settler; a run never kills the
    loop
  - Every run persists an audit record for display

USAGE:
  scheduler := NewResetScheduler(settler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - reset/: the Settler this loop triggers
  - chores_handlers.go: RunReset (manual trigger of the same pass)
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/chorebank/coinledger/reset"
)

// ResetScheduler runs the settlement pass on a timer.
type ResetScheduler struct {
	Settler       *reset.Settler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewResetScheduler creates a new scheduler.
func NewResetScheduler(settler *reset.Settler) *ResetScheduler {
	return &ResetScheduler{
		Settler:       settler,
		CheckInterval: 24 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (rs *ResetScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run()

	log.Printf("[Scheduler] Started with check interval: %v", rs.CheckInterval)
}

// Stop stops the scheduler.
func (rs *ResetScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (rs *ResetScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.settleAll()

	for {
		select {
		case <-rs.ticker.C:
			rs.settleAll()
		case <-rs.stop:
			return
		}
	}
}

func (rs *ResetScheduler) settleAll() {
	ctx := context.Background()

	run, err := rs.Settler.RunAll(ctx, "scheduled")
	if err != nil {
		log.Printf("[Scheduler] Settlement run failed: %v", err)
		return
	}
	resetRuns.WithLabelValues("scheduled").Inc()

	log.Printf("[Scheduler] Run %s completed: approved=%d reset=%d bonuses=%d fines=%d errors=%d",
		run.RunID, run.Approved, run.Reset, run.Bonuses, run.Fines, run.Errors)
}

// RunNow triggers an immediate pass (for testing/admin).
func (rs *ResetScheduler) RunNow() {
	rs.settleAll()
}

// GetNextRunTime returns when the next scheduled pass will occur.
func (rs *ResetScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(rs.CheckInterval)
}
