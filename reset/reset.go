/*
Package reset implements the scheduled settlement pass: the end-of-day
closeout that approves outstanding chore rewards, applies the
completion bonus or incompletion fine, and opens the next cycle.

PURPOSE:
  One Settler serves both the manual reset endpoint and the background
  scheduler, so the two can never drift apart. A pass for one user:

    1. Snapshot the repeatable activities and the daily completion
       picture BEFORE anything settles.
    2. Approve every pending reward that references a repeatable
       activity, reason prefixed "Approved: " to mark the auto-approval
       in the log. One-off pending items are left for a parent.
    3. From the snapshot, apply the all-complete bonus or the
       per-miss fine. Never both.
    4. Reset the daily activities to idle and stamp LastResetAt.

PARTIAL FAILURE:
  A multi-user run never aborts: per-user and per-item failures are
  counted in the summary and the pass moves on. Every run persists an
  audit record under SYSTEM#resets.

SEE ALSO:
  - rewards/: the approval path step 2 reuses
  - api/scheduler.go: the ticker loop that triggers RunAll
*/
package reset

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/chorebank/coinledger/chores"
	"github.com/chorebank/coinledger/coin"
	"github.com/chorebank/coinledger/ledger"
	"github.com/chorebank/coinledger/rewards"
	"github.com/chorebank/coinledger/store"
)

// approvedPrefix marks log entries written by the scheduled pass.
const approvedPrefix = "Approved: "

// Settler runs settlement passes.
type Settler struct {
	Store   store.ItemStore
	Ledger  *ledger.Ledger
	Rewards *rewards.Engine
	Chores  *chores.Service

	// Now is the clock; tests override it. Nil means time.Now.
	Now func() time.Time
}

func New(st store.ItemStore, l *ledger.Ledger, rw *rewards.Engine, ch *chores.Service) *Settler {
	return &Settler{Store: st, Ledger: l, Rewards: rw, Chores: ch}
}

func (s *Settler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Summary counts what one settlement pass did.
type Summary struct {
	Approved int `json:"approved"`
	Reset    int `json:"reset"`
	Bonuses  int `json:"bonuses"`
	Fines    int `json:"fines"`
	Errors   int `json:"errors"`
}

func (a Summary) add(b Summary) Summary {
	return Summary{
		Approved: a.Approved + b.Approved,
		Reset:    a.Reset + b.Reset,
		Bonuses:  a.Bonuses + b.Bonuses,
		Fines:    a.Fines + b.Fines,
		Errors:   a.Errors + b.Errors,
	}
}

// =============================================================================
// SINGLE USER PASS
// =============================================================================

// Settle runs the full settlement pass for one user.
func (s *Settler) Settle(ctx context.Context, userID string) (Summary, error) {
	user, err := s.Ledger.GetUser(ctx, userID)
	if err != nil {
		return Summary{}, err
	}

	repeatable, err := s.Chores.ListActivities(ctx, userID, chores.ListOptions{RepeatableOnly: true})
	if err != nil {
		return Summary{}, err
	}

	// The bonus/fine decision reads the day as the child left it, so
	// it is taken from the snapshot before any approvals land.
	var dailyCount, uncompletedDaily int
	repeatableIDs := make(map[string]bool, len(repeatable))
	for _, a := range repeatable {
		repeatableIDs[a.ActivityID] = true
		if a.Repeat == coin.RepeatDaily {
			dailyCount++
			if a.Completed != coin.CompletionTrue && a.PendingQuantity == 0 {
				uncompletedDaily++
			}
		}
	}

	var sum Summary

	// Step 2: auto-approve pending rewards tied to repeatable chores.
	pendings, err := s.Rewards.List(ctx, userID)
	if err != nil {
		return sum, err
	}
	for _, p := range pendings {
		if p.Type != coin.RewardActivity || !repeatableIDs[p.ReferenceID] {
			continue
		}
		if _, err := s.Rewards.ApproveWithReasonPrefix(ctx, userID, p.PendingID, approvedPrefix); err != nil {
			log.Printf("[Reset] approve %s for user %s failed: %v", p.PendingID, userID, err)
			sum.Errors++
			continue
		}
		sum.Approved++
	}

	// Step 3: bonus when every daily was handled, fine per miss.
	switch {
	case dailyCount == 0:
		// Nothing scheduled today, nothing to judge.
	case uncompletedDaily == 0:
		if user.CompleteAward.IsPositive() {
			reason := fmt.Sprintf("Daily completion bonus: all %d activities completed (+$%s)",
				dailyCount, user.CompleteAward.String())
			if _, err := s.Ledger.Adjust(ctx, userID, user.CompleteAward, reason); err != nil {
				log.Printf("[Reset] bonus for user %s failed: %v", userID, err)
				sum.Errors++
				break
			}
			sum.Bonuses++
		}
	default:
		if user.UncompleteFine.IsPositive() {
			fine := user.UncompleteFine.MulInt(uncompletedDaily).Neg()
			reason := fmt.Sprintf("Daily incomplete fine: %d activities not completed ($%s per activity = $%s total)",
				uncompletedDaily, user.UncompleteFine.String(), fine.Abs().String())
			if _, err := s.Ledger.Adjust(ctx, userID, fine, reason); err != nil {
				log.Printf("[Reset] fine for user %s failed: %v", userID, err)
				sum.Errors++
				break
			}
			sum.Fines++
		}
	}

	// Step 4: open the next daily cycle.
	for _, a := range repeatable {
		if a.Repeat != coin.RepeatDaily {
			continue
		}
		// Re-read: the approval in step 2 may have rewritten the record.
		current, err := s.Chores.GetActivity(ctx, userID, a.ActivityID)
		if err != nil {
			if coin.IsNotFound(err) {
				continue // removed mid-pass
			}
			sum.Errors++
			continue
		}
		if err := s.Chores.ResetActivityCycle(ctx, userID, current); err != nil {
			log.Printf("[Reset] reset %s for user %s failed: %v", a.ActivityID, userID, err)
			sum.Errors++
			continue
		}
		sum.Reset++
	}

	return sum, nil
}

// =============================================================================
// MULTI-USER RUNS
// =============================================================================

// RunAll settles every auto-reset user sequentially and persists one
// audit record for the run. Per-user failures are counted, never
// propagated.
func (s *Settler) RunAll(ctx context.Context, trigger string) (coin.ResetRun, error) {
	started := s.now()
	users, err := s.Ledger.ListUsers(ctx)
	if err != nil {
		return coin.ResetRun{}, err
	}

	var total Summary
	for _, u := range users {
		if !u.AutoReset {
			continue
		}
		sum, err := s.Settle(ctx, u.UserID)
		if err != nil {
			log.Printf("[Reset] settle user %s failed: %v", u.UserID, err)
			total.Errors++
			continue
		}
		total = total.add(sum)
	}

	run := coin.ResetRun{
		RunID:       coin.NewID(),
		Trigger:     trigger,
		Repeat:      coin.RepeatDaily,
		Approved:    total.Approved,
		Reset:       total.Reset,
		Bonuses:     total.Bonuses,
		Fines:       total.Fines,
		Errors:      total.Errors,
		StartedAt:   started,
		CompletedAt: s.now(),
	}
	if err := s.saveRun(ctx, run); err != nil {
		return run, err
	}
	log.Printf("[Reset] run %s: approved=%d reset=%d bonuses=%d fines=%d errors=%d",
		run.RunID, run.Approved, run.Reset, run.Bonuses, run.Fines, run.Errors)
	return run, nil
}

// ResetByRepeat reopens the cycle for every activity and todo on the
// given cadence. With a user id it scopes to that user; empty means
// all users. No approvals, bonuses or fines: this is the bare manual
// reset for weekly/monthly chores.
func (s *Settler) ResetByRepeat(ctx context.Context, repeat coin.RepeatType, userID string) (coin.ResetRun, error) {
	if !repeat.Cadenced() {
		return coin.ResetRun{}, &coin.ValidationError{
			Field:   "repeat",
			Message: fmt.Sprintf("%q is not a scheduled cadence", repeat),
		}
	}

	started := s.now()
	var userIDs []string
	if userID != "" {
		if _, err := s.Ledger.GetUser(ctx, userID); err != nil {
			return coin.ResetRun{}, err
		}
		userIDs = []string{userID}
	} else {
		users, err := s.Ledger.ListUsers(ctx)
		if err != nil {
			return coin.ResetRun{}, err
		}
		for _, u := range users {
			userIDs = append(userIDs, u.UserID)
		}
	}

	var total Summary
	for _, uid := range userIDs {
		sum := s.resetUserByRepeat(ctx, uid, repeat)
		total = total.add(sum)
	}

	run := coin.ResetRun{
		RunID:       coin.NewID(),
		UserID:      userID,
		Trigger:     "manual",
		Repeat:      repeat,
		Reset:       total.Reset,
		Errors:      total.Errors,
		StartedAt:   started,
		CompletedAt: s.now(),
	}
	if err := s.saveRun(ctx, run); err != nil {
		return run, err
	}
	return run, nil
}

func (s *Settler) resetUserByRepeat(ctx context.Context, userID string, repeat coin.RepeatType) Summary {
	var sum Summary

	activities, err := s.Chores.ListActivities(ctx, userID, chores.ListOptions{RepeatableOnly: true})
	if err != nil {
		log.Printf("[Reset] list activities for user %s failed: %v", userID, err)
		sum.Errors++
		return sum
	}
	for _, a := range activities {
		if a.Repeat != repeat {
			continue
		}
		if err := s.Chores.ResetActivityCycle(ctx, userID, a); err != nil {
			sum.Errors++
			continue
		}
		sum.Reset++
	}

	todos, err := s.Chores.ListTodos(ctx, userID)
	if err != nil {
		log.Printf("[Reset] list todos for user %s failed: %v", userID, err)
		sum.Errors++
		return sum
	}
	now := s.now()
	for _, t := range todos {
		if t.Repeat != repeat {
			continue
		}
		t.Completed = coin.CompletionFalse
		t.ApprovedAt = nil
		t.LastResetAt = &now
		if err := s.Chores.SaveTodo(ctx, userID, t); err != nil {
			sum.Errors++
			continue
		}
		sum.Reset++
	}
	return sum
}

// =============================================================================
// RUN RECORDS
// =============================================================================

func (s *Settler) saveRun(ctx context.Context, run coin.ResetRun) error {
	it, err := store.NewItem(coin.ResetRunKey(run.RunID), run)
	if err != nil {
		return err
	}
	if err := s.Store.Put(ctx, it); err != nil {
		return coin.WrapStore("save reset run", err)
	}
	return nil
}

// ListRuns returns past settlement runs, newest first.
func (s *Settler) ListRuns(ctx context.Context) ([]coin.ResetRun, error) {
	items, err := s.Store.ScanPrefix(ctx, coin.PrefixResetRun)
	if err != nil {
		return nil, coin.WrapStore("list reset runs", err)
	}

	runs := make([]coin.ResetRun, 0, len(items))
	for _, it := range items {
		var run coin.ResetRun
		if err := it.Decode(&run); err != nil {
			return nil, coin.WrapStore("decode reset run", err)
		}
		runs = append(runs, run)
	}
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs, nil
}
