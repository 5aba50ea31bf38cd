/*
Package rewards implements the pending-rewards engine: the two-phase
workflow between a child proposing coin changes and a parent settling
them.

PURPOSE:
  A pending reward is a proposed balance change. It sits in the queue
  without touching the stored balance until a parent approves it (the
  amount is applied through the ledger and the item is deleted) or
  denies it (the item is deleted and any source activity is reset, the
  balance untouched).

KEY INVARIANTS:
  1. Balances never change at proposal time. Only approval moves coins.
  2. Approval and denial are mutually exclusive: both delete the item,
     so the second operation on the same id reports not found.
  3. One pending item per (activity, reference): quantity changes
     update the existing item in place, never accumulate duplicates.
  4. Batch approval is sequential. Each item's log entry chains off the
     balance the previous approval produced, keeping the audit trail
     summable.

SEE ALSO:
  - ledger/: balance mutation and per-user serialization
  - chores/: the activity/todo state transitions approvals trigger
*/
package rewards

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/chorebank/coinledger/chores"
	"github.com/chorebank/coinledger/coin"
	"github.com/chorebank/coinledger/ledger"
	"github.com/chorebank/coinledger/store"
)

// Engine settles pending rewards against the ledger.
type Engine struct {
	Store  store.ItemStore
	Ledger *ledger.Ledger
	Chores *chores.Service

	// Now is the clock; tests override it. Nil means time.Now.
	Now func() time.Time
}

func New(st store.ItemStore, l *ledger.Ledger, ch *chores.Service) *Engine {
	return &Engine{Store: st, Ledger: l, Chores: ch}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

// Summary reports the outcome of a batch settlement.
type Summary struct {
	Settled int
	Failed  int
}

// =============================================================================
// PROPOSAL
// =============================================================================

// Propose enqueues a pending reward. The stored balance is untouched.
func (e *Engine) Propose(ctx context.Context, userID string, amount coin.Amount, reason string, typ coin.RewardType, referenceID string) (coin.PendingReward, error) {
	if strings.TrimSpace(reason) == "" {
		return coin.PendingReward{}, &coin.ValidationError{Field: "reason", Message: "is required"}
	}
	if typ == "" {
		typ = coin.RewardAdjustment
	}
	if !typ.Valid() {
		return coin.PendingReward{}, &coin.ValidationError{Field: "type", Message: fmt.Sprintf("unknown reward type %q", typ)}
	}

	p := coin.PendingReward{
		PendingID:   coin.NewID(),
		UserID:      userID,
		Amount:      amount,
		Reason:      strings.TrimSpace(reason),
		Type:        typ,
		ReferenceID: referenceID,
		CreatedAt:   e.now(),
	}
	if err := e.putPending(ctx, p); err != nil {
		return coin.PendingReward{}, err
	}
	return p, nil
}

// List returns the user's pending rewards, oldest first.
func (e *Engine) List(ctx context.Context, userID string) ([]coin.PendingReward, error) {
	items, err := e.Store.Query(ctx, coin.UserPartition(userID), coin.PrefixPending)
	if err != nil {
		return nil, coin.WrapStore("list pending rewards", err)
	}

	pendings := make([]coin.PendingReward, 0, len(items))
	for _, it := range items {
		var p coin.PendingReward
		if err := it.Decode(&p); err != nil {
			return nil, coin.WrapStore("decode pending reward", err)
		}
		pendings = append(pendings, p)
	}
	sort.SliceStable(pendings, func(i, j int) bool {
		if !pendings[i].CreatedAt.Equal(pendings[j].CreatedAt) {
			return pendings[i].CreatedAt.Before(pendings[j].CreatedAt)
		}
		return pendings[i].PendingID < pendings[j].PendingID
	})
	return pendings, nil
}

// Get returns one pending reward.
func (e *Engine) Get(ctx context.Context, userID, pendingID string) (coin.PendingReward, error) {
	it, err := e.Store.Get(ctx, coin.PendingKey(userID, pendingID))
	if err != nil {
		return coin.PendingReward{}, coin.WrapStore("get pending reward", err)
	}
	if it == nil {
		return coin.PendingReward{}, fmt.Errorf("pending reward %s: %w", pendingID, coin.ErrPendingNotFound)
	}
	var p coin.PendingReward
	if err := it.Decode(&p); err != nil {
		return coin.PendingReward{}, coin.WrapStore("decode pending reward", err)
	}
	return p, nil
}

// =============================================================================
// SETTLEMENT
// =============================================================================

// ApproveOne settles a single pending reward: the source activity or
// todo is transitioned, the amount is applied to the balance with the
// item's reason, and the item is deleted. Returns the applied amount.
//
// A missing source record does not block settlement: the parent may
// have deleted the activity after the child proposed it, and the coins
// are still owed.
func (e *Engine) ApproveOne(ctx context.Context, userID, pendingID string) (coin.Amount, error) {
	return e.approve(ctx, userID, pendingID, "")
}

// ApproveWithReasonPrefix is ApproveOne with the log reason prefixed,
// used by the scheduled settlement pass to mark auto-approvals.
func (e *Engine) ApproveWithReasonPrefix(ctx context.Context, userID, pendingID, prefix string) (coin.Amount, error) {
	return e.approve(ctx, userID, pendingID, prefix)
}

func (e *Engine) approve(ctx context.Context, userID, pendingID, reasonPrefix string) (coin.Amount, error) {
	p, err := e.Get(ctx, userID, pendingID)
	if err != nil {
		return coin.Amount{}, err
	}

	e.transitionSource(ctx, p, true)

	change, err := e.Ledger.Adjust(ctx, userID, p.Amount, reasonPrefix+p.Reason)
	if err != nil {
		return coin.Amount{}, err
	}

	if err := e.Store.Delete(ctx, coin.PendingKey(userID, pendingID)); err != nil {
		return coin.Amount{}, coin.WrapStore("delete settled reward", err)
	}

	log.Printf("[Rewards] approved %s for user %s: %s -> %s (%s)",
		pendingID, userID, change.Before.Display(), change.After.Display(), p.Reason)
	return p.Amount, nil
}

// DenyOne discards a pending reward. The source activity or todo is
// reset so the child can complete it again; the balance is never
// touched.
func (e *Engine) DenyOne(ctx context.Context, userID, pendingID string) error {
	p, err := e.Get(ctx, userID, pendingID)
	if err != nil {
		return err
	}

	e.transitionSource(ctx, p, false)

	if err := e.Store.Delete(ctx, coin.PendingKey(userID, pendingID)); err != nil {
		return coin.WrapStore("delete denied reward", err)
	}
	log.Printf("[Rewards] denied %s for user %s (%s)", pendingID, userID, p.Reason)
	return nil
}

// transitionSource applies the approval or denial transition to the
// record the pending item references. Missing sources are logged and
// skipped, never fatal.
func (e *Engine) transitionSource(ctx context.Context, p coin.PendingReward, approved bool) {
	if p.ReferenceID == "" {
		return
	}
	var err error
	switch p.Type {
	case coin.RewardActivity:
		if approved {
			err = e.Chores.ApproveActivity(ctx, p.UserID, p.ReferenceID)
		} else {
			err = e.Chores.DenyActivity(ctx, p.UserID, p.ReferenceID)
		}
	case coin.RewardTodo:
		if approved {
			err = e.Chores.ApproveTodo(ctx, p.UserID, p.ReferenceID)
		} else {
			err = e.Chores.DenyTodo(ctx, p.UserID, p.ReferenceID)
		}
	default:
		return
	}
	if err != nil && !coin.IsNotFound(err) {
		log.Printf("[Rewards] source transition failed for %s (%s %s): %v",
			p.PendingID, p.Type, p.ReferenceID, err)
	}
}

// ApproveAll settles every pending reward for the user, oldest first.
// Items settle sequentially so each log entry's before balance is the
// previous entry's after balance. Per-item failures are counted and
// the batch continues.
func (e *Engine) ApproveAll(ctx context.Context, userID string) (Summary, error) {
	pendings, err := e.List(ctx, userID)
	if err != nil {
		return Summary{}, err
	}

	var sum Summary
	for _, p := range pendings {
		if _, err := e.ApproveOne(ctx, userID, p.PendingID); err != nil {
			log.Printf("[Rewards] approve all: %s failed: %v", p.PendingID, err)
			sum.Failed++
			continue
		}
		sum.Settled++
	}
	return sum, nil
}

// DenyAll discards every pending reward for the user.
func (e *Engine) DenyAll(ctx context.Context, userID string) (Summary, error) {
	pendings, err := e.List(ctx, userID)
	if err != nil {
		return Summary{}, err
	}

	var sum Summary
	for _, p := range pendings {
		if err := e.DenyOne(ctx, userID, p.PendingID); err != nil {
			log.Printf("[Rewards] deny all: %s failed: %v", p.PendingID, err)
			sum.Failed++
			continue
		}
		sum.Settled++
	}
	return sum, nil
}

func (e *Engine) putPending(ctx context.Context, p coin.PendingReward) error {
	it, err := store.NewItem(coin.PendingKey(p.UserID, p.PendingID), p)
	if err != nil {
		return err
	}
	if err := e.Store.Put(ctx, it); err != nil {
		return coin.WrapStore("save pending reward", err)
	}
	return nil
}
