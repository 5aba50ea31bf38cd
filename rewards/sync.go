package rewards

import (
	"context"
	"fmt"

	"github.com/chorebank/coinledger/coin"
)

// =============================================================================
// SOURCE SYNC
// =============================================================================
//
// Completing an activity or todo does not touch the balance; it keeps
// exactly one pending item in step with the source record. Repeating
// the same call with the same state is a no-op.

// ChangePendingQuantity adjusts an activity's proposed completion count
// by delta (clamping at zero) and syncs its pending item: the amount is
// always quantity times the signed per-completion value, the item is
// created on the first completion, updated in place afterwards, and
// deleted when the quantity returns to zero.
func (e *Engine) ChangePendingQuantity(ctx context.Context, userID, activityID string, delta int) (coin.Activity, error) {
	a, err := e.Chores.GetActivity(ctx, userID, activityID)
	if err != nil {
		return coin.Activity{}, err
	}

	a.SetPendingQuantity(a.PendingQuantity + delta)
	if err := e.Chores.SaveActivity(ctx, userID, a); err != nil {
		return coin.Activity{}, err
	}

	reason := fmt.Sprintf("%s x%d", a.Name, a.PendingQuantity)
	if err := e.syncPending(ctx, userID, coin.RewardActivity, a.ActivityID,
		a.PendingAmount(), reason, a.PendingQuantity > 0); err != nil {
		return coin.Activity{}, err
	}
	return a, nil
}

// CompleteTodo marks a todo as awaiting approval (or takes the mark
// back) and syncs its pending item the same way.
func (e *Engine) CompleteTodo(ctx context.Context, userID, todoID string, completed bool) (coin.Todo, error) {
	t, err := e.Chores.GetTodo(ctx, userID, todoID)
	if err != nil {
		return coin.Todo{}, err
	}

	if completed {
		t.Completed = coin.CompletionPending
	} else {
		t.Completed = coin.CompletionFalse
	}
	if err := e.Chores.SaveTodo(ctx, userID, t); err != nil {
		return coin.Todo{}, err
	}

	if err := e.syncPending(ctx, userID, coin.RewardTodo, t.TodoID,
		t.Money, t.Text, completed); err != nil {
		return coin.Todo{}, err
	}
	return t, nil
}

// syncPending maintains the single pending item keyed by (type,
// referenceID). keep=false deletes it; keep=true updates the existing
// item in place or creates one.
func (e *Engine) syncPending(ctx context.Context, userID string, typ coin.RewardType, referenceID string, amount coin.Amount, reason string, keep bool) error {
	existing, err := e.findByReference(ctx, userID, typ, referenceID)
	if err != nil {
		return err
	}

	if !keep {
		if existing == nil {
			return nil
		}
		if err := e.Store.Delete(ctx, coin.PendingKey(userID, existing.PendingID)); err != nil {
			return coin.WrapStore("delete pending reward", err)
		}
		return nil
	}

	if existing != nil {
		existing.Amount = amount
		existing.Reason = reason
		return e.putPending(ctx, *existing)
	}

	p := coin.PendingReward{
		PendingID:   coin.NewID(),
		UserID:      userID,
		Amount:      amount,
		Reason:      reason,
		Type:        typ,
		ReferenceID: referenceID,
		CreatedAt:   e.now(),
	}
	return e.putPending(ctx, p)
}

// findByReference returns the pending item referencing the given
// source record, nil when none exists.
func (e *Engine) findByReference(ctx context.Context, userID string, typ coin.RewardType, referenceID string) (*coin.PendingReward, error) {
	items, err := e.Store.Query(ctx, coin.UserPartition(userID), coin.PrefixPending)
	if err != nil {
		return nil, coin.WrapStore("query pending rewards", err)
	}
	for _, it := range items {
		var p coin.PendingReward
		if err := it.Decode(&p); err != nil {
			return nil, coin.WrapStore("decode pending reward", err)
		}
		if p.Type == typ && p.ReferenceID == referenceID {
			return &p, nil
		}
	}
	return nil, nil
}
