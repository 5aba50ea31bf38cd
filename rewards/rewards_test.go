package rewards_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chorebank/coinledger/chores"
	"github.com/chorebank/coinledger/coin"
	"github.com/chorebank/coinledger/ledger"
	"github.com/chorebank/coinledger/rewards"
	"github.com/chorebank/coinledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	Store   *store.Memory
	Ledger  *ledger.Ledger
	Chores  *chores.Service
	Rewards *rewards.Engine
}

func newFixture() *fixture {
	st := store.NewMemory()
	l := ledger.New(st)
	ch := chores.New(st)
	return &fixture{
		Store:   st,
		Ledger:  l,
		Chores:  ch,
		Rewards: rewards.New(st, l, ch),
	}
}

func amt(v float64) coin.Amount {
	return coin.NewAmount(v)
}

func (f *fixture) mustActivity(t *testing.T, userID string, a coin.Activity) coin.Activity {
	t.Helper()
	created, err := f.Chores.CreateActivity(context.Background(), userID, a)
	require.NoError(t, err)
	return created
}

// =============================================================================
// PROPOSAL TESTS
// =============================================================================

func TestPropose_DoesNotTouchBalance(t *testing.T) {
	// GIVEN: A user with balance $10
	// WHEN: Proposing a $3 reward
	// THEN: The item is queued, the balance and log are untouched

	f := newFixture()
	ctx := context.Background()

	_, err := f.Ledger.SetBalance(ctx, "kid-1", amt(10), "start")
	require.NoError(t, err)

	p, err := f.Rewards.Propose(ctx, "kid-1", amt(3), "Extra chores", coin.RewardAdjustment, "")
	require.NoError(t, err)
	assert.NotEmpty(t, p.PendingID)

	balance, err := f.Ledger.GetBalance(ctx, "kid-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(amt(10)))

	entries, err := f.Ledger.Logs(ctx, "kid-1")
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the initial entry")
}

func TestPropose_EmptyReason_Validation(t *testing.T) {
	// GIVEN: A proposal with a blank reason
	// WHEN: Proposing
	// THEN: Validation error

	f := newFixture()
	_, err := f.Rewards.Propose(context.Background(), "kid-1", amt(1), "  ", coin.RewardAdjustment, "")
	assert.True(t, coin.IsValidation(err))
}

// =============================================================================
// SINGLE SETTLEMENT TESTS
// =============================================================================

func TestApproveOne_AppliesAmountAndDeletes(t *testing.T) {
	// GIVEN: Balance $10 and a pending +$3
	// WHEN: Approving it
	// THEN: Balance is $13 with a matching log entry, and the item is gone

	f := newFixture()
	ctx := context.Background()

	_, err := f.Ledger.SetBalance(ctx, "kid-1", amt(10), "start")
	require.NoError(t, err)
	p, err := f.Rewards.Propose(ctx, "kid-1", amt(3), "Extra chores", coin.RewardAdjustment, "")
	require.NoError(t, err)

	amount, err := f.Rewards.ApproveOne(ctx, "kid-1", p.PendingID)
	require.NoError(t, err)
	assert.True(t, amount.Equal(amt(3)))

	balance, err := f.Ledger.GetBalance(ctx, "kid-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(amt(13)))

	entries, err := f.Ledger.Logs(ctx, "kid-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Extra chores", entries[1].Reason)

	pendings, err := f.Rewards.List(ctx, "kid-1")
	require.NoError(t, err)
	assert.Empty(t, pendings)
}

func TestApproveOne_ZeroAmount_LogsWithoutMoving(t *testing.T) {
	// GIVEN: Balance $10 and a pending $0 adjustment
	// WHEN: Approving it
	// THEN: The balance stays put and the settlement still leaves a
	//       log entry whose before equals its after

	f := newFixture()
	ctx := context.Background()

	_, err := f.Ledger.SetBalance(ctx, "kid-1", amt(10), "start")
	require.NoError(t, err)
	p, err := f.Rewards.Propose(ctx, "kid-1", amt(0), "Participation", coin.RewardAdjustment, "")
	require.NoError(t, err)

	amount, err := f.Rewards.ApproveOne(ctx, "kid-1", p.PendingID)
	require.NoError(t, err)
	assert.True(t, amount.IsZero())

	balance, err := f.Ledger.GetBalance(ctx, "kid-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(amt(10)))

	entries, err := f.Ledger.Logs(ctx, "kid-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	last := entries[1]
	assert.True(t, last.Amount.IsZero())
	assert.True(t, last.BalanceBefore.Equal(last.BalanceAfter))
	assert.Equal(t, "Participation", last.Reason)
}

func TestApproveThenDeny_MutuallyExclusive(t *testing.T) {
	// GIVEN: A pending reward that was just approved
	// WHEN: Denying (or re-approving) the same id
	// THEN: Not found; the amount is never applied twice

	f := newFixture()
	ctx := context.Background()

	p, err := f.Rewards.Propose(ctx, "kid-1", amt(2), "Dishes", coin.RewardAdjustment, "")
	require.NoError(t, err)

	_, err = f.Rewards.ApproveOne(ctx, "kid-1", p.PendingID)
	require.NoError(t, err)

	err = f.Rewards.DenyOne(ctx, "kid-1", p.PendingID)
	assert.ErrorIs(t, err, coin.ErrPendingNotFound)

	_, err = f.Rewards.ApproveOne(ctx, "kid-1", p.PendingID)
	assert.ErrorIs(t, err, coin.ErrPendingNotFound)

	balance, err := f.Ledger.GetBalance(ctx, "kid-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(amt(2)), "amount applied exactly once")
}

func TestDenyOne_ResetsActivityNeverCharges(t *testing.T) {
	// GIVEN: A negative activity completed twice, balance $10
	// WHEN: Denying the pending item
	// THEN: The activity returns to idle, the balance and log are untouched

	f := newFixture()
	ctx := context.Background()

	_, err := f.Ledger.SetBalance(ctx, "kid-1", amt(10), "start")
	require.NoError(t, err)

	a := f.mustActivity(t, "kid-1", coin.Activity{
		Name: "Yelling", Money: amt(1), Positive: false, Repeat: coin.RepeatDaily,
	})
	_, err = f.Rewards.ChangePendingQuantity(ctx, "kid-1", a.ActivityID, 2)
	require.NoError(t, err)

	pendings, err := f.Rewards.List(ctx, "kid-1")
	require.NoError(t, err)
	require.Len(t, pendings, 1)
	assert.True(t, pendings[0].Amount.Equal(amt(-2)))

	err = f.Rewards.DenyOne(ctx, "kid-1", pendings[0].PendingID)
	require.NoError(t, err)

	got, err := f.Chores.GetActivity(ctx, "kid-1", a.ActivityID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.PendingQuantity)
	assert.Equal(t, coin.CompletionFalse, got.Completed)

	balance, err := f.Ledger.GetBalance(ctx, "kid-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(amt(10)))

	entries, err := f.Ledger.Logs(ctx, "kid-1")
	require.NoError(t, err)
	assert.Len(t, entries, 1, "denial writes no log entry")
}

func TestApproveOne_OnceActivity_Destroyed(t *testing.T) {
	// GIVEN: A repeat "once" activity completed once
	// WHEN: Approving its pending item
	// THEN: The coins land and the activity record is gone

	f := newFixture()
	ctx := context.Background()

	a := f.mustActivity(t, "kid-1", coin.Activity{
		Name: "Clean the garage", Money: amt(5), Positive: true, Repeat: coin.RepeatOnce,
	})
	_, err := f.Rewards.ChangePendingQuantity(ctx, "kid-1", a.ActivityID, 1)
	require.NoError(t, err)

	pendings, err := f.Rewards.List(ctx, "kid-1")
	require.NoError(t, err)
	require.Len(t, pendings, 1)

	amount, err := f.Rewards.ApproveOne(ctx, "kid-1", pendings[0].PendingID)
	require.NoError(t, err)
	assert.True(t, amount.Equal(amt(5)))

	_, err = f.Chores.GetActivity(ctx, "kid-1", a.ActivityID)
	assert.ErrorIs(t, err, coin.ErrActivityNotFound)

	balance, err := f.Ledger.GetBalance(ctx, "kid-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(amt(5)))
}

func TestApproveOne_CadencedActivity_MarkedSettled(t *testing.T) {
	// GIVEN: A daily activity awaiting approval
	// WHEN: Approving
	// THEN: The activity survives as completed with zero quantity

	f := newFixture()
	ctx := context.Background()

	a := f.mustActivity(t, "kid-1", coin.Activity{
		Name: "Make bed", Money: amt(1), Positive: true, Repeat: coin.RepeatDaily,
	})
	_, err := f.Rewards.ChangePendingQuantity(ctx, "kid-1", a.ActivityID, 1)
	require.NoError(t, err)

	pendings, err := f.Rewards.List(ctx, "kid-1")
	require.NoError(t, err)
	require.Len(t, pendings, 1)

	_, err = f.Rewards.ApproveOne(ctx, "kid-1", pendings[0].PendingID)
	require.NoError(t, err)

	got, err := f.Chores.GetActivity(ctx, "kid-1", a.ActivityID)
	require.NoError(t, err)
	assert.Equal(t, coin.CompletionTrue, got.Completed)
	assert.Equal(t, 0, got.PendingQuantity)
}

// =============================================================================
// BATCH SETTLEMENT TESTS
// =============================================================================

func TestApproveAll_SequentialRunningBalances(t *testing.T) {
	// GIVEN: Balance $10 and pending rewards +$2, -$1, +$5 (oldest first)
	// WHEN: Approving all
	// THEN: Log entries show balances 12, 11, 16 in order

	f := newFixture()
	ctx := context.Background()

	_, err := f.Ledger.SetBalance(ctx, "kid-1", amt(10), "start")
	require.NoError(t, err)

	for _, v := range []float64{2, -1, 5} {
		_, err = f.Rewards.Propose(ctx, "kid-1", amt(v), "step", coin.RewardAdjustment, "")
		require.NoError(t, err)
	}

	sum, err := f.Rewards.ApproveAll(ctx, "kid-1")
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Settled)
	assert.Equal(t, 0, sum.Failed)

	entries, err := f.Ledger.Logs(ctx, "kid-1")
	require.NoError(t, err)
	require.Len(t, entries, 4)

	wantAfter := []float64{10, 12, 11, 16}
	for i, e := range entries {
		assert.True(t, e.BalanceAfter.Equal(amt(wantAfter[i])),
			"entry %d: want %.2f, got %s", i, wantAfter[i], e.BalanceAfter)
	}

	balance, err := f.Ledger.GetBalance(ctx, "kid-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(amt(16)))
}

func TestDenyAll_ClearsQueueWithoutBalanceChange(t *testing.T) {
	// GIVEN: Three pending rewards and balance $10
	// WHEN: Denying all
	// THEN: Queue is empty, balance unchanged

	f := newFixture()
	ctx := context.Background()

	_, err := f.Ledger.SetBalance(ctx, "kid-1", amt(10), "start")
	require.NoError(t, err)
	for _, v := range []float64{2, -1, 5} {
		_, err = f.Rewards.Propose(ctx, "kid-1", amt(v), "step", coin.RewardAdjustment, "")
		require.NoError(t, err)
	}

	sum, err := f.Rewards.DenyAll(ctx, "kid-1")
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Settled)

	pendings, err := f.Rewards.List(ctx, "kid-1")
	require.NoError(t, err)
	assert.Empty(t, pendings)

	balance, err := f.Ledger.GetBalance(ctx, "kid-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(amt(10)))
}

// =============================================================================
// PENDING SYNC TESTS
// =============================================================================

func TestChangePendingQuantity_SingleItemIdempotent(t *testing.T) {
	// GIVEN: A $2 positive activity
	// WHEN: Completing it three times, then un-completing back to zero
	// THEN: At most one pending item exists at any step, its amount tracks
	//       quantity x money, and zero quantity removes it

	f := newFixture()
	ctx := context.Background()

	a := f.mustActivity(t, "kid-1", coin.Activity{
		Name: "Dishes", Money: amt(2), Positive: true, Repeat: coin.RepeatDaily,
	})

	for i := 1; i <= 3; i++ {
		got, err := f.Rewards.ChangePendingQuantity(ctx, "kid-1", a.ActivityID, 1)
		require.NoError(t, err)
		assert.Equal(t, i, got.PendingQuantity)
		assert.Equal(t, coin.CompletionPending, got.Completed)

		pendings, err := f.Rewards.List(ctx, "kid-1")
		require.NoError(t, err)
		require.Len(t, pendings, 1, "never more than one item per activity")
		assert.True(t, pendings[0].Amount.Equal(amt(float64(2*i))))
		assert.Equal(t, a.ActivityID, pendings[0].ReferenceID)
	}

	got, err := f.Rewards.ChangePendingQuantity(ctx, "kid-1", a.ActivityID, -3)
	require.NoError(t, err)
	assert.Equal(t, 0, got.PendingQuantity)
	assert.Equal(t, coin.CompletionFalse, got.Completed)

	pendings, err := f.Rewards.List(ctx, "kid-1")
	require.NoError(t, err)
	assert.Empty(t, pendings, "zero quantity deletes the item")
}

func TestChangePendingQuantity_ClampsBelowZero(t *testing.T) {
	// GIVEN: An idle activity
	// WHEN: Decrementing past zero
	// THEN: Quantity clamps at zero, no pending item appears

	f := newFixture()
	ctx := context.Background()

	a := f.mustActivity(t, "kid-1", coin.Activity{
		Name: "Dishes", Money: amt(2), Positive: true, Repeat: coin.RepeatDaily,
	})

	got, err := f.Rewards.ChangePendingQuantity(ctx, "kid-1", a.ActivityID, -5)
	require.NoError(t, err)
	assert.Equal(t, 0, got.PendingQuantity)

	pendings, err := f.Rewards.List(ctx, "kid-1")
	require.NoError(t, err)
	assert.Empty(t, pendings)
}

func TestChangePendingQuantity_NegativeActivity_NegativeAmount(t *testing.T) {
	// GIVEN: A $1 negative activity
	// WHEN: Marking it done twice
	// THEN: The pending item carries -$2

	f := newFixture()
	ctx := context.Background()

	a := f.mustActivity(t, "kid-1", coin.Activity{
		Name: "Fighting", Money: amt(1), Positive: false, Repeat: coin.RepeatNone,
	})
	_, err := f.Rewards.ChangePendingQuantity(ctx, "kid-1", a.ActivityID, 2)
	require.NoError(t, err)

	pendings, err := f.Rewards.List(ctx, "kid-1")
	require.NoError(t, err)
	require.Len(t, pendings, 1)
	assert.True(t, pendings[0].Amount.Equal(amt(-2)))
}

func TestCompleteTodo_SyncsAndUnsyncsPendingItem(t *testing.T) {
	// GIVEN: A $4 todo
	// WHEN: Completing, then un-completing it
	// THEN: The pending item appears with the todo's value and disappears
	//       again; repeating a call changes nothing

	f := newFixture()
	ctx := context.Background()

	todo, err := f.Chores.CreateTodo(ctx, "kid-1", coin.Todo{Text: "Homework", Money: amt(4)})
	require.NoError(t, err)

	got, err := f.Rewards.CompleteTodo(ctx, "kid-1", todo.TodoID, true)
	require.NoError(t, err)
	assert.Equal(t, coin.CompletionPending, got.Completed)

	// Same call again: still one item.
	_, err = f.Rewards.CompleteTodo(ctx, "kid-1", todo.TodoID, true)
	require.NoError(t, err)

	pendings, err := f.Rewards.List(ctx, "kid-1")
	require.NoError(t, err)
	require.Len(t, pendings, 1)
	assert.True(t, pendings[0].Amount.Equal(amt(4)))
	assert.Equal(t, coin.RewardTodo, pendings[0].Type)
	assert.Equal(t, todo.TodoID, pendings[0].ReferenceID)

	got, err = f.Rewards.CompleteTodo(ctx, "kid-1", todo.TodoID, false)
	require.NoError(t, err)
	assert.Equal(t, coin.CompletionFalse, got.Completed)

	pendings, err = f.Rewards.List(ctx, "kid-1")
	require.NoError(t, err)
	assert.Empty(t, pendings)
}

func TestDenyOne_Todo_ReopensWithoutCharging(t *testing.T) {
	// GIVEN: A completed todo with its pending item
	// WHEN: Denying the pending reward
	// THEN: The todo returns to the open state so it can be completed
	//       again, and the balance never moves

	f := newFixture()
	ctx := context.Background()

	todo, err := f.Chores.CreateTodo(ctx, "kid-1", coin.Todo{Text: "Homework", Money: amt(4)})
	require.NoError(t, err)
	_, err = f.Rewards.CompleteTodo(ctx, "kid-1", todo.TodoID, true)
	require.NoError(t, err)

	pendings, err := f.Rewards.List(ctx, "kid-1")
	require.NoError(t, err)
	require.Len(t, pendings, 1)

	require.NoError(t, f.Rewards.DenyOne(ctx, "kid-1", pendings[0].PendingID))

	got, err := f.Chores.GetTodo(ctx, "kid-1", todo.TodoID)
	require.NoError(t, err)
	assert.Equal(t, coin.CompletionFalse, got.Completed)
	assert.Nil(t, got.ApprovedAt)

	balance, err := f.Ledger.GetBalance(ctx, "kid-1")
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	// The todo can go around again.
	reopened, err := f.Rewards.CompleteTodo(ctx, "kid-1", todo.TodoID, true)
	require.NoError(t, err)
	assert.Equal(t, coin.CompletionPending, reopened.Completed)
}

func TestApproveOne_Todo_OnceRemovedAfterApproval(t *testing.T) {
	// GIVEN: A completed one-shot todo with its pending item
	// WHEN: Approving
	// THEN: Coins land and the todo record is gone

	f := newFixture()
	ctx := context.Background()

	todo, err := f.Chores.CreateTodo(ctx, "kid-1", coin.Todo{Text: "Homework", Money: amt(4)})
	require.NoError(t, err)
	_, err = f.Rewards.CompleteTodo(ctx, "kid-1", todo.TodoID, true)
	require.NoError(t, err)

	pendings, err := f.Rewards.List(ctx, "kid-1")
	require.NoError(t, err)
	require.Len(t, pendings, 1)

	amount, err := f.Rewards.ApproveOne(ctx, "kid-1", pendings[0].PendingID)
	require.NoError(t, err)
	assert.True(t, amount.Equal(amt(4)))

	_, err = f.Chores.GetTodo(ctx, "kid-1", todo.TodoID)
	assert.ErrorIs(t, err, coin.ErrTodoNotFound)
}
