package chores_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chorebank/coinledger/chores"
	"github.com/chorebank/coinledger/coin"
	"github.com/chorebank/coinledger/store"
)

func newService() *chores.Service {
	return chores.New(store.NewMemory())
}

func amt(v float64) coin.Amount {
	return coin.NewAmount(v)
}

// =============================================================================
// BEHAVIOR TESTS
// =============================================================================

func TestBehavior_CreateListDelete(t *testing.T) {
	// GIVEN: A behavior with two nested activities
	// WHEN: Deleting the behavior
	// THEN: The behavior and both activities are gone

	s := newService()
	ctx := context.Background()

	b, err := s.CreateBehavior(ctx, "kid-1", "Kitchen")
	require.NoError(t, err)

	for _, name := range []string{"Dishes", "Set table"} {
		_, err = s.CreateActivity(ctx, "kid-1", coin.Activity{
			Name: name, Money: amt(1), Positive: true, BehaviorID: b.BehaviorID,
		})
		require.NoError(t, err)
	}

	behaviors, err := s.ListBehaviors(ctx, "kid-1")
	require.NoError(t, err)
	require.Len(t, behaviors, 1)
	assert.Equal(t, "Kitchen", behaviors[0].Name)

	nested, err := s.ListActivities(ctx, "kid-1", chores.ListOptions{BehaviorID: b.BehaviorID})
	require.NoError(t, err)
	assert.Len(t, nested, 2)

	require.NoError(t, s.DeleteBehavior(ctx, "kid-1", b.BehaviorID))

	behaviors, err = s.ListBehaviors(ctx, "kid-1")
	require.NoError(t, err)
	assert.Empty(t, behaviors)

	all, err := s.ListActivities(ctx, "kid-1", chores.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, all, "nested activities removed with the behavior")
}

func TestCreateActivity_UnknownBehavior_NotFound(t *testing.T) {
	// GIVEN: No behaviors
	// WHEN: Creating an activity under a missing behavior id
	// THEN: ErrBehaviorNotFound

	s := newService()
	_, err := s.CreateActivity(context.Background(), "kid-1", coin.Activity{
		Name: "Dishes", Money: amt(1), BehaviorID: "ghost",
	})
	assert.ErrorIs(t, err, coin.ErrBehaviorNotFound)
}

// =============================================================================
// ACTIVITY LOOKUP AND LISTING
// =============================================================================

func TestGetActivity_FindsStandaloneAndNested(t *testing.T) {
	// GIVEN: One standalone activity and one nested under a behavior
	// WHEN: Fetching each by id
	// THEN: Both resolve regardless of where they live

	s := newService()
	ctx := context.Background()

	standalone, err := s.CreateActivity(ctx, "kid-1", coin.Activity{
		Name: "Homework", Money: amt(2), Positive: true,
	})
	require.NoError(t, err)

	b, err := s.CreateBehavior(ctx, "kid-1", "Kitchen")
	require.NoError(t, err)
	nested, err := s.CreateActivity(ctx, "kid-1", coin.Activity{
		Name: "Dishes", Money: amt(1), Positive: true, BehaviorID: b.BehaviorID,
	})
	require.NoError(t, err)

	got, err := s.GetActivity(ctx, "kid-1", standalone.ActivityID)
	require.NoError(t, err)
	assert.Equal(t, "Homework", got.Name)

	got, err = s.GetActivity(ctx, "kid-1", nested.ActivityID)
	require.NoError(t, err)
	assert.Equal(t, "Dishes", got.Name)
	assert.Equal(t, b.BehaviorID, got.BehaviorID)

	_, err = s.GetActivity(ctx, "kid-1", "ghost")
	assert.ErrorIs(t, err, coin.ErrActivityNotFound)
}

func TestListActivities_Filters(t *testing.T) {
	// GIVEN: A mix of standalone/nested and repeating/one-off activities
	// WHEN: Listing with each filter
	// THEN: The filters select the right subsets

	s := newService()
	ctx := context.Background()

	b, err := s.CreateBehavior(ctx, "kid-1", "Kitchen")
	require.NoError(t, err)

	_, err = s.CreateActivity(ctx, "kid-1", coin.Activity{
		Name: "Dishes", Money: amt(1), Repeat: coin.RepeatDaily, BehaviorID: b.BehaviorID,
	})
	require.NoError(t, err)
	_, err = s.CreateActivity(ctx, "kid-1", coin.Activity{
		Name: "Homework", Money: amt(2), Repeat: coin.RepeatDaily,
	})
	require.NoError(t, err)
	_, err = s.CreateActivity(ctx, "kid-1", coin.Activity{
		Name: "Errand", Money: amt(3), Repeat: coin.RepeatNone,
	})
	require.NoError(t, err)

	all, err := s.ListActivities(ctx, "kid-1", chores.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	standalone, err := s.ListActivities(ctx, "kid-1", chores.ListOptions{StandaloneOnly: true})
	require.NoError(t, err)
	assert.Len(t, standalone, 2)

	repeatable, err := s.ListActivities(ctx, "kid-1", chores.ListOptions{RepeatableOnly: true})
	require.NoError(t, err)
	assert.Len(t, repeatable, 2)
}

func TestSaveActivity_MoveBetweenBehaviors(t *testing.T) {
	// GIVEN: A standalone activity
	// WHEN: Attaching it to a behavior and saving
	// THEN: It relocates under the behavior key and is still found by id

	s := newService()
	ctx := context.Background()

	a, err := s.CreateActivity(ctx, "kid-1", coin.Activity{Name: "Dishes", Money: amt(1)})
	require.NoError(t, err)
	b, err := s.CreateBehavior(ctx, "kid-1", "Kitchen")
	require.NoError(t, err)

	a.BehaviorID = b.BehaviorID
	require.NoError(t, s.SaveActivity(ctx, "kid-1", a))

	got, err := s.GetActivity(ctx, "kid-1", a.ActivityID)
	require.NoError(t, err)
	assert.Equal(t, b.BehaviorID, got.BehaviorID)

	standalone, err := s.ListActivities(ctx, "kid-1", chores.ListOptions{StandaloneOnly: true})
	require.NoError(t, err)
	assert.Empty(t, standalone, "old standalone record removed")

	nested, err := s.ListActivities(ctx, "kid-1", chores.ListOptions{BehaviorID: b.BehaviorID})
	require.NoError(t, err)
	assert.Len(t, nested, 1)
}

// =============================================================================
// APPROVAL / DENIAL / RESET PRIMITIVES
// =============================================================================

func TestApproveActivity_ByRepeatType(t *testing.T) {
	// GIVEN: Activities with each repeat type, all awaiting approval
	// WHEN: Approving
	// THEN: once is deleted, daily settles, none returns to idle

	s := newService()
	ctx := context.Background()

	mk := func(repeat coin.RepeatType) coin.Activity {
		a, err := s.CreateActivity(ctx, "kid-1", coin.Activity{
			Name: "Chore", Money: amt(1), Repeat: repeat,
		})
		require.NoError(t, err)
		a.SetPendingQuantity(1)
		require.NoError(t, s.SaveActivity(ctx, "kid-1", a))
		return a
	}

	once := mk(coin.RepeatOnce)
	daily := mk(coin.RepeatDaily)
	none := mk(coin.RepeatNone)

	require.NoError(t, s.ApproveActivity(ctx, "kid-1", once.ActivityID))
	_, err := s.GetActivity(ctx, "kid-1", once.ActivityID)
	assert.ErrorIs(t, err, coin.ErrActivityNotFound)

	require.NoError(t, s.ApproveActivity(ctx, "kid-1", daily.ActivityID))
	got, err := s.GetActivity(ctx, "kid-1", daily.ActivityID)
	require.NoError(t, err)
	assert.Equal(t, coin.CompletionTrue, got.Completed)
	assert.Equal(t, 0, got.PendingQuantity)

	require.NoError(t, s.ApproveActivity(ctx, "kid-1", none.ActivityID))
	got, err = s.GetActivity(ctx, "kid-1", none.ActivityID)
	require.NoError(t, err)
	assert.Equal(t, coin.CompletionFalse, got.Completed)
}

// =============================================================================
// TODO TESTS
// =============================================================================

func TestTodo_Lifecycle(t *testing.T) {
	// GIVEN: A fresh todo
	// WHEN: Completing, denying, approving
	// THEN: State transitions hold and one-shot approval deletes

	s := newService()
	ctx := context.Background()

	todo, err := s.CreateTodo(ctx, "kid-1", coin.Todo{Text: "Homework", Money: amt(4)})
	require.NoError(t, err)
	assert.Equal(t, coin.RepeatOnce, todo.Repeat, "todos default to one-shot")
	assert.Equal(t, coin.CompletionFalse, todo.Completed)

	require.NoError(t, s.DenyTodo(ctx, "kid-1", todo.TodoID))
	got, err := s.GetTodo(ctx, "kid-1", todo.TodoID)
	require.NoError(t, err)
	assert.Equal(t, coin.CompletionFalse, got.Completed)

	require.NoError(t, s.ApproveTodo(ctx, "kid-1", todo.TodoID))
	_, err = s.GetTodo(ctx, "kid-1", todo.TodoID)
	assert.ErrorIs(t, err, coin.ErrTodoNotFound)
}

func TestTodo_WeeklyApprovalKeepsRecord(t *testing.T) {
	// GIVEN: A weekly todo
	// WHEN: Approving it
	// THEN: It is marked completed and stamped, not deleted

	s := newService()
	ctx := context.Background()

	todo, err := s.CreateTodo(ctx, "kid-1", coin.Todo{
		Text: "Water plants", Money: amt(1), Repeat: coin.RepeatWeekly,
	})
	require.NoError(t, err)

	require.NoError(t, s.ApproveTodo(ctx, "kid-1", todo.TodoID))
	got, err := s.GetTodo(ctx, "kid-1", todo.TodoID)
	require.NoError(t, err)
	assert.Equal(t, coin.CompletionTrue, got.Completed)
	assert.NotNil(t, got.ApprovedAt)
}

func TestCreateTodo_Validation(t *testing.T) {
	// GIVEN: Invalid todo inputs
	// WHEN: Creating
	// THEN: Validation errors

	s := newService()
	ctx := context.Background()

	_, err := s.CreateTodo(ctx, "kid-1", coin.Todo{Text: " "})
	assert.True(t, coin.IsValidation(err))

	_, err = s.CreateTodo(ctx, "kid-1", coin.Todo{Text: "x", Money: amt(-1)})
	assert.True(t, coin.IsValidation(err))
}
