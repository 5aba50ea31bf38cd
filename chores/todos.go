package chores

import (
	"context"
	"fmt"
	"strings"

	"github.com/chorebank/coinledger/coin"
	"github.com/chorebank/coinledger/store"
)

// =============================================================================
// TODOS
// =============================================================================
//
// Todos are one-shot tasks with an optional coin award. Unlike
// activities they carry no repeat cadence and no pending quantity.
// A todo completes at most once, and approval deletes it.

func (s *Service) CreateTodo(ctx context.Context, userID string, t coin.Todo) (coin.Todo, error) {
	if strings.TrimSpace(t.Text) == "" {
		return coin.Todo{}, &coin.ValidationError{Field: "text", Message: "is required"}
	}
	if t.Money.IsNegative() {
		return coin.Todo{}, &coin.ValidationError{Field: "money", Message: "must not be negative"}
	}

	t.TodoID = coin.NewID()
	t.UserID = userID
	t.Completed = coin.CompletionFalse
	t.ApprovedAt = nil
	if t.Repeat == "" {
		t.Repeat = coin.RepeatOnce
	}
	if !t.Repeat.Valid() {
		return coin.Todo{}, &coin.ValidationError{Field: "repeat", Message: fmt.Sprintf("unknown repeat type %q", t.Repeat)}
	}

	it, err := store.NewItem(coin.TodoKey(userID, t.TodoID), t)
	if err != nil {
		return coin.Todo{}, err
	}
	if err := s.Store.PutNew(ctx, it); err != nil {
		return coin.Todo{}, coin.WrapStore("create todo", err)
	}
	return t, nil
}

func (s *Service) GetTodo(ctx context.Context, userID, todoID string) (coin.Todo, error) {
	it, err := s.Store.Get(ctx, coin.TodoKey(userID, todoID))
	if err != nil {
		return coin.Todo{}, coin.WrapStore("get todo", err)
	}
	if it == nil {
		return coin.Todo{}, fmt.Errorf("todo %s: %w", todoID, coin.ErrTodoNotFound)
	}
	var t coin.Todo
	if err := it.Decode(&t); err != nil {
		return coin.Todo{}, coin.WrapStore("decode todo", err)
	}
	if t.Completed == "" {
		t.Completed = coin.CompletionFalse
	}
	return t, nil
}

func (s *Service) ListTodos(ctx context.Context, userID string) ([]coin.Todo, error) {
	items, err := s.Store.Query(ctx, coin.UserPartition(userID), coin.PrefixTodo)
	if err != nil {
		return nil, coin.WrapStore("list todos", err)
	}

	var todos []coin.Todo
	for _, it := range items {
		var t coin.Todo
		if err := it.Decode(&t); err != nil {
			return nil, coin.WrapStore("decode todo", err)
		}
		if t.Completed == "" {
			t.Completed = coin.CompletionFalse
		}
		todos = append(todos, t)
	}
	return todos, nil
}

// SaveTodo overwrites the todo record, last write wins.
func (s *Service) SaveTodo(ctx context.Context, userID string, t coin.Todo) error {
	if _, err := s.GetTodo(ctx, userID, t.TodoID); err != nil {
		return err
	}
	return s.putTodo(ctx, userID, t)
}

func (s *Service) DeleteTodo(ctx context.Context, userID, todoID string) error {
	if _, err := s.GetTodo(ctx, userID, todoID); err != nil {
		return err
	}
	if err := s.Store.Delete(ctx, coin.TodoKey(userID, todoID)); err != nil {
		return coin.WrapStore("delete todo", err)
	}
	return nil
}

// ApproveTodo settles the todo: repeat "once" todos are removed,
// everything else is marked completed and stamped.
func (s *Service) ApproveTodo(ctx context.Context, userID, todoID string) error {
	t, err := s.GetTodo(ctx, userID, todoID)
	if err != nil {
		return err
	}
	if remove := t.ApplyApproval(s.now()); remove {
		if err := s.Store.Delete(ctx, coin.TodoKey(userID, todoID)); err != nil {
			return coin.WrapStore("delete approved todo", err)
		}
		return nil
	}
	return s.putTodo(ctx, userID, t)
}

// DenyTodo returns the todo to its idle state.
func (s *Service) DenyTodo(ctx context.Context, userID, todoID string) error {
	t, err := s.GetTodo(ctx, userID, todoID)
	if err != nil {
		return err
	}
	t.Completed = coin.CompletionFalse
	t.ApprovedAt = nil
	return s.putTodo(ctx, userID, t)
}

func (s *Service) putTodo(ctx context.Context, userID string, t coin.Todo) error {
	it, err := store.NewItem(coin.TodoKey(userID, t.TodoID), t)
	if err != nil {
		return err
	}
	if err := s.Store.Put(ctx, it); err != nil {
		return coin.WrapStore("save todo", err)
	}
	return nil
}
