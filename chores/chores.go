/*
Package chores manages activities, behaviors and todos: the things a
child completes to earn (or lose) coins.

PURPOSE:
  Owns the records behind the completion state machine and their
  lifecycle primitives. The rewards engine drives the state machine
  (quantity changes, approval, denial); this package persists it and
  answers the lookups the engine and the reset pass need.

RECORD PLACEMENT:
  Activities live either standalone (ACTIVITY#<id>) or nested under a
  behavior (BEHAVIOR#<behaviorId>#ACTIVITY#<id>). Moving an activity
  between the two is a delete + recreate under the new sort key, the
  same last-write-wins semantics as every other edit.

SEE ALSO:
  - coin/records.go: Activity state machine
  - rewards/: approval/denial orchestration
  - reset/: scheduled cycle resets
*/
package chores

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chorebank/coinledger/coin"
	"github.com/chorebank/coinledger/store"
)

// Service persists activities, behaviors and todos.
type Service struct {
	Store store.ItemStore

	// Now is the clock; tests override it. Nil means time.Now.
	Now func() time.Time
}

func New(st store.ItemStore) *Service {
	return &Service{Store: st}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// =============================================================================
// BEHAVIORS
// =============================================================================

func (s *Service) CreateBehavior(ctx context.Context, userID, name string) (coin.Behavior, error) {
	if strings.TrimSpace(name) == "" {
		return coin.Behavior{}, &coin.ValidationError{Field: "behaviorName", Message: "is required"}
	}

	b := coin.Behavior{BehaviorID: coin.NewID(), UserID: userID, Name: strings.TrimSpace(name)}
	it, err := store.NewItem(coin.BehaviorKey(userID, b.BehaviorID), b)
	if err != nil {
		return coin.Behavior{}, err
	}
	if err := s.Store.PutNew(ctx, it); err != nil {
		return coin.Behavior{}, coin.WrapStore("create behavior", err)
	}
	return b, nil
}

func (s *Service) ListBehaviors(ctx context.Context, userID string) ([]coin.Behavior, error) {
	items, err := s.Store.Query(ctx, coin.UserPartition(userID), coin.PrefixBehavior)
	if err != nil {
		return nil, coin.WrapStore("list behaviors", err)
	}

	var behaviors []coin.Behavior
	for _, it := range items {
		if coin.IsActivitySort(it.Sort) {
			continue // nested activity, not a behavior record
		}
		var b coin.Behavior
		if err := it.Decode(&b); err != nil {
			return nil, coin.WrapStore("decode behavior", err)
		}
		behaviors = append(behaviors, b)
	}
	return behaviors, nil
}

func (s *Service) GetBehavior(ctx context.Context, userID, behaviorID string) (coin.Behavior, error) {
	it, err := s.Store.Get(ctx, coin.BehaviorKey(userID, behaviorID))
	if err != nil {
		return coin.Behavior{}, coin.WrapStore("get behavior", err)
	}
	if it == nil {
		return coin.Behavior{}, fmt.Errorf("behavior %s: %w", behaviorID, coin.ErrBehaviorNotFound)
	}
	var b coin.Behavior
	if err := it.Decode(&b); err != nil {
		return coin.Behavior{}, coin.WrapStore("decode behavior", err)
	}
	return b, nil
}

// DeleteBehavior removes the behavior record and every activity nested
// under it, atomically.
func (s *Service) DeleteBehavior(ctx context.Context, userID, behaviorID string) error {
	if _, err := s.GetBehavior(ctx, userID, behaviorID); err != nil {
		return err
	}

	nested, err := s.Store.Query(ctx, coin.UserPartition(userID),
		coin.PrefixBehavior+behaviorID+"#")
	if err != nil {
		return coin.WrapStore("list behavior activities", err)
	}

	ops := []store.WriteOp{store.DeleteOp(coin.BehaviorKey(userID, behaviorID))}
	for _, it := range nested {
		ops = append(ops, store.DeleteOp(it.Key))
	}
	if err := s.Store.WriteBatch(ctx, ops); err != nil {
		return coin.WrapStore("delete behavior", err)
	}
	return nil
}

// =============================================================================
// ACTIVITIES
// =============================================================================

func activityKey(userID string, a coin.Activity) store.Key {
	if a.BehaviorID != "" {
		return coin.BehaviorActivityKey(userID, a.BehaviorID, a.ActivityID)
	}
	return coin.StandaloneActivityKey(userID, a.ActivityID)
}

// CreateActivity validates and stores a new activity, standalone or
// grouped under an existing behavior.
func (s *Service) CreateActivity(ctx context.Context, userID string, a coin.Activity) (coin.Activity, error) {
	if strings.TrimSpace(a.Name) == "" {
		return coin.Activity{}, &coin.ValidationError{Field: "activityName", Message: "is required"}
	}
	if a.Money.IsNegative() {
		return coin.Activity{}, &coin.ValidationError{Field: "money", Message: "must not be negative"}
	}
	if a.Repeat == "" {
		a.Repeat = coin.RepeatNone
	}
	if !a.Repeat.Valid() {
		return coin.Activity{}, &coin.ValidationError{Field: "repeat", Message: fmt.Sprintf("unknown repeat type %q", a.Repeat)}
	}
	if a.BehaviorID != "" {
		if _, err := s.GetBehavior(ctx, userID, a.BehaviorID); err != nil {
			return coin.Activity{}, err
		}
	}

	a.ActivityID = coin.NewID()
	a.UserID = userID
	a.PendingQuantity = 0
	a.Completed = coin.CompletionFalse

	it, err := store.NewItem(activityKey(userID, a), a)
	if err != nil {
		return coin.Activity{}, err
	}
	if err := s.Store.PutNew(ctx, it); err != nil {
		return coin.Activity{}, coin.WrapStore("create activity", err)
	}
	return a, nil
}

// GetActivity finds an activity by id, standalone or behavior-grouped.
func (s *Service) GetActivity(ctx context.Context, userID, activityID string) (coin.Activity, error) {
	// Standalone key is a direct hit.
	if it, err := s.Store.Get(ctx, coin.StandaloneActivityKey(userID, activityID)); err != nil {
		return coin.Activity{}, coin.WrapStore("get activity", err)
	} else if it != nil {
		return decodeActivity(*it)
	}

	// Otherwise it lives under one of the user's behaviors.
	items, err := s.Store.Query(ctx, coin.UserPartition(userID), coin.PrefixBehavior)
	if err != nil {
		return coin.Activity{}, coin.WrapStore("get activity", err)
	}
	for _, it := range items {
		if !coin.IsActivitySort(it.Sort) {
			continue
		}
		a, err := decodeActivity(it)
		if err != nil {
			return coin.Activity{}, err
		}
		if a.ActivityID == activityID {
			return a, nil
		}
	}
	return coin.Activity{}, fmt.Errorf("activity %s: %w", activityID, coin.ErrActivityNotFound)
}

// SaveActivity persists the activity under its current key, relocating
// it when the behavior association changed.
func (s *Service) SaveActivity(ctx context.Context, userID string, a coin.Activity) error {
	prev, err := s.GetActivity(ctx, userID, a.ActivityID)
	if err != nil {
		return err
	}

	if a.BehaviorID != "" && a.BehaviorID != prev.BehaviorID {
		if _, err := s.GetBehavior(ctx, userID, a.BehaviorID); err != nil {
			return err
		}
	}

	it, err := store.NewItem(activityKey(userID, a), a)
	if err != nil {
		return err
	}

	if prev.BehaviorID != a.BehaviorID {
		// Behavior changed: recreate under the new sort key.
		ops := []store.WriteOp{
			store.DeleteOp(activityKey(userID, prev)),
			store.PutOp(it),
		}
		if err := s.Store.WriteBatch(ctx, ops); err != nil {
			return coin.WrapStore("relocate activity", err)
		}
		return nil
	}

	if err := s.Store.Put(ctx, it); err != nil {
		return coin.WrapStore("save activity", err)
	}
	return nil
}

// DeleteActivity removes an activity wherever it lives.
func (s *Service) DeleteActivity(ctx context.Context, userID, activityID string) error {
	a, err := s.GetActivity(ctx, userID, activityID)
	if err != nil {
		return err
	}
	if err := s.Store.Delete(ctx, activityKey(userID, a)); err != nil {
		return coin.WrapStore("delete activity", err)
	}
	return nil
}

// ListOptions filter ListActivities.
type ListOptions struct {
	BehaviorID     string // only this behavior's activities
	StandaloneOnly bool   // only activities without a behavior
	RepeatableOnly bool   // only repeat != none
}

// ListActivities returns the user's activities, filtered.
func (s *Service) ListActivities(ctx context.Context, userID string, opts ListOptions) ([]coin.Activity, error) {
	var items []store.Item
	var err error

	switch {
	case opts.BehaviorID != "":
		items, err = s.Store.Query(ctx, coin.UserPartition(userID),
			coin.PrefixBehavior+opts.BehaviorID+"#")
	case opts.StandaloneOnly:
		items, err = s.Store.Query(ctx, coin.UserPartition(userID), coin.PrefixActivity)
	default:
		items, err = s.Store.Query(ctx, coin.UserPartition(userID), "")
	}
	if err != nil {
		return nil, coin.WrapStore("list activities", err)
	}

	var activities []coin.Activity
	for _, it := range items {
		if !coin.IsActivitySort(it.Sort) {
			continue
		}
		a, err := decodeActivity(it)
		if err != nil {
			return nil, err
		}
		if opts.RepeatableOnly && !a.Repeat.Repeats() {
			continue
		}
		activities = append(activities, a)
	}
	return activities, nil
}

// ApproveActivity applies the approval transition. Repeat "once"
// activities are destroyed; everything else is saved back.
func (s *Service) ApproveActivity(ctx context.Context, userID, activityID string) error {
	a, err := s.GetActivity(ctx, userID, activityID)
	if err != nil {
		return err
	}
	if remove := a.ApplyApproval(); remove {
		if err := s.Store.Delete(ctx, activityKey(userID, a)); err != nil {
			return coin.WrapStore("delete once activity", err)
		}
		return nil
	}
	return s.putActivity(ctx, userID, a)
}

// DenyActivity discards the proposed completions.
func (s *Service) DenyActivity(ctx context.Context, userID, activityID string) error {
	a, err := s.GetActivity(ctx, userID, activityID)
	if err != nil {
		return err
	}
	a.ApplyDenial()
	return s.putActivity(ctx, userID, a)
}

// ResetActivityCycle closes out a scheduled period for one activity.
func (s *Service) ResetActivityCycle(ctx context.Context, userID string, a coin.Activity) error {
	a.ResetCycle(s.now())
	return s.putActivity(ctx, userID, a)
}

func (s *Service) putActivity(ctx context.Context, userID string, a coin.Activity) error {
	it, err := store.NewItem(activityKey(userID, a), a)
	if err != nil {
		return err
	}
	if err := s.Store.Put(ctx, it); err != nil {
		return coin.WrapStore("save activity", err)
	}
	return nil
}

func decodeActivity(it store.Item) (coin.Activity, error) {
	var a coin.Activity
	if err := it.Decode(&a); err != nil {
		return coin.Activity{}, coin.WrapStore("decode activity", err)
	}
	if a.Completed == "" {
		a.Completed = coin.CompletionFalse
	}
	if a.Repeat == "" {
		a.Repeat = coin.RepeatNone
	}
	return a, nil
}
