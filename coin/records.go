/*
records.go - Stored record types and the completion state machine

PURPOSE:
  The typed shapes persisted in the item collection. JSON field names
  match the legacy rows (pending_quantity, balanceBefore, ...) so a
  database written by the previous implementation reads back cleanly.

COMPLETION STATE MACHINE:
  An activity's completion is a proper state, not a loose flag pair:

    Idle              pendingQuantity == 0, completed == "false"
    AwaitingApproval  pendingQuantity  > 0, completed == "pending"
    Settled           pendingQuantity == 0, completed == "true"

  Transitions:
    Idle/Awaiting --SetPendingQuantity(n>0)--> AwaitingApproval
    Awaiting      --SetPendingQuantity(0)---> Idle
    Awaiting      --ApplyApproval----------->  Settled (repeat daily/weekly/monthly)
                                              removed (repeat once)
                                              Idle    (repeat none)
    any           --ApplyDenial / ResetCycle-> Idle

  Invalid flag combinations (completed "true" with a pending quantity)
  are rejected at read time by State().
*/
package coin

import "time"

// =============================================================================
// ENUMS
// =============================================================================

// RewardType discriminates pending reward items by their source.
type RewardType string

const (
	RewardAdjustment RewardType = "adjustment"
	RewardActivity   RewardType = "activity"
	RewardTodo       RewardType = "todo"
)

func (t RewardType) Valid() bool {
	switch t {
	case RewardAdjustment, RewardActivity, RewardTodo:
		return true
	}
	return false
}

// RepeatType is the cadence of an activity or todo.
type RepeatType string

const (
	RepeatNone    RepeatType = "none"
	RepeatOnce    RepeatType = "once"
	RepeatDaily   RepeatType = "daily"
	RepeatWeekly  RepeatType = "weekly"
	RepeatMonthly RepeatType = "monthly"
)

func (r RepeatType) Valid() bool {
	switch r {
	case RepeatNone, RepeatOnce, RepeatDaily, RepeatWeekly, RepeatMonthly:
		return true
	}
	return false
}

// Repeats reports whether the item participates in scheduled resets.
func (r RepeatType) Repeats() bool {
	return r != RepeatNone && r != ""
}

// Cadenced reports whether the repeat type is calendar-driven.
func (r RepeatType) Cadenced() bool {
	return r == RepeatDaily || r == RepeatWeekly || r == RepeatMonthly
}

// Completion is the stored completion flag. Legacy rows store the
// literal strings "false" / "pending" / "true".
type Completion string

const (
	CompletionFalse   Completion = "false"
	CompletionPending Completion = "pending"
	CompletionTrue    Completion = "true"
)

func (c Completion) Valid() bool {
	switch c {
	case CompletionFalse, CompletionPending, CompletionTrue, "":
		return true
	}
	return false
}

// =============================================================================
// USER RECORDS
// =============================================================================

// Settings are the per-user reset knobs.
type Settings struct {
	CompleteAward  Amount `json:"completeAward"`
	UncompleteFine Amount `json:"uncompleteFine"`
	AutoReset      bool   `json:"autoReset"`
}

// User is the METADATA record for a user.
type User struct {
	UserID    string    `json:"userId"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	Settings
}

// Account is the ACCOUNT#balance record: the single stored balance.
type Account struct {
	Balance Amount `json:"balance"`
}

// =============================================================================
// BALANCE LOG
// =============================================================================

// LogRecord is the raw BALANCELOG# row. Two forms coexist on disk:
// the current before/after pair, and legacy rows carrying only a
// signed amount. The ledger normalizes both to LogEntry at the read
// boundary; nothing downstream sees this type.
type LogRecord struct {
	LogID         string    `json:"logId"`
	UserID        string    `json:"userId,omitempty"`
	BalanceBefore *Amount   `json:"balanceBefore,omitempty"`
	BalanceAfter  *Amount   `json:"balanceAfter,omitempty"`
	Amount        *Amount   `json:"amount,omitempty"`
	Reason        string    `json:"reason"`
	Timestamp     time.Time `json:"timestamp"`
}

// LogEntry is the normalized balance log entry: both the before/after
// pair and the delta are always populated, and After-Before == Amount.
type LogEntry struct {
	LogID         string    `json:"logId"`
	UserID        string    `json:"userId,omitempty"`
	BalanceBefore Amount    `json:"balanceBefore"`
	BalanceAfter  Amount    `json:"balanceAfter"`
	Amount        Amount    `json:"amount"`
	Reason        string    `json:"reason"`
	Timestamp     time.Time `json:"timestamp"`
}

// =============================================================================
// PENDING REWARD
// =============================================================================

// PendingReward is an unsettled proposed balance change. It never
// affects the stored balance until approved.
type PendingReward struct {
	PendingID   string     `json:"pendingId"`
	UserID      string     `json:"userId"`
	Amount      Amount     `json:"amount"`
	Reason      string     `json:"reason"`
	Type        RewardType `json:"type"`
	ReferenceID string     `json:"referenceId,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// =============================================================================
// ACTIVITY / BEHAVIOR / TODO
// =============================================================================

// Behavior groups related activities.
type Behavior struct {
	BehaviorID string `json:"behaviorId"`
	UserID     string `json:"userId"`
	Name       string `json:"behaviorName"`
}

// Activity is a repeatable earn/lose action.
type Activity struct {
	ActivityID      string     `json:"activityId"`
	UserID          string     `json:"userId,omitempty"`
	Name            string     `json:"activityName"`
	Money           Amount     `json:"money"`
	Positive        bool       `json:"positive"`
	Top             bool       `json:"top,omitempty"`
	PendingQuantity int        `json:"pending_quantity"`
	Completed       Completion `json:"completed"`
	Repeat          RepeatType `json:"repeat"`
	BehaviorID      string     `json:"behaviorId,omitempty"`
	LastResetAt     *time.Time `json:"lastResetAt,omitempty"`
}

// ActivityState is the explicit completion state.
type ActivityState int

const (
	StateIdle ActivityState = iota
	StateAwaitingApproval
	StateSettled
)

func (s ActivityState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingApproval:
		return "awaiting_approval"
	case StateSettled:
		return "settled"
	}
	return "unknown"
}

// State derives the explicit state from the stored flags, rejecting
// combinations the state machine can never produce.
func (a *Activity) State() (ActivityState, error) {
	completed := a.Completed
	if completed == "" {
		completed = CompletionFalse
	}
	switch {
	case a.PendingQuantity < 0:
		return 0, &ValidationError{Field: "pending_quantity", Message: "must not be negative"}
	case a.PendingQuantity > 0 && completed == CompletionPending:
		return StateAwaitingApproval, nil
	case a.PendingQuantity > 0:
		return 0, &ValidationError{
			Field:   "completed",
			Message: "must be \"pending\" while a pending quantity is outstanding",
		}
	case completed == CompletionTrue:
		return StateSettled, nil
	case completed == CompletionPending:
		return 0, &ValidationError{Field: "completed", Message: "\"pending\" requires a pending quantity"}
	default:
		return StateIdle, nil
	}
}

// SignedMoney is the per-completion delta: positive activities credit,
// negative ones debit.
func (a *Activity) SignedMoney() Amount {
	if a.Positive {
		return a.Money
	}
	return a.Money.Neg()
}

// PendingAmount is the total unsettled amount for the current quantity.
func (a *Activity) PendingAmount() Amount {
	return a.SignedMoney().MulInt(a.PendingQuantity)
}

// SetPendingQuantity moves between Idle and AwaitingApproval. Negative
// results clamp to zero.
func (a *Activity) SetPendingQuantity(quantity int) {
	if quantity < 0 {
		quantity = 0
	}
	a.PendingQuantity = quantity
	if quantity > 0 {
		a.Completed = CompletionPending
	} else {
		a.Completed = CompletionFalse
	}
}

// ApplyApproval settles the current cycle. Returns true when the
// activity must be removed instead of kept (repeat "once").
func (a *Activity) ApplyApproval() (remove bool) {
	switch {
	case a.Repeat == RepeatOnce:
		return true
	case a.Repeat.Cadenced():
		a.PendingQuantity = 0
		a.Completed = CompletionTrue
		return false
	default:
		// Not on a schedule: reset without marking settled.
		a.PendingQuantity = 0
		a.Completed = CompletionFalse
		return false
	}
}

// ApplyDenial discards the proposed completions regardless of repeat.
func (a *Activity) ApplyDenial() {
	a.PendingQuantity = 0
	a.Completed = CompletionFalse
}

// ResetCycle closes out a scheduled period.
func (a *Activity) ResetCycle(now time.Time) {
	a.PendingQuantity = 0
	a.Completed = CompletionFalse
	a.LastResetAt = &now
}

// Todo is the simplified sibling of Activity.
type Todo struct {
	TodoID      string     `json:"todoId"`
	UserID      string     `json:"userId,omitempty"`
	Text        string     `json:"text"`
	Money       Amount     `json:"money"`
	Completed   Completion `json:"completed"`
	Repeat      RepeatType `json:"repeat"`
	ApprovedAt  *time.Time `json:"approvedAt,omitempty"`
	LastResetAt *time.Time `json:"lastResetAt,omitempty"`
}

// ApplyApproval settles the todo. Returns true when it must be removed
// (repeat "once"); otherwise it is marked completed and stamped.
func (t *Todo) ApplyApproval(now time.Time) (remove bool) {
	if t.Repeat == RepeatOnce {
		return true
	}
	t.Completed = CompletionTrue
	t.ApprovedAt = &now
	return false
}

// =============================================================================
// ENTERTAINMENT CATALOG
// =============================================================================

// Entertainment is one screen-time option coins can be redeemed for.
// MinutesPerCoin and CostPerCoin define the exchange rate; Visible
// hides an option from the child without deleting its rate.
type Entertainment struct {
	EntertainmentID string `json:"entertainmentId"`
	UserID          string `json:"userId,omitempty"`
	Name            string `json:"name"`
	Image           string `json:"image,omitempty"`
	MinutesPerCoin  int    `json:"minutesPerCoin"`
	CostPerCoin     Amount `json:"costPerCoin"`
	Visible         bool   `json:"visible"`
	Description     string `json:"description,omitempty"`
}

// =============================================================================
// RESET RUN AUDIT RECORD
// =============================================================================

// ResetRun records one settlement pass for audit and UI display.
type ResetRun struct {
	RunID       string     `json:"runId"`
	UserID      string     `json:"userId,omitempty"`
	Trigger     string     `json:"trigger"` // "scheduled" or "manual"
	Repeat      RepeatType `json:"repeat"`
	Approved    int        `json:"approved"`
	Reset       int        `json:"reset"`
	Bonuses     int        `json:"bonuses"`
	Fines       int        `json:"fines"`
	Errors      int        `json:"errors"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt time.Time  `json:"completedAt"`
}
