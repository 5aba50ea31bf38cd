/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for the API contract. Request types carry validator
  tags; the handler runs the struct validation before touching domain
  logic, so malformed input never reaches the stores.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Mutation response wrappers carrying a human-readable
    message plus the structured outcome

  Activity, Todo, Behavior and PendingReward records marshal with
  their stored field names (activityName, pending_quantity, ...), so
  those endpoints return the domain records directly.

SEE ALSO:
  - handlers.go: Uses these types
  - coin/records.go: The stored shapes returned as-is
*/
package api

import (
	"time"

	"github.com/chorebank/coinledger/coin"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// USERS
// =============================================================================

// UserDTO is a user with the balance folded in.
type UserDTO struct {
	UserID         string  `json:"userId"`
	Name           string  `json:"name"`
	Balance        float64 `json:"balance"`
	CompleteAward  float64 `json:"completeAward"`
	UncompleteFine float64 `json:"uncompleteFine"`
	AutoReset      bool    `json:"autoReset"`
	CreatedAt      string  `json:"createdAt,omitempty"`
}

type CreateUserRequest struct {
	Name           string  `json:"name" validate:"required"`
	CompleteAward  float64 `json:"completeAward" validate:"gte=0"`
	UncompleteFine float64 `json:"uncompleteFine" validate:"gte=0"`
	AutoReset      bool    `json:"autoReset"`
}

type UpdateSettingsRequest struct {
	CompleteAward  *float64 `json:"completeAward" validate:"omitempty,gte=0"`
	UncompleteFine *float64 `json:"uncompleteFine" validate:"omitempty,gte=0"`
	AutoReset      *bool    `json:"autoReset"`
}

// =============================================================================
// BALANCE & LOGS
// =============================================================================

type BalanceDTO struct {
	UserID  string  `json:"userId"`
	Balance float64 `json:"balance"`
}

type SetBalanceRequest struct {
	Balance *float64 `json:"balance" validate:"required"`
	Reason  string   `json:"reason" validate:"required"`
}

type SetBalanceResponse struct {
	Message       string  `json:"message"`
	LogID         string  `json:"logId"`
	BalanceBefore float64 `json:"balanceBefore"`
	BalanceAfter  float64 `json:"balanceAfter"`
}

type LogDTO struct {
	LogID         string  `json:"logId"`
	BalanceBefore float64 `json:"balanceBefore"`
	BalanceAfter  float64 `json:"balanceAfter"`
	Amount        float64 `json:"amount"`
	Reason        string  `json:"reason"`
	Timestamp     string  `json:"timestamp"`
}

func toLogDTO(e coin.LogEntry) LogDTO {
	return LogDTO{
		LogID:         e.LogID,
		BalanceBefore: e.BalanceBefore.Float64(),
		BalanceAfter:  e.BalanceAfter.Float64(),
		Amount:        e.Amount.Float64(),
		Reason:        e.Reason,
		Timestamp:     e.Timestamp.Format(time.RFC3339),
	}
}

type BackupRequest struct {
	LogID   string   `json:"logId" validate:"required"`
	Balance *float64 `json:"balance" validate:"required"`
}

type BackupResponse struct {
	Message       string  `json:"message"`
	DeletedCount  int     `json:"deletedCount"`
	BalanceBefore float64 `json:"balanceBefore"`
	BalanceAfter  float64 `json:"balanceAfter"`
}

type PurgeLogsResponse struct {
	Message string `json:"message"`
	Deleted int    `json:"deleted"`
	Failed  int    `json:"failed"`
}

// =============================================================================
// PENDING REWARDS
// =============================================================================

type ProposePendingRequest struct {
	Amount      *float64 `json:"amount" validate:"required"`
	Reason      string   `json:"reason" validate:"required"`
	Type        string   `json:"type" validate:"omitempty,oneof=adjustment activity todo"`
	ReferenceID string   `json:"referenceId"`
}

type ApproveResponse struct {
	Message string  `json:"message"`
	Amount  float64 `json:"amount"`
}

type BatchSettleResponse struct {
	Message string `json:"message"`
	Settled int    `json:"settled"`
	Failed  int    `json:"failed"`
}

// =============================================================================
// ACTIVITIES / BEHAVIORS / TODOS
// =============================================================================

type CreateActivityRequest struct {
	Name       string  `json:"activityName" validate:"required"`
	Money      float64 `json:"money" validate:"gte=0"`
	Positive   bool    `json:"positive"`
	Top        bool    `json:"top"`
	Repeat     string  `json:"repeat" validate:"omitempty,oneof=none once daily weekly monthly"`
	BehaviorID string  `json:"behaviorId"`
}

type UpdateActivityRequest struct {
	Name       string  `json:"activityName" validate:"required"`
	Money      float64 `json:"money" validate:"gte=0"`
	Positive   bool    `json:"positive"`
	Top        bool    `json:"top"`
	Repeat     string  `json:"repeat" validate:"omitempty,oneof=none once daily weekly monthly"`
	BehaviorID string  `json:"behaviorId"`
}

// Delta is a pointer so an explicit zero survives validation; a zero
// delta is a legal no-op.
type ChangeQuantityRequest struct {
	Delta *int `json:"delta" validate:"required"`
}

type CreateBehaviorRequest struct {
	Name string `json:"behaviorName" validate:"required"`
}

type CreateTodoRequest struct {
	Text   string  `json:"text" validate:"required"`
	Money  float64 `json:"money" validate:"gte=0"`
	Repeat string  `json:"repeat" validate:"omitempty,oneof=none once daily weekly monthly"`
}

type CompleteTodoRequest struct {
	Completed *bool `json:"completed" validate:"required"`
}

// UpdateEntertainmentRequest patches a catalog entry; omitted fields
// keep their stored value.
type UpdateEntertainmentRequest struct {
	Name           *string  `json:"name"`
	Image          *string  `json:"image"`
	MinutesPerCoin *int     `json:"minutesPerCoin" validate:"omitempty,gte=0"`
	CostPerCoin    *float64 `json:"costPerCoin" validate:"omitempty,gte=0"`
	Visible        *bool    `json:"visible"`
	Description    *string  `json:"description"`
}

// =============================================================================
// RESET
// =============================================================================

type SettleResponse struct {
	Message  string `json:"message"`
	Approved int    `json:"approved"`
	Reset    int    `json:"reset"`
	Bonuses  int    `json:"bonuses"`
	Fines    int    `json:"fines"`
	Errors   int    `json:"errors"`
}

type ResetByRepeatRequest struct {
	Repeat string `json:"repeat" validate:"required,oneof=daily weekly monthly"`
	UserID string `json:"userId"`
}
