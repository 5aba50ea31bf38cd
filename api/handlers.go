/*
handlers.go - HTTP API handlers for the coin ledger

PURPOSE:
  Exposes the chore economy via REST. Handles HTTP request/response,
  JSON serialization and input validation, and delegates to the
  domain packages.

ENDPOINTS:
  Users:
    GET    /api/users                          List users
    POST   /api/users                          Create user
    GET    /api/users/{userID}                 Get user + balance
    PUT    /api/users/{userID}/settings        Update reset settings

  Balance & logs:
    GET    /api/users/{userID}/balance         Current balance
    PUT    /api/users/{userID}/balance         Set balance (writes log)
    GET    /api/users/{userID}/logs            Balance history
    DELETE /api/users/{userID}/logs            Purge history
    POST   /api/users/{userID}/logs/backup     Roll back to a log entry

  Pending rewards:
    GET    /api/users/{userID}/pending                     List
    POST   /api/users/{userID}/pending                     Propose
    POST   /api/users/{userID}/pending/{pendingID}/approve Approve one
    DELETE /api/users/{userID}/pending/{pendingID}         Deny one
    POST   /api/users/{userID}/pending/approve-all         Approve all
    POST   /api/users/{userID}/pending/deny-all            Deny all

  Chores:
    activities + behaviors + todos CRUD, the pending-quantity
    endpoint, and the todo complete endpoint (see server.go)

  Reset:
    POST   /api/users/{userID}/reset   Settle one user now
    POST   /api/reset/run              Settle all auto-reset users
    POST   /api/reset/by-repeat        Manual weekly/monthly reset
    GET    /api/reset/runs             Past run records

ERROR HANDLING:
  Errors map to JSON with status by kind:
  - 400: validation errors, malformed bodies
  - 404: not found (user, pending, activity, todo, behavior, log)
  - 409: duplicate create
  - 500: store failures

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/chorebank/coinledger/chores"
	"github.com/chorebank/coinledger/coin"
	"github.com/chorebank/coinledger/ledger"
	"github.com/chorebank/coinledger/reset"
	"github.com/chorebank/coinledger/rewards"
	"github.com/chorebank/coinledger/store"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger  *ledger.Ledger
	Rewards *rewards.Engine
	Chores  *chores.Service
	Settler *reset.Settler

	validate *validator.Validate
}

// NewHandler creates a new handler over the domain services.
func NewHandler(l *ledger.Ledger, rw *rewards.Engine, ch *chores.Service, st *reset.Settler) *Handler {
	return &Handler{
		Ledger:   l,
		Rewards:  rw,
		Chores:   ch,
		Settler:  st,
		validate: validator.New(),
	}
}

// decodeAndValidate parses the body into req and runs the struct tags.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// ListUsers returns all users with their balances.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	users, err := h.Ledger.ListUsers(ctx)
	if err != nil {
		respondError(w, "Failed to list users", err)
		return
	}

	dtos := make([]UserDTO, 0, len(users))
	for _, u := range users {
		balance, err := h.Ledger.GetBalance(ctx, u.UserID)
		if err != nil {
			respondError(w, "Failed to read balance", err)
			return
		}
		dtos = append(dtos, toUserDTO(u, balance))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateUser registers a new user.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	u, err := h.Ledger.CreateUser(r.Context(), req.Name, coin.Settings{
		CompleteAward:  coin.NewAmount(req.CompleteAward),
		UncompleteFine: coin.NewAmount(req.UncompleteFine),
		AutoReset:      req.AutoReset,
	})
	if err != nil {
		respondError(w, "Failed to create user", err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(u, coin.Amount{}))
}

// GetUser returns one user with the current balance.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	u, err := h.Ledger.GetUser(ctx, userID)
	if err != nil {
		respondError(w, "Failed to get user", err)
		return
	}
	balance, err := h.Ledger.GetBalance(ctx, userID)
	if err != nil {
		respondError(w, "Failed to read balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u, balance))
}

// UpdateSettings replaces the user's reset settings. Omitted fields
// keep their current values.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	var req UpdateSettingsRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	current, err := h.Ledger.GetUser(ctx, userID)
	if err != nil {
		respondError(w, "Failed to get user", err)
		return
	}

	settings := current.Settings
	if req.CompleteAward != nil {
		settings.CompleteAward = coin.NewAmount(*req.CompleteAward)
	}
	if req.UncompleteFine != nil {
		settings.UncompleteFine = coin.NewAmount(*req.UncompleteFine)
	}
	if req.AutoReset != nil {
		settings.AutoReset = *req.AutoReset
	}

	u, err := h.Ledger.UpdateSettings(ctx, userID, settings)
	if err != nil {
		respondError(w, "Failed to update settings", err)
		return
	}

	balance, err := h.Ledger.GetBalance(ctx, userID)
	if err != nil {
		respondError(w, "Failed to read balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u, balance))
}

func toUserDTO(u coin.User, balance coin.Amount) UserDTO {
	dto := UserDTO{
		UserID:         u.UserID,
		Name:           u.Name,
		Balance:        balance.Float64(),
		CompleteAward:  u.CompleteAward.Float64(),
		UncompleteFine: u.UncompleteFine.Float64(),
		AutoReset:      u.AutoReset,
	}
	if !u.CreatedAt.IsZero() {
		dto.CreatedAt = u.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// BALANCE & LOG HANDLERS
// =============================================================================

// GetBalance returns the current balance, zero for a fresh user.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	balance, err := h.Ledger.GetBalance(r.Context(), userID)
	if err != nil {
		respondError(w, "Failed to read balance", err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{UserID: userID, Balance: balance.Float64()})
}

// SetBalance overwrites the balance and records the log entry.
func (h *Handler) SetBalance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req SetBalanceRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	change, err := h.Ledger.SetBalance(r.Context(), userID, coin.NewAmount(*req.Balance), req.Reason)
	if err != nil {
		respondError(w, "Failed to set balance", err)
		return
	}
	balanceMutations.Inc()

	writeJSON(w, http.StatusOK, SetBalanceResponse{
		Message:       fmt.Sprintf("Balance updated to %s", change.After.Display()),
		LogID:         change.LogID,
		BalanceBefore: change.Before.Float64(),
		BalanceAfter:  change.After.Float64(),
	})
}

// GetLogs returns the normalized balance history, oldest first.
func (h *Handler) GetLogs(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	entries, err := h.Ledger.Logs(r.Context(), userID)
	if err != nil {
		respondError(w, "Failed to read logs", err)
		return
	}

	dtos := make([]LogDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toLogDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// PurgeLogs deletes the balance history.
func (h *Handler) PurgeLogs(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	deleted, failed, err := h.Ledger.PurgeLogs(r.Context(), userID)
	if err != nil {
		respondError(w, "Failed to purge logs", err)
		return
	}
	writeJSON(w, http.StatusOK, PurgeLogsResponse{
		Message: fmt.Sprintf("Removed %d log entries", deleted),
		Deleted: deleted,
		Failed:  failed,
	})
}

// Backup rolls the balance back to a historical log entry.
func (h *Handler) Backup(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req BackupRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.Ledger.BackupTo(r.Context(), userID, req.LogID, coin.NewAmount(*req.Balance))
	if err != nil {
		respondError(w, "Failed to roll back", err)
		return
	}
	balanceMutations.Inc()

	writeJSON(w, http.StatusOK, BackupResponse{
		Message: fmt.Sprintf("Restored balance to %s and removed %d logs",
			result.After.Display(), result.DeletedCount),
		DeletedCount:  result.DeletedCount,
		BalanceBefore: result.Before.Float64(),
		BalanceAfter:  result.After.Float64(),
	})
}

// =============================================================================
// PENDING REWARD HANDLERS
// =============================================================================

// ListPending returns the pending queue, oldest first.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	pendings, err := h.Rewards.List(r.Context(), userID)
	if err != nil {
		respondError(w, "Failed to list pending rewards", err)
		return
	}
	if pendings == nil {
		pendings = []coin.PendingReward{}
	}
	writeJSON(w, http.StatusOK, pendings)
}

// ProposePending enqueues a pending reward.
func (h *Handler) ProposePending(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req ProposePendingRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	p, err := h.Rewards.Propose(r.Context(), userID, coin.NewAmount(*req.Amount),
		req.Reason, coin.RewardType(req.Type), req.ReferenceID)
	if err != nil {
		respondError(w, "Failed to propose reward", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// ApprovePending settles one pending reward.
func (h *Handler) ApprovePending(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	pendingID := chi.URLParam(r, "pendingID")

	amount, err := h.Rewards.ApproveOne(r.Context(), userID, pendingID)
	if err != nil {
		respondError(w, "Failed to approve reward", err)
		return
	}
	rewardsSettled.WithLabelValues("approved").Inc()
	balanceMutations.Inc()

	writeJSON(w, http.StatusOK, ApproveResponse{
		Message: fmt.Sprintf("Approved %s", amount.Display()),
		Amount:  amount.Float64(),
	})
}

// DenyPending discards one pending reward without touching the balance.
func (h *Handler) DenyPending(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	pendingID := chi.URLParam(r, "pendingID")

	if err := h.Rewards.DenyOne(r.Context(), userID, pendingID); err != nil {
		respondError(w, "Failed to deny reward", err)
		return
	}
	rewardsSettled.WithLabelValues("denied").Inc()

	writeJSON(w, http.StatusOK, map[string]string{"message": "Reward denied"})
}

// ApproveAllPending settles the whole queue sequentially.
func (h *Handler) ApproveAllPending(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	sum, err := h.Rewards.ApproveAll(r.Context(), userID)
	if err != nil {
		respondError(w, "Failed to approve rewards", err)
		return
	}
	rewardsSettled.WithLabelValues("approved").Add(float64(sum.Settled))

	writeJSON(w, http.StatusOK, BatchSettleResponse{
		Message: fmt.Sprintf("Approved %d rewards (%d failed)", sum.Settled, sum.Failed),
		Settled: sum.Settled,
		Failed:  sum.Failed,
	})
}

// DenyAllPending discards the whole queue.
func (h *Handler) DenyAllPending(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	sum, err := h.Rewards.DenyAll(r.Context(), userID)
	if err != nil {
		respondError(w, "Failed to deny rewards", err)
		return
	}
	rewardsSettled.WithLabelValues("denied").Add(float64(sum.Settled))

	writeJSON(w, http.StatusOK, BatchSettleResponse{
		Message: fmt.Sprintf("Denied %d rewards (%d failed)", sum.Settled, sum.Failed),
		Settled: sum.Settled,
		Failed:  sum.Failed,
	})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// respondError maps domain errors to HTTP status codes.
func respondError(w http.ResponseWriter, message string, err error) {
	switch {
	case coin.IsValidation(err):
		writeError(w, http.StatusBadRequest, message, err)
	case coin.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, store.ErrItemExists):
		writeError(w, http.StatusConflict, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
