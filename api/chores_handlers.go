/*
chores_handlers.go - Activity, behavior, todo and reset endpoints

PURPOSE:
  The chore side of the API: CRUD for activities/behaviors/todos, the
  pending-quantity and todo-complete endpoints that feed the rewards
  queue, and the settlement endpoints.

SEE ALSO:
  - handlers.go: Handler context, users, balance, pending rewards
  - reset/: the Settler behind the reset endpoints
*/
package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chorebank/coinledger/chores"
	"github.com/chorebank/coinledger/coin"
)

// =============================================================================
// ACTIVITY HANDLERS
// =============================================================================

// ListActivities returns the user's activities. Query params filter:
// ?behaviorId= for one group, ?standalone=true for ungrouped,
// ?repeatable=true for scheduled chores.
func (h *Handler) ListActivities(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	q := r.URL.Query()

	opts := chores.ListOptions{
		BehaviorID:     q.Get("behaviorId"),
		StandaloneOnly: q.Get("standalone") == "true",
		RepeatableOnly: q.Get("repeatable") == "true",
	}

	activities, err := h.Chores.ListActivities(r.Context(), userID, opts)
	if err != nil {
		respondError(w, "Failed to list activities", err)
		return
	}
	if activities == nil {
		activities = []coin.Activity{}
	}
	writeJSON(w, http.StatusOK, activities)
}

// CreateActivity creates a new activity.
func (h *Handler) CreateActivity(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req CreateActivityRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	a, err := h.Chores.CreateActivity(r.Context(), userID, coin.Activity{
		Name:       req.Name,
		Money:      coin.NewAmount(req.Money),
		Positive:   req.Positive,
		Top:        req.Top,
		Repeat:     coin.RepeatType(req.Repeat),
		BehaviorID: req.BehaviorID,
	})
	if err != nil {
		respondError(w, "Failed to create activity", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// GetActivity returns one activity.
func (h *Handler) GetActivity(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	activityID := chi.URLParam(r, "activityID")

	a, err := h.Chores.GetActivity(r.Context(), userID, activityID)
	if err != nil {
		respondError(w, "Failed to get activity", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// UpdateActivity replaces the editable fields. Completion state is
// owned by the quantity and settlement endpoints and survives edits.
func (h *Handler) UpdateActivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")
	activityID := chi.URLParam(r, "activityID")

	var req UpdateActivityRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	a, err := h.Chores.GetActivity(ctx, userID, activityID)
	if err != nil {
		respondError(w, "Failed to get activity", err)
		return
	}

	a.Name = req.Name
	a.Money = coin.NewAmount(req.Money)
	a.Positive = req.Positive
	a.Top = req.Top
	if req.Repeat != "" {
		a.Repeat = coin.RepeatType(req.Repeat)
	}
	a.BehaviorID = req.BehaviorID

	if err := h.Chores.SaveActivity(ctx, userID, a); err != nil {
		respondError(w, "Failed to update activity", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// DeleteActivity removes an activity.
func (h *Handler) DeleteActivity(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	activityID := chi.URLParam(r, "activityID")

	if err := h.Chores.DeleteActivity(r.Context(), userID, activityID); err != nil {
		respondError(w, "Failed to delete activity", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Activity deleted"})
}

// ChangeQuantity adjusts the proposed completion count and syncs the
// pending reward item.
func (h *Handler) ChangeQuantity(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	activityID := chi.URLParam(r, "activityID")

	var req ChangeQuantityRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	a, err := h.Rewards.ChangePendingQuantity(r.Context(), userID, activityID, *req.Delta)
	if err != nil {
		respondError(w, "Failed to change quantity", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// =============================================================================
// BEHAVIOR HANDLERS
// =============================================================================

// ListBehaviors returns the user's behaviors.
func (h *Handler) ListBehaviors(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	behaviors, err := h.Chores.ListBehaviors(r.Context(), userID)
	if err != nil {
		respondError(w, "Failed to list behaviors", err)
		return
	}
	if behaviors == nil {
		behaviors = []coin.Behavior{}
	}
	writeJSON(w, http.StatusOK, behaviors)
}

// CreateBehavior creates an activity group.
func (h *Handler) CreateBehavior(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req CreateBehaviorRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	b, err := h.Chores.CreateBehavior(r.Context(), userID, req.Name)
	if err != nil {
		respondError(w, "Failed to create behavior", err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// DeleteBehavior removes a behavior and its activities.
func (h *Handler) DeleteBehavior(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	behaviorID := chi.URLParam(r, "behaviorID")

	if err := h.Chores.DeleteBehavior(r.Context(), userID, behaviorID); err != nil {
		respondError(w, "Failed to delete behavior", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Behavior deleted"})
}

// =============================================================================
// TODO HANDLERS
// =============================================================================

// ListTodos returns the user's todos.
func (h *Handler) ListTodos(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	todos, err := h.Chores.ListTodos(r.Context(), userID)
	if err != nil {
		respondError(w, "Failed to list todos", err)
		return
	}
	if todos == nil {
		todos = []coin.Todo{}
	}
	writeJSON(w, http.StatusOK, todos)
}

// CreateTodo creates a one-shot task.
func (h *Handler) CreateTodo(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req CreateTodoRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	t, err := h.Chores.CreateTodo(r.Context(), userID, coin.Todo{
		Text:   req.Text,
		Money:  coin.NewAmount(req.Money),
		Repeat: coin.RepeatType(req.Repeat),
	})
	if err != nil {
		respondError(w, "Failed to create todo", err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// UpdateTodo replaces the editable fields.
func (h *Handler) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")
	todoID := chi.URLParam(r, "todoID")

	var req CreateTodoRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	t, err := h.Chores.GetTodo(ctx, userID, todoID)
	if err != nil {
		respondError(w, "Failed to get todo", err)
		return
	}

	t.Text = req.Text
	t.Money = coin.NewAmount(req.Money)
	if req.Repeat != "" {
		t.Repeat = coin.RepeatType(req.Repeat)
	}

	if err := h.Chores.SaveTodo(ctx, userID, t); err != nil {
		respondError(w, "Failed to update todo", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// DeleteTodo removes a todo.
func (h *Handler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	todoID := chi.URLParam(r, "todoID")

	if err := h.Chores.DeleteTodo(r.Context(), userID, todoID); err != nil {
		respondError(w, "Failed to delete todo", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Todo deleted"})
}

// CompleteTodo marks the todo done (or not) and syncs its pending item.
func (h *Handler) CompleteTodo(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	todoID := chi.URLParam(r, "todoID")

	var req CompleteTodoRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	t, err := h.Rewards.CompleteTodo(r.Context(), userID, todoID, *req.Completed)
	if err != nil {
		respondError(w, "Failed to complete todo", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// =============================================================================
// ENTERTAINMENT HANDLERS
// =============================================================================

// ListEntertainments returns the user's screen-time catalog, seeding
// the defaults on first call.
func (h *Handler) ListEntertainments(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	entertainments, err := h.Chores.ListEntertainments(r.Context(), userID)
	if err != nil {
		respondError(w, "Failed to list entertainments", err)
		return
	}
	writeJSON(w, http.StatusOK, entertainments)
}

// InitializeEntertainments rewrites the user's catalog with the
// defaults, discarding tuned rates.
func (h *Handler) InitializeEntertainments(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	entertainments, err := h.Chores.InitializeEntertainments(r.Context(), userID)
	if err != nil {
		respondError(w, "Failed to initialize entertainments", err)
		return
	}
	writeJSON(w, http.StatusOK, entertainments)
}

// UpdateEntertainment patches one catalog entry.
func (h *Handler) UpdateEntertainment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")
	entertainmentID := chi.URLParam(r, "entertainmentID")

	var req UpdateEntertainmentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	e, err := h.Chores.GetEntertainment(ctx, userID, entertainmentID)
	if err != nil {
		respondError(w, "Failed to get entertainment", err)
		return
	}

	if req.Name != nil {
		e.Name = *req.Name
	}
	if req.Image != nil {
		e.Image = *req.Image
	}
	if req.MinutesPerCoin != nil {
		e.MinutesPerCoin = *req.MinutesPerCoin
	}
	if req.CostPerCoin != nil {
		e.CostPerCoin = coin.NewAmount(*req.CostPerCoin)
	}
	if req.Visible != nil {
		e.Visible = *req.Visible
	}
	if req.Description != nil {
		e.Description = *req.Description
	}

	if err := h.Chores.SaveEntertainment(ctx, userID, e); err != nil {
		respondError(w, "Failed to update entertainment", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// InitializeAllEntertainments seeds defaults for every user missing a
// catalog.
func (h *Handler) InitializeAllEntertainments(w http.ResponseWriter, r *http.Request) {
	results, err := h.Chores.InitializeAllEntertainments(r.Context())
	if err != nil {
		respondError(w, "Failed to initialize entertainments", err)
		return
	}
	if results == nil {
		results = []chores.InitializeResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

// =============================================================================
// RESET HANDLERS
// =============================================================================

// SettleUser runs the full settlement pass for one user.
func (h *Handler) SettleUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	sum, err := h.Settler.Settle(r.Context(), userID)
	if err != nil {
		respondError(w, "Failed to settle user", err)
		return
	}
	resetRuns.WithLabelValues("manual").Inc()

	writeJSON(w, http.StatusOK, SettleResponse{
		Message: fmt.Sprintf("Settled: %d approved, %d reset, %d bonuses, %d fines",
			sum.Approved, sum.Reset, sum.Bonuses, sum.Fines),
		Approved: sum.Approved,
		Reset:    sum.Reset,
		Bonuses:  sum.Bonuses,
		Fines:    sum.Fines,
		Errors:   sum.Errors,
	})
}

// RunReset settles every auto-reset user now.
func (h *Handler) RunReset(w http.ResponseWriter, r *http.Request) {
	run, err := h.Settler.RunAll(r.Context(), "manual")
	if err != nil {
		respondError(w, "Failed to run reset", err)
		return
	}
	resetRuns.WithLabelValues("manual").Inc()
	writeJSON(w, http.StatusOK, run)
}

// ResetByRepeat reopens weekly/monthly cycles without settling.
func (h *Handler) ResetByRepeat(w http.ResponseWriter, r *http.Request) {
	var req ResetByRepeatRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	run, err := h.Settler.ResetByRepeat(r.Context(), coin.RepeatType(req.Repeat), req.UserID)
	if err != nil {
		respondError(w, "Failed to reset by repeat", err)
		return
	}
	resetRuns.WithLabelValues("manual").Inc()
	writeJSON(w, http.StatusOK, run)
}

// ListResetRuns returns past settlement runs, newest first.
func (h *Handler) ListResetRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Settler.ListRuns(r.Context())
	if err != nil {
		respondError(w, "Failed to list reset runs", err)
		return
	}
	if runs == nil {
		runs = []coin.ResetRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}
