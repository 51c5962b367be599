package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/chasef07/marketplace-sub002/internal/domain"
	"github.com/chasef07/marketplace-sub002/internal/pipeline"
)

// DecisionHandler exposes the decision pipeline over HTTP: the synchronous
// trigger called by the offer subsystem, the async enqueue path, and read
// access to the audit trail.
type DecisionHandler struct {
	processor *pipeline.Processor
	decisions domain.DecisionStore
	tasks     domain.TaskStore
	logger    *slog.Logger
}

// NewDecisionHandler creates a DecisionHandler.
func NewDecisionHandler(
	processor *pipeline.Processor,
	decisions domain.DecisionStore,
	tasks domain.TaskStore,
	logger *slog.Logger,
) *DecisionHandler {
	return &DecisionHandler{
		processor: processor,
		decisions: decisions,
		tasks:     tasks,
		logger:    logHandler(logger, "decision"),
	}
}

// Decide runs a decision synchronously and returns the result contract.
// POST /api/v1/decisions
func (h *DecisionHandler) Decide(w http.ResponseWriter, r *http.Request) {
	var task domain.Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		writeError(w, http.StatusBadRequest, "invalid task payload")
		return
	}

	res := h.processor.Process(r.Context(), task)
	writeJSON(w, http.StatusOK, res)
}

// Enqueue adds a task to the backlog for the next sweep.
// POST /api/v1/decisions/enqueue
func (h *DecisionHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var task domain.Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		writeError(w, http.StatusBadRequest, "invalid task payload")
		return
	}
	if task.NegotiationID == "" || task.ItemID == "" || task.SellerID == "" {
		writeError(w, http.StatusBadRequest, "task is missing identifiers")
		return
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.CreatedAt = time.Now().UTC()

	if err := h.tasks.Enqueue(r.Context(), task); err != nil {
		h.logger.ErrorContext(r.Context(), "enqueue failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "could not enqueue task")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": task.ID, "status": string(domain.TaskPending)})
}

// ListByNegotiation returns the decision trail for one negotiation.
// GET /api/v1/negotiations/{id}/decisions
func (h *DecisionHandler) ListByNegotiation(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing negotiation id")
		return
	}

	records, err := h.decisions.ListByNegotiation(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list decisions failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "could not list decisions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"decisions": records})
}

// ListRecent returns recent decisions across all negotiations.
// GET /api/v1/decisions/recent
func (h *DecisionHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	records, err := h.decisions.ListRecent(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list recent decisions failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "could not list decisions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"decisions": records})
}
