package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/shopwise/dealagent/internal/models"
	"github.com/shopwise/dealagent/internal/services/tracker"
)

// TaskHandler exposes task submission and status to display collaborators
type TaskHandler struct {
	tracker *tracker.Service
	logger  arbor.ILogger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(trackerService *tracker.Service, logger arbor.ILogger) *TaskHandler {
	return &TaskHandler{
		tracker: trackerService,
		logger:  logger,
	}
}

type submitTaskRequest struct {
	Query  string                 `json:"query"`
	Kind   models.TaskKind        `json:"kind"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// HandleSubmit submits a task to the runner and begins tracking it
func (h *TaskHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	switch req.Kind {
	case models.TaskKindPriceSearch, models.TaskKindDiscovery, models.TaskKindRefinement:
	case "":
		req.Kind = models.TaskKindPriceSearch
	default:
		writeError(w, http.StatusBadRequest, "unknown task kind")
		return
	}

	task, err := h.tracker.Submit(r.Context(), req.Query, req.Kind, req.Params)
	if err != nil {
		h.logger.Error().Err(err).Str("query", req.Query).Msg("Task submission failed")
		writeError(w, http.StatusBadGateway, "task submission failed")
		return
	}

	writeJSON(w, http.StatusAccepted, task)
}

// HandleGet returns current task status plus the enriched result once
// terminal
func (h *TaskHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	task, ok := h.tracker.Task(taskID)
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	response := map[string]interface{}{
		"task": task,
	}
	if result, ok := h.tracker.Result(taskID); ok {
		response["result"] = result
	}

	writeJSON(w, http.StatusOK, response)
}

// HandleCancel stops tracking a task
func (h *TaskHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	if _, ok := h.tracker.Task(taskID); !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	h.tracker.Cancel(taskID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
