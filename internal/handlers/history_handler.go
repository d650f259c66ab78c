package handlers

import (
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/shopwise/dealagent/internal/interfaces"
	"github.com/shopwise/dealagent/internal/models"
	"github.com/shopwise/dealagent/internal/services/history"
)

// HistoryHandler exposes both ledgers with delete-by-id
type HistoryHandler struct {
	history *history.Service
	logger  arbor.ILogger
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(historyService *history.Service, logger arbor.ILogger) *HistoryHandler {
	return &HistoryHandler{
		history: historyService,
		logger:  logger,
	}
}

// HandleList returns one ledger newest-first
func (h *HistoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseHistoryKind(r.PathValue("kind"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown history kind")
		return
	}

	entries, err := h.history.List(r.Context(), kind)
	if err != nil {
		h.logger.Error().Err(err).Str("kind", string(kind)).Msg("Failed to list history")
		writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}

	writeJSON(w, http.StatusOK, entries)
}

// HandleDelete removes one history entry by id
func (h *HistoryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseHistoryKind(r.PathValue("kind"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown history kind")
		return
	}

	err := h.history.Delete(r.Context(), kind, r.PathValue("id"))
	if errors.Is(err, interfaces.ErrEntryNotFound) {
		writeError(w, http.StatusNotFound, "entry not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("kind", string(kind)).Msg("Failed to delete history entry")
		writeError(w, http.StatusInternalServerError, "failed to delete history entry")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func parseHistoryKind(raw string) (models.HistoryKind, bool) {
	switch models.HistoryKind(raw) {
	case models.HistoryKindSearch:
		return models.HistoryKindSearch, true
	case models.HistoryKindDiscovery:
		return models.HistoryKindDiscovery, true
	default:
		return "", false
	}
}
