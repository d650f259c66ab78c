package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/shopwise/dealagent/internal/common"
	"github.com/shopwise/dealagent/internal/interfaces"
	"github.com/shopwise/dealagent/internal/models"
)

// StatusHandler reports service status and the seller directory snapshot
type StatusHandler struct {
	dir       interfaces.DirectoryService
	logger    arbor.ILogger
	startedAt time.Time
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(dir interfaces.DirectoryService, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		dir:       dir,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// HandleStatus returns version and uptime
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":   common.GetVersion(),
		"uptime":    time.Since(h.startedAt).String(),
		"sellers":   len(h.dir.Snapshot()),
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// HandleSellers returns the current directory snapshot
func (h *StatusHandler) HandleSellers(w http.ResponseWriter, r *http.Request) {
	entries := h.dir.Snapshot()
	if entries == nil {
		entries = []models.SellerDirectoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
