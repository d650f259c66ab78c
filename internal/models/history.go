package models

import (
	"time"

	"github.com/google/uuid"
)

// HistoryKind selects which ledger an entry belongs to
type HistoryKind string

const (
	HistoryKindSearch    HistoryKind = "search"
	HistoryKindDiscovery HistoryKind = "discovery"
)

// TopOffer is the compact offer summary kept on a history entry
type TopOffer struct {
	Seller   string  `json:"seller"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
}

// HistoryEntry is one record in a capped, time-ordered ledger of past
// tasks. Append-only apart from the in-place terminal update keyed by
// ExternalTaskID.
type HistoryEntry struct {
	ID             string     `json:"id"`
	Query          string     `json:"query"`
	CreatedAt      time.Time  `json:"created_at"`
	ResultCount    int        `json:"result_count"`
	DurationMs     int64      `json:"duration_ms"`
	ExternalTaskID string     `json:"external_task_id,omitempty"`
	Status         TaskStatus `json:"status"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	TopOffers      []TopOffer `json:"top_offers,omitempty"` // At most 3
}

// NewHistoryEntry creates the optimistic placeholder written at submission
// time, before any results exist.
func NewHistoryEntry(query, externalTaskID string) *HistoryEntry {
	return &HistoryEntry{
		ID:             "hist_" + uuid.New().String(),
		Query:          query,
		CreatedAt:      time.Now(),
		ExternalTaskID: externalTaskID,
		Status:         TaskStatusRunning,
	}
}
