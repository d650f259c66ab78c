package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/shopwise/dealagent/internal/interfaces"
	"github.com/shopwise/dealagent/internal/models"
)

// Persisted state layout: one namespaced key per ledger, holding the full
// entry list as a JSON blob. A legacy key is migrated once into the
// search key the first time the current key is absent.
const (
	searchHistoryKey    = "dealagent:search_history"
	discoveryHistoryKey = "dealagent:discovery_history"
	legacySearchKey     = "price_comparison_history"
)

// Service maintains the two capped, time-ordered ledgers of past tasks.
// Every mutation is a read-modify-write of the full persisted collection
// under the service mutex, so concurrent writers never drop unrelated
// entries.
type Service struct {
	storage    interfaces.KeyValueStorage
	logger     arbor.ILogger
	maxEntries int
	mu         sync.Mutex
}

// NewService creates a history ledger service and runs the one-time legacy
// key migration.
func NewService(ctx context.Context, storage interfaces.KeyValueStorage, maxEntries int, logger arbor.ILogger) (*Service, error) {
	s := &Service{
		storage:    storage,
		logger:     logger,
		maxEntries: maxEntries,
	}
	if err := s.migrateLegacyKey(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// migrateLegacyKey copies the legacy key's contents into the current
// search key the first time the current key is absent.
func (s *Service) migrateLegacyKey(ctx context.Context) error {
	exists, err := s.storage.Has(ctx, searchHistoryKey)
	if err != nil {
		return fmt.Errorf("failed to check search history key: %w", err)
	}
	if exists {
		return nil
	}

	legacy, err := s.storage.Get(ctx, legacySearchKey)
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read legacy history key: %w", err)
	}

	if err := s.storage.Set(ctx, searchHistoryKey, legacy); err != nil {
		return fmt.Errorf("failed to migrate legacy history: %w", err)
	}

	s.logger.Info().Str("from", legacySearchKey).Str("to", searchHistoryKey).Msg("Migrated legacy history key")
	return nil
}

// Append writes the optimistic placeholder entry for a freshly submitted
// task, evicting the oldest entry when the ledger is over its cap.
func (s *Service) Append(ctx context.Context, kind models.HistoryKind, entry *models.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx, kind)
	if err != nil {
		return err
	}

	entries = append(entries, *entry)
	entries = evictOverCap(entries, s.maxEntries)

	return s.save(ctx, kind, entries)
}

// UpdateByTaskID updates the single entry carrying the external task id in
// place; the entry is never duplicated. Returns ErrEntryNotFound when no
// entry matches.
func (s *Service) UpdateByTaskID(ctx context.Context, kind models.HistoryKind, externalTaskID string, update func(*models.HistoryEntry)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx, kind)
	if err != nil {
		return err
	}

	found := false
	for i := range entries {
		if entries[i].ExternalTaskID == externalTaskID {
			update(&entries[i])
			found = true
			break
		}
	}
	if !found {
		return interfaces.ErrEntryNotFound
	}

	return s.save(ctx, kind, entries)
}

// List returns the ledger newest-first by creation time, independent of
// insertion or update order.
func (s *Service) List(ctx context.Context, kind models.HistoryKind) ([]models.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx, kind)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

// Delete removes one entry by id
func (s *Service) Delete(ctx context.Context, kind models.HistoryKind, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx, kind)
	if err != nil {
		return err
	}

	filtered := entries[:0]
	found := false
	for _, entry := range entries {
		if entry.ID == entryID {
			found = true
			continue
		}
		filtered = append(filtered, entry)
	}
	if !found {
		return interfaces.ErrEntryNotFound
	}

	return s.save(ctx, kind, filtered)
}

func (s *Service) load(ctx context.Context, kind models.HistoryKind) ([]models.HistoryEntry, error) {
	blob, err := s.storage.Get(ctx, ledgerKey(kind))
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s history: %w", kind, err)
	}

	var entries []models.HistoryEntry
	if err := json.Unmarshal(blob, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode %s history: %w", kind, err)
	}
	return entries, nil
}

func (s *Service) save(ctx context.Context, kind models.HistoryKind, entries []models.HistoryEntry) error {
	blob, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode %s history: %w", kind, err)
	}
	if err := s.storage.Set(ctx, ledgerKey(kind), blob); err != nil {
		return fmt.Errorf("failed to persist %s history: %w", kind, err)
	}
	return nil
}

func ledgerKey(kind models.HistoryKind) string {
	if kind == models.HistoryKindDiscovery {
		return discoveryHistoryKey
	}
	return searchHistoryKey
}

// evictOverCap drops oldest-by-creation entries until the ledger fits its
// cap
func evictOverCap(entries []models.HistoryEntry, maxEntries int) []models.HistoryEntry {
	if maxEntries <= 0 || len(entries) <= maxEntries {
		return entries
	}

	sorted := make([]models.HistoryEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	return sorted[len(sorted)-maxEntries:]
}
