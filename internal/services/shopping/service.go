package shopping

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

const shoppingListKey = "dealagent:shopping_list"

// Service maintains the bounded shopping list with the same whole-blob
// read-modify-write semantics as the history ledgers.
type Service struct {
	storage  interfaces.KeyValueStorage
	logger   arbor.ILogger
	maxItems int
	mu       sync.Mutex
}

// NewService creates a shopping list service
func NewService(storage interfaces.KeyValueStorage, maxItems int, logger arbor.ILogger) *Service {
	return &Service{
		storage:  storage,
		logger:   logger,
		maxItems: maxItems,
	}
}

// Add appends an item, evicting the oldest when the list is over its cap
func (s *Service) Add(ctx context.Context, item *models.ShoppingListItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx)
	if err != nil {
		return err
	}

	items = append(items, *item)
	if s.maxItems > 0 && len(items) > s.maxItems {
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].AddedAt.Before(items[j].AddedAt)
		})
		items = items[len(items)-s.maxItems:]
	}

	return s.save(ctx, items)
}

// Remove deletes an item by id
func (s *Service) Remove(ctx context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx)
	if err != nil {
		return err
	}

	filtered := items[:0]
	found := false
	for _, item := range items {
		if item.ID == itemID {
			found = true
			continue
		}
		filtered = append(filtered, item)
	}
	if !found {
		return interfaces.ErrEntryNotFound
	}

	return s.save(ctx, filtered)
}

// List returns the shopping list newest-first
func (s *Service) List(ctx context.Context) ([]models.ShoppingListItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].AddedAt.After(items[j].AddedAt)
	})
	return items, nil
}

func (s *Service) load(ctx context.Context) ([]models.ShoppingListItem, error) {
	blob, err := s.storage.Get(ctx, shoppingListKey)
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load shopping list: %w", err)
	}

	var items []models.ShoppingListItem
	if err := json.Unmarshal(blob, &items); err != nil {
		return nil, fmt.Errorf("failed to decode shopping list: %w", err)
	}
	return items, nil
}

func (s *Service) save(ctx context.Context, items []models.ShoppingListItem) error {
	blob, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode shopping list: %w", err)
	}
	if err := s.storage.Set(ctx, shoppingListKey, blob); err != nil {
		return fmt.Errorf("failed to persist shopping list: %w", err)
	}
	return nil
}
