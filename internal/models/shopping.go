package models

import (
	"time"

	"github.com/google/uuid"
)

// ShoppingListItem is one product a user pinned for later
type ShoppingListItem struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Price    float64   `json:"price,omitempty"`
	Currency string    `json:"currency,omitempty"`
	URL      string    `json:"url,omitempty"`
	Seller   string    `json:"seller,omitempty"`
	AddedAt  time.Time `json:"added_at"`
}

// NewShoppingListItem creates a shopping list item with a fresh id
func NewShoppingListItem(name string) *ShoppingListItem {
	return &ShoppingListItem{
		ID:      "item_" + uuid.New().String(),
		Name:    name,
		AddedAt: time.Now(),
	}
}
