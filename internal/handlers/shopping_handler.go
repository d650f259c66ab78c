package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/shopwise/dealagent/internal/interfaces"
	"github.com/shopwise/dealagent/internal/models"
	"github.com/shopwise/dealagent/internal/services/shopping"
)

// ShoppingHandler exposes the bounded shopping list
type ShoppingHandler struct {
	shopping *shopping.Service
	logger   arbor.ILogger
}

// NewShoppingHandler creates a new shopping list handler
func NewShoppingHandler(shoppingService *shopping.Service, logger arbor.ILogger) *ShoppingHandler {
	return &ShoppingHandler{
		shopping: shoppingService,
		logger:   logger,
	}
}

type addItemRequest struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price,omitempty"`
	Currency string  `json:"currency,omitempty"`
	URL      string  `json:"url,omitempty"`
	Seller   string  `json:"seller,omitempty"`
}

// HandleAdd adds an item to the shopping list
func (h *ShoppingHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	item := models.NewShoppingListItem(req.Name)
	item.Price = req.Price
	item.Currency = req.Currency
	item.URL = req.URL
	item.Seller = req.Seller

	if err := h.shopping.Add(r.Context(), item); err != nil {
		h.logger.Error().Err(err).Str("name", req.Name).Msg("Failed to add shopping list item")
		writeError(w, http.StatusInternalServerError, "failed to add item")
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

// HandleList returns the shopping list newest-first
func (h *ShoppingHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.shopping.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list shopping items")
		writeError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	if items == nil {
		items = []models.ShoppingListItem{}
	}

	writeJSON(w, http.StatusOK, items)
}

// HandleRemove removes one item by id
func (h *ShoppingHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	err := h.shopping.Remove(r.Context(), r.PathValue("id"))
	if errors.Is(err, interfaces.ErrEntryNotFound) {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to remove shopping list item")
		writeError(w, http.StatusInternalServerError, "failed to remove item")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
