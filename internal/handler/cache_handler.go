package handler

import (
	"net/http"

	"github.com/talonscan/talon/internal/cache"
)

// CacheHandler exposes cache counters for operations.
type CacheHandler struct {
	store cache.Store
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(store cache.Store) *CacheHandler {
	return &CacheHandler{store: store}
}

// Stats handles GET /api/v1/cache/stats
func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Stats(r.Context()))
}
