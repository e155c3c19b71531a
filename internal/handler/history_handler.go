package handler

import (
	"net/http"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/talonscan/talon/internal/database"
	"github.com/talonscan/talon/internal/model"
)

// HistoryHandler serves archived scans. Only wired when persistence is
// enabled.
type HistoryHandler struct {
	repo *database.ScanRepository
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(repo *database.ScanRepository) *HistoryHandler {
	return &HistoryHandler{repo: repo}
}

// ScanListResponse represents the archived-scan list response
type ScanListResponse struct {
	Total   int64                `json:"total"`
	Page    int                  `json:"page"`
	Limit   int                  `json:"limit"`
	Results []model.ScanSnapshot `json:"results"`
}

// List handles GET /api/v1/history
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	page := parseQueryInt(r, "page", 1)
	limit := parseQueryInt(r, "limit", 20)
	if limit > 100 {
		limit = 100
	}
	if page < 1 {
		page = 1
	}

	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}

	scans, total, err := h.repo.List(r.Context(), filter, page, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ScanListResponse{
		Total:   total,
		Page:    page,
		Limit:   limit,
		Results: scans,
	})
}
