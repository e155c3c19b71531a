package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/talonscan/talon/internal/model"
	"github.com/talonscan/talon/internal/service"
)

// ScanHandler exposes the scan lifecycle: submit, poll, retry.
type ScanHandler struct {
	orchestrator *service.Orchestrator
}

// NewScanHandler creates a new scan handler
func NewScanHandler(orchestrator *service.Orchestrator) *ScanHandler {
	return &ScanHandler{orchestrator: orchestrator}
}

// StartRequest is the scan submission body.
type StartRequest struct {
	URL         string `json:"url"`
	Plan        string `json:"plan"`
	BypassCache bool   `json:"bypass_cache,omitempty"`
}

// StartResponse acknowledges a scan submission.
type StartResponse struct {
	JobID     string           `json:"job_id"`
	Status    model.ScanStatus `json:"status"`
	FromCache bool             `json:"from_cache"`
	Progress  model.Progress   `json:"progress"`
}

// RetryRequest selects checks to retry; empty means all retryable.
type RetryRequest struct {
	Checks []string `json:"checks,omitempty"`
}

// RetryResponse reports the re-dispatched checks.
type RetryResponse struct {
	JobID         string            `json:"job_id"`
	Status        model.ScanStatus  `json:"status"`
	RetriedChecks []model.CheckName `json:"retried_checks"`
}

// Start handles POST /api/v1/scans. The call returns as soon as the scan is
// dispatched; completion is observed via polling.
func (h *ScanHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	result, err := h.orchestrator.StartScan(r.Context(), req.URL, req.Plan, req.BypassCache)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	response := StartResponse{
		JobID:     result.Snapshot.ID,
		Status:    result.Snapshot.Status,
		FromCache: result.FromCache,
		Progress:  result.Snapshot.Progress,
	}

	statusCode := http.StatusAccepted
	if result.FromCache {
		statusCode = http.StatusOK
	}
	writeJSON(w, statusCode, response)
}

// Get handles GET /api/v1/scans/{id}: a best-effort snapshot including
// partial results, never blocking on outstanding checks.
func (h *ScanHandler) Get(w http.ResponseWriter, r *http.Request) {
	scanID := strings.TrimPrefix(r.URL.Path, "/api/v1/scans/")
	if scanID == "" || strings.Contains(scanID, "/") {
		writeError(w, http.StatusBadRequest, "Invalid scan id")
		return
	}

	snapshot, err := h.orchestrator.GetStatus(r.Context(), scanID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

// Retry handles POST /api/v1/scans/{id}/retry.
func (h *ScanHandler) Retry(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/scans/")
	scanID := strings.TrimSuffix(path, "/retry")
	if scanID == "" || strings.Contains(scanID, "/") {
		writeError(w, http.StatusBadRequest, "Invalid scan id")
		return
	}

	var req RetryRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	result, err := h.orchestrator.Retry(r.Context(), scanID, req.Checks)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, RetryResponse{
		JobID:         result.Snapshot.ID,
		Status:        result.Snapshot.Status,
		RetriedChecks: result.RetriedChecks,
	})
}
