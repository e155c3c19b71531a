package handler

import (
	"net/http"
	"strings"

	"github.com/talonscan/talon/pkg/middleware"
)

// Router handles HTTP routing
type Router struct {
	scanHandler    *ScanHandler
	cacheHandler   *CacheHandler
	historyHandler *HistoryHandler // nil when persistence is disabled
	healthHandler  *HealthHandler
	corsConfig     middleware.CORSConfig
}

// NewRouter creates a new router
func NewRouter(
	scanHandler *ScanHandler,
	cacheHandler *CacheHandler,
	historyHandler *HistoryHandler,
	healthHandler *HealthHandler,
	corsConfig middleware.CORSConfig,
) *Router {
	return &Router{
		scanHandler:    scanHandler,
		cacheHandler:   cacheHandler,
		historyHandler: historyHandler,
		healthHandler:  healthHandler,
		corsConfig:     corsConfig,
	}
}

// Handler returns the configured HTTP handler with middleware
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health endpoints (no middleware)
	mux.HandleFunc("/health", rt.healthHandler.Health)
	mux.HandleFunc("/ready", rt.healthHandler.Ready)

	// API endpoints
	mux.HandleFunc("/api/v1/scans", rt.handleScans)
	mux.HandleFunc("/api/v1/scans/", rt.handleScansWithID)
	mux.HandleFunc("/api/v1/cache/stats", rt.handleCacheStats)
	if rt.historyHandler != nil {
		mux.HandleFunc("/api/v1/history", rt.handleHistory)
	}

	// Apply middleware (CORS first to handle preflight requests)
	handler := middleware.CORS(rt.corsConfig)(mux)
	handler = middleware.Recovery(handler)
	handler = middleware.Logging(handler)
	handler = middleware.CorrelationID(handler)

	return handler
}

// handleScans routes the scan collection endpoint
func (rt *Router) handleScans(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.scanHandler.Start(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleScansWithID routes individual scan endpoints
func (rt *Router) handleScansWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/scans/")

	if strings.HasSuffix(path, "/retry") {
		if r.Method != http.MethodPost && r.Method != http.MethodOptions {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		rt.scanHandler.Retry(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		rt.scanHandler.Get(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleCacheStats routes the cache stats endpoint
func (rt *Router) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	rt.cacheHandler.Stats(w, r)
}

// handleHistory routes the archived-scan list endpoint
func (rt *Router) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	rt.historyHandler.List(w, r)
}
