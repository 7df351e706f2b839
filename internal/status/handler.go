// Package status serves the local HTTP surface the clinic UI shell polls:
// health, sync stats and Prometheus metrics.
package status

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/drheny/cab-sub000/internal/notify"
	"github.com/drheny/cab-sub000/internal/sync"
)

const version = "1.2.0"

// Handler contains shared dependencies for all status handlers.
type Handler struct {
	engine *sync.Engine
}

// NewHandler creates a new Handler around the engine.
func NewHandler(engine *sync.Engine) *Handler {
	return &Handler{engine: engine}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status     string `json:"status"` // "healthy" or "degraded"
	Version    string `json:"version"`
	Connection string `json:"connection"`
	Timestamp  string `json:"timestamp"`
}

// Health reports whether the sync core has a live channel. A closed
// channel is degraded, not dead: the core still converges via refetch.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	state := h.engine.ConnectionState()

	status := "healthy"
	statusCode := http.StatusOK
	if state != notify.StateOpen {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	h.JSON(w, statusCode, HealthResponse{
		Status:     status,
		Version:    version,
		Connection: string(state),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

// Stats reports the sync core summary.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, h.engine.Stats())
}
