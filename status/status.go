// Package status exposes read-only accessors over the core for status and
// health endpoints. Nothing here mutates presence state.
package status

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/HMasataka/presencehub/domain"
	"github.com/go-chi/chi/v5"
)

const Version = "1.0.0"

// Roster is the registry's read-only surface.
type Roster interface {
	Snapshot() []domain.User
	Count() int
}

// TickState is the tick service's read-only surface.
type TickState interface {
	Running() bool
	Interval() time.Duration
}

// HubStats is the hub's read-only surface.
type HubStats interface {
	GetStats() domain.HubStats
}

type Handler struct {
	roster      Roster
	ticks       TickState
	hub         HubStats
	environment string
	startTime   time.Time
}

func NewHandler(roster Roster, ticks TickState, hub HubStats, environment string) *Handler {
	return &Handler{
		roster:      roster,
		ticks:       ticks,
		hub:         hub,
		environment: environment,
		startTime:   time.Now(),
	}
}

// Routes mounts the status endpoints on the given router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleRoot)
	r.Get("/health", h.handleHealth)
	r.Get("/api/version", h.handleVersion)
	r.Get("/api/status", h.handleStatus)
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to our API!",
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.startTime).Seconds(),
	})
}

func (h *Handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version":     Version,
		"environment": h.environment,
	})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"connections": h.roster.Count(),
		"users":       h.roster.Snapshot(),
		"ticker": map[string]any{
			"running":     h.ticks.Running(),
			"interval_ms": h.ticks.Interval().Milliseconds(),
		},
		"hub": h.hub.GetStats(),
	})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
