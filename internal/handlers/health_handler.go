package handlers

import (
	"net/http"

	"github.com/webgraph-io/crawlgraph/internal/interfaces"
)

// HealthHandler serves the manager's /livez and /readyz probes.
type HealthHandler struct {
	store interfaces.GraphStore
}

// NewHealthHandler builds a HealthHandler over store.
func NewHealthHandler(store interfaces.GraphStore) *HealthHandler {
	return &HealthHandler{store: store}
}

// Livez always reports ok: it answers "is the process up", not "is the
// store reachable" — that's Readyz's job.
func (h *HealthHandler) Livez(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports 200 iff the graph store answers a health-check query.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.store.HealthCheck(r.Context()); err != nil {
		WriteError(w, http.StatusServiceUnavailable, "graph store unavailable")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
