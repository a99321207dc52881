package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Handler exposes the WebSocket upgrade and stats endpoints.
type Handler struct {
	hub *Hub
}

// NewHandler creates an HTTP handler for the gateway.
func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// HandleAuctionConnection handles WebSocket upgrade requests.
func (h *Handler) HandleAuctionConnection(w http.ResponseWriter, r *http.Request) {
	if err := h.hub.UpgradeConnection(w, r); err != nil {
		log.Error().Err(err).Str("remote_addr", r.RemoteAddr).Msg("failed to upgrade WebSocket connection")
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
	}
}

// HandleConnectionStats returns statistics about active connections.
func (h *Handler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{
		"total_connections": h.hub.ConnectionCount(),
	})
}

// RegisterRoutes registers gateway routes with an HTTP mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleAuctionConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
