package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Dream-Merchants-VIT/my-bid/internal/auction/events"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Config holds configuration for WebSocket connections.
type Config struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConfig returns default WebSocket configuration.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// Hub manages all WebSocket connections observing the auction. Every engine
// event is fanned out to every connection; a client that cannot keep up is
// evicted and must reconnect, receiving a fresh snapshot.
type Hub struct {
	engine AuctionEngine

	connections map[*Connection]bool
	mu          sync.RWMutex

	upgrader    websocket.Upgrader
	config      Config
	broadcastCh chan *events.Event
}

// NewHub creates a connection hub bound to the auction engine.
func NewHub(config Config, engine AuctionEngine) *Hub {
	return &Hub{
		engine:      engine,
		connections: make(map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan *events.Event, 1000),
	}
}

// Run processes broadcast events until the context is cancelled. A single
// consumer preserves the engine's emit order for every connection.
func (h *Hub) Run(ctx context.Context) {
	log.Info().Msg("gateway hub started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("gateway hub shutting down")
			return
		case event := <-h.broadcastCh:
			h.handleBroadcast(event)
		}
	}
}

// Publish enqueues an event for broadcast. It never blocks the engine; if the
// queue is full the event is dropped and clients recover via snapshot pulls.
func (h *Hub) Publish(event *events.Event) {
	select {
	case h.broadcastCh <- event:
	default:
		log.Warn().Str("event_type", string(event.Type)).Msg("broadcast channel full, dropping event")
	}
}

// UpgradeConnection upgrades an HTTP request to a WebSocket connection,
// registers it, and pushes the current snapshot so the client sees "now".
func (h *Hub) UpgradeConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, 256),
		done:        make(chan struct{}),
		hub:         h,
		ConnectedAt: time.Now(),
	}

	h.register(connection)

	go connection.writePump()
	go connection.readPump()

	h.sendInitialData(connection)

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")

	return nil
}

// sendInitialData pushes the full current state to a new connection.
func (h *Hub) sendInitialData(c *Connection) {
	event, err := events.New(events.TypeInitialData, h.engine.Snapshot())
	if err != nil {
		log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to build initial data event")
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to marshal initial data event")
		return
	}
	c.trySend(data)
}

func (h *Hub) register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(h.connections)).
		Msg("connection registered")
}

func (h *Hub) unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.connections[conn]; exists {
		delete(h.connections, conn)
		// Send stays open; in-flight dispatches may still be trying to queue
		// a correlated response. markClosed makes those sends no-ops.
		conn.markClosed()

		log.Info().
			Str("connection_id", conn.ID).
			Int("total_connections", len(h.connections)).
			Msg("connection unregistered")
	}
}

// handleBroadcast delivers one event to every connection. Delivery failure is
// isolated per connection and never aborts the broadcast.
func (h *Hub) handleBroadcast(event *events.Event) {
	h.mu.RLock()
	targets := make([]*Connection, 0, len(h.connections))
	for conn := range h.connections {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targets {
		select {
		case conn.Send <- data:
		default:
			// Connection is slow/dead, close it
			log.Warn().
				Str("connection_id", conn.ID).
				Msg("connection send buffer full, closing connection")
			h.unregister(conn)
			conn.Conn.Close()
		}
	}

	log.Debug().
		Str("event_type", string(event.Type)).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}
