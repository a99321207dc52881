package publisher

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Dream-Merchants-VIT/my-bid/internal/auction/events"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds connection settings for the event publisher.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns the default publisher configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "auction.events",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// NATS mirrors every auction event onto a message bus subject so consumers
// outside this process (dashboards, recorders) can observe the auction.
// Delivery is fire-and-forget; the websocket hub remains the source of truth
// for connected clients.
type NATS struct {
	nc            *nats.Conn
	subjectPrefix string
}

// NewNATS connects to the bus and returns an event sink.
func NewNATS(cfg NATSConfig) (*NATS, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &NATS{nc: nc, subjectPrefix: cfg.SubjectPrefix}, nil
}

// Publish sends the event to <prefix>.<event type>. Failures are logged and
// never abort the engine operation that emitted the event.
func (p *NATS) Publish(event *events.Event) {
	subject := fmt.Sprintf("%s.%s", p.subjectPrefix, event.Type)

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(event.Type)).Msg("failed to marshal event for NATS")
		return
	}

	if err := p.nc.Publish(subject, data); err != nil {
		log.Error().
			Err(err).
			Str("subject", subject).
			Str("event_id", event.ID).
			Msg("failed to publish event to NATS")
	}
}

// Close drains and closes the connection.
func (p *NATS) Close() {
	if err := p.nc.Drain(); err != nil {
		log.Error().Err(err).Msg("failed to drain NATS connection")
	}
}
