// Package relay republishes applied table snapshots on NATS so local
// consumers (bots, recorders, dashboards) can follow the table without their
// own realtime connection.
package relay

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tablesync/go/internal/realtime/store"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Config holds configuration for the NATS relay
type Config struct {
	URL           string
	SubjectPrefix string // e.g., "tablesync"
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConfig returns default relay configuration
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		SubjectPrefix: "tablesync",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Publisher is the part of *nats.Conn the relay needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Event is the envelope published for every change.
type Event struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	TableID   string          `json:"tableId,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Relay publishes store changes.
type Relay struct {
	pub    Publisher
	prefix string
	clock  clockwork.Clock
	nc     *nats.Conn

	mu        sync.Mutex
	published uint64
	lastEvent time.Time
}

// Connect dials NATS with config.
func Connect(config Config, clock clockwork.Clock) (*Relay, error) {
	opts := []nats.Option{
		nats.Name("tablesync-relay"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
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

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	r := New(nc, config.SubjectPrefix, clock)
	r.nc = nc
	return r, nil
}

// New creates a relay publishing through pub.
func New(pub Publisher, prefix string, clock clockwork.Clock) *Relay {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if prefix == "" {
		prefix = DefaultConfig().SubjectPrefix
	}
	return &Relay{pub: pub, prefix: prefix, clock: clock}
}

// Attach subscribes the relay to s.
func (r *Relay) Attach(s *store.Store) {
	s.Subscribe(r.Handle)
}

// Subject returns the subject a change is published on.
func (r *Relay) Subject(c store.Change) string {
	if c.TableID == "" {
		return fmt.Sprintf("%s.lobby.%s", r.prefix, c.Kind)
	}
	return fmt.Sprintf("%s.tables.%s.%s", r.prefix, c.TableID, c.Kind)
}

// Handle publishes c. Failures are logged and never returned to the store.
func (r *Relay) Handle(c store.Change) {
	var payload any
	switch {
	case c.Table != nil:
		payload = c.Table
	case c.State != nil:
		payload = c.State
	}

	evt := Event{
		EventID:   uuid.NewString(),
		EventType: string(c.Kind),
		TableID:   c.TableID,
		Timestamp: r.clock.Now().UTC(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Error().Err(err).Str("table_id", c.TableID).Msg("failed to encode relay payload")
			return
		}
		evt.Payload = data
	}

	data, err := json.Marshal(evt)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode relay event")
		return
	}
	subject := r.Subject(c)
	if err := r.pub.Publish(subject, data); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("failed to publish relay event")
		return
	}
	r.mu.Lock()
	r.published++
	r.lastEvent = evt.Timestamp
	r.mu.Unlock()
	log.Debug().Str("subject", subject).Msg("relayed change")
}

// Stats returns the number of events published and when the last one went
// out.
func (r *Relay) Stats() (uint64, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.published, r.lastEvent
}

// Connected reports whether the NATS connection is up. A relay built over a
// plain Publisher is always considered connected.
func (r *Relay) Connected() bool {
	if r.nc == nil {
		return true
	}
	return r.nc.IsConnected()
}

// Close drains the NATS connection if the relay owns one.
func (r *Relay) Close() {
	if r.nc == nil {
		return
	}
	if err := r.nc.Drain(); err != nil {
		log.Warn().Err(err).Msg("failed to drain NATS connection")
	}
}
