package statusapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/mcdev12/tablesync/go/internal/tableclient"
	"github.com/rs/zerolog/log"
)

// RelayStatus is the part of the relay the health check reads.
type RelayStatus interface {
	Stats() (published uint64, last time.Time)
	Connected() bool
}

type HealthStatus struct {
	Healthy         bool      `json:"healthy"`
	Connected       bool      `json:"connected"`
	Reconnecting    bool      `json:"reconnecting"`
	ReconnectTries  int       `json:"reconnect_attempts"`
	RelayConnected  *bool     `json:"relay_connected,omitempty"`
	EventsPublished uint64    `json:"events_published"`
	LastEventTime   time.Time `json:"last_event_time"`
	Errors          []string  `json:"errors"`
}

// HealthChecker reports whether the client is attached to the server and,
// when a relay is configured, whether NATS is reachable.
type HealthChecker struct {
	svc   *tableclient.Service
	relay RelayStatus
}

func NewHealthChecker(svc *tableclient.Service, relay RelayStatus) *HealthChecker {
	return &HealthChecker{svc: svc, relay: relay}
}

func (h *HealthChecker) Check(_ context.Context) HealthStatus {
	conn := h.svc.Connection()
	status := HealthStatus{
		Healthy:        true,
		Connected:      conn.Connected(),
		Reconnecting:   conn.Reconnecting(),
		ReconnectTries: conn.Attempts(),
		Errors:         []string{},
	}

	if !status.Connected {
		status.Healthy = false
		if err := conn.LastError(); err != nil {
			status.Errors = append(status.Errors, err.Error())
		} else {
			status.Errors = append(status.Errors, "realtime channel not connected")
		}
	}

	if h.relay != nil {
		connected := h.relay.Connected()
		status.RelayConnected = &connected
		status.EventsPublished, status.LastEventTime = h.relay.Stats()
		if !connected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}
	return status
}

// ServeHTTP answers 200 when healthy and 503 otherwise.
func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to write health response")
	}
}
