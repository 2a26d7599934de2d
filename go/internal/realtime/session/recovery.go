package session

import (
	"context"
	"fmt"

	"github.com/mcdev12/tablesync/go/internal/models"
	"github.com/mcdev12/tablesync/go/internal/realtime/gate"
	"github.com/mcdev12/tablesync/go/internal/realtime/notice"
	"github.com/rs/zerolog/log"
)

// EventSyncState is the request that resolves placement with the server.
const EventSyncState = "sync_state"

// Requester sends a request through the submission gate.
type Requester interface {
	Do(ctx context.Context, req gate.Request) (gate.Ack, error)
}

// Coordinator reconciles the session with the server after each connect.
type Coordinator struct {
	session  *Session
	requests Requester
	notices  *notice.Bus
}

// NewCoordinator creates a coordinator for session.
func NewCoordinator(session *Session, requests Requester, notices *notice.Bus) *Coordinator {
	return &Coordinator{session: session, requests: requests, notices: notices}
}

// Recover sends the persisted preference and applies the server's answer.
// On failure the session is left as it was.
func (c *Coordinator) Recover(ctx context.Context) (models.SessionPlacement, error) {
	tableID, mode := c.session.Preference(ctx)
	payload := map[string]any{"preferred_mode": string(mode)}
	if tableID != "" {
		payload["preferred_table_id"] = tableID
	}

	ack, err := c.requests.Do(ctx, gate.Request{Event: EventSyncState, Payload: payload})
	if err != nil {
		log.Warn().Err(err).Str("preferred_table_id", tableID).Msg("session recovery failed")
		return models.SessionPlacement{}, fmt.Errorf("sync state: %w", err)
	}

	var answer models.SessionPlacement
	if err := ack.Decode(&answer); err != nil {
		return models.SessionPlacement{}, fmt.Errorf("decode sync state: %w", err)
	}
	c.session.Apply(answer)

	p := c.session.Placement()
	log.Info().
		Str("preferred_table_id", tableID).
		Str("table_id", p.TableID).
		Str("spectator_table_id", p.SpectatorTableID).
		Msg("session recovered")
	return answer, nil
}

// ApplyRestore handles an unsolicited restore from the server. The same
// overwrite rule as Recover applies; a notice is only shown for a genuine
// recovery.
func (c *Coordinator) ApplyRestore(p models.SessionPlacement) {
	c.session.Apply(p)
	if !p.Recovered || c.notices == nil {
		return
	}
	if active := c.session.ActiveTableID(); active != "" {
		c.notices.Info("session", fmt.Sprintf("Rejoined table %s", active))
	} else {
		c.notices.Info("session", "Session restored")
	}
}
