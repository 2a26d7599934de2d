package tableclient

import (
	"encoding/json"
	"fmt"

	"github.com/mcdev12/tablesync/go/internal/models"
	"github.com/mcdev12/tablesync/go/internal/realtime/gate"
	"github.com/rs/zerolog/log"
)

// dispatch applies one server push. Every push is a complete snapshot of
// whatever it carries, so applying the same push twice is harmless.
func (s *Service) dispatch(push PushType, data json.RawMessage) error {
	switch push {
	case PushSystem:
		p, err := decode[models.Profile](push, data)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.profile = p
		if p.Balance != nil {
			s.balance = p.Balance
		}
		s.mu.Unlock()
		log.Info().Str("user_id", p.UserID).Str("role", p.Role).Msg("server identified user")

	case PushSessionRestored:
		p, err := decode[models.SessionPlacement](push, data)
		if err != nil {
			return err
		}
		s.recovery.ApplyRestore(p)

	case PushLobbySnapshot:
		lobby, err := decode[models.Lobby](push, data)
		if err != nil {
			return err
		}
		s.store.ReplaceLobby(lobby)

	case PushTableSnapshot:
		t, err := decode[models.Table](push, data)
		if err != nil {
			return err
		}
		s.store.UpsertTable(t)

	case PushTableClosed:
		ref, err := decode[TableRef](push, data)
		if err != nil {
			return err
		}
		s.closeTable(ref.TableID)

	case PushTableJoined:
		ref, err := decode[TableRef](push, data)
		if err != nil {
			return err
		}
		s.session.Seat(ref.TableID)

	case PushTableLeft:
		ref, err := decode[TableRef](push, data)
		if err != nil {
			return err
		}
		s.session.Unseat(ref.TableID)

	case PushSpectatorJoined:
		p, err := decode[SpectatorPayload](push, data)
		if err != nil {
			return err
		}
		s.applySpectator(p)

	case PushSpectatorLeft:
		ref, err := decode[TableRef](push, data)
		if err != nil {
			return err
		}
		s.session.StopSpectating(ref.TableID)

	case PushGameState, PushGameStarted, PushRoundResolved:
		g, err := decode[models.GameState](push, data)
		if err != nil {
			return err
		}
		s.store.UpsertGameState(g)
		if push == PushGameStarted && g.TableID == s.session.ActiveTableID() {
			s.notices.Info("table", "Round started")
		}

	case PushGameEnded:
		p, err := decode[GameEndedPayload](push, data)
		if err != nil {
			return err
		}
		if p.TableID == s.session.ActiveTableID() {
			s.notices.Info("table", fmt.Sprintf("Round ended: %s", p.Reason))
		}

	case PushReadyToStart:
		ref, err := decode[TableRef](push, data)
		if err != nil {
			return err
		}
		if ref.TableID == s.session.ActiveTableID() {
			s.notices.Info("table", "Everyone is ready, dealing")
		}

	case PushTurnActionApplied:
		p, err := decode[TurnActionAppliedPayload](push, data)
		if err != nil {
			return err
		}
		log.Debug().
			Str("table_id", p.TableID).
			Str("user_id", p.UserID).
			Str("action", string(p.Action)).
			Bool("round_finished", p.RoundFinished).
			Msg("turn action applied")

	case PushTurnTimeout, PushTurnSkipped, PushPlayerAutoRemoved:
		p, err := decode[TurnEventPayload](push, data)
		if err != nil {
			return err
		}
		s.turnEvent(push, p)

	case PushChatHistory:
		h, err := decode[models.ChatHistory](push, data)
		if err != nil {
			return err
		}
		s.caches.Chat.ReplaceHistory(h.TableID, h.Messages)

	case PushChatMessage:
		m, err := decode[models.ChatMessage](push, data)
		if err != nil {
			return err
		}
		s.caches.Chat.Append(m.TableID, m)

	case PushReaction:
		r, err := decode[models.Reaction](push, data)
		if err != nil {
			return err
		}
		s.caches.Reactions.Append(r.TableID, r)

	case PushModerationUpdated:
		u, err := decode[models.ModerationUpdate](push, data)
		if err != nil {
			return err
		}
		s.caches.Moderation.Replace(models.NewModerationState(u, s.clock.Now()))

	case PushModerationNotice:
		n, err := decode[models.ModerationNotice](push, data)
		if err != nil {
			return err
		}
		if me := s.Me(); me != "" && n.TargetUserID == me {
			s.notices.Warn("moderation", moderationText(n.Action))
		}

	case PushAdminCommandResult:
		r, err := decode[AdminResultPayload](push, data)
		if err != nil {
			return err
		}
		if r.OK {
			s.notices.Info("admin", r.Message)
		} else {
			s.notices.Error("admin", r.Message)
		}

	case PushRateLimited:
		r, err := decode[RateLimitedPayload](push, data)
		if err != nil {
			return err
		}
		text := r.Message
		if text == "" {
			text = "Too many requests. Slow down."
		}
		s.notices.Warn("rate_limit", text)

	case PushBalanceUpdated:
		b, err := decode[BalancePayload](push, data)
		if err != nil {
			return err
		}
		s.mu.Lock()
		if s.profile.UserID == "" || s.profile.UserID == b.UserID {
			balance := b.Balance
			s.balance = &balance
		}
		s.mu.Unlock()

	case PushRoleUpdated:
		r, err := decode[RolePayload](push, data)
		if err != nil {
			return err
		}
		s.mu.Lock()
		if s.profile.UserID == "" || s.profile.UserID == r.UserID {
			s.profile.Role = r.Role
		}
		s.mu.Unlock()

	default:
		log.Debug().Str("event", string(push)).Msg("ignoring unknown push")
	}
	return nil
}

// closeTable destroys everything known about tableID.
func (s *Service) closeTable(tableID string) {
	wasActive := tableID != "" && tableID == s.session.ActiveTableID()

	s.session.Forget(tableID)
	s.store.RemoveTable(tableID)
	s.store.RemoveGameState(tableID)
	s.caches.DropTable(tableID)

	log.Info().Str("table_id", tableID).Msg("table closed")
	if wasActive {
		s.notices.Info("table", "The table was closed")
	}
}

func (s *Service) applySpectator(p SpectatorPayload) {
	if p.Mode == "player" {
		s.session.StopSpectating("")
		return
	}
	s.session.Spectate(p.TableID)
}

func (s *Service) turnEvent(push PushType, p TurnEventPayload) {
	log.Info().
		Str("event", string(push)).
		Str("table_id", p.TableID).
		Str("user_id", p.UserID).
		Str("reason", p.Reason).
		Msg("turn event")

	me := s.Me()
	if me == "" || p.UserID != me {
		return
	}
	switch push {
	case PushTurnTimeout:
		s.notices.Warn("table", "Your turn timed out")
	case PushPlayerAutoRemoved:
		s.notices.Warn("table", "You were removed from the table after disconnecting")
	case PushTurnSkipped:
		s.notices.Info("table", "Your turn was skipped")
	}
}

func moderationText(action models.ModerationAction) string {
	switch action {
	case models.ModerationMute:
		return "You were muted at this table"
	case models.ModerationUnmute:
		return "You are no longer muted"
	case models.ModerationBan:
		return "You were banned from this table"
	case models.ModerationUnban:
		return "Your ban was lifted"
	default:
		return fmt.Sprintf("Moderation: %s", action)
	}
}

// ackSink feeds snapshots embedded in successful acks into the store and
// session before the caller is released.
type ackSink struct{ s *Service }

func (a ackSink) ApplyAck(event string, ack gate.Ack) {
	s := a.s
	if ack.Table != nil {
		s.store.UpsertTable(*ack.Table)
	}
	if ack.State != nil {
		s.store.UpsertGameState(*ack.State)
	}

	switch event {
	case EventCreateTable, EventJoinTable:
		if ack.Table != nil {
			s.session.Seat(ack.Table.ID)
		}
	case EventLeaveTable:
		s.session.Unseat("")
	case EventSpectateTable:
		var p SpectatorPayload
		if err := ack.Decode(&p); err != nil {
			log.Warn().Err(err).Msg("malformed spectate ack")
			return
		}
		s.applySpectator(p)
	case EventStopSpectating:
		s.session.StopSpectating("")
	case EventSendChat:
		var c chatAck
		if err := ack.Decode(&c); err == nil && c.Message.TableID != "" {
			s.caches.Chat.Append(c.Message.TableID, c.Message)
		}
	case EventSendReaction:
		var r reactionAck
		if err := ack.Decode(&r); err == nil && r.Reaction.TableID != "" {
			s.caches.Reactions.Append(r.Reaction.TableID, r.Reaction)
		}
	}
}
