package tableclient

import (
	"encoding/json"
	"fmt"

	"github.com/mcdev12/tablesync/go/internal/models"
)

// Request events. Each is its own class for the one-in-flight rule.
const (
	EventJoinLobby      = "join_lobby"
	EventCreateTable    = "create_table"
	EventJoinTable      = "join_table"
	EventLeaveTable     = "leave_table"
	EventSpectateTable  = "spectate_table"
	EventStopSpectating = "stop_spectating"
	EventSetReady       = "set_ready"
	EventTakeTurn       = "take_turn_action"
	EventSendChat       = "send_table_chat"
	EventSendReaction   = "send_table_reaction"
	EventModerate       = "moderate_table_chat"
	EventAdminCommand   = "admin_command"
)

// PushType is the name of an unsolicited server event.
type PushType string

const (
	PushSystem             PushType = "system"
	PushSessionRestored    PushType = "session_restored"
	PushLobbySnapshot      PushType = "lobby_snapshot"
	PushTableSnapshot      PushType = "table_snapshot"
	PushTableClosed        PushType = "table_closed"
	PushTableJoined        PushType = "table_joined"
	PushTableLeft          PushType = "table_left"
	PushSpectatorJoined    PushType = "spectator_joined"
	PushSpectatorLeft      PushType = "spectator_left"
	PushGameState          PushType = "table_game_state"
	PushGameStarted        PushType = "table_game_started"
	PushRoundResolved      PushType = "table_round_resolved"
	PushGameEnded          PushType = "table_game_ended"
	PushTurnActionApplied  PushType = "turn_action_applied"
	PushTurnTimeout        PushType = "turn_timeout"
	PushTurnSkipped        PushType = "turn_skipped"
	PushPlayerAutoRemoved  PushType = "player_auto_removed"
	PushReadyToStart       PushType = "table_ready_to_start"
	PushChatHistory        PushType = "table_chat_history"
	PushChatMessage        PushType = "table_chat_message"
	PushReaction           PushType = "table_reaction"
	PushModerationUpdated  PushType = "table_moderation_updated"
	PushModerationNotice   PushType = "table_moderation_notice"
	PushAdminCommandResult PushType = "admin_command_result"
	PushRateLimited        PushType = "rate_limited"
	PushBalanceUpdated     PushType = "balance_updated"
	PushRoleUpdated        PushType = "role_updated"
)

// TableRef carries just a table id.
type TableRef struct {
	TableID string `json:"table_id"`
}

// SpectatorPayload is sent with spectator_joined and in spectate acks.
// Mode is "spectator", or "player" when the user asked to watch the table
// they are seated at.
type SpectatorPayload struct {
	TableID string `json:"table_id"`
	Mode    string `json:"mode"`
}

// GameEndedPayload explains why a round stopped early.
type GameEndedPayload struct {
	TableID string `json:"table_id"`
	Reason  string `json:"reason"`
}

// TurnActionAppliedPayload announces a participant's move.
type TurnActionAppliedPayload struct {
	TableID        string            `json:"table_id"`
	UserID         string            `json:"user_id"`
	Action         models.TurnAction `json:"action"`
	NextTurnUserID *string           `json:"next_turn_user_id"`
	RoundFinished  bool              `json:"round_finished"`
}

// TurnEventPayload is used by turn_timeout, turn_skipped and
// player_auto_removed.
type TurnEventPayload struct {
	TableID string `json:"table_id"`
	UserID  string `json:"user_id"`
	Reason  string `json:"reason,omitempty"`
}

// RateLimitedPayload is pushed when the server throttles an event.
type RateLimitedPayload struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

// BalancePayload is pushed when the user's balance changes.
type BalancePayload struct {
	UserID  string  `json:"user_id"`
	Balance float64 `json:"balance"`
}

// RolePayload is pushed when the user's role changes.
type RolePayload struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// AdminResultPayload is the outcome of an admin command.
type AdminResultPayload struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// ReadyAck is the acknowledgment of set_ready.
type ReadyAck struct {
	Ready bool    `json:"ready"`
	Bet   float64 `json:"bet"`
}

type chatAck struct {
	Message models.ChatMessage `json:"message"`
}

type reactionAck struct {
	Reaction models.Reaction `json:"reaction"`
}

type moderationAck struct {
	Moderation models.ModerationNotice `json:"moderation"`
}

func decode[T any](push PushType, data json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", push, err)
	}
	return v, nil
}
