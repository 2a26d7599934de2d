package models

import (
	"slices"
	"time"
)

// Table is one lobby row as the server reports it. Rows are only ever
// replaced whole; the client never edits one field of a table in place.
type Table struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	OwnerID           string     `json:"owner_id"`
	MaxPlayers        int        `json:"max_players"`
	IsPrivate         bool       `json:"is_private"`
	InviteCode        *string    `json:"invite_code,omitempty"`
	Players           []string   `json:"players"`
	ReadyPlayers      []string   `json:"ready_players,omitempty"`
	OnlinePlayers     []string   `json:"online_players,omitempty"`
	IsReadyToStart    bool       `json:"is_ready_to_start"`
	HasActiveTurn     bool       `json:"has_active_turn"`
	SpectatorCount    *int       `json:"spectator_count,omitempty"`
	IsLocked          bool       `json:"is_locked"`
	CurrentTurnUserID *string    `json:"current_turn_user_id,omitempty"`
	TurnDeadline      *time.Time `json:"turn_deadline,omitempty"`
}

// HasPlayer reports whether userID holds a seat at the table.
func (t Table) HasPlayer(userID string) bool {
	return slices.Contains(t.Players, userID)
}

// IsReady reports whether userID is in the ready set.
func (t Table) IsReady(userID string) bool {
	return slices.Contains(t.ReadyPlayers, userID)
}

// IsFull reports whether every seat is taken.
func (t Table) IsFull() bool {
	return t.MaxPlayers > 0 && len(t.Players) >= t.MaxPlayers
}

// Lobby is the pushed table listing.
type Lobby struct {
	Tables      []Table `json:"tables"`
	OnlineUsers int     `json:"online_users"`
}
