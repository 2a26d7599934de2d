package models

import "time"

// ChatMessage is one entry of a table's chat window.
type ChatMessage struct {
	ID        string    `json:"id"`
	TableID   string    `json:"table_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Filtered  bool      `json:"filtered"`
	CreatedAt time.Time `json:"created_at"`
}

// EntryID and Timestamp let chat messages live in a stream window.
func (m ChatMessage) EntryID() string      { return m.ID }
func (m ChatMessage) Timestamp() time.Time { return m.CreatedAt }

// Reaction is one emoji reaction sent at a table.
type Reaction struct {
	ID        string    `json:"id"`
	TableID   string    `json:"table_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

func (r Reaction) EntryID() string      { return r.ID }
func (r Reaction) Timestamp() time.Time { return r.CreatedAt }

// ChatHistory is the full chat window sent when a table is first attached.
type ChatHistory struct {
	TableID  string        `json:"table_id"`
	Messages []ChatMessage `json:"messages"`
}

// ModerationAction is a moderator's verb against a participant.
type ModerationAction string

const (
	ModerationMute   ModerationAction = "mute"
	ModerationUnmute ModerationAction = "unmute"
	ModerationBan    ModerationAction = "ban"
	ModerationUnban  ModerationAction = "unban"
)

// ModerationUpdate is the wire form of a table's moderation state. Mutes are
// expressed as seconds remaining at the time the server sent the push.
type ModerationUpdate struct {
	TableID     string         `json:"table_id"`
	MutedUsers  map[string]int `json:"muted_users"`
	BannedUsers []string       `json:"banned_users"`
}

// ModerationState is a table's moderation state with absolute mute expiries.
type ModerationState struct {
	TableID     string
	MutedUntil  map[string]time.Time
	BannedUsers map[string]struct{}
	ReceivedAt  time.Time
}

// NewModerationState converts a pushed update using receivedAt as the
// reference point for the remaining-seconds values.
func NewModerationState(u ModerationUpdate, receivedAt time.Time) ModerationState {
	s := ModerationState{
		TableID:     u.TableID,
		MutedUntil:  make(map[string]time.Time, len(u.MutedUsers)),
		BannedUsers: make(map[string]struct{}, len(u.BannedUsers)),
		ReceivedAt:  receivedAt,
	}
	for userID, seconds := range u.MutedUsers {
		s.MutedUntil[userID] = receivedAt.Add(time.Duration(seconds) * time.Second)
	}
	for _, userID := range u.BannedUsers {
		s.BannedUsers[userID] = struct{}{}
	}
	return s
}

// IsMuted reports whether userID is muted at now.
func (s ModerationState) IsMuted(userID string, now time.Time) bool {
	until, ok := s.MutedUntil[userID]
	return ok && now.Before(until)
}

// IsBanned reports whether userID is banned from the table.
func (s ModerationState) IsBanned(userID string) bool {
	_, ok := s.BannedUsers[userID]
	return ok
}

// ModerationNotice announces a single moderation action.
type ModerationNotice struct {
	TableID      string           `json:"table_id"`
	Action       ModerationAction `json:"action"`
	TargetUserID string           `json:"target_user_id"`
	ActorUserID  string           `json:"actor_user_id"`
	At           time.Time        `json:"at"`
	Details      map[string]any   `json:"details,omitempty"`
}
