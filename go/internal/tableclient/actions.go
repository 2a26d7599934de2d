package tableclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mcdev12/tablesync/go/internal/models"
	"github.com/mcdev12/tablesync/go/internal/realtime/gate"
)

const (
	DefaultBet = 10
	MinBet     = 1
	MaxBet     = 1000

	MaxChatLength  = 280
	MaxEmojiLength = 16

	DefaultMute = 300 * time.Second
	MinMute     = 10 * time.Second
	MaxMute     = 6 * time.Hour
)

// do sends a request and reports any failure on the notice bus. Requests
// made while session recovery runs are held until it settles so the server
// sees sync_state first.
func (s *Service) do(ctx context.Context, event string, payload map[string]any) (gate.Ack, error) {
	if err := s.awaitRecovery(ctx); err != nil {
		return gate.Ack{}, err
	}
	ack, err := s.gate.Do(ctx, gate.Request{Event: event, Payload: payload})
	if err != nil {
		s.report(err)
		return ack, err
	}
	return ack, nil
}

func (s *Service) awaitRecovery(ctx context.Context) error {
	s.mu.RLock()
	ready := s.ready
	s.mu.RUnlock()
	select {
	case <-ready.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// refuse reports a local refusal and returns it.
func (s *Service) refuse(err error) error {
	s.report(err)
	return err
}

// RefreshLobby asks the server for a fresh lobby snapshot.
func (s *Service) RefreshLobby(ctx context.Context) error {
	_, err := s.do(ctx, EventJoinLobby, nil)
	return err
}

// CreateTable creates a table and seats the user at it.
func (s *Service) CreateTable(ctx context.Context, name string, maxPlayers int, private bool) (models.Table, error) {
	payload := map[string]any{
		"name":       strings.TrimSpace(name),
		"is_private": private,
	}
	if maxPlayers > 0 {
		payload["max_players"] = maxPlayers
	}
	ack, err := s.do(ctx, EventCreateTable, payload)
	if err != nil {
		return models.Table{}, err
	}
	return tableOf(ack)
}

// JoinTable takes a seat at tableID.
func (s *Service) JoinTable(ctx context.Context, tableID string) (models.Table, error) {
	if tableID == "" {
		return models.Table{}, s.refuse(ErrNoTable)
	}
	ack, err := s.do(ctx, EventJoinTable, map[string]any{"table_id": tableID})
	if err != nil {
		return models.Table{}, err
	}
	return tableOf(ack)
}

// JoinByInvite takes a seat at the private table with the invite code.
func (s *Service) JoinByInvite(ctx context.Context, code string) (models.Table, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return models.Table{}, s.refuse(ErrNoTable)
	}
	ack, err := s.do(ctx, EventJoinTable, map[string]any{"invite_code": code})
	if err != nil {
		return models.Table{}, err
	}
	return tableOf(ack)
}

// LeaveTable gives up the user's seat.
func (s *Service) LeaveTable(ctx context.Context) error {
	tableID := s.session.TableID()
	if tableID == "" {
		return s.refuse(ErrNotSeated)
	}
	_, err := s.do(ctx, EventLeaveTable, map[string]any{"table_id": tableID})
	return err
}

// Spectate watches tableID read-only.
func (s *Service) Spectate(ctx context.Context, tableID string) error {
	if tableID == "" {
		return s.refuse(ErrNoTable)
	}
	_, err := s.do(ctx, EventSpectateTable, map[string]any{"table_id": tableID})
	return err
}

// StopSpectating stops watching the spectated table.
func (s *Service) StopSpectating(ctx context.Context) error {
	payload := map[string]any{}
	if id := s.session.SpectatorTableID(); id != "" {
		payload["table_id"] = id
	}
	_, err := s.do(ctx, EventStopSpectating, payload)
	return err
}

// CanSetReady reports whether the ready toggle is usable now.
func (s *Service) CanSetReady() error {
	if !s.store.IsParticipant(s.Me()) || s.session.TableID() == "" {
		return ErrNotSeated
	}
	if g, ok := s.store.ActiveGameState(); ok && g.IsActive() {
		return ErrRoundInProgress
	}
	return nil
}

// SetReady toggles the user's ready flag with a wager for the next round.
// A zero bet uses DefaultBet; others are clamped to [MinBet, MaxBet].
func (s *Service) SetReady(ctx context.Context, ready bool, bet float64) (ReadyAck, error) {
	if err := s.CanSetReady(); err != nil {
		return ReadyAck{}, s.refuse(err)
	}
	ack, err := s.do(ctx, EventSetReady, map[string]any{
		"ready": ready,
		"bet":   ClampBet(bet),
	})
	if err != nil {
		return ReadyAck{}, err
	}
	var out ReadyAck
	if err := ack.Decode(&out); err != nil {
		return ReadyAck{}, fmt.Errorf("decode ready ack: %w", err)
	}
	return out, nil
}

// ClampBet normalizes a wager.
func ClampBet(bet float64) float64 {
	switch {
	case bet == 0:
		return DefaultBet
	case bet < MinBet:
		return MinBet
	case bet > MaxBet:
		return MaxBet
	}
	return bet
}

// CanTakeTurn reports whether action may be submitted now.
func (s *Service) CanTakeTurn(action models.TurnAction) error {
	if !action.Valid() {
		return ErrActionUnavailable
	}
	me := s.Me()
	g, ok := s.store.ActiveGameState()
	if !ok || me == "" || !g.IsTurnOf(me) {
		return ErrNotYourTurn
	}
	for _, a := range s.store.MyAvailableActions(me) {
		if a == action {
			return nil
		}
	}
	return ErrActionUnavailable
}

// TakeTurn submits a move. The returned state is the server's snapshot
// after applying it, and is already in the store.
func (s *Service) TakeTurn(ctx context.Context, action models.TurnAction) (models.GameState, error) {
	if err := s.CanTakeTurn(action); err != nil {
		return models.GameState{}, s.refuse(err)
	}
	ack, err := s.do(ctx, EventTakeTurn, map[string]any{
		"table_id": s.session.TableID(),
		"action":   string(action),
	})
	if err != nil {
		return models.GameState{}, err
	}
	if ack.State == nil {
		return models.GameState{}, nil
	}
	return *ack.State, nil
}

// SendChat posts a message at the user's table. Text longer than
// MaxChatLength characters is cut.
func (s *Service) SendChat(ctx context.Context, text string) (models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.ChatMessage{}, s.refuse(ErrEmptyMessage)
	}
	if utf8.RuneCountInString(text) > MaxChatLength {
		text = string([]rune(text)[:MaxChatLength])
	}
	tableID := s.session.TableID()
	if tableID == "" {
		return models.ChatMessage{}, s.refuse(ErrNotSeated)
	}

	ack, err := s.do(ctx, EventSendChat, map[string]any{"table_id": tableID, "message": text})
	if err != nil {
		return models.ChatMessage{}, err
	}
	var out chatAck
	if err := ack.Decode(&out); err != nil {
		return models.ChatMessage{}, fmt.Errorf("decode chat ack: %w", err)
	}
	return out.Message, nil
}

// SendReaction posts an emoji reaction at the user's table.
func (s *Service) SendReaction(ctx context.Context, emoji string) (models.Reaction, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return models.Reaction{}, s.refuse(ErrEmptyMessage)
	}
	if utf8.RuneCountInString(emoji) > MaxEmojiLength {
		return models.Reaction{}, s.refuse(ErrEmojiTooLong)
	}
	tableID := s.session.TableID()
	if tableID == "" {
		return models.Reaction{}, s.refuse(ErrNotSeated)
	}

	ack, err := s.do(ctx, EventSendReaction, map[string]any{"table_id": tableID, "emoji": emoji})
	if err != nil {
		return models.Reaction{}, err
	}
	var out reactionAck
	if err := ack.Decode(&out); err != nil {
		return models.Reaction{}, fmt.Errorf("decode reaction ack: %w", err)
	}
	return out.Reaction, nil
}

// Moderate applies a moderation action to targetUserID at the active table.
// duration is only used for mutes; zero means DefaultMute.
func (s *Service) Moderate(ctx context.Context, targetUserID string, action models.ModerationAction, duration time.Duration) (models.ModerationNotice, error) {
	switch action {
	case models.ModerationMute, models.ModerationUnmute, models.ModerationBan, models.ModerationUnban:
	default:
		return models.ModerationNotice{}, s.refuse(ErrInvalidModeration)
	}
	targetUserID = strings.TrimSpace(targetUserID)
	if targetUserID == "" || targetUserID == s.Me() {
		return models.ModerationNotice{}, s.refuse(ErrInvalidModeration)
	}
	tableID := s.session.ActiveTableID()
	if tableID == "" {
		return models.ModerationNotice{}, s.refuse(ErrNoTable)
	}

	payload := map[string]any{
		"table_id":       tableID,
		"target_user_id": targetUserID,
		"action":         string(action),
	}
	if action == models.ModerationMute {
		payload["duration_seconds"] = int(ClampMute(duration) / time.Second)
	}
	ack, err := s.do(ctx, EventModerate, payload)
	if err != nil {
		return models.ModerationNotice{}, err
	}
	var out moderationAck
	if err := ack.Decode(&out); err != nil {
		return models.ModerationNotice{}, fmt.Errorf("decode moderation ack: %w", err)
	}
	return out.Moderation, nil
}

// ClampMute normalizes a mute duration.
func ClampMute(d time.Duration) time.Duration {
	switch {
	case d == 0:
		return DefaultMute
	case d < MinMute:
		return MinMute
	case d > MaxMute:
		return MaxMute
	}
	return d
}

// AdminCommand runs a privileged command and returns the server's answer.
func (s *Service) AdminCommand(ctx context.Context, command string) (string, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return "", s.refuse(ErrEmptyMessage)
	}
	ack, err := s.do(ctx, EventAdminCommand, map[string]any{"command": command})
	if err != nil {
		return "", err
	}
	var out AdminResultPayload
	if err := ack.Decode(&out); err != nil {
		return "", fmt.Errorf("decode admin ack: %w", err)
	}
	return out.Message, nil
}

func tableOf(ack gate.Ack) (models.Table, error) {
	if ack.Table == nil {
		return models.Table{}, errors.New("ack carried no table")
	}
	return *ack.Table, nil
}
