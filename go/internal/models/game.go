package models

import (
	"slices"
	"time"
)

// GameStatus is the lifecycle of a table round.
type GameStatus string

const (
	GameStatusIdle   GameStatus = "idle"
	GameStatusActive GameStatus = "active"
	GameStatusEnded  GameStatus = "ended"
)

// TurnAction is a move the acting participant may submit.
type TurnAction string

const (
	TurnActionHit        TurnAction = "hit"
	TurnActionStand      TurnAction = "stand"
	TurnActionDoubleDown TurnAction = "double_down"
	TurnActionSplit      TurnAction = "split"
	TurnActionSurrender  TurnAction = "surrender"
	TurnActionInsurance  TurnAction = "insurance"
)

// Valid reports whether a is one of the known turn actions.
func (a TurnAction) Valid() bool {
	switch a {
	case TurnActionHit, TurnActionStand, TurnActionDoubleDown,
		TurnActionSplit, TurnActionSurrender, TurnActionInsurance:
		return true
	}
	return false
}

// Hand is one hand held by a participant.
type Hand struct {
	HandID      string   `json:"hand_id"`
	Cards       []string `json:"cards"`
	Score       int      `json:"score"`
	Bet         float64  `json:"bet"`
	Status      string   `json:"status"`
	Result      *string  `json:"result,omitempty"`
	Payout      *float64 `json:"payout,omitempty"`
	IsSplitHand bool     `json:"is_split_hand"`
	DoubledDown bool     `json:"doubled_down"`
}

// PlayerState is a participant's share of a round.
type PlayerState struct {
	UserID           string   `json:"user_id"`
	Hands            []Hand   `json:"hands"`
	ActiveHandIndex  int      `json:"active_hand_index"`
	Completed        bool     `json:"completed"`
	BaseBet          float64  `json:"base_bet"`
	BankrollAtStart  *float64 `json:"bankroll_at_start,omitempty"`
	CommittedBet     float64  `json:"committed_bet"`
	TotalPayout      *float64 `json:"total_payout,omitempty"`
	InsuranceBet     float64  `json:"insurance_bet"`
	InsuranceDecided bool     `json:"insurance_decided"`
	InsurancePayout  *float64 `json:"insurance_payout,omitempty"`
}

// GameState is the authoritative round snapshot for one table.
type GameState struct {
	TableID           string                 `json:"table_id"`
	RoundID           *string                `json:"round_id,omitempty"`
	Status            GameStatus             `json:"status"`
	Phase             string                 `json:"phase,omitempty"`
	Players           []string               `json:"players,omitempty"`
	TurnIndex         *int                   `json:"turn_index,omitempty"`
	CurrentTurnUserID *string                `json:"current_turn_user_id,omitempty"`
	CurrentHandIndex  *int                   `json:"current_hand_index,omitempty"`
	TurnSeconds       int                    `json:"turn_seconds,omitempty"`
	TurnDeadline      *time.Time             `json:"turn_deadline,omitempty"`
	AvailableActions  []TurnAction           `json:"available_actions,omitempty"`
	RecommendedAction *TurnAction            `json:"recommended_action,omitempty"`
	HandNumber        int                    `json:"hand_number,omitempty"`
	DealerCards       []string               `json:"dealer_cards,omitempty"`
	DealerScore       *int                   `json:"dealer_score,omitempty"`
	DealerHidden      bool                   `json:"dealer_hidden,omitempty"`
	PlayerStates      map[string]PlayerState `json:"player_states,omitempty"`
	LastAction        map[string]any         `json:"last_action,omitempty"`
	ActionCount       int                    `json:"action_count,omitempty"`
	StartedAt         *time.Time             `json:"started_at,omitempty"`
	UpdatedAt         *time.Time             `json:"updated_at,omitempty"`
}

// IsActive reports whether a round is in progress.
func (g GameState) IsActive() bool {
	return g.Status == GameStatusActive
}

// IsTurnOf reports whether it is userID's turn in an active round.
func (g GameState) IsTurnOf(userID string) bool {
	return g.IsActive() && g.CurrentTurnUserID != nil && *g.CurrentTurnUserID == userID
}

// Allows reports whether action is currently legal for the acting participant.
func (g GameState) Allows(action TurnAction) bool {
	return slices.Contains(g.AvailableActions, action)
}
