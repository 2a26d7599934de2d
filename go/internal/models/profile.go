package models

// Profile is the connected user's identity as reported by the server.
type Profile struct {
	UserID                string   `json:"user_id"`
	Username              string   `json:"username"`
	Role                  string   `json:"role"`
	Balance               *float64 `json:"balance,omitempty"`
	TurnSeconds           int      `json:"turn_seconds,omitempty"`
	ReconnectGraceSeconds int      `json:"reconnect_grace_seconds,omitempty"`
}

// SessionPlacement is the server's answer to "where am I attached".
type SessionPlacement struct {
	TableID          *string `json:"table_id"`
	SpectatorTableID *string `json:"spectator_table_id"`
	Recovered        bool    `json:"recovered,omitempty"`
}
