// Package lobbyapi fetches the initial profile and table list over HTTP
// before the realtime channel is up.
package lobbyapi

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mcdev12/tablesync/go/clients"
	"github.com/mcdev12/tablesync/go/internal/models"
)

type LobbyApiClient struct {
	*clients.BaseClient
}

func NewLobbyApiClient(baseURL, token string) *LobbyApiClient {
	client := &LobbyApiClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}
	if token != "" {
		client.SetBearerToken(token)
	}
	return client
}

// User is the account as returned by the auth API.
type User struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	Username    string  `json:"username"`
	Balance     float64 `json:"balance"`
	Role        string  `json:"role"`
	DisplayName *string `json:"display_name,omitempty"`
}

// Profile converts u into the realtime profile shape.
func (u User) Profile() models.Profile {
	balance := u.Balance
	return models.Profile{
		UserID:   u.ID,
		Username: u.Username,
		Role:     u.Role,
		Balance:  &balance,
	}
}

// GetMe returns the authenticated user.
func (c *LobbyApiClient) GetMe(ctx context.Context) (User, error) {
	body, err := c.Get(ctx, MeEndpoint)
	if err != nil {
		return User{}, err
	}

	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		return User{}, fmt.Errorf("failed to parse user response: %w", err)
	}
	return user, nil
}

// GetTables returns the tables visible to the authenticated user.
func (c *LobbyApiClient) GetTables(ctx context.Context) ([]models.Table, error) {
	body, err := c.Get(ctx, TablesEndpoint)
	if err != nil {
		return nil, err
	}

	var tables []models.Table
	if err := json.Unmarshal(body, &tables); err != nil {
		return nil, fmt.Errorf("failed to parse tables response: %w", err)
	}
	return tables, nil
}
