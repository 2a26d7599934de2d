package lobbyapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mcdev12/tablesync/go/clients"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"not authenticated"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"u1","email":"a@example.com","username":"alice","balance":250.5,"role":"user"}`))
	})
	mux.HandleFunc("GET /api/lobby/tables", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"T","name":"Main","owner_id":"o","max_players":8,"is_private":false,"players":["o"]}]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGetMe(t *testing.T) {
	srv := newServer(t)
	c := NewLobbyApiClient(srv.URL+"/api", "tok")

	user, err := c.GetMe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	p := user.Profile()
	assert.Equal(t, "u1", p.UserID)
	require.NotNil(t, p.Balance)
	assert.Equal(t, 250.5, *p.Balance)
}

func TestGetMe_Unauthorized(t *testing.T) {
	srv := newServer(t)
	c := NewLobbyApiClient(srv.URL+"/api", "wrong")

	_, err := c.GetMe(context.Background())
	var statusErr *clients.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
}

func TestGetTables(t *testing.T) {
	srv := newServer(t)
	c := NewLobbyApiClient(srv.URL+"/api", "tok")

	tables, err := c.GetTables(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "T", tables[0].ID)
	assert.Equal(t, []string{"o"}, tables[0].Players)
}
