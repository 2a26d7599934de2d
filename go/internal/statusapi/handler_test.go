package statusapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tablesync/go/internal/models"
	"github.com/mcdev12/tablesync/go/internal/realtime/channel/channeltest"
	"github.com/mcdev12/tablesync/go/internal/tableclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*tableclient.Service, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	svc := tableclient.New(tableclient.DefaultConfig(), clock, channeltest.NewDialer(), nil)
	svc.SeedProfile(models.Profile{UserID: "u1", Username: "alice"})
	svc.SeedLobby(models.Lobby{
		Tables:      []models.Table{{ID: "T", Name: "Main", MaxPlayers: 8, Players: []string{"u1"}}},
		OnlineUsers: 2,
	})
	return svc, clock
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	svc, _ := newService(t)
	rec := get(t, NewHandler(svc, nil).Routes(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestGetTables(t *testing.T) {
	svc, _ := newService(t)
	rec := get(t, NewHandler(svc, nil).Routes(), "/api/tables")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var resp TablesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Tables, 1)
	assert.Equal(t, "T", resp.Tables[0].ID)
	assert.Equal(t, 2, resp.OnlineUsers)
}

func TestGetState(t *testing.T) {
	svc, clock := newService(t)
	svc.Session().Seat("T")
	deadline := clock.Now().Add(7 * time.Second)
	turn := "u1"
	svc.Store().UpsertGameState(models.GameState{
		TableID:           "T",
		Status:            models.GameStatusActive,
		CurrentTurnUserID: &turn,
		TurnDeadline:      &deadline,
		AvailableActions:  []models.TurnAction{models.TurnActionHit},
	})

	rec := get(t, NewHandler(svc, nil).Routes(), "/api/state")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Connected)
	assert.Equal(t, "T", resp.ActiveTableID)
	require.NotNil(t, resp.Table)
	require.NotNil(t, resp.GameState)
	assert.Equal(t, 7, resp.SecondsRemaining)
	assert.Equal(t, []models.TurnAction{models.TurnActionHit}, resp.MyAvailableActions)
	svc.TurnClock().Stop()
}

func TestGetTable(t *testing.T) {
	svc, clock := newService(t)
	svc.Caches().Moderation.Replace(models.NewModerationState(models.ModerationUpdate{
		TableID:     "T",
		MutedUsers:  map[string]int{"u2": 30},
		BannedUsers: []string{"u3"},
	}, clock.Now()))
	h := NewHandler(svc, nil).Routes()

	rec := get(t, h, "/api/tables/T")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp TableResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Main", resp.Table.Name)
	assert.Equal(t, []string{"u2"}, resp.Muted)
	assert.Equal(t, []string{"u3"}, resp.Banned)
	assert.NotNil(t, resp.Chat)

	rec = get(t, h, "/api/tables/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTable_Since(t *testing.T) {
	svc, clock := newService(t)
	base := clock.Now().UTC()
	for i, id := range []string{"m1", "m2", "m3"} {
		svc.Caches().Chat.Append("T", models.ChatMessage{ID: id, TableID: "T", Message: id, CreatedAt: base.Add(time.Duration(i) * time.Second)})
	}
	svc.Caches().Reactions.Append("T", models.Reaction{ID: "r1", TableID: "T", Emoji: "🔥", CreatedAt: base})
	h := NewHandler(svc, nil).Routes()

	rec := get(t, h, "/api/tables/T?since="+base.Add(time.Second).Format(time.RFC3339Nano))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp TableResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Chat, 1)
	assert.Equal(t, "m3", resp.Chat[0].ID)
	assert.Empty(t, resp.Reactions)

	rec = get(t, h, "/api/tables/T")
	var all TableResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all.Chat, 3)
	assert.Len(t, all.Reactions, 1)

	rec = get(t, h, "/api/tables/T?since=yesterday")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeRelay struct {
	connected bool
	published uint64
}

func (f fakeRelay) Stats() (uint64, time.Time) { return f.published, time.Time{} }
func (f fakeRelay) Connected() bool            { return f.connected }

func TestHealthDetails(t *testing.T) {
	svc, _ := newService(t)

	rec := get(t, NewHandler(svc, nil).Routes(), "/health/details")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Healthy)
	assert.Nil(t, status.RelayConnected)
	assert.NotEmpty(t, status.Errors)

	require.NoError(t, svc.Connect(context.Background(), "tok"))
	defer svc.Disconnect()

	rec = get(t, NewHandler(svc, fakeRelay{connected: true, published: 3}).Routes(), "/health/details")
	assert.Equal(t, http.StatusOK, rec.Code)
	status = HealthStatus{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Healthy)
	assert.True(t, status.Connected)
	require.NotNil(t, status.RelayConnected)
	assert.True(t, *status.RelayConnected)
	assert.Equal(t, uint64(3), status.EventsPublished)

	rec = get(t, NewHandler(svc, fakeRelay{}).Routes(), "/health/details")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "NATS disconnected")
}
