package session

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tablesync/go/internal/models"
	"github.com/mcdev12/tablesync/go/internal/realtime/gate"
	"github.com/mcdev12/tablesync/go/internal/realtime/notice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

type fakeRequester struct {
	reqs []gate.Request
	ack  string
	err  error
}

func (f *fakeRequester) Do(_ context.Context, req gate.Request) (gate.Ack, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return gate.Ack{}, f.err
	}
	return gate.ParseAck(json.RawMessage(f.ack))
}

func TestPlacement_SpectatorIsActiveWithoutSeat(t *testing.T) {
	assert.Equal(t, "B", Placement{SpectatorTableID: "B"}.Active())
	assert.Equal(t, "A", Placement{TableID: "A", SpectatorTableID: "B"}.Active())
	assert.Equal(t, "", Placement{}.Active())
}

func TestRecover_ServerAnswerWinsOverHint(t *testing.T) {
	hints := &MemoryHints{}
	require.NoError(t, hints.Save(context.Background(), Hints{TableID: "A"}))
	s := New(hints)
	req := &fakeRequester{ack: `{"ok":true,"table_id":null,"spectator_table_id":"B"}`}
	c := NewCoordinator(s, req, nil)

	_, err := c.Recover(context.Background())
	require.NoError(t, err)

	require.Len(t, req.reqs, 1)
	assert.Equal(t, EventSyncState, req.reqs[0].Event)
	assert.Equal(t, "A", req.reqs[0].Payload["preferred_table_id"])
	assert.Equal(t, "auto", req.reqs[0].Payload["preferred_mode"])

	assert.Equal(t, "B", s.ActiveTableID())
	assert.Equal(t, "", s.TableID())
	assert.Equal(t, "B", s.SpectatorTableID())

	stored, err := hints.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Hints{SpectatorTableID: "B"}, stored)
}

func TestRecover_SpectatorHintAsksForSpectatorMode(t *testing.T) {
	hints := &MemoryHints{}
	require.NoError(t, hints.Save(context.Background(), Hints{SpectatorTableID: "S"}))
	req := &fakeRequester{ack: `{"ok":true,"table_id":null,"spectator_table_id":"S"}`}

	_, err := NewCoordinator(New(hints), req, nil).Recover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "S", req.reqs[0].Payload["preferred_table_id"])
	assert.Equal(t, "spectator", req.reqs[0].Payload["preferred_mode"])
}

func TestRecover_NoHintSendsNoTable(t *testing.T) {
	req := &fakeRequester{ack: `{"ok":true,"table_id":"T","spectator_table_id":null}`}
	s := New(nil)

	_, err := NewCoordinator(s, req, nil).Recover(context.Background())
	require.NoError(t, err)
	_, has := req.reqs[0].Payload["preferred_table_id"]
	assert.False(t, has)
	assert.Equal(t, "T", s.ActiveTableID())
}

func TestRecover_FailureKeepsSession(t *testing.T) {
	s := New(nil)
	s.Seat("A")
	req := &fakeRequester{err: gate.ErrTimeout}

	_, err := NewCoordinator(s, req, nil).Recover(context.Background())
	require.ErrorIs(t, err, gate.ErrTimeout)
	assert.Equal(t, "A", s.TableID())
}

func TestApplyRestore_NoticeOnlyWhenRecovered(t *testing.T) {
	bus := notice.NewBus(clockwork.NewFakeClock())
	s := New(nil)
	c := NewCoordinator(s, &fakeRequester{}, bus)

	c.ApplyRestore(models.SessionPlacement{TableID: nil})
	_, ok := bus.Last()
	assert.False(t, ok)

	c.ApplyRestore(models.SessionPlacement{TableID: strPtr("T1"), Recovered: true})
	n, ok := bus.Last()
	require.True(t, ok)
	assert.Contains(t, n.Text, "T1")
	assert.Equal(t, "T1", s.TableID())
}

func TestApplyRestore_OverwritesSpectator(t *testing.T) {
	s := New(nil)
	s.Seat("A")
	s.Spectate("B")

	NewCoordinator(s, &fakeRequester{}, nil).ApplyRestore(models.SessionPlacement{TableID: strPtr("C")})

	assert.Equal(t, Placement{TableID: "C"}, s.Placement())
}

func TestSession_ClearOnlyMatchingTable(t *testing.T) {
	s := New(nil)
	s.Seat("A")
	s.Spectate("B")

	s.Unseat("X")
	s.StopSpectating("X")
	assert.Equal(t, Placement{TableID: "A", SpectatorTableID: "B"}, s.Placement())

	s.Forget("B")
	assert.Equal(t, Placement{TableID: "A"}, s.Placement())

	s.Unseat("")
	assert.Equal(t, Placement{}, s.Placement())
}

func TestSession_OnChangeFiresOnlyOnChange(t *testing.T) {
	s := New(nil)
	var seen []Placement
	s.OnChange(func(p Placement) { seen = append(seen, p) })

	s.Seat("A")
	s.Seat("A")
	s.Spectate("A")

	assert.Equal(t, []Placement{{TableID: "A"}, {TableID: "A", SpectatorTableID: "A"}}, seen)
}

type failingHints struct{}

func (failingHints) Load(context.Context) (Hints, error) { return Hints{}, errors.New("boom") }
func (failingHints) Save(context.Context, Hints) error   { return errors.New("boom") }

func TestSession_HintFailuresFallBackToMemory(t *testing.T) {
	s := New(failingHints{})
	s.Seat("A")

	tableID, mode := s.Preference(context.Background())
	assert.Equal(t, "A", tableID)
	assert.Equal(t, ModeAuto, mode)
}

func TestFileHints_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "hints.yaml")
	store := NewFileHints(path)

	h, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Hints{}, h)

	require.NoError(t, store.Save(context.Background(), Hints{TableID: "A", SpectatorTableID: "B"}))

	h, err = NewFileHints(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Hints{TableID: "A", SpectatorTableID: "B"}, h)
}
