package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tablesync/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	Event   string
	ID      string
	Payload map[string]any
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (s *recordingSender) Emit(_ context.Context, event, id string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sent{Event: event, ID: id, Payload: payload.(map[string]any)})
	return nil
}

func (s *recordingSender) requests() []sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sent(nil), s.sent...)
}

type recordingSink struct {
	mu   sync.Mutex
	acks []Ack
}

func (s *recordingSink) ApplyAck(_ string, ack Ack) {
	s.mu.Lock()
	s.acks = append(s.acks, ack)
	s.mu.Unlock()
}

func newTestGate(t *testing.T) (*Gate, *recordingSender, *recordingSink, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	sink := &recordingSink{}
	g := New(Config{Timeout: 5 * time.Second}, clock, sink)
	sender := &recordingSender{}
	g.Attach(sender)
	return g, sender, sink, clock
}

func waitSettled(t *testing.T, p *Pending) (Ack, error) {
	t.Helper()
	select {
	case <-p.Done():
		return p.Result()
	case <-time.After(2 * time.Second):
		t.Fatalf("pending %s never settled", p.Event)
		return Ack{}, nil
	}
}

func TestSubmit_NotConnectedFailsWithoutSending(t *testing.T) {
	g := New(DefaultConfig(), clockwork.NewFakeClock(), nil)

	_, err := waitSettled(t, g.Submit(context.Background(), Request{Event: "set_ready"}))

	assert.ErrorIs(t, err, ErrNotConnected)
	assert.False(t, g.Connected())
}

func TestSubmit_TokensAreUnique(t *testing.T) {
	g, sender, _, _ := newTestGate(t)

	const n = 200
	for i := 0; i < n; i++ {
		p := g.Submit(context.Background(), Request{Event: fmt.Sprintf("event_%d", i)})
		g.HandleAck(p.Token, json.RawMessage(`{"ok":true}`))
		_, err := waitSettled(t, p)
		require.NoError(t, err)
	}

	seen := make(map[string]bool, n)
	for _, req := range sender.requests() {
		require.False(t, seen[req.ID], "token %s repeated", req.ID)
		seen[req.ID] = true
		assert.Equal(t, req.ID, req.Payload["action_id"])
	}
	assert.Len(t, seen, n)
}

func TestSubmit_SingleFlightPerClass(t *testing.T) {
	g, sender, _, _ := newTestGate(t)
	ctx := context.Background()

	first := g.Submit(ctx, Request{Event: "set_ready", Payload: map[string]any{"ready": true}})
	second := g.Submit(ctx, Request{Event: "set_ready", Payload: map[string]any{"ready": true}})

	_, err := waitSettled(t, second)
	assert.ErrorIs(t, err, ErrAlreadyPending)
	require.Len(t, sender.requests(), 1)
	assert.True(t, g.InFlight("set_ready"))

	other := g.Submit(ctx, Request{Event: "send_table_chat"})
	assert.Len(t, sender.requests(), 2)

	g.HandleAck(first.Token, json.RawMessage(`{"ok":true,"ready":true}`))
	_, err = waitSettled(t, first)
	require.NoError(t, err)
	assert.False(t, g.InFlight("set_ready"))

	third := g.Submit(ctx, Request{Event: "set_ready"})
	assert.NotEqual(t, first.Token, third.Token)
	assert.Len(t, sender.requests(), 3)

	g.Detach(nil)
	_, err = waitSettled(t, other)
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestSubmit_ExplicitClassSharedAcrossEvents(t *testing.T) {
	g, sender, _, _ := newTestGate(t)
	ctx := context.Background()

	g.Submit(ctx, Request{Event: "join_table", Class: "seat"})
	p := g.Submit(ctx, Request{Event: "leave_table", Class: "seat"})

	_, err := waitSettled(t, p)
	assert.ErrorIs(t, err, ErrAlreadyPending)
	assert.Len(t, sender.requests(), 1)
}

func TestSubmit_TimeoutClearsSlot(t *testing.T) {
	g, _, _, clock := newTestGate(t)
	ctx := context.Background()

	p := g.Submit(ctx, Request{Event: "take_turn_action"})
	clock.Advance(5 * time.Second)

	_, err := waitSettled(t, p)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.False(t, g.InFlight("take_turn_action"))

	// A late ack is ignored.
	g.HandleAck(p.Token, json.RawMessage(`{"ok":true}`))
	_, err = p.Result()
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestSubmit_AckBeforeTimeoutWins(t *testing.T) {
	g, _, _, clock := newTestGate(t)

	p := g.Submit(context.Background(), Request{Event: "join_lobby"})
	clock.Advance(4 * time.Second)
	g.HandleAck(p.Token, json.RawMessage(`{"ok":true}`))
	clock.Advance(2 * time.Second)

	ack, err := waitSettled(t, p)
	require.NoError(t, err)
	assert.True(t, ack.OK)
}

func TestDetach_FailsPendingImmediately(t *testing.T) {
	g, _, _, _ := newTestGate(t)
	ctx := context.Background()

	p := g.Submit(ctx, Request{Event: "set_ready"})
	g.Detach(nil)

	select {
	case <-p.Done():
	default:
		t.Fatal("pending request not settled by detach")
	}
	_, err := p.Result()
	assert.ErrorIs(t, err, ErrDisconnected)
	assert.False(t, g.InFlight("set_ready"))

	_, err = waitSettled(t, g.Submit(ctx, Request{Event: "set_ready"}))
	assert.ErrorIs(t, err, ErrNotConnected)

	sender := &recordingSender{}
	g.Attach(sender)
	next := g.Submit(ctx, Request{Event: "set_ready"})
	assert.Len(t, sender.requests(), 1)
	g.HandleAck(next.Token, json.RawMessage(`{"ok":true}`))
	_, err = waitSettled(t, next)
	assert.NoError(t, err)
}

func TestHandleAck_RejectionCarriesServerMessage(t *testing.T) {
	g, _, sink, _ := newTestGate(t)

	p := g.Submit(context.Background(), Request{Event: "join_table"})
	g.HandleAck(p.Token, json.RawMessage(`{"ok":false,"error":"table is full"}`))

	_, err := waitSettled(t, p)
	rej, ok := IsRejected(err)
	require.True(t, ok)
	assert.Equal(t, "table is full", rej.Message)
	assert.Equal(t, "join_table", rej.Event)
	assert.Empty(t, sink.acks)
}

func TestHandleAck_RejectionWithStringMessage(t *testing.T) {
	g, _, _, _ := newTestGate(t)

	p := g.Submit(context.Background(), Request{Event: "admin_command"})
	g.HandleAck(p.Token, json.RawMessage(`{"ok":false,"message":"command is required"}`))

	_, err := waitSettled(t, p)
	rej, ok := IsRejected(err)
	require.True(t, ok)
	assert.Equal(t, "command is required", rej.Message)
}

func TestHandleAck_EmbeddedSnapshotReachesSinkBeforeCaller(t *testing.T) {
	g, _, sink, _ := newTestGate(t)

	p := g.Submit(context.Background(), Request{Event: "join_table"})
	g.HandleAck(p.Token, json.RawMessage(`{"ok":true,"table":{"id":"t1","name":"Main","owner_id":"u9","max_players":8,"players":["u9","u1"]}}`))

	ack, err := waitSettled(t, p)
	require.NoError(t, err)
	require.NotNil(t, ack.Table)
	assert.Equal(t, []string{"u9", "u1"}, ack.Table.Players)

	require.Len(t, sink.acks, 1)
	assert.Equal(t, "t1", sink.acks[0].Table.ID)
}

func TestHandleAck_EmbeddedGameState(t *testing.T) {
	g, _, _, _ := newTestGate(t)

	p := g.Submit(context.Background(), Request{Event: "take_turn_action"})
	g.HandleAck(p.Token, json.RawMessage(`{"ok":true,"duplicate":true,"state":{"table_id":"t1","status":"active","available_actions":["hit","stand"]}}`))

	ack, err := waitSettled(t, p)
	require.NoError(t, err)
	assert.True(t, ack.Duplicate)
	require.NotNil(t, ack.State)
	assert.Equal(t, models.GameStatusActive, ack.State.Status)
	assert.True(t, ack.State.Allows(models.TurnActionHit))
}

func TestSubmit_EmitFailureIsConnectivityError(t *testing.T) {
	g, sender, _, _ := newTestGate(t)
	sender.err = errors.New("broken pipe")

	p := g.Submit(context.Background(), Request{Event: "send_table_reaction"})

	_, err := waitSettled(t, p)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.False(t, g.InFlight("send_table_reaction"))
}

func TestWait_ContextEndsBeforeAck(t *testing.T) {
	g, _, _, _ := newTestGate(t)
	ctx, cancel := context.WithCancel(context.Background())

	p := g.Submit(ctx, Request{Event: "sync_state"})
	cancel()

	_, err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, g.InFlight("sync_state"))
}

func TestAttach_FailsStalePending(t *testing.T) {
	g, _, _, _ := newTestGate(t)

	p := g.Submit(context.Background(), Request{Event: "set_ready"})
	g.Attach(&recordingSender{})

	_, err := waitSettled(t, p)
	assert.ErrorIs(t, err, ErrDisconnected)
}
