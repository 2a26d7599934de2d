package turnclock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tablesync/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type source struct {
	mu    sync.Mutex
	state *models.GameState
}

func (s *source) set(g *models.GameState) {
	s.mu.Lock()
	s.state = g
	s.mu.Unlock()
}

func (s *source) ActiveGameState() (models.GameState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return models.GameState{}, false
	}
	return *s.state, true
}

func activeWithDeadline(deadline time.Time) *models.GameState {
	return &models.GameState{TableID: "T", Status: models.GameStatusActive, TurnDeadline: &deadline}
}

func TestSecondsRemaining(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	assert.Equal(t, 5, SecondsRemaining(now.Add(5*time.Second), now))
	assert.Equal(t, 5, SecondsRemaining(now.Add(4001*time.Millisecond), now))
	assert.Equal(t, 1, SecondsRemaining(now.Add(time.Millisecond), now))
	assert.Equal(t, 0, SecondsRemaining(now, now))
	assert.Equal(t, 0, SecondsRemaining(now.Add(-time.Hour), now))
}

func TestRemaining_CountsDownMonotonically(t *testing.T) {
	clock := clockwork.NewFakeClock()
	src := &source{}
	src.set(activeWithDeadline(clock.Now().Add(5 * time.Second)))
	c := New(clock, src)

	assert.Equal(t, 5, c.Remaining())

	prev := c.Remaining()
	for i := 0; i < 30; i++ {
		clock.Advance(250 * time.Millisecond)
		r := c.Remaining()
		assert.LessOrEqual(t, r, prev)
		prev = r
	}
	assert.Equal(t, 0, c.Remaining())
}

func TestRemaining_ZeroWithoutActiveDeadline(t *testing.T) {
	clock := clockwork.NewFakeClock()
	src := &source{}
	c := New(clock, src)
	assert.Equal(t, 0, c.Remaining())

	deadline := clock.Now().Add(time.Minute)
	src.set(&models.GameState{TableID: "T", Status: models.GameStatusEnded, TurnDeadline: &deadline})
	assert.Equal(t, 0, c.Remaining())

	src.set(&models.GameState{TableID: "T", Status: models.GameStatusActive})
	assert.Equal(t, 0, c.Remaining())
}

func TestSync_TicksAndStopsAtZero(t *testing.T) {
	clock := clockwork.NewFakeClock()
	src := &source{}
	src.set(activeWithDeadline(clock.Now().Add(3 * time.Second)))
	c := New(clock, src)

	ticks := make(chan int, 16)
	c.OnTick(func(r int) { ticks <- r })

	c.Sync()
	require.True(t, c.Running())
	assert.Equal(t, 3, <-ticks)

	for _, want := range []int{2, 1, 0} {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		cancel()
		clock.Advance(time.Second)
		select {
		case got := <-ticks:
			assert.Equal(t, want, got)
		case <-time.After(time.Second):
			t.Fatalf("no tick for %d", want)
		}
	}
	assert.False(t, c.Running())
}

func TestSync_IdleTableHasNoTicker(t *testing.T) {
	clock := clockwork.NewFakeClock()
	src := &source{}
	src.set(&models.GameState{TableID: "T", Status: models.GameStatusIdle})
	c := New(clock, src)

	c.Sync()
	assert.False(t, c.Running())
}

func TestSync_NewSnapshotOverridesAndEndStops(t *testing.T) {
	clock := clockwork.NewFakeClock()
	src := &source{}
	src.set(activeWithDeadline(clock.Now().Add(10 * time.Second)))
	c := New(clock, src)
	var last int
	c.OnTick(func(r int) { last = r })

	c.Sync()
	assert.Equal(t, 10, last)

	src.set(activeWithDeadline(clock.Now().Add(30 * time.Second)))
	c.Sync()
	assert.Equal(t, 30, last)
	assert.True(t, c.Running())

	src.set(&models.GameState{TableID: "T", Status: models.GameStatusEnded})
	c.Sync()
	assert.Equal(t, 0, last)
	assert.False(t, c.Running())
}

func TestStop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	src := &source{}
	src.set(activeWithDeadline(clock.Now().Add(10 * time.Second)))
	c := New(clock, src)

	c.Sync()
	require.True(t, c.Running())
	c.Stop()
	assert.False(t, c.Running())
	c.Stop()
}
