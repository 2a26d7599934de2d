// Package turnclock derives the seconds left in the current turn from the
// server-issued deadline.
package turnclock

import (
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tablesync/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Source supplies the game state the clock reads.
type Source interface {
	ActiveGameState() (models.GameState, bool)
}

// SecondsRemaining returns max(0, ceil((deadline-now)/1s)).
func SecondsRemaining(deadline, now time.Time) int {
	d := deadline.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

// Clock ticks once a second while the active round has a deadline and
// reports the remaining seconds. It holds no state of its own beyond the
// ticker: every value is recomputed from the source.
type Clock struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	source Source
	stop   chan struct{}
	onTick func(int)
}

// New creates a stopped clock.
func New(clock clockwork.Clock, source Source) *Clock {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Clock{clock: clock, source: source}
}

// OnTick registers fn to receive the remaining seconds on every tick and
// on every Sync.
func (c *Clock) OnTick(fn func(int)) {
	c.mu.Lock()
	c.onTick = fn
	c.mu.Unlock()
}

// Remaining returns the seconds left in the active turn, or 0.
func (c *Clock) Remaining() int {
	deadline, ok := c.deadline()
	if !ok {
		return 0
	}
	return SecondsRemaining(deadline, c.clock.Now())
}

// Running reports whether the ticker is active.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop != nil
}

// Sync re-reads the source, starting or stopping the ticker as needed. Call
// it after every game-state change.
func (c *Clock) Sync() {
	remaining := c.Remaining()

	c.mu.Lock()
	switch {
	case remaining > 0 && c.stop == nil:
		c.stop = make(chan struct{})
		go c.run(c.clock.NewTicker(time.Second), c.stop)
		log.Debug().Int("seconds", remaining).Msg("turn clock started")
	case remaining == 0 && c.stop != nil:
		c.stopLocked()
	}
	fn := c.onTick
	c.mu.Unlock()

	if fn != nil {
		fn(remaining)
	}
}

// Stop halts the ticker.
func (c *Clock) Stop() {
	c.mu.Lock()
	c.stopLocked()
	c.mu.Unlock()
}

func (c *Clock) stopLocked() {
	if c.stop == nil {
		return
	}
	close(c.stop)
	c.stop = nil
	log.Debug().Msg("turn clock stopped")
}

func (c *Clock) run(ticker clockwork.Ticker, stop chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			remaining := c.Remaining()

			c.mu.Lock()
			if c.stop != stop {
				c.mu.Unlock()
				return
			}
			if remaining == 0 {
				c.stopLocked()
			}
			fn := c.onTick
			c.mu.Unlock()

			if fn != nil {
				fn(remaining)
			}
			if remaining == 0 {
				return
			}
		}
	}
}

func (c *Clock) deadline() (time.Time, bool) {
	if c.source == nil {
		return time.Time{}, false
	}
	g, ok := c.source.ActiveGameState()
	if !ok || !g.IsActive() || g.TurnDeadline == nil {
		return time.Time{}, false
	}
	return *g.TurnDeadline, true
}
