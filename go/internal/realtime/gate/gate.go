package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const DefaultTimeout = 8 * time.Second

// Class groups requests for the one-in-flight rule. Requests of different
// classes may be pending at the same time.
type Class string

// Request is a locally initiated mutating request.
type Request struct {
	Event   string
	Class   Class // defaults to Event
	Payload map[string]any
}

func (r Request) class() Class {
	if r.Class != "" {
		return r.Class
	}
	return Class(r.Event)
}

// Sender emits a named request on the realtime channel.
type Sender interface {
	Emit(ctx context.Context, event, id string, payload any) error
}

// SnapshotSink receives successful acknowledgments before the caller is
// released, so embedded snapshots are visible as soon as Wait returns.
type SnapshotSink interface {
	ApplyAck(event string, ack Ack)
}

// Config holds gate settings.
type Config struct {
	Timeout  time.Duration
	NewToken func() string
}

// DefaultConfig returns the default gate configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:  DefaultTimeout,
		NewToken: uuid.NewString,
	}
}

// Gate serializes mutating requests: one pending request per class, each
// carrying a fresh idempotency token and settled by ack, timeout or
// disconnect.
type Gate struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	timeout  time.Duration
	newToken func() string
	sender   Sender
	byClass  map[Class]*Pending
	byToken  map[string]*Pending
	sink     SnapshotSink
}

// New creates a gate. It starts detached: every Submit fails with
// ErrNotConnected until Attach is called.
func New(config Config, clock clockwork.Clock, sink SnapshotSink) *Gate {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.NewToken == nil {
		config.NewToken = uuid.NewString
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Gate{
		clock:    clock,
		timeout:  config.Timeout,
		newToken: config.NewToken,
		byClass:  make(map[Class]*Pending),
		byToken:  make(map[string]*Pending),
		sink:     sink,
	}
}

// Attach installs the channel requests are sent on. Anything still pending
// from an earlier channel is failed with ErrDisconnected.
func (g *Gate) Attach(sender Sender) {
	g.mu.Lock()
	g.sender = sender
	stale := g.claimAllLocked()
	g.mu.Unlock()

	settleAll(stale, ErrDisconnected)
}

// Detach removes the channel and fails every pending request with err.
func (g *Gate) Detach(err error) {
	if err == nil {
		err = ErrDisconnected
	}
	g.mu.Lock()
	g.sender = nil
	pending := g.claimAllLocked()
	g.mu.Unlock()

	settleAll(pending, err)
}

// Connected reports whether a channel is attached.
func (g *Gate) Connected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sender != nil
}

// InFlight reports whether a request of class is pending.
func (g *Gate) InFlight(class Class) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.byClass[class]
	return ok
}

// Submit sends req and returns its pending result. Local refusals
// (ErrNotConnected, ErrAlreadyPending) come back already settled and nothing
// is sent.
func (g *Gate) Submit(ctx context.Context, req Request) *Pending {
	class := req.class()

	g.mu.Lock()
	if g.sender == nil {
		g.mu.Unlock()
		return failed(req.Event, class, ErrNotConnected)
	}
	if _, busy := g.byClass[class]; busy {
		g.mu.Unlock()
		log.Debug().Str("event", req.Event).Str("class", string(class)).Msg("request already in flight")
		return failed(req.Event, class, ErrAlreadyPending)
	}

	token := g.newToken()
	p := newPending(token, req.Event, class, g.clock.Now().Add(g.timeout))
	g.byClass[class] = p
	g.byToken[token] = p
	p.timer = g.clock.AfterFunc(g.timeout, func() { g.expire(token) })
	sender := g.sender
	g.mu.Unlock()

	payload := make(map[string]any, len(req.Payload)+1)
	maps.Copy(payload, req.Payload)
	payload["action_id"] = token

	log.Debug().
		Str("event", req.Event).
		Str("action_id", token).
		Msg("submitting request")

	if err := sender.Emit(ctx, req.Event, token, payload); err != nil {
		if claimed := g.claim(token); claimed != nil {
			claimed.finish(Ack{}, fmt.Errorf("%w: %v", ErrNotConnected, err))
		}
	}
	return p
}

// Do submits req and waits for the outcome.
func (g *Gate) Do(ctx context.Context, req Request) (Ack, error) {
	return g.Submit(ctx, req).Wait(ctx)
}

// HandleAck settles the request identified by id.
func (g *Gate) HandleAck(id string, data json.RawMessage) {
	p := g.claim(id)
	if p == nil {
		log.Debug().Str("action_id", id).Msg("ack for unknown or settled request")
		return
	}

	ack, err := ParseAck(data)
	if err != nil {
		p.finish(Ack{}, &RejectedError{Event: p.Event, Message: err.Error()})
		return
	}
	if !ack.OK {
		p.finish(ack, &RejectedError{Event: p.Event, Message: ack.Reason()})
		return
	}

	if g.sink != nil {
		g.sink.ApplyAck(p.Event, ack)
	}
	p.finish(ack, nil)
}

func (g *Gate) expire(token string) {
	p := g.claim(token)
	if p == nil {
		return
	}
	log.Warn().
		Str("event", p.Event).
		Str("action_id", token).
		Msg("request timed out")
	p.finish(Ack{}, ErrTimeout)
}

// claim removes the pending request for token so exactly one settler wins.
func (g *Gate) claim(token string) *Pending {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.byToken[token]
	if !ok {
		return nil
	}
	g.releaseLocked(p)
	return p
}

func (g *Gate) claimAllLocked() []*Pending {
	if len(g.byToken) == 0 {
		return nil
	}
	out := make([]*Pending, 0, len(g.byToken))
	for _, p := range g.byToken {
		out = append(out, p)
	}
	for _, p := range out {
		g.releaseLocked(p)
	}
	return out
}

func (g *Gate) releaseLocked(p *Pending) {
	delete(g.byToken, p.Token)
	if g.byClass[p.Class] == p {
		delete(g.byClass, p.Class)
	}
	if p.timer != nil {
		p.timer.Stop()
	}
}

func settleAll(pending []*Pending, err error) {
	for _, p := range pending {
		log.Debug().Str("event", p.Event).Str("action_id", p.Token).Err(err).Msg("failing pending request")
		p.finish(Ack{}, err)
	}
}
