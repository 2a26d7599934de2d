// Package tableclient wires the realtime components into a single client:
// it routes server pushes into the store and caches, runs session recovery
// on every connect and exposes the user actions.
package tableclient

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tablesync/go/internal/models"
	"github.com/mcdev12/tablesync/go/internal/realtime/channel"
	"github.com/mcdev12/tablesync/go/internal/realtime/connection"
	"github.com/mcdev12/tablesync/go/internal/realtime/gate"
	"github.com/mcdev12/tablesync/go/internal/realtime/notice"
	"github.com/mcdev12/tablesync/go/internal/realtime/session"
	"github.com/mcdev12/tablesync/go/internal/realtime/store"
	"github.com/mcdev12/tablesync/go/internal/realtime/streams"
	"github.com/mcdev12/tablesync/go/internal/realtime/turnclock"
	"github.com/rs/zerolog/log"
)

// Config holds the client settings.
type Config struct {
	Gate          gate.Config
	Connection    connection.Config
	ChatLimit     int
	ReactionLimit int
}

// DefaultConfig returns the default client settings.
func DefaultConfig() Config {
	return Config{
		Gate:          gate.DefaultConfig(),
		Connection:    connection.DefaultConfig(),
		ChatLimit:     streams.DefaultChatLimit,
		ReactionLimit: streams.DefaultReactionLimit,
	}
}

// Service is the client core. Renderers read from Store, TurnClock, Caches
// and Notices and only write through the action methods.
type Service struct {
	clock    clockwork.Clock
	notices  *notice.Bus
	session  *session.Session
	recovery *session.Coordinator
	store    *store.Store
	caches   *streams.Caches
	gate     *gate.Gate
	conn     *connection.Manager
	turns    *turnclock.Clock

	mu         sync.RWMutex
	token      string
	profile    models.Profile
	balance    *float64
	ready      *barrier
	onRecovery func(error)
}

// barrier holds actions back while session recovery runs on a new channel.
type barrier struct {
	ch   chan struct{}
	once sync.Once
}

func newBarrier() *barrier { return &barrier{ch: make(chan struct{})} }

func (b *barrier) release() { b.once.Do(func() { close(b.ch) }) }

// New builds the client. hints may be nil to keep hints in memory only.
func New(config Config, clock clockwork.Clock, dialer channel.Dialer, hints session.HintStore) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if hints == nil {
		hints = &session.MemoryHints{}
	}

	s := &Service{clock: clock, ready: newBarrier()}
	s.ready.release()
	s.notices = notice.NewBus(clock)
	s.session = session.New(hints)
	s.store = store.New(s.session)
	s.caches = streams.NewCaches(config.ChatLimit, config.ReactionLimit)
	s.gate = gate.New(config.Gate, clock, ackSink{s})
	s.recovery = session.NewCoordinator(s.session, s.gate, s.notices)
	s.turns = turnclock.New(clock, s.store)
	s.conn = connection.NewManager(config.Connection, clock, dialer, s, s.notices)
	s.conn.AddListener(lifecycle{s})

	s.store.Subscribe(func(c store.Change) {
		switch c.Kind {
		case store.ChangeGameState, store.ChangeGameStateRemoved, store.ChangeReset:
			s.turns.Sync()
		}
	})
	s.session.OnChange(func(session.Placement) { s.turns.Sync() })
	return s
}

// Connect opens the realtime channel with token. Connecting with a token
// other than the previous one is an account switch: the old channel is
// closed and all server-sourced state is forgotten before dialing.
func (s *Service) Connect(ctx context.Context, token string) error {
	s.mu.Lock()
	switched := s.token != "" && token != "" && token != s.token
	if token != "" {
		s.token = token
	}
	s.mu.Unlock()

	if switched {
		log.Info().Msg("auth token changed, clearing client state")
		s.conn.Disconnect()
		s.Reset()
	}
	return s.conn.Connect(ctx, token)
}

// RefreshToken replaces the token for the same account. The open channel
// is kept and later reconnects authenticate with token.
func (s *Service) RefreshToken(token string) {
	if token == "" {
		return
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	s.conn.SetToken(token)
}

// Disconnect closes the channel and stops reconnecting.
func (s *Service) Disconnect() {
	s.conn.Disconnect()
}

// Reset forgets all server-sourced state and the session placement, e.g.
// after switching accounts.
func (s *Service) Reset() {
	s.store.Reset()
	s.caches.Chat.Reset()
	s.caches.Reactions.Reset()
	s.caches.Moderation.Reset()
	s.session.Apply(models.SessionPlacement{})
	s.mu.Lock()
	s.profile = models.Profile{}
	s.balance = nil
	s.mu.Unlock()
}

func (s *Service) Store() *store.Store             { return s.store }
func (s *Service) Session() *session.Session       { return s.session }
func (s *Service) Caches() *streams.Caches         { return s.caches }
func (s *Service) Notices() *notice.Bus            { return s.notices }
func (s *Service) TurnClock() *turnclock.Clock     { return s.turns }
func (s *Service) Gate() *gate.Gate                { return s.gate }
func (s *Service) Connection() *connection.Manager { return s.conn }
func (s *Service) Recovery() *session.Coordinator  { return s.recovery }
func (s *Service) Clock() clockwork.Clock          { return s.clock }

// OnRecovery registers fn to be called each time session recovery after a
// connect finishes.
func (s *Service) OnRecovery(fn func(error)) {
	s.mu.Lock()
	s.onRecovery = fn
	s.mu.Unlock()
}

// Profile returns the connected user's profile. The balance is kept in its
// own slot since the server announces it separately from the identity.
func (s *Service) Profile() models.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.profile
	p.Balance = s.balance
	return p
}

// Me returns the connected user's id, or "" before the server said hello.
func (s *Service) Me() string {
	return s.Profile().UserID
}

// SeedProfile installs a profile fetched over the bootstrap API.
func (s *Service) SeedProfile(p models.Profile) {
	s.mu.Lock()
	s.profile = p
	s.balance = p.Balance
	s.mu.Unlock()
}

// SeedLobby installs a table list fetched over the bootstrap API.
func (s *Service) SeedLobby(lobby models.Lobby) {
	s.store.ReplaceLobby(lobby)
}

// HandleAck implements channel.Router.
func (s *Service) HandleAck(id string, data json.RawMessage) {
	s.gate.HandleAck(id, data)
}

// HandlePush implements channel.Router.
func (s *Service) HandlePush(event string, data json.RawMessage) {
	if err := s.dispatch(PushType(event), data); err != nil {
		log.Warn().Err(err).Str("event", event).Msg("failed to apply push")
	}
}

// lifecycle orders the per-connect work: stale requests fail first, then
// recovery runs on the new channel.
type lifecycle struct{ s *Service }

func (l lifecycle) OnConnected(_ context.Context, conn channel.Conn) {
	ready := newBarrier()
	l.s.mu.Lock()
	l.s.ready.release()
	l.s.ready = ready
	l.s.mu.Unlock()

	l.s.gate.Attach(conn)
	l.s.turns.Sync()

	// Recovery waits on an ack that is read on the channel's own goroutine.
	go func() {
		_, err := l.s.recovery.Recover(context.Background())
		ready.release()
		if err != nil {
			l.s.report(err)
		}
		l.s.mu.RLock()
		fn := l.s.onRecovery
		l.s.mu.RUnlock()
		if fn != nil {
			fn(err)
		}
	}()
}

func (l lifecycle) OnDisconnected(err error) {
	l.s.mu.RLock()
	l.s.ready.release()
	l.s.mu.RUnlock()
	l.s.gate.Detach(gate.ErrDisconnected)
	l.s.turns.Stop()
	log.Debug().Err(err).Msg("realtime channel detached")
}
