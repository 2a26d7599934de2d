package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tablesync/go/internal/realtime/channel"
	"github.com/mcdev12/tablesync/go/internal/realtime/notice"
	"github.com/rs/zerolog/log"
)

// ErrReconnectExhausted is recorded when every reconnect attempt failed. The
// manager stays offline until Connect is called again.
var ErrReconnectExhausted = errors.New("reconnect attempts exhausted")

// ErrNoToken is returned by Connect when called without a token.
var ErrNoToken = errors.New("auth token required")

// Listener is told about lifecycle transitions. OnConnected runs for every
// successful dial, including reconnects, before any other caller can use the
// new channel. OnDisconnected runs after the connected flag is cleared.
type Listener interface {
	OnConnected(ctx context.Context, conn channel.Conn)
	OnDisconnected(err error)
}

// Config holds reconnect settings.
type Config struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxAttempts    int
	DialTimeout    time.Duration
}

// DefaultConfig returns default reconnect settings.
func DefaultConfig() Config {
	return Config{
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		MaxAttempts:    10,
		DialTimeout:    10 * time.Second,
	}
}

// Manager owns the transport session: connect, reconnect with backoff and
// the connected flag.
type Manager struct {
	mu sync.Mutex

	config  Config
	clock   clockwork.Clock
	dialer  channel.Dialer
	router  channel.Router
	notices *notice.Bus

	listeners []Listener

	token     string
	conn      channel.Conn
	gen       uint64
	deadGen   uint64
	connected bool
	stopped   bool
	dialing   bool
	dialDone  chan struct{}
	attempts  int
	retry     clockwork.Timer
	lastErr   error
}

// NewManager creates a manager. Inbound acks and pushes are forwarded to
// router.
func NewManager(config Config, clock clockwork.Clock, dialer channel.Dialer, router channel.Router, notices *notice.Bus) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	def := DefaultConfig()
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = def.InitialBackoff
	}
	if config.MaxBackoff < config.InitialBackoff {
		config.MaxBackoff = config.InitialBackoff
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = def.DialTimeout
	}
	return &Manager{
		config:  config,
		clock:   clock,
		dialer:  dialer,
		router:  router,
		notices: notices,
		stopped: true,
	}
}

// AddListener registers l. Listeners are called in registration order.
func (m *Manager) AddListener(l Listener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}

// Connect authenticates with token and opens the channel. An existing
// channel is closed first so the new token takes effect. A dial already in
// flight is waited for and then superseded. If the dial fails the manager
// keeps retrying in the background and the dial error is returned.
func (m *Manager) Connect(ctx context.Context, token string) error {
	if token == "" {
		return ErrNoToken
	}

	m.mu.Lock()
	m.token = token
	m.stopped = false
	m.attempts = 0
	m.lastErr = nil
	m.stopRetryLocked()
	prev, listeners := m.dropLocked()
	m.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
		notify(listeners, channel.ErrClosed)
	}

	return m.dial(ctx)
}

// Disconnect closes the channel and stops reconnecting.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.stopped = true
	m.stopRetryLocked()
	prev, listeners := m.dropLocked()
	m.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
		notify(listeners, channel.ErrClosed)
		log.Info().Msg("disconnected")
	}
}

// SetToken replaces the token used by future reconnects. The open channel,
// if any, is kept. An empty token is ignored.
func (m *Manager) SetToken(token string) {
	if token == "" {
		return
	}
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
}

// Connected reports whether a channel is open.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Reconnecting reports whether a reconnect is scheduled or dialing.
func (m *Manager) Reconnecting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retry != nil || (m.dialing && m.attempts > 0)
}

// Attempts returns the number of reconnect attempts since the last success.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// LastError returns the most recent dial failure, or ErrReconnectExhausted
// once the manager gave up.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Manager) dial(ctx context.Context) error {
	m.mu.Lock()
	for m.dialing {
		inflight := m.dialDone
		m.mu.Unlock()
		select {
		case <-inflight:
		case <-ctx.Done():
			return ctx.Err()
		}
		m.mu.Lock()
	}
	if m.stopped || m.connected {
		m.mu.Unlock()
		return nil
	}
	m.dialing = true
	m.dialDone = make(chan struct{})
	done := m.dialDone
	m.gen++
	gen := m.gen
	token := m.token
	m.mu.Unlock()

	conn, err := m.dialer.Dial(ctx, token, &connHandler{m: m, gen: gen})

	m.mu.Lock()
	m.dialing = false
	close(done)
	if m.stopped || gen != m.gen {
		// Superseded by Connect or Disconnect while dialing.
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return nil
	}
	if err == nil && m.deadGen == gen {
		err = channel.ErrClosed
	}
	if err != nil {
		m.lastErr = err
		m.mu.Unlock()
		log.Warn().Err(err).Int("attempt", m.Attempts()).Msg("channel dial failed")
		m.scheduleReconnect()
		return fmt.Errorf("connect: %w", err)
	}

	recovered := m.attempts > 0
	m.conn = conn
	m.connected = true
	m.attempts = 0
	m.lastErr = nil
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	log.Info().Str("connection_id", conn.ID()).Bool("reconnect", recovered).Msg("connected")
	if recovered && m.notices != nil {
		m.notices.Info("connection", "Reconnected")
	}
	for _, l := range listeners {
		l.OnConnected(ctx, conn)
	}
	return nil
}

// onClosed handles the end of the channel opened by dial generation gen.
func (m *Manager) onClosed(gen uint64, err error) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	if !m.connected {
		// Closed before dial returned.
		m.deadGen = gen
		m.mu.Unlock()
		return
	}
	m.connected = false
	m.conn = nil
	stopped := m.stopped
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	log.Warn().Err(err).Msg("channel lost")
	notify(listeners, err)

	if stopped {
		return
	}
	if m.notices != nil {
		m.notices.Warn("connection", "Connection lost, reconnecting")
	}
	m.scheduleReconnect()
}

// scheduleReconnect arms a single retry timer. Calls while a timer is armed,
// a dial is running or the channel is up are no-ops.
func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	if m.stopped || m.connected || m.dialing || m.retry != nil {
		m.mu.Unlock()
		return
	}
	if m.attempts >= m.config.MaxAttempts {
		m.lastErr = ErrReconnectExhausted
		attempts := m.attempts
		m.mu.Unlock()

		log.Error().Int("attempts", attempts).Msg("giving up on reconnect")
		if m.notices != nil {
			m.notices.Error("connection", fmt.Sprintf("Unable to reconnect after %d attempts; you are offline", attempts))
		}
		return
	}

	m.attempts++
	attempt := m.attempts
	delay := Backoff(m.config.InitialBackoff, m.config.MaxBackoff, attempt)
	m.retry = m.clock.AfterFunc(delay, func() {
		m.mu.Lock()
		m.retry = nil
		m.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), m.config.DialTimeout)
		defer cancel()
		_ = m.dial(ctx)
	})
	m.mu.Unlock()

	log.Info().
		Int("attempt", attempt).
		Dur("delay", delay).
		Msg("reconnect scheduled")
}

func (m *Manager) stopRetryLocked() {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
}

// dropLocked forgets the current channel, clearing the connected flag. It
// returns the channel and the listeners to notify, if one was open.
func (m *Manager) dropLocked() (channel.Conn, []Listener) {
	m.gen++
	if !m.connected {
		return nil, nil
	}
	prev := m.conn
	m.conn = nil
	m.connected = false
	return prev, append([]Listener(nil), m.listeners...)
}

func notify(listeners []Listener, err error) {
	for _, l := range listeners {
		l.OnDisconnected(err)
	}
}

// connHandler binds inbound frames to the dial generation that opened them
// so a late close from an old channel cannot tear down a newer one.
type connHandler struct {
	m   *Manager
	gen uint64
}

func (h *connHandler) HandleAck(id string, data json.RawMessage) {
	if h.m.router != nil && h.current() {
		h.m.router.HandleAck(id, data)
	}
}

func (h *connHandler) HandlePush(event string, data json.RawMessage) {
	if h.m.router != nil && h.current() {
		h.m.router.HandlePush(event, data)
	}
}

func (h *connHandler) current() bool {
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	return h.gen == h.m.gen
}

func (h *connHandler) HandleClose(err error) {
	h.m.onClosed(h.gen, err)
}
