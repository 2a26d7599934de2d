package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Config holds configuration for the WebSocket channel
type Config struct {
	URL              string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	MaxMessageSize   int64
	ReadBufferSize   int
	WriteBufferSize  int
	SendBuffer       int
}

// DefaultConfig returns default WebSocket configuration
func DefaultConfig(serverURL string) Config {
	return Config{
		URL:              serverURL,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingInterval:     25 * time.Second,
		MaxMessageSize:   1 << 20, // game-state snapshots with full hands
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		SendBuffer:       64,
	}
}

// WebSocketDialer opens channels over gorilla/websocket
type WebSocketDialer struct {
	config Config
	dialer *websocket.Dialer
}

// NewWebSocketDialer creates a dialer for config.URL
func NewWebSocketDialer(config Config) *WebSocketDialer {
	return &WebSocketDialer{
		config: config,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
			ReadBufferSize:   config.ReadBufferSize,
			WriteBufferSize:  config.WriteBufferSize,
		},
	}
}

// Dial connects and authenticates. The token is sent both as a bearer
// header and as the token query parameter.
func (d *WebSocketDialer) Dial(ctx context.Context, token string, handler Handler) (Conn, error) {
	u, err := url.Parse(d.config.URL)
	if err != nil {
		return nil, fmt.Errorf("parse channel url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	ws, resp, err := d.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", u.Host, err)
	}

	c := &wsConn{
		id:      uuid.New().String(),
		ws:      ws,
		send:    make(chan []byte, d.config.SendBuffer),
		done:    make(chan struct{}),
		handler: handler,
		config:  d.config,
	}

	go c.writePump()
	go c.readPump()

	log.Info().
		Str("connection_id", c.id).
		Str("host", u.Host).
		Msg("channel connected")

	return c, nil
}

// wsConn is one WebSocket session with the server
type wsConn struct {
	id      string
	ws      *websocket.Conn
	send    chan []byte
	done    chan struct{}
	handler Handler
	config  Config

	closeOnce sync.Once
}

func (c *wsConn) ID() string { return c.id }

// Emit queues a request frame for the write pump
func (c *wsConn) Emit(ctx context.Context, event, id string, payload any) error {
	env, err := NewRequest(event, id, payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", event, err)
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the session locally
func (c *wsConn) Close() error {
	c.shutdown(ErrClosed)
	return nil
}

func (c *wsConn) shutdown(cause error) {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		_ = c.ws.Close()

		log.Info().
			Str("connection_id", c.id).
			AnErr("cause", cause).
			Msg("channel closed")

		c.handler.HandleClose(cause)
	})
}

// writePump handles sending frames to the server
func (c *wsConn) writePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.id).
					Msg("failed to write frame")
				c.shutdown(err)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.id).
					Msg("failed to send ping")
				c.shutdown(err)
				return
			}
		}
	}
}

// readPump handles frames coming from the server
func (c *wsConn) readPump() {
	c.ws.SetReadLimit(c.config.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				// closed locally
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warn().
						Err(err).
						Str("connection_id", c.id).
						Msg("unexpected channel close")
				}
			}
			c.shutdown(err)
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			log.Warn().
				Err(err).
				Str("connection_id", c.id).
				Msg("dropping malformed frame")
			continue
		}
		if !Route(c.handler, env) {
			log.Debug().
				Str("connection_id", c.id).
				Str("kind", string(env.Kind)).
				Msg("ignoring frame")
		}
	}
}
