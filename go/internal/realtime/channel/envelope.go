package channel

import (
	"context"
	"encoding/json"
	"errors"
)

// Kind distinguishes the three frame types on the channel.
type Kind string

const (
	KindRequest Kind = "request"
	KindAck     Kind = "ack"
	KindPush    Kind = "push"
)

// Envelope is the JSON frame exchanged with the server.
type Envelope struct {
	Kind  Kind            `json:"kind"`
	Event string          `json:"event,omitempty"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

var (
	ErrClosed       = errors.New("channel closed")
	ErrUnauthorized = errors.New("channel handshake rejected")
)

// Router receives inbound frames.
type Router interface {
	HandleAck(id string, data json.RawMessage)
	HandlePush(event string, data json.RawMessage)
}

// Handler is a Router that is also told when the channel ends. HandleClose
// is called exactly once per connection.
type Handler interface {
	Router
	HandleClose(err error)
}

// Conn is an open duplex channel.
type Conn interface {
	ID() string
	Emit(ctx context.Context, event, id string, payload any) error
	Close() error
}

// Dialer opens a channel authenticated with token.
type Dialer interface {
	Dial(ctx context.Context, token string, handler Handler) (Conn, error)
}

// NewRequest builds a request frame.
func NewRequest(event, id string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Kind: KindRequest, Event: event, ID: id, Data: data}, nil
}

// Route delivers an inbound frame to r. It reports false for frames a
// client should never receive.
func Route(r Router, env Envelope) bool {
	switch env.Kind {
	case KindAck:
		r.HandleAck(env.ID, env.Data)
	case KindPush:
		r.HandlePush(env.Event, env.Data)
	default:
		return false
	}
	return true
}
