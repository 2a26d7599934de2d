package gate

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Pending is a request waiting for its acknowledgment. It settles exactly
// once: with the ack, a rejection, a timeout or a disconnect.
type Pending struct {
	Token    string
	Event    string
	Class    Class
	Deadline time.Time

	timer clockwork.Timer
	done  chan struct{}
	ack   Ack
	err   error
}

func newPending(token, event string, class Class, deadline time.Time) *Pending {
	return &Pending{
		Token:    token,
		Event:    event,
		Class:    class,
		Deadline: deadline,
		done:     make(chan struct{}),
	}
}

// failed returns a Pending that is already settled with err.
func failed(event string, class Class, err error) *Pending {
	p := newPending("", event, class, time.Time{})
	p.finish(Ack{}, err)
	return p
}

func (p *Pending) finish(ack Ack, err error) {
	p.ack = ack
	p.err = err
	close(p.done)
}

// Done is closed once the request has settled.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Result returns the outcome. It must only be called after Done is closed.
func (p *Pending) Result() (Ack, error) {
	<-p.done
	return p.ack, p.err
}

// Wait blocks until the request settles or ctx ends. Giving up on ctx does
// not cancel the request; it still settles on its own.
func (p *Pending) Wait(ctx context.Context) (Ack, error) {
	select {
	case <-p.done:
		return p.ack, p.err
	case <-ctx.Done():
		return Ack{}, ctx.Err()
	}
}
