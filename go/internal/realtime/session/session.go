// Package session tracks which table the local user is attached to, as a
// participant and as a spectator, and resolves that placement with the
// server after every connect.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/mcdev12/tablesync/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Mode is the placement the client asks the server to restore.
type Mode string

const (
	ModeAuto      Mode = "auto"
	ModeSpectator Mode = "spectator"
	ModePlayer    Mode = "player"
)

// Placement is a snapshot of the session. Empty strings mean "none".
type Placement struct {
	TableID          string `json:"table_id"`
	SpectatorTableID string `json:"spectator_table_id"`
}

// Active returns the table the user is looking at: the participant table
// if there is one, otherwise the spectated table.
func (p Placement) Active() string {
	if p.TableID != "" {
		return p.TableID
	}
	return p.SpectatorTableID
}

// Session is the local record of where the user is attached. It only
// changes in response to server answers, never from local intent.
type Session struct {
	mu        sync.RWMutex
	placement Placement
	hints     HintStore
	listeners []func(Placement)
}

// New creates an empty session persisted through hints. hints may be nil.
func New(hints HintStore) *Session {
	return &Session{hints: hints}
}

// OnChange registers fn to be called after every change.
func (s *Session) OnChange(fn func(Placement)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Placement returns the current placement.
func (s *Session) Placement() Placement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.placement
}

// ActiveTableID returns the effective active table, or "".
func (s *Session) ActiveTableID() string {
	return s.Placement().Active()
}

// TableID returns the table the user is seated at, or "".
func (s *Session) TableID() string {
	return s.Placement().TableID
}

// SpectatorTableID returns the spectated table, or "".
func (s *Session) SpectatorTableID() string {
	return s.Placement().SpectatorTableID
}

// Apply overwrites the session with a server answer. Nothing from the
// previous placement survives.
func (s *Session) Apply(p models.SessionPlacement) {
	s.set(Placement{
		TableID:          deref(p.TableID),
		SpectatorTableID: deref(p.SpectatorTableID),
	})
}

// Seat records that the server attached the user to tableID as a
// participant.
func (s *Session) Seat(tableID string) {
	s.update(func(p *Placement) { p.TableID = tableID })
}

// Unseat clears the participant table if it is tableID. An empty tableID
// clears whatever table is set.
func (s *Session) Unseat(tableID string) {
	s.update(func(p *Placement) {
		if tableID == "" || p.TableID == tableID {
			p.TableID = ""
		}
	})
}

// Spectate records that the server attached the user to tableID as a
// spectator.
func (s *Session) Spectate(tableID string) {
	s.update(func(p *Placement) { p.SpectatorTableID = tableID })
}

// StopSpectating clears the spectated table if it is tableID. An empty
// tableID clears whatever table is set.
func (s *Session) StopSpectating(tableID string) {
	s.update(func(p *Placement) {
		if tableID == "" || p.SpectatorTableID == tableID {
			p.SpectatorTableID = ""
		}
	})
}

// Forget drops every reference to tableID, used when the table closes.
func (s *Session) Forget(tableID string) {
	s.update(func(p *Placement) {
		if p.TableID == tableID {
			p.TableID = ""
		}
		if p.SpectatorTableID == tableID {
			p.SpectatorTableID = ""
		}
	})
}

// Preference returns the table and mode to ask the server for, based on
// the persisted hints.
func (s *Session) Preference(ctx context.Context) (string, Mode) {
	h := s.loadHints(ctx)
	switch {
	case h.TableID != "":
		return h.TableID, ModeAuto
	case h.SpectatorTableID != "":
		return h.SpectatorTableID, ModeSpectator
	default:
		return "", ModeAuto
	}
}

func (s *Session) loadHints(ctx context.Context) Hints {
	if s.hints == nil {
		return Hints(s.Placement())
	}
	h, err := s.hints.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load session hints")
		return Hints(s.Placement())
	}
	return h
}

func (s *Session) set(next Placement) {
	s.update(func(p *Placement) { *p = next })
}

func (s *Session) update(fn func(*Placement)) {
	s.mu.Lock()
	next := s.placement
	fn(&next)
	changed := next != s.placement
	s.placement = next
	listeners := append([]func(Placement){}, s.listeners...)
	s.mu.Unlock()

	if !changed {
		return
	}
	log.Debug().
		Str("table_id", next.TableID).
		Str("spectator_table_id", next.SpectatorTableID).
		Msg("session placement changed")

	s.persist(next)
	for _, fn := range listeners {
		fn(next)
	}
}

func (s *Session) persist(p Placement) {
	if s.hints == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.hints.Save(ctx, Hints(p)); err != nil {
		log.Warn().Err(err).Msg("failed to persist session hints")
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
