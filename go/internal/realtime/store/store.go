// Package store holds the canonical table rows and game-state snapshots the
// server has pushed.
package store

import (
	"slices"
	"sync"

	"github.com/mcdev12/tablesync/go/internal/models"
	"github.com/rs/zerolog/log"
)

// SessionView tells the store which tables the user is attached to.
type SessionView interface {
	ActiveTableID() string
	SpectatorTableID() string
}

// ChangeKind names what a Change touched.
type ChangeKind string

const (
	ChangeTableList        ChangeKind = "table_list"
	ChangeTable            ChangeKind = "table"
	ChangeTableRemoved     ChangeKind = "table_removed"
	ChangeGameState        ChangeKind = "game_state"
	ChangeGameStateRemoved ChangeKind = "game_state_removed"
	ChangeReset            ChangeKind = "reset"
)

// Change describes one applied mutation. Table and State are set for
// upserts.
type Change struct {
	Kind    ChangeKind
	TableID string
	Table   *models.Table
	State   *models.GameState
}

// Store maps table ids to the latest table row and game state. Entries are
// replaced whole and only removed by an explicit call; a table missing from
// a listing keeps its row.
type Store struct {
	mu          sync.RWMutex
	session     SessionView
	listing     []string
	onlineUsers int
	tables      map[string]models.Table
	states      map[string]models.GameState
	subscribers []func(Change)
}

// New creates an empty store reading placement from session.
func New(session SessionView) *Store {
	return &Store{
		session: session,
		tables:  make(map[string]models.Table),
		states:  make(map[string]models.GameState),
	}
}

// Subscribe registers fn to be called after every change.
func (s *Store) Subscribe(fn func(Change)) {
	s.mu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.mu.Unlock()
}

// ReplaceTableList replaces the lobby listing and upserts every row in it.
// Rows not in tables are kept; only RemoveTable deletes a row.
func (s *Store) ReplaceTableList(tables []models.Table) {
	s.mu.Lock()
	s.listing = make([]string, 0, len(tables))
	for _, t := range tables {
		if t.ID == "" {
			continue
		}
		s.listing = append(s.listing, t.ID)
		s.tables[t.ID] = t
	}
	s.mu.Unlock()

	log.Debug().Int("tables", len(tables)).Msg("table list replaced")
	s.publish(Change{Kind: ChangeTableList})
}

// ReplaceLobby is ReplaceTableList plus the online user count.
func (s *Store) ReplaceLobby(lobby models.Lobby) {
	s.mu.Lock()
	s.onlineUsers = lobby.OnlineUsers
	s.mu.Unlock()
	s.ReplaceTableList(lobby.Tables)
}

// UpsertTable inserts t or replaces the existing row whole.
func (s *Store) UpsertTable(t models.Table) {
	if t.ID == "" {
		return
	}
	s.mu.Lock()
	s.tables[t.ID] = t
	s.mu.Unlock()

	s.publish(Change{Kind: ChangeTable, TableID: t.ID, Table: &t})
}

// RemoveTable deletes the row for id and drops it from the listing.
func (s *Store) RemoveTable(id string) {
	s.mu.Lock()
	_, existed := s.tables[id]
	delete(s.tables, id)
	s.listing = slices.DeleteFunc(s.listing, func(v string) bool { return v == id })
	s.mu.Unlock()

	if existed {
		s.publish(Change{Kind: ChangeTableRemoved, TableID: id})
	}
}

// UpsertGameState stores state under its own table id, replacing any
// previous snapshot whole.
func (s *Store) UpsertGameState(state models.GameState) {
	if state.TableID == "" {
		return
	}
	s.mu.Lock()
	s.states[state.TableID] = state
	s.mu.Unlock()

	s.publish(Change{Kind: ChangeGameState, TableID: state.TableID, State: &state})
}

// RemoveGameState deletes the snapshot for id.
func (s *Store) RemoveGameState(id string) {
	s.mu.Lock()
	_, existed := s.states[id]
	delete(s.states, id)
	s.mu.Unlock()

	if existed {
		s.publish(Change{Kind: ChangeGameStateRemoved, TableID: id})
	}
}

// Reset forgets everything.
func (s *Store) Reset() {
	s.mu.Lock()
	s.listing = nil
	s.onlineUsers = 0
	s.tables = make(map[string]models.Table)
	s.states = make(map[string]models.GameState)
	s.mu.Unlock()

	s.publish(Change{Kind: ChangeReset})
}

// Table returns the row for id.
func (s *Store) Table(id string) (models.Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[id]
	return t, ok
}

// Tables returns the listed rows in listing order.
func (s *Store) Tables() []models.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Table, 0, len(s.listing))
	for _, id := range s.listing {
		if t, ok := s.tables[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

// OnlineUsers returns the last reported online user count.
func (s *Store) OnlineUsers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.onlineUsers
}

// GameState returns the snapshot for id.
func (s *Store) GameState(id string) (models.GameState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.states[id]
	return g, ok
}

// ActiveTable returns the row of the session's active table.
func (s *Store) ActiveTable() (models.Table, bool) {
	id := s.activeID()
	if id == "" {
		return models.Table{}, false
	}
	return s.Table(id)
}

// ActiveGameState returns the snapshot of the session's active table.
func (s *Store) ActiveGameState() (models.GameState, bool) {
	id := s.activeID()
	if id == "" {
		return models.GameState{}, false
	}
	return s.GameState(id)
}

// IsParticipant reports whether userID holds a seat at the active table.
func (s *Store) IsParticipant(userID string) bool {
	t, ok := s.ActiveTable()
	return ok && userID != "" && t.HasPlayer(userID)
}

// IsSpectatingActive reports whether the active view is a spectated table.
func (s *Store) IsSpectatingActive() bool {
	if s.session == nil {
		return false
	}
	spectating := s.session.SpectatorTableID()
	return spectating != "" && spectating == s.session.ActiveTableID()
}

// MyAvailableActions returns the actions userID may take now. It is empty
// unless it is userID's turn in an active round at the active table.
func (s *Store) MyAvailableActions(userID string) []models.TurnAction {
	g, ok := s.ActiveGameState()
	if !ok || userID == "" || !g.IsTurnOf(userID) {
		return nil
	}
	return slices.Clone(g.AvailableActions)
}

func (s *Store) activeID() string {
	if s.session == nil {
		return ""
	}
	return s.session.ActiveTableID()
}

func (s *Store) publish(c Change) {
	s.mu.RLock()
	subs := slices.Clone(s.subscribers)
	s.mu.RUnlock()
	for _, fn := range subs {
		fn(c)
	}
}
