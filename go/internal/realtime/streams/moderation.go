package streams

import (
	"sync"

	"github.com/mcdev12/tablesync/go/internal/models"
)

// Moderation holds each table's moderation state. States are only ever
// replaced whole, so an admin reversal can never leave a stale mute or ban.
type Moderation struct {
	mu      sync.RWMutex
	byTable map[string]models.ModerationState
}

func NewModeration() *Moderation {
	return &Moderation{byTable: make(map[string]models.ModerationState)}
}

// Replace installs state for its table.
func (m *Moderation) Replace(state models.ModerationState) {
	m.mu.Lock()
	m.byTable[state.TableID] = state
	m.mu.Unlock()
}

// Get returns the table's state.
func (m *Moderation) Get(tableID string) (models.ModerationState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byTable[tableID]
	return s, ok
}

func (m *Moderation) Drop(tableID string) {
	m.mu.Lock()
	delete(m.byTable, tableID)
	m.mu.Unlock()
}

func (m *Moderation) Reset() {
	m.mu.Lock()
	m.byTable = make(map[string]models.ModerationState)
	m.mu.Unlock()
}
