package session

import (
	"context"
	"sync"
)

// Hints are the persisted preferences handed to the server on connect. They
// are never treated as the user's actual placement.
type Hints struct {
	TableID          string `yaml:"table_id,omitempty"`
	SpectatorTableID string `yaml:"spectator_table_id,omitempty"`
}

// HintStore persists hints across process restarts.
type HintStore interface {
	Load(ctx context.Context) (Hints, error)
	Save(ctx context.Context, h Hints) error
}

// MemoryHints keeps hints for the life of the process only.
type MemoryHints struct {
	mu sync.Mutex
	h  Hints
}

func (m *MemoryHints) Load(context.Context) (Hints, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.h, nil
}

func (m *MemoryHints) Save(_ context.Context, h Hints) error {
	m.mu.Lock()
	m.h = h
	m.mu.Unlock()
	return nil
}
