package streams

import (
	"sync"
	"time"
)

// Entry is anything that can live in a stream window.
type Entry interface {
	EntryID() string
	Timestamp() time.Time
}

// Window is a per-table, append-only sequence capped at a fixed size. The
// oldest entries are dropped when the cap is exceeded.
type Window[T Entry] struct {
	mu      sync.RWMutex
	limit   int
	byTable map[string][]T
}

// NewWindow creates a window cache holding at most limit entries per table.
func NewWindow[T Entry](limit int) *Window[T] {
	if limit <= 0 {
		limit = 1
	}
	return &Window[T]{
		limit:   limit,
		byTable: make(map[string][]T),
	}
}

// Limit returns the per-table cap.
func (w *Window[T]) Limit() int { return w.limit }

// ReplaceHistory installs the full history for a table, keeping only the
// newest entries if it exceeds the cap.
func (w *Window[T]) ReplaceHistory(tableID string, entries []T) {
	if len(entries) > w.limit {
		entries = entries[len(entries)-w.limit:]
	}
	next := make([]T, len(entries))
	copy(next, entries)

	w.mu.Lock()
	w.byTable[tableID] = next
	w.mu.Unlock()
}

// Append adds entry to the end of the table's window. Redelivery of an entry
// already present (same non-empty ID) is ignored. It reports whether the
// entry was added.
func (w *Window[T]) Append(tableID string, entry T) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	current := w.byTable[tableID]
	if id := entry.EntryID(); id != "" {
		for _, existing := range current {
			if existing.EntryID() == id {
				return false
			}
		}
	}

	current = append(current, entry)
	if overflow := len(current) - w.limit; overflow > 0 {
		trimmed := make([]T, w.limit)
		copy(trimmed, current[overflow:])
		current = trimmed
	}
	w.byTable[tableID] = current
	return true
}

// Entries returns a copy of the table's window, oldest first.
func (w *Window[T]) Entries(tableID string) []T {
	w.mu.RLock()
	defer w.mu.RUnlock()

	current := w.byTable[tableID]
	out := make([]T, len(current))
	copy(out, current)
	return out
}

// Since returns entries newer than t, oldest first.
func (w *Window[T]) Since(tableID string, t time.Time) []T {
	w.mu.RLock()
	defer w.mu.RUnlock()

	current := w.byTable[tableID]
	out := make([]T, 0, len(current))
	for _, e := range current {
		if e.Timestamp().After(t) {
			out = append(out, e)
		}
	}
	return out
}

// Drop forgets a table's window. Only called when the table is closed.
func (w *Window[T]) Drop(tableID string) {
	w.mu.Lock()
	delete(w.byTable, tableID)
	w.mu.Unlock()
}

// Reset forgets every table.
func (w *Window[T]) Reset() {
	w.mu.Lock()
	w.byTable = make(map[string][]T)
	w.mu.Unlock()
}
