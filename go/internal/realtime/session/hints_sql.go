package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mcdev12/tablesync/go/internal/dbconfig"
	"github.com/mcdev12/tablesync/go/internal/sqlutil"
)

const hintsSchema = `
CREATE TABLE IF NOT EXISTS session_hints (
	hint_key           TEXT PRIMARY KEY,
	table_id           TEXT,
	spectator_table_id TEXT,
	updated_at         TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// SQLHints stores hints in Postgres or SQLite, one row per key (typically
// the user id), so several clients can share a database. The statements stay
// within the dialect both engines accept.
type SQLHints struct {
	db  *sql.DB
	key string
}

// OpenSQLHints connects using cfg and makes sure the hints table exists.
func OpenSQLHints(ctx context.Context, cfg dbconfig.Config, key string) (*SQLHints, error) {
	db, err := cfg.Open(ctx)
	if err != nil {
		return nil, err
	}
	h := NewSQLHints(db, key)
	if err := h.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return h, nil
}

// NewSQLHints wraps an open database.
func NewSQLHints(db *sql.DB, key string) *SQLHints {
	return &SQLHints{db: db, key: key}
}

// EnsureSchema creates the hints table if needed.
func (s *SQLHints) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, hintsSchema); err != nil {
		return fmt.Errorf("failed to create session_hints: %w", err)
	}
	return nil
}

func (s *SQLHints) Load(ctx context.Context) (Hints, error) {
	var tableID, spectatorID sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT table_id, spectator_table_id FROM session_hints WHERE hint_key = $1`,
		s.key,
	).Scan(&tableID, &spectatorID)
	if errors.Is(err, sql.ErrNoRows) {
		return Hints{}, nil
	}
	if err != nil {
		return Hints{}, fmt.Errorf("failed to load hints: %w", err)
	}
	return Hints{
		TableID:          sqlutil.FromSqlString(tableID, ""),
		SpectatorTableID: sqlutil.FromSqlString(spectatorID, ""),
	}, nil
}

func (s *SQLHints) Save(ctx context.Context, h Hints) error {
	return sqlutil.Run(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO session_hints (hint_key, table_id, spectator_table_id, updated_at)
VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
ON CONFLICT (hint_key) DO UPDATE
SET table_id = EXCLUDED.table_id,
    spectator_table_id = EXCLUDED.spectator_table_id,
    updated_at = EXCLUDED.updated_at`,
			s.key,
			sqlutil.NullIfEmpty(h.TableID),
			sqlutil.NullIfEmpty(h.SpectatorTableID),
		)
		if err != nil {
			return fmt.Errorf("failed to save hints: %w", err)
		}
		return nil
	})
}

// Close closes the underlying database.
func (s *SQLHints) Close() error {
	return s.db.Close()
}
