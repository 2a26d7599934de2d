package sqlutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Beginner starts transactions. *sql.DB and *sql.Conn satisfy it.
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Run executes fn inside a *sql.Tx with default options.
func Run(ctx context.Context, db Beginner, fn func(tx *sql.Tx) error) error {
	return RunWith(ctx, db, nil, fn)
}

// RunWith executes fn inside a *sql.Tx started with opts.
// If fn returns an error the tx rolls back, else it commits.
func RunWith(ctx context.Context, db Beginner, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, opts) // BEGIN
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		// ROLLBACK
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil { // COMMIT
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
