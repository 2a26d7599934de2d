package sqlutil

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type failingBeginner struct{ err error }

func (f failingBeginner) BeginTx(context.Context, *sql.TxOptions) (*sql.Tx, error) {
	return nil, f.err
}

func TestRun_BeginFailureSkipsFn(t *testing.T) {
	boom := errors.New("connection refused")
	called := false
	err := Run(context.Background(), failingBeginner{boom}, func(*sql.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, called)
}
