package utils

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type ExecType int

const (
	ExecInsert ExecType = iota
	ExecUpdate
	ExecDelete
)

// ErrNoRowsAffected is returned by ExecWithCheck when an update or delete
// matched nothing. Compare-and-swap callers use it to detect a lost race.
var ErrNoRowsAffected = errors.New("no rows affected")

// ExecWithCheck runs query on a *sqlx.DB or *sqlx.Tx. Placeholders are written
// as '?' and rebound for the driver.
func ExecWithCheck(ctx context.Context, ext sqlx.ExtContext, query string, execType ExecType, args ...any) error {
	result, err := ext.ExecContext(ctx, ext.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}

	// if Insert operation, don't need to check rows affected
	if execType == ExecInsert {
		return nil
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNoRowsAffected
	}

	return nil
}
