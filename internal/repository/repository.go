package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"storage-service/internal/models"

	"github.com/jmoiron/sqlx"
)

func beginTransaction(ctx context.Context, db *sqlx.DB, entity string) (*sqlx.Tx, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		slog.Error("Failed to begin transaction", "entity", entity, "error", err)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// getErr maps sql.ErrNoRows onto models.ErrNotFound.
func getErr(err error, entity string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", entity, models.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", entity, err)
}

func nowUnix() int64 {
	return time.Now().Unix()
}
