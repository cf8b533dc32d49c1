package database

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the DDL for the trade and kline tables. Applying it is
// idempotent.
//
//go:embed schema.sql
var Schema string

// EnsureSchema creates the interval type and tables when missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	// No arguments: sent over the simple protocol, so the multi-statement
	// script runs as one round trip.
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
