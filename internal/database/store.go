package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/marketfeed/internal/config"
)

// Store hands out pooled connections for the duration of one operation.
type Store struct {
	pool *pgxpool.Pool
}

// PoolStats is a point-in-time view of the connection pool.
type PoolStats struct {
	MaxConns      int32
	TotalConns    int32
	AcquiredConns int32
	IdleConns     int32
}

// Connect creates a connection pool and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	connStr := BuildConnString(cfg)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// NewStore wraps an existing pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Do acquires one connection, runs fn with queries bound to it, and returns
// the connection to the pool. The connection is released on every exit path,
// including a panic in fn. Acquisition honors ctx, so a saturated pool
// cannot block past the caller's deadline.
func (s *Store) Do(ctx context.Context, fn func(Queries) error) error {
	return s.pool.AcquireFunc(ctx, func(conn *pgxpool.Conn) error {
		return fn(&queries{db: conn})
	})
}

// Ping verifies the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Stats returns pool statistics.
func (s *Store) Stats() PoolStats {
	st := s.pool.Stat()
	return PoolStats{
		MaxConns:      st.MaxConns(),
		TotalConns:    st.TotalConns(),
		AcquiredConns: st.AcquiredConns(),
		IdleConns:     st.IdleConns(),
	}
}

// Close closes the pool.
func (s *Store) Close() {
	s.pool.Close()
}
