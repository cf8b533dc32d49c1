package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/marketfeed/internal/model"
)

// Runs against a disposable database named by TEST_DATABASE_URL.
func openTestStore(t *testing.T) (*Store, *pgxpool.Pool) {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, EnsureSchema(ctx, pool))
	require.NoError(t, EnsureSchema(ctx, pool), "schema must apply twice")

	_, err = pool.Exec(ctx, "TRUNCATE trade, kline")
	require.NoError(t, err)

	return NewStore(pool), pool
}

func TestStore_UpsertTradeIdempotent(t *testing.T) {
	store, pool := openTestStore(t)
	ctx := context.Background()
	tr := sampleTrade()

	var first, second bool
	err := store.Do(ctx, func(q Queries) error {
		var err error
		if first, err = q.UpsertTrade(ctx, tr); err != nil {
			return err
		}
		second, err = q.UpsertTrade(ctx, tr)
		return err
	})
	require.NoError(t, err)
	require.True(t, first)
	require.False(t, second)

	var count int
	var id string
	require.NoError(t, pool.QueryRow(ctx, "SELECT count(*), max(trade_id)::text FROM trade").Scan(&count, &id))
	require.Equal(t, 1, count)
	require.Equal(t, "18446744073709551615", id)
}

func TestStore_UpsertClosedKline(t *testing.T) {
	store, pool := openTestStore(t)
	ctx := context.Background()

	k := model.Kline{
		EventTime: model.FromMillis(1700000060000),
		Symbol:    "BTCUSDT",
		StartTime: model.FromMillis(1700000000000),
		CloseTime: model.FromMillis(1700000059999),
		Interval:  model.Interval1m,
		IsClosed:  true,
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Do(ctx, func(q Queries) error {
			_, err := q.UpsertClosedKline(ctx, k)
			return err
		}))
	}

	var count int
	require.NoError(t, pool.QueryRow(ctx, "SELECT count(*) FROM kline").Scan(&count))
	require.Equal(t, 1, count)
}
