// Package live keeps the latest in-progress kline per symbol and interval in
// Redis. Closed klines belong to the history tables and are never written
// here; nothing here is ever written to PostgreSQL.
package live

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rickgao/marketfeed/internal/model"
)

// Config configures the Redis projection.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Timeout  time.Duration // per write
}

// Projection writes open klines to Redis hashes keyed kline:live:{SYMBOL}:{interval}.
type Projection struct {
	client  redis.UniversalClient
	ttl     time.Duration
	timeout time.Duration
	logger  *slog.Logger

	writes   atomic.Int64
	failures atomic.Int64
}

// New connects a Projection to the configured Redis.
func New(cfg Config, logger *slog.Logger) *Projection {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewWithClient(client, cfg.TTL, cfg.Timeout, logger)
}

// NewWithClient wraps an existing client.
func NewWithClient(client redis.UniversalClient, ttl, timeout time.Duration, logger *slog.Logger) *Projection {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if timeout <= 0 {
		timeout = time.Second
	}
	return &Projection{
		client:  client,
		ttl:     ttl,
		timeout: timeout,
		logger:  logger.With("component", "live"),
	}
}

// Key returns the hash key for a symbol and interval.
func Key(symbol string, interval model.Interval) string {
	return "kline:live:" + symbol + ":" + interval.String()
}

// Update stores k as the current open kline. Frames are processed
// concurrently, so an older update can land after a newer one; readers
// compare event_time.
func (p *Projection) Update(ctx context.Context, k model.Kline) error {
	if k.IsClosed {
		return fmt.Errorf("live projection: kline %s is closed", k.Key())
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	key := Key(k.Symbol, k.Interval)
	pipe := p.client.TxPipeline()
	pipe.HSet(ctx, key, fields(k))
	pipe.Expire(ctx, key, p.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		p.failures.Add(1)
		return fmt.Errorf("live projection %s: %w", key, err)
	}
	p.writes.Add(1)
	return nil
}

// Get reads the open kline fields for symbol and interval. A missing key
// returns an empty map.
func (p *Projection) Get(ctx context.Context, symbol string, interval model.Interval) (map[string]string, error) {
	return p.client.HGetAll(ctx, Key(symbol, interval)).Result()
}

// Writes returns the number of successful updates.
func (p *Projection) Writes() int64 { return p.writes.Load() }

// Failures returns the number of failed updates.
func (p *Projection) Failures() int64 { return p.failures.Load() }

// Ping checks connectivity.
func (p *Projection) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close closes the client.
func (p *Projection) Close() error {
	return p.client.Close()
}

func fields(k model.Kline) map[string]any {
	return map[string]any{
		"event_time":             strconv.FormatInt(k.EventTime.UnixMilli(), 10),
		"start_time":             strconv.FormatInt(k.StartTime.UnixMilli(), 10),
		"close_time":             strconv.FormatInt(k.CloseTime.UnixMilli(), 10),
		"first_trade_id":         k.FirstTradeID.String(),
		"last_trade_id":          k.LastTradeID.String(),
		"open":                   k.Open.String(),
		"close":                  k.Close.String(),
		"high":                   k.High.String(),
		"low":                    k.Low.String(),
		"base_volume":            k.BaseVolume.String(),
		"quote_volume":           k.QuoteVolume.String(),
		"taker_buy_base_volume":  k.TakerBuyBaseVolume.String(),
		"taker_buy_quote_volume": k.TakerBuyQuoteVolume.String(),
		"num_trades":             strconv.FormatInt(k.NumTrades, 10),
	}
}
