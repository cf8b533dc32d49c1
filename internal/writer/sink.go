package writer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/rickgao/marketfeed/internal/database"
	"github.com/rickgao/marketfeed/internal/model"
)

// Sink persists canonical events through a Pool. Safe for concurrent use.
type Sink struct {
	cfg    Config
	pool   Pool
	logger *slog.Logger

	mu      sync.Mutex
	metrics Stats
}

// NewSink creates a Sink. Zero config fields fall back to DefaultConfig.
func NewSink(cfg Config, pool Pool, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.RetryMinWait <= 0 {
		cfg.RetryMinWait = def.RetryMinWait
	}
	if cfg.RetryMaxWait < cfg.RetryMinWait {
		cfg.RetryMaxWait = cfg.RetryMinWait
	}
	return &Sink{
		cfg:    cfg,
		pool:   pool,
		logger: logger.With("component", "sink"),
	}
}

// Persist writes e once. Open klines are Skipped without touching the pool.
// Transient failures are retried up to MaxAttempts. On failure the Outcome
// is Failed and the error is always a *PersistError.
func (s *Sink) Persist(ctx context.Context, e model.Event) (Outcome, error) {
	if k, ok := e.(model.Kline); ok && !k.IsClosed {
		s.count(func(m *Stats) { m.Skipped++ })
		return Skipped, nil
	}

	inserted, err := backoff.Retry(ctx,
		func() (bool, error) {
			inserted, err := s.attempt(ctx, e)
			if err == nil {
				return inserted, nil
			}
			pe := Classify(err)
			if pe.Kind != Transient {
				return false, backoff.Permanent(pe)
			}
			return false, pe
		},
		backoff.WithBackOff(s.newBackOff()),
		backoff.WithMaxTries(uint(s.cfg.MaxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			s.count(func(m *Stats) { m.Retries++ })
			s.logger.Debug("retrying write", "key", e.Key(), "error", err, "wait", wait)
		}),
	)
	if err != nil {
		pe := Classify(err)
		s.count(func(m *Stats) {
			switch pe.Kind {
			case Transient:
				m.TransientErrors++
			case Constraint:
				m.ConstraintErrors++
			case Fatal:
				m.FatalErrors++
			}
		})
		return Failed, pe
	}

	s.count(func(m *Stats) {
		if inserted {
			m.Inserts++
		} else {
			m.Conflicts++
		}
	})
	return Inserted, nil
}

// attempt runs one acquire-and-write under WriteTimeout.
func (s *Sink) attempt(ctx context.Context, e model.Event) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()

	var inserted bool
	err := s.pool.Do(ctx, func(q database.Queries) error {
		var err error
		switch ev := e.(type) {
		case model.Trade:
			inserted, err = q.UpsertTrade(ctx, ev)
		case model.Kline:
			inserted, err = q.UpsertClosedKline(ctx, ev)
		default:
			err = fmt.Errorf("%w: %T", ErrUnsupportedEvent, e)
		}
		return err
	})
	if isDuplicate(err) {
		return false, nil
	}
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
		return false, fmt.Errorf("write timed out after %s: %w", s.cfg.WriteTimeout, err)
	}
	return inserted, err
}

func (s *Sink) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.RetryMinWait
	b.MaxInterval = s.cfg.RetryMaxWait
	return b
}

func (s *Sink) count(fn func(*Stats)) {
	s.mu.Lock()
	fn(&s.metrics)
	s.mu.Unlock()
}

// Stats returns current counters.
func (s *Sink) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}
