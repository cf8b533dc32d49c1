package config

import (
	"errors"
	"fmt"

	"github.com/rickgao/marketfeed/internal/model"
)

// Stream types the feed supports.
const (
	StreamTrade = "trade"
	StreamKline = "kline"
)

// Validate checks that all required fields are set and values are valid.
func (c *IngestorConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if err := c.Feed.validate(); err != nil {
		return err
	}

	if err := c.Database.validate("database"); err != nil {
		return err
	}

	p := c.Pipeline
	if p.MaxConcurrency < 1 {
		return errors.New("pipeline.max_concurrency must be >= 1")
	}
	if budget := c.Database.MaxConns - c.Database.Headroom(); p.MaxConcurrency > budget {
		return fmt.Errorf("pipeline.max_concurrency (%d) exceeds database.max_conns minus pool_headroom (%d)", p.MaxConcurrency, budget)
	}
	if p.QueueSize < 1 {
		return errors.New("pipeline.queue_size must be >= 1")
	}
	if p.MaxAttempts < 1 {
		return errors.New("pipeline.max_attempts must be >= 1")
	}
	if p.WriteTimeout <= 0 {
		return errors.New("pipeline.write_timeout must be > 0")
	}
	if p.RetryMinWait > p.RetryMaxWait {
		return fmt.Errorf("pipeline.retry_min_wait (%s) cannot exceed retry_max_wait (%s)", p.RetryMinWait, p.RetryMaxWait)
	}
	if p.ShutdownTimeout <= 0 {
		return errors.New("pipeline.shutdown_timeout must be > 0")
	}

	dl := c.DeadLetter
	if dl.File.Path == "" && len(dl.Kafka.Brokers) == 0 {
		return errors.New("dead_letter requires file.path or kafka.brokers")
	}
	if len(dl.Kafka.Brokers) > 0 && dl.Kafka.Topic == "" {
		return errors.New("dead_letter.kafka.topic is required when brokers are set")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

func (f *FeedConfig) validate() error {
	if f.BaseURL == "" {
		return errors.New("feed.base_url is required")
	}
	if f.Symbol == "" {
		return errors.New("feed.symbol is required")
	}

	switch f.Stream {
	case StreamTrade:
		if f.Interval != "" {
			return errors.New("feed.interval is only valid for kline streams")
		}
	case StreamKline:
		if f.Interval == "" {
			return errors.New("feed.interval is required for kline streams")
		}
		if _, err := model.ParseInterval(f.Interval); err != nil {
			return fmt.Errorf("feed.interval: %w", err)
		}
	default:
		return fmt.Errorf("feed.stream must be %q or %q, got %q", StreamTrade, StreamKline, f.Stream)
	}

	if f.ReconnectMin <= 0 {
		return errors.New("feed.reconnect_min must be > 0")
	}
	if f.ReconnectMin > f.ReconnectMax {
		return fmt.Errorf("feed.reconnect_min (%s) cannot exceed reconnect_max (%s)", f.ReconnectMin, f.ReconnectMax)
	}
	if f.ReadBuffer < 1 {
		return errors.New("feed.read_buffer must be >= 1")
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.URL == "" {
		if db.Host == "" {
			return fmt.Errorf("%s.host is required", prefix)
		}
		if db.Name == "" {
			return fmt.Errorf("%s.name is required", prefix)
		}
		if db.User == "" {
			return fmt.Errorf("%s.user is required", prefix)
		}
		if db.Password == "" {
			return fmt.Errorf("%s.password is required", prefix)
		}
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	if db.Headroom() < 0 {
		return fmt.Errorf("%s.pool_headroom must be >= 0", prefix)
	}
	return nil
}
