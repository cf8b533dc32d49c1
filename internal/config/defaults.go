package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultBaseURL           = "wss://stream.binance.com:9443"
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultPingTimeout       = 60 * time.Second
	DefaultFeedWriteTimeout  = 5 * time.Second
	DefaultReconnectMin      = 1 * time.Second
	DefaultReconnectMax      = 60 * time.Second
	DefaultStableAfter       = 30 * time.Second
	DefaultReadBuffer        = 64
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 10
	DefaultMinConns          = 0
	DefaultPoolHeadroom      = 2
	DefaultMaxConcurrency    = 4
	DefaultQueueSize         = 1024
	DefaultWriteTimeout      = 5 * time.Second
	DefaultMaxAttempts       = 5
	DefaultRetryMinWait      = 100 * time.Millisecond
	DefaultRetryMaxWait      = 5 * time.Second
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultDeadLetterMaxSize = 100
	DefaultKafkaWriteTimeout = 10 * time.Second
	DefaultLiveTTL           = 2 * time.Hour
	DefaultLiveTimeout       = 1 * time.Second
	DefaultMetricsPort       = 9090
	DefaultMetricsPath       = "/metrics"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
)

func (c *IngestorConfig) applyDefaults() {
	// Feed defaults
	if c.Feed.BaseURL == "" {
		c.Feed.BaseURL = DefaultBaseURL
	}
	if c.Feed.HandshakeTimeout == 0 {
		c.Feed.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Feed.PingTimeout == 0 {
		c.Feed.PingTimeout = DefaultPingTimeout
	}
	if c.Feed.WriteTimeout == 0 {
		c.Feed.WriteTimeout = DefaultFeedWriteTimeout
	}
	if c.Feed.ReconnectMin == 0 {
		c.Feed.ReconnectMin = DefaultReconnectMin
	}
	if c.Feed.ReconnectMax == 0 {
		c.Feed.ReconnectMax = DefaultReconnectMax
	}
	if c.Feed.StableAfter == 0 {
		c.Feed.StableAfter = DefaultStableAfter
	}
	if c.Feed.ReadBuffer == 0 {
		c.Feed.ReadBuffer = DefaultReadBuffer
	}

	// Database defaults
	db := &c.Database
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.PoolHeadroom == nil {
		headroom := DefaultPoolHeadroom
		db.PoolHeadroom = &headroom
	}

	// Pipeline defaults
	p := &c.Pipeline
	if p.MaxConcurrency == 0 {
		p.MaxConcurrency = DefaultMaxConcurrency
	}
	if p.QueueSize == 0 {
		p.QueueSize = DefaultQueueSize
	}
	if p.WriteTimeout == 0 {
		p.WriteTimeout = DefaultWriteTimeout
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.RetryMinWait == 0 {
		p.RetryMinWait = DefaultRetryMinWait
	}
	if p.RetryMaxWait == 0 {
		p.RetryMaxWait = DefaultRetryMaxWait
	}
	if p.ShutdownTimeout == 0 {
		p.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Dead letter defaults
	if c.DeadLetter.File.Path != "" && c.DeadLetter.File.MaxSizeMB == 0 {
		c.DeadLetter.File.MaxSizeMB = DefaultDeadLetterMaxSize
	}
	if len(c.DeadLetter.Kafka.Brokers) > 0 && c.DeadLetter.Kafka.WriteTimeout == 0 {
		c.DeadLetter.Kafka.WriteTimeout = DefaultKafkaWriteTimeout
	}

	// Live projection defaults
	if c.Live.TTL == 0 {
		c.Live.TTL = DefaultLiveTTL
	}
	if c.Live.Timeout == 0 {
		c.Live.Timeout = DefaultLiveTimeout
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}
