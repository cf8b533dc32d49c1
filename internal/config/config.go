package config

import "time"

// IngestorConfig is the root configuration for an ingestor instance.
type IngestorConfig struct {
	Instance   InstanceConfig   `yaml:"instance"`
	Feed       FeedConfig       `yaml:"feed"`
	Database   DBConfig         `yaml:"database"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	DeadLetter DeadLetterConfig `yaml:"dead_letter"`
	Live       LiveConfig       `yaml:"live"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// InstanceConfig identifies this ingestor.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// FeedConfig holds the stream endpoint and the one subscription this
// process ingests.
type FeedConfig struct {
	BaseURL          string        `yaml:"base_url"` // e.g. wss://stream.binance.com:9443
	Symbol           string        `yaml:"symbol"`   // any case; lower-cased for the topic
	Stream           string        `yaml:"stream"`   // "trade" or "kline"
	Interval         string        `yaml:"interval"` // required for kline
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	PingTimeout      time.Duration `yaml:"ping_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	ReconnectMin     time.Duration `yaml:"reconnect_min"`
	ReconnectMax     time.Duration `yaml:"reconnect_max"`
	StableAfter      time.Duration `yaml:"stable_after"` // streaming this long resets backoff
	ReadBuffer       int           `yaml:"read_buffer"`  // frames buffered between socket and queue
}

// DBConfig holds the store connection.
type DBConfig struct {
	URL          string `yaml:"url"` // overrides the discrete fields when set
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Name         string `yaml:"name"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxConns     int    `yaml:"max_conns"`
	MinConns     int    `yaml:"min_conns"`     // 0 opens connections on demand
	PoolHeadroom *int   `yaml:"pool_headroom"` // reserved for health checks; nil means DefaultPoolHeadroom
}

// Headroom returns the configured pool headroom. An explicit 0 is kept.
func (db DBConfig) Headroom() int {
	if db.PoolHeadroom == nil {
		return DefaultPoolHeadroom
	}
	return *db.PoolHeadroom
}

// PipelineConfig bounds per-frame processing.
type PipelineConfig struct {
	MaxConcurrency  int           `yaml:"max_concurrency"`
	QueueSize       int           `yaml:"queue_size"`
	WriteTimeout    time.Duration `yaml:"write_timeout"` // per attempt: acquire + upsert
	MaxAttempts     int           `yaml:"max_attempts"`
	RetryMinWait    time.Duration `yaml:"retry_min_wait"`
	RetryMaxWait    time.Duration `yaml:"retry_max_wait"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DeadLetterConfig selects where undecodable or unwritable frames go.
// Both destinations may be enabled at once.
type DeadLetterConfig struct {
	File  DeadLetterFileConfig  `yaml:"file"`
	Kafka DeadLetterKafkaConfig `yaml:"kafka"`
}

// DeadLetterFileConfig is a rotating JSON-lines file.
type DeadLetterFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// DeadLetterKafkaConfig is a Kafka topic.
type DeadLetterKafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LiveConfig holds the optional Redis projection of open klines.
type LiveConfig struct {
	RedisAddr     string        `yaml:"redis_addr"` // empty disables the projection
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
	Timeout       time.Duration `yaml:"timeout"`
}

// MetricsConfig holds Prometheus/health server settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LoggingConfig holds slog settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // text or json
	File       string `yaml:"file"`   // empty = stdout
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}
