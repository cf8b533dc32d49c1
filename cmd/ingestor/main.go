// ingestor streams one market-data subscription into PostgreSQL.
// Usage: ingestor --config configs/ingestor.yaml [--migrate]
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/jessevdk/go-flags"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/marketfeed/internal/config"
	"github.com/rickgao/marketfeed/internal/connection"
	"github.com/rickgao/marketfeed/internal/database"
	"github.com/rickgao/marketfeed/internal/deadletter"
	"github.com/rickgao/marketfeed/internal/ingest"
	"github.com/rickgao/marketfeed/internal/live"
	"github.com/rickgao/marketfeed/internal/logging"
	"github.com/rickgao/marketfeed/internal/metrics"
	"github.com/rickgao/marketfeed/internal/model"
	"github.com/rickgao/marketfeed/internal/version"
	"github.com/rickgao/marketfeed/internal/writer"
)

type options struct {
	Config  string `short:"c" long:"config" default:"configs/ingestor.yaml" description:"path to config file"`
	Migrate bool   `long:"migrate" description:"apply the embedded schema before ingesting"`
	Version bool   `long:"version" description:"print version and exit"`
}

func main() {
	os.Exit(run())
}

func run() int {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return 0
		}
		return 2
	}
	if opts.Version {
		fmt.Println(version.String())
		return 0
	}

	cfg, err := config.LoadAndValidate(opts.Config)
	if err != nil {
		slog.Error("failed to load config", "error", err, "config", opts.Config)
		return 1
	}

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		slog.Error("failed to set up logging", "error", err)
		return 1
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	runID := uuid.New()
	logger = logger.With("instance_id", cfg.Instance.ID, "run_id", runID)
	logger.Info("starting ingestor", append(version.LogAttrs(), "config", opts.Config)...)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to database
	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return 1
	}
	store := database.NewStore(pool)
	defer store.Close()

	if opts.Migrate {
		if err := database.EnsureSchema(ctx, pool); err != nil {
			logger.Error("failed to apply schema", "error", err)
			return 1
		}
		logger.Info("schema applied")
	}

	sink := writer.NewSink(writer.Config{
		WriteTimeout: cfg.Pipeline.WriteTimeout,
		MaxAttempts:  cfg.Pipeline.MaxAttempts,
		RetryMinWait: cfg.Pipeline.RetryMinWait,
		RetryMaxWait: cfg.Pipeline.RetryMaxWait,
	}, store, logger)

	dlq := newDeadLetter(cfg)
	defer func() {
		if err := dlq.Close(); err != nil {
			logger.Error("failed to close dead-letter sink", "error", err)
		}
	}()

	deps := ingest.Deps{Sink: sink, DeadLetter: dlq}
	sources := metrics.Sources{Sink: sink, Pool: store}
	if cfg.Live.RedisAddr != "" {
		proj := live.New(live.Config{
			Addr:     cfg.Live.RedisAddr,
			Password: cfg.Live.RedisPassword,
			DB:       cfg.Live.RedisDB,
			TTL:      cfg.Live.TTL,
			Timeout:  cfg.Live.Timeout,
		}, logger)
		defer proj.Close()
		if err := proj.Ping(ctx); err != nil {
			// Projection failures never block ingestion.
			logger.Warn("live projection unreachable", "addr", cfg.Live.RedisAddr, "error", err)
		}
		deps.Live = proj
		sources.Live = proj
	}

	sub := connection.Subscription{
		Symbol:   cfg.Feed.Symbol,
		Stream:   cfg.Feed.Stream,
		Interval: model.Interval(cfg.Feed.Interval),
	}
	loop := ingest.New(ingest.Config{
		URL: sub.URL(cfg.Feed.BaseURL),
		Client: connection.ClientConfig{
			HandshakeTimeout: cfg.Feed.HandshakeTimeout,
			PingTimeout:      cfg.Feed.PingTimeout,
			WriteTimeout:     cfg.Feed.WriteTimeout,
			BufferSize:       cfg.Feed.ReadBuffer,
		},
		MaxConcurrency:  cfg.Pipeline.MaxConcurrency,
		QueueSize:       cfg.Pipeline.QueueSize,
		ReconnectMin:    cfg.Feed.ReconnectMin,
		ReconnectMax:    cfg.Feed.ReconnectMax,
		StableAfter:     cfg.Feed.StableAfter,
		ShutdownTimeout: cfg.Pipeline.ShutdownTimeout,
	}, deps, logger)
	sources.Loop = loop

	reg, err := metrics.NewRegistry(sources)
	if err != nil {
		logger.Error("failed to register metrics", "error", err)
		return 1
	}
	server := metrics.NewServer(metrics.ServerConfig{
		Port: cfg.Metrics.Port,
		Path: cfg.Metrics.Path,
	}, reg, map[string]metrics.Check{
		"database": store.Ping,
		"feed": func(context.Context) error {
			if s := loop.State(); s != ingest.Streaming {
				return fmt.Errorf("feed %s", s)
			}
			return nil
		},
	}, func() any {
		return map[string]any{
			"loop": loop.Stats(),
			"sink": sink.Stats(),
			"pool": store.Stats(),
		}
	}, logger)

	logger.Info("ingestor running",
		"topic", sub.Topic(),
		"max_concurrency", cfg.Pipeline.MaxConcurrency,
		"metrics_port", cfg.Metrics.Port,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error { return server.Run(gctx) })

	if err := g.Wait(); err != nil {
		logger.Error("ingestor stopped with error", "error", err)
		return 1
	}

	logger.Info("ingestor stopped")
	return 0
}

// newDeadLetter builds the configured dead-letter destinations. Validation
// guarantees at least one.
func newDeadLetter(cfg *config.IngestorConfig) deadletter.Sink {
	var sinks deadletter.Fanout
	if f := cfg.DeadLetter.File; f.Path != "" {
		sinks = append(sinks, deadletter.NewFileSink(cfg.Instance.ID, deadletter.FileConfig{
			Path:       f.Path,
			MaxSizeMB:  f.MaxSizeMB,
			MaxBackups: f.MaxBackups,
			MaxAgeDays: f.MaxAgeDays,
			Compress:   f.Compress,
		}))
	}
	if k := cfg.DeadLetter.Kafka; len(k.Brokers) > 0 {
		sinks = append(sinks, deadletter.NewKafkaSink(cfg.Instance.ID, deadletter.KafkaConfig{
			Brokers:      k.Brokers,
			Topic:        k.Topic,
			WriteTimeout: k.WriteTimeout,
		}))
	}
	if len(sinks) == 1 {
		return sinks[0]
	}
	return sinks
}
