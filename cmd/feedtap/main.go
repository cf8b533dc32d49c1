// feedtap streams one subscription through the decode and normalize stages
// and prints the resulting events instead of writing them to a database.
// Usage: go run ./cmd/feedtap --symbol BTCUSDT --stream kline --interval 1m
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jessevdk/go-flags"

	"github.com/rickgao/marketfeed/internal/config"
	"github.com/rickgao/marketfeed/internal/connection"
	"github.com/rickgao/marketfeed/internal/deadletter"
	"github.com/rickgao/marketfeed/internal/ingest"
	"github.com/rickgao/marketfeed/internal/model"
	"github.com/rickgao/marketfeed/internal/writer"
)

type options struct {
	BaseURL  string `long:"url" default:"wss://stream.binance.com:9443" description:"feed base URL"`
	Symbol   string `short:"s" long:"symbol" default:"BTCUSDT" description:"instrument symbol"`
	Stream   string `long:"stream" default:"trade" choice:"trade" choice:"kline" description:"stream type"`
	Interval string `short:"i" long:"interval" default:"1m" description:"kline interval"`
	ShowOpen bool   `long:"show-open" description:"also print klines that are still open"`
	Verbose  bool   `short:"v" long:"verbose" description:"print full event JSON"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	sub := connection.Subscription{Symbol: opts.Symbol, Stream: opts.Stream}
	if opts.Stream == config.StreamKline {
		iv, err := model.ParseInterval(opts.Interval)
		if err != nil {
			logger.Error("invalid interval", "error", err)
			os.Exit(2)
		}
		sub.Interval = iv
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	p := &printer{verbose: opts.Verbose, showOpen: opts.ShowOpen}
	dlq := &deadletter.Memory{}

	cfg := ingest.DefaultConfig(sub.URL(opts.BaseURL))
	cfg.MaxConcurrency = 1 // keep output in arrival order
	cfg.ShutdownTimeout = 5 * time.Second
	loop := ingest.New(cfg, ingest.Deps{
		Sink:       p,
		DeadLetter: dlq,
		Live:       p,
	}, logger)

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s := loop.Stats()
				logger.Info("stats",
					"state", loop.State(),
					"frames", s.Frames,
					"printed", s.Inserted,
					"filtered", s.Filtered,
					"decode_errors", s.DecodeErrors,
					"reconnects", s.Reconnects,
					"queue_depth", s.QueueDepth,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop", "topic", sub.Topic())
	if err := loop.Run(ctx); err != nil {
		logger.Error("stream stopped", "error", err)
	}

	for _, r := range dlq.Records() {
		fmt.Printf("[DEAD LETTER] cause=%q raw=%s\n", r.Cause, r.Raw)
	}
	logger.Info("shutdown complete", "dead_letters", dlq.Len())
}

// printer stands in for the database sink and the live projection.
type printer struct {
	verbose  bool
	showOpen bool
}

func (p *printer) Persist(_ context.Context, e model.Event) (writer.Outcome, error) {
	switch ev := e.(type) {
	case model.Trade:
		if p.verbose {
			p.dump("TRADE", ev)
		} else {
			fmt.Printf("[TRADE] symbol=%s id=%s price=%s qty=%s buyer_maker=%t\n",
				ev.Symbol, ev.TradeID, ev.Price, ev.Quantity, ev.IsBuyerMaker)
		}
	case model.Kline:
		if p.verbose {
			p.dump("KLINE", ev)
		} else {
			p.printKline("KLINE", ev)
		}
	default:
		return writer.Failed, writer.ErrUnsupportedEvent
	}
	return writer.Inserted, nil
}

func (p *printer) Update(_ context.Context, k model.Kline) error {
	if !p.showOpen {
		return nil
	}
	p.printKline("KLINE OPEN", k)
	return nil
}

func (p *printer) printKline(label string, k model.Kline) {
	fmt.Printf("[%s] symbol=%s interval=%s start=%s o=%s h=%s l=%s c=%s trades=%d\n",
		label, k.Symbol, k.Interval, k.StartTime.Format(time.RFC3339),
		k.Open, k.High, k.Low, k.Close, k.NumTrades)
}

func (p *printer) dump(label string, v any) {
	data, _ := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	fmt.Printf("[%s] %s\n", label, data)
}
