package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/semaphore"

	"github.com/rickgao/marketfeed/internal/connection"
)

// Loop is the ingestion state machine for one subscription.
type Loop struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	state   atomic.Int32
	running atomic.Bool
	seq     atomic.Uint64
	queue   *Queue[Frame]
	sem     *semaphore.Weighted
	pause   func(ctx context.Context, d time.Duration) bool

	// Fatal handling
	fatalMu   sync.Mutex
	fatalErr  error
	cancelRun context.CancelFunc

	counters counters
}

type counters struct {
	frames             atomic.Int64
	decoded            atomic.Int64
	decodeErrors       atomic.Int64
	filtered           atomic.Int64
	inserted           atomic.Int64
	skipped            atomic.Int64
	deadLettered       atomic.Int64
	deadLetterFailures atomic.Int64
	abandoned          atomic.Int64
	fatal              atomic.Int64
	liveUpdates        atomic.Int64
	liveFailures       atomic.Int64
	reconnects         atomic.Int64
	inFlight           atomic.Int64
}

// New creates a Loop. Zero config fields fall back to DefaultConfig.
func New(cfg Config, deps Deps, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig(cfg.URL)
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = def.MaxConcurrency
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = def.ReconnectMin
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = cfg.ReconnectMin
	}
	if cfg.StableAfter <= 0 {
		cfg.StableAfter = def.StableAfter
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	cfg.Client.URL = cfg.URL

	if deps.Dial == nil {
		clientLogger := logger.With("component", "ws_client")
		deps.Dial = func(url string) connection.Client {
			c := cfg.Client
			c.URL = url
			return connection.NewClient(c, clientLogger)
		}
	}

	return &Loop{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With("component", "ingest", "url", cfg.URL),
		queue:  NewQueue[Frame](cfg.QueueSize),
		sem:    semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		pause:  sleep,
	}
}

// State returns the current state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Stats returns current counters.
func (l *Loop) Stats() Stats {
	c := &l.counters
	q := l.queue.Stats()
	return Stats{
		Frames:             c.frames.Load(),
		Decoded:            c.decoded.Load(),
		DecodeErrors:       c.decodeErrors.Load(),
		Filtered:           c.filtered.Load(),
		Inserted:           c.inserted.Load(),
		Skipped:            c.skipped.Load(),
		DeadLettered:       c.deadLettered.Load(),
		DeadLetterFailures: c.deadLetterFailures.Load(),
		Abandoned:          c.abandoned.Load(),
		Fatal:              c.fatal.Load(),
		LiveUpdates:        c.liveUpdates.Load(),
		LiveFailures:       c.liveFailures.Load(),
		Reconnects:         c.reconnects.Load(),
		QueueDepth:         q.Count,
		QueueCapacity:      q.Capacity,
		Queued:             q.TotalReceived,
		Dequeued:           q.TotalSent,
		InFlight:           c.inFlight.Load(),
	}
}

// Run connects, streams, and processes frames until ctx is cancelled or a
// fatal persistence error occurs. It then drains: frames already read are
// processed and in-flight writes may finish, for up to ShutdownTimeout.
// Anything still unfinished after that is cancelled and logged as abandoned.
//
// Run returns nil after a deliberate shutdown and an error wrapping ErrFatal
// after a fatal persistence error. A Loop runs once.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	l.fatalMu.Lock()
	l.cancelRun = cancelRun
	l.fatalMu.Unlock()

	// Work outlives the caller's cancellation by up to ShutdownTimeout so
	// writes in progress are not killed by the shutdown signal itself.
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()
	stopDeadline := context.AfterFunc(runCtx, func() {
		time.AfterFunc(l.cfg.ShutdownTimeout, cancelWork)
	})
	defer stopDeadline()

	l.logger.Info("ingestion loop starting",
		"max_concurrency", l.cfg.MaxConcurrency,
		"queue_size", l.cfg.QueueSize,
	)

	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		l.dispatch(workCtx)
	}()

	l.connectLoop(runCtx, workCtx)

	l.setState(Draining)
	drainStart := time.Now()
	l.queue.Close()
	<-dispatched
	l.setState(Disconnected)

	st := l.Stats()
	l.logger.Info("ingestion loop stopped",
		"drain_duration", time.Since(drainStart),
		"frames", st.Frames,
		"inserted", st.Inserted,
		"dead_lettered", st.DeadLettered,
		"abandoned", st.Abandoned,
	)

	l.fatalMu.Lock()
	defer l.fatalMu.Unlock()
	if l.fatalErr != nil {
		return fmt.Errorf("%w: %w", ErrFatal, l.fatalErr)
	}
	return nil
}

// fail records the first fatal error and begins draining.
func (l *Loop) fail(err error) {
	l.fatalMu.Lock()
	defer l.fatalMu.Unlock()
	if l.fatalErr != nil {
		return
	}
	l.fatalErr = err
	if l.cancelRun != nil {
		l.cancelRun()
	}
}

func (l *Loop) setState(s State) {
	prev := State(l.state.Swap(int32(s)))
	if prev != s {
		l.logger.Info("state transition", "from", prev, "to", s)
	}
}

// connectLoop keeps a connection streaming until ctx is done. Connection
// errors are retried with exponential backoff that resets after a stable
// streaming period.
func (l *Loop) connectLoop(ctx, workCtx context.Context) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.cfg.ReconnectMin
	b.MaxInterval = l.cfg.ReconnectMax
	b.Reset()
	// Jitter can push a wait past MaxInterval; ReconnectMax is a hard ceiling.
	next := func() time.Duration { return min(b.NextBackOff(), l.cfg.ReconnectMax) }

	for attempt := 0; ctx.Err() == nil; attempt++ {
		if attempt > 0 {
			l.counters.reconnects.Add(1)
		}

		l.setState(Connecting)
		client := l.deps.Dial(l.cfg.URL)
		if err := client.Connect(ctx); err != nil {
			client.Close()
			if ctx.Err() != nil {
				return
			}
			l.setState(Disconnected)
			wait := next()
			l.logger.Warn("connect failed", "error", err, "attempt", attempt+1, "retry_in", wait)
			if !l.pause(ctx, wait) {
				return
			}
			continue
		}

		l.setState(Streaming)
		started := time.Now()
		err := l.stream(ctx, workCtx, client)
		if ctx.Err() != nil {
			return
		}

		l.setState(Disconnected)
		if time.Since(started) >= l.cfg.StableAfter {
			b.Reset()
		}
		wait := next()
		l.logger.Warn("stream ended", "error", err, "streamed_for", time.Since(started), "retry_in", wait)
		if !l.pause(ctx, wait) {
			return
		}
	}
}

// stream moves frames from client into the queue until the stream ends or
// ctx is done. On shutdown the socket is closed first and frames already
// read are still handed to the queue.
func (l *Loop) stream(ctx, workCtx context.Context, client connection.Client) error {
	defer client.Close()

	for {
		select {
		case <-ctx.Done():
			l.handoff(workCtx, client)
			return ctx.Err()

		case msg, ok := <-client.Messages():
			if !ok {
				select {
				case err := <-client.Errors():
					return err
				default:
					return errStreamClosed
				}
			}

			f := l.newFrame(msg)
			if !l.queue.Send(ctx, f) {
				// Shutdown began while the queue was full.
				l.enqueue(workCtx, f)
				l.handoff(workCtx, client)
				return ctx.Err()
			}
		}
	}
}

// handoff closes the socket and queues the frames it had already buffered.
func (l *Loop) handoff(workCtx context.Context, client connection.Client) {
	client.Close()
	for msg := range client.Messages() {
		l.enqueue(workCtx, l.newFrame(msg))
	}
}

func (l *Loop) enqueue(workCtx context.Context, f Frame) {
	if !l.queue.Send(workCtx, f) {
		l.abandon(f, errors.New("shutdown deadline reached before frame was queued"))
	}
}

func (l *Loop) newFrame(msg connection.TimestampedMessage) Frame {
	l.counters.frames.Add(1)
	return Frame{
		Seq:        l.seq.Add(1),
		Data:       msg.Data,
		ReceivedAt: msg.ReceivedAt,
	}
}

// dispatch takes frames in order and processes each on its own goroutine,
// at most MaxConcurrency at a time. It returns once the queue is closed and
// drained and every frame has finished.
func (l *Loop) dispatch(workCtx context.Context) {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		f, ok := l.queue.Receive()
		if !ok {
			return
		}
		if err := l.sem.Acquire(workCtx, 1); err != nil {
			l.abandon(f, err)
			continue
		}

		l.counters.inFlight.Add(1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer l.sem.Release(1)
			defer l.counters.inFlight.Add(-1)
			l.process(workCtx, f)
		}()
	}
}

func (l *Loop) abandon(f Frame, reason error) {
	l.counters.abandoned.Add(1)
	l.logger.Error("frame abandoned",
		"seq", f.Seq,
		"reason", reason,
		"raw", string(f.Data),
	)
}

// sleep waits for d or until ctx is done. Returns false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
