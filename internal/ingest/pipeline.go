package ingest

import (
	"context"
	"errors"

	"github.com/rickgao/marketfeed/internal/codec"
	"github.com/rickgao/marketfeed/internal/model"
	"github.com/rickgao/marketfeed/internal/normalize"
	"github.com/rickgao/marketfeed/internal/writer"
)

// process runs one frame through decode, normalize, and persist.
func (l *Loop) process(ctx context.Context, f Frame) {
	w, err := codec.Decode(f.Data)
	if err != nil {
		l.counters.decodeErrors.Add(1)
		l.deadLetter(ctx, f, "", err.Error())
		return
	}
	l.counters.decoded.Add(1)

	e, ok := normalize.Normalize(w)
	if !ok {
		l.counters.filtered.Add(1)
		if k, open := normalize.OpenKline(w); open {
			l.project(ctx, k)
		}
		l.ack(f, ResultFiltered)
		return
	}

	out, err := l.deps.Sink.Persist(ctx, e)
	if err == nil {
		switch out {
		case writer.Skipped:
			l.counters.skipped.Add(1)
			l.ack(f, ResultSkipped)
		default:
			l.counters.inserted.Add(1)
			l.ack(f, ResultInserted)
		}
		return
	}

	if ctx.Err() != nil {
		// Shutdown deadline cancelled the write. The frame was neither stored
		// nor rejected.
		l.abandon(f, err)
		return
	}

	var pe *writer.PersistError
	if errors.As(err, &pe) && pe.Kind == writer.Fatal {
		l.counters.fatal.Add(1)
		l.logger.Error("fatal persistence error, halting",
			"seq", f.Seq,
			"key", e.Key(),
			"error", err,
			"raw", string(f.Data),
		)
		l.fail(err)
		return
	}

	l.deadLetter(ctx, f, e.Key(), err.Error())
}

// deadLetter preserves a frame that cannot be stored. If the dead-letter
// sink itself fails, the raw frame is still in the error log and the frame
// is not acknowledged.
func (l *Loop) deadLetter(ctx context.Context, f Frame, key, cause string) {
	if err := l.deps.DeadLetter.Record(ctx, f.Data, cause); err != nil {
		l.counters.deadLetterFailures.Add(1)
		l.logger.Error("dead-letter write failed",
			"seq", f.Seq,
			"key", key,
			"cause", cause,
			"error", err,
			"raw", string(f.Data),
		)
		return
	}

	l.counters.deadLettered.Add(1)
	l.logger.Warn("frame dead-lettered",
		"seq", f.Seq,
		"key", key,
		"cause", cause,
		"raw", string(f.Data),
	)
	l.ack(f, ResultDeadLettered)
}

// project writes an open kline to the live projection. Failures are logged
// and counted only.
func (l *Loop) project(ctx context.Context, k model.Kline) {
	if l.deps.Live == nil {
		return
	}
	if err := l.deps.Live.Update(ctx, k); err != nil {
		l.counters.liveFailures.Add(1)
		l.logger.Warn("live projection failed", "key", k.Key(), "error", err)
		return
	}
	l.counters.liveUpdates.Add(1)
}

func (l *Loop) ack(f Frame, r Result) {
	if l.deps.Ack != nil {
		l.deps.Ack.Ack(f, r)
	}
}
