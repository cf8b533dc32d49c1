package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/rickgao/marketfeed/internal/database"
	"github.com/rickgao/marketfeed/internal/ingest"
	"github.com/rickgao/marketfeed/internal/writer"
)

const namespace = "marketfeed"

// LoopSource is implemented by *ingest.Loop.
type LoopSource interface {
	Stats() ingest.Stats
	State() ingest.State
}

// SinkSource is implemented by *writer.Sink.
type SinkSource interface {
	Stats() writer.Stats
}

// PoolSource is implemented by *database.Store.
type PoolSource interface {
	Stats() database.PoolStats
}

// LiveSource is implemented by *live.Projection.
type LiveSource interface {
	Writes() int64
	Failures() int64
}

// Sources are the components to export. Nil sources are skipped.
type Sources struct {
	Loop LoopSource
	Sink SinkSource
	Pool PoolSource
	Live LiveSource
}

// NewRegistry creates a registry with Go runtime, process, and ingestor
// collectors.
func NewRegistry(src Sources) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}
	if err := Register(reg, src); err != nil {
		return nil, err
	}
	return reg, nil
}

// Register adds collectors for every non-nil source.
func Register(reg prometheus.Registerer, src Sources) error {
	var cs []prometheus.Collector
	if src.Loop != nil {
		cs = append(cs, loopCollectors(src.Loop)...)
	}
	if src.Sink != nil {
		cs = append(cs, sinkCollectors(src.Sink)...)
	}
	if src.Pool != nil {
		cs = append(cs, poolCollectors(src.Pool)...)
	}
	if src.Live != nil {
		cs = append(cs, liveCollectors(src.Live)...)
	}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func counter(subsystem, name, help string, labels prometheus.Labels, fn func() int64) prometheus.Collector {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: labels,
	}, func() float64 { return float64(fn()) })
}

func gauge(subsystem, name, help string, fn func() float64) prometheus.Collector {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, fn)
}

func loopCollectors(l LoopSource) []prometheus.Collector {
	const sub = "ingest"
	outcome := func(o string, fn func(ingest.Stats) int64) prometheus.Collector {
		return counter(sub, "frames_processed_total", "Frames by terminal outcome.",
			prometheus.Labels{"outcome": o}, func() int64 { return fn(l.Stats()) })
	}
	return []prometheus.Collector{
		counter(sub, "frames_total", "Frames read from the feed.", nil,
			func() int64 { return l.Stats().Frames }),
		outcome("inserted", func(s ingest.Stats) int64 { return s.Inserted }),
		outcome("filtered", func(s ingest.Stats) int64 { return s.Filtered }),
		outcome("skipped", func(s ingest.Stats) int64 { return s.Skipped }),
		outcome("dead_lettered", func(s ingest.Stats) int64 { return s.DeadLettered }),
		outcome("abandoned", func(s ingest.Stats) int64 { return s.Abandoned }),
		outcome("fatal", func(s ingest.Stats) int64 { return s.Fatal }),
		counter(sub, "decode_errors_total", "Frames that failed to decode.", nil,
			func() int64 { return l.Stats().DecodeErrors }),
		counter(sub, "dead_letter_failures_total", "Dead-letter writes that failed.", nil,
			func() int64 { return l.Stats().DeadLetterFailures }),
		counter(sub, "reconnects_total", "Connection attempts after the first.", nil,
			func() int64 { return l.Stats().Reconnects }),
		gauge(sub, "queue_depth", "Frames waiting for a worker.",
			func() float64 { return float64(l.Stats().QueueDepth) }),
		gauge(sub, "queue_capacity", "Queue capacity.",
			func() float64 { return float64(l.Stats().QueueCapacity) }),
		counter(sub, "queue_accepted_total", "Frames accepted by the queue.", nil,
			func() int64 { return l.Stats().Queued }),
		gauge(sub, "in_flight", "Frames being processed.",
			func() float64 { return float64(l.Stats().InFlight) }),
		gauge(sub, "state", "Loop state: 0 disconnected, 1 connecting, 2 streaming, 3 draining.",
			func() float64 { return float64(l.State()) }),
	}
}

func sinkCollectors(s SinkSource) []prometheus.Collector {
	const sub = "sink"
	write := func(r string, fn func(writer.Stats) int64) prometheus.Collector {
		return counter(sub, "writes_total", "Persist calls by result.",
			prometheus.Labels{"result": r}, func() int64 { return fn(s.Stats()) })
	}
	failure := func(k string, fn func(writer.Stats) int64) prometheus.Collector {
		return counter(sub, "errors_total", "Persist failures by kind.",
			prometheus.Labels{"kind": k}, func() int64 { return fn(s.Stats()) })
	}
	return []prometheus.Collector{
		write("inserted", func(st writer.Stats) int64 { return st.Inserts }),
		write("conflict", func(st writer.Stats) int64 { return st.Conflicts }),
		write("skipped", func(st writer.Stats) int64 { return st.Skipped }),
		failure("transient", func(st writer.Stats) int64 { return st.TransientErrors }),
		failure("constraint", func(st writer.Stats) int64 { return st.ConstraintErrors }),
		failure("fatal", func(st writer.Stats) int64 { return st.FatalErrors }),
		counter(sub, "retries_total", "Write attempts retried after a transient failure.", nil,
			func() int64 { return s.Stats().Retries }),
	}
}

func poolCollectors(p PoolSource) []prometheus.Collector {
	const sub = "db_pool"
	return []prometheus.Collector{
		gauge(sub, "max_conns", "Configured pool size.",
			func() float64 { return float64(p.Stats().MaxConns) }),
		gauge(sub, "total_conns", "Open connections.",
			func() float64 { return float64(p.Stats().TotalConns) }),
		gauge(sub, "acquired_conns", "Connections in use.",
			func() float64 { return float64(p.Stats().AcquiredConns) }),
		gauge(sub, "idle_conns", "Idle connections.",
			func() float64 { return float64(p.Stats().IdleConns) }),
	}
}

func liveCollectors(l LiveSource) []prometheus.Collector {
	const sub = "live"
	return []prometheus.Collector{
		counter(sub, "writes_total", "Open klines written to Redis.", nil, l.Writes),
		counter(sub, "failures_total", "Failed Redis writes.", nil, l.Failures),
	}
}
