package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rickgao/marketfeed/internal/connection"
	"github.com/rickgao/marketfeed/internal/deadletter"
	"github.com/rickgao/marketfeed/internal/model"
	"github.com/rickgao/marketfeed/internal/writer"
)

// Errors
var (
	// ErrFatal wraps the persistence error that halted the loop.
	ErrFatal          = errors.New("fatal persistence error")
	ErrAlreadyRunning = errors.New("loop already running")
	errStreamClosed   = errors.New("stream closed")
)

// State is the loop's connection lifecycle state.
type State int32

const (
	Disconnected State = iota
	Connecting
	Streaming
	Draining
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case Draining:
		return "draining"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Frame is one message read from the feed.
type Frame struct {
	Seq        uint64 // per-loop arrival order
	Data       []byte
	ReceivedAt time.Time
}

// Result is the terminal outcome of a frame.
type Result int

const (
	ResultInserted Result = iota
	ResultFiltered
	ResultSkipped
	ResultDeadLettered
)

func (r Result) String() string {
	switch r {
	case ResultInserted:
		return "inserted"
	case ResultFiltered:
		return "filtered"
	case ResultSkipped:
		return "skipped"
	case ResultDeadLettered:
		return "dead_lettered"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Acknowledger is told about each frame once its outcome is final. Frames
// that are abandoned or hit a fatal error are never acknowledged.
// Calls may come from several goroutines and out of arrival order.
type Acknowledger interface {
	Ack(f Frame, r Result)
}

// AckFunc adapts a function to Acknowledger.
type AckFunc func(Frame, Result)

func (fn AckFunc) Ack(f Frame, r Result) { fn(f, r) }

// Persister writes canonical events. Implemented by *writer.Sink.
type Persister interface {
	Persist(ctx context.Context, e model.Event) (writer.Outcome, error)
}

// LiveProjector receives open klines. Implemented by *live.Projection.
type LiveProjector interface {
	Update(ctx context.Context, k model.Kline) error
}

// Dialer creates an unconnected client for url.
type Dialer func(url string) connection.Client

// Deps are the loop's collaborators. Sink and DeadLetter are required.
type Deps struct {
	Sink       Persister
	DeadLetter deadletter.Sink
	Live       LiveProjector // optional
	Ack        Acknowledger  // optional
	Dial       Dialer        // optional, defaults to connection.NewClient
}

// Config controls the loop.
type Config struct {
	URL    string                  // full stream URL, reused on reconnect
	Client connection.ClientConfig // URL field is ignored

	MaxConcurrency  int
	QueueSize       int
	ReconnectMin    time.Duration
	ReconnectMax    time.Duration
	StableAfter     time.Duration // streaming this long resets reconnect backoff
	ShutdownTimeout time.Duration
}

// DefaultConfig returns production defaults for url.
func DefaultConfig(url string) Config {
	return Config{
		URL:             url,
		Client:          connection.DefaultClientConfig(),
		MaxConcurrency:  4,
		QueueSize:       1024,
		ReconnectMin:    time.Second,
		ReconnectMax:    time.Minute,
		StableAfter:     30 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Stats is a point-in-time snapshot of loop counters.
type Stats struct {
	Frames             int64
	Decoded            int64
	DecodeErrors       int64
	Filtered           int64
	Inserted           int64
	Skipped            int64
	DeadLettered       int64
	DeadLetterFailures int64
	Abandoned          int64
	Fatal              int64
	LiveUpdates        int64
	LiveFailures       int64
	Reconnects         int64
	QueueDepth         int
	QueueCapacity      int
	Queued             int64 // frames accepted by the queue
	Dequeued           int64 // frames handed to the dispatcher
	InFlight           int64
}
