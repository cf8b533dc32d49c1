package writer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rickgao/marketfeed/internal/database"
)

// Pool runs fn with queries bound to one pooled connection and releases the
// connection when fn returns. Implemented by database.Store.
type Pool interface {
	Do(ctx context.Context, fn func(database.Queries) error) error
}

// Outcome is the result of Persist. The zero value is Failed, so an Outcome
// read without checking the error never looks like success.
type Outcome int

const (
	// Failed accompanies every non-nil error from Persist.
	Failed Outcome = iota
	// Inserted means the event's row exists in the store, whether this call
	// created it or an earlier delivery did.
	Inserted
	// Skipped means the event is not history (an open kline) and was not written.
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Failed:
		return "failed"
	case Inserted:
		return "inserted"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ErrorKind classifies a persistence failure.
type ErrorKind int

const (
	// Transient failures (connection loss, timeouts, pool exhaustion) are safe to retry.
	Transient ErrorKind = iota
	// Constraint failures reject this row only. The loop continues.
	Constraint
	// Fatal failures mean the store and the code disagree on schema or types.
	Fatal
)

func (k ErrorKind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Constraint:
		return "constraint"
	case Fatal:
		return "fatal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// PersistError is returned by Persist for every failure.
type PersistError struct {
	Kind ErrorKind
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Kind, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// ErrUnsupportedEvent is returned for an Event variant the sink cannot write.
var ErrUnsupportedEvent = errors.New("unsupported event type")

// Config controls per-write timeouts and retry.
type Config struct {
	WriteTimeout time.Duration // per attempt, acquisition included
	MaxAttempts  int
	RetryMinWait time.Duration
	RetryMaxWait time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 5 * time.Second,
		MaxAttempts:  5,
		RetryMinWait: 100 * time.Millisecond,
		RetryMaxWait: 5 * time.Second,
	}
}

// Stats counts sink outcomes.
type Stats struct {
	Inserts          int64
	Conflicts        int64
	Skipped          int64
	Retries          int64
	TransientErrors  int64
	ConstraintErrors int64
	FatalErrors      int64
}
