// Package writertest provides an in-memory writer.Pool for tests.
package writertest

import (
	"context"
	"sync"
	"time"

	"github.com/rickgao/marketfeed/internal/database"
	"github.com/rickgao/marketfeed/internal/model"
)

// Pool stores rows in memory keyed by Event.Key, with upsert-do-nothing
// semantics. It records call counts and the peak number of concurrent Do
// calls.
type Pool struct {
	// Delay holds each Do for this long before running the query, or until
	// ctx is done.
	Delay time.Duration
	// Fail, when set, is consulted before each upsert; a non-nil return is
	// reported as the query error.
	Fail func(call int, e model.Event) error

	mu          sync.Mutex
	rows        map[string]model.Event
	tradeCalls  int
	klineCalls  int
	calls       int
	inFlight    int
	maxInFlight int
}

// New creates an empty Pool.
func New() *Pool {
	return &Pool{rows: make(map[string]model.Event)}
}

// Do implements writer.Pool.
func (p *Pool) Do(ctx context.Context, fn func(database.Queries) error) error {
	p.mu.Lock()
	p.inFlight++
	if p.inFlight > p.maxInFlight {
		p.maxInFlight = p.inFlight
	}
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.inFlight--
		p.mu.Unlock()
	}()

	if p.Delay > 0 {
		t := time.NewTimer(p.Delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}

	return fn(queries{p})
}

type queries struct{ p *Pool }

func (q queries) UpsertTrade(_ context.Context, t model.Trade) (bool, error) {
	return q.p.upsert(t, func() { q.p.tradeCalls++ })
}

func (q queries) UpsertClosedKline(_ context.Context, k model.Kline) (bool, error) {
	if !k.IsClosed {
		return false, database.ErrKlineOpen
	}
	return q.p.upsert(k, func() { q.p.klineCalls++ })
}

func (p *Pool) upsert(e model.Event, tally func()) (bool, error) {
	p.mu.Lock()
	p.calls++
	call := p.calls
	tally()
	fail := p.Fail
	p.mu.Unlock()

	if fail != nil {
		if err := fail(call, e); err != nil {
			return false, err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.rows[e.Key()]; ok {
		return false, nil
	}
	p.rows[e.Key()] = e
	return true, nil
}

// Rows returns a copy of the stored rows.
func (p *Pool) Rows() map[string]model.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]model.Event, len(p.rows))
	for k, v := range p.rows {
		out[k] = v
	}
	return out
}

// TradeCalls returns the number of UpsertTrade calls.
func (p *Pool) TradeCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tradeCalls
}

// KlineCalls returns the number of UpsertClosedKline calls.
func (p *Pool) KlineCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.klineCalls
}

// MaxInFlight returns the peak number of concurrent Do calls.
func (p *Pool) MaxInFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxInFlight
}
