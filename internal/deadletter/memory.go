package deadletter

import (
	"context"
	"sync"
)

// Memory keeps records in process. Used by tests and feedtap.
type Memory struct {
	// Err, when set, is returned by Record instead of storing.
	Err error

	mu      sync.Mutex
	records []Record
}

// NewMemory creates an empty Memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Record(_ context.Context, raw []byte, cause string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.records = append(m.records, NewRecord("memory", raw, cause))
	return nil
}

func (m *Memory) Close() error { return nil }

// Records returns a copy of everything recorded so far.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}

// Len returns the number of records.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
