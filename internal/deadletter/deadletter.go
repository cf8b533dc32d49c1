// Package deadletter preserves frames the pipeline could not process.
//
// A Sink receives the original bytes and a cause. Records are never
// re-encoded lossily: the raw frame is kept byte for byte.
package deadletter

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// Sink accepts dead-lettered frames.
type Sink interface {
	Record(ctx context.Context, raw []byte, cause string) error
	Close() error
}

// Record is one dead-lettered frame as written by the file and Kafka sinks.
// Raw is base64 in JSON so non-UTF-8 frames survive intact.
type Record struct {
	ID         uuid.UUID `json:"id"`
	Source     string    `json:"source"`
	Cause      string    `json:"cause"`
	Raw        []byte    `json:"raw"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ErrClosed is returned by Record after Close.
var ErrClosed = errors.New("dead-letter sink closed")

var api = sonic.ConfigStd

// NewRecord builds a Record with a fresh ID. raw is copied.
func NewRecord(source string, raw []byte, cause string) Record {
	return Record{
		ID:         uuid.New(),
		Source:     source,
		Cause:      cause,
		Raw:        bytes.Clone(raw),
		RecordedAt: time.Now().UTC(),
	}
}

// Marshal encodes r as a single JSON line without the trailing newline.
func (r Record) Marshal() ([]byte, error) {
	return api.Marshal(r)
}

// Unmarshal decodes one JSON line written by Marshal.
func Unmarshal(line []byte) (Record, error) {
	var r Record
	err := api.Unmarshal(line, &r)
	return r, err
}
