package deadletter

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSink_WritesRawBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dead.jsonl")
	s := NewFileSink("test", FileConfig{Path: path, MaxSizeMB: 1})

	frames := [][]byte{
		[]byte(`{"e":"trade",`),
		{0xff, 0xfe, 0x00, '{'},
	}
	for _, f := range frames {
		require.NoError(t, s.Record(context.Background(), f, "malformed"))
	}
	require.NoError(t, s.Close())

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var got []Record
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		r, err := Unmarshal(sc.Bytes())
		require.NoError(t, err)
		got = append(got, r)
	}
	require.NoError(t, sc.Err())

	require.Len(t, got, 2)
	for i, r := range got {
		assert.Equal(t, frames[i], r.Raw)
		assert.Equal(t, "malformed", r.Cause)
		assert.Equal(t, "test", r.Source)
		assert.NotZero(t, r.ID)
	}
	assert.NotEqual(t, got[0].ID, got[1].ID)
}

func TestFileSink_RecordAfterClose(t *testing.T) {
	s := NewFileSink("test", FileConfig{Path: filepath.Join(t.TempDir(), "d.jsonl")})
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Record(context.Background(), []byte("x"), "c"), ErrClosed)
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaSink_Record(t *testing.T) {
	fw := &fakeWriter{}
	s := &KafkaSink{source: "ingestor-1", w: fw}

	raw := []byte(`not json`)
	require.NoError(t, s.Record(context.Background(), raw, "decode frame: malformed"))
	require.Len(t, fw.msgs, 1)

	msg := fw.msgs[0]
	rec, err := Unmarshal(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, raw, rec.Raw)
	assert.Equal(t, rec.ID.String(), string(msg.Key))
	assert.Contains(t, msg.Headers, kafka.Header{Key: "cause", Value: []byte("decode frame: malformed")})

	require.NoError(t, s.Close())
	assert.True(t, fw.closed)
}

func TestNewKafkaSink_WritesWithoutBatching(t *testing.T) {
	s := NewKafkaSink("ingestor-1", KafkaConfig{
		Brokers:      []string{"localhost:9092"},
		Topic:        "marketfeed.dead-letter",
		WriteTimeout: time.Second,
	})
	defer s.Close()

	w, ok := s.w.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, 1, w.BatchSize)
	assert.LessOrEqual(t, w.BatchTimeout, 10*time.Millisecond)
	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)
	assert.Equal(t, "marketfeed.dead-letter", w.Topic)
}

func TestKafkaSink_PublishError(t *testing.T) {
	boom := errors.New("broker down")
	s := &KafkaSink{source: "x", w: &fakeWriter{err: boom}}
	assert.ErrorIs(t, s.Record(context.Background(), []byte("x"), "c"), boom)
}

func TestFanout(t *testing.T) {
	a, b := NewMemory(), NewMemory()
	boom := errors.New("disk full")
	b.Err = boom

	f := Fanout{a, b}
	err := f.Record(context.Background(), []byte("raw"), "cause")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, a.Len())

	b.Err = nil
	require.NoError(t, f.Record(context.Background(), []byte("raw2"), "cause"))
	assert.Equal(t, 2, a.Len())
	assert.Equal(t, 1, b.Len())
	assert.NoError(t, f.Close())
}

func TestMemory_CopiesRaw(t *testing.T) {
	m := NewMemory()
	raw := []byte("abc")
	require.NoError(t, m.Record(context.Background(), raw, "c"))
	raw[0] = 'z'
	assert.Equal(t, []byte("abc"), m.Records()[0].Raw)
}
