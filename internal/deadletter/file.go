package deadletter

import (
	"context"
	"fmt"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig configures a rotating JSON-lines file.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// FileSink appends one JSON record per line to a rotating file.
type FileSink struct {
	source string

	mu     sync.Mutex
	out    *lumberjack.Logger
	closed bool
}

// NewFileSink opens path lazily on the first Record.
func NewFileSink(source string, cfg FileConfig) *FileSink {
	return &FileSink{
		source: source,
		out: &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		},
	}
}

// Record appends one line. A returned nil means the write reached the file.
func (s *FileSink) Record(_ context.Context, raw []byte, cause string) error {
	line, err := NewRecord(s.source, raw, cause).Marshal()
	if err != nil {
		return fmt.Errorf("encode dead-letter record: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, err := s.out.Write(line); err != nil {
		return fmt.Errorf("write dead-letter file: %w", err)
	}
	return nil
}

// Close closes the current file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.out.Close()
}
