package deadletter

import (
	"context"
	"errors"
)

// Fanout records to every sink. It fails if any sink fails, so a frame is
// only considered preserved once all destinations hold it.
type Fanout []Sink

func (f Fanout) Record(ctx context.Context, raw []byte, cause string) error {
	var errs []error
	for _, s := range f {
		if err := s.Record(ctx, raw, cause); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, s := range f {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
