package codec

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrMalformed    = errors.New("malformed frame")
	ErrUnknownEvent = errors.New("unknown event type")
	ErrMissingField = errors.New("missing required field")
	ErrInvalidField = errors.New("invalid field")
)

// DecodeError reports a frame that could not be decoded. Raw is a copy of the
// frame exactly as received.
type DecodeError struct {
	Raw   []byte
	Cause string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode frame: %s", e.Cause)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
