package osc

import (
	"errors"
	"fmt"
)

// Decoding errors. Parse functions wrap these with context, so compare with
// errors.Is.
var (
	ErrInvalidHeader    = errors.New("osc: invalid handshake header")
	ErrInvalidTypeTag   = errors.New("osc: invalid handshake type tag")
	ErrInvalidAddress   = errors.New("osc: address must start with '/'")
	ErrMalformedAddress = errors.New("osc: address is not valid UTF-8")
	ErrMissingTypeTag   = errors.New("osc: missing type tag")
	ErrTruncatedMessage = errors.New("osc: truncated message")
	ErrMalformedEntry   = errors.New("osc: malformed status entry")
)

// BindError is returned by Start when one of the server endpoints cannot be
// bound.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("osc: bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// ErrorKind returns a short stable label for err, used in logs and metric
// labels.
func ErrorKind(err error) string {
	var be *BindError
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrInvalidHeader):
		return "invalid_header"
	case errors.Is(err, ErrInvalidTypeTag):
		return "invalid_type_tag"
	case errors.Is(err, ErrInvalidAddress):
		return "invalid_address"
	case errors.Is(err, ErrMalformedAddress):
		return "malformed_address"
	case errors.Is(err, ErrMissingTypeTag):
		return "missing_type_tag"
	case errors.Is(err, ErrTruncatedMessage):
		return "truncated_message"
	case errors.Is(err, ErrMalformedEntry):
		return "malformed_entry"
	case errors.As(err, &be):
		return "bind"
	default:
		return "other"
	}
}
