package worker

import (
	"fmt"

	"github.com/sourcekitd/langworker/sourcekitd"
)

// ErrorKind tags a worker-level error at the LSP boundary (spec §7).
type ErrorKind int

const (
	ErrorCancelled ErrorKind = iota
	ErrorInvalidRequest
	ErrorNotFound
	ErrorUnknown
	ErrorConnectionInterrupted
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorCancelled:
		return "cancelled"
	case ErrorInvalidRequest:
		return "invalid_request"
	case ErrorNotFound:
		return "not_found"
	case ErrorUnknown:
		return "unknown"
	case ErrorConnectionInterrupted:
		return "connection_interrupted"
	default:
		return "unknown"
	}
}

// Error is what every Worker operation returns instead of a bare error, so
// callers can map it onto the right LSP error code rather than guessing
// from a message string (spec §7, §9 "sum types everywhere").
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func errUnknown(msg string) *Error {
	return &Error{Kind: ErrorUnknown, Msg: msg}
}

func errNotFound(msg string) *Error {
	return &Error{Kind: ErrorNotFound, Msg: msg}
}

func errInvalidRequest(msg string) *Error {
	return &Error{Kind: ErrorInvalidRequest, Msg: msg}
}

// fromSourcekitd translates a sourcekitd.Error into a worker.Error,
// preserving the connection_interrupted case so the caller can tell the
// state machine already handled it (spec §7 "do not surface a per-request
// error if the client will retry after re-open").
func fromSourcekitd(err error) *Error {
	if sk, ok := err.(*sourcekitd.Error); ok {
		if sk.Kind == sourcekitd.ErrorConnectionInterrupted {
			return &Error{Kind: ErrorConnectionInterrupted, Msg: sk.Msg}
		}
		return errUnknown(sk.Error())
	}
	return errUnknown(err.Error())
}
