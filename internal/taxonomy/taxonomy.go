// Package taxonomy defines the small error vocabulary of the device-bridge
// core. Request handling (the control channel, the stream bridge's Open,
// the handshake client's Run) reports failures as one of these kinds.
// Endpoint construction and notification sends (broadcaster.New, the
// handshake endpoint constructors, ServerEndpoint.Announce/SendError,
// deviceserver.New) return the facade's errors unwrapped.
package taxonomy

import "github.com/pkg/errors"

// Kind classifies an Error for callers that need to branch on failure mode
// (e.g. deciding whether to retry) without parsing a message string.
type Kind string

const (
	BadRequest Kind = "bad-request"
	NotFound   Kind = "not-found"
	Conflict   Kind = "conflict"
	IO         Kind = "io"
	Timeout    Kind = "timeout"
	Internal   Kind = "internal"
)

// Error pairs a Kind with a wrapped cause. The cause is preserved (via
// github.com/pkg/errors) so logs keep the original stack context even
// though callers only see the Kind.
type Error struct {
	Kind Kind
	Op   string
	err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return e.Op + ": " + string(e.Kind) + ": " + e.err.Error()
	}
	return string(e.Kind) + ": " + e.err.Error()
}

func (e *Error) Unwrap() error { return e.err }

// New wraps err with a Kind and an operation label describing where the
// failure was classified (e.g. "handshake.client.consume").
func New(kind Kind, op string, err error) *Error {
	if err == nil {
		err = errors.New(string(kind))
	}
	return &Error{Kind: kind, Op: op, err: errors.WithStack(err)}
}

// Is reports whether err (or anything it wraps) is a *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var te *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			te = e
			break
		}
		err = errors.Unwrap(err)
	}
	return te != nil && te.Kind == kind
}
