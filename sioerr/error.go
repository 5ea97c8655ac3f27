// Package sioerr provides the wrapped-error type used across the client's
// transport, engine, manager, and socket layers so that failures can carry
// a classification, an underlying cause, and request context without ever
// panicking across the public emitter boundary.
package sioerr

import "context"

// Kind classifies where an Error originated.
type Kind string

const (
	KindTransport Kind = "TransportError"
	KindEngine    Kind = "EngineError"
	KindManager   Kind = "ManagerError"
	KindSocket    Kind = "SocketError"
)

// Error is a classified, context-carrying wrapped error.
type Error struct {
	Message string
	Cause   error
	Kind    Kind
	Context context.Context
}

// New builds an Error of the given kind. cause and ctx may be nil.
func New(kind Kind, message string, cause error, ctx context.Context) *Error {
	return &Error{Message: message, Cause: cause, Kind: kind, Context: ctx}
}

// Error implements the error interface.
func (e *Error) Error() string { return e.Message }

// Unwrap exposes the underlying cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }
