// Package kmerr defines the error kinds shared across the language front
// end, the key model and the runtime (spec §7).
package kmerr

import (
	"errors"
	"fmt"
)

// Kind is one of the error kinds enumerated in spec §7.
type Kind string

const (
	KindParse            Kind = "ParseError"
	KindUnboundVariable   Kind = "UnboundVariable"
	KindTypeMismatch      Kind = "TypeMismatch"
	KindArity             Kind = "ArityError"
	KindBadKeyName        Kind = "BadKeyName"
	KindBadArgument        Kind = "BadArgument"
	KindDeviceUnavailable Kind = "DeviceUnavailable"
	KindRuntimeAbort      Kind = "RuntimeAbort"
)

// Error carries a kind, an optional 1-based source location, and a message.
// Line/Col are zero when the error has no associated source position (e.g.
// device errors).
type Error struct {
	Kind Kind
	Line int
	Col  int
	Msg  string
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s at %d:%d: %s", e.Kind, e.Line, e.Col, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func New(kind Kind, format string, a ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, a...)}
}

func NewAt(kind Kind, line, col int, format string, a ...any) *Error {
	return &Error{Kind: kind, Line: line, Col: col, Msg: fmt.Sprintf(format, a...)}
}

// ErrBadKeyName is wrapped (via fmt.Errorf %w) by call sites that don't
// have a source location handy, such as the key model's sequence parser.
// Promote it to a *Error with As(err, KindBadKeyName) once a location is
// known.
var ErrBadKeyName = errors.New(string(KindBadKeyName))

// As promotes a plain error into a *Error of the given kind, preserving the
// original message. If err is already a *Error its Kind/Line/Col pass
// through unchanged.
func As(err error, kind Kind) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: kind, Msg: err.Error()}
}
