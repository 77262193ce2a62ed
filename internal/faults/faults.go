package faults

import (
	"errors"
	"fmt"
)

// Kind is a stable machine-readable failure code.
type Kind string

const (
	// KindInput marks a missing or malformed caller parameter.
	KindInput Kind = "input"
	// KindNotFound marks an unknown symbol or an empty upstream payload for a
	// window that should have data.
	KindNotFound Kind = "not_found"
	// KindInsufficientData marks a historical series too short to fit a model.
	KindInsufficientData Kind = "insufficient_data"
	// KindUpstreamTimeout marks a market-data request that exceeded its deadline.
	KindUpstreamTimeout Kind = "upstream_timeout"
	// KindUpstreamUnavailable marks any other market-data transport failure.
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	// KindZeroActual marks an accuracy computation rejected because the realized
	// value is zero.
	KindZeroActual Kind = "zero_actual"
	// KindInternal marks everything else.
	KindInternal Kind = "internal"
)

// Error carries a failure kind together with the symbol and pipeline stage at
// which it occurred. Every failure path in the pipeline surfaces as one of
// these; none are free-text passthroughs.
type Error struct {
	Kind   Kind
	Stage  string
	Symbol string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Symbol != "" {
		return fmt.Sprintf("%s: %s: %s: %s", e.Stage, e.Kind, e.Symbol, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Stage, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a fault with a formatted message.
func New(kind Kind, stage, symbol, format string, args ...any) *Error {
	return &Error{Kind: kind, Stage: stage, Symbol: symbol, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind and context to an underlying error.
func Wrap(err error, kind Kind, stage, symbol string) *Error {
	return &Error{Kind: kind, Stage: stage, Symbol: symbol, Err: err}
}

// KindOf extracts the kind from err, or KindInternal when err is not a fault.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}
