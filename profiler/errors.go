// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package profiler // import "go.opentelemetry.io/gpu-profiler/profiler"

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/gpu-profiler/blockcatalog"
	"go.opentelemetry.io/gpu-profiler/cmdbuffer"
	"go.opentelemetry.io/gpu-profiler/factory"
	"go.opentelemetry.io/gpu-profiler/perfcounter"
	"go.opentelemetry.io/gpu-profiler/threadtrace"
)

var (
	// ErrInfoBreak returned from a Callback stops IterateResults early. It
	// is not reported as an error.
	ErrInfoBreak = errors.New("info break")
	// ErrInvalidParameter is returned for out of range profile parameters
	// under the RejectInvalid policy and for malformed requests.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrTraceWrapped is returned when thread trace results are requested for
	// a capture that overran its buffer.
	ErrTraceWrapped = errors.New("thread trace buffer wrapped")
)

// Kind classifies the errors returned by the Profiler.
type Kind uint8

const (
	KindInternal Kind = iota
	KindInvalidEvent
	KindBufferTooSmall
	KindInvalidOperation
	KindUnsupportedAgent
	KindDataSizeZero
	KindInvalidParameter
	KindTraceWrapped
)

func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "internal error"
	case KindInvalidEvent:
		return "invalid event"
	case KindBufferTooSmall:
		return "buffer too small"
	case KindInvalidOperation:
		return "invalid operation"
	case KindUnsupportedAgent:
		return "unsupported agent"
	case KindDataSizeZero:
		return "data size zero"
	case KindInvalidParameter:
		return "invalid parameter"
	case KindTraceWrapped:
		return "trace wrapped"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Error is the error type returned by all Profiler operations.
type Error struct {
	Kind Kind
	// Op is the operation that failed, e.g. "BeginProfile".
	Op string
	// Event is set for KindInvalidEvent.
	Event *blockcatalog.Event
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// kinds maps the sentinel errors of the lower layers to error kinds. The
// first match wins.
var kinds = []struct {
	err  error
	kind Kind
}{
	{blockcatalog.ErrInvalidEvent, KindInvalidEvent},
	{cmdbuffer.ErrBufferTooSmall, KindBufferTooSmall},
	{perfcounter.ErrOutputTooSmall, KindBufferTooSmall},
	{threadtrace.ErrDataBuffer, KindBufferTooSmall},
	{perfcounter.ErrInvalidOperation, KindInvalidOperation},
	{threadtrace.ErrInvalidState, KindInvalidOperation},
	{cmdbuffer.ErrNoLayout, KindInvalidOperation},
	{factory.ErrUnsupportedAgent, KindUnsupportedAgent},
	{perfcounter.ErrDataSizeZero, KindDataSizeZero},
	{ErrInvalidParameter, KindInvalidParameter},
	{ErrTraceWrapped, KindTraceWrapped},
}

// KindOf returns the kind of err. Errors not produced by the Profiler are
// KindInternal.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

func classify(op string, err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	e := &Error{Kind: KindOf(err), Op: op, Err: err}
	var evErr *blockcatalog.EventError
	if errors.As(err, &evErr) {
		ev := evErr.Event
		e.Event = &ev
	}
	return e
}

func errorf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
