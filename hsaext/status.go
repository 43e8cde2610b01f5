// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package hsaext adapts the Profiler to the two generations of the HSA
// profiling extension table. Both adapters translate errors into HSA status
// codes and keep their own last error message; neither holds profiling
// state.
package hsaext // import "go.opentelemetry.io/gpu-profiler/hsaext"

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/gpu-profiler/profiler"
)

// Status is an hsa_status_t value.
type Status uint32

const (
	StatusSuccess         Status = 0x0
	StatusInfoBreak       Status = 0x1
	StatusError           Status = 0x1000
	StatusInvalidArgument Status = 0x1001
	StatusInvalidAgent    Status = 0x1004
	StatusOutOfResources  Status = 0x1008
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "HSA_STATUS_SUCCESS"
	case StatusInfoBreak:
		return "HSA_STATUS_INFO_BREAK"
	case StatusError:
		return "HSA_STATUS_ERROR"
	case StatusInvalidArgument:
		return "HSA_STATUS_ERROR_INVALID_ARGUMENT"
	case StatusInvalidAgent:
		return "HSA_STATUS_ERROR_INVALID_AGENT"
	case StatusOutOfResources:
		return "HSA_STATUS_ERROR_OUT_OF_RESOURCES"
	default:
		return fmt.Sprintf("hsa_status(0x%x)", uint32(s))
	}
}

// CallbackError carries a failure status returned by a result callback out
// of the iteration.
type CallbackError struct {
	Status Status
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("callback returned %v", e.Status)
}

// callbackResult turns a callback status into the error IterateResults
// expects.
func callbackResult(s Status) error {
	switch s {
	case StatusSuccess:
		return nil
	case StatusInfoBreak:
		return profiler.ErrInfoBreak
	default:
		return &CallbackError{Status: s}
	}
}

// StatusOf maps an error returned by the Profiler to a status code.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var cbErr *CallbackError
	if errors.As(err, &cbErr) {
		return cbErr.Status
	}
	if errors.Is(err, profiler.ErrInfoBreak) {
		return StatusInfoBreak
	}
	switch profiler.KindOf(err) {
	case profiler.KindInvalidEvent, profiler.KindInvalidParameter:
		return StatusInvalidArgument
	case profiler.KindBufferTooSmall:
		return StatusOutOfResources
	case profiler.KindUnsupportedAgent:
		return StatusInvalidAgent
	default:
		return StatusError
	}
}
