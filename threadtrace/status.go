// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package threadtrace // import "go.opentelemetry.io/gpu-profiler/threadtrace"

import (
	npsr "go.opentelemetry.io/gpu-profiler/nopanicslicereader"
	"go.opentelemetry.io/gpu-profiler/registers"
)

const (
	// StatusStride is the size of the control data of one shader engine.
	StatusStride = 12

	// writePtrUnit is the number of trace bytes per write pointer increment.
	writePtrUnit = 32
)

// SEStatus is the control data the device stores for one shader engine.
type SEStatus struct {
	Status   uint32
	Counter  uint32
	WritePtr uint32
}

// Wrapped reports whether the trace overran its buffer.
func (s SEStatus) Wrapped() bool {
	return s.Status&registers.ThreadTraceStatusWrapped != 0
}

// DataSize returns the number of trace bytes written by the shader engine.
func (s SEStatus) DataSize() uint64 {
	return uint64(s.WritePtr&registers.ThreadTraceWritePtrMask) * writePtrUnit
}

// ReadStatus decodes the control data of seNum shader engines. Missing bytes
// read as zero.
func ReadStatus(ctrl []byte, seNum uint32) []SEStatus {
	out := make([]SEStatus, seNum)
	for se := range out {
		off := uint(se * StatusStride)
		out[se] = SEStatus{
			Status:   npsr.Uint32(ctrl, off),
			Counter:  npsr.Uint32(ctrl, off+4),
			WritePtr: npsr.Uint32(ctrl, off+8),
		}
	}
	return out
}
