// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// nopanicslicereader provides little convenience utilities to read device
// written little-endian values from a result buffer at given offset. Zeroes
// are returned on out of bounds access instead of panic.
package nopanicslicereader // import "go.opentelemetry.io/gpu-profiler/nopanicslicereader"

import (
	"encoding/binary"

	"go.opentelemetry.io/gpu-profiler/libpf"
)

// Uint32 reads one 32-bit unsigned integer from given byte slice offset
func Uint32(b []byte, offs uint) uint32 {
	if offs+4 > uint(len(b)) {
		return 0
	}
	return binary.LittleEndian.Uint32(b[offs:])
}

// Uint64 reads one 64-bit unsigned integer from given byte slice offset
func Uint64(b []byte, offs uint) uint64 {
	if offs+8 > uint(len(b)) {
		return 0
	}
	return binary.LittleEndian.Uint64(b[offs:])
}

// Uint64Pair reads a counter sample that the device stored as two separate
// 32-bit copies, low word first. A torn pair (only the low word in bounds)
// reads as zero.
func Uint64Pair(b []byte, offs uint) uint64 {
	if offs+8 > uint(len(b)) {
		return 0
	}
	return uint64(Uint32(b, offs)) | uint64(Uint32(b, offs+4))<<32
}

// Ptr reads one 64-bit device address from given byte slice offset
func Ptr(b []byte, offs uint) libpf.Address {
	return libpf.Address(Uint64(b, offs))
}

// PutUint32 stores v at offs if it fits and reports whether it did.
func PutUint32(b []byte, offs uint, v uint32) bool {
	if offs+4 > uint(len(b)) {
		return false
	}
	binary.LittleEndian.PutUint32(b[offs:], v)
	return true
}
