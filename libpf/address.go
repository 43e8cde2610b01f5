// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package libpf // import "go.opentelemetry.io/gpu-profiler/libpf"

import "fmt"

// Address represents a device-visible virtual address.
type Address uint64

// Lo32 returns the low 32 bits of the address.
func (adr Address) Lo32() uint32 {
	return uint32(adr)
}

// Hi32 returns the high 32 bits of the address.
func (adr Address) Hi32() uint32 {
	return uint32(adr >> 32)
}

// IsAligned reports whether the address is a multiple of align, which must be
// a power of two.
func (adr Address) IsAligned(align uint64) bool {
	return uint64(adr)&(align-1) == 0
}

// Add returns the address offset by n bytes.
func (adr Address) Add(n uint64) Address {
	return adr + Address(n)
}

func (adr Address) String() string {
	return fmt.Sprintf("0x%x", uint64(adr))
}

// AlignUp rounds v up to the next multiple of align. align must be a power of two.
func AlignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}

// AlignDown rounds v down to a multiple of align. align must be a power of two.
func AlignDown(v, align uint64) uint64 {
	return v &^ (align - 1)
}
