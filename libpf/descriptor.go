// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package libpf // import "go.opentelemetry.io/gpu-profiler/libpf"

import "fmt"

// Descriptor is a borrowed view into caller-owned memory that is visible to
// both the host and the device. Data is the host mapping, Addr the device
// address of Data[0]. A Descriptor never owns the memory it refers to.
type Descriptor struct {
	Addr Address
	Data []byte
}

// NewDescriptor creates a Descriptor for data mapped at the device address addr.
func NewDescriptor(addr Address, data []byte) Descriptor {
	return Descriptor{Addr: addr, Data: data}
}

// Size returns the size of the described region in bytes.
func (d Descriptor) Size() uint64 {
	return uint64(len(d.Data))
}

// IsEmpty reports whether the descriptor refers to no memory at all.
func (d Descriptor) IsEmpty() bool {
	return len(d.Data) == 0
}

// Slice returns the sub-view [off, off+n) of the descriptor.
func (d Descriptor) Slice(off, n uint64) (Descriptor, error) {
	if off > d.Size() || n > d.Size()-off {
		return Descriptor{}, fmt.Errorf("slice [%d, %d) out of range for %d byte buffer",
			off, off+n, d.Size())
	}
	return Descriptor{
		Addr: d.Addr.Add(off),
		Data: d.Data[off : off+n : off+n],
	}, nil
}

func (d Descriptor) String() string {
	return fmt.Sprintf("{addr: %v, size: %d}", d.Addr, d.Size())
}
