// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package aql defines the fixed 64 byte queue packets used to hand command
// streams to the device.
package aql // import "go.opentelemetry.io/gpu-profiler/aql"

import (
	"encoding/binary"
	"fmt"
)

// PacketSize is the size of every queue slot.
const PacketSize = 64

// PacketType is the type field of a packet header.
type PacketType uint16

const (
	TypeVendorSpecific PacketType = 0
	TypeInvalid        PacketType = 1
	TypeKernelDispatch PacketType = 2
	TypeBarrierAnd     PacketType = 3
	TypeAgentDispatch  PacketType = 4
	TypeBarrierOr      PacketType = 5
)

// FenceScope is the memory scope of an acquire or release fence.
type FenceScope uint16

const (
	ScopeNone   FenceScope = 0
	ScopeAgent  FenceScope = 1
	ScopeSystem FenceScope = 2
)

const (
	headerBarrierBit          = 8
	headerAcquireFenceShift   = 9
	headerReleaseFenceShift   = 11
	headerFenceScopeFieldMask = 0x3
)

// VendorFormatPM4IB marks a vendor packet whose PM4 command field holds an
// indirect buffer jump.
const VendorFormatPM4IB uint16 = 1

// MakeHeader composes a packet header.
func MakeHeader(t PacketType, barrier bool, acquire, release FenceScope) uint16 {
	h := uint16(t) & 0xff
	if barrier {
		h |= 1 << headerBarrierBit
	}
	h |= uint16(acquire&headerFenceScopeFieldMask) << headerAcquireFenceShift
	h |= uint16(release&headerFenceScopeFieldMask) << headerReleaseFenceShift
	return h
}

// HeaderType extracts the packet type from a header.
func HeaderType(h uint16) PacketType {
	return PacketType(h & 0xff)
}

// HeaderAcquire extracts the acquire fence scope from a header.
func HeaderAcquire(h uint16) FenceScope {
	return FenceScope(h>>headerAcquireFenceShift) & headerFenceScopeFieldMask
}

// HeaderRelease extracts the release fence scope from a header.
func HeaderRelease(h uint16) FenceScope {
	return FenceScope(h>>headerReleaseFenceShift) & headerFenceScopeFieldMask
}

// VendorPacket references a PM4 command stream through the indirect buffer
// jump held in PM4Command.
type VendorPacket struct {
	Header           uint16
	VendorHeader     uint16
	PM4Command       [4]uint32
	Reserved         [9]uint32
	CompletionSignal uint64
}

// BarrierAndPacket waits for all dependency signals before the packets after
// it may start.
type BarrierAndPacket struct {
	Header           uint16
	Reserved0        uint16
	Reserved1        uint32
	DepSignal        [5]uint64
	Reserved2        uint64
	CompletionSignal uint64
}

// PM4CommandBytes returns the embedded command in its little-endian wire
// form.
func (p *VendorPacket) PM4CommandBytes() []byte {
	b := make([]byte, 0, 4*len(p.PM4Command))
	for _, dw := range p.PM4Command {
		b = binary.LittleEndian.AppendUint32(b, dw)
	}
	return b
}

// Append appends the wire form of a packet to b.
func Append[P *VendorPacket | *BarrierAndPacket](b []byte, p P) []byte {
	out, err := binary.Append(b, binary.LittleEndian, p)
	if err != nil {
		// Both packet types only hold fixed size fields.
		panic(fmt.Sprintf("aql: encoding %T: %v", p, err))
	}
	return out
}

// Decode fills p from the first PacketSize bytes of b.
func Decode[P *VendorPacket | *BarrierAndPacket](b []byte, p P) error {
	if len(b) < PacketSize {
		return fmt.Errorf("aql: %d bytes, need %d", len(b), PacketSize)
	}
	_, err := binary.Decode(b[:PacketSize], binary.LittleEndian, p)
	return err
}
