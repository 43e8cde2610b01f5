// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package aql

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketSizes(t *testing.T) {
	assert.Equal(t, PacketSize, binary.Size(VendorPacket{}))
	assert.Equal(t, PacketSize, binary.Size(BarrierAndPacket{}))
	assert.Len(t, Append(nil, &VendorPacket{}), PacketSize)
	assert.Len(t, Append(nil, &BarrierAndPacket{}), PacketSize)
}

func TestHeader(t *testing.T) {
	h := MakeHeader(TypeBarrierAnd, true, ScopeSystem, ScopeNone)
	assert.Equal(t, uint16(3|1<<8|2<<9), h)
	assert.Equal(t, TypeBarrierAnd, HeaderType(h))
	assert.Equal(t, ScopeSystem, HeaderAcquire(h))
	assert.Equal(t, ScopeNone, HeaderRelease(h))

	h = MakeHeader(TypeVendorSpecific, false, ScopeNone, ScopeSystem)
	assert.Equal(t, uint16(2<<11), h)
	assert.Equal(t, ScopeSystem, HeaderRelease(h))
}

func TestVendorPacketLayout(t *testing.T) {
	p := VendorPacket{
		Header:           0x1234,
		VendorHeader:     VendorFormatPM4IB,
		PM4Command:       [4]uint32{0xc0023f02, 0x1000, 0x2, 0x10},
		CompletionSignal: 0x1122334455667788,
	}
	b := Append(nil, &p)
	assert.Equal(t, []byte{0x34, 0x12, 0x01, 0x00}, b[:4])
	assert.Equal(t, p.PM4CommandBytes(), b[4:20])
	assert.Equal(t, uint64(0x1122334455667788), binary.LittleEndian.Uint64(b[56:]))

	var got VendorPacket
	require.NoError(t, Decode(b, &got))
	assert.Equal(t, p, got)
	require.Error(t, Decode(b[:10], &got))
}

func TestBarrierLayout(t *testing.T) {
	p := BarrierAndPacket{Header: MakeHeader(TypeBarrierAnd, true, ScopeNone, ScopeSystem),
		CompletionSignal: 42}
	b := Append(nil, &p)
	assert.Equal(t, uint64(42), binary.LittleEndian.Uint64(b[56:]))
	var got BarrierAndPacket
	require.NoError(t, Decode(b, &got))
	assert.Equal(t, p, got)
}
