// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package pm4 // import "go.opentelemetry.io/gpu-profiler/pm4"

import "fmt"

// PacketType3 is the only PM4 packet type emitted by the writers.
const PacketType3 = 3

// nopHeaderOnlyCount is the count field value of a one dword NOP.
const nopHeaderOnlyCount = 0x3fff

// Opcode is a type-3 packet opcode.
type Opcode uint8

const (
	OpNop            Opcode = 0x10
	OpAtomicMem      Opcode = 0x1e
	OpWriteData      Opcode = 0x37
	OpWaitRegMem     Opcode = 0x3c
	OpIndirectBuffer Opcode = 0x3f
	OpCopyData       Opcode = 0x40
	OpEventWrite     Opcode = 0x46
	OpReleaseMem     Opcode = 0x49
	OpAcquireMem     Opcode = 0x58
	OpSetConfigReg   Opcode = 0x68
	OpSetContextReg  Opcode = 0x69
	OpSetShReg       Opcode = 0x76
	OpSetUConfigReg  Opcode = 0x79
)

var opcodeNames = map[Opcode]string{
	OpNop:            "NOP",
	OpAtomicMem:      "ATOMIC_MEM",
	OpWriteData:      "WRITE_DATA",
	OpWaitRegMem:     "WAIT_REG_MEM",
	OpIndirectBuffer: "INDIRECT_BUFFER",
	OpCopyData:       "COPY_DATA",
	OpEventWrite:     "EVENT_WRITE",
	OpReleaseMem:     "RELEASE_MEM",
	OpAcquireMem:     "ACQUIRE_MEM",
	OpSetConfigReg:   "SET_CONFIG_REG",
	OpSetContextReg:  "SET_CONTEXT_REG",
	OpSetShReg:       "SET_SH_REG",
	OpSetUConfigReg:  "SET_UCONFIG_REG",
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("OP(0x%02x)", uint8(o))
}

// ShaderType selects the pipe a packet is intended for.
type ShaderType uint8

const (
	ShaderGraphics ShaderType = 0
	ShaderCompute  ShaderType = 1
)

// MakeHeader composes a type-3 packet header for a packet of the given total
// length in dwords, header included.
func MakeHeader(op Opcode, dwords int, st ShaderType, predicate bool) uint32 {
	count := uint32(dwords-2) & 0x3fff
	if dwords == 1 {
		count = nopHeaderOnlyCount
	}
	h := uint32(PacketType3)<<30 | count<<16 | uint32(op)<<8 | uint32(st&1)<<1
	if predicate {
		h |= 1
	}
	return h
}

// Header is a decoded packet header.
type Header struct {
	Type       uint8
	Opcode     Opcode
	Dwords     int
	ShaderType ShaderType
	Predicate  bool
}

// DecodeHeader splits a packet header into its fields.
func DecodeHeader(h uint32) Header {
	count := int(h>>16) & 0x3fff
	dwords := count + 2
	if count == nopHeaderOnlyCount {
		dwords = 1
	}
	return Header{
		Type:       uint8(h >> 30),
		Opcode:     Opcode(h >> 8),
		Dwords:     dwords,
		ShaderType: ShaderType(h>>1) & 1,
		Predicate:  h&1 != 0,
	}
}
