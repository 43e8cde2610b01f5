// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package pm4 // import "go.opentelemetry.io/gpu-profiler/pm4"

import (
	"errors"
	"fmt"
	"strings"

	npsr "go.opentelemetry.io/gpu-profiler/nopanicslicereader"
	"go.opentelemetry.io/gpu-profiler/registers"
)

// ErrTruncated is returned when a packet extends past the end of the stream.
var ErrTruncated = errors.New("truncated packet")

// Packet is one decoded packet of a command stream.
type Packet struct {
	// Offset is the byte offset of the header in the stream.
	Offset int
	Header Header
	// Body holds the payload dwords following the header.
	Body []uint32
}

// Disassemble splits a command stream into packets.
func Disassemble(b []byte) ([]Packet, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("stream length %d is not a multiple of 4", len(b))
	}
	var packets []Packet
	for off := 0; off < len(b); {
		h := DecodeHeader(npsr.Uint32(b, uint(off)))
		if h.Type != PacketType3 {
			return packets, fmt.Errorf("unsupported packet type %d at offset %d", h.Type, off)
		}
		end := off + 4*h.Dwords
		if end > len(b) {
			return packets, fmt.Errorf("%w: %v at offset %d needs %d dwords",
				ErrTruncated, h.Opcode, off, h.Dwords)
		}
		body := make([]uint32, 0, h.Dwords-1)
		for p := off + 4; p < end; p += 4 {
			body = append(body, npsr.Uint32(b, uint(p)))
		}
		packets = append(packets, Packet{Offset: off, Header: h, Body: body})
		off = end
	}
	return packets, nil
}

// SetRegAddr returns the absolute register address written by a SET_*_REG
// packet.
func (p *Packet) SetRegAddr() (registers.Addr, bool) {
	var space registers.Space
	switch p.Header.Opcode {
	case OpSetConfigReg:
		space = registers.SpaceConfig
	case OpSetShReg:
		space = registers.SpaceSH
	case OpSetContextReg:
		space = registers.SpaceContext
	case OpSetUConfigReg:
		space = registers.SpaceUConfig
	default:
		return 0, false
	}
	if len(p.Body) < 2 {
		return 0, false
	}
	return space.Base() + registers.Addr(p.Body[0]), true
}

func (p *Packet) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%06x %-16s", p.Offset, p.Header.Opcode)
	switch p.Header.Opcode {
	case OpSetConfigReg, OpSetShReg, OpSetContextReg, OpSetUConfigReg:
		if reg, ok := p.SetRegAddr(); ok {
			fmt.Fprintf(&sb, " reg=%v value=0x%08x", reg, p.Body[1])
			return sb.String()
		}
	case OpIndirectBuffer:
		if len(p.Body) == 3 {
			fmt.Fprintf(&sb, " addr=0x%x dwords=%d",
				uint64(p.Body[1]&0xffff)<<32|uint64(p.Body[0]), p.Body[2]&0xfffff)
			return sb.String()
		}
	case OpCopyData:
		if len(p.Body) == 5 {
			fmt.Fprintf(&sb, " src_sel=%d src=0x%x dst_sel=%d dst=0x%x",
				p.Body[0]&0xf, uint64(p.Body[2])<<32|uint64(p.Body[1]),
				(p.Body[0]>>8)&0xf, uint64(p.Body[4])<<32|uint64(p.Body[3]))
			return sb.String()
		}
	case OpEventWrite:
		if len(p.Body) == 1 {
			fmt.Fprintf(&sb, " event=0x%02x index=%d", p.Body[0]&0x3f, (p.Body[0]>>8)&0xf)
			return sb.String()
		}
	}
	for _, dw := range p.Body {
		fmt.Fprintf(&sb, " %08x", dw)
	}
	return sb.String()
}
