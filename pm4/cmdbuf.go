// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package pm4 // import "go.opentelemetry.io/gpu-profiler/pm4"

import "encoding/binary"

// CmdBuf is an append-only command stream. It is owned by the call that
// created it and never shared.
type CmdBuf struct {
	data []byte
}

// NewCmdBuf returns an empty command stream with room for capacity bytes.
func NewCmdBuf(capacity int) *CmdBuf {
	return &CmdBuf{data: make([]byte, 0, capacity)}
}

// Append adds dwords to the stream in little-endian order.
func (c *CmdBuf) Append(dwords ...uint32) {
	for _, dw := range dwords {
		c.data = binary.LittleEndian.AppendUint32(c.data, dw)
	}
}

// AppendBytes adds raw bytes to the stream.
func (c *CmdBuf) AppendBytes(b []byte) {
	c.data = append(c.data, b...)
}

// Bytes returns the stream contents. The slice aliases the buffer until the
// next append.
func (c *CmdBuf) Bytes() []byte {
	return c.data
}

// Size returns the stream length in bytes.
func (c *CmdBuf) Size() uint64 {
	return uint64(len(c.data))
}

// Dwords returns the stream length in dwords.
func (c *CmdBuf) Dwords() int {
	return len(c.data) / 4
}

// Reset truncates the stream, keeping its storage.
func (c *CmdBuf) Reset() {
	c.data = c.data[:0]
}
