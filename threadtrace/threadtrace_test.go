// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package threadtrace

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/gpu-profiler/libpf"
	"go.opentelemetry.io/gpu-profiler/pm4"
	"go.opentelemetry.io/gpu-profiler/registers"
)

func newGfx9Session(t *testing.T, cfg *Config) *Session {
	t.Helper()
	s := NewSession(pm4.NewGfx9Writer(), registers.Gfx9(), 4)
	require.NoError(t, s.Init(cfg))
	require.NoError(t, s.SetDataBuffer(libpf.NewDescriptor(0x1_0000_0000, make([]byte, 1<<20))))
	return s
}

// regWrites collects the values written to one register in stream order.
func regWrites(t *testing.T, b []byte, reg registers.Addr) []uint32 {
	t.Helper()
	packets, err := pm4.Disassemble(b)
	require.NoError(t, err)
	var values []uint32
	for _, p := range packets {
		if addr, ok := p.SetRegAddr(); ok && addr == reg {
			values = append(values, p.Body[1])
		}
	}
	return values
}

func TestConfigCheck(t *testing.T) {
	tests := map[string]struct {
		cfg        Config
		violations int
	}{
		"zero":          {cfg: Config{}},
		"in range":      {cfg: Config{TargetCU: 15, VMIDMask: 2, Mask: 0x20, TokenMask: 0x1ffffff}},
		"mask bit 6":    {cfg: Config{Mask: 0x40}, violations: 1},
		"cu":            {cfg: Config{TargetCU: 16}, violations: 1},
		"token masks":   {cfg: Config{TokenMask: 1 << 25, TokenMask2: 1 << 16}, violations: 2},
		"all but masks": {cfg: Config{TargetCU: 99, VMIDMask: 3, Mask: 0x90}, violations: 3},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Len(t, tc.cfg.Check(), tc.violations)
		})
	}
}

func TestInitPassesThroughReservedBits(t *testing.T) {
	cfg := &Config{Mask: 0x40, TargetCU: 3}
	require.Len(t, cfg.Check(), 1)

	s := newGfx9Session(t, cfg)
	assert.Equal(t, *cfg, s.Config())

	cmd := pm4.NewCmdBuf(0)
	require.NoError(t, s.BeginSession(cmd))
	masks := regWrites(t, cmd.Bytes(), registers.Gfx9().ThreadTrace.Mask)
	require.Len(t, masks, 4)
	for _, m := range masks {
		assert.Equal(t, uint32(0x40), m&0x40)
		assert.Equal(t, uint32(3), m&registers.ThreadTraceMaskCUSel)
	}
}

func TestInitDefaults(t *testing.T) {
	s := newGfx9Session(t, nil)
	assert.Equal(t, Config{}, s.Config())
	cmd := pm4.NewCmdBuf(0)
	require.NoError(t, s.BeginSession(cmd))

	regs := registers.Gfx9()
	for _, v := range regWrites(t, cmd.Bytes(), regs.ThreadTrace.TokenMask) {
		assert.Equal(t, regs.DefaultTokenMask, v)
	}
	for _, v := range regWrites(t, cmd.Bytes(), regs.ThreadTrace.TokenMask2) {
		assert.Equal(t, regs.DefaultTokenMask2, v)
	}

	s = newGfx9Session(t, &Config{TokenMask: 0x3, TokenMask2: 0x5})
	cmd.Reset()
	require.NoError(t, s.BeginSession(cmd))
	assert.Equal(t, []uint32{3, 3, 3, 3}, regWrites(t, cmd.Bytes(), regs.ThreadTrace.TokenMask))
}

func TestSetDataBuffer(t *testing.T) {
	s := NewSession(pm4.NewGfx9Writer(), registers.Gfx9(), 4)
	require.NoError(t, s.Init(nil))

	require.ErrorIs(t, s.SetDataBuffer(libpf.NewDescriptor(0x1001, make([]byte, 1<<16))),
		ErrDataBuffer)
	require.ErrorIs(t, s.SetDataBuffer(libpf.NewDescriptor(0x1000, make([]byte, 4096))),
		ErrDataBuffer)

	require.NoError(t, s.SetDataBuffer(libpf.NewDescriptor(0x10000, make([]byte, 0x10000+100))))
	assert.Equal(t, uint64(0x4000), s.SEBufferSize())
	for se := range uint32(4) {
		buf := s.SEBuffer(se)
		assert.Equal(t, libpf.Address(0x10000+uint64(se)*0x4000), buf.Addr)
		assert.Equal(t, uint64(0x4000), buf.Size())
	}
	assert.True(t, s.SEBuffer(4).IsEmpty())
}

func TestBeginSession(t *testing.T) {
	s := newGfx9Session(t, nil)
	regs := registers.Gfx9()
	cmd := pm4.NewCmdBuf(0)
	require.NoError(t, s.BeginSession(cmd))
	assert.Equal(t, StateRunning, s.State())

	assert.Equal(t, []uint32{
		registers.GrbmSE(0), registers.GrbmSE(1), registers.GrbmSE(2), registers.GrbmSE(3),
		registers.GrbmBroadcast(),
	}, regWrites(t, cmd.Bytes(), regs.GrbmGfxIndex))

	modes := regWrites(t, cmd.Bytes(), regs.ThreadTrace.Mode)
	require.Len(t, modes, 5)
	for _, m := range modes[:4] {
		assert.Equal(t, registers.ThreadTraceMode(false), m)
	}
	assert.Equal(t, registers.ThreadTraceMode(true), modes[4])

	bases := regWrites(t, cmd.Bytes(), regs.ThreadTrace.Base)
	assert.Equal(t, []uint32{0x100000, 0x100040, 0x100080, 0x1000c0}, bases)

	packets, err := pm4.Disassemble(cmd.Bytes())
	require.NoError(t, err)
	assert.Equal(t, pm4.OpAcquireMem, packets[len(packets)-1].Header.Opcode)

	require.ErrorIs(t, s.BeginSession(cmd), ErrInvalidState)
	require.ErrorIs(t, s.Init(nil), ErrInvalidState)
}

func TestBeginWithoutBuffer(t *testing.T) {
	s := NewSession(pm4.NewGfx8Writer(), registers.Gfx8(), 4)
	cmd := pm4.NewCmdBuf(0)
	require.ErrorIs(t, s.BeginSession(cmd), ErrInvalidState)
	require.NoError(t, s.Init(nil))
	require.ErrorIs(t, s.BeginSession(cmd), ErrDataBuffer)
	assert.Zero(t, cmd.Size())
}

func TestStopSession(t *testing.T) {
	s := newGfx9Session(t, nil)
	regs := registers.Gfx9()
	ctrl := libpf.NewDescriptor(0x2000_0000, make([]byte, s.StatusSize()))
	assert.Equal(t, uint64(48), s.StatusSize())

	cmd := pm4.NewCmdBuf(0)
	require.ErrorIs(t, s.StopSession(cmd, ctrl), ErrInvalidState)
	require.NoError(t, s.BeginSession(cmd))
	cmd.Reset()

	require.ErrorIs(t, s.StopSession(cmd, libpf.NewDescriptor(0x2000_0000, make([]byte, 8))),
		ErrDataBuffer)
	require.NoError(t, s.StopSession(cmd, ctrl))
	assert.Equal(t, StateStopped, s.State())

	packets, err := pm4.Disassemble(cmd.Bytes())
	require.NoError(t, err)
	var waits int
	var copies []pm4.Packet
	for _, p := range packets {
		switch p.Header.Opcode {
		case pm4.OpWaitRegMem:
			waits++
			assert.Equal(t, uint32(regs.ThreadTrace.Status), p.Body[1])
			assert.Equal(t, registers.ThreadTraceStatusBusy, p.Body[4])
		case pm4.OpCopyData:
			copies = append(copies, p)
		}
	}
	assert.Equal(t, 4, waits)
	require.Len(t, copies, 12)
	for i, p := range copies {
		assert.Equal(t, uint32(0x2000_0000+4*i), p.Body[3])
	}
	assert.Equal(t, uint32(regs.ThreadTrace.WritePtr), copies[2].Body[1])
	assert.Equal(t, []uint32{registers.ThreadTraceMode(false)},
		regWrites(t, cmd.Bytes(), regs.ThreadTrace.Mode))
}

func putStatus(ctrl []byte, se int, status, counter, wptr uint32) {
	binary.LittleEndian.PutUint32(ctrl[se*StatusStride:], status)
	binary.LittleEndian.PutUint32(ctrl[se*StatusStride+4:], counter)
	binary.LittleEndian.PutUint32(ctrl[se*StatusStride+8:], wptr)
}

func TestValidate(t *testing.T) {
	s := newGfx9Session(t, nil)
	ctrl := make([]byte, s.StatusSize())
	for se := range 4 {
		putStatus(ctrl, se, registers.ThreadTraceStatusBusy, uint32(se), 0xc000_0010+uint32(se))
	}

	status, ok := s.Validate(ctrl)
	require.True(t, ok)
	assert.Equal(t, StateValidated, s.State())
	for se, st := range status {
		assert.Equal(t, uint32(0x10+se), st.WritePtr)
		assert.Equal(t, uint64(32*(0x10+se)), st.DataSize())
		assert.Equal(t, uint32(se), st.Counter)
	}

	putStatus(ctrl, 2, registers.ThreadTraceStatusWrapped, 0, 0x10)
	_, ok = s.Validate(ctrl)
	assert.False(t, ok)
	assert.Equal(t, StateInvalid, s.State())
}

func TestReadStatusShort(t *testing.T) {
	status := ReadStatus(make([]byte, 4), 2)
	assert.Equal(t, []SEStatus{{}, {}}, status)
}
