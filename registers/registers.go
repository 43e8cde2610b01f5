// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package registers describes the per-generation register files used to
// program performance counters and the thread trace unit. The values are
// opaque hardware data: register dword addresses and the few bit fields the
// profiling protocol needs to compose.
package registers // import "go.opentelemetry.io/gpu-profiler/registers"

import "fmt"

// Addr is a register address in dwords.
type Addr uint32

// Space identifies the register aperture an address belongs to. Each
// aperture is written with its own SET_*_REG packet.
type Space uint8

const (
	SpaceUnknown Space = iota
	SpaceConfig
	SpaceSH
	SpaceContext
	SpaceUConfig
)

const (
	ConfigSpaceStart  Addr = 0x2000
	ConfigSpaceEnd    Addr = 0x2bff
	SHSpaceStart      Addr = 0x2c00
	SHSpaceEnd        Addr = 0x2fff
	ContextSpaceStart Addr = 0xa000
	ContextSpaceEnd   Addr = 0xa3ff
	UConfigSpaceStart Addr = 0xc000
	UConfigSpaceEnd   Addr = 0xffff
)

func (s Space) String() string {
	switch s {
	case SpaceConfig:
		return "config"
	case SpaceSH:
		return "sh"
	case SpaceContext:
		return "context"
	case SpaceUConfig:
		return "uconfig"
	default:
		return "unknown"
	}
}

// SpaceOf returns the aperture of a register address.
func SpaceOf(a Addr) Space {
	switch {
	case a >= ConfigSpaceStart && a <= ConfigSpaceEnd:
		return SpaceConfig
	case a >= SHSpaceStart && a <= SHSpaceEnd:
		return SpaceSH
	case a >= ContextSpaceStart && a <= ContextSpaceEnd:
		return SpaceContext
	case a >= UConfigSpaceStart && a <= UConfigSpaceEnd:
		return SpaceUConfig
	default:
		return SpaceUnknown
	}
}

// Base returns the first address of the aperture.
func (s Space) Base() Addr {
	switch s {
	case SpaceConfig:
		return ConfigSpaceStart
	case SpaceSH:
		return SHSpaceStart
	case SpaceContext:
		return ContextSpaceStart
	case SpaceUConfig:
		return UConfigSpaceStart
	default:
		return 0
	}
}

func (a Addr) String() string {
	return fmt.Sprintf("0x%04x", uint32(a))
}

// GRBM_GFX_INDEX fields.
const (
	grbmInstanceIndexShift = 0
	grbmSHIndexShift       = 8
	grbmSEIndexShift       = 16

	GrbmSHBroadcast       uint32 = 1 << 29
	GrbmInstanceBroadcast uint32 = 1 << 30
	GrbmSEBroadcast       uint32 = 1 << 31
)

// GrbmBroadcast addresses every shader engine, shader array and instance.
func GrbmBroadcast() uint32 {
	return GrbmSEBroadcast | GrbmSHBroadcast | GrbmInstanceBroadcast
}

// GrbmSE addresses all instances of a single shader engine.
func GrbmSE(se uint32) uint32 {
	return (se&0xff)<<grbmSEIndexShift | GrbmSHBroadcast | GrbmInstanceBroadcast
}

// GrbmSEInstance addresses one instance inside one shader engine.
func GrbmSEInstance(se, instance uint32) uint32 {
	return (se&0xff)<<grbmSEIndexShift | (instance&0xff)<<grbmInstanceIndexShift |
		GrbmSHBroadcast
}

// GrbmInstance addresses one instance in every shader engine.
func GrbmInstance(instance uint32) uint32 {
	return (instance&0xff)<<grbmInstanceIndexShift | GrbmSEBroadcast | GrbmSHBroadcast
}

// CP_PERFMON_CNTL fields.
const (
	PerfmonStateDisableAndReset uint32 = 0
	PerfmonStateStartCounting   uint32 = 1
	PerfmonStateStopCounting    uint32 = 2

	PerfmonSampleEnable uint32 = 1 << 10
)

// PerfmonCntl composes a CP_PERFMON_CNTL value.
func PerfmonCntl(state uint32, sample bool) uint32 {
	v := state & 0xf
	if sample {
		v |= PerfmonSampleEnable
	}
	return v
}

// ComputePerfcountEnable is the PERFCOUNT_ENABLE bit of COMPUTE_PERFCOUNT_ENABLE.
const ComputePerfcountEnable uint32 = 1

// PerfSel masks a counter id into the PERF_SEL field of a generic
// *_PERFCOUNTERn_SELECT register.
func PerfSel(counterID uint32) uint32 {
	return counterID & 0x3ff
}

// SQ_PERFCOUNTERn_SELECT, SQ_PERFCOUNTER_MASK and SQ_PERFCOUNTER_CTRL fields.
const (
	sqSelBankMaskShift   = 12
	sqSelClientMaskShift = 16
	sqSelSIMDMaskShift   = 24

	// SQPerfcounterMaskAll enables every shader array in both SH halves.
	SQPerfcounterMaskAll uint32 = 0xffffffff

	SQCtrlPSEnable uint32 = 1 << 0
	SQCtrlVSEnable uint32 = 1 << 1
	SQCtrlGSEnable uint32 = 1 << 2
	SQCtrlESEnable uint32 = 1 << 3
	SQCtrlHSEnable uint32 = 1 << 4
	SQCtrlLSEnable uint32 = 1 << 5
	SQCtrlCSEnable uint32 = 1 << 6

	SQCtrlAllEnable = SQCtrlPSEnable | SQCtrlVSEnable | SQCtrlGSEnable | SQCtrlESEnable |
		SQCtrlHSEnable | SQCtrlLSEnable | SQCtrlCSEnable
)

// SQPerfSel composes an SQ select value counting on every SIMD, SQC bank and
// SQC client.
func SQPerfSel(counterID uint32) uint32 {
	return counterID&0x1ff |
		0xf<<sqSelBankMaskShift |
		0xf<<sqSelClientMaskShift |
		0xf<<sqSelSIMDMaskShift
}

// Layout selects how the counter registers of a block have to be handled.
type Layout uint8

const (
	// LayoutStandard blocks only need their select register written.
	LayoutStandard Layout = iota
	// LayoutCleared blocks keep stale values in their read registers between
	// sessions; those have to be zeroed before the select is written.
	LayoutCleared
	// LayoutSQ blocks share the SQ select/mask/control registers.
	LayoutSQ
)

// CounterRegs lists the registers of one hardware counter block. Entry i of
// each slice belongs to counter slot i.
type CounterRegs struct {
	Layout Layout
	Select []Addr
	Lo     []Addr
	Hi     []Addr
	// SQCtrlEnable is the SQ_PERFCOUNTER_CTRL value for LayoutSQ blocks.
	SQCtrlEnable uint32
}

// Slots returns the number of counters that can run concurrently.
func (c *CounterRegs) Slots() int {
	return min(len(c.Select), len(c.Lo), len(c.Hi))
}

// ThreadTraceRegs lists the SQ thread trace registers of a generation.
type ThreadTraceRegs struct {
	Base       Addr
	Base2      Addr
	Size       Addr
	Mask       Addr
	TokenMask  Addr
	TokenMask2 Addr
	PerfMask   Addr
	Ctrl       Addr
	Mode       Addr
	WritePtr   Addr
	Status     Addr
	Counter    Addr
}

// SQ_THREAD_TRACE_* fields.
const (
	ThreadTraceCtrlResetBuffer uint32 = 1 << 31

	ThreadTraceStatusBusy    uint32 = 1 << 30
	ThreadTraceStatusWrapped uint32 = 1 << 31

	// ThreadTraceWritePtrMask selects the valid bits of SQ_THREAD_TRACE_WPTR.
	ThreadTraceWritePtrMask uint32 = 0x3fffffff

	// ThreadTraceMaskCUSel is the CU_SEL field of SQ_THREAD_TRACE_MASK.
	ThreadTraceMaskCUSel        uint32 = 0xf
	ThreadTraceMaskSIMDEnable   uint32 = 0xf << 8
	threadTraceMaskVMIDShift           = 12
	ThreadTraceMaskVMIDMask     uint32 = 0x3 << threadTraceMaskVMIDShift
	threadTraceModeMaskCSShift         = 18
	threadTraceModeModeShift           = 21
	threadTraceModeAutoflushBit uint32 = 1 << 25

	// ThreadTraceUnitShift converts byte addresses and sizes into the 4KiB
	// units of SQ_THREAD_TRACE_BASE and SQ_THREAD_TRACE_SIZE.
	ThreadTraceUnitShift = 12
)

// ThreadTraceBase splits a trace buffer address into the BASE and BASE2
// register values.
func ThreadTraceBase(addr uint64) (lo, hi uint32) {
	return uint32(addr >> ThreadTraceUnitShift), uint32(addr>>(32+ThreadTraceUnitShift)) & 0xf
}

// ThreadTraceSize converts a byte size into the SQ_THREAD_TRACE_SIZE value.
func ThreadTraceSize(size uint64) uint32 {
	return uint32(size>>ThreadTraceUnitShift) & 0x3fffff
}

// ThreadTraceMask composes SQ_THREAD_TRACE_MASK from the caller supplied mask
// and the target compute unit and VM id mask.
func ThreadTraceMask(mask, cu, vmIDMask uint32) uint32 {
	v := mask &^ (ThreadTraceMaskCUSel | ThreadTraceMaskVMIDMask)
	return v | cu&ThreadTraceMaskCUSel | ThreadTraceMaskSIMDEnable |
		(vmIDMask<<threadTraceMaskVMIDShift)&ThreadTraceMaskVMIDMask
}

// ThreadTraceMode composes SQ_THREAD_TRACE_MODE tracing compute waves.
func ThreadTraceMode(on bool) uint32 {
	v := uint32(0x7)<<threadTraceModeMaskCSShift | threadTraceModeAutoflushBit
	if on {
		v |= 1 << threadTraceModeModeShift
	}
	return v
}

// File is the register file of one GPU generation.
type File struct {
	Name string

	GrbmGfxIndex           Addr
	CPPerfmonCntl          Addr
	ComputePerfcountEnable Addr
	SQPerfcounterCtrl      Addr
	SQPerfcounterMask      Addr

	ThreadTrace ThreadTraceRegs

	// DefaultTokenMask and DefaultTokenMask2 are used when a thread trace
	// configuration leaves the token masks at zero.
	DefaultTokenMask  uint32
	DefaultTokenMask2 uint32

	// Counters maps a hardware block id to its counter registers.
	Counters map[uint32]*CounterRegs
}

// CounterRegs returns the counter registers of a hardware block, or nil if the
// generation does not know how to program that block.
func (f *File) CounterRegs(blockID uint32) *CounterRegs {
	return f.Counters[blockID]
}

// counterBank builds n counter slots whose select registers are at
// sel[0..n) and whose LO/HI pairs start at lo0 and are interleaved.
func counterBank(layout Layout, sel []Addr, lo0 Addr) *CounterRegs {
	regs := &CounterRegs{
		Layout: layout,
		Select: sel,
		Lo:     make([]Addr, len(sel)),
		Hi:     make([]Addr, len(sel)),
	}
	for i := range sel {
		regs.Lo[i] = lo0 + Addr(2*i)
		regs.Hi[i] = lo0 + Addr(2*i+1)
	}
	return regs
}

// seq returns n consecutive register addresses starting at a.
func seq(a Addr, n int) []Addr {
	out := make([]Addr, n)
	for i := range out {
		out[i] = a + Addr(i)
	}
	return out
}
