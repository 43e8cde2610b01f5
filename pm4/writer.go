// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package pm4 encodes command processor packets. Each GPU generation provides
// a CommandWriter that lays out the same set of packets with its own field
// encodings.
package pm4 // import "go.opentelemetry.io/gpu-profiler/pm4"

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/gpu-profiler/libpf"
	"go.opentelemetry.io/gpu-profiler/registers"
)

// ErrUnalignedAtomic is returned when an atomic targets an address that is
// not 8-byte aligned.
var ErrUnalignedAtomic = errors.New("atomic target address is not 8-byte aligned")

// EventType is the VGT event type field of EVENT_WRITE and RELEASE_MEM.
type EventType uint32

const (
	EventCSPartialFlush        EventType = 0x07
	EventCacheFlushAndInvTS    EventType = 0x14
	EventPerfcounterStart      EventType = 0x17
	EventPerfcounterStop       EventType = 0x18
	EventPerfcounterSample     EventType = 0x1b
	EventBottomOfPipeTS        EventType = 0x28
	EventThreadTraceFinish     EventType = 0x37
	eventIndexPartialFlush            = 4
	eventIndexEndOfPipe               = 5
	acquireMemPollInterval            = 0x0a
	blockingAtomicLoopInterval        = 128
)

// CopySel selects the source or destination kind of COPY_DATA.
type CopySel uint32

const (
	CopySelRegister  CopySel = 0
	CopySelTCL2      CopySel = 2
	CopySelImmediate CopySel = 5
)

// CopyData describes a COPY_DATA packet.
type CopyData struct {
	SrcSel CopySel
	// Src is a register address, a memory address or an immediate value
	// depending on SrcSel.
	Src    uint64
	DstSel CopySel
	Dst    uint64
	// Wide copies 64 bits instead of 32.
	Wide bool
	// Confirm waits for the write to complete before the next packet.
	Confirm bool
}

// WaitFunc is the compare function of WAIT_REG_MEM.
type WaitFunc uint32

const (
	WaitAlways WaitFunc = iota
	WaitLess
	WaitLessEqual
	WaitEqual
	WaitNotEqual
	WaitGreaterEqual
	WaitGreater
)

// WaitRegMem describes a WAIT_REG_MEM packet. The device polls Addr until
// (value & Mask) Func Ref holds.
type WaitRegMem struct {
	MemSpace bool
	Func     WaitFunc
	// Addr is a register address if MemSpace is false.
	Addr     uint64
	Ref      uint32
	Mask     uint32
	Interval uint32
}

// AtomicOp is the operation of an ATOMIC_MEM packet.
type AtomicOp uint8

const (
	AtomicIncrement AtomicOp = iota
	AtomicDecrement
	AtomicAdd
	AtomicSubtract
	AtomicSwap
	AtomicCompareSwap
	// AtomicBlockingCompareSwap retries the compare-and-swap until it succeeds.
	AtomicBlockingCompareSwap
)

// tcOps are the no-return 32-bit texture cache atomic opcodes. The 64-bit
// variants are offset by 0x20.
var tcOps = [...]uint32{
	AtomicIncrement:           0x58,
	AtomicDecrement:           0x59,
	AtomicAdd:                 0x4f,
	AtomicSubtract:            0x50,
	AtomicSwap:                0x48,
	AtomicCompareSwap:         0x49,
	AtomicBlockingCompareSwap: 0x49,
}

func (op AtomicOp) tcOp(wide bool) (uint32, error) {
	if int(op) >= len(tcOps) {
		return 0, fmt.Errorf("unknown atomic operation %d", op)
	}
	v := tcOps[op]
	if wide {
		v += 0x20
	}
	return v, nil
}

// Atomic describes an ATOMIC_MEM packet.
type Atomic struct {
	Op      AtomicOp
	Addr    libpf.Address
	Value   uint64
	Compare uint64
}

// ReleaseMem describes a RELEASE_MEM packet.
type ReleaseMem struct {
	Event EventType
	// FlushCaches writes back and invalidates L1 and L2 before the release.
	FlushCaches bool
	// DataSel 0 writes nothing, 1 writes the low 32 bits of Data, 2 all 64.
	DataSel uint32
	Addr    libpf.Address
	Data    uint64
}

// CommandWriter builds packets of one GPU generation into a CmdBuf.
type CommandWriter interface {
	// Generation returns the generation name, e.g. "gfx9".
	Generation() string

	BuildNop(cmd *CmdBuf, dwords int)
	BuildWriteConfigReg(cmd *CmdBuf, addr registers.Addr, value uint32)
	BuildWriteShReg(cmd *CmdBuf, addr registers.Addr, value uint32)
	BuildWriteUConfigReg(cmd *CmdBuf, addr registers.Addr, value uint32)
	BuildWriteContextReg(cmd *CmdBuf, addr registers.Addr, value uint32)
	// BuildWriteRegister picks the SET_*_REG packet from the address space.
	BuildWriteRegister(cmd *CmdBuf, addr registers.Addr, value uint32) error

	// BuildWaitIdle waits for outstanding compute work and makes its results
	// visible. It always emits the barrier event and the acquire together.
	BuildWaitIdle(cmd *CmdBuf)
	BuildCacheFlush(cmd *CmdBuf)
	BuildEventWrite(cmd *CmdBuf, event EventType, index uint32)

	BuildCopyData(cmd *CmdBuf, cp CopyData)
	BuildCopyRegToMem(cmd *CmdBuf, reg registers.Addr, dst libpf.Address, wide bool)
	BuildWaitRegMem(cmd *CmdBuf, w WaitRegMem)
	BuildAtomic32(cmd *CmdBuf, a Atomic) error
	BuildAtomic64(cmd *CmdBuf, a Atomic) error
	BuildWriteData(cmd *CmdBuf, addr libpf.Address, values ...uint32)
	BuildIndirectBuffer(cmd *CmdBuf, addr libpf.Address, dwords uint32)
	BuildReleaseMem(cmd *CmdBuf, r ReleaseMem)

	IndirectBufferDwords() int
	ReleaseMemDwords() int
}

// CP_COHER_CNTL action bits shared by the generations.
const (
	coherTCWBAction      uint32 = 1 << 18
	coherTCL1Action      uint32 = 1 << 22
	coherTCAction        uint32 = 1 << 23
	coherSHKCacheAction  uint32 = 1 << 27
	coherSHICacheAction  uint32 = 1 << 29
	coherWaitIdleActions        = coherSHKCacheAction | coherSHICacheAction | coherTCL1Action
	coherFlushAllActions        = coherWaitIdleActions | coherTCAction | coherTCWBAction
)

// baseWriter implements the packets whose layout is the same on all
// generations. Generation writers embed it and override the rest.
type baseWriter struct {
	shaderType ShaderType
	// coherFlushAll is the CP_COHER_CNTL value of a full cache flush.
	coherFlushAll uint32
	// coherSizeHi is the CP_COHER_SIZE_HI value of a full-range acquire.
	coherSizeHi uint32
}

func (w *baseWriter) header(op Opcode, dwords int) uint32 {
	return MakeHeader(op, dwords, w.shaderType, false)
}

func (w *baseWriter) BuildNop(cmd *CmdBuf, dwords int) {
	if dwords < 1 {
		return
	}
	cmd.Append(w.header(OpNop, dwords))
	for i := 1; i < dwords; i++ {
		cmd.Append(0)
	}
}

func (w *baseWriter) setReg(cmd *CmdBuf, op Opcode, space registers.Space,
	addr registers.Addr, value uint32) {
	cmd.Append(w.header(op, 3), uint32(addr-space.Base()), value)
}

func (w *baseWriter) BuildWriteConfigReg(cmd *CmdBuf, addr registers.Addr, value uint32) {
	w.setReg(cmd, OpSetConfigReg, registers.SpaceConfig, addr, value)
}

func (w *baseWriter) BuildWriteShReg(cmd *CmdBuf, addr registers.Addr, value uint32) {
	w.setReg(cmd, OpSetShReg, registers.SpaceSH, addr, value)
}

func (w *baseWriter) BuildWriteUConfigReg(cmd *CmdBuf, addr registers.Addr, value uint32) {
	w.setReg(cmd, OpSetUConfigReg, registers.SpaceUConfig, addr, value)
}

func (w *baseWriter) BuildWriteContextReg(cmd *CmdBuf, addr registers.Addr, value uint32) {
	w.setReg(cmd, OpSetContextReg, registers.SpaceContext, addr, value)
}

func (w *baseWriter) BuildWriteRegister(cmd *CmdBuf, addr registers.Addr, value uint32) error {
	switch registers.SpaceOf(addr) {
	case registers.SpaceConfig:
		w.BuildWriteConfigReg(cmd, addr, value)
	case registers.SpaceSH:
		w.BuildWriteShReg(cmd, addr, value)
	case registers.SpaceContext:
		w.BuildWriteContextReg(cmd, addr, value)
	case registers.SpaceUConfig:
		w.BuildWriteUConfigReg(cmd, addr, value)
	default:
		return fmt.Errorf("register %v is outside of all register apertures", addr)
	}
	return nil
}

func (w *baseWriter) BuildEventWrite(cmd *CmdBuf, event EventType, index uint32) {
	cmd.Append(w.header(OpEventWrite, 2), uint32(event)&0x3f|(index&0xf)<<8)
}

func (w *baseWriter) buildAcquireMem(cmd *CmdBuf, coherCntl uint32) {
	cmd.Append(w.header(OpAcquireMem, 7),
		coherCntl,
		0xffffffff, // CP_COHER_SIZE
		w.coherSizeHi,
		0, // CP_COHER_BASE
		0, // CP_COHER_BASE_HI
		acquireMemPollInterval)
}

func (w *baseWriter) BuildWaitIdle(cmd *CmdBuf) {
	w.BuildEventWrite(cmd, EventCSPartialFlush, eventIndexPartialFlush)
	w.buildAcquireMem(cmd, coherWaitIdleActions)
}

func (w *baseWriter) BuildCacheFlush(cmd *CmdBuf) {
	w.buildAcquireMem(cmd, w.coherFlushAll)
}

func (w *baseWriter) copyDataControl(cp CopyData) uint32 {
	ctrl := uint32(cp.SrcSel)&0xf | (uint32(cp.DstSel)&0xf)<<8
	if cp.Wide {
		ctrl |= 1 << 16
	}
	if cp.Confirm {
		ctrl |= 1 << 20
	}
	return ctrl
}

func (w *baseWriter) appendCopyData(cmd *CmdBuf, ctrl uint32, cp CopyData) {
	cmd.Append(w.header(OpCopyData, 6), ctrl,
		uint32(cp.Src), uint32(cp.Src>>32),
		uint32(cp.Dst), uint32(cp.Dst>>32))
}

func (w *baseWriter) BuildCopyData(cmd *CmdBuf, cp CopyData) {
	w.appendCopyData(cmd, w.copyDataControl(cp), cp)
}

func (w *baseWriter) BuildWaitRegMem(cmd *CmdBuf, wr WaitRegMem) {
	ctrl := uint32(wr.Func) & 0x7
	addr := wr.Addr
	if wr.MemSpace {
		ctrl |= 1 << 4
		addr &^= 0x3
	}
	cmd.Append(w.header(OpWaitRegMem, 7), ctrl,
		uint32(addr), uint32(addr>>32),
		wr.Ref, wr.Mask, wr.Interval&0xffff)
}

// atomicControl returns the ATOMIC_MEM control dword without cache policy.
func atomicControl(a Atomic, wide bool) (uint32, error) {
	if !a.Addr.IsAligned(8) {
		return 0, fmt.Errorf("%w: %v", ErrUnalignedAtomic, a.Addr)
	}
	op, err := a.Op.tcOp(wide)
	if err != nil {
		return 0, err
	}
	ctrl := op & 0x7f
	if a.Op == AtomicBlockingCompareSwap {
		ctrl |= 1 << 8
	}
	return ctrl, nil
}

func (w *baseWriter) appendAtomic(cmd *CmdBuf, ctrl uint32, a Atomic) {
	var loop uint32
	if a.Op == AtomicBlockingCompareSwap {
		loop = blockingAtomicLoopInterval
	}
	cmd.Append(w.header(OpAtomicMem, 9), ctrl,
		a.Addr.Lo32(), a.Addr.Hi32(),
		uint32(a.Value), uint32(a.Value>>32),
		uint32(a.Compare), uint32(a.Compare>>32),
		loop&0x1fff)
}

func (w *baseWriter) BuildAtomic32(cmd *CmdBuf, a Atomic) error {
	ctrl, err := atomicControl(a, false)
	if err != nil {
		return err
	}
	a.Value &= 0xffffffff
	a.Compare &= 0xffffffff
	w.appendAtomic(cmd, ctrl, a)
	return nil
}

func (w *baseWriter) BuildAtomic64(cmd *CmdBuf, a Atomic) error {
	ctrl, err := atomicControl(a, true)
	if err != nil {
		return err
	}
	w.appendAtomic(cmd, ctrl, a)
	return nil
}

// BuildWriteData writes values to consecutive dwords of memory at addr.
func (w *baseWriter) BuildWriteData(cmd *CmdBuf, addr libpf.Address, values ...uint32) {
	if len(values) == 0 {
		return
	}
	ctrl := uint32(CopySelTCL2)<<8 | 1<<20
	cmd.Append(w.header(OpWriteData, 4+len(values)), ctrl, addr.Lo32()&^0x3, addr.Hi32())
	cmd.Append(values...)
}

func (w *baseWriter) ibControl(dwords uint32) uint32 {
	return dwords & 0xfffff
}

func (w *baseWriter) appendIndirectBuffer(cmd *CmdBuf, addr libpf.Address, ctrl uint32) {
	cmd.Append(w.header(OpIndirectBuffer, 4),
		addr.Lo32()&^0x3, addr.Hi32()&0xffff, ctrl)
}

func (w *baseWriter) BuildIndirectBuffer(cmd *CmdBuf, addr libpf.Address, dwords uint32) {
	w.appendIndirectBuffer(cmd, addr, w.ibControl(dwords))
}

func (w *baseWriter) IndirectBufferDwords() int {
	return 4
}

// releaseMemControl returns the first two payload dwords of RELEASE_MEM.
func releaseMemControl(r ReleaseMem) (eventCntl, dataCntl uint32) {
	eventCntl = uint32(r.Event)&0x3f | eventIndexEndOfPipe<<8
	if r.FlushCaches {
		eventCntl |= 1<<16 | 1<<17 | 1<<18
	}
	dataCntl = (r.DataSel & 0x7) << 29
	return eventCntl, dataCntl
}

func regToMem(reg registers.Addr, dst libpf.Address, wide bool) CopyData {
	return CopyData{
		SrcSel:  CopySelRegister,
		Src:     uint64(reg),
		DstSel:  CopySelTCL2,
		Dst:     uint64(dst),
		Wide:    wide,
		Confirm: true,
	}
}
