// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package perfcounter // import "go.opentelemetry.io/gpu-profiler/perfcounter"

import (
	"go.opentelemetry.io/gpu-profiler/blockcatalog"
	"go.opentelemetry.io/gpu-profiler/registers"
)

// CopyDataFlag as a RegOp value marks a read: the register is copied to the
// output buffer instead of being written.
const CopyDataFlag uint32 = 0xffffffff

// RegOp is one register access of a counter programming sequence.
type RegOp struct {
	Addr  registers.Addr
	Value uint32
}

// IsRead reports whether the op schedules a read-back.
func (r RegOp) IsRead() bool {
	return r.Value == CopyDataFlag
}

func write(addr registers.Addr, value uint32) RegOp {
	return RegOp{Addr: addr, Value: value}
}

func read(addr registers.Addr) RegOp {
	return RegOp{Addr: addr, Value: CopyDataFlag}
}

// programmer builds the register sequences of one block family. Both methods
// return nil for slots the block does not have.
type programmer interface {
	selectOps(index uint32, slot int, counterID uint32) []RegOp
	readOps(index uint32, slot int) []RegOp
}

// bank holds what every block family needs: the addressing register and the
// block's counter registers.
type bank struct {
	grbm registers.Addr
	regs *registers.CounterRegs
}

func (b *bank) valid(slot int) bool {
	return slot >= 0 && slot < b.regs.Slots()
}

func (b *bank) broadcast() RegOp {
	return write(b.grbm, registers.GrbmBroadcast())
}

func (b *bank) readPair(slot int) []RegOp {
	return []RegOp{read(b.regs.Lo[slot]), read(b.regs.Hi[slot])}
}

// broadcastProgrammer handles single blocks written in broadcast mode.
type broadcastProgrammer struct {
	bank
}

func (p *broadcastProgrammer) selectOps(_ uint32, slot int, counterID uint32) []RegOp {
	if !p.valid(slot) {
		return nil
	}
	return []RegOp{write(p.regs.Select[slot], registers.PerfSel(counterID))}
}

func (p *broadcastProgrammer) readOps(_ uint32, slot int) []RegOp {
	if !p.valid(slot) {
		return nil
	}
	return p.readPair(slot)
}

// instanceProgrammer targets one block instance in every shader engine.
type instanceProgrammer struct {
	bank
}

func (p *instanceProgrammer) selectOps(index uint32, slot int, counterID uint32) []RegOp {
	if !p.valid(slot) {
		return nil
	}
	return []RegOp{
		write(p.grbm, registers.GrbmInstance(index)),
		write(p.regs.Select[slot], registers.PerfSel(counterID)),
		p.broadcast(),
	}
}

func (p *instanceProgrammer) readOps(index uint32, slot int) []RegOp {
	if !p.valid(slot) {
		return nil
	}
	ops := make([]RegOp, 0, 4)
	ops = append(ops, write(p.grbm, registers.GrbmInstance(index)))
	ops = append(ops, p.readPair(slot)...)
	return append(ops, p.broadcast())
}

// seProgrammer handles blocks replicated per shader engine. Each engine is
// programmed and read on its own.
type seProgrammer struct {
	bank
	seNum       uint32
	perInstance bool
}

func (p *seProgrammer) target(se, index uint32) uint32 {
	if p.perInstance {
		return registers.GrbmSEInstance(se, index)
	}
	return registers.GrbmSE(se)
}

func (p *seProgrammer) selectOps(index uint32, slot int, counterID uint32) []RegOp {
	if !p.valid(slot) {
		return nil
	}
	ops := make([]RegOp, 0, 2*p.seNum+1)
	for se := range p.seNum {
		ops = append(ops,
			write(p.grbm, p.target(se, index)),
			write(p.regs.Select[slot], registers.PerfSel(counterID)))
	}
	return append(ops, p.broadcast())
}

func (p *seProgrammer) readOps(index uint32, slot int) []RegOp {
	if !p.valid(slot) {
		return nil
	}
	ops := make([]RegOp, 0, 3*p.seNum+1)
	for se := range p.seNum {
		ops = append(ops, write(p.grbm, p.target(se, index)))
		ops = append(ops, p.readPair(slot)...)
	}
	return append(ops, p.broadcast())
}

// sqProgrammer handles the SQ block and its shader stage variants. On top of
// the select they need the lane mask and the stage enable in the SQ control
// register.
type sqProgrammer struct {
	seProgrammer
	mask registers.Addr
	ctrl registers.Addr
}

func (p *sqProgrammer) selectOps(index uint32, slot int, counterID uint32) []RegOp {
	if !p.valid(slot) {
		return nil
	}
	ops := make([]RegOp, 0, 3*p.seNum+2)
	for se := range p.seNum {
		ops = append(ops,
			write(p.grbm, p.target(se, index)),
			write(p.mask, registers.SQPerfcounterMaskAll),
			write(p.regs.Select[slot], registers.SQPerfSel(counterID)))
	}
	return append(ops, p.broadcast(), write(p.ctrl, p.regs.SQCtrlEnable))
}

// clearingProgrammer wraps blocks whose read registers keep stale values
// between sessions. Before the first counter of an instance is selected all
// of the instance's read registers are zeroed.
type clearingProgrammer struct {
	programmer
	bank
}

func (p *clearingProgrammer) selectOps(index uint32, slot int, counterID uint32) []RegOp {
	sel := p.programmer.selectOps(index, slot, counterID)
	if slot != 0 || sel == nil {
		return sel
	}
	slots := p.regs.Slots()
	ops := make([]RegOp, 0, 2*slots+1+len(sel))
	ops = append(ops, write(p.grbm, registers.GrbmInstance(index)))
	for i := range slots {
		ops = append(ops, write(p.regs.Lo[i], 0), write(p.regs.Hi[i], 0))
	}
	return append(ops, sel...)
}

func (p *clearingProgrammer) readOps(index uint32, slot int) []RegOp {
	return p.programmer.readOps(index, slot)
}

func newProgrammer(file *registers.File, regs *registers.CounterRegs, method blockcatalog.Method,
	seNum uint32) programmer {
	b := bank{grbm: file.GrbmGfxIndex, regs: regs}

	var p programmer
	switch {
	case regs.Layout == registers.LayoutSQ:
		p = &sqProgrammer{
			seProgrammer: seProgrammer{bank: b, seNum: seNum},
			mask:         file.SQPerfcounterMask,
			ctrl:         file.SQPerfcounterCtrl,
		}
	case method.PerSE():
		p = &seProgrammer{bank: b, seNum: seNum,
			perInstance: method == blockcatalog.MethodBySEAndInstance}
	case method == blockcatalog.MethodByInstance:
		p = &instanceProgrammer{bank: b}
	default:
		p = &broadcastProgrammer{bank: b}
	}
	if regs.Layout == registers.LayoutCleared {
		p = &clearingProgrammer{programmer: p, bank: b}
	}
	return p
}
