// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package perfcounter // import "go.opentelemetry.io/gpu-profiler/perfcounter"

import (
	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/gpu-profiler/blockcatalog"
	"go.opentelemetry.io/gpu-profiler/registers"
)

// Table selects the programming strategy of every hardware block of one
// generation. It holds no per-session state and is safe for concurrent use.
type Table struct {
	file  *registers.File
	seNum uint32
	byID  map[uint32]programmer
}

// NewTable builds the strategy table for a register file. Blocks present in
// the catalog but absent from the register file are left out; they produce no
// register accesses.
func NewTable(file *registers.File, cat *blockcatalog.Catalog) *Table {
	t := &Table{
		file:  file,
		seNum: cat.ShaderEngines(),
		byID:  make(map[uint32]programmer, len(file.Counters)),
	}
	for _, info := range cat.Blocks() {
		regs := file.CounterRegs(info.ID)
		if regs == nil {
			log.Debugf("No %s counter registers for block %s", file.Name, info.Name)
			continue
		}
		t.byID[info.ID] = newProgrammer(file, regs, info.Method, t.seNum)
	}
	return t
}

// Registers returns the register file the table programs.
func (t *Table) Registers() *registers.File {
	return t.file
}

// ShaderEngines returns the number of shader engines the table iterates.
func (t *Table) ShaderEngines() uint32 {
	return t.seNum
}

// SelectRegisters returns the register writes selecting counterID on the
// given counter slot of a block instance.
func (t *Table) SelectRegisters(block BlockDescriptor, slot int, counterID uint32) []RegOp {
	p, ok := t.byID[block.ID]
	if !ok {
		return nil
	}
	return p.selectOps(block.Index, slot, counterID)
}

// ReadRegisters returns the register accesses reading back the counter slot
// of a block instance. Reads are RegOps carrying CopyDataFlag and come in
// lo/hi pairs, one pair per sample.
func (t *Table) ReadRegisters(block BlockDescriptor, slot int) []RegOp {
	p, ok := t.byID[block.ID]
	if !ok {
		return nil
	}
	return p.readOps(block.Index, slot)
}

// Samples returns the number of samples the counter slot of a block instance
// contributes to the output buffer.
func (t *Table) Samples(block BlockDescriptor, slot int) uint32 {
	reads := 0
	for _, op := range t.ReadRegisters(block, slot) {
		if op.IsRead() {
			reads++
		}
	}
	return uint32(reads / 2)
}

// OutputSize returns the number of output bytes End writes for counters.
func (t *Table) OutputSize(counters CountersByBlock) uint64 {
	var samples uint64
	for i := range counters {
		for slot := range counters[i].Counters {
			samples += uint64(t.Samples(counters[i].Block, slot))
		}
	}
	return samples * SampleSize
}
