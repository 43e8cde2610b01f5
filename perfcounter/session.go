// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package perfcounter programs hardware performance counters and reads them
// back into a result buffer.
package perfcounter // import "go.opentelemetry.io/gpu-profiler/perfcounter"

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/gpu-profiler/libpf"
	"go.opentelemetry.io/gpu-profiler/pm4"
	"go.opentelemetry.io/gpu-profiler/registers"
)

var (
	// ErrInvalidOperation is returned when the session methods are called out
	// of order.
	ErrInvalidOperation = errors.New("invalid counter session operation")
	// ErrDataSizeZero is returned when counters were requested but none of
	// them produced a read-back.
	ErrDataSizeZero = errors.New("counter read-back produced no data")
	// ErrOutputTooSmall is returned when the result buffer cannot hold all
	// samples.
	ErrOutputTooSmall = errors.New("counter output buffer too small")
)

// SampleSize is the size of one sample in the output buffer: the low and the
// high 32 bits of the counter.
const SampleSize = 8

// State is the state of a Session.
type State uint8

const (
	StateIdle State = iota
	StateStarted
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Session encodes the begin and end sequences of one counter collection.
type Session struct {
	writer pm4.CommandWriter
	table  *Table
	state  State
}

// NewSession returns an idle session.
func NewSession(writer pm4.CommandWriter, table *Table) *Session {
	return &Session{writer: writer, table: table}
}

// State returns the current session state.
func (s *Session) State() State {
	return s.state
}

func (s *Session) emit(cmd *pm4.CmdBuf, op RegOp) error {
	return s.writer.BuildWriteRegister(cmd, op.Addr, op.Value)
}

// Begin appends the sequence that programs and starts the counters.
func (s *Session) Begin(cmd *pm4.CmdBuf, counters CountersByBlock) error {
	if s.state != StateIdle {
		return fmt.Errorf("%w: begin in state %v", ErrInvalidOperation, s.state)
	}
	regs := s.table.Registers()

	ops := []RegOp{
		write(regs.GrbmGfxIndex, registers.GrbmBroadcast()),
		write(regs.CPPerfmonCntl,
			registers.PerfmonCntl(registers.PerfmonStateDisableAndReset, false)),
	}
	for i := range counters {
		bc := &counters[i]
		for slot, c := range bc.Counters {
			ops = append(ops, s.table.SelectRegisters(bc.Block, slot, c.CounterID)...)
		}
	}
	ops = append(ops,
		write(regs.GrbmGfxIndex, registers.GrbmBroadcast()),
		write(regs.ComputePerfcountEnable, registers.ComputePerfcountEnable),
		write(regs.CPPerfmonCntl,
			registers.PerfmonCntl(registers.PerfmonStateDisableAndReset, false)),
		write(regs.CPPerfmonCntl,
			registers.PerfmonCntl(registers.PerfmonStateStartCounting, false)))

	// Encode into a scratch buffer so that a failure leaves cmd untouched.
	scratch := pm4.NewCmdBuf(12 * len(ops))
	for _, op := range ops {
		if err := s.emit(scratch, op); err != nil {
			return err
		}
	}
	s.writer.BuildWaitIdle(scratch)
	cmd.AppendBytes(scratch.Bytes())

	s.state = StateStarted
	return nil
}

// End appends the sequence that stops the counters and copies their values
// to out. It returns the number of bytes the device writes to out.
func (s *Session) End(cmd *pm4.CmdBuf, counters CountersByBlock, out libpf.Descriptor) (
	uint64, error) {
	if s.state != StateStarted {
		return 0, fmt.Errorf("%w: end in state %v", ErrInvalidOperation, s.state)
	}
	regs := s.table.Registers()

	var reads []RegOp
	for i := range counters {
		bc := &counters[i]
		for slot := range bc.Counters {
			reads = append(reads, s.table.ReadRegisters(bc.Block, slot)...)
		}
	}
	var size uint64
	for _, op := range reads {
		if op.IsRead() {
			size += 4
		}
	}
	if size == 0 && counters.Len() > 0 {
		return 0, ErrDataSizeZero
	}
	if size > out.Size() {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrOutputTooSmall, size, out.Size())
	}

	scratch := pm4.NewCmdBuf(24 * (len(reads) + 4))
	s.writer.BuildWaitIdle(scratch)
	for _, op := range []RegOp{
		write(regs.CPPerfmonCntl, registers.PerfmonCntl(registers.PerfmonStateStopCounting, true)),
		write(regs.GrbmGfxIndex, registers.GrbmBroadcast()),
	} {
		if err := s.emit(scratch, op); err != nil {
			return 0, err
		}
	}
	var offset uint64
	for _, op := range reads {
		if op.IsRead() {
			s.writer.BuildCopyRegToMem(scratch, op.Addr, out.Addr.Add(offset), false)
			offset += 4
			continue
		}
		if err := s.emit(scratch, op); err != nil {
			return 0, err
		}
	}
	cmd.AppendBytes(scratch.Bytes())

	s.state = StateStopped
	return size, nil
}

// Release returns a stopped session to idle once its results were consumed.
func (s *Session) Release() error {
	if s.state != StateStopped {
		return fmt.Errorf("%w: release in state %v", ErrInvalidOperation, s.state)
	}
	s.state = StateIdle
	return nil
}
