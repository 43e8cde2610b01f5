// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package threadtrace configures, starts and stops the SQ thread trace unit of
// every shader engine and interprets the control data the device leaves
// behind.
package threadtrace // import "go.opentelemetry.io/gpu-profiler/threadtrace"

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/gpu-profiler/libpf"
	"go.opentelemetry.io/gpu-profiler/pm4"
	"go.opentelemetry.io/gpu-profiler/registers"
)

var (
	// ErrInvalidState is returned when session methods are called out of
	// order.
	ErrInvalidState = errors.New("invalid thread trace session state")
	// ErrDataBuffer is returned when the trace buffer cannot be split across
	// the shader engines.
	ErrDataBuffer = errors.New("unusable thread trace buffer")
)

// bufferAlign is the alignment of each shader engine's trace buffer.
const bufferAlign = 1 << registers.ThreadTraceUnitShift

// busyPollInterval is the WAIT_REG_MEM poll interval while draining a trace.
const busyPollInterval = 4

// State is the state of a Session.
type State uint8

const (
	StateUninitialized State = iota
	StateConfigured
	StateRunning
	StateStopped
	StateValidated
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConfigured:
		return "configured"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateValidated:
		return "validated"
	case StateInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Session encodes one thread trace capture.
type Session struct {
	writer pm4.CommandWriter
	regs   *registers.File
	seNum  uint32
	state  State

	cfg        Config
	mask       uint32
	tokenMask  uint32
	tokenMask2 uint32

	buf    libpf.Descriptor
	seSize uint64
}

// NewSession returns an uninitialized session for seNum shader engines.
func NewSession(writer pm4.CommandWriter, regs *registers.File, seNum uint32) *Session {
	return &Session{writer: writer, regs: regs, seNum: seNum}
}

// State returns the current session state.
func (s *Session) State() State {
	return s.state
}

// Config returns the configuration the session was initialized with.
func (s *Session) Config() Config {
	return s.cfg
}

// Init takes over cfg, or the zero Config if cfg is nil, and derives the
// register values. Values are used as given, see Config.Check.
func (s *Session) Init(cfg *Config) error {
	if s.state == StateRunning {
		return fmt.Errorf("%w: init in state %v", ErrInvalidState, s.state)
	}
	s.cfg = Config{}
	if cfg != nil {
		s.cfg = *cfg
	}
	s.mask = registers.ThreadTraceMask(s.cfg.Mask, s.cfg.TargetCU, s.cfg.VMIDMask)
	s.tokenMask = s.cfg.TokenMask
	if s.tokenMask == 0 {
		s.tokenMask = s.regs.DefaultTokenMask
	}
	s.tokenMask2 = s.cfg.TokenMask2
	if s.tokenMask2 == 0 {
		s.tokenMask2 = s.regs.DefaultTokenMask2
	}
	s.state = StateConfigured
	return nil
}

// SetDataBuffer splits buf evenly across the shader engines.
func (s *Session) SetDataBuffer(buf libpf.Descriptor) error {
	if !buf.Addr.IsAligned(bufferAlign) {
		return fmt.Errorf("%w: address %v is not %d byte aligned",
			ErrDataBuffer, buf.Addr, bufferAlign)
	}
	seSize := libpf.AlignDown(buf.Size()/uint64(s.seNum), bufferAlign)
	if seSize == 0 {
		return fmt.Errorf("%w: %d bytes for %d shader engines", ErrDataBuffer, buf.Size(), s.seNum)
	}
	s.buf = buf
	s.seSize = seSize
	log.Debugf("Thread trace buffer %v split into %d x %d bytes", buf, s.seNum, seSize)
	return nil
}

// SEBuffer returns the trace buffer of one shader engine.
func (s *Session) SEBuffer(se uint32) libpf.Descriptor {
	d, err := s.buf.Slice(uint64(se)*s.seSize, s.seSize)
	if err != nil {
		return libpf.Descriptor{}
	}
	return d
}

// SEBufferSize returns the capacity of each shader engine's trace buffer.
func (s *Session) SEBufferSize() uint64 {
	return s.seSize
}

// StatusSize returns the size of the control buffer StopSession fills.
func (s *Session) StatusSize() uint64 {
	return uint64(s.seNum) * StatusStride
}

func (s *Session) writeReg(cmd *pm4.CmdBuf, addr registers.Addr, value uint32) {
	// Thread trace registers all live in known apertures.
	_ = s.writer.BuildWriteRegister(cmd, addr, value)
}

func (s *Session) broadcast(cmd *pm4.CmdBuf) {
	s.writeReg(cmd, s.regs.GrbmGfxIndex, registers.GrbmBroadcast())
}

// BeginSession appends the sequence configuring every shader engine and then
// enabling all of them at once.
func (s *Session) BeginSession(cmd *pm4.CmdBuf) error {
	if s.state != StateConfigured {
		return fmt.Errorf("%w: begin in state %v", ErrInvalidState, s.state)
	}
	if s.seSize == 0 {
		return fmt.Errorf("%w: no data buffer set", ErrDataBuffer)
	}
	tt := &s.regs.ThreadTrace
	for se := range s.seNum {
		base, base2 := registers.ThreadTraceBase(uint64(s.SEBuffer(se).Addr))
		s.writeReg(cmd, s.regs.GrbmGfxIndex, registers.GrbmSE(se))
		s.writeReg(cmd, tt.Ctrl, registers.ThreadTraceCtrlResetBuffer)
		s.writeReg(cmd, tt.Base, base)
		s.writeReg(cmd, tt.Base2, base2)
		s.writeReg(cmd, tt.Size, registers.ThreadTraceSize(s.seSize))
		s.writeReg(cmd, tt.Mask, s.mask)
		s.writeReg(cmd, tt.TokenMask, s.tokenMask)
		s.writeReg(cmd, tt.TokenMask2, s.tokenMask2)
		s.writeReg(cmd, tt.Mode, registers.ThreadTraceMode(false))
	}
	s.broadcast(cmd)
	s.writer.BuildWaitIdle(cmd)
	s.writeReg(cmd, tt.Mode, registers.ThreadTraceMode(true))
	s.writer.BuildWaitIdle(cmd)

	s.state = StateRunning
	return nil
}

// StopSession appends the sequence stopping the trace, draining every shader
// engine and copying its control data into ctrl.
func (s *Session) StopSession(cmd *pm4.CmdBuf, ctrl libpf.Descriptor) error {
	if s.state != StateRunning {
		return fmt.Errorf("%w: stop in state %v", ErrInvalidState, s.state)
	}
	if ctrl.Size() < s.StatusSize() {
		return fmt.Errorf("%w: control buffer has %d bytes, need %d",
			ErrDataBuffer, ctrl.Size(), s.StatusSize())
	}
	tt := &s.regs.ThreadTrace
	s.broadcast(cmd)
	s.writer.BuildWaitIdle(cmd)
	s.writeReg(cmd, tt.Mode, registers.ThreadTraceMode(false))
	s.writer.BuildWaitIdle(cmd)

	for se := range s.seNum {
		dst := ctrl.Addr.Add(uint64(se) * StatusStride)
		s.writeReg(cmd, s.regs.GrbmGfxIndex, registers.GrbmSE(se))
		s.writer.BuildWaitRegMem(cmd, pm4.WaitRegMem{
			Func:     pm4.WaitEqual,
			Addr:     uint64(tt.Status),
			Ref:      0,
			Mask:     registers.ThreadTraceStatusBusy,
			Interval: busyPollInterval,
		})
		s.writer.BuildCopyRegToMem(cmd, tt.Status, dst, false)
		s.writer.BuildCopyRegToMem(cmd, tt.Counter, dst.Add(4), false)
		s.writer.BuildCopyRegToMem(cmd, tt.WritePtr, dst.Add(8), false)
	}

	s.broadcast(cmd)
	s.writer.BuildCacheFlush(cmd)
	for se := range s.seNum {
		s.writeReg(cmd, s.regs.GrbmGfxIndex, registers.GrbmSE(se))
		s.writeReg(cmd, tt.Size, 0)
		s.writeReg(cmd, tt.Ctrl, registers.ThreadTraceCtrlResetBuffer)
	}
	s.broadcast(cmd)
	s.writer.BuildWaitIdle(cmd)

	s.state = StateStopped
	return nil
}

// Validate decodes the control data and reports whether every shader engine
// finished without wrapping its buffer. On success the returned write
// pointers are masked to their valid bits.
func (s *Session) Validate(ctrl []byte) ([]SEStatus, bool) {
	status := ReadStatus(ctrl, s.seNum)
	for se, st := range status {
		if st.Wrapped() {
			log.Warnf("Thread trace of shader engine %d wrapped (status 0x%08x)", se, st.Status)
			s.state = StateInvalid
			return status, false
		}
	}
	for se := range status {
		status[se].WritePtr &= registers.ThreadTraceWritePtrMask
	}
	s.state = StateValidated
	return status, true
}
