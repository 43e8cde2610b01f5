// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package pm4 // import "go.opentelemetry.io/gpu-profiler/pm4"

import (
	"go.opentelemetry.io/gpu-profiler/libpf"
	"go.opentelemetry.io/gpu-profiler/registers"
)

const (
	gfx9ReleaseMemDwords = 8

	// gfx9CachePolicyBypass marks memory accesses as bypassing L2 so the host
	// observes device writes without a further flush.
	gfx9CachePolicyBypass uint32 = 2

	gfx9CoherTCWCAction uint32 = 1 << 4
	gfx9IBValid         uint32 = 1 << 23
)

type gfx9Writer struct {
	baseWriter
}

var _ CommandWriter = (*gfx9Writer)(nil)

// NewGfx9Writer returns the packet writer for GFX9 GPUs.
func NewGfx9Writer() CommandWriter {
	return &gfx9Writer{baseWriter{
		shaderType:    ShaderCompute,
		coherFlushAll: coherFlushAllActions | gfx9CoherTCWCAction,
		coherSizeHi:   0xff,
	}}
}

func (w *gfx9Writer) Generation() string {
	return "gfx9"
}

func (w *gfx9Writer) BuildCopyData(cmd *CmdBuf, cp CopyData) {
	ctrl := w.copyDataControl(cp)
	if cp.SrcSel == CopySelTCL2 {
		ctrl |= gfx9CachePolicyBypass << 13
	}
	if cp.DstSel == CopySelTCL2 {
		ctrl |= gfx9CachePolicyBypass << 25
	}
	w.appendCopyData(cmd, ctrl, cp)
}

func (w *gfx9Writer) BuildCopyRegToMem(cmd *CmdBuf, reg registers.Addr, dst libpf.Address,
	wide bool) {
	w.BuildCopyData(cmd, regToMem(reg, dst, wide))
}

func (w *gfx9Writer) BuildAtomic64(cmd *CmdBuf, a Atomic) error {
	ctrl, err := atomicControl(a, true)
	if err != nil {
		return err
	}
	w.appendAtomic(cmd, ctrl|gfx9CachePolicyBypass<<25, a)
	return nil
}

func (w *gfx9Writer) BuildIndirectBuffer(cmd *CmdBuf, addr libpf.Address, dwords uint32) {
	w.appendIndirectBuffer(cmd, addr, w.ibControl(dwords)|gfx9IBValid)
}

func (w *gfx9Writer) BuildReleaseMem(cmd *CmdBuf, r ReleaseMem) {
	eventCntl, dataCntl := releaseMemControl(r)
	eventCntl |= gfx9CachePolicyBypass << 25
	cmd.Append(w.header(OpReleaseMem, gfx9ReleaseMemDwords),
		eventCntl, dataCntl,
		r.Addr.Lo32(), r.Addr.Hi32(),
		uint32(r.Data), uint32(r.Data>>32),
		0) // INT_CTXID
}

func (w *gfx9Writer) ReleaseMemDwords() int {
	return gfx9ReleaseMemDwords
}
