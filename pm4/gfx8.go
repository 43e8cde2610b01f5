// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package pm4 // import "go.opentelemetry.io/gpu-profiler/pm4"

import (
	"go.opentelemetry.io/gpu-profiler/libpf"
	"go.opentelemetry.io/gpu-profiler/registers"
)

const gfx8ReleaseMemDwords = 7

type gfx8Writer struct {
	baseWriter
}

var _ CommandWriter = (*gfx8Writer)(nil)

// NewGfx8Writer returns the packet writer for GFX8 GPUs.
func NewGfx8Writer() CommandWriter {
	return &gfx8Writer{baseWriter{
		shaderType:    ShaderCompute,
		coherFlushAll: coherFlushAllActions,
	}}
}

func (w *gfx8Writer) Generation() string {
	return "gfx8"
}

func (w *gfx8Writer) BuildCopyRegToMem(cmd *CmdBuf, reg registers.Addr, dst libpf.Address,
	wide bool) {
	w.BuildCopyData(cmd, regToMem(reg, dst, wide))
}

func (w *gfx8Writer) BuildReleaseMem(cmd *CmdBuf, r ReleaseMem) {
	eventCntl, dataCntl := releaseMemControl(r)
	cmd.Append(w.header(OpReleaseMem, gfx8ReleaseMemDwords),
		eventCntl, dataCntl,
		r.Addr.Lo32(), r.Addr.Hi32(),
		uint32(r.Data), uint32(r.Data>>32))
}

func (w *gfx8Writer) ReleaseMemDwords() int {
	return gfx8ReleaseMemDwords
}
