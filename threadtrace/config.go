// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package threadtrace // import "go.opentelemetry.io/gpu-profiler/threadtrace"

import "fmt"

// Config selects what the thread trace unit records. The zero value traces
// CU 0 of VM id 0 with the generation's default token masks.
type Config struct {
	// TargetCU is the compute unit whose waves are traced, 0-15.
	TargetCU uint32 `yaml:"target_cu"`
	// VMIDMask selects the VM ids to trace, 0-2.
	VMIDMask uint32 `yaml:"vmid_mask"`
	// Mask holds additional SQ_THREAD_TRACE_MASK bits. Bits 4, 6 and 7 are
	// reserved.
	Mask uint32 `yaml:"mask"`
	// TokenMask selects the token types to emit. Bits 25-31 are reserved.
	TokenMask uint32 `yaml:"token_mask"`
	// TokenMask2 selects instruction tokens. Bits 16-31 are reserved.
	TokenMask2 uint32 `yaml:"token_mask2"`
}

const (
	MaxTargetCU = 15
	MaxVMIDMask = 2

	maskReserved       uint32 = 1<<4 | 1<<6 | 1<<7
	tokenMaskReserved  uint32 = 0xfe000000
	tokenMask2Reserved uint32 = 0xffff0000
)

// Check returns a description of every out of range field. The hardware
// accepts such values unchanged, so it is up to the caller whether a
// violation is fatal.
func (c *Config) Check() []string {
	var violations []string
	if c.TargetCU > MaxTargetCU {
		violations = append(violations,
			fmt.Sprintf("target CU %d above %d", c.TargetCU, MaxTargetCU))
	}
	if c.VMIDMask > MaxVMIDMask {
		violations = append(violations,
			fmt.Sprintf("VM id mask %d above %d", c.VMIDMask, MaxVMIDMask))
	}
	if bits := c.Mask & maskReserved; bits != 0 {
		violations = append(violations, fmt.Sprintf("mask sets reserved bits 0x%x", bits))
	}
	if bits := c.TokenMask & tokenMaskReserved; bits != 0 {
		violations = append(violations, fmt.Sprintf("token mask sets reserved bits 0x%x", bits))
	}
	if bits := c.TokenMask2 & tokenMask2Reserved; bits != 0 {
		violations = append(violations, fmt.Sprintf("token mask2 sets reserved bits 0x%x", bits))
	}
	return violations
}
