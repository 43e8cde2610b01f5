// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package profiler // import "go.opentelemetry.io/gpu-profiler/profiler"

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/gpu-profiler/blockcatalog"
	"go.opentelemetry.io/gpu-profiler/factory"
	"go.opentelemetry.io/gpu-profiler/libpf"
	"go.opentelemetry.io/gpu-profiler/threadtrace"
)

// ProfileType selects what a profile collects.
type ProfileType uint8

const (
	// TypePMC collects performance counters.
	TypePMC ProfileType = iota
	// TypeSQTT collects a shader thread trace.
	TypeSQTT
)

func (t ProfileType) String() string {
	switch t {
	case TypePMC:
		return "pmc"
	case TypeSQTT:
		return "sqtt"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// ProfileTypeFromString parses the name returned by ProfileType.String.
func ProfileTypeFromString(s string) (ProfileType, bool) {
	for _, t := range []ProfileType{TypePMC, TypeSQTT} {
		if strings.EqualFold(s, t.String()) {
			return t, true
		}
	}
	return 0, false
}

// ParameterName identifies a thread trace parameter.
type ParameterName uint32

const (
	ParamComputeUnitTarget ParameterName = iota
	ParamVMIDMask
	ParamMask
	ParamTokenMask
	ParamTokenMask2
)

func (n ParameterName) String() string {
	switch n {
	case ParamComputeUnitTarget:
		return "compute_unit_target"
	case ParamVMIDMask:
		return "vmid_mask"
	case ParamMask:
		return "mask"
	case ParamTokenMask:
		return "token_mask"
	case ParamTokenMask2:
		return "token_mask2"
	default:
		return fmt.Sprintf("param(%d)", uint32(n))
	}
}

// ParameterNameFromString parses the name returned by ParameterName.String.
func ParameterNameFromString(s string) (ParameterName, bool) {
	for n := ParamComputeUnitTarget; n <= ParamTokenMask2; n++ {
		if strings.EqualFold(s, n.String()) {
			return n, true
		}
	}
	return 0, false
}

// Parameter is one thread trace parameter of a profile.
type Parameter struct {
	Name  ParameterName
	Value uint32
}

// Profile describes one profiling request. It is owned by the caller and
// never modified by the Profiler.
type Profile struct {
	Agent      factory.AgentHandle
	Type       ProfileType
	Events     []blockcatalog.Event
	Parameters []Parameter
	// OutputBuffer receives counter samples or trace data.
	OutputBuffer libpf.Descriptor
	// CommandBuffer holds the generated command streams and their layout.
	CommandBuffer libpf.Descriptor
}

// traceConfig assembles the thread trace configuration from the parameters.
// It returns nil if the profile has none. Unknown parameter names are
// returned as violations.
func (p *Profile) traceConfig() (cfg *threadtrace.Config, violations []string) {
	if len(p.Parameters) == 0 {
		return nil, nil
	}
	cfg = &threadtrace.Config{}
	for _, param := range p.Parameters {
		switch param.Name {
		case ParamComputeUnitTarget:
			cfg.TargetCU = param.Value
		case ParamVMIDMask:
			cfg.VMIDMask = param.Value
		case ParamMask:
			cfg.Mask = param.Value
		case ParamTokenMask:
			cfg.TokenMask = param.Value
		case ParamTokenMask2:
			cfg.TokenMask2 = param.Value
		default:
			violations = append(violations, fmt.Sprintf("unknown parameter %v", param.Name))
		}
	}
	return cfg, append(violations, cfg.Check()...)
}
