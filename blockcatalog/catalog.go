// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package blockcatalog maps logical performance counter blocks to the hardware
// block descriptors of a GPU generation and validates counter events against
// them.
package blockcatalog // import "go.opentelemetry.io/gpu-profiler/blockcatalog"

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrInvalidEvent is returned for events naming an unknown block, an out of
// range block instance or an out of range counter id.
var ErrInvalidEvent = errors.New("invalid event")

// Method describes how a block has to be addressed through GRBM_GFX_INDEX.
type Method uint8

const (
	// MethodNone blocks exist once and are always written in broadcast mode.
	MethodNone Method = iota
	// MethodByInstance blocks need the instance index set.
	MethodByInstance
	// MethodBySE blocks are replicated per shader engine.
	MethodBySE
	// MethodBySEAndInstance blocks are replicated per shader engine and have
	// several instances inside each engine.
	MethodBySEAndInstance
)

func (m Method) String() string {
	switch m {
	case MethodNone:
		return "none"
	case MethodByInstance:
		return "by-instance"
	case MethodBySE:
		return "by-se"
	case MethodBySEAndInstance:
		return "by-se-and-instance"
	default:
		return fmt.Sprintf("method(%d)", uint8(m))
	}
}

// PerSE reports whether counters of the block have to be read once per
// shader engine.
func (m Method) PerSE() bool {
	return m == MethodBySE || m == MethodBySEAndInstance
}

// Info describes one hardware counter block.
type Info struct {
	Name             string
	ID               uint32
	MaxShaderEngines uint32
	MaxInstances     uint32
	Method           Method
	MaxCounterID     uint32
	MaxSimultaneous  uint32
}

// SampleCount returns the number of samples a single counter of the block
// produces.
func (i *Info) SampleCount() uint32 {
	if i.Method.PerSE() {
		return i.MaxShaderEngines
	}
	return 1
}

// Event identifies one counter of one block instance.
type Event struct {
	Block     BlockName `yaml:"block"`
	Index     uint32    `yaml:"index"`
	CounterID uint32    `yaml:"counter"`
}

func (e Event) String() string {
	return fmt.Sprintf("%s[%d]:%d", e.Block, e.Index, e.CounterID)
}

// EventError carries the event that failed validation.
type EventError struct {
	Event  Event
	Reason string
}

func (e *EventError) Error() string {
	return fmt.Sprintf("invalid event %v: %s", e.Event, e.Reason)
}

func (e *EventError) Unwrap() error {
	return ErrInvalidEvent
}

// blockDef is one row of a generation table.
type blockDef struct {
	name         BlockName
	id           uint32
	instances    uint32
	method       Method
	maxCounterID uint32
	counters     uint32
}

// Catalog is the block table of one GPU generation. The lookup maps are built
// on first use.
type Catalog struct {
	generation string
	seNum      uint32
	defs       []blockDef

	once   sync.Once
	byName map[BlockName]*Info
	byID   map[uint32]*Info
}

func newCatalog(generation string, seNum uint32, defs []blockDef) *Catalog {
	return &Catalog{generation: generation, seNum: seNum, defs: defs}
}

func (c *Catalog) load() {
	c.once.Do(func() {
		c.byName = make(map[BlockName]*Info, len(c.defs))
		c.byID = make(map[uint32]*Info, len(c.defs))
		for _, d := range c.defs {
			info := &Info{
				Name:             d.name.String(),
				ID:               d.id,
				MaxShaderEngines: c.seNum,
				MaxInstances:     d.instances,
				Method:           d.method,
				MaxCounterID:     d.maxCounterID,
				MaxSimultaneous:  d.counters,
			}
			c.byName[d.name] = info
			c.byID[d.id] = info
		}
	})
}

// Generation returns the generation name, e.g. "gfx9".
func (c *Catalog) Generation() string {
	return c.generation
}

// ShaderEngines returns the number of shader engines of the generation.
func (c *Catalog) ShaderEngines() uint32 {
	return c.seNum
}

// Lookup returns the descriptor of a logical block.
func (c *Catalog) Lookup(name BlockName) (*Info, bool) {
	c.load()
	info, ok := c.byName[name]
	return info, ok
}

// ByID returns the descriptor of a hardware block id.
func (c *Catalog) ByID(id uint32) (*Info, bool) {
	c.load()
	info, ok := c.byID[id]
	return info, ok
}

// Blocks returns all descriptors ordered by hardware block id.
func (c *Catalog) Blocks() []*Info {
	c.load()
	out := make([]*Info, 0, len(c.byID))
	for _, info := range c.byID {
		out = append(out, info)
	}
	slices.SortFunc(out, func(a, b *Info) int {
		return int(a.ID) - int(b.ID)
	})
	return out
}

// Validate checks an event against the table and returns its block
// descriptor. Failures are *EventError values wrapping ErrInvalidEvent.
func (c *Catalog) Validate(ev Event) (*Info, error) {
	info, ok := c.Lookup(ev.Block)
	if !ok {
		return nil, &EventError{Event: ev,
			Reason: fmt.Sprintf("block not available on %s", c.generation)}
	}
	if ev.Index >= info.MaxInstances {
		return nil, &EventError{Event: ev,
			Reason: fmt.Sprintf("instance %d out of range [0,%d)", ev.Index, info.MaxInstances)}
	}
	if ev.CounterID > info.MaxCounterID {
		return nil, &EventError{Event: ev,
			Reason: fmt.Sprintf("counter id %d above maximum %d", ev.CounterID, info.MaxCounterID)}
	}
	return info, nil
}
