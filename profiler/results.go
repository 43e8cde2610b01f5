// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package profiler // import "go.opentelemetry.io/gpu-profiler/profiler"

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/gpu-profiler/blockcatalog"
	"go.opentelemetry.io/gpu-profiler/cmdbuffer"
	"go.opentelemetry.io/gpu-profiler/factory"
	"go.opentelemetry.io/gpu-profiler/libpf"
	"go.opentelemetry.io/gpu-profiler/metrics"
	npsr "go.opentelemetry.io/gpu-profiler/nopanicslicereader"
	"go.opentelemetry.io/gpu-profiler/perfcounter"
)

// InfoType identifies an information query or a result record.
type InfoType uint8

const (
	// InfoCommandBufferSize is the command buffer size a profile needs.
	InfoCommandBufferSize InfoType = iota
	// InfoPMCDataSize is the output buffer size a counter profile needs.
	InfoPMCDataSize
	// InfoPMCData is one counter sample.
	InfoPMCData
	// InfoSQTTData is the trace of one shader engine.
	InfoSQTTData
	// InfoBlockCounters is the number of counters that can run at once on
	// the block of InfoData.Event.
	InfoBlockCounters
	// InfoBlockID is the hardware block id of InfoData.Event.
	InfoBlockID
)

func (t InfoType) String() string {
	switch t {
	case InfoCommandBufferSize:
		return "command_buffer_size"
	case InfoPMCDataSize:
		return "pmc_data_size"
	case InfoPMCData:
		return "pmc_data"
	case InfoSQTTData:
		return "sqtt_data"
	case InfoBlockCounters:
		return "block_counters"
	case InfoBlockID:
		return "block_id"
	default:
		return fmt.Sprintf("info(%d)", uint8(t))
	}
}

// AllSamples as InfoData.SampleID asks GetInfo to sum over all samples.
const AllSamples = ^uint32(0)

// InfoData carries one result record or the input and output of a GetInfo
// query.
type InfoData struct {
	// SampleID is the shader engine or instance a sample comes from.
	SampleID uint32
	// Event is the counter of an InfoPMCData record.
	Event blockcatalog.Event
	// Value is the counter value or the queried size or count.
	Value uint64
	// TraceData is the trace of an InfoSQTTData record.
	TraceData libpf.Descriptor
}

// Callback receives result records. Returning ErrInfoBreak stops the
// iteration without an error.
type Callback func(info InfoType, data *InfoData) error

// IterateResults calls cb for every result of a finished profile: one
// InfoPMCData record per counter sample, in the order the samples were
// written, or one InfoSQTTData record per shader engine.
func (p *Profiler) IterateResults(prof *Profile, cb Callback) error {
	const op = "IterateResults"
	entry := p.entry(prof)
	metrics.Add(metrics.IDIterateResults, 1)

	err := p.iterate(entry, prof, cb)
	if errors.Is(err, ErrInfoBreak) {
		return nil
	}
	if err != nil {
		metrics.Add(metrics.IDIterateResultsErrors, 1)
		return p.fail(entry, op, err)
	}
	return nil
}

func (p *Profiler) iterate(entry *log.Entry, prof *Profile, cb Callback) error {
	b, err := p.registry.Get(prof.Agent)
	if err != nil {
		return err
	}
	switch prof.Type {
	case TypePMC:
		return iteratePMC(b, prof, cb)
	case TypeSQTT:
		return iterateSQTT(entry, b, prof, cb)
	default:
		return errorf(ErrInvalidParameter, "profile type %v", prof.Type)
	}
}

func iteratePMC(b *factory.Bundle, prof *Profile, cb Callback) error {
	counters, err := perfcounter.GroupEvents(b.Catalog, prof.Events)
	if err != nil {
		return err
	}
	out := prof.OutputBuffer
	if need := b.Counters.OutputSize(counters); need > out.Size() {
		return fmt.Errorf("%w: need %d bytes, have %d",
			perfcounter.ErrOutputTooSmall, need, out.Size())
	}

	var offset uint
	for i := range counters {
		bc := &counters[i]
		for slot, c := range bc.Counters {
			samples := b.Counters.Samples(bc.Block, slot)
			for sid := range samples {
				data := InfoData{
					SampleID: sid,
					Event:    c.Event,
					Value:    npsr.Uint64Pair(out.Data, offset),
				}
				if err := cb(InfoPMCData, &data); err != nil {
					return err
				}
				offset += perfcounter.SampleSize
			}
		}
	}
	return nil
}

func iterateSQTT(entry *log.Entry, b *factory.Bundle, prof *Profile, cb Callback) error {
	mgr, err := cmdbuffer.Load(prof.CommandBuffer)
	if err != nil {
		return err
	}
	s := b.NewTraceSession()
	if err = s.Init(nil); err != nil {
		return err
	}
	if err = s.SetDataBuffer(prof.OutputBuffer); err != nil {
		return err
	}
	status, ok := s.Validate(mgr.Control().Data)
	if !ok {
		metrics.Add(metrics.IDTraceWrapped, 1)
		return ErrTraceWrapped
	}

	for se, st := range status {
		buf := s.SEBuffer(uint32(se))
		size := st.DataSize()
		if size > buf.Size() {
			entry.Warnf("Shader engine %d reports %d trace bytes in a %d byte buffer",
				se, size, buf.Size())
			size = buf.Size()
		}
		trace, err := buf.Slice(0, size)
		if err != nil {
			return err
		}
		data := InfoData{SampleID: uint32(se), Value: size, TraceData: trace}
		if err := cb(InfoSQTTData, &data); err != nil {
			return err
		}
	}
	return nil
}
