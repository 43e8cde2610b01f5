// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package profiler // import "go.opentelemetry.io/gpu-profiler/profiler"

import (
	"fmt"

	"go.opentelemetry.io/gpu-profiler/aql"
	"go.opentelemetry.io/gpu-profiler/cmdbuffer"
	"go.opentelemetry.io/gpu-profiler/metrics"
	"go.opentelemetry.io/gpu-profiler/pm4"
)

const (
	// LegacySize is the number of bytes LegacyConvert writes: an acquire
	// barrier, one PM4 slot and a release barrier.
	LegacySize = 3 * aql.PacketSize

	legacySlotDwords = aql.PacketSize / 4
)

var (
	legacyWriter = pm4.NewGfx9Writer()

	// legacyNopDwords pads the PM4 slot so that the jump and the release
	// fill it exactly.
	legacyNopDwords = func() int {
		n := legacySlotDwords - legacyWriter.IndirectBufferDwords() -
			legacyWriter.ReleaseMemDwords()
		if n < 1 {
			panic(fmt.Sprintf("legacy PM4 slot overflows by %d dwords", 1-n))
		}
		return n
	}()
)

// LegacyConvert writes the legacy queue form of a vendor packet to out: a
// system scope acquire barrier, a PM4 slot holding the packet's jump followed
// by a cache flushing release, and a release barrier carrying the packet's
// completion signal.
func (p *Profiler) LegacyConvert(pkt *aql.VendorPacket, out []byte) error {
	const op = "LegacyConvert"
	entry := p.logger.WithField("op", op)
	metrics.Add(metrics.IDLegacyConvert, 1)

	if len(out) < LegacySize {
		return p.fail(entry, op, fmt.Errorf("%w: %d bytes, need %d",
			cmdbuffer.ErrBufferTooSmall, len(out), LegacySize))
	}

	slot := pm4.NewCmdBuf(aql.PacketSize)
	legacyWriter.BuildNop(slot, legacyNopDwords)
	slot.AppendBytes(pkt.PM4CommandBytes())
	legacyWriter.BuildReleaseMem(slot, pm4.ReleaseMem{
		Event:       pm4.EventCacheFlushAndInvTS,
		FlushCaches: true,
	})
	if slot.Size() != aql.PacketSize {
		return p.fail(entry, op, fmt.Errorf("legacy PM4 slot is %d bytes", slot.Size()))
	}

	acquire := aql.BarrierAndPacket{
		Header: aql.MakeHeader(aql.TypeBarrierAnd, true, aql.ScopeSystem, aql.ScopeNone),
	}
	release := aql.BarrierAndPacket{
		Header:           aql.MakeHeader(aql.TypeBarrierAnd, true, aql.ScopeNone, aql.ScopeSystem),
		CompletionSignal: pkt.CompletionSignal,
	}

	b := make([]byte, 0, LegacySize)
	b = aql.Append(b, &acquire)
	b = append(b, slot.Bytes()...)
	b = aql.Append(b, &release)
	copy(out, b)
	return nil
}
