// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package perfcounter // import "go.opentelemetry.io/gpu-profiler/perfcounter"

import (
	"cmp"
	"fmt"
	"slices"

	"go.opentelemetry.io/gpu-profiler/blockcatalog"
)

// BlockDescriptor identifies one instance of a hardware counter block.
type BlockDescriptor struct {
	ID    uint32
	Index uint32
}

func (b BlockDescriptor) String() string {
	return fmt.Sprintf("%d[%d]", b.ID, b.Index)
}

// Counter is one requested counter together with the event it came from.
type Counter struct {
	Event     blockcatalog.Event
	CounterID uint32
}

// BlockCounters lists the counters requested on one block instance. The
// position of a counter in Counters is the hardware counter slot it uses.
type BlockCounters struct {
	Block    BlockDescriptor
	Info     *blockcatalog.Info
	Counters []Counter
}

// CountersByBlock is the grouped form of an event list. Blocks are ordered by
// ascending (ID, Index) and counters within a block by counter id, so the
// order of the original events is not preserved.
type CountersByBlock []BlockCounters

// Len returns the total number of counters.
func (c CountersByBlock) Len() int {
	n := 0
	for i := range c {
		n += len(c[i].Counters)
	}
	return n
}

// GroupEvents validates events against the catalog and groups them by block
// instance. It fails on the first invalid event and when a block instance is
// asked for more counters than it can run at once.
func GroupEvents(cat *blockcatalog.Catalog, events []blockcatalog.Event) (CountersByBlock, error) {
	index := make(map[BlockDescriptor]int)
	var out CountersByBlock
	for _, ev := range events {
		info, err := cat.Validate(ev)
		if err != nil {
			return nil, err
		}
		bd := BlockDescriptor{ID: info.ID, Index: ev.Index}
		i, ok := index[bd]
		if !ok {
			i = len(out)
			index[bd] = i
			out = append(out, BlockCounters{Block: bd, Info: info})
		}
		bc := &out[i]
		if uint32(len(bc.Counters)) >= info.MaxSimultaneous {
			return nil, &blockcatalog.EventError{Event: ev,
				Reason: fmt.Sprintf("block %s[%d] supports at most %d simultaneous counters",
					info.Name, ev.Index, info.MaxSimultaneous)}
		}
		bc.Counters = append(bc.Counters, Counter{Event: ev, CounterID: ev.CounterID})
	}

	slices.SortFunc(out, func(a, b BlockCounters) int {
		if c := cmp.Compare(a.Block.ID, b.Block.ID); c != 0 {
			return c
		}
		return cmp.Compare(a.Block.Index, b.Block.Index)
	})
	for i := range out {
		slices.SortStableFunc(out[i].Counters, func(a, b Counter) int {
			return cmp.Compare(a.CounterID, b.CounterID)
		})
	}
	return out, nil
}
