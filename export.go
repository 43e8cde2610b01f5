// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/pmetric"
	"golang.org/x/sync/errgroup"

	"go.opentelemetry.io/gpu-profiler/profiler"
	"go.opentelemetry.io/gpu-profiler/vc"
)

const perfCounterMetric = "gpu.perfcounter.value"

// pmcMetrics converts counter samples into one gauge data point per sample.
func pmcMetrics(gfx string, records []profiler.InfoData) pmetric.Metrics {
	md := pmetric.NewMetrics()
	rm := md.ResourceMetrics().AppendEmpty()
	rm.Resource().Attributes().PutStr("gpu.name", gfx)

	sm := rm.ScopeMetrics().AppendEmpty()
	sm.Scope().SetName("go.opentelemetry.io/gpu-profiler")
	sm.Scope().SetVersion(vc.Version())

	m := sm.Metrics().AppendEmpty()
	m.SetName(perfCounterMetric)
	m.SetDescription("Value of a GPU performance counter sample")
	m.SetUnit("{event}")
	gauge := m.SetEmptyGauge()
	now := pcommon.NewTimestampFromTime(time.Now())
	for _, r := range records {
		dp := gauge.DataPoints().AppendEmpty()
		dp.SetTimestamp(now)
		dp.SetIntValue(int64(r.Value))
		attrs := dp.Attributes()
		attrs.PutStr("gpu.block", r.Event.Block.String())
		attrs.PutInt("gpu.block.index", int64(r.Event.Index))
		attrs.PutInt("gpu.counter", int64(r.Event.CounterID))
		attrs.PutInt("gpu.sample", int64(r.SampleID))
	}
	return md
}

// writeTraces compresses every shader engine trace into its own file in dir
// and returns the file names in trace order.
func writeTraces(ctx context.Context, dir string, traces []profiler.InfoData) ([]string, error) {
	files := make([]string, len(traces))
	g, ctx := errgroup.WithContext(ctx)
	for i, tr := range traces {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			name := filepath.Join(dir, fmt.Sprintf("se%d.sqtt.zst", tr.SampleID))
			if err := writeCompressed(name, tr.TraceData.Data); err != nil {
				return fmt.Errorf("failed to export trace of shader engine %d: %w",
					tr.SampleID, err)
			}
			files[i] = name
			return nil
		})
	}
	return files, g.Wait()
}

func writeCompressed(name string, data []byte) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return err
	}
	if _, err = enc.Write(data); err != nil {
		enc.Close()
		f.Close()
		return err
	}
	if err = enc.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
