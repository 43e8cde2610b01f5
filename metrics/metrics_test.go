// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestAdd(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	gfx9 := attribute.String("generation", "gfx9")
	Add(IDBeginProfile, 2, gfx9)
	Add(IDBeginProfile, 3, gfx9)
	Add(IDLegacyConvert, 0)
	Add(IDCommandStreamBytes, 4096)
	Add(IDCommandStreamBytes, 1024)
	Add(IDMax, 1)
	Add(IDInvalid, 1)

	data := collect(t, reader)

	sum, ok := data["gpu_profiler.begin_profile"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(5), sum.DataPoints[0].Value)
	v, ok := sum.DataPoints[0].Attributes.Value("generation")
	require.True(t, ok)
	assert.Equal(t, "gfx9", v.AsString())

	gauge, ok := data["gpu_profiler.command_stream_bytes"].(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(1024), gauge.DataPoints[0].Value)

	// Zero counter values are not reported.
	_, ok = data["gpu_profiler.legacy_convert"]
	assert.False(t, ok)
}

func TestGetDefinitions(t *testing.T) {
	defs := GetDefinitions()
	require.Len(t, defs, IDMax-1)
	seen := make(map[MetricID]bool)
	for _, d := range defs {
		assert.False(t, seen[d.ID], "duplicate id %d", d.ID)
		seen[d.ID] = true
		assert.NotEmpty(t, d.Field)
		assert.Contains(t, []MetricType{MetricTypeCounter, MetricTypeGauge}, d.Type)
	}
}
