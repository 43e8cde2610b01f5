// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package metrics // import "go.opentelemetry.io/gpu-profiler/metrics"

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"go.opentelemetry.io/gpu-profiler/vc"
)

var (
	//go:embed metrics.json
	metricsJSON []byte

	metricTypes map[MetricID]MetricType

	// OTel metric instrumentation
	meter = otel.Meter("go.opentelemetry.io/gpu-profiler",
		metric.WithInstrumentationVersion(vc.Version()))
	counters = map[MetricID]metric.Int64Counter{}
	gauges   = map[MetricID]metric.Int64Gauge{}
)

func init() {
	defs := GetDefinitions()
	metricTypes = make(map[MetricID]MetricType, len(defs))
	for _, md := range defs {
		if md.Obsolete {
			continue
		}
		metricTypes[md.ID] = md.Type
		switch typ := md.Type; typ {
		case MetricTypeCounter:
			counter, err := meter.Int64Counter(md.Field,
				metric.WithDescription(md.Description),
				metric.WithUnit(md.Unit))
			if err != nil {
				log.Errorf("Creating Int64Counter: %v", err)
				continue
			}
			counters[md.ID] = counter
		case MetricTypeGauge:
			gauge, err := meter.Int64Gauge(md.Field,
				metric.WithDescription(md.Description),
				metric.WithUnit(md.Unit))
			if err != nil {
				log.Errorf("Creating Int64Gauge: %v", err)
				continue
			}
			gauges[md.ID] = gauge
		default:
			panic(fmt.Sprintf("Unknown metric type: %v", typ))
		}
	}
}

// Add reports a metric value. Counters add value, gauges record it.
// Attributes such as the GPU generation are attached to the data point.
func Add(id MetricID, value MetricValue, attrs ...attribute.KeyValue) {
	if id <= IDInvalid || id >= IDMax {
		log.Errorf("Metric value %d out of range [%d,%d]- needs investigation",
			id, IDInvalid+1, IDMax-1)
		return
	}
	ctx := context.Background()
	switch typ := metricTypes[id]; typ {
	case MetricTypeCounter:
		if value == 0 {
			return
		}
		if counter, ok := counters[id]; ok {
			counter.Add(ctx, int64(value), metric.WithAttributes(attrs...))
		}
	case MetricTypeGauge:
		if gauge, ok := gauges[id]; ok {
			gauge.Record(ctx, int64(value), metric.WithAttributes(attrs...))
		}
	default:
		log.Warnf("Invalid metric id %d, skipping", id)
	}
}

// GetDefinitions returns the metric definitions from the embedded metrics.json file.
func GetDefinitions() []MetricDefinition {
	var defs []MetricDefinition

	dec := json.NewDecoder(bytes.NewReader(metricsJSON))
	dec.DisallowUnknownFields()

	err := dec.Decode(&defs)
	if err != nil {
		panic(fmt.Sprintf("extracting definitions from metrics.json: %v", err))
	}
	return defs
}
