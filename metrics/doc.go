// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

/*
Package metrics reports the profiler's internal counters through OpenTelemetry.

The metric IDs and their OTel names are defined in metrics.json; ids.go is
generated from it. Instruments are created from the definitions at package
initialization on the global meter provider, so a host that installs its own
provider with otel.SetMeterProvider receives all values.

	metrics.Add(metrics.IDBeginProfile, 1)
*/
package metrics // import "go.opentelemetry.io/gpu-profiler/metrics"
