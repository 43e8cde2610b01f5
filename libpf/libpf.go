// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package libpf holds the basic types shared by all profiling packages:
// device addresses, borrowed memory descriptors and small generic helpers.
package libpf // import "go.opentelemetry.io/gpu-profiler/libpf"
