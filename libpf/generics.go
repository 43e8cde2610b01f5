// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package libpf // import "go.opentelemetry.io/gpu-profiler/libpf"

// Void allows to use maps as sets without memory allocation for the values.
type Void struct{}

// Set is a convenience alias for a map with a `Void` key.
type Set[T comparable] map[T]Void

// Has reports whether item is a member of the set.
func (s Set[T]) Has(item T) bool {
	_, ok := s[item]
	return ok
}

// SliceToSet creates a set from a slice, deduplicating it.
func SliceToSet[T comparable](s []T) Set[T] {
	set := make(Set[T], len(s))
	for _, item := range s {
		set[item] = Void{}
	}
	return set
}
