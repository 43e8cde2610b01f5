// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package nopanicslicereader

import (
	"testing"

	"go.opentelemetry.io/gpu-profiler/libpf"

	"github.com/stretchr/testify/assert"
)

func TestSliceReader(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	assert.Equal(t, uint32(0x04030201), Uint32(data, 0))
	assert.Equal(t, uint32(0), Uint32(data, 100))
	assert.Equal(t, uint32(0), Uint32(data, 5))
	assert.Equal(t, uint64(0x0807060504030201), Uint64(data, 0))
	assert.Equal(t, uint64(0), Uint64(data, 1))
	assert.Equal(t, uint64(0x0807060504030201), Uint64Pair(data, 0))
	assert.Equal(t, uint64(0), Uint64Pair(data, 4))
	assert.Equal(t, libpf.Address(0x0807060504030201), Ptr(data, 0))
}

func TestPutUint32(t *testing.T) {
	data := make([]byte, 6)
	assert.True(t, PutUint32(data, 2, 0xdeadbeef))
	assert.Equal(t, uint32(0xdeadbeef), Uint32(data, 2))
	assert.False(t, PutUint32(data, 3, 1))
	assert.Equal(t, []byte{0, 0, 0xef, 0xbe, 0xad, 0xde}, data)
}
