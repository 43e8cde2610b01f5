// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package cmdbuffer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/gpu-profiler/libpf"
)

func buffer(size int) libpf.Descriptor {
	return libpf.NewDescriptor(0x4000_0000, make([]byte, size))
}

func TestNew(t *testing.T) {
	_, err := New(buffer(HeaderSize - 1))
	require.ErrorIs(t, err, ErrBufferTooSmall)

	m, err := New(buffer(4096))
	require.NoError(t, err)
	assert.Equal(t, uint64(4096-HeaderSize), m.Size())
	assert.True(t, m.Control().IsEmpty())
}

func TestPostOffsetProperty(t *testing.T) {
	for _, size := range []uint64{16 + 256, 1000, 4096, 65536} {
		for _, pre := range []uint64{0, 1, 4, 255, 256, 257, 511, 600, 4000} {
			m, err := New(buffer(int(size)))
			require.NoError(t, err)
			if pre > m.Size() {
				require.ErrorIs(t, m.SetPreSize(pre), ErrBufferTooSmall)
				continue
			}
			require.NoError(t, m.SetPreSize(pre))
			assert.Equal(t, (pre+255)&^255, m.PostOffset())

			for _, post := range []uint64{0, 4, 256, 3000} {
				err := m.FinalizeTotalSize(pre + post)
				if m.PostOffset()+post > m.Size() {
					require.ErrorIs(t, err, ErrBufferTooSmall,
						"size %d pre %d post %d", size, pre, post)
				} else {
					require.NoError(t, err, "size %d pre %d post %d", size, pre, post)
					assert.Equal(t, post, m.PostSize())
				}
			}
		}
	}
}

func TestFinalizeBelowPre(t *testing.T) {
	m, err := New(buffer(4096))
	require.NoError(t, err)
	require.NoError(t, m.SetPreSize(100))
	require.ErrorIs(t, m.FinalizeTotalSize(99), ErrBufferTooSmall)
}

func TestGrowTrailingReservation(t *testing.T) {
	m, err := New(buffer(1024))
	require.NoError(t, err)

	require.NoError(t, m.GrowTrailingReservation(HeaderSize+48))
	assert.Equal(t, uint64(1024-64), m.Size())
	ctrl := m.Control()
	assert.Equal(t, uint64(48), ctrl.Size())
	assert.Equal(t, libpf.Address(0x4000_0000+1024-64), ctrl.Addr)

	// Smaller requests keep the reservation.
	require.NoError(t, m.GrowTrailingReservation(HeaderSize))
	assert.Equal(t, uint64(64), m.Reservation())

	require.ErrorIs(t, m.GrowTrailingReservation(2048), ErrBufferTooSmall)
	assert.Equal(t, uint64(64), m.Reservation())

	require.NoError(t, m.SetPreSize(700))
	require.NoError(t, m.FinalizeTotalSize(700))
	require.NoError(t, m.GrowTrailingReservation(200))
	require.ErrorIs(t, m.GrowTrailingReservation(300), ErrBufferTooSmall)
}

func TestCommitLoad(t *testing.T) {
	buf := buffer(8192)
	_, err := Load(buf)
	require.ErrorIs(t, err, ErrNoLayout)

	m, err := New(buf)
	require.NoError(t, err)
	require.NoError(t, m.GrowTrailingReservation(HeaderSize+48))
	require.NoError(t, m.SetPreSize(300))
	require.NoError(t, m.FinalizeTotalSize(300+120))

	cmds := bytes.Repeat([]byte{0xaa}, 300)
	cmds = append(cmds, bytes.Repeat([]byte{0xbb}, 120)...)
	require.NoError(t, m.WriteCommands(cmds))
	require.Error(t, m.WriteCommands(cmds[:10]))
	require.NoError(t, m.Commit())

	loaded, err := Load(buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), loaded.PreSize())
	assert.Equal(t, uint64(120), loaded.PostSize())
	assert.Equal(t, uint64(512), loaded.PostOffset())
	assert.Equal(t, m.Control(), loaded.Control())

	pre, err := loaded.PreSlice()
	require.NoError(t, err)
	assert.Equal(t, cmds[:300], pre.Data)
	post, err := loaded.PostSlice()
	require.NoError(t, err)
	assert.Equal(t, libpf.Address(0x4000_0000+512), post.Addr)
	assert.Equal(t, cmds[300:], post.Data)
	assert.Zero(t, buf.Data[400])
}
