// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package cmdbuffer partitions a caller supplied command buffer into the
// begin commands, the end commands and a trailing reservation holding the
// layout header and optional device written control data.
//
// Layout of a committed buffer of size S with a trailing reservation R:
//
//	[0, preSize)                          begin commands
//	[postOffset, postOffset+postSize)     end commands, postOffset 256-aligned
//	[S-R, S-HeaderSize)                   control data
//	[S-HeaderSize, S)                     header
package cmdbuffer // import "go.opentelemetry.io/gpu-profiler/cmdbuffer"

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/gpu-profiler/libpf"
	npsr "go.opentelemetry.io/gpu-profiler/nopanicslicereader"
)

// ErrBufferTooSmall is returned whenever a layout does not fit the buffer.
var ErrBufferTooSmall = errors.New("command buffer too small")

// ErrNoLayout is returned by Load when the buffer holds no committed layout.
var ErrNoLayout = errors.New("command buffer holds no layout")

const (
	// HeaderSize is the size of the layout header at the end of the buffer.
	HeaderSize = 16
	// PostAlign is the alignment of the end commands.
	PostAlign = 256

	reservationAlign = 16
	headerMagic      = 0x4c444d43 // "CMDL"
)

// Manager tracks the layout of one command buffer.
type Manager struct {
	buf         libpf.Descriptor
	reservation uint64
	preSize     uint64
	postSize    uint64
}

// New reserves the layout header at the end of buf.
func New(buf libpf.Descriptor) (*Manager, error) {
	if buf.Size() < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes cannot hold the %d byte header",
			ErrBufferTooSmall, buf.Size(), HeaderSize)
	}
	return &Manager{buf: buf, reservation: HeaderSize}, nil
}

// Load re-derives the layout committed to buf by an earlier Commit.
func Load(buf libpf.Descriptor) (*Manager, error) {
	m, err := New(buf)
	if err != nil {
		return nil, err
	}
	hdr := buf.Data[buf.Size()-HeaderSize:]
	if npsr.Uint32(hdr, 0) != headerMagic {
		return nil, ErrNoLayout
	}
	if err = m.GrowTrailingReservation(uint64(npsr.Uint32(hdr, 12))); err != nil {
		return nil, err
	}
	if err = m.SetPreSize(uint64(npsr.Uint32(hdr, 4))); err != nil {
		return nil, err
	}
	if err = m.FinalizeTotalSize(m.preSize + uint64(npsr.Uint32(hdr, 8))); err != nil {
		return nil, err
	}
	return m, nil
}

// Size returns the part of the buffer available for commands.
func (m *Manager) Size() uint64 {
	return m.buf.Size() - m.reservation
}

// Reservation returns the size of the trailing reservation, header included.
func (m *Manager) Reservation() uint64 {
	return m.reservation
}

// GrowTrailingReservation grows the trailing reservation to at least n bytes,
// header included. The reservation never shrinks.
func (m *Manager) GrowTrailingReservation(n uint64) error {
	n = libpf.AlignUp(n, reservationAlign)
	if n <= m.reservation {
		return nil
	}
	if n > m.buf.Size() || m.PostOffset()+m.postSize > m.buf.Size()-n {
		return fmt.Errorf("%w: cannot reserve %d of %d bytes", ErrBufferTooSmall, n, m.buf.Size())
	}
	m.reservation = n
	return nil
}

// Control returns the grown part of the trailing reservation.
func (m *Manager) Control() libpf.Descriptor {
	d, err := m.buf.Slice(m.Size(), m.reservation-HeaderSize)
	if err != nil {
		return libpf.Descriptor{}
	}
	return d
}

// SetPreSize records the size of the begin commands.
func (m *Manager) SetPreSize(n uint64) error {
	if n > m.Size() {
		return fmt.Errorf("%w: %d bytes of begin commands, %d available",
			ErrBufferTooSmall, n, m.Size())
	}
	m.preSize = n
	return nil
}

// PreSize returns the size of the begin commands.
func (m *Manager) PreSize() uint64 {
	return m.preSize
}

// PostSize returns the size of the end commands.
func (m *Manager) PostSize() uint64 {
	return m.postSize
}

// PostOffset returns the offset of the end commands.
func (m *Manager) PostOffset() uint64 {
	return libpf.AlignUp(m.preSize, PostAlign)
}

// FinalizeTotalSize records the size of the whole command stream; everything
// after the begin commands are end commands.
func (m *Manager) FinalizeTotalSize(n uint64) error {
	if n < m.preSize {
		return fmt.Errorf("%w: total %d below begin commands %d", ErrBufferTooSmall, n, m.preSize)
	}
	post := n - m.preSize
	if m.PostOffset()+post > m.Size() {
		return fmt.Errorf("%w: end commands need [%d, %d), %d available",
			ErrBufferTooSmall, m.PostOffset(), m.PostOffset()+post, m.Size())
	}
	m.postSize = post
	return nil
}

// PreSlice returns the begin command part of the buffer.
func (m *Manager) PreSlice() (libpf.Descriptor, error) {
	return m.buf.Slice(0, m.preSize)
}

// PostSlice returns the end command part of the buffer.
func (m *Manager) PostSlice() (libpf.Descriptor, error) {
	return m.buf.Slice(m.PostOffset(), m.postSize)
}

// Commit writes the layout header so that Load can recover the layout.
func (m *Manager) Commit() error {
	hdr := m.buf.Data[m.buf.Size()-HeaderSize:]
	for i, v := range []uint32{headerMagic, uint32(m.preSize), uint32(m.postSize),
		uint32(m.reservation)} {
		if !npsr.PutUint32(hdr, uint(4*i), v) {
			return fmt.Errorf("%w: header", ErrBufferTooSmall)
		}
	}
	return nil
}

// WriteCommands copies a linear command stream into the pre and post
// partitions. The first PreSize bytes of cmds are the begin commands.
func (m *Manager) WriteCommands(cmds []byte) error {
	if uint64(len(cmds)) != m.preSize+m.postSize {
		return fmt.Errorf("command stream of %d bytes does not match layout %d+%d",
			len(cmds), m.preSize, m.postSize)
	}
	pre, err := m.PreSlice()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBufferTooSmall, err)
	}
	post, err := m.PostSlice()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBufferTooSmall, err)
	}
	copy(pre.Data, cmds[:m.preSize])
	copy(post.Data, cmds[m.preSize:])
	return nil
}
