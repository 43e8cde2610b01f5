// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package hsaext

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/gpu-profiler/aql"
	"go.opentelemetry.io/gpu-profiler/blockcatalog"
	"go.opentelemetry.io/gpu-profiler/cmdbuffer"
	"go.opentelemetry.io/gpu-profiler/factory"
	"go.opentelemetry.io/gpu-profiler/libpf"
	"go.opentelemetry.io/gpu-profiler/perfcounter"
	"go.opentelemetry.io/gpu-profiler/profiler"
)

const (
	gfx906 factory.AgentHandle = 1
	gfx803 factory.AgentHandle = 2
	gfx801 factory.AgentHandle = 3
)

var spi = blockcatalog.Event{Block: blockcatalog.BlockSPI, CounterID: 5}

func newProfiler(t *testing.T) *profiler.Profiler {
	t.Helper()
	reg, err := factory.NewRegistry(factory.StaticAgentInfo{
		gfx906: "gfx906",
		gfx803: "gfx803",
		gfx801: "gfx801",
	}, 0)
	require.NoError(t, err)
	t.Cleanup(reg.Close)
	return profiler.New(reg)
}

func newProfile(agent factory.AgentHandle, events ...blockcatalog.Event) *profiler.Profile {
	return &profiler.Profile{
		Agent:         agent,
		Type:          profiler.TypePMC,
		Events:        events,
		OutputBuffer:  libpf.NewDescriptor(0x20000, make([]byte, profiler.PMCDataSize)),
		CommandBuffer: libpf.NewDescriptor(0x40000, make([]byte, profiler.CommandBufferSize)),
	}
}

func TestStatusOf(t *testing.T) {
	tests := map[string]struct {
		err  error
		want Status
	}{
		"nil":          {nil, StatusSuccess},
		"break":        {profiler.ErrInfoBreak, StatusInfoBreak},
		"event":        {&blockcatalog.EventError{Event: spi}, StatusInvalidArgument},
		"parameter":    {profiler.ErrInvalidParameter, StatusInvalidArgument},
		"buffer":       {fmt.Errorf("x: %w", cmdbuffer.ErrBufferTooSmall), StatusOutOfResources},
		"agent":        {factory.ErrUnsupportedAgent, StatusInvalidAgent},
		"operation":    {perfcounter.ErrInvalidOperation, StatusError},
		"data size":    {perfcounter.ErrDataSizeZero, StatusError},
		"wrapped":      {profiler.ErrTraceWrapped, StatusError},
		"callback":     {&CallbackError{Status: StatusOutOfResources}, StatusOutOfResources},
		"other":        {assert.AnError, StatusError},
		"wrapped kind": {&profiler.Error{Kind: profiler.KindUnsupportedAgent}, StatusInvalidAgent},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, StatusOf(tc.err))
		})
	}
}

func TestV1(t *testing.T) {
	a := NewV1(newProfiler(t))
	prof := newProfile(gfx803, spi)

	var ok bool
	require.Equal(t, StatusSuccess, a.ValidateEvent(gfx803, spi, &ok))
	assert.True(t, ok)
	require.Equal(t, StatusSuccess, a.ValidateEvent(gfx803,
		blockcatalog.Event{Block: blockcatalog.BlockGCEA}, &ok))
	assert.False(t, ok)
	assert.Contains(t, a.Error(), "GCEA")
	assert.Equal(t, StatusInvalidArgument, a.ValidateEvent(gfx803, spi, nil))

	var start, stop aql.VendorPacket
	require.Equal(t, StatusSuccess, a.StartProfile(prof, &start))
	require.Equal(t, StatusSuccess, a.StopProfile(prof, &stop))
	assert.NotEqual(t, start.PM4Command, stop.PM4Command)

	legacy := make([]byte, profiler.LegacySize)
	assert.Equal(t, StatusSuccess, a.LegacyGetPM4(&start, legacy))
	assert.Equal(t, StatusOutOfResources, a.LegacyGetPM4(&start, legacy[:64]))
	assert.Contains(t, a.Error(), "LegacyConvert")

	type seen struct{ n int }
	user := &seen{}
	assert.Equal(t, StatusSuccess, a.IterateData(prof,
		func(info profiler.InfoType, _ *profiler.InfoData, userData any) Status {
			assert.Equal(t, profiler.InfoPMCData, info)
			userData.(*seen).n++
			return StatusSuccess
		}, user))
	assert.Equal(t, 4, user.n)

	user.n = 0
	assert.Equal(t, StatusSuccess, a.IterateData(prof,
		func(_ profiler.InfoType, _ *profiler.InfoData, userData any) Status {
			userData.(*seen).n++
			return StatusInfoBreak
		}, user))
	assert.Equal(t, 1, user.n)

	assert.Equal(t, StatusOutOfResources, a.IterateData(prof,
		func(profiler.InfoType, *profiler.InfoData, any) Status {
			return StatusOutOfResources
		}, nil))

	data := profiler.InfoData{}
	assert.Equal(t, StatusSuccess, a.GetInfo(prof, profiler.InfoCommandBufferSize, &data))
	assert.Equal(t, uint64(profiler.CommandBufferSize), data.Value)
}

func TestV2(t *testing.T) {
	a := NewV2(newProfiler(t))

	_, s := a.StartProfile(newProfile(gfx801, spi))
	assert.Equal(t, StatusInvalidAgent, s)
	assert.Contains(t, a.Error(), "gfx801")

	_, s = a.StopProfile(newProfile(gfx906, spi))
	assert.Equal(t, StatusError, s)

	prof := newProfile(gfx906, spi)
	_, s = a.StartProfile(prof)
	require.Equal(t, StatusSuccess, s)
	_, s = a.StopProfile(prof)
	require.Equal(t, StatusSuccess, s)

	var ids []uint32
	assert.Equal(t, StatusSuccess, a.IterateData(prof,
		func(_ profiler.InfoType, data *profiler.InfoData, userData any) Status {
			*userData.(*[]uint32) = append(*userData.(*[]uint32), data.SampleID)
			return StatusSuccess
		}, &ids))
	assert.Equal(t, []uint32{0, 1, 2, 3}, ids)

	ok, s := a.ValidateEvent(gfx906, blockcatalog.Event{Block: blockcatalog.BlockSPI,
		CounterID: 1000})
	assert.Equal(t, StatusSuccess, s)
	assert.False(t, ok)

	unknown := blockcatalog.Event{Block: blockcatalog.BlockName(9999)}
	_, s = a.StartProfile(newProfile(gfx906, unknown))
	assert.Equal(t, StatusInvalidArgument, s)
}
