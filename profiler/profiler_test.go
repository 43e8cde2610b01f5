// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package profiler

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/gpu-profiler/aql"
	"go.opentelemetry.io/gpu-profiler/blockcatalog"
	"go.opentelemetry.io/gpu-profiler/cmdbuffer"
	"go.opentelemetry.io/gpu-profiler/factory"
	"go.opentelemetry.io/gpu-profiler/libpf"
	"go.opentelemetry.io/gpu-profiler/pm4"
	"go.opentelemetry.io/gpu-profiler/registers"
	"go.opentelemetry.io/gpu-profiler/threadtrace"
)

const (
	agentGfx9  factory.AgentHandle = 1
	agentGfx8  factory.AgentHandle = 2
	agentRDNA  factory.AgentHandle = 3
	cmdBufAddr                     = 0x1000_0000
	outAddr                        = 0x2000_0000
)

func newProfiler(t *testing.T, opts ...Option) *Profiler {
	t.Helper()
	reg, err := factory.NewRegistry(factory.StaticAgentInfo{
		agentGfx9: "gfx906",
		agentGfx8: "gfx803",
		agentRDNA: "gfx1100",
	}, 0)
	require.NoError(t, err)
	t.Cleanup(reg.Close)
	return New(reg, opts...)
}

func pmcProfile(agent factory.AgentHandle, events ...blockcatalog.Event) *Profile {
	return &Profile{
		Agent:         agent,
		Type:          TypePMC,
		Events:        events,
		OutputBuffer:  libpf.NewDescriptor(outAddr, make([]byte, PMCDataSize)),
		CommandBuffer: libpf.NewDescriptor(cmdBufAddr, make([]byte, CommandBufferSize)),
	}
}

var (
	spiEvent = blockcatalog.Event{Block: blockcatalog.BlockSPI, CounterID: 1}
	tccEvent = blockcatalog.Event{Block: blockcatalog.BlockTCC, Index: 2, CounterID: 3}
)

// ibTarget decodes the jump embedded in a vendor packet.
func ibTarget(t *testing.T, pkt aql.VendorPacket) (libpf.Address, uint64) {
	t.Helper()
	h := pm4.DecodeHeader(pkt.PM4Command[0])
	require.Equal(t, pm4.OpIndirectBuffer, h.Opcode)
	addr := libpf.Address(uint64(pkt.PM4Command[2])<<32 | uint64(pkt.PM4Command[1]))
	return addr, 4 * uint64(pkt.PM4Command[3]&0xfffff)
}

func TestBeginEndProfilePMC(t *testing.T) {
	p := newProfiler(t)
	prof := pmcProfile(agentGfx9, tccEvent, spiEvent)

	start, err := p.BeginProfile(prof)
	require.NoError(t, err)
	assert.Equal(t, aql.TypeVendorSpecific, aql.HeaderType(start.Header))
	assert.Equal(t, aql.VendorFormatPM4IB, start.VendorHeader)
	preAddr, preSize := ibTarget(t, start)
	assert.Equal(t, libpf.Address(cmdBufAddr), preAddr)
	assert.NotZero(t, preSize)

	stop, err := p.EndProfile(prof)
	require.NoError(t, err)
	postAddr, postSize := ibTarget(t, stop)
	assert.Equal(t, libpf.Address(cmdBufAddr+libpf.AlignUp(preSize, cmdbuffer.PostAlign)),
		postAddr)

	mgr, err := cmdbuffer.Load(prof.CommandBuffer)
	require.NoError(t, err)
	assert.Equal(t, preSize, mgr.PreSize())
	assert.Equal(t, postSize, mgr.PostSize())

	post, err := mgr.PostSlice()
	require.NoError(t, err)
	packets, err := pm4.Disassemble(post.Data)
	require.NoError(t, err)
	copies := 0
	for _, pkt := range packets {
		if pkt.Header.Opcode == pm4.OpCopyData {
			copies++
		}
	}
	// 4 SPI samples and 1 TCC sample, two dwords each.
	assert.Equal(t, 2*(4+1), copies)
}

func fillSamples(out libpf.Descriptor, n int) {
	for i := range n {
		binary.LittleEndian.PutUint32(out.Data[8*i:], uint32(100+i))
		binary.LittleEndian.PutUint32(out.Data[8*i+4:], 1)
	}
}

func TestIterateResultsPMC(t *testing.T) {
	p := newProfiler(t)
	prof := pmcProfile(agentGfx9, tccEvent, spiEvent)
	_, err := p.BeginProfile(prof)
	require.NoError(t, err)
	fillSamples(prof.OutputBuffer, 5)

	var records []InfoData
	require.NoError(t, p.IterateResults(prof, func(info InfoType, data *InfoData) error {
		assert.Equal(t, InfoPMCData, info)
		records = append(records, *data)
		return nil
	}))
	require.Len(t, records, 5)
	for i, rec := range records[:4] {
		assert.Equal(t, spiEvent, rec.Event)
		assert.Equal(t, uint32(i), rec.SampleID)
		assert.Equal(t, uint64(1)<<32|uint64(100+i), rec.Value)
	}
	assert.Equal(t, tccEvent, records[4].Event)
	assert.Equal(t, uint32(0), records[4].SampleID)

	calls := 0
	require.NoError(t, p.IterateResults(prof, func(InfoType, *InfoData) error {
		calls++
		if calls == 2 {
			return ErrInfoBreak
		}
		return nil
	}))
	assert.Equal(t, 2, calls)
}

func TestGetInfo(t *testing.T) {
	p := newProfiler(t)
	prof := pmcProfile(agentGfx9, spiEvent, tccEvent)
	_, err := p.BeginProfile(prof)
	require.NoError(t, err)
	fillSamples(prof.OutputBuffer, 5)

	var data InfoData
	require.NoError(t, p.GetInfo(prof, InfoCommandBufferSize, &data))
	assert.Equal(t, uint64(CommandBufferSize), data.Value)
	require.NoError(t, p.GetInfo(prof, InfoPMCDataSize, &data))
	assert.Equal(t, uint64(PMCDataSize), data.Value)

	data = InfoData{Event: spiEvent, SampleID: AllSamples}
	require.NoError(t, p.GetInfo(prof, InfoPMCData, &data))
	assert.Equal(t, uint64(4)<<32+100+101+102+103, data.Value)

	data = InfoData{Event: spiEvent, SampleID: 2}
	require.NoError(t, p.GetInfo(prof, InfoPMCData, &data))
	assert.Equal(t, uint64(1)<<32|102, data.Value)

	data = InfoData{Event: tccEvent}
	require.NoError(t, p.GetInfo(prof, InfoBlockCounters, &data))
	assert.Equal(t, uint64(4), data.Value)
	require.NoError(t, p.GetInfo(prof, InfoBlockID, &data))
	assert.Equal(t, uint64(registers.BlockTCC), data.Value)

	err = p.GetInfo(prof, InfoType(99), &data)
	assert.Equal(t, KindInvalidParameter, KindOf(err))
}

func TestValidateEvent(t *testing.T) {
	p := newProfiler(t)
	ok, err := p.ValidateEvent(agentGfx9, tccEvent)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.ValidateEvent(agentGfx9, blockcatalog.Event{Block: blockcatalog.BlockTCC,
		Index: 100})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, p.LastError(), "instance 100")

	// GCEA does not exist before gfx9.
	ok, err = p.ValidateEvent(agentGfx8, blockcatalog.Event{Block: blockcatalog.BlockGCEA})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = p.ValidateEvent(agentRDNA, tccEvent)
	assert.Equal(t, KindUnsupportedAgent, KindOf(err))
}

func TestBeginProfileErrors(t *testing.T) {
	p := newProfiler(t)

	bad := blockcatalog.Event{Block: blockcatalog.BlockSPI, CounterID: 10000}
	_, err := p.BeginProfile(pmcProfile(agentGfx9, spiEvent, bad))
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindInvalidEvent, pe.Kind)
	require.NotNil(t, pe.Event)
	assert.Equal(t, bad, *pe.Event)
	assert.Equal(t, err.Error(), p.LastError())

	_, err = p.BeginProfile(pmcProfile(agentRDNA, spiEvent))
	assert.Equal(t, KindUnsupportedAgent, KindOf(err))

	prof := pmcProfile(agentGfx9, spiEvent)
	prof.CommandBuffer = libpf.NewDescriptor(cmdBufAddr, make([]byte, 256))
	_, err = p.BeginProfile(prof)
	assert.Equal(t, KindBufferTooSmall, KindOf(err))
	assert.ErrorIs(t, err, cmdbuffer.ErrBufferTooSmall)

	prof = pmcProfile(agentGfx9, spiEvent)
	prof.OutputBuffer = libpf.NewDescriptor(outAddr, make([]byte, 8))
	_, err = p.BeginProfile(prof)
	assert.Equal(t, KindBufferTooSmall, KindOf(err))

	_, err = p.BeginProfile(pmcProfile(agentGfx9,
		blockcatalog.Event{Block: blockcatalog.BlockMCVML2}))
	assert.Equal(t, KindDataSizeZero, KindOf(err))

	_, err = p.EndProfile(pmcProfile(agentGfx9, spiEvent))
	assert.Equal(t, KindInvalidOperation, KindOf(err))

	prof = pmcProfile(agentGfx9, spiEvent)
	prof.Type = ProfileType(7)
	_, err = p.BeginProfile(prof)
	assert.Equal(t, KindInvalidParameter, KindOf(err))
}

func sqttProfile(agent factory.AgentHandle, params ...Parameter) *Profile {
	return &Profile{
		Agent:         agent,
		Type:          TypeSQTT,
		Parameters:    params,
		OutputBuffer:  libpf.NewDescriptor(outAddr, make([]byte, 1<<20)),
		CommandBuffer: libpf.NewDescriptor(cmdBufAddr, make([]byte, CommandBufferSize)),
	}
}

func putStatus(ctrl []byte, se int, status, wptr uint32) {
	binary.LittleEndian.PutUint32(ctrl[se*threadtrace.StatusStride:], status)
	binary.LittleEndian.PutUint32(ctrl[se*threadtrace.StatusStride+8:], wptr)
}

func TestProfileSQTT(t *testing.T) {
	p := newProfiler(t)
	prof := sqttProfile(agentGfx9, Parameter{Name: ParamComputeUnitTarget, Value: 2})

	_, err := p.BeginProfile(prof)
	require.NoError(t, err)
	_, err = p.EndProfile(prof)
	require.NoError(t, err)

	mgr, err := cmdbuffer.Load(prof.CommandBuffer)
	require.NoError(t, err)
	ctrl := mgr.Control()
	require.Equal(t, uint64(4*threadtrace.StatusStride), ctrl.Size())
	for se := range 4 {
		putStatus(ctrl.Data, se, 0, 0x8000_0000>>1|uint32(se+1))
	}

	var traces []InfoData
	require.NoError(t, p.IterateResults(prof, func(info InfoType, data *InfoData) error {
		assert.Equal(t, InfoSQTTData, info)
		traces = append(traces, *data)
		return nil
	}))
	require.Len(t, traces, 4)
	seSize := uint64(1<<20) / 4
	for se, tr := range traces {
		assert.Equal(t, uint32(se), tr.SampleID)
		assert.Equal(t, uint64(32*(se+1)), tr.TraceData.Size())
		assert.Equal(t, libpf.Address(outAddr+uint64(se)*seSize), tr.TraceData.Addr)
	}

	data := InfoData{SampleID: AllSamples}
	require.NoError(t, p.GetInfo(prof, InfoSQTTData, &data))
	assert.Equal(t, uint64(32*(1+2+3+4)), data.Value)

	data = InfoData{SampleID: 3}
	require.NoError(t, p.GetInfo(prof, InfoSQTTData, &data))
	assert.Equal(t, uint64(128), data.TraceData.Size())

	putStatus(ctrl.Data, 1, registers.ThreadTraceStatusWrapped, 4)
	err = p.IterateResults(prof, func(InfoType, *InfoData) error { return nil })
	assert.Equal(t, KindTraceWrapped, KindOf(err))
}

func TestSQTTParameterPolicy(t *testing.T) {
	params := []Parameter{{Name: ParamMask, Value: 0x40}}

	// The default policy hands reserved bits to the device.
	p := newProfiler(t)
	prof := sqttProfile(agentGfx9, params...)
	_, err := p.BeginProfile(prof)
	require.NoError(t, err)

	mgr, err := cmdbuffer.Load(prof.CommandBuffer)
	require.NoError(t, err)
	pre, err := mgr.PreSlice()
	require.NoError(t, err)
	packets, err := pm4.Disassemble(pre.Data)
	require.NoError(t, err)
	masks := 0
	for _, pkt := range packets {
		if reg, ok := pkt.SetRegAddr(); ok && reg == registers.Gfx9().ThreadTrace.Mask {
			assert.Equal(t, uint32(0x40), pkt.Body[1]&0x40)
			masks++
		}
	}
	assert.Equal(t, 4, masks)

	p = newProfiler(t, WithPolicy(RejectInvalid))
	_, err = p.BeginProfile(sqttProfile(agentGfx9, params...))
	assert.Equal(t, KindInvalidParameter, KindOf(err))
	assert.Contains(t, p.LastError(), "reserved bits")

	_, err = p.BeginProfile(sqttProfile(agentGfx9, Parameter{Name: ParameterName(42)}))
	assert.Equal(t, KindInvalidParameter, KindOf(err))
}

func TestLegacyConvert(t *testing.T) {
	p := newProfiler(t, WithDiagnostics(true))
	prof := pmcProfile(agentGfx8, spiEvent)
	start, err := p.BeginProfile(prof)
	require.NoError(t, err)
	start.CompletionSignal = 0xabcdef

	out := make([]byte, LegacySize+8)
	for i := range out {
		out[i] = 0xee
	}
	require.NoError(t, p.LegacyConvert(&start, out))
	assert.Equal(t, byte(0xee), out[LegacySize])

	var acquire, release aql.BarrierAndPacket
	require.NoError(t, aql.Decode(out, &acquire))
	require.NoError(t, aql.Decode(out[2*aql.PacketSize:], &release))
	assert.Equal(t, aql.TypeBarrierAnd, aql.HeaderType(acquire.Header))
	assert.Equal(t, aql.ScopeSystem, aql.HeaderAcquire(acquire.Header))
	assert.Equal(t, aql.BarrierAndPacket{Header: acquire.Header}, acquire)
	assert.Equal(t, aql.ScopeSystem, aql.HeaderRelease(release.Header))
	assert.Equal(t, uint64(0xabcdef), release.CompletionSignal)

	slot := out[aql.PacketSize : 2*aql.PacketSize]
	packets, err := pm4.Disassemble(slot)
	require.NoError(t, err)
	require.Len(t, packets, 3)
	assert.Equal(t, pm4.OpNop, packets[0].Header.Opcode)
	assert.Equal(t, pm4.OpIndirectBuffer, packets[1].Header.Opcode)
	assert.Equal(t, pm4.OpReleaseMem, packets[2].Header.Opcode)
	assert.Equal(t, start.PM4CommandBytes(), slot[packets[1].Offset:packets[1].Offset+16])

	err = p.LegacyConvert(&start, make([]byte, LegacySize-1))
	assert.Equal(t, KindBufferTooSmall, KindOf(err))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(assert.AnError))
	assert.Equal(t, KindInvalidOperation,
		KindOf(classify("x", threadtrace.ErrInvalidState)))
	assert.Equal(t, "buffer too small", KindBufferTooSmall.String())
}

func TestNameParsing(t *testing.T) {
	typ, ok := ProfileTypeFromString("SQTT")
	require.True(t, ok)
	assert.Equal(t, TypeSQTT, typ)
	_, ok = ProfileTypeFromString("spm")
	assert.False(t, ok)

	for n := ParamComputeUnitTarget; n <= ParamTokenMask2; n++ {
		got, ok := ParameterNameFromString(n.String())
		require.True(t, ok, n.String())
		assert.Equal(t, n, got)
	}
	_, ok = ParameterNameFromString("param(9)")
	assert.False(t, ok)
}
