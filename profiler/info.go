// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package profiler // import "go.opentelemetry.io/gpu-profiler/profiler"

const (
	// CommandBufferSize is the command buffer size every profile fits in.
	CommandBufferSize = 64 << 10
	// PMCDataSize is the output buffer size every counter profile fits in.
	PMCDataSize = 4 << 10
)

// GetInfo answers an information query. Size queries ignore prof. For
// InfoPMCData, data.Event selects the counter and data.SampleID the sample;
// with AllSamples the values of all samples are summed. For InfoSQTTData,
// data.SampleID selects the shader engine whose trace is returned; with
// AllSamples data.Value is the total trace size.
func (p *Profiler) GetInfo(prof *Profile, attr InfoType, data *InfoData) error {
	const op = "GetInfo"
	entry := p.entry(prof)

	switch attr {
	case InfoCommandBufferSize:
		data.Value = CommandBufferSize
		return nil
	case InfoPMCDataSize:
		data.Value = PMCDataSize
		return nil
	case InfoPMCData:
		want := *data
		data.Value = 0
		return p.IterateResults(prof, func(_ InfoType, rec *InfoData) error {
			if rec.Event != want.Event {
				return nil
			}
			if want.SampleID == AllSamples {
				data.Value += rec.Value
				return nil
			}
			if rec.SampleID == want.SampleID {
				data.Value = rec.Value
				return ErrInfoBreak
			}
			return nil
		})
	case InfoSQTTData:
		want := data.SampleID
		data.Value = 0
		return p.IterateResults(prof, func(_ InfoType, rec *InfoData) error {
			if want == AllSamples {
				data.Value += rec.Value
				return nil
			}
			if rec.SampleID == want {
				*data = *rec
				return ErrInfoBreak
			}
			return nil
		})
	case InfoBlockCounters, InfoBlockID:
		b, err := p.registry.Get(prof.Agent)
		if err != nil {
			return p.fail(entry, op, err)
		}
		info, err := b.Catalog.Validate(data.Event)
		if err != nil {
			return p.fail(entry, op, err)
		}
		if attr == InfoBlockCounters {
			data.Value = uint64(info.MaxSimultaneous)
		} else {
			data.Value = uint64(info.ID)
		}
		return nil
	default:
		return p.fail(entry, op, errorf(ErrInvalidParameter, "info attribute %v", attr))
	}
}
