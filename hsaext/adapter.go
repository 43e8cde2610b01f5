// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package hsaext // import "go.opentelemetry.io/gpu-profiler/hsaext"

import (
	"sync"

	"go.opentelemetry.io/gpu-profiler/aql"
	"go.opentelemetry.io/gpu-profiler/blockcatalog"
	"go.opentelemetry.io/gpu-profiler/factory"
	"go.opentelemetry.io/gpu-profiler/profiler"
)

// adapter holds what both table generations share.
type adapter struct {
	p *profiler.Profiler

	mu      sync.Mutex
	lastErr string
}

func (a *adapter) status(err error) Status {
	s := StatusOf(err)
	if s != StatusSuccess && s != StatusInfoBreak {
		a.mu.Lock()
		a.lastErr = err.Error()
		a.mu.Unlock()
	}
	return s
}

// Error returns the message of the last failed call on this adapter.
func (a *adapter) Error() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

func (a *adapter) validateEvent(agent factory.AgentHandle, ev blockcatalog.Event) (bool, Status) {
	ok, err := a.p.ValidateEvent(agent, ev)
	if err != nil {
		return false, a.status(err)
	}
	if !ok {
		a.mu.Lock()
		a.lastErr = a.p.LastError()
		a.mu.Unlock()
	}
	return ok, StatusSuccess
}

// V1Callback receives results through the first generation table.
type V1Callback func(info profiler.InfoType, data *profiler.InfoData, userData any) Status

// V1 is the first generation table. Start and stop packets are written to
// caller storage and legacy queues are served through LegacyGetPM4.
type V1 struct {
	adapter
}

// NewV1 returns a first generation adapter over p.
func NewV1(p *profiler.Profiler) *V1 {
	return &V1{adapter{p: p}}
}

// ValidateEvent stores in result whether ev can be collected on agent.
func (a *V1) ValidateEvent(agent factory.AgentHandle, ev blockcatalog.Event,
	result *bool) Status {
	if result == nil {
		return StatusInvalidArgument
	}
	ok, s := a.validateEvent(agent, ev)
	*result = ok
	return s
}

// StartProfile encodes prof and writes its start packet to pkt.
func (a *V1) StartProfile(prof *profiler.Profile, pkt *aql.VendorPacket) Status {
	if prof == nil || pkt == nil {
		return StatusInvalidArgument
	}
	start, err := a.p.BeginProfile(prof)
	if err != nil {
		return a.status(err)
	}
	*pkt = start
	return StatusSuccess
}

// StopProfile writes the stop packet of prof to pkt.
func (a *V1) StopProfile(prof *profiler.Profile, pkt *aql.VendorPacket) Status {
	if prof == nil || pkt == nil {
		return StatusInvalidArgument
	}
	stop, err := a.p.EndProfile(prof)
	if err != nil {
		return a.status(err)
	}
	*pkt = stop
	return StatusSuccess
}

// LegacyGetPM4 converts pkt for a legacy queue into out.
func (a *V1) LegacyGetPM4(pkt *aql.VendorPacket, out []byte) Status {
	if pkt == nil {
		return StatusInvalidArgument
	}
	return a.status(a.p.LegacyConvert(pkt, out))
}

// GetInfo answers an information query.
func (a *V1) GetInfo(prof *profiler.Profile, attr profiler.InfoType,
	data *profiler.InfoData) Status {
	if prof == nil || data == nil {
		return StatusInvalidArgument
	}
	return a.status(a.p.GetInfo(prof, attr, data))
}

// IterateData calls cb with userData for every result of prof.
func (a *V1) IterateData(prof *profiler.Profile, cb V1Callback, userData any) Status {
	if prof == nil || cb == nil {
		return StatusInvalidArgument
	}
	return a.status(a.p.IterateResults(prof,
		func(info profiler.InfoType, data *profiler.InfoData) error {
			return callbackResult(cb(info, data, userData))
		}))
}

// V2Callback receives results through the second generation table.
type V2Callback func(info profiler.InfoType, data *profiler.InfoData, userData any) Status

// V2 is the second generation table. Packets are returned by value and
// legacy queues are not served.
type V2 struct {
	adapter
}

// NewV2 returns a second generation adapter over p.
func NewV2(p *profiler.Profiler) *V2 {
	return &V2{adapter{p: p}}
}

// ValidateEvent reports whether ev can be collected on agent.
func (a *V2) ValidateEvent(agent factory.AgentHandle, ev blockcatalog.Event) (bool, Status) {
	return a.validateEvent(agent, ev)
}

// StartProfile encodes prof and returns its start packet.
func (a *V2) StartProfile(prof *profiler.Profile) (aql.VendorPacket, Status) {
	if prof == nil {
		return aql.VendorPacket{}, StatusInvalidArgument
	}
	pkt, err := a.p.BeginProfile(prof)
	return pkt, a.status(err)
}

// StopProfile returns the stop packet of prof.
func (a *V2) StopProfile(prof *profiler.Profile) (aql.VendorPacket, Status) {
	if prof == nil {
		return aql.VendorPacket{}, StatusInvalidArgument
	}
	pkt, err := a.p.EndProfile(prof)
	return pkt, a.status(err)
}

// GetInfo answers an information query.
func (a *V2) GetInfo(prof *profiler.Profile, attr profiler.InfoType,
	data *profiler.InfoData) Status {
	if prof == nil || data == nil {
		return StatusInvalidArgument
	}
	return a.status(a.p.GetInfo(prof, attr, data))
}

// IterateData calls cb with userData for every result of prof.
func (a *V2) IterateData(prof *profiler.Profile, cb V2Callback, userData any) Status {
	if prof == nil || cb == nil {
		return StatusInvalidArgument
	}
	return a.status(a.p.IterateResults(prof,
		func(info profiler.InfoType, data *profiler.InfoData) error {
			return callbackResult(cb(info, data, userData))
		}))
}
