// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package profiler implements the profiling operations exposed to the host
// runtime: encoding the begin and end command streams of a profile, reading
// back its results and converting vendor packets for legacy queues.
//
// The Profiler keeps no state between calls apart from the agent bundle
// cache of its Registry and the last error message. Everything EndProfile and
// IterateResults need is re-derived from the profile's buffers.
package profiler // import "go.opentelemetry.io/gpu-profiler/profiler"

import (
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"go.opentelemetry.io/gpu-profiler/aql"
	"go.opentelemetry.io/gpu-profiler/blockcatalog"
	"go.opentelemetry.io/gpu-profiler/cmdbuffer"
	"go.opentelemetry.io/gpu-profiler/factory"
	"go.opentelemetry.io/gpu-profiler/libpf"
	"go.opentelemetry.io/gpu-profiler/metrics"
	npsr "go.opentelemetry.io/gpu-profiler/nopanicslicereader"
	"go.opentelemetry.io/gpu-profiler/perfcounter"
	"go.opentelemetry.io/gpu-profiler/pm4"
)

// Policy decides what happens to out of range thread trace parameters.
type Policy uint8

const (
	// PassThrough logs a warning and hands the values to the device
	// unchanged.
	PassThrough Policy = iota
	// RejectInvalid fails the request with KindInvalidParameter.
	RejectInvalid
)

func (p Policy) String() string {
	if p == RejectInvalid {
		return "reject"
	}
	return "pass-through"
}

// Option configures a Profiler.
type Option func(*Profiler)

// WithPolicy sets the parameter validation policy.
func WithPolicy(policy Policy) Option {
	return func(p *Profiler) {
		p.policy = policy
	}
}

// WithLogger sets the diagnostic sink. The default is the logrus standard
// logger.
func WithLogger(logger *log.Logger) Option {
	return func(p *Profiler) {
		p.logger = logger
	}
}

// WithDiagnostics switches debug level diagnostics on or off on a logger
// private to the Profiler.
func WithDiagnostics(on bool) Option {
	return func(p *Profiler) {
		logger := log.New()
		logger.SetFormatter(log.StandardLogger().Formatter)
		logger.SetOutput(log.StandardLogger().Out)
		logger.SetLevel(log.InfoLevel)
		if on {
			logger.SetLevel(log.DebugLevel)
		}
		p.logger = logger
	}
}

// Profiler encodes and interprets profiles. It is safe for concurrent use as
// long as calls for the same command buffer do not overlap.
type Profiler struct {
	registry *factory.Registry
	logger   *log.Logger
	policy   Policy

	mu      sync.Mutex
	lastErr string
}

// New returns a Profiler resolving agents through registry.
func New(registry *factory.Registry, opts ...Option) *Profiler {
	p := &Profiler{
		registry: registry,
		logger:   log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// LastError returns the message of the most recent failure.
func (p *Profiler) LastError() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *Profiler) setLastError(msg string) {
	p.mu.Lock()
	p.lastErr = msg
	p.mu.Unlock()
}

// fail classifies err, records it as the last error and returns it.
func (p *Profiler) fail(entry *log.Entry, op string, err error) error {
	e := classify(op, err)
	p.setLastError(e.Error())
	entry.WithField("kind", e.Kind).Debugf("%s failed: %v", op, e.Err)
	return e
}

func (p *Profiler) entry(prof *Profile) *log.Entry {
	return p.logger.WithFields(log.Fields{
		"agent": prof.Agent,
		"mode":  prof.Type,
	})
}

// ValidateEvent reports whether ev can be collected on agent. An invalid
// event is not an error; its reason is available through LastError.
func (p *Profiler) ValidateEvent(agent factory.AgentHandle, ev blockcatalog.Event) (bool, error) {
	entry := p.logger.WithField("agent", agent)
	b, err := p.registry.Get(agent)
	if err != nil {
		return false, p.fail(entry, "ValidateEvent", err)
	}
	if _, err = b.Catalog.Validate(ev); err != nil {
		p.setLastError(err.Error())
		entry.Debugf("Event %v rejected: %v", ev, err)
		return false, nil
	}
	return true, nil
}

// BeginProfile encodes the begin and end command streams of prof into its
// command buffer and returns the packet that starts the profile.
func (p *Profiler) BeginProfile(prof *Profile) (aql.VendorPacket, error) {
	const op = "BeginProfile"
	entry := p.entry(prof)
	metrics.Add(metrics.IDBeginProfile, 1)

	pkt, err := p.beginProfile(entry, prof)
	if err != nil {
		metrics.Add(metrics.IDBeginProfileErrors, 1)
		return aql.VendorPacket{}, p.fail(entry, op, err)
	}
	return pkt, nil
}

func (p *Profiler) beginProfile(entry *log.Entry, prof *Profile) (aql.VendorPacket, error) {
	b, err := p.registry.Get(prof.Agent)
	if err != nil {
		return aql.VendorPacket{}, err
	}
	mgr, err := cmdbuffer.New(prof.CommandBuffer)
	if err != nil {
		return aql.VendorPacket{}, err
	}

	cmd := pm4.NewCmdBuf(int(mgr.Size()))
	var pre uint64
	switch prof.Type {
	case TypePMC:
		pre, err = p.encodePMC(entry, b, prof, cmd)
	case TypeSQTT:
		pre, err = p.encodeSQTT(entry, b, prof, mgr, cmd)
	default:
		err = errorf(ErrInvalidParameter, "profile type %v", prof.Type)
	}
	if err != nil {
		return aql.VendorPacket{}, err
	}

	if err = mgr.SetPreSize(pre); err != nil {
		return aql.VendorPacket{}, err
	}
	if err = mgr.FinalizeTotalSize(cmd.Size()); err != nil {
		return aql.VendorPacket{}, err
	}
	if err = mgr.WriteCommands(cmd.Bytes()); err != nil {
		return aql.VendorPacket{}, err
	}
	if err = mgr.Commit(); err != nil {
		return aql.VendorPacket{}, err
	}
	metrics.Add(metrics.IDCommandStreamBytes, metrics.MetricValue(cmd.Size()),
		attribute.String("generation", b.Generation.String()))
	entry.Debugf("Encoded %d begin and %d end command bytes", mgr.PreSize(), mgr.PostSize())

	slice, err := mgr.PreSlice()
	if err != nil {
		return aql.VendorPacket{}, err
	}
	return vendorPacket(b.Writer, slice), nil
}

func (p *Profiler) encodePMC(entry *log.Entry, b *factory.Bundle, prof *Profile,
	cmd *pm4.CmdBuf) (uint64, error) {
	counters, err := perfcounter.GroupEvents(b.Catalog, prof.Events)
	if err != nil {
		return 0, err
	}
	s := b.NewCounterSession()
	if err = s.Begin(cmd, counters); err != nil {
		return 0, err
	}
	pre := cmd.Size()
	size, err := s.End(cmd, counters, prof.OutputBuffer)
	if err != nil {
		return 0, err
	}
	if err = s.Release(); err != nil {
		return 0, err
	}
	metrics.Add(metrics.IDCountersProgrammed, metrics.MetricValue(counters.Len()),
		attribute.String("generation", b.Generation.String()))
	entry.Debugf("%d counters in %d blocks produce %d bytes of samples",
		counters.Len(), len(counters), size)
	return pre, nil
}

func (p *Profiler) encodeSQTT(entry *log.Entry, b *factory.Bundle, prof *Profile,
	mgr *cmdbuffer.Manager, cmd *pm4.CmdBuf) (uint64, error) {
	cfg, violations := prof.traceConfig()
	if len(violations) > 0 {
		if p.policy == RejectInvalid {
			return 0, errorf(ErrInvalidParameter, "%s", strings.Join(violations, ", "))
		}
		entry.Warnf("Passing out of range thread trace parameters to the device: %s",
			strings.Join(violations, ", "))
		metrics.Add(metrics.IDTraceConfigPassThrough, 1)
	}

	s := b.NewTraceSession()
	if err := s.Init(cfg); err != nil {
		return 0, err
	}
	if err := mgr.GrowTrailingReservation(cmdbuffer.HeaderSize + s.StatusSize()); err != nil {
		return 0, err
	}
	if err := s.SetDataBuffer(prof.OutputBuffer); err != nil {
		return 0, err
	}
	if err := s.BeginSession(cmd); err != nil {
		return 0, err
	}
	pre := cmd.Size()
	if err := s.StopSession(cmd, mgr.Control()); err != nil {
		return 0, err
	}
	entry.Debugf("Thread trace over %d shader engines, %d bytes each",
		b.ShaderEngines(), s.SEBufferSize())
	return pre, nil
}

// EndProfile returns the packet that stops the profile encoded into prof's
// command buffer by BeginProfile.
func (p *Profiler) EndProfile(prof *Profile) (aql.VendorPacket, error) {
	const op = "EndProfile"
	entry := p.entry(prof)
	metrics.Add(metrics.IDEndProfile, 1)

	b, err := p.registry.Get(prof.Agent)
	if err != nil {
		return aql.VendorPacket{}, p.fail(entry, op, err)
	}
	mgr, err := cmdbuffer.Load(prof.CommandBuffer)
	if err != nil {
		return aql.VendorPacket{}, p.fail(entry, op, err)
	}
	slice, err := mgr.PostSlice()
	if err != nil {
		return aql.VendorPacket{}, p.fail(entry, op, err)
	}
	return vendorPacket(b.Writer, slice), nil
}

// vendorPacket returns a packet jumping to the commands in slice.
func vendorPacket(w pm4.CommandWriter, slice libpf.Descriptor) aql.VendorPacket {
	ib := pm4.NewCmdBuf(4 * w.IndirectBufferDwords())
	w.BuildIndirectBuffer(ib, slice.Addr, uint32(slice.Size()/4))

	pkt := aql.VendorPacket{
		Header: aql.MakeHeader(aql.TypeVendorSpecific, true,
			aql.ScopeSystem, aql.ScopeSystem),
		VendorHeader: aql.VendorFormatPM4IB,
	}
	for i := range pkt.PM4Command {
		pkt.PM4Command[i] = npsr.Uint32(ib.Bytes(), uint(4*i))
	}
	return pkt
}
