// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package factory resolves GPU agents to the generation specific encoders,
// register files and block catalogs used to profile them.
package factory // import "go.opentelemetry.io/gpu-profiler/factory"

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	lru "github.com/elastic/go-freelru"
	log "github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"go.opentelemetry.io/gpu-profiler/blockcatalog"
	"go.opentelemetry.io/gpu-profiler/libpf"
	"go.opentelemetry.io/gpu-profiler/metrics"
	"go.opentelemetry.io/gpu-profiler/perfcounter"
	"go.opentelemetry.io/gpu-profiler/pm4"
	"go.opentelemetry.io/gpu-profiler/registers"
	"go.opentelemetry.io/gpu-profiler/threadtrace"
)

var (
	// ErrUnsupportedAgent is returned for agents of an unknown or explicitly
	// unsupported GPU generation.
	ErrUnsupportedAgent = errors.New("unsupported agent")
	// ErrUnknownAgent is returned by AgentInfo for handles it does not know.
	ErrUnknownAgent = errors.New("unknown agent")
)

// DefaultCacheSize is the number of agents a Registry keeps bundles for.
const DefaultCacheSize = 64

// AgentHandle is the host runtime's opaque agent identifier.
type AgentHandle uint64

func (a AgentHandle) String() string {
	return "0x" + strconv.FormatUint(uint64(a), 16)
}

// Hash32 returns a 32 bits hash of the handle.
func (a AgentHandle) Hash32() uint32 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(a))
	return uint32(xxh3.Hash(b[:]))
}

// AgentInfo resolves an agent to its GPU name, e.g. "gfx906".
type AgentInfo interface {
	GfxName(agent AgentHandle) (string, error)
}

// StaticAgentInfo is an AgentInfo backed by a fixed map.
type StaticAgentInfo map[AgentHandle]string

// GfxName implements AgentInfo.
func (s StaticAgentInfo) GfxName(agent AgentHandle) (string, error) {
	name, ok := s[agent]
	if !ok {
		return "", fmt.Errorf("%w: %v", ErrUnknownAgent, agent)
	}
	return name, nil
}

// Generation is a GPU generation family.
type Generation uint8

const (
	GFX8 Generation = iota + 8
	GFX9
)

func (g Generation) String() string {
	return "gfx" + strconv.Itoa(int(g))
}

// Bundle is everything needed to profile one agent. Bundles are immutable and
// shared between all callers profiling the same agent.
type Bundle struct {
	Agent      AgentHandle
	GfxName    string
	Generation Generation
	// Legacy agents cannot execute vendor packets and need the PM4 fallback.
	Legacy    bool
	Writer    pm4.CommandWriter
	Catalog   *blockcatalog.Catalog
	Registers *registers.File
	Counters  *perfcounter.Table
}

// ShaderEngines returns the number of shader engines of the agent.
func (b *Bundle) ShaderEngines() uint32 {
	return b.Catalog.ShaderEngines()
}

// NewCounterSession returns an idle counter session for the agent.
func (b *Bundle) NewCounterSession() *perfcounter.Session {
	return perfcounter.NewSession(b.Writer, b.Counters)
}

// NewTraceSession returns an uninitialized thread trace session for the
// agent.
func (b *Bundle) NewTraceSession() *threadtrace.Session {
	return threadtrace.NewSession(b.Writer, b.Registers, b.ShaderEngines())
}

// unsupportedNames are GPU names of a supported family that are rejected.
var unsupportedNames = libpf.SliceToSet([]string{"gfx801"})

func newBundle(agent AgentHandle, name string) (*Bundle, error) {
	if unsupportedNames.Has(name) {
		return nil, fmt.Errorf("%w: %s is not supported", ErrUnsupportedAgent, name)
	}
	b := &Bundle{Agent: agent, GfxName: name}
	switch {
	case strings.HasPrefix(name, "gfx8"):
		b.Generation = GFX8
		b.Legacy = true
		b.Writer = pm4.NewGfx8Writer()
		b.Catalog = blockcatalog.Gfx8()
		b.Registers = registers.Gfx8()
	case strings.HasPrefix(name, "gfx9"):
		b.Generation = GFX9
		b.Writer = pm4.NewGfx9Writer()
		b.Catalog = blockcatalog.Gfx9()
		b.Registers = registers.Gfx9()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAgent, name)
	}
	b.Counters = perfcounter.NewTable(b.Registers, b.Catalog)
	return b, nil
}

// Registry caches one Bundle per agent. It is owned by the host runtime and
// safe for concurrent use.
type Registry struct {
	info    AgentInfo
	bundles *lru.SyncedLRU[AgentHandle, *Bundle]
	group   singleflight.Group
}

// NewRegistry returns a registry resolving agents through info and caching
// up to size bundles.
func NewRegistry(info AgentInfo, size uint32) (*Registry, error) {
	if size == 0 {
		size = DefaultCacheSize
	}
	bundles, err := lru.NewSynced[AgentHandle, *Bundle](size, AgentHandle.Hash32)
	if err != nil {
		return nil, fmt.Errorf("failed to create bundle cache: %w", err)
	}
	return &Registry{info: info, bundles: bundles}, nil
}

// Get returns the bundle of an agent, creating it on first use. Concurrent
// first requests for the same agent share a single creation.
func (r *Registry) Get(agent AgentHandle) (*Bundle, error) {
	if b, ok := r.bundles.Get(agent); ok {
		metrics.Add(metrics.IDBundleCacheHit, 1)
		return b, nil
	}

	v, err, _ := r.group.Do(agent.String(), func() (any, error) {
		if b, ok := r.bundles.Get(agent); ok {
			return b, nil
		}
		name, err := r.info.GfxName(agent)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedAgent, err)
		}
		b, err := newBundle(agent, name)
		if err != nil {
			return nil, err
		}
		r.bundles.Add(agent, b)
		metrics.Add(metrics.IDBundleCreated, 1,
			attribute.String("generation", b.Generation.String()))
		log.Debugf("Created %v bundle for agent %v (%s)", b.Generation, agent, name)
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Bundle), nil
}

// Len returns the number of cached bundles.
func (r *Registry) Len() int {
	return r.bundles.Len()
}

// Close drops all cached bundles.
func (r *Registry) Close() {
	r.bundles.Purge()
}
