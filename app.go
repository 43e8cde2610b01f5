// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"go.opentelemetry.io/gpu-profiler/blockcatalog"
	"go.opentelemetry.io/gpu-profiler/config"
	"go.opentelemetry.io/gpu-profiler/factory"
	"go.opentelemetry.io/gpu-profiler/libpf"
	"go.opentelemetry.io/gpu-profiler/profiler"
)

// app is the state shared by all subcommands.
type app struct {
	cfg    *config.Config
	stdout io.Writer

	// runID names the default export directory of this invocation.
	runID    uuid.UUID
	agents   factory.StaticAgentInfo
	registry *factory.Registry
	prof     *profiler.Profiler
}

func (a *app) init() error {
	policy, err := config.ParsePolicy(a.cfg.Policy)
	if err != nil {
		return err
	}
	a.runID = uuid.New()
	a.agents = factory.StaticAgentInfo{}
	a.registry, err = factory.NewRegistry(a.agents, uint32(a.cfg.CacheSize))
	if err != nil {
		return err
	}
	a.prof = profiler.New(a.registry,
		profiler.WithPolicy(policy),
		profiler.WithDiagnostics(a.cfg.VerboseMode))
	return nil
}

func (a *app) close() {
	if a.registry != nil {
		a.registry.Close()
	}
}

// agent returns the handle standing for the GPU named gfx, registering it
// on first use.
func (a *app) agent(gfx string) factory.AgentHandle {
	if gfx == "" {
		gfx = a.cfg.Gfx
	}
	for h, name := range a.agents {
		if name == gfx {
			return h
		}
	}
	h := factory.AgentHandle(len(a.agents) + 1)
	a.agents[h] = gfx
	return h
}

// exportDir returns the directory exports are written to, creating it.
func (a *app) exportDir() (string, error) {
	dir := a.cfg.ExportDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "gpu-profiler-"+a.runID.String())
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	return dir, nil
}

// profileFile is the YAML description of a profile.
type profileFile struct {
	// Gfx overrides the -gfx flag.
	Gfx        string               `yaml:"gfx"`
	Type       string               `yaml:"type"`
	Events     []blockcatalog.Event `yaml:"events"`
	Parameters map[string]uint32    `yaml:"parameters"`
}

func loadProfileFile(path string) (*profileFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pf profileFile
	if err = yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	return &pf, nil
}

// profile turns a profile description into a request over the given buffer
// contents. The buffers are placed at the configured device addresses.
func (a *app) profile(pf *profileFile, cmd, out []byte) (*profiler.Profile, error) {
	typ := profiler.TypePMC
	if pf.Type != "" {
		var ok bool
		if typ, ok = profiler.ProfileTypeFromString(pf.Type); !ok {
			return nil, fmt.Errorf("unknown profile type %q", pf.Type)
		}
	}
	prof := &profiler.Profile{
		Agent:         a.agent(pf.Gfx),
		Type:          typ,
		Events:        pf.Events,
		CommandBuffer: libpf.NewDescriptor(libpf.Address(a.cfg.CommandBufferAddr), cmd),
		OutputBuffer:  libpf.NewDescriptor(libpf.Address(a.cfg.OutputBufferAddr), out),
	}
	for _, name := range slices.Sorted(maps.Keys(pf.Parameters)) {
		value := pf.Parameters[name]
		n, ok := profiler.ParameterNameFromString(name)
		if !ok {
			return nil, fmt.Errorf("unknown parameter %q", name)
		}
		prof.Parameters = append(prof.Parameters, profiler.Parameter{Name: n, Value: value})
	}
	log.Debugf("Profile %s on %v with %d events and %d parameters",
		prof.Type, prof.Agent, len(prof.Events), len(prof.Parameters))
	return prof, nil
}
