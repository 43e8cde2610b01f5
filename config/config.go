// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package config holds the settings of the gpu-profiler command line tool.
package config // import "go.opentelemetry.io/gpu-profiler/config"

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/gpu-profiler/libpf"
	"go.opentelemetry.io/gpu-profiler/profiler"
)

const (
	// DefaultGfx is the GPU the tool encodes for when nothing else is given.
	DefaultGfx = "gfx906"
	// DefaultCommandBufferAddr is the synthetic device address of the
	// command buffer.
	DefaultCommandBufferAddr = 0x7f00_0000_0000
	// DefaultOutputBufferAddr is the synthetic device address of the output
	// buffer.
	DefaultOutputBufferAddr = 0x7f10_0000_0000
	// DefaultOutputBufferSize fits a thread trace of 256 KiB per shader
	// engine on four engines.
	DefaultOutputBufferSize = 1 << 20

	// bufferAlign is the alignment thread trace buffers require.
	bufferAlign = 4096
)

// Config is the configuration of the command line tool.
type Config struct {
	Gfx               string `mapstructure:"gfx"`
	CommandBufferAddr uint64 `mapstructure:"command_buffer_addr"`
	CommandBufferSize uint64 `mapstructure:"command_buffer_size"`
	OutputBufferAddr  uint64 `mapstructure:"output_buffer_addr"`
	OutputBufferSize  uint64 `mapstructure:"output_buffer_size"`
	Policy            string `mapstructure:"policy"`
	ExportDir         string `mapstructure:"export_dir"`
	CacheSize         uint   `mapstructure:"cache_size"`
	VerboseMode       bool   `mapstructure:"verbose_mode"`
	Version           bool   `mapstructure:"version"`

	Fs *flag.FlagSet
}

// Default returns a configuration with every field at its default.
func Default() Config {
	return Config{
		Gfx:               DefaultGfx,
		CommandBufferAddr: DefaultCommandBufferAddr,
		CommandBufferSize: profiler.CommandBufferSize,
		OutputBufferAddr:  DefaultOutputBufferAddr,
		OutputBufferSize:  DefaultOutputBufferSize,
		Policy:            profiler.PassThrough.String(),
	}
}

// Dump visits all flags and logs them at debug level.
func (cfg *Config) Dump() {
	if cfg.Fs == nil {
		return
	}
	log.Debug("Config:")
	cfg.Fs.VisitAll(func(f *flag.Flag) {
		log.Debugf("%s: %v", f.Name, f.Value)
	})
}

// ParsePolicy returns the validation policy named s.
func ParsePolicy(s string) (profiler.Policy, error) {
	for _, p := range []profiler.Policy{profiler.PassThrough, profiler.RejectInvalid} {
		if strings.EqualFold(s, p.String()) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown validation policy %q", s)
}

// Validate runs validations on the provided configuration, and returns errors
// if invalid values were provided.
func (cfg *Config) Validate() error {
	var errs []error
	if cfg.Gfx == "" {
		errs = append(errs, errors.New("no GPU name given"))
	}
	if cfg.CommandBufferSize < profiler.CommandBufferSize {
		errs = append(errs, fmt.Errorf("command buffer size %d below %d",
			cfg.CommandBufferSize, profiler.CommandBufferSize))
	}
	if !libpf.Address(cfg.CommandBufferAddr).IsAligned(4) {
		errs = append(errs, fmt.Errorf("command buffer address 0x%x is not dword aligned",
			cfg.CommandBufferAddr))
	}
	if !libpf.Address(cfg.OutputBufferAddr).IsAligned(bufferAlign) {
		errs = append(errs, fmt.Errorf("output buffer address 0x%x is not %d byte aligned",
			cfg.OutputBufferAddr, bufferAlign))
	}
	if cfg.OutputBufferSize == 0 {
		errs = append(errs, errors.New("output buffer size is zero"))
	}
	if _, err := ParsePolicy(cfg.Policy); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
