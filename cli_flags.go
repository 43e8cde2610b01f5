// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
)

// Help strings for command line arguments
var (
	gfxHelp               = "GPU name (e.g. gfx906) of profiles that do not name one."
	commandBufferAddrHelp = "Device address of the command buffer."
	commandBufferSizeHelp = "Size in bytes of the command buffer."
	outputBufferAddrHelp  = "Device address of the output buffer. Must be 4KiB aligned."
	outputBufferSizeHelp  = "Size in bytes of the output buffer."
	policyHelp            = "What to do with out of range thread trace parameters: " +
		"pass-through (warn and program them) or reject."
	exportDirHelp = "Directory receiving exported files. " +
		"Defaults to a fresh directory below the system temp directory."
	cacheSizeHelp   = "Number of GPU agents whose encoders are cached."
	verboseModeHelp = "Enable verbose logging and debugging capabilities."
	versionHelp     = "Show version."
)

func newRootCmd(a *app) *ffcli.Command {
	cfg := a.cfg
	fs := flag.NewFlagSet("gpu-profiler", flag.ContinueOnError)

	// Please keep the parameters ordered alphabetically in the source-code.
	fs.UintVar(&cfg.CacheSize, "cache-size", cfg.CacheSize, cacheSizeHelp)
	fs.Uint64Var(&cfg.CommandBufferAddr, "command-buffer-addr", cfg.CommandBufferAddr,
		commandBufferAddrHelp)
	fs.Uint64Var(&cfg.CommandBufferSize, "command-buffer-size", cfg.CommandBufferSize,
		commandBufferSizeHelp)
	fs.String("config", "", "Path to a configuration file.")
	fs.StringVar(&cfg.ExportDir, "export-dir", cfg.ExportDir, exportDirHelp)
	fs.StringVar(&cfg.Gfx, "gfx", cfg.Gfx, gfxHelp)
	fs.Uint64Var(&cfg.OutputBufferAddr, "output-buffer-addr", cfg.OutputBufferAddr,
		outputBufferAddrHelp)
	fs.Uint64Var(&cfg.OutputBufferSize, "output-buffer-size", cfg.OutputBufferSize,
		outputBufferSizeHelp)
	fs.StringVar(&cfg.Policy, "policy", cfg.Policy, policyHelp)

	fs.BoolVar(&cfg.VerboseMode, "v", false, "Shorthand for -verbose.")
	fs.BoolVar(&cfg.VerboseMode, "verbose", false, verboseModeHelp)
	fs.BoolVar(&cfg.Version, "version", false, versionHelp)

	cfg.Fs = fs

	return &ffcli.Command{
		Name:       "gpu-profiler",
		ShortUsage: "gpu-profiler [flags] <subcommand> [flags]",
		ShortHelp:  "Encode and inspect GPU performance counter and thread trace profiles",
		FlagSet:    fs,
		Options: []ff.Option{
			ff.WithEnvVarPrefix("GPU_PROFILER"),
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(ff.PlainParser),
			ff.WithAllowMissingConfigFile(true),
		},
		Subcommands: []*ffcli.Command{
			newBlocksCmd(a),
			newDecodeCmd(a),
			newEncodeCmd(a),
			newLegacyCmd(a),
			newResultsCmd(a),
		},
		Exec: func(context.Context, []string) error {
			return flag.ErrHelp
		},
	}
}
