// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/peterbourgon/ff/v3/ffcli"
	log "github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"

	"go.opentelemetry.io/gpu-profiler/aql"
	"go.opentelemetry.io/gpu-profiler/cmdbuffer"
	"go.opentelemetry.io/gpu-profiler/profiler"
)

const (
	commandFile = "command.bin"
	startFile   = "start.aql"
	stopFile    = "stop.aql"
)

type encodeCmd struct {
	a *app

	// User-specified command line arguments.
	profile string
}

func newEncodeCmd(a *app) *ffcli.Command {
	cmd := encodeCmd{a: a}
	set := flag.NewFlagSet("encode", flag.ContinueOnError)
	set.StringVar(&cmd.profile, "profile", "", "Profile description (YAML)")
	return &ffcli.Command{
		Name:       "encode",
		ShortUsage: "encode -profile <file>",
		ShortHelp:  "Encode the command streams of a profile and export them",
		FlagSet:    set,
		Exec:       cmd.exec,
	}
}

// encoded is a profile whose command streams have been generated.
type encoded struct {
	prof        *profiler.Profile
	start, stop aql.VendorPacket
}

// encode generates the command streams of the profile described in path into
// freshly allocated buffers.
func (a *app) encode(path string) (*encoded, error) {
	pf, err := loadProfileFile(path)
	if err != nil {
		return nil, err
	}
	prof, err := a.profile(pf, make([]byte, a.cfg.CommandBufferSize),
		make([]byte, a.cfg.OutputBufferSize))
	if err != nil {
		return nil, err
	}
	enc := &encoded{prof: prof}
	if enc.start, err = a.prof.BeginProfile(prof); err != nil {
		return nil, err
	}
	if enc.stop, err = a.prof.EndProfile(prof); err != nil {
		return nil, err
	}
	return enc, nil
}

func (cmd *encodeCmd) exec(context.Context, []string) error {
	if cmd.profile == "" {
		return errors.New("missing -profile")
	}
	enc, err := cmd.a.encode(cmd.profile)
	if err != nil {
		return err
	}
	mgr, err := cmdbuffer.Load(enc.prof.CommandBuffer)
	if err != nil {
		return err
	}
	dir, err := cmd.a.exportDir()
	if err != nil {
		return err
	}

	cmdData := enc.prof.CommandBuffer.Data
	for _, f := range []struct {
		name string
		data []byte
	}{
		{commandFile, cmdData},
		{startFile, aql.Append(nil, &enc.start)},
		{stopFile, aql.Append(nil, &enc.stop)},
	} {
		if err = os.WriteFile(filepath.Join(dir, f.name), f.data, 0o644); err != nil {
			return fmt.Errorf("failed to export %s: %w", f.name, err)
		}
	}
	log.Infof("Exported %s profile to %s", enc.prof.Type, dir)

	fmt.Fprintf(cmd.a.stdout, "fingerprint: %016x\n", xxh3.Hash(cmdData))
	fmt.Fprintf(cmd.a.stdout, "begin: %d bytes at %v\n", mgr.PreSize(),
		enc.prof.CommandBuffer.Addr)
	fmt.Fprintf(cmd.a.stdout, "end: %d bytes at %v\n", mgr.PostSize(),
		enc.prof.CommandBuffer.Addr.Add(mgr.PostOffset()))
	return nil
}
