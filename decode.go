// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/peterbourgon/ff/v3/ffcli"
	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/gpu-profiler/cmdbuffer"
	"go.opentelemetry.io/gpu-profiler/libpf"
	"go.opentelemetry.io/gpu-profiler/pm4"
)

type decodeCmd struct {
	a *app
}

func newDecodeCmd(a *app) *ffcli.Command {
	cmd := decodeCmd{a: a}
	return &ffcli.Command{
		Name:       "decode",
		ShortUsage: "decode <command buffer file>",
		ShortHelp:  "Disassemble the begin and end streams of an exported command buffer",
		FlagSet:    flag.NewFlagSet("decode", flag.ContinueOnError),
		Exec:       cmd.exec,
	}
}

func (cmd *decodeCmd) exec(_ context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("expected exactly one command buffer file")
	}
	data, unmap, err := mapFile(args[0])
	if err != nil {
		return err
	}
	defer func() {
		if err := unmap(); err != nil {
			log.Warnf("Failed to unmap %s: %v", args[0], err)
		}
	}()

	addr := libpf.Address(cmd.a.cfg.CommandBufferAddr)
	return disassemble(cmd.a.stdout, libpf.NewDescriptor(addr, data))
}

// disassemble prints the begin and end streams of the command buffer buf.
func disassemble(w io.Writer, buf libpf.Descriptor) error {
	mgr, err := cmdbuffer.Load(buf)
	if err != nil {
		return err
	}
	for _, stream := range []struct {
		name  string
		slice func() (libpf.Descriptor, error)
	}{
		{"begin", mgr.PreSlice},
		{"end", mgr.PostSlice},
	} {
		slice, err := stream.slice()
		if err != nil {
			return err
		}
		packets, err := pm4.Disassemble(slice.Data)
		if err != nil {
			return fmt.Errorf("%s stream: %w", stream.name, err)
		}
		fmt.Fprintf(w, "%s: %d packets, %d bytes at %v\n",
			stream.name, len(packets), slice.Size(), slice.Addr)
		for i := range packets {
			fmt.Fprintf(w, "  %06x  %v\n", packets[i].Offset, &packets[i])
		}
	}
	return nil
}
