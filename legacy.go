// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/peterbourgon/ff/v3/ffcli"

	"go.opentelemetry.io/gpu-profiler/profiler"
)

type legacyCmd struct {
	a *app

	// User-specified command line arguments.
	profile, out string
	stop         bool
}

func newLegacyCmd(a *app) *ffcli.Command {
	cmd := legacyCmd{a: a}
	set := flag.NewFlagSet("legacy", flag.ContinueOnError)
	set.StringVar(&cmd.profile, "profile", "", "Profile description (YAML)")
	set.StringVar(&cmd.out, "out", "", "Write the converted packets to this file "+
		"instead of dumping them")
	set.BoolVar(&cmd.stop, "stop", false, "Convert the stop packet instead of the start packet")
	return &ffcli.Command{
		Name:       "legacy",
		ShortUsage: "legacy -profile <file> [flags]",
		ShortHelp:  "Convert the start or stop packet of a profile for a legacy queue",
		FlagSet:    set,
		Exec:       cmd.exec,
	}
}

func (cmd *legacyCmd) exec(context.Context, []string) error {
	if cmd.profile == "" {
		return errors.New("missing -profile")
	}
	enc, err := cmd.a.encode(cmd.profile)
	if err != nil {
		return err
	}
	pkt := &enc.start
	if cmd.stop {
		pkt = &enc.stop
	}
	buf := make([]byte, profiler.LegacySize)
	if err = cmd.a.prof.LegacyConvert(pkt, buf); err != nil {
		return err
	}
	if cmd.out != "" {
		return os.WriteFile(cmd.out, buf, 0o644)
	}
	_, err = fmt.Fprint(cmd.a.stdout, hex.Dump(buf))
	return err
}
