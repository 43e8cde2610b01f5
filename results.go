// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"text/tabwriter"

	"github.com/peterbourgon/ff/v3/ffcli"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/collector/pdata/pmetric"

	"go.opentelemetry.io/gpu-profiler/profiler"
)

type resultsCmd struct {
	a *app

	// User-specified command line arguments.
	profile, command, output, format string
}

func newResultsCmd(a *app) *ffcli.Command {
	cmd := resultsCmd{a: a}
	set := flag.NewFlagSet("results", flag.ContinueOnError)
	set.StringVar(&cmd.profile, "profile", "", "Profile description (YAML)")
	set.StringVar(&cmd.command, "command", "", "Exported command buffer holding the layout "+
		"and the captured thread trace status")
	set.StringVar(&cmd.output, "output", "", "Captured output buffer")
	set.StringVar(&cmd.format, "format", "text", "Counter output format: text or otlp")
	return &ffcli.Command{
		Name:       "results",
		ShortUsage: "results -profile <file> -command <file> -output <file> [flags]",
		ShortHelp:  "Print counter samples or export the thread traces of a capture",
		FlagSet:    set,
		Exec:       cmd.exec,
	}
}

func (cmd *resultsCmd) exec(ctx context.Context, _ []string) error {
	if cmd.profile == "" || cmd.command == "" || cmd.output == "" {
		return errors.New("-profile, -command and -output are required")
	}
	if cmd.format != "text" && cmd.format != "otlp" {
		return fmt.Errorf("unknown format %q", cmd.format)
	}
	pf, err := loadProfileFile(cmd.profile)
	if err != nil {
		return err
	}

	var buffers [2][]byte
	for i, path := range []string{cmd.command, cmd.output} {
		data, unmap, err := mapFile(path)
		if err != nil {
			return err
		}
		defer func() {
			if err := unmap(); err != nil {
				log.Warnf("Failed to unmap %s: %v", path, err)
			}
		}()
		buffers[i] = data
	}
	prof, err := cmd.a.profile(pf, buffers[0], buffers[1])
	if err != nil {
		return err
	}

	var records []profiler.InfoData
	if err = cmd.a.prof.IterateResults(prof, func(_ profiler.InfoType,
		data *profiler.InfoData) error {
		records = append(records, *data)
		return nil
	}); err != nil {
		return err
	}

	if prof.Type == profiler.TypeSQTT {
		return cmd.exportTraces(ctx, records)
	}
	if cmd.format == "otlp" {
		gfx := cmd.a.agents[prof.Agent]
		out, err := (&pmetric.JSONMarshaler{}).MarshalMetrics(pmcMetrics(gfx, records))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.a.stdout, "%s\n", out)
		return err
	}
	tw := tabwriter.NewWriter(cmd.a.stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "EVENT\tSAMPLE\tVALUE")
	for _, r := range records {
		fmt.Fprintf(tw, "%v\t%d\t%d\n", r.Event, r.SampleID, r.Value)
	}
	return tw.Flush()
}

func (cmd *resultsCmd) exportTraces(ctx context.Context, traces []profiler.InfoData) error {
	dir, err := cmd.a.exportDir()
	if err != nil {
		return err
	}
	files, err := writeTraces(ctx, dir, traces)
	if err != nil {
		return err
	}
	for i, f := range files {
		fmt.Fprintf(cmd.a.stdout, "se%d: %d bytes -> %s\n",
			traces[i].SampleID, traces[i].Value, f)
	}
	return nil
}
