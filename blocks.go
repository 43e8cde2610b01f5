// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"text/tabwriter"

	"github.com/peterbourgon/ff/v3/ffcli"

	"go.opentelemetry.io/gpu-profiler/perfcounter"
)

type blocksCmd struct {
	a *app
}

func newBlocksCmd(a *app) *ffcli.Command {
	cmd := blocksCmd{a: a}
	return &ffcli.Command{
		Name:       "blocks",
		ShortUsage: "blocks [gfx name]",
		ShortHelp:  "List the counter blocks of a GPU",
		FlagSet:    flag.NewFlagSet("blocks", flag.ContinueOnError),
		Exec:       cmd.exec,
	}
}

func (cmd *blocksCmd) exec(_ context.Context, args []string) error {
	gfx := ""
	if len(args) > 0 {
		gfx = args[0]
	}
	b, err := cmd.a.registry.Get(cmd.a.agent(gfx))
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.a.stdout, "%s (%v, %d shader engines)\n",
		b.GfxName, b.Generation, b.ShaderEngines())
	tw := tabwriter.NewWriter(cmd.a.stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "BLOCK\tID\tMETHOD\tINSTANCES\tCOUNTERS\tMAX_COUNTER_ID\tSAMPLES")
	for _, info := range b.Catalog.Blocks() {
		samples := b.Counters.Samples(perfcounter.BlockDescriptor{ID: info.ID}, 0)
		fmt.Fprintf(tw, "%s\t%d\t%v\t%d\t%d\t%d\t%d\n", info.Name, info.ID, info.Method,
			info.MaxInstances, info.MaxSimultaneous, info.MaxCounterID, samples)
	}
	return tw.Flush()
}
