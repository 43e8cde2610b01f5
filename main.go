// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// gpu-profiler encodes GPU profiling command streams and interprets their
// results offline, against synthetic device addresses.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"go.opentelemetry.io/gpu-profiler/config"
	"go.opentelemetry.io/gpu-profiler/vc"
)

type exitCode int

const (
	exitSuccess exitCode = 0
	exitFailure exitCode = 1

	// Go 'flag' package calls os.Exit(2) on flag parse errors, if ExitOnError is set
	exitParseError exitCode = 2
)

func main() {
	os.Exit(int(mainWithExitCode(os.Args[1:], os.Stdout)))
}

func mainWithExitCode(args []string, stdout io.Writer) exitCode {
	cfg := config.Default()
	a := &app{cfg: &cfg, stdout: stdout}
	root := newRootCmd(a)

	if err := root.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitSuccess
		}
		return parseError("Failure to parse arguments: %v", err)
	}

	if cfg.Version {
		fmt.Fprintln(a.stdout, vc.Summary())
		return exitSuccess
	}

	if cfg.VerboseMode {
		log.SetLevel(log.DebugLevel)
		// Dump the arguments in debug mode.
		cfg.Dump()
	}

	if err := cfg.Validate(); err != nil {
		return parseError("Invalid configuration: %v", err)
	}
	if err := a.init(); err != nil {
		return failure("Failed to set up profiler: %v", err)
	}
	defer a.close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := root.Run(ctx); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitParseError
		}
		return failure("%v", err)
	}
	return exitSuccess
}

func parseError(msg string, args ...any) exitCode {
	log.Errorf(msg, args...)
	return exitParseError
}

func failure(msg string, args ...any) exitCode {
	log.Errorf(msg, args...)
	return exitFailure
}
