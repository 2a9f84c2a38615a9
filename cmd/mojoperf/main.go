// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Command mojoperf exercises the Mojo bindings against an in-memory kernel
// and reports throughput.
package main

import (
	"context"
	"flag"
	"os"
	"syscall"

	"github.com/golang/glog"
	"github.com/google/subcommands"
)

var configPath string

func init() {
	flag.StringVar(&configPath, "config", "", "path to a YAML file of kernel limits")
}

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(&PingPongCommand{}, "")
	subcommands.Register(&StreamCommand{}, "")
	subcommands.Register(&SharedBufferCommand{}, "")
	subcommands.Register(&WaitSetCommand{}, "")
	subcommands.Register(&EchoCommand{}, "")

	flag.Parse()

	ctx, cancel := cancelOnSignals(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	status := subcommands.Execute(ctx)
	cancel()
	glog.Flush()
	os.Exit(int(status))
}
