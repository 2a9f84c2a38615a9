// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/golang/glog"
	"github.com/google/subcommands"

	"go.fuchsia.dev/mojo/application"
	"go.fuchsia.dev/mojo/examples/echo/echoapp"
	"go.fuchsia.dev/mojo/system"
	"go.fuchsia.dev/mojo/system/messagepipe"
)

type EchoCommand struct {
	messages int
}

func (*EchoCommand) Name() string {
	return "echo"
}

func (*EchoCommand) Usage() string {
	return "echo [-messages N]"
}

func (*EchoCommand) Synopsis() string {
	return "starts the echo application the way a shell would and checks its replies"
}

func (cmd *EchoCommand) SetFlags(f *flag.FlagSet) {
	f.IntVar(&cmd.messages, "messages", 100, "number of messages to send")
}

func (cmd *EchoCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := run(ctx, cmd.execute); err != nil {
		glog.Errorf("echo: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (cmd *EchoCommand) execute(ctx context.Context) (err error) {
	app, shell, err := messagepipe.Create(messagepipe.CreateNone)
	if err != nil {
		return err
	}
	defer closeAll(&err, shell)

	done := make(chan system.Result, 1)
	raw := app.Release()
	go func() { done <- application.Run(raw, echoapp.Serve) }()

	for i := 0; i < cmd.messages; i++ {
		want := fmt.Sprintf("message %d", i)
		if err := shell.Write([]byte(want), nil, messagepipe.WriteNone); err != nil {
			return fmt.Errorf("sending %q: %w", want, err)
		}
		got, err := readMessage(ctx, shell)
		if err != nil {
			return fmt.Errorf("awaiting reply %d: %w", i, err)
		}
		if string(got) != want {
			return fmt.Errorf("reply %d = %q, want %q", i, got, want)
		}
	}
	if err := shell.Close(); err != nil {
		return err
	}
	if r := <-done; r != system.ResultOK {
		return fmt.Errorf("application returned %s", r)
	}
	fmt.Printf("echo application answered %d messages\n", cmd.messages)
	return nil
}
