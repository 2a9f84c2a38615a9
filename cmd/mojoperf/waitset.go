// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/google/subcommands"

	"go.fuchsia.dev/mojo/system"
	"go.fuchsia.dev/mojo/system/messagepipe"
	"go.fuchsia.dev/mojo/system/waitset"
)

type WaitSetCommand struct {
	pipes int
	ready int
}

func (*WaitSetCommand) Name() string {
	return "waitset"
}

func (*WaitSetCommand) Usage() string {
	return "waitset [-pipes N] [-ready I]"
}

func (*WaitSetCommand) Synopsis() string {
	return "waits on many pipes through a wait set and reports the ready one"
}

func (cmd *WaitSetCommand) SetFlags(f *flag.FlagSet) {
	f.IntVar(&cmd.pipes, "pipes", 64, "number of message pipes in the wait set")
	f.IntVar(&cmd.ready, "ready", -1, "index of the pipe to make readable; -1 picks the last")
}

func (cmd *WaitSetCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := run(ctx, cmd.execute); err != nil {
		glog.Errorf("waitset: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (cmd *WaitSetCommand) execute(ctx context.Context) (err error) {
	if cmd.pipes <= 0 {
		return fmt.Errorf("-pipes must be positive")
	}
	ready := cmd.ready
	if ready < 0 {
		ready = cmd.pipes - 1
	}
	if ready >= cmd.pipes {
		return fmt.Errorf("-ready %d out of range for %d pipes", ready, cmd.pipes)
	}

	ws, err := waitset.Create(waitset.CreateNone)
	if err != nil {
		return err
	}
	handles := []system.Handle{ws}
	defer func() { closeAll(&err, handles...) }()

	var writers []*messagepipe.Endpoint
	for i := 0; i < cmd.pipes; i++ {
		r, w, err := messagepipe.Create(messagepipe.CreateNone)
		if err != nil {
			return err
		}
		handles = append(handles, r, w)
		writers = append(writers, w)
		if err := ws.Add(r, system.SignalReadable, uint64(i), waitset.AddNone); err != nil {
			return fmt.Errorf("adding pipe %d: %w", i, err)
		}
	}

	start := time.Now()
	if err := writers[ready].Write([]byte("ready"), nil, messagepipe.WriteNone); err != nil {
		return err
	}
	results, err := waitAny(ctx, ws)
	if err != nil {
		return err
	}
	r := results[0]
	if r.WaitResult != system.ResultOK || r.Cookie != uint64(ready) {
		return fmt.Errorf("wait set reported cookie %d with %s, want cookie %d ready", r.Cookie, r.WaitResult, ready)
	}
	fmt.Printf("cookie %d ready among %d pipes after %s\n", r.Cookie, cmd.pipes, time.Since(start))
	return nil
}

// waitAny waits on ws until at least one entry is ready, giving up when ctx
// is done.
func waitAny(ctx context.Context, ws *waitset.WaitSet) ([]waitset.Result, error) {
	for {
		results, _, err := ws.Wait(system.DeadlineFromDuration(pollInterval), 1)
		if system.ResultOf(err) != system.ResultDeadlineExceeded {
			return results, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}
