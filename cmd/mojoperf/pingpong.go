// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"
	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"

	"go.fuchsia.dev/mojo/system"
	"go.fuchsia.dev/mojo/system/messagepipe"
)

type PingPongCommand struct {
	messages int
	size     int
}

func (*PingPongCommand) Name() string {
	return "pingpong"
}

func (*PingPongCommand) Usage() string {
	return "pingpong [-messages N] [-size BYTES]"
}

func (*PingPongCommand) Synopsis() string {
	return "measures message pipe round trips between two goroutines"
}

func (cmd *PingPongCommand) SetFlags(f *flag.FlagSet) {
	f.IntVar(&cmd.messages, "messages", 10000, "number of round trips")
	f.IntVar(&cmd.size, "size", 64, "payload size in bytes")
}

func (cmd *PingPongCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := run(ctx, cmd.execute); err != nil {
		glog.Errorf("pingpong: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (cmd *PingPongCommand) execute(ctx context.Context) (err error) {
	if cmd.messages <= 0 || cmd.size < 0 {
		return fmt.Errorf("-messages must be positive and -size non-negative")
	}
	ping, pong, err := messagepipe.Create(messagepipe.CreateNone)
	if err != nil {
		return err
	}
	defer closeAll(&err, ping, pong)

	payload := bytes.Repeat([]byte{0xa5}, cmd.size)
	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for i := 0; i < cmd.messages; i++ {
			if err := ping.Write(payload, nil, messagepipe.WriteNone); err != nil {
				return fmt.Errorf("ping %d: %w", i, err)
			}
			reply, err := readMessage(ctx, ping)
			if err != nil {
				return fmt.Errorf("awaiting pong %d: %w", i, err)
			}
			if !bytes.Equal(reply, payload) {
				return fmt.Errorf("pong %d: payload corrupted", i)
			}
		}
		return nil
	})
	g.Go(func() error {
		for i := 0; i < cmd.messages; i++ {
			msg, err := readMessage(ctx, pong)
			if err != nil {
				return fmt.Errorf("awaiting ping %d: %w", i, err)
			}
			if err := pong.Write(msg, nil, messagepipe.WriteNone); err != nil {
				return fmt.Errorf("pong %d: %w", i, err)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	elapsed := time.Since(start)
	rate := float64(cmd.messages) / elapsed.Seconds()
	fmt.Printf("%s round trips of %s in %s (%s/s)\n",
		humanize.Comma(int64(cmd.messages)), humanize.IBytes(uint64(cmd.size)), elapsed, humanize.Comma(int64(rate)))
	return nil
}

// readMessage waits for and reads the next message on e.
func readMessage(ctx context.Context, e *messagepipe.Endpoint) ([]byte, error) {
	for {
		b, _, err := e.Read(messagepipe.ReadNone)
		if system.ResultOf(err) != system.ResultShouldWait {
			return b, err
		}
		if _, err := waitFor(ctx, e, system.SignalReadable); err != nil {
			return nil, err
		}
	}
}
