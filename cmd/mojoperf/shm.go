// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"
	"github.com/google/subcommands"
	"go.uber.org/multierr"

	"go.fuchsia.dev/mojo/system/sharedbuffer"
)

type SharedBufferCommand struct {
	size string
}

func (*SharedBufferCommand) Name() string {
	return "shm"
}

func (*SharedBufferCommand) Usage() string {
	return "shm [-size SIZE]"
}

func (*SharedBufferCommand) Synopsis() string {
	return "writes through one mapping of a shared buffer and verifies another"
}

func (cmd *SharedBufferCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&cmd.size, "size", "1MiB", "buffer size, e.g. 4096 or 16MiB")
}

func (cmd *SharedBufferCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := run(ctx, cmd.execute); err != nil {
		glog.Errorf("shm: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (cmd *SharedBufferCommand) execute(context.Context) (err error) {
	size, err := humanize.ParseBytes(cmd.size)
	if err != nil {
		return fmt.Errorf("invalid -size: %w", err)
	}
	buf, err := sharedbuffer.Create(sharedbuffer.CreateNone, size)
	if err != nil {
		return err
	}
	dup, err := buf.Duplicate(sharedbuffer.DuplicateNone)
	if err != nil {
		buf.Close()
		return err
	}
	defer closeAll(&err, buf, dup)

	writer, err := buf.Map(0, size, sharedbuffer.MapNone)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, writer.Close()) }()
	reader, err := dup.Map(0, size, sharedbuffer.MapNone)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, reader.Close()) }()

	w := writer.Bytes()
	for i := range w {
		w[i] = byte(i % 251)
	}
	for i, b := range reader.Bytes() {
		if want := byte(i % 251); b != want {
			return fmt.Errorf("byte %d reads %#x through the duplicate, want %#x", i, b, want)
		}
	}
	fmt.Printf("verified %s through two mappings\n", humanize.IBytes(size))
	return nil
}
