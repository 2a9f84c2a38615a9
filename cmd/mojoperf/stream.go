// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"
	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"

	"go.fuchsia.dev/mojo/system"
	"go.fuchsia.dev/mojo/system/datapipe"
)

type StreamCommand struct {
	bytes    uint64
	chunk    uint64
	capacity uint64
}

func (*StreamCommand) Name() string {
	return "stream"
}

func (*StreamCommand) Usage() string {
	return "stream [-bytes N] [-chunk N] [-capacity N]"
}

func (*StreamCommand) Synopsis() string {
	return "streams bytes through a data pipe and verifies them"
}

func (cmd *StreamCommand) SetFlags(f *flag.FlagSet) {
	f.Uint64Var(&cmd.bytes, "bytes", 64<<20, "total bytes to transfer")
	f.Uint64Var(&cmd.chunk, "chunk", 64<<10, "bytes per read and write")
	f.Uint64Var(&cmd.capacity, "capacity", 0, "data pipe capacity in bytes; 0 uses the kernel default")
}

func (cmd *StreamCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := run(ctx, cmd.execute); err != nil {
		glog.Errorf("stream: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// pattern is the byte expected at offset i of the stream.
func pattern(i uint64) byte {
	return byte(i*7 + i>>8)
}

func (cmd *StreamCommand) execute(ctx context.Context) (err error) {
	if cmd.chunk == 0 {
		return fmt.Errorf("-chunk must be positive")
	}
	if cmd.capacity > math.MaxUint32 {
		return fmt.Errorf("-capacity %d does not fit in 32 bits", cmd.capacity)
	}
	p, c, err := datapipe.Create(datapipe.CreateNone, 1, uint32(cmd.capacity))
	if err != nil {
		return err
	}
	defer closeAll(&err, p, c)

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		defer closeAll(&err, p)
		buf := make([]byte, cmd.chunk)
		for off := uint64(0); off < cmd.bytes; {
			n := min(cmd.chunk, cmd.bytes-off)
			for i := range buf[:n] {
				buf[i] = pattern(off + uint64(i))
			}
			written, err := p.Write(buf[:n], datapipe.WriteNone)
			switch system.ResultOf(err) {
			case system.ResultOK:
				off += uint64(written)
			case system.ResultShouldWait:
				if _, err := waitFor(ctx, p, system.SignalWritable); err != nil {
					return fmt.Errorf("producer wait: %w", err)
				}
			default:
				return fmt.Errorf("write at offset %d: %w", off, err)
			}
		}
		return nil
	})
	g.Go(func() error {
		buf := make([]byte, cmd.chunk)
		var off uint64
		for {
			n, err := c.Read(buf, datapipe.ReadNone)
			switch system.ResultOf(err) {
			case system.ResultOK:
				for i, b := range buf[:n] {
					if want := pattern(off + uint64(i)); b != want {
						return fmt.Errorf("byte %d = %#x, want %#x", off+uint64(i), b, want)
					}
				}
				off += uint64(n)
			case system.ResultShouldWait:
				if _, err := waitFor(ctx, c, system.SignalReadable|system.SignalPeerClosed); err != nil {
					return fmt.Errorf("consumer wait: %w", err)
				}
			case system.ResultFailedPrecondition:
				if off != cmd.bytes {
					return fmt.Errorf("producer closed after %d of %d bytes", off, cmd.bytes)
				}
				return nil
			default:
				return fmt.Errorf("read at offset %d: %w", off, err)
			}
		}
	})
	if err := g.Wait(); err != nil {
		return err
	}

	elapsed := time.Since(start)
	rate := float64(cmd.bytes) / elapsed.Seconds()
	fmt.Printf("streamed %s in %s (%s/s)\n", humanize.IBytes(cmd.bytes), elapsed, humanize.IBytes(uint64(rate)))
	return nil
}
