// Copyright 2019 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"go.uber.org/multierr"

	"go.fuchsia.dev/mojo/memkernel"
	"go.fuchsia.dev/mojo/system"
)

// pollInterval bounds how long a wait goes without checking for cancellation.
const pollInterval = 100 * time.Millisecond

// cancelOnSignals returns a Context that is cancelled when any of sigs is
// received or the returned function is called.
func cancelOnSignals(ctx context.Context, sigs ...os.Signal) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	c := make(chan os.Signal, 1)
	signal.Notify(c, sigs...)
	go func() {
		defer signal.Stop(c)
		select {
		case <-ctx.Done():
		case <-c:
			cancel()
		}
	}()
	return ctx, cancel
}

// installKernel installs a fresh in-memory kernel configured from -config.
// The returned function shuts it down and uninstalls it.
func installKernel(ctx context.Context) (*memkernel.Kernel, func() error, error) {
	cfg := memkernel.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = memkernel.LoadConfig(configPath); err != nil {
			return nil, nil, err
		}
	}
	k := memkernel.New(ctx, cfg)
	prev := system.SetKernel(k)
	teardown := func() error {
		var err error
		if n := k.LiveHandles(); n > 0 {
			err = multierr.Append(err, fmt.Errorf("%d handles still open at exit", n))
		}
		err = multierr.Append(err, k.Shutdown())
		system.SetKernel(prev)
		return err
	}
	return k, teardown, nil
}

// run installs a kernel, calls fn and tears the kernel down, reporting every
// failure.
func run(ctx context.Context, fn func(context.Context) error) error {
	_, teardown, err := installKernel(ctx)
	if err != nil {
		return err
	}
	return multierr.Append(fn(ctx), teardown())
}

// closeAll closes handles and folds any failure into *err. It is meant to
// be deferred from a function with a named error result.
func closeAll(err *error, handles ...system.Handle) {
	*err = multierr.Append(*err, system.CloseAll(handles...))
}

// waitFor blocks on h until one of signals is raised, giving up when ctx is
// done. Waits are issued in slices of pollInterval so cancellation is seen.
func waitFor(ctx context.Context, h system.Handle, signals system.HandleSignals) (system.SignalsState, error) {
	for {
		st, err := system.Wait(h, signals, system.DeadlineFromDuration(pollInterval))
		if system.ResultOf(err) != system.ResultDeadlineExceeded {
			return st, err
		}
		if err := ctx.Err(); err != nil {
			return st, err
		}
	}
}
