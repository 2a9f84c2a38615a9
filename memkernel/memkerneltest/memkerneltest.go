// Copyright 2021 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package memkerneltest installs an in-memory kernel for the duration of a
// test.
package memkerneltest

import (
	"context"
	"testing"

	"go.fuchsia.dev/mojo/clock"
	"go.fuchsia.dev/mojo/memkernel"
	"go.fuchsia.dev/mojo/system"
)

// Install installs a fresh kernel with default limits. When the test
// finishes the kernel is shut down and the previously installed one, if any,
// is restored. Tests using it must not run in parallel.
func Install(t testing.TB) *memkernel.Kernel {
	t.Helper()
	return InstallContext(t, context.Background(), memkernel.Config{})
}

// InstallFakeClock is like Install, but deadlines are measured with the
// returned fake clock.
func InstallFakeClock(t testing.TB) (*memkernel.Kernel, *clock.FakeClock) {
	t.Helper()
	c := clock.NewFakeClock()
	return InstallContext(t, clock.NewContext(context.Background(), c), memkernel.Config{}), c
}

// InstallContext is like Install with explicit limits and a context carrying
// the kernel's clock.
func InstallContext(t testing.TB, ctx context.Context, cfg memkernel.Config) *memkernel.Kernel {
	t.Helper()
	k := memkernel.New(ctx, cfg)
	prev := system.SetKernel(k)
	t.Cleanup(func() {
		if err := k.Shutdown(); err != nil {
			t.Errorf("kernel shutdown: %v", err)
		}
		system.SetKernel(prev)
	})
	return k
}
