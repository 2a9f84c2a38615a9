// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package application runs a Mojo application's main routine on the handle
// the kernel passes to its entry point.
package application

import (
	"runtime/debug"
	"sync/atomic"

	"github.com/golang/glog"

	"go.fuchsia.dev/mojo/system"
	"go.fuchsia.dev/mojo/system/messagepipe"
)

// MainFunc is an application's main routine. It receives ownership of the
// endpoint connected to the shell.
type MainFunc func(*messagepipe.Endpoint) system.Result

type mainBox struct{ fn MainFunc }

var registered atomic.Pointer[mainBox]

// SetMain registers fn as the routine started by Main. It is normally called
// from an init function of the application's main package.
func SetMain(fn MainFunc) {
	if fn == nil {
		registered.Store(nil)
		return
	}
	registered.Store(&mainBox{fn: fn})
}

// Main runs the registered routine with raw as its shell handle. It is the
// body of the exported MojoMain symbol. Without a registered routine raw is
// closed and ResultFailedPrecondition returned; without an installed kernel
// raw cannot even be closed and is left to the caller.
func Main(raw system.MojoHandle) system.Result {
	if _, ok := system.LookupKernel(); !ok {
		glog.Errorf("mojo: MojoMain called before a kernel was installed")
		return system.ResultFailedPrecondition
	}
	b := registered.Load()
	if b == nil {
		glog.Errorf("mojo: MojoMain called before application.SetMain")
		if err := system.Acquire(raw).Close(); err != nil {
			glog.Warningf("mojo: closing shell handle: %v", err)
		}
		return system.ResultFailedPrecondition
	}
	return Run(raw, b.fn)
}

// Run takes ownership of raw as a message pipe endpoint and calls main with
// it. A panic in main, or main exiting its goroutine through runtime.Goexit,
// is logged and reported as ResultAborted instead of unwinding into the
// caller. The endpoint is closed once main returns unless main gave it away.
func Run(raw system.MojoHandle, main MainFunc) system.Result {
	shell := messagepipe.FromUntyped(system.Acquire(raw))
	defer func() {
		if err := shell.Close(); err != nil {
			glog.Warningf("mojo: closing shell handle: %v", err)
		}
	}()

	done := make(chan system.Result, 1)
	go func() {
		completed := false
		defer func() {
			if completed {
				return
			}
			if r := recover(); r != nil {
				glog.Errorf("mojo: application panicked: %v\n%s", r, debug.Stack())
			} else {
				glog.Errorf("mojo: application exited without returning a result")
			}
			done <- system.ResultAborted
		}()
		res := main(shell)
		completed = true
		done <- res
	}()
	res := <-done
	glog.V(1).Infof("mojo: application returned %s", res)
	return res
}
