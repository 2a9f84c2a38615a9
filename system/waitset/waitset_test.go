// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package waitset_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"go.fuchsia.dev/mojo/memkernel/memkerneltest"
	"go.fuchsia.dev/mojo/system"
	"go.fuchsia.dev/mojo/system/messagepipe"
	"go.fuchsia.dev/mojo/system/waitset"
)

func mustCreate(t *testing.T) *waitset.WaitSet {
	t.Helper()
	ws, err := waitset.Create(waitset.CreateNone)
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func mustPipe(t *testing.T) (*messagepipe.Endpoint, *messagepipe.Endpoint) {
	t.Helper()
	e0, e1, err := messagepipe.Create(messagepipe.CreateNone)
	if err != nil {
		t.Fatalf("messagepipe.Create() = %v", err)
	}
	t.Cleanup(func() { system.CloseAll(e0, e1) })
	return e0, e1
}

func TestAddRemove(t *testing.T) {
	memkerneltest.Install(t)
	ws := mustCreate(t)
	e0, _ := mustPipe(t)

	if err := ws.Add(e0, system.SignalReadable, 1, waitset.AddNone); err != nil {
		t.Fatalf("Add() = %v", err)
	}
	if err := ws.Add(e0, system.SignalWritable, 1, waitset.AddNone); system.ResultOf(err) != system.ResultAlreadyExists {
		t.Errorf("Add() with duplicate cookie = %v, want ALREADY_EXISTS", err)
	}
	if err := ws.Add(e0, system.SignalWritable, 2, waitset.AddNone); err != nil {
		t.Errorf("Add() of the same handle under a new cookie = %v", err)
	}
	if err := ws.Remove(1); err != nil {
		t.Errorf("Remove(1) = %v", err)
	}
	if err := ws.Remove(1); system.ResultOf(err) != system.ResultNotFound {
		t.Errorf("second Remove(1) = %v, want NOT_FOUND", err)
	}
	if err := ws.Add(system.Acquire(system.HandleInvalid), system.SignalReadable, 3, waitset.AddNone); system.ResultOf(err) != system.ResultInvalidArgument {
		t.Errorf("Add(invalid) = %v, want INVALID_ARGUMENT", err)
	}
}

func TestWaitEmpty(t *testing.T) {
	_, fc := memkerneltest.InstallFakeClock(t)
	ws := mustCreate(t)

	errs := make(chan error)
	go func() {
		_, _, err := ws.Wait(system.DeadlineFromDuration(time.Second), 4)
		errs <- err
	}()
	<-fc.AfterCalledChan()
	fc.Advance(time.Second)
	if err := <-errs; system.ResultOf(err) != system.ResultDeadlineExceeded {
		t.Errorf("Wait() on empty set = %v, want DEADLINE_EXCEEDED", err)
	}
}

func TestWaitReportsReadyEntries(t *testing.T) {
	memkerneltest.Install(t)
	ws := mustCreate(t)
	a0, a1 := mustPipe(t)
	b0, b1 := mustPipe(t)
	c0, _ := mustPipe(t)
	for _, e := range []struct {
		h      system.Handle
		cookie uint64
	}{{a0, 30}, {b0, 10}, {c0, 20}} {
		if err := ws.Add(e.h, system.SignalReadable, e.cookie, waitset.AddNone); err != nil {
			t.Fatalf("Add(%d) = %v", e.cookie, err)
		}
	}

	done := make(chan []waitset.Result)
	go func() {
		results, _, err := ws.Wait(system.DeadlineIndefinite, 4)
		if err != nil {
			t.Errorf("Wait() = %v", err)
		}
		done <- results
	}()
	time.Sleep(10 * time.Millisecond)
	if err := a1.Write([]byte("a"), nil, messagepipe.WriteNone); err != nil {
		t.Fatalf("Write() = %v", err)
	}
	results := <-done
	if len(results) == 0 || results[0].Cookie != 30 || results[0].WaitResult != system.ResultOK {
		t.Fatalf("Wait() = %+v, want cookie 30 ready", results)
	}

	b1.Close()
	c0.Close()
	results, total, err := ws.Wait(system.DeadlineImmediate, 2)
	if err != nil {
		t.Fatalf("Wait() = %v", err)
	}
	want := []waitset.Result{
		{
			Cookie:     10,
			WaitResult: system.ResultFailedPrecondition,
			SignalsState: system.SignalsState{
				Satisfied:   system.SignalPeerClosed,
				Satisfiable: system.SignalPeerClosed,
			},
		},
		{Cookie: 20, WaitResult: system.ResultCancelled},
	}
	if diff := cmp.Diff(want, results); diff != "" {
		t.Errorf("Wait() mismatch (-want +got):\n%s", diff)
	}
	if total != 3 {
		t.Errorf("Wait() total = %d, want 3", total)
	}
}

func TestRejectsBadArguments(t *testing.T) {
	memkerneltest.Install(t)
	ws := mustCreate(t)
	if err := ws.Add(nil, system.SignalReadable, 1, waitset.AddNone); system.ResultOf(err) != system.ResultInvalidArgument {
		t.Errorf("Add(nil) = %v, want INVALID_ARGUMENT", err)
	}
	if _, _, err := ws.Wait(system.DeadlineImmediate, -1); system.ResultOf(err) != system.ResultInvalidArgument {
		t.Errorf("Wait(maxResults -1) = %v, want INVALID_ARGUMENT", err)
	}
}
