// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package waitset wraps kernel wait sets, which watch many handles at once
// and report every entry that became ready, keyed by a caller-chosen cookie.
package waitset

import (
	"go.fuchsia.dev/mojo/system"
)

// CreateFlags modify Create.
type CreateFlags uint32

const CreateNone CreateFlags = 0

// AddFlags modify WaitSet.Add.
type AddFlags uint32

const AddNone AddFlags = 0

// WaitSet is a handle to a kernel wait set.
type WaitSet struct {
	*system.UntypedHandle
}

// Result reports the state of one wait set entry.
type Result struct {
	Cookie uint64
	// WaitResult is system.ResultOK when a requested signal is raised,
	// system.ResultFailedPrecondition when none can be, and
	// system.ResultCancelled when the handle was closed.
	WaitResult   system.Result
	SignalsState system.SignalsState
}

// FromUntyped moves ownership of h into a WaitSet. h must be a wait set
// handle; this is not checked.
func FromUntyped(h *system.UntypedHandle) *WaitSet {
	return &WaitSet{system.Acquire(h.Release())}
}

// AsUntyped moves ownership of ws into an untyped handle.
func (ws *WaitSet) AsUntyped() *system.UntypedHandle {
	return system.Acquire(ws.Release())
}

// Create makes an empty wait set.
func Create(flags CreateFlags) (*WaitSet, error) {
	h, s := system.CurrentKernel().CreateWaitSet(uint32(flags))
	if err := s.Result().Err("create wait set"); err != nil {
		return nil, err
	}
	return &WaitSet{system.Acquire(h)}, nil
}

// Add watches h for signals under cookie. The wait set does not take
// ownership of h. Reusing a cookie fails with system.ResultAlreadyExists.
func (ws *WaitSet) Add(h system.Handle, signals system.HandleSignals, cookie uint64, flags AddFlags) error {
	if h == nil {
		return system.ResultInvalidArgument.Err("wait set add")
	}
	return system.CurrentKernel().WaitSetAdd(ws.Raw(), h.Raw(), signals, cookie, uint32(flags)).Result().Err("wait set add")
}

// Remove stops watching the entry named by cookie.
func (ws *WaitSet) Remove(cookie uint64) error {
	return system.CurrentKernel().WaitSetRemove(ws.Raw(), cookie).Result().Err("wait set remove")
}

// Wait blocks until at least one entry is ready or deadline passes, then
// returns up to maxResults ready entries along with the total number that
// were ready.
func (ws *WaitSet) Wait(deadline system.Deadline, maxResults int) ([]Result, int, error) {
	if maxResults < 0 {
		return nil, 0, system.ResultInvalidArgument.Err("wait set wait")
	}
	raw := make([]system.WaitSetResult, maxResults)
	n, total, s := system.CurrentKernel().WaitSetWait(ws.Raw(), deadline, raw)
	if err := s.Result().Err("wait set wait"); err != nil {
		return nil, 0, err
	}
	results := make([]Result, n)
	for i := range results {
		results[i] = Result{
			Cookie:       raw[i].Cookie,
			WaitResult:   raw[i].WaitResult.Result(),
			SignalsState: raw[i].SignalsState,
		}
	}
	return results, int(total), nil
}
