// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package memkernel

import (
	"sort"

	"go.fuchsia.dev/mojo/system"
)

type waitEntry struct {
	obj     object
	signals system.HandleSignals
}

// waitSet holds entries keyed by cookie. An entry refers to the object, not
// the handle, so it keeps tracking an object that has been moved to another
// handle value by a message transfer.
type waitSet struct {
	base
	entries map[uint64]waitEntry
}

func (*waitSet) state() system.SignalsState { return system.SignalsState{} }

func (ws *waitSet) close(*Kernel) error {
	ws.closed = true
	ws.entries = nil
	return nil
}

// ready appends the entries that would complete a wait, in cookie order.
func (ws *waitSet) ready(out []system.WaitSetResult) []system.WaitSetResult {
	cookies := make([]uint64, 0, len(ws.entries))
	for c := range ws.entries {
		cookies = append(cookies, c)
	}
	sort.Slice(cookies, func(i, j int) bool { return cookies[i] < cookies[j] })
	for _, c := range cookies {
		e := ws.entries[c]
		if e.obj.isClosed() {
			out = append(out, system.WaitSetResult{Cookie: c, WaitResult: system.ResultCancelled.Status()})
			continue
		}
		if st, r, ok := check(e.obj, e.signals); ok {
			out = append(out, system.WaitSetResult{Cookie: c, WaitResult: r.Status(), SignalsState: st})
		}
	}
	return out
}

func (k *Kernel) CreateWaitSet(flags uint32) (system.MojoHandle, system.Status) {
	if flags != 0 {
		return system.HandleInvalid, system.ResultUnimplemented.Status()
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	h, ok := k.installLocked(&waitSet{entries: make(map[uint64]waitEntry)})
	if !ok {
		return system.HandleInvalid, system.ResultResourceExhausted.Status()
	}
	return h, system.ResultOK.Status()
}

func (k *Kernel) WaitSetAdd(wsh, h system.MojoHandle, signals system.HandleSignals, cookie uint64, flags uint32) system.Status {
	k.mu.Lock()
	defer k.mu.Unlock()
	ws, ok := lookup[*waitSet](k, wsh)
	if !ok {
		return system.ResultInvalidArgument.Status()
	}
	obj, ok := k.handles[h]
	if !ok {
		return system.ResultInvalidArgument.Status()
	}
	if flags != 0 {
		return system.ResultUnimplemented.Status()
	}
	if _, ok := ws.entries[cookie]; ok {
		return system.ResultAlreadyExists.Status()
	}
	ws.entries[cookie] = waitEntry{obj: obj, signals: signals}
	k.notifyLocked()
	return system.ResultOK.Status()
}

func (k *Kernel) WaitSetRemove(wsh system.MojoHandle, cookie uint64) system.Status {
	k.mu.Lock()
	defer k.mu.Unlock()
	ws, ok := lookup[*waitSet](k, wsh)
	if !ok {
		return system.ResultInvalidArgument.Status()
	}
	if _, ok := ws.entries[cookie]; !ok {
		return system.ResultNotFound.Status()
	}
	delete(ws.entries, cookie)
	return system.ResultOK.Status()
}

func (k *Kernel) WaitSetWait(wsh system.MojoHandle, deadline system.Deadline, results []system.WaitSetResult) (uint32, uint32, system.Status) {
	k.mu.Lock()
	ws, ok := lookup[*waitSet](k, wsh)
	k.mu.Unlock()
	if !ok {
		return 0, 0, system.ResultInvalidArgument.Status()
	}

	var (
		ready     []system.WaitSetResult
		cancelled bool
	)
	done := k.await(deadline, func() bool {
		if ws.closed {
			cancelled = true
			return true
		}
		ready = ws.ready(ready[:0])
		return len(ready) > 0
	})
	switch {
	case cancelled:
		return 0, 0, system.ResultCancelled.Status()
	case !done:
		return 0, 0, system.ResultDeadlineExceeded.Status()
	}
	n := copy(results, ready)
	return uint32(n), uint32(len(ready)), system.ResultOK.Status()
}
