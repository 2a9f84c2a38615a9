// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package system

import "sync/atomic"

// WaitSetResult is one entry reported by Kernel.WaitSetWait.
type WaitSetResult struct {
	Cookie       uint64
	WaitResult   Status
	SignalsState SignalsState
}

// Kernel is the table of native entry points the bindings are built on. Each
// method mirrors one kernel call; flags arrive already encoded and every
// outcome is reported as a raw Status.
//
// Implementations must be safe for concurrent use. Slices passed in are only
// borrowed for the duration of the call, except for the memory returned by
// MapBuffer, which stays valid until UnmapBuffer, and the spans returned by
// BeginWriteData and BeginReadData, which are valid until the matching End.
type Kernel interface {
	GetTimeTicksNow() TimeTicks
	Close(h MojoHandle) Status

	Wait(h MojoHandle, signals HandleSignals, deadline Deadline) (SignalsState, Status)
	// WaitMany fills states, which has one element per handle, and returns the
	// index of the handle that completed the wait.
	WaitMany(handles []MojoHandle, signals []HandleSignals, deadline Deadline, states []SignalsState) (uint32, Status)

	CreateMessagePipe(flags uint32) (MojoHandle, MojoHandle, Status)
	WriteMessage(h MojoHandle, bytes []byte, handles []MojoHandle, flags uint32) Status
	// ReadMessage copies the next message into bytes and handles. When either
	// is too small it reports ResultResourceExhausted along with the sizes
	// the message needs.
	ReadMessage(h MojoHandle, bytes []byte, handles []MojoHandle, flags uint32) (numBytes, numHandles uint32, s Status)

	CreateDataPipe(flags, elementNumBytes, capacityNumBytes uint32) (producer, consumer MojoHandle, s Status)
	WriteData(h MojoHandle, data []byte, flags uint32) (uint32, Status)
	ReadData(h MojoHandle, data []byte, flags uint32) (uint32, Status)
	DiscardData(h MojoHandle, numBytes, flags uint32) (uint32, Status)
	QueryData(h MojoHandle) (uint32, Status)
	// BeginWriteData and BeginReadData lend the caller a contiguous span of
	// the pipe's buffer until the matching End call, which commits or
	// consumes the first numBytes of it. Only one two-phase operation per
	// end may be pending.
	BeginWriteData(h MojoHandle, flags uint32) ([]byte, Status)
	EndWriteData(h MojoHandle, numBytes uint32) Status
	BeginReadData(h MojoHandle, flags uint32) ([]byte, Status)
	EndReadData(h MojoHandle, numBytes uint32) Status
	SetDataPipeConsumerReadThreshold(h MojoHandle, threshold uint32) Status
	GetDataPipeConsumerReadThreshold(h MojoHandle) (uint32, Status)

	CreateSharedBuffer(flags uint32, numBytes uint64) (MojoHandle, Status)
	DuplicateBufferHandle(h MojoHandle, flags uint32) (MojoHandle, Status)
	GetBufferInformation(h MojoHandle) (numBytes uint64, s Status)
	MapBuffer(h MojoHandle, offset, numBytes uint64, flags uint32) ([]byte, Status)
	UnmapBuffer(mapping []byte) Status

	CreateWaitSet(flags uint32) (MojoHandle, Status)
	WaitSetAdd(ws, h MojoHandle, signals HandleSignals, cookie uint64, flags uint32) Status
	WaitSetRemove(ws MojoHandle, cookie uint64) Status
	// WaitSetWait fills results and returns how many were written together
	// with how many entries were ready in total.
	WaitSetWait(ws MojoHandle, deadline Deadline, results []WaitSetResult) (numResults, maxResults uint32, s Status)
}

type kernelBox struct{ k Kernel }

var installed atomic.Pointer[kernelBox]

// SetKernel installs k as the process-wide kernel table and returns the one
// it replaces, if any. It is normally called once, before any handle is
// created; tests use the return value to restore the previous table.
func SetKernel(k Kernel) Kernel {
	var prev *kernelBox
	if k == nil {
		prev = installed.Swap(nil)
	} else {
		prev = installed.Swap(&kernelBox{k: k})
	}
	if prev == nil {
		return nil
	}
	return prev.k
}

// CurrentKernel returns the installed kernel table. It panics if SetKernel
// has not been called.
func CurrentKernel() Kernel {
	k, ok := LookupKernel()
	if !ok {
		panic("mojo: no kernel installed; call system.SetKernel first")
	}
	return k
}

// LookupKernel returns the installed kernel table, if any. Cleanup paths that
// must not panic, such as finalizers, use it instead of CurrentKernel.
func LookupKernel() (Kernel, bool) {
	b := installed.Load()
	if b == nil {
		return nil, false
	}
	return b.k, true
}
