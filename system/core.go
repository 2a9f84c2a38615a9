// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package system

import "fmt"

// InvalidIndex is the WaitManyResult index when no handle is identified.
const InvalidIndex = -1

// GetTimeTicksNow returns the kernel's monotonic time.
func GetTimeTicksNow() TimeTicks {
	return CurrentKernel().GetTimeTicksNow()
}

// Wait blocks until h raises at least one of signals, none of signals can
// ever be raised (ResultFailedPrecondition), or deadline passes
// (ResultDeadlineExceeded). The returned state is valid unless the error is
// ResultInvalidArgument.
func Wait(h Handle, signals HandleSignals, deadline Deadline) (SignalsState, error) {
	if h == nil || !h.IsValid() {
		return SignalsState{}, ResultInvalidArgument.Err("wait")
	}
	raw := h.Raw()
	state, s := CurrentKernel().Wait(raw, signals, deadline)
	return state, s.Result().Err("wait")
}

// WaitManyResult reports the outcome of WaitMany.
type WaitManyResult struct {
	// Index is the position of the handle that ended the wait, or
	// InvalidIndex when the wait timed out or failed before a handle was
	// examined.
	Index int
	// States holds one entry per input handle. It is nil when the inputs
	// were rejected without reaching the kernel.
	States []SignalsState

	signals []HandleSignals
	result  Result
}

// WaitEntry is the per-handle view of a WaitMany outcome.
type WaitEntry struct {
	Index  int
	State  SignalsState
	Result Result
}

// IsIndexValid reports whether Index identifies an input handle.
func (r WaitManyResult) IsIndexValid() bool {
	return r.Index != InvalidIndex
}

// Entries classifies every input handle against the signals requested for
// it: ResultOK if one is raised, ResultFailedPrecondition if none can be,
// and the overall wait result otherwise.
func (r WaitManyResult) Entries() []WaitEntry {
	entries := make([]WaitEntry, len(r.States))
	for i, st := range r.States {
		e := WaitEntry{Index: i, State: st, Result: r.result}
		switch {
		case st.Satisfied.Any(r.signals[i]):
			e.Result = ResultOK
		case !st.Satisfiable.Any(r.signals[i]):
			e.Result = ResultFailedPrecondition
		}
		entries[i] = e
	}
	return entries
}

// WaitMany blocks until any handles[i] raises one of signals[i]. The kernel
// chooses which index to report when several are ready at once.
//
// Invalid handles are rejected with ResultInvalidArgument and their Index
// before the kernel is asked to wait.
func WaitMany(handles []Handle, signals []HandleSignals, deadline Deadline) (WaitManyResult, error) {
	if len(handles) != len(signals) {
		return WaitManyResult{Index: InvalidIndex, result: ResultInvalidArgument},
			&Error{Result: ResultInvalidArgument, Op: fmt.Sprintf("wait many: %d handles, %d signal sets", len(handles), len(signals))}
	}
	raws := make([]MojoHandle, len(handles))
	for i, h := range handles {
		if h == nil || !h.IsValid() {
			return WaitManyResult{Index: i, result: ResultInvalidArgument},
				&Error{Result: ResultInvalidArgument, Op: fmt.Sprintf("wait many: handle %d", i)}
		}
		raws[i] = h.Raw()
	}
	states := make([]SignalsState, len(handles))
	idx, s := CurrentKernel().WaitMany(raws, signals, deadline, states)
	res := WaitManyResult{
		Index:   InvalidIndex,
		States:  states,
		signals: signals,
		result:  s.Result(),
	}
	if idx < uint32(len(handles)) {
		res.Index = int(idx)
	}
	return res, res.result.Err("wait many")
}
