// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package system

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"
)

func TestResultStatusRoundTrip(t *testing.T) {
	for r := ResultOK; r < resultCount; r++ {
		if got := r.Status().Result(); got != r {
			t.Errorf("%s.Status().Result() = %s", r, got)
		}
	}
	if got := Status(17).Result(); got != ResultShouldWait {
		t.Errorf("Status(17).Result() = %s, want SHOULD_WAIT", got)
	}
	for _, s := range []Status{18, 100, math.MaxUint32} {
		if got := s.Result(); got != ResultUnknown {
			t.Errorf("Status(%d).Result() = %s, want UNKNOWN", uint32(s), got)
		}
	}
}

func TestResultString(t *testing.T) {
	for _, tc := range []struct {
		r    Result
		want string
	}{
		{ResultOK, "OK"},
		{ResultFailedPrecondition, "FAILED_PRECONDITION"},
		{ResultShouldWait, "SHOULD_WAIT"},
		{Result(42), "Result(42)"},
	} {
		if got := tc.r.String(); got != tc.want {
			t.Errorf("Result(%d).String() = %q, want %q", uint32(tc.r), got, tc.want)
		}
	}
}

func TestError(t *testing.T) {
	if err := ResultOK.Err("op"); err != nil {
		t.Fatalf("ResultOK.Err() = %v, want nil", err)
	}
	err := fmt.Errorf("reading: %w", ResultShouldWait.Err("read data"))
	if got := ResultOf(err); got != ResultShouldWait {
		t.Errorf("ResultOf() = %s, want SHOULD_WAIT", got)
	}
	if !errors.Is(err, &Error{Result: ResultShouldWait}) {
		t.Errorf("errors.Is(%v, SHOULD_WAIT) = false", err)
	}
	if errors.Is(err, &Error{Result: ResultOK}) {
		t.Errorf("errors.Is(%v, OK) = true", err)
	}
	if got, want := err.Error(), "reading: mojo: read data: SHOULD_WAIT"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if got := ResultOf(nil); got != ResultOK {
		t.Errorf("ResultOf(nil) = %s, want OK", got)
	}
	if got := ResultOf(errors.New("other")); got != ResultUnknown {
		t.Errorf("ResultOf(foreign error) = %s, want UNKNOWN", got)
	}
}

func TestHandleSignals(t *testing.T) {
	rw := SignalReadable.Union(SignalWritable)
	if !rw.Contains(SignalReadable) || rw.Contains(SignalPeerClosed) {
		t.Errorf("Contains() wrong for %s", rw)
	}
	if got := rw.Intersect(SignalWritable | SignalPeerClosed); got != SignalWritable {
		t.Errorf("Intersect() = %s, want WRITABLE", got)
	}
	if !rw.Any(SignalWritable|SignalPeerClosed) || rw.Any(SignalPeerClosed) {
		t.Errorf("Any() wrong for %s", rw)
	}
	if !SignalNone.IsEmpty() || rw.IsEmpty() {
		t.Error("IsEmpty() wrong")
	}
	for _, tc := range []struct {
		s    HandleSignals
		want string
	}{
		{SignalNone, "NONE"},
		{rw, "READABLE|WRITABLE"},
		{SignalPeerClosed | 1<<7, "PEER_CLOSED|0x80"},
	} {
		if got := tc.s.String(); got != tc.want {
			t.Errorf("HandleSignals(%d).String() = %q, want %q", uint32(tc.s), got, tc.want)
		}
	}
}

func TestFlags(t *testing.T) {
	type testFlags uint32
	const (
		a testFlags = 1 << 0
		b testFlags = 1 << 3
	)
	if got := Flags(a, b); got != a|b {
		t.Errorf("Flags(a, b) = %d, want %d", got, a|b)
	}
	if got := Flags[testFlags](); got != 0 {
		t.Errorf("Flags() = %d, want 0", got)
	}
}

func TestDeadline(t *testing.T) {
	for _, tc := range []struct {
		d    time.Duration
		want Deadline
	}{
		{-time.Second, DeadlineImmediate},
		{0, DeadlineImmediate},
		{time.Nanosecond, 1},
		{time.Millisecond, 1000},
	} {
		if got := DeadlineFromDuration(tc.d); got != tc.want {
			t.Errorf("DeadlineFromDuration(%s) = %d, want %d", tc.d, got, tc.want)
		}
	}
	if _, ok := DeadlineIndefinite.Duration(); ok {
		t.Error("DeadlineIndefinite.Duration() reported a finite duration")
	}
	if d, ok := Deadline(1500).Duration(); !ok || d != 1500*time.Microsecond {
		t.Errorf("Deadline(1500).Duration() = %s, %t", d, ok)
	}
	if d, ok := (DeadlineIndefinite - 1).Duration(); !ok || d != time.Duration(math.MaxInt64) {
		t.Errorf("huge Deadline.Duration() = %s, %t, want saturated", d, ok)
	}
}
