// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package system

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// MojoHandle is the raw identifier the kernel issues for a resource. It has
// no meaning outside the kernel's handle table.
type MojoHandle uint32

// HandleInvalid is never issued by the kernel and denotes an absent handle.
const HandleInvalid MojoHandle = 0

// HandleSignals is a set of readiness conditions on a handle.
type HandleSignals uint32

const (
	SignalNone           HandleSignals = 0
	SignalReadable       HandleSignals = 1 << 0
	SignalWritable       HandleSignals = 1 << 1
	SignalPeerClosed     HandleSignals = 1 << 2
	SignalReadThreshold  HandleSignals = 1 << 3
	SignalWriteThreshold HandleSignals = 1 << 4

	// SignalAll is every signal the kernel can report.
	SignalAll = SignalReadable | SignalWritable | SignalPeerClosed |
		SignalReadThreshold | SignalWriteThreshold
)

var signalNames = []struct {
	s    HandleSignals
	name string
}{
	{SignalReadable, "READABLE"},
	{SignalWritable, "WRITABLE"},
	{SignalPeerClosed, "PEER_CLOSED"},
	{SignalReadThreshold, "READ_THRESHOLD"},
	{SignalWriteThreshold, "WRITE_THRESHOLD"},
}

// Union returns the signals present in s or o.
func (s HandleSignals) Union(o HandleSignals) HandleSignals { return s | o }

// Intersect returns the signals present in both s and o.
func (s HandleSignals) Intersect(o HandleSignals) HandleSignals { return s & o }

// Contains reports whether every signal in o is also in s.
func (s HandleSignals) Contains(o HandleSignals) bool { return s&o == o }

// Any reports whether s and o share at least one signal.
func (s HandleSignals) Any(o HandleSignals) bool { return s&o != 0 }

// IsEmpty reports whether no signal is set.
func (s HandleSignals) IsEmpty() bool { return s == SignalNone }

func (s HandleSignals) String() string {
	if s == SignalNone {
		return "NONE"
	}
	var parts []string
	for _, n := range signalNames {
		if s&n.s != 0 {
			parts = append(parts, n.name)
			s &^= n.s
		}
	}
	if s != 0 {
		parts = append(parts, "0x"+strconv.FormatUint(uint64(s), 16))
	}
	return strings.Join(parts, "|")
}

// SignalsState is the kernel's view of a handle at the end of a wait:
// the signals currently raised, and those that could still be raised.
type SignalsState struct {
	Satisfied   HandleSignals
	Satisfiable HandleSignals
}

// Deadline is a relative timeout in microseconds.
type Deadline uint64

const (
	// DeadlineImmediate checks the signals once without blocking.
	DeadlineImmediate Deadline = 0
	// DeadlineIndefinite blocks until the wait is satisfied or becomes
	// unsatisfiable.
	DeadlineIndefinite Deadline = math.MaxUint64
)

// DeadlineFromDuration converts d to a Deadline, rounding up to the next
// microsecond. Negative durations poll.
func DeadlineFromDuration(d time.Duration) Deadline {
	if d <= 0 {
		return DeadlineImmediate
	}
	us := (d + time.Microsecond - 1) / time.Microsecond
	return Deadline(us)
}

// Duration returns the timeout as a time.Duration. The boolean is false for
// DeadlineIndefinite.
func (d Deadline) Duration() (time.Duration, bool) {
	if d == DeadlineIndefinite {
		return 0, false
	}
	if d > Deadline(math.MaxInt64/int64(time.Microsecond)) {
		return time.Duration(math.MaxInt64), true
	}
	return time.Duration(d) * time.Microsecond, true
}

// TimeTicks is a point on the kernel's monotonic clock, in microseconds.
type TimeTicks int64

// Flag is the constraint satisfied by every typed flags family.
type Flag interface {
	~uint32
}

// Flags ORs any number of variants of one flags family together. Mixing
// families does not compile, and constant arguments fold at compile time when
// written with | instead.
func Flags[F Flag](variants ...F) F {
	var f F
	for _, v := range variants {
		f |= v
	}
	return f
}
