// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package memkernel is an in-process implementation of system.Kernel. It
// backs the bindings in tests and in tools that have no native kernel to
// talk to.
//
// Handles are allocated from a counter shared by every Kernel in the
// process, so a raw value is never reused and a stale handle from one kernel
// is rejected by another.
package memkernel

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"go.uber.org/multierr"

	"go.fuchsia.dev/mojo/clock"
	"go.fuchsia.dev/mojo/system"
)

var lastHandle atomic.Uint32

func nextHandle() system.MojoHandle {
	return system.MojoHandle(lastHandle.Add(1))
}

// object is anything a handle can refer to. All methods are called with
// Kernel.mu held.
type object interface {
	state() system.SignalsState
	// close releases the object. It is called once, when the last reference
	// to it goes away: its handle is closed or the message carrying it is
	// destroyed.
	close(k *Kernel) error
	isClosed() bool
}

type base struct {
	closed bool
}

func (b *base) isClosed() bool { return b.closed }

// Kernel implements system.Kernel in memory. It is safe for concurrent use.
type Kernel struct {
	cfg   Config
	clock clock.Clock
	epoch time.Time

	mu      sync.Mutex
	handles map[system.MojoHandle]object
	// changed is closed and replaced whenever any object's state may have
	// changed, waking every blocked waiter.
	changed    chan struct{}
	closeCalls map[system.MojoHandle]int
	mappings   map[*byte][]mapping
}

var _ system.Kernel = (*Kernel)(nil)

// New returns an empty kernel. Deadlines are measured with the clock carried
// by ctx, if any.
func New(ctx context.Context, cfg Config) *Kernel {
	c := clock.FromContext(ctx)
	return &Kernel{
		cfg:        cfg.withDefaults(),
		clock:      c,
		epoch:      c.Now(),
		handles:    make(map[system.MojoHandle]object),
		changed:    make(chan struct{}),
		closeCalls: make(map[system.MojoHandle]int),
		mappings:   make(map[*byte][]mapping),
	}
}

// Config returns the limits the kernel enforces.
func (k *Kernel) Config() Config {
	return k.cfg
}

// CloseCalls reports how many times Close has been called with h, whether or
// not the calls succeeded.
func (k *Kernel) CloseCalls(h system.MojoHandle) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.closeCalls[h]
}

// LiveHandles returns the number of open handles.
func (k *Kernel) LiveHandles() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.handles)
}

// Shutdown closes every open handle and wakes all waiters.
func (k *Kernel) Shutdown() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	raws := make([]system.MojoHandle, 0, len(k.handles))
	for h := range k.handles {
		raws = append(raws, h)
	}
	sort.Slice(raws, func(i, j int) bool { return raws[i] < raws[j] })
	var err error
	for _, h := range raws {
		obj := k.handles[h]
		delete(k.handles, h)
		err = multierr.Append(err, obj.close(k))
	}
	if len(raws) > 0 {
		glog.V(1).Infof("memkernel: shutdown closed %d handles", len(raws))
	}
	k.notifyLocked()
	return err
}

func (k *Kernel) notifyLocked() {
	close(k.changed)
	k.changed = make(chan struct{})
}

func (k *Kernel) installLocked(obj object) (system.MojoHandle, bool) {
	if len(k.handles) >= k.cfg.MaxHandles {
		return system.HandleInvalid, false
	}
	h := nextHandle()
	k.handles[h] = obj
	glog.V(2).Infof("memkernel: handle %d -> %T", h, obj)
	return h, true
}

func (k *Kernel) GetTimeTicksNow() system.TimeTicks {
	return system.TimeTicks(k.clock.Now().Sub(k.epoch) / time.Microsecond)
}

func (k *Kernel) Close(h system.MojoHandle) system.Status {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.closeCalls[h]++
	obj, ok := k.handles[h]
	if !ok {
		return system.ResultInvalidArgument.Status()
	}
	delete(k.handles, h)
	glog.V(2).Infof("memkernel: close %d (%T)", h, obj)
	if err := obj.close(k); err != nil {
		glog.Warningf("memkernel: closing handle %d: %v", h, err)
	}
	k.notifyLocked()
	return system.ResultOK.Status()
}

// await evaluates poll under k.mu until it reports completion, re-evaluating
// it after every state change. It returns false if the deadline passes
// first; poll has then been evaluated one last time.
func (k *Kernel) await(deadline system.Deadline, poll func() bool) bool {
	var expired <-chan time.Time
	if d, ok := deadline.Duration(); ok && deadline != system.DeadlineImmediate {
		t := k.clock.NewTimer(d)
		defer t.Stop()
		expired = t.C()
	}
	for {
		k.mu.Lock()
		if poll() {
			k.mu.Unlock()
			return true
		}
		if deadline == system.DeadlineImmediate {
			k.mu.Unlock()
			return false
		}
		changed := k.changed
		k.mu.Unlock()

		select {
		case <-changed:
		case <-expired:
			k.mu.Lock()
			done := poll()
			k.mu.Unlock()
			return done
		}
	}
}

// check classifies obj's state against signals: OK once one is satisfied,
// FailedPrecondition once none can be. ok is false while the wait should
// continue.
func check(obj object, signals system.HandleSignals) (system.SignalsState, system.Result, bool) {
	st := obj.state()
	switch {
	case st.Satisfied.Any(signals):
		return st, system.ResultOK, true
	case !st.Satisfiable.Any(signals):
		return st, system.ResultFailedPrecondition, true
	}
	return st, system.ResultOK, false
}

func (k *Kernel) Wait(h system.MojoHandle, signals system.HandleSignals, deadline system.Deadline) (system.SignalsState, system.Status) {
	k.mu.Lock()
	obj, ok := k.handles[h]
	k.mu.Unlock()
	if !ok {
		return system.SignalsState{}, system.ResultInvalidArgument.Status()
	}

	var (
		st     system.SignalsState
		result system.Result
	)
	done := k.await(deadline, func() bool {
		if cur, ok := k.handles[h]; !ok || cur != obj {
			st, result = system.SignalsState{}, system.ResultCancelled
			return true
		}
		var ready bool
		st, result, ready = check(obj, signals)
		return ready
	})
	if !done {
		return st, system.ResultDeadlineExceeded.Status()
	}
	return st, result.Status()
}

func (k *Kernel) WaitMany(handles []system.MojoHandle, signals []system.HandleSignals, deadline system.Deadline, states []system.SignalsState) (uint32, system.Status) {
	const noIndex = math.MaxUint32
	if len(handles) != len(signals) || len(states) < len(handles) {
		return noIndex, system.ResultInvalidArgument.Status()
	}
	objs := make([]object, len(handles))
	k.mu.Lock()
	for i, h := range handles {
		obj, ok := k.handles[h]
		if !ok {
			k.mu.Unlock()
			return uint32(i), system.ResultInvalidArgument.Status()
		}
		objs[i] = obj
	}
	k.mu.Unlock()

	var (
		index  uint32 = noIndex
		result system.Result
	)
	done := k.await(deadline, func() bool {
		found := false
		for i, obj := range objs {
			if cur, ok := k.handles[handles[i]]; !ok || cur != obj {
				states[i] = system.SignalsState{}
				if !found {
					index, result, found = uint32(i), system.ResultCancelled, true
				}
				continue
			}
			st, r, ready := check(obj, signals[i])
			states[i] = st
			if ready && !found {
				index, result, found = uint32(i), r, true
			}
		}
		return found
	})
	if !done {
		return noIndex, system.ResultDeadlineExceeded.Status()
	}
	return index, result.Status()
}

// lookup returns the object behind h if it has type T.
func lookup[T object](k *Kernel, h system.MojoHandle) (T, bool) {
	obj, ok := k.handles[h].(T)
	return obj, ok
}
