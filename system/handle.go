// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package system

import (
	"runtime"
	"sync/atomic"

	"github.com/golang/glog"
	"go.uber.org/multierr"
)

// Handle is implemented by every owning handle type: UntypedHandle and the
// typed endpoints built on it.
type Handle interface {
	// Raw returns the kernel identifier without giving up ownership.
	Raw() MojoHandle
	// Release gives up ownership and returns the kernel identifier. The
	// handle is invalid afterwards and will not close the identifier.
	Release() MojoHandle
	// Close returns the identifier to the kernel. Closing an invalid handle
	// is a no-op.
	Close() error
	IsValid() bool
}

// UntypedHandle exclusively owns one kernel handle of any kind.
//
// Ownership moves explicitly: Release hands the raw value to the caller, and
// the FromUntyped/AsUntyped conversions of the typed packages move it into a
// new wrapper, invalidating the source. A handle that becomes unreachable
// while still valid is closed by a finalizer; explicit Close is still
// expected, since finalizers run at the garbage collector's discretion.
type UntypedHandle struct {
	value atomic.Uint32
}

// Acquire takes ownership of raw. The caller asserts that no other owner of
// raw exists. Acquiring HandleInvalid yields an invalid handle.
func Acquire(raw MojoHandle) *UntypedHandle {
	h := &UntypedHandle{}
	if raw != HandleInvalid {
		h.value.Store(uint32(raw))
		runtime.SetFinalizer(h, (*UntypedHandle).finalize)
	}
	return h
}

// Raw implements Handle.
func (h *UntypedHandle) Raw() MojoHandle {
	if h == nil {
		return HandleInvalid
	}
	return MojoHandle(h.value.Load())
}

// IsValid implements Handle.
func (h *UntypedHandle) IsValid() bool {
	return h.Raw() != HandleInvalid
}

// Release implements Handle.
func (h *UntypedHandle) Release() MojoHandle {
	if h == nil {
		return HandleInvalid
	}
	raw := MojoHandle(h.value.Swap(uint32(HandleInvalid)))
	if raw != HandleInvalid {
		runtime.SetFinalizer(h, nil)
	}
	return raw
}

// Close implements Handle. Concurrent calls close the kernel handle once;
// only the call that performed the close can report a failure. With no
// kernel installed the handle is still invalidated and Close reports
// ResultFailedPrecondition.
func (h *UntypedHandle) Close() error {
	raw := h.Release()
	if raw == HandleInvalid {
		return nil
	}
	k, ok := LookupKernel()
	if !ok {
		return ResultFailedPrecondition.Err("close")
	}
	return k.Close(raw).Result().Err("close")
}

func (h *UntypedHandle) finalize() {
	raw := MojoHandle(h.value.Swap(uint32(HandleInvalid)))
	if raw == HandleInvalid {
		return
	}
	k, ok := LookupKernel()
	if !ok {
		glog.Warningf("mojo: leaked handle %d outlived the kernel", raw)
		return
	}
	if r := k.Close(raw).Result(); r != ResultOK {
		glog.Warningf("mojo: closing leaked handle %d: %s", raw, r)
	}
}

// Wait blocks until h raises one of signals; see the package-level Wait.
func (h *UntypedHandle) Wait(signals HandleSignals, deadline Deadline) (SignalsState, error) {
	return Wait(h, signals, deadline)
}

// CloseAll closes every handle, continuing past failures, and returns the
// combined errors.
func CloseAll(handles ...Handle) error {
	var err error
	for _, h := range handles {
		if h == nil {
			continue
		}
		err = multierr.Append(err, h.Close())
	}
	return err
}
