// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package sharedbuffer wraps the kernel's shared buffers: memory regions that
// can be duplicated, passed to other processes and mapped by each holder.
//
// The bindings add no synchronization over mapped memory.
package sharedbuffer

import (
	"runtime"
	"sync"

	"github.com/golang/glog"

	"go.fuchsia.dev/mojo/system"
)

// CreateFlags modify Create.
type CreateFlags uint32

const CreateNone CreateFlags = 0

// DuplicateFlags modify Buffer.Duplicate.
type DuplicateFlags uint32

const DuplicateNone DuplicateFlags = 0

// MapFlags modify Buffer.Map.
type MapFlags uint32

const MapNone MapFlags = 0

// Buffer is a handle to a shared buffer.
type Buffer struct {
	*system.UntypedHandle
}

// FromUntyped moves ownership of h into a Buffer. h must be a shared buffer
// handle; this is not checked.
func FromUntyped(h *system.UntypedHandle) *Buffer {
	return &Buffer{system.Acquire(h.Release())}
}

// AsUntyped moves ownership of b into an untyped handle.
func (b *Buffer) AsUntyped() *system.UntypedHandle {
	return system.Acquire(b.Release())
}

// Create allocates a zero-filled shared buffer of numBytes bytes.
func Create(flags CreateFlags, numBytes uint64) (*Buffer, error) {
	h, s := system.CurrentKernel().CreateSharedBuffer(uint32(flags), numBytes)
	if err := s.Result().Err("create shared buffer"); err != nil {
		return nil, err
	}
	return &Buffer{system.Acquire(h)}, nil
}

// Duplicate returns a second, independently owned handle to the same
// memory. The kernel keeps the memory alive until every handle is closed.
func (b *Buffer) Duplicate(flags DuplicateFlags) (*Buffer, error) {
	h, s := system.CurrentKernel().DuplicateBufferHandle(b.Raw(), uint32(flags))
	if err := s.Result().Err("duplicate buffer handle"); err != nil {
		return nil, err
	}
	return &Buffer{system.Acquire(h)}, nil
}

// Info describes a shared buffer.
type Info struct {
	NumBytes uint64
}

// Info queries the kernel for the buffer's size.
func (b *Buffer) Info() (Info, error) {
	n, s := system.CurrentKernel().GetBufferInformation(b.Raw())
	if err := s.Result().Err("get buffer information"); err != nil {
		return Info{}, err
	}
	return Info{NumBytes: n}, nil
}

// Map maps numBytes bytes of the buffer starting at offset. The mapping stays
// valid after b is closed and must itself be closed to unmap it.
func (b *Buffer) Map(offset, numBytes uint64, flags MapFlags) (*Mapping, error) {
	data, s := system.CurrentKernel().MapBuffer(b.Raw(), offset, numBytes, uint32(flags))
	if err := s.Result().Err("map buffer"); err != nil {
		return nil, err
	}
	m := &Mapping{data: data}
	runtime.SetFinalizer(m, (*Mapping).finalize)
	return m, nil
}

// Mapping is a region of a shared buffer mapped into this process. It is
// unmapped exactly once, by Close or, failing that, by a finalizer.
type Mapping struct {
	mu   sync.Mutex
	data []byte
}

// Bytes returns the mapped memory. The slice must not be used after Close.
func (m *Mapping) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data
}

// Len returns the size of the mapping, or zero once closed.
func (m *Mapping) Len() int {
	return len(m.Bytes())
}

// Close unmaps the region. Closing an already unmapped Mapping does nothing.
// Without a kernel the Mapping is still marked closed.
func (m *Mapping) Close() error {
	data := m.take()
	if data == nil {
		return nil
	}
	runtime.SetFinalizer(m, nil)
	k, ok := system.LookupKernel()
	if !ok {
		return system.ResultFailedPrecondition.Err("unmap buffer")
	}
	return k.UnmapBuffer(data).Result().Err("unmap buffer")
}

func (m *Mapping) take() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	data := m.data
	m.data = nil
	return data
}

func (m *Mapping) finalize() {
	data := m.take()
	if data == nil {
		return
	}
	k, ok := system.LookupKernel()
	if !ok {
		glog.Warningf("mojo: leaked mapping of %d bytes outlived the kernel", len(data))
		return
	}
	if r := k.UnmapBuffer(data).Result(); r != system.ResultOK {
		glog.Warningf("mojo: unmapping leaked mapping of %d bytes: %s", len(data), r)
	}
}
