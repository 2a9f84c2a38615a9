// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package memkernel

import (
	"unsafe"

	"github.com/golang/glog"

	"go.fuchsia.dev/mojo/system"
)

// region is the memory behind one shared buffer, referenced by every
// duplicate of its handle. The memory itself outlives the handles for as
// long as any mapping of it exists.
type region struct {
	numBytes uint64
	refs     int
	mem      memory
}

// memory is the platform backing of a region.
type memory interface {
	// mapRange returns a view of numBytes bytes at offset, and the span that
	// must later be passed to unmap.
	mapRange(offset, numBytes uint64) (view, span []byte, err error)
	unmap(span []byte) error
	// release drops the region's own reference to the memory.
	release() error
}

type mapping struct {
	view, span []byte
	mem        memory
}

type bufferHandle struct {
	base
	region *region
}

func (*bufferHandle) state() system.SignalsState { return system.SignalsState{} }

func (b *bufferHandle) close(*Kernel) error {
	b.closed = true
	b.region.refs--
	if b.region.refs > 0 {
		return nil
	}
	return b.region.mem.release()
}

func (k *Kernel) CreateSharedBuffer(flags uint32, numBytes uint64) (system.MojoHandle, system.Status) {
	if flags != 0 {
		return system.HandleInvalid, system.ResultUnimplemented.Status()
	}
	if numBytes == 0 {
		return system.HandleInvalid, system.ResultInvalidArgument.Status()
	}
	if numBytes > k.cfg.MaxSharedBufferBytes {
		return system.HandleInvalid, system.ResultResourceExhausted.Status()
	}
	mem, err := newMemory(numBytes)
	if err != nil {
		glog.Errorf("memkernel: allocating %d byte shared buffer: %v", numBytes, err)
		return system.HandleInvalid, system.ResultResourceExhausted.Status()
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	h, ok := k.installLocked(&bufferHandle{region: &region{numBytes: numBytes, refs: 1, mem: mem}})
	if !ok {
		if err := mem.release(); err != nil {
			glog.Warningf("memkernel: releasing shared buffer: %v", err)
		}
		return system.HandleInvalid, system.ResultResourceExhausted.Status()
	}
	return h, system.ResultOK.Status()
}

func (k *Kernel) DuplicateBufferHandle(h system.MojoHandle, flags uint32) (system.MojoHandle, system.Status) {
	k.mu.Lock()
	defer k.mu.Unlock()
	b, ok := lookup[*bufferHandle](k, h)
	if !ok {
		return system.HandleInvalid, system.ResultInvalidArgument.Status()
	}
	if flags != 0 {
		return system.HandleInvalid, system.ResultUnimplemented.Status()
	}
	dup, ok := k.installLocked(&bufferHandle{region: b.region})
	if !ok {
		return system.HandleInvalid, system.ResultResourceExhausted.Status()
	}
	b.region.refs++
	return dup, system.ResultOK.Status()
}

func (k *Kernel) GetBufferInformation(h system.MojoHandle) (uint64, system.Status) {
	k.mu.Lock()
	defer k.mu.Unlock()
	b, ok := lookup[*bufferHandle](k, h)
	if !ok {
		return 0, system.ResultInvalidArgument.Status()
	}
	return b.region.numBytes, system.ResultOK.Status()
}

func (k *Kernel) MapBuffer(h system.MojoHandle, offset, numBytes uint64, flags uint32) ([]byte, system.Status) {
	k.mu.Lock()
	defer k.mu.Unlock()
	b, ok := lookup[*bufferHandle](k, h)
	if !ok {
		return nil, system.ResultInvalidArgument.Status()
	}
	if flags != 0 {
		return nil, system.ResultUnimplemented.Status()
	}
	size := b.region.numBytes
	if numBytes == 0 || offset > size || numBytes > size-offset {
		return nil, system.ResultInvalidArgument.Status()
	}
	view, span, err := b.region.mem.mapRange(offset, numBytes)
	if err != nil {
		glog.Errorf("memkernel: mapping %d bytes at offset %d: %v", numBytes, offset, err)
		return nil, system.ResultResourceExhausted.Status()
	}
	key := unsafe.SliceData(view)
	k.mappings[key] = append(k.mappings[key], mapping{view: view, span: span, mem: b.region.mem})
	return view, system.ResultOK.Status()
}

func (k *Kernel) UnmapBuffer(view []byte) system.Status {
	k.mu.Lock()
	defer k.mu.Unlock()
	key := unsafe.SliceData(view)
	ms := k.mappings[key]
	for i, m := range ms {
		if len(m.view) != len(view) {
			continue
		}
		if rest := append(ms[:i:i], ms[i+1:]...); len(rest) > 0 {
			k.mappings[key] = rest
		} else {
			delete(k.mappings, key)
		}
		if err := m.mem.unmap(m.span); err != nil {
			glog.Warningf("memkernel: unmapping %d bytes: %v", len(view), err)
			return system.ResultInternal.Status()
		}
		return system.ResultOK.Status()
	}
	return system.ResultInvalidArgument.Status()
}
