// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build !linux

package memkernel

// heapMemory backs a region with ordinary Go memory. Mappings are subslices
// of it and stay valid for as long as they are referenced.
type heapMemory struct {
	data []byte
}

func newMemory(numBytes uint64) (memory, error) {
	return &heapMemory{data: make([]byte, numBytes)}, nil
}

func (m *heapMemory) mapRange(offset, numBytes uint64) ([]byte, []byte, error) {
	view := m.data[offset : offset+numBytes : offset+numBytes]
	return view, view, nil
}

func (*heapMemory) unmap([]byte) error { return nil }

func (*heapMemory) release() error { return nil }
