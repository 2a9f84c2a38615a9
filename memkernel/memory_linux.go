// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build linux

package memkernel

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// memfdMemory backs a region with an anonymous memory file, so that every
// mapping of the buffer aliases the same pages.
type memfdMemory struct {
	fd int
}

func newMemory(numBytes uint64) (memory, error) {
	fd, err := unix.MemfdCreate("mojo-shared-buffer", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("memfd_create: %w", err)
	}
	if err := unix.Ftruncate(fd, int64(numBytes)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ftruncate: %w", err)
	}
	return &memfdMemory{fd: fd}, nil
}

func (m *memfdMemory) mapRange(offset, numBytes uint64) ([]byte, []byte, error) {
	pageSize := uint64(os.Getpagesize())
	aligned := offset &^ (pageSize - 1)
	skip := offset - aligned
	span, err := unix.Mmap(m.fd, int64(aligned), int(skip+numBytes), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, fmt.Errorf("mmap: %w", err)
	}
	return span[skip : skip+numBytes : skip+numBytes], span, nil
}

func (*memfdMemory) unmap(span []byte) error {
	return unix.Munmap(span)
}

func (m *memfdMemory) release() error {
	return unix.Close(m.fd)
}
