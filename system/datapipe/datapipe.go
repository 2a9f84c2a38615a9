// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package datapipe wraps the kernel's data pipes: unidirectional byte
// streams with a producer end and a consumer end.
package datapipe

import (
	"math"

	"go.fuchsia.dev/mojo/system"
)

// CreateFlags modify Create.
type CreateFlags uint32

const CreateNone CreateFlags = 0

// WriteFlags modify Producer.Write.
type WriteFlags uint32

const (
	WriteNone WriteFlags = 0
	// WriteAllOrNone fails the write with ResultOutOfRange, writing
	// nothing, unless all of it fits.
	WriteAllOrNone WriteFlags = 1 << 0
)

// ReadFlags modify Consumer.Read and Consumer.Discard.
type ReadFlags uint32

const (
	ReadNone ReadFlags = 0
	// ReadAllOrNone fails with ResultOutOfRange, consuming nothing, unless
	// the full amount is available.
	ReadAllOrNone ReadFlags = 1 << 0
	// ReadPeek copies data without consuming it. It has no effect on
	// Discard.
	ReadPeek ReadFlags = 1 << 3
)

// Producer is the writing end of a data pipe.
type Producer struct {
	*system.UntypedHandle
}

// Consumer is the reading end of a data pipe.
type Consumer struct {
	*system.UntypedHandle
}

// ProducerFromUntyped moves ownership of h into a Producer. h must be a data
// pipe producer handle; this is not checked.
func ProducerFromUntyped(h *system.UntypedHandle) *Producer {
	return &Producer{system.Acquire(h.Release())}
}

// ConsumerFromUntyped moves ownership of h into a Consumer. h must be a data
// pipe consumer handle; this is not checked.
func ConsumerFromUntyped(h *system.UntypedHandle) *Consumer {
	return &Consumer{system.Acquire(h.Release())}
}

// AsUntyped moves ownership of p into an untyped handle.
func (p *Producer) AsUntyped() *system.UntypedHandle {
	return system.Acquire(p.Release())
}

// AsUntyped moves ownership of c into an untyped handle.
func (c *Consumer) AsUntyped() *system.UntypedHandle {
	return system.Acquire(c.Release())
}

// Create makes a new data pipe transferring elements of elementNumBytes
// bytes, buffering up to capacityNumBytes. Zero selects the kernel default
// for either size.
func Create(flags CreateFlags, elementNumBytes, capacityNumBytes uint32) (*Producer, *Consumer, error) {
	p, c, s := system.CurrentKernel().CreateDataPipe(uint32(flags), elementNumBytes, capacityNumBytes)
	if err := s.Result().Err("create data pipe"); err != nil {
		return nil, nil, err
	}
	return &Producer{system.Acquire(p)}, &Consumer{system.Acquire(c)}, nil
}

// Write copies as much of data as fits into the pipe and returns the number
// of bytes written. ResultShouldWait means the pipe is full.
func (p *Producer) Write(data []byte, flags WriteFlags) (int, error) {
	n, s := system.CurrentKernel().WriteData(p.Raw(), data, uint32(flags))
	if err := s.Result().Err("write data"); err != nil {
		return 0, err
	}
	return int(n), nil
}

// Read copies up to len(data) bytes out of the pipe and returns the number
// read. ResultShouldWait means the pipe is empty; ResultFailedPrecondition
// means it is empty and the producer is gone.
func (c *Consumer) Read(data []byte, flags ReadFlags) (int, error) {
	n, s := system.CurrentKernel().ReadData(c.Raw(), data, uint32(flags))
	if err := s.Result().Err("read data"); err != nil {
		return 0, err
	}
	return int(n), nil
}

// Discard drops up to numBytes bytes from the pipe and returns how many were
// dropped.
func (c *Consumer) Discard(numBytes uint32, flags ReadFlags) (int, error) {
	n, s := system.CurrentKernel().DiscardData(c.Raw(), numBytes, uint32(flags&^ReadPeek))
	if err := s.Result().Err("discard data"); err != nil {
		return 0, err
	}
	return int(n), nil
}

// BeginWrite starts a two-phase write and returns the free space the caller
// may fill in place. The space is valid until EndWrite, which must follow
// before any other write on p. ResultBusy means a two-phase write is already
// pending.
func (p *Producer) BeginWrite() ([]byte, error) {
	buf, s := system.CurrentKernel().BeginWriteData(p.Raw(), 0)
	if err := s.Result().Err("begin write data"); err != nil {
		return nil, err
	}
	return buf, nil
}

// EndWrite completes a two-phase write, committing the first numBytes bytes
// of the span from BeginWrite.
func (p *Producer) EndWrite(numBytes int) error {
	if numBytes < 0 || int64(numBytes) > math.MaxUint32 {
		return system.ResultInvalidArgument.Err("end write data")
	}
	return system.CurrentKernel().EndWriteData(p.Raw(), uint32(numBytes)).Result().Err("end write data")
}

// BeginRead starts a two-phase read and returns buffered data in place. The
// slice is valid until EndRead and must not be modified.
func (c *Consumer) BeginRead() ([]byte, error) {
	buf, s := system.CurrentKernel().BeginReadData(c.Raw(), 0)
	if err := s.Result().Err("begin read data"); err != nil {
		return nil, err
	}
	return buf, nil
}

// EndRead completes a two-phase read, consuming the first numBytes bytes of
// the span from BeginRead.
func (c *Consumer) EndRead(numBytes int) error {
	if numBytes < 0 || int64(numBytes) > math.MaxUint32 {
		return system.ResultInvalidArgument.Err("end read data")
	}
	return system.CurrentKernel().EndReadData(c.Raw(), uint32(numBytes)).Result().Err("end read data")
}

// Query returns the number of bytes available to read.
func (c *Consumer) Query() (int, error) {
	n, s := system.CurrentKernel().QueryData(c.Raw())
	if err := s.Result().Err("query data"); err != nil {
		return 0, err
	}
	return int(n), nil
}

// SetReadThreshold sets the number of buffered bytes at which the consumer
// raises system.SignalReadThreshold. Zero restores the default of one
// element.
func (c *Consumer) SetReadThreshold(numBytes uint32) error {
	return system.CurrentKernel().SetDataPipeConsumerReadThreshold(c.Raw(), numBytes).Result().Err("set read threshold")
}

// ReadThreshold returns the threshold set by SetReadThreshold.
func (c *Consumer) ReadThreshold() (uint32, error) {
	n, s := system.CurrentKernel().GetDataPipeConsumerReadThreshold(c.Raw())
	return n, s.Result().Err("get read threshold")
}
