// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package messagepipe wraps the kernel's message pipes: bidirectional,
// ordered channels carrying byte payloads plus transferred handles.
package messagepipe

import (
	"fmt"

	"go.fuchsia.dev/mojo/system"
)

// CreateFlags modify Create.
type CreateFlags uint32

const CreateNone CreateFlags = 0

// WriteFlags modify Endpoint.Write.
type WriteFlags uint32

const WriteNone WriteFlags = 0

// ReadFlags modify Endpoint.Read and Endpoint.ReadInto.
type ReadFlags uint32

const (
	ReadNone ReadFlags = 0
	// ReadMayDiscard drops a message that does not fit the supplied buffers
	// instead of leaving it queued.
	ReadMayDiscard ReadFlags = 1 << 0
)

// Endpoint is one end of a message pipe.
type Endpoint struct {
	*system.UntypedHandle
}

// FromUntyped moves ownership of h into a message pipe endpoint. h must have
// been produced as a message pipe endpoint; this is not checked.
func FromUntyped(h *system.UntypedHandle) *Endpoint {
	return &Endpoint{system.Acquire(h.Release())}
}

// AsUntyped moves ownership of e into an untyped handle.
func (e *Endpoint) AsUntyped() *system.UntypedHandle {
	return system.Acquire(e.Release())
}

// Create makes a new message pipe and returns its two connected endpoints.
func Create(flags CreateFlags) (*Endpoint, *Endpoint, error) {
	h0, h1, s := system.CurrentKernel().CreateMessagePipe(uint32(flags))
	if err := s.Result().Err("create message pipe"); err != nil {
		return nil, nil, err
	}
	return &Endpoint{system.Acquire(h0)}, &Endpoint{system.Acquire(h1)}, nil
}

// Write queues a message carrying bytes and handles on the peer endpoint.
//
// On success every handle is transferred to the receiver and left invalid
// here. On failure the handles are untouched and remain owned by the caller.
func (e *Endpoint) Write(bytes []byte, handles []system.Handle, flags WriteFlags) error {
	var raws []system.MojoHandle
	if len(handles) > 0 {
		raws = make([]system.MojoHandle, len(handles))
		for i, h := range handles {
			if h == nil || !h.IsValid() {
				return &system.Error{Result: system.ResultInvalidArgument, Op: fmt.Sprintf("write message: handle %d", i)}
			}
			raws[i] = h.Raw()
		}
	}
	s := system.CurrentKernel().WriteMessage(e.Raw(), bytes, raws, uint32(flags))
	if err := s.Result().Err("write message"); err != nil {
		return err
	}
	for _, h := range handles {
		h.Release()
	}
	return nil
}

// Read dequeues the next message, sized to fit. It fails with
// ResultShouldWait when nothing is queued and with
// ResultFailedPrecondition when nothing is queued and the peer is closed.
func (e *Endpoint) Read(flags ReadFlags) ([]byte, []*system.UntypedHandle, error) {
	k := system.CurrentKernel()
	for {
		// Probe without ReadMayDiscard so the probe itself never drops the
		// message.
		nb, nh, s := k.ReadMessage(e.Raw(), nil, nil, uint32(flags&^ReadMayDiscard))
		switch r := s.Result(); r {
		case system.ResultOK:
			return nil, nil, nil
		case system.ResultResourceExhausted:
		default:
			return nil, nil, r.Err("read message")
		}

		bytes := make([]byte, nb)
		raws := make([]system.MojoHandle, nh)
		nb, nh, s = k.ReadMessage(e.Raw(), bytes, raws, uint32(flags))
		switch r := s.Result(); r {
		case system.ResultOK:
			return bytes[:nb], acquireAll(raws[:nh]), nil
		case system.ResultResourceExhausted:
			// Another reader replaced the head of the queue between the
			// probe and the read; size again.
			continue
		default:
			return nil, nil, r.Err("read message")
		}
	}
}

// ReadInto reads the next message into caller-supplied storage. When the
// message does not fit it fails with ResultResourceExhausted and reports the
// sizes required; with ReadMayDiscard the message is dropped as well.
func (e *Endpoint) ReadInto(bytes []byte, maxHandles int, flags ReadFlags) (n int, handles []*system.UntypedHandle, err error) {
	if maxHandles < 0 {
		return 0, nil, system.ResultInvalidArgument.Err("read message")
	}
	raws := make([]system.MojoHandle, maxHandles)
	nb, nh, s := system.CurrentKernel().ReadMessage(e.Raw(), bytes, raws, uint32(flags))
	if err := s.Result().Err("read message"); err != nil {
		if s.Result() == system.ResultResourceExhausted {
			return int(nb), nil, &TooSmallError{NumBytes: nb, NumHandles: nh, err: err}
		}
		return 0, nil, err
	}
	return int(nb), acquireAll(raws[:nh]), nil
}

// TooSmallError is returned by ReadInto when the next message needs more
// room than was supplied. Its Result is ResultResourceExhausted.
type TooSmallError struct {
	NumBytes   uint32
	NumHandles uint32
	err        error
}

func (e *TooSmallError) Error() string { return e.err.Error() }
func (e *TooSmallError) Unwrap() error { return e.err }

func acquireAll(raws []system.MojoHandle) []*system.UntypedHandle {
	if len(raws) == 0 {
		return nil
	}
	hs := make([]*system.UntypedHandle, len(raws))
	for i, raw := range raws {
		hs[i] = system.Acquire(raw)
	}
	return hs
}
