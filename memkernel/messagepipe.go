// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package memkernel

import (
	"github.com/eapache/queue"
	"go.uber.org/multierr"

	"go.fuchsia.dev/mojo/system"
)

const readMayDiscard = 1 << 0

type message struct {
	bytes   []byte
	handles []object
}

func (m *message) close(k *Kernel) error {
	var err error
	for _, obj := range m.handles {
		err = multierr.Append(err, obj.close(k))
	}
	m.handles = nil
	return err
}

// endpoint is one end of a message pipe. Messages written to an endpoint are
// queued on its peer.
type endpoint struct {
	base
	incoming *queue.Queue
	peer     *endpoint
}

func (e *endpoint) peerOpen() bool {
	return e.peer != nil && !e.peer.closed
}

func (e *endpoint) state() system.SignalsState {
	var st system.SignalsState
	pending := e.incoming.Length() > 0
	if pending {
		st.Satisfied |= system.SignalReadable
	}
	if e.peerOpen() {
		st.Satisfied |= system.SignalWritable
		st.Satisfiable = system.SignalReadable | system.SignalWritable | system.SignalPeerClosed
		return st
	}
	st.Satisfied |= system.SignalPeerClosed
	st.Satisfiable = system.SignalPeerClosed
	if pending {
		st.Satisfiable |= system.SignalReadable
	}
	return st
}

func (e *endpoint) close(k *Kernel) error {
	e.closed = true
	var err error
	for e.incoming.Length() > 0 {
		err = multierr.Append(err, e.incoming.Remove().(*message).close(k))
	}
	return err
}

func (k *Kernel) CreateMessagePipe(flags uint32) (system.MojoHandle, system.MojoHandle, system.Status) {
	if flags != 0 {
		return system.HandleInvalid, system.HandleInvalid, system.ResultUnimplemented.Status()
	}
	a := &endpoint{incoming: queue.New()}
	b := &endpoint{incoming: queue.New(), peer: a}
	a.peer = b

	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.handles)+2 > k.cfg.MaxHandles {
		return system.HandleInvalid, system.HandleInvalid, system.ResultResourceExhausted.Status()
	}
	h0, _ := k.installLocked(a)
	h1, _ := k.installLocked(b)
	return h0, h1, system.ResultOK.Status()
}

func (k *Kernel) WriteMessage(h system.MojoHandle, bytes []byte, handles []system.MojoHandle, flags uint32) system.Status {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := lookup[*endpoint](k, h)
	if !ok {
		return system.ResultInvalidArgument.Status()
	}
	if flags != 0 {
		return system.ResultUnimplemented.Status()
	}
	if uint64(len(bytes)) > uint64(k.cfg.MaxMessageBytes) || uint64(len(handles)) > uint64(k.cfg.MaxMessageHandles) {
		return system.ResultInvalidArgument.Status()
	}
	seen := make(map[system.MojoHandle]bool, len(handles))
	for _, th := range handles {
		if th == h || seen[th] {
			return system.ResultInvalidArgument.Status()
		}
		if _, ok := k.handles[th]; !ok {
			return system.ResultInvalidArgument.Status()
		}
		seen[th] = true
	}
	if !e.peerOpen() {
		return system.ResultFailedPrecondition.Status()
	}

	m := &message{bytes: append([]byte(nil), bytes...)}
	for _, th := range handles {
		m.handles = append(m.handles, k.handles[th])
		delete(k.handles, th)
	}
	e.peer.incoming.Add(m)
	k.notifyLocked()
	return system.ResultOK.Status()
}

func (k *Kernel) ReadMessage(h system.MojoHandle, bytes []byte, handles []system.MojoHandle, flags uint32) (uint32, uint32, system.Status) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := lookup[*endpoint](k, h)
	if !ok {
		return 0, 0, system.ResultInvalidArgument.Status()
	}
	if flags&^readMayDiscard != 0 {
		return 0, 0, system.ResultUnimplemented.Status()
	}
	if e.incoming.Length() == 0 {
		if !e.peerOpen() {
			return 0, 0, system.ResultFailedPrecondition.Status()
		}
		return 0, 0, system.ResultShouldWait.Status()
	}

	m := e.incoming.Peek().(*message)
	numBytes, numHandles := uint32(len(m.bytes)), uint32(len(m.handles))
	if len(m.bytes) > len(bytes) || len(m.handles) > len(handles) {
		if flags&readMayDiscard != 0 {
			e.incoming.Remove()
			if err := m.close(k); err != nil {
				return numBytes, numHandles, system.ResultInternal.Status()
			}
			k.notifyLocked()
		}
		return numBytes, numHandles, system.ResultResourceExhausted.Status()
	}

	e.incoming.Remove()
	copy(bytes, m.bytes)
	for i, obj := range m.handles {
		raw := nextHandle()
		k.handles[raw] = obj
		handles[i] = raw
	}
	k.notifyLocked()
	return numBytes, numHandles, system.ResultOK.Status()
}
