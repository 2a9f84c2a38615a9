// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package memkernel

import "go.fuchsia.dev/mojo/system"

const (
	writeAllOrNone = 1 << 0
	readAllOrNone  = 1 << 0
	readPeek       = 1 << 3
)

// ring is the byte buffer shared by the two ends of a data pipe. Its size
// and every transfer are multiples of elementSize.
type ring struct {
	elementSize uint32
	buf         []byte
	start, size int
	threshold   uint32

	// writing and reading hold the length of the span handed out by an
	// unfinished two-phase write or read, or -1.
	writing, reading int

	producerClosed, consumerClosed bool
}

func (r *ring) free() int { return len(r.buf) - r.size }

func (r *ring) write(p []byte) {
	end := (r.start + r.size) % len(r.buf)
	n := copy(r.buf[end:], p)
	copy(r.buf, p[n:])
	r.size += len(p)
}

func (r *ring) peek(p []byte) {
	n := copy(p, r.buf[r.start:min(r.start+len(p), len(r.buf))])
	copy(p[n:], r.buf)
}

func (r *ring) discard(n int) {
	r.start = (r.start + n) % len(r.buf)
	r.size -= n
	if r.size == 0 && r.writing < 0 {
		r.start = 0
	}
}

// writeSpan is the free space following the buffered data, up to the end of
// the buffer.
func (r *ring) writeSpan() []byte {
	end := (r.start + r.size) % len(r.buf)
	n := min(r.free(), len(r.buf)-end)
	return r.buf[end : end+n : end+n]
}

// readSpan is the buffered data from start, up to the end of the buffer.
func (r *ring) readSpan() []byte {
	n := min(r.size, len(r.buf)-r.start)
	return r.buf[r.start : r.start+n : r.start+n]
}

func (r *ring) effectiveThreshold() int {
	if r.threshold == 0 {
		return int(r.elementSize)
	}
	return int(r.threshold)
}

type producer struct {
	base
	ring *ring
}

func (p *producer) state() system.SignalsState {
	if p.ring.consumerClosed {
		return system.SignalsState{
			Satisfied:   system.SignalPeerClosed,
			Satisfiable: system.SignalPeerClosed,
		}
	}
	var st system.SignalsState
	if p.ring.free() > 0 {
		st.Satisfied |= system.SignalWritable
	}
	st.Satisfiable = system.SignalWritable | system.SignalPeerClosed
	return st
}

func (p *producer) close(*Kernel) error {
	p.closed = true
	p.ring.producerClosed = true
	return nil
}

type consumer struct {
	base
	ring *ring
}

func (c *consumer) state() system.SignalsState {
	var st system.SignalsState
	r := c.ring
	if r.size > 0 {
		st.Satisfied |= system.SignalReadable
	}
	if r.size >= r.effectiveThreshold() {
		st.Satisfied |= system.SignalReadThreshold
	}
	if !r.producerClosed {
		st.Satisfiable = system.SignalReadable | system.SignalPeerClosed | system.SignalReadThreshold
		return st
	}
	st.Satisfied |= system.SignalPeerClosed
	st.Satisfiable = st.Satisfied
	return st
}

func (c *consumer) close(*Kernel) error {
	c.closed = true
	c.ring.consumerClosed = true
	c.ring.buf = nil
	c.ring.start, c.ring.size = 0, 0
	return nil
}

func (k *Kernel) CreateDataPipe(flags, elementNumBytes, capacityNumBytes uint32) (system.MojoHandle, system.MojoHandle, system.Status) {
	if flags != 0 {
		return system.HandleInvalid, system.HandleInvalid, system.ResultUnimplemented.Status()
	}
	if elementNumBytes == 0 {
		elementNumBytes = 1
	}
	if capacityNumBytes == 0 {
		capacityNumBytes = max(k.cfg.DefaultDataPipeCapacity/elementNumBytes, 1) * elementNumBytes
	}
	if capacityNumBytes%elementNumBytes != 0 {
		return system.HandleInvalid, system.HandleInvalid, system.ResultInvalidArgument.Status()
	}
	if capacityNumBytes > k.cfg.MaxDataPipeCapacity {
		return system.HandleInvalid, system.HandleInvalid, system.ResultResourceExhausted.Status()
	}

	r := &ring{elementSize: elementNumBytes, buf: make([]byte, capacityNumBytes), writing: -1, reading: -1}
	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.handles)+2 > k.cfg.MaxHandles {
		return system.HandleInvalid, system.HandleInvalid, system.ResultResourceExhausted.Status()
	}
	p, _ := k.installLocked(&producer{ring: r})
	c, _ := k.installLocked(&consumer{ring: r})
	return p, c, system.ResultOK.Status()
}

func (k *Kernel) WriteData(h system.MojoHandle, data []byte, flags uint32) (uint32, system.Status) {
	k.mu.Lock()
	defer k.mu.Unlock()
	p, ok := lookup[*producer](k, h)
	if !ok {
		return 0, system.ResultInvalidArgument.Status()
	}
	if flags&^writeAllOrNone != 0 {
		return 0, system.ResultUnimplemented.Status()
	}
	r := p.ring
	if uint32(len(data))%r.elementSize != 0 {
		return 0, system.ResultInvalidArgument.Status()
	}
	if r.consumerClosed {
		return 0, system.ResultFailedPrecondition.Status()
	}
	if r.writing >= 0 {
		return 0, system.ResultBusy.Status()
	}
	if len(data) == 0 {
		return 0, system.ResultOK.Status()
	}
	free := r.free()
	if flags&writeAllOrNone != 0 && len(data) > free {
		return 0, system.ResultOutOfRange.Status()
	}
	if free == 0 {
		return 0, system.ResultShouldWait.Status()
	}
	n := min(len(data), free)
	r.write(data[:n])
	k.notifyLocked()
	return uint32(n), system.ResultOK.Status()
}

// take implements ReadData and DiscardData; out is nil for a discard.
func (k *Kernel) take(h system.MojoHandle, out []byte, numBytes uint32, flags uint32, peek bool) (uint32, system.Status) {
	c, ok := lookup[*consumer](k, h)
	if !ok {
		return 0, system.ResultInvalidArgument.Status()
	}
	r := c.ring
	if numBytes%r.elementSize != 0 {
		return 0, system.ResultInvalidArgument.Status()
	}
	if r.reading >= 0 {
		return 0, system.ResultBusy.Status()
	}
	if r.size == 0 {
		if r.producerClosed {
			return 0, system.ResultFailedPrecondition.Status()
		}
		if numBytes > 0 {
			return 0, system.ResultShouldWait.Status()
		}
	}
	if flags&readAllOrNone != 0 && int(numBytes) > r.size {
		if r.producerClosed {
			return 0, system.ResultFailedPrecondition.Status()
		}
		return 0, system.ResultOutOfRange.Status()
	}
	n := min(int(numBytes), r.size)
	if out != nil {
		r.peek(out[:n])
	}
	if !peek && n > 0 {
		r.discard(n)
		k.notifyLocked()
	}
	return uint32(n), system.ResultOK.Status()
}

func (k *Kernel) ReadData(h system.MojoHandle, data []byte, flags uint32) (uint32, system.Status) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if flags&^(readAllOrNone|readPeek) != 0 {
		if _, ok := lookup[*consumer](k, h); !ok {
			return 0, system.ResultInvalidArgument.Status()
		}
		return 0, system.ResultUnimplemented.Status()
	}
	if data == nil {
		data = []byte{}
	}
	return k.take(h, data, uint32(len(data)), flags, flags&readPeek != 0)
}

func (k *Kernel) DiscardData(h system.MojoHandle, numBytes, flags uint32) (uint32, system.Status) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if flags&^readAllOrNone != 0 {
		if _, ok := lookup[*consumer](k, h); !ok {
			return 0, system.ResultInvalidArgument.Status()
		}
		return 0, system.ResultUnimplemented.Status()
	}
	return k.take(h, nil, numBytes, flags, false)
}

func (k *Kernel) BeginWriteData(h system.MojoHandle, flags uint32) ([]byte, system.Status) {
	k.mu.Lock()
	defer k.mu.Unlock()
	p, ok := lookup[*producer](k, h)
	if !ok {
		return nil, system.ResultInvalidArgument.Status()
	}
	if flags != 0 {
		return nil, system.ResultUnimplemented.Status()
	}
	r := p.ring
	switch {
	case r.consumerClosed:
		return nil, system.ResultFailedPrecondition.Status()
	case r.writing >= 0:
		return nil, system.ResultBusy.Status()
	case r.free() == 0:
		return nil, system.ResultShouldWait.Status()
	}
	span := r.writeSpan()
	r.writing = len(span)
	return span, system.ResultOK.Status()
}

// EndWriteData commits numBytes of the span from BeginWriteData. The
// two-phase write ends even when numBytes is rejected.
func (k *Kernel) EndWriteData(h system.MojoHandle, numBytes uint32) system.Status {
	k.mu.Lock()
	defer k.mu.Unlock()
	p, ok := lookup[*producer](k, h)
	if !ok {
		return system.ResultInvalidArgument.Status()
	}
	r := p.ring
	if r.writing < 0 {
		return system.ResultFailedPrecondition.Status()
	}
	span := r.writing
	r.writing = -1
	if int64(numBytes) > int64(span) || numBytes%r.elementSize != 0 {
		return system.ResultInvalidArgument.Status()
	}
	if r.consumerClosed || numBytes == 0 {
		return system.ResultOK.Status()
	}
	r.size += int(numBytes)
	k.notifyLocked()
	return system.ResultOK.Status()
}

func (k *Kernel) BeginReadData(h system.MojoHandle, flags uint32) ([]byte, system.Status) {
	k.mu.Lock()
	defer k.mu.Unlock()
	c, ok := lookup[*consumer](k, h)
	if !ok {
		return nil, system.ResultInvalidArgument.Status()
	}
	if flags != 0 {
		return nil, system.ResultUnimplemented.Status()
	}
	r := c.ring
	switch {
	case r.reading >= 0:
		return nil, system.ResultBusy.Status()
	case r.size == 0 && r.producerClosed:
		return nil, system.ResultFailedPrecondition.Status()
	case r.size == 0:
		return nil, system.ResultShouldWait.Status()
	}
	span := r.readSpan()
	r.reading = len(span)
	return span, system.ResultOK.Status()
}

// EndReadData consumes numBytes of the span from BeginReadData. The
// two-phase read ends even when numBytes is rejected.
func (k *Kernel) EndReadData(h system.MojoHandle, numBytes uint32) system.Status {
	k.mu.Lock()
	defer k.mu.Unlock()
	c, ok := lookup[*consumer](k, h)
	if !ok {
		return system.ResultInvalidArgument.Status()
	}
	r := c.ring
	if r.reading < 0 {
		return system.ResultFailedPrecondition.Status()
	}
	span := r.reading
	r.reading = -1
	if int64(numBytes) > int64(span) || numBytes%r.elementSize != 0 {
		return system.ResultInvalidArgument.Status()
	}
	if numBytes > 0 {
		r.discard(int(numBytes))
		k.notifyLocked()
	}
	return system.ResultOK.Status()
}

func (k *Kernel) QueryData(h system.MojoHandle) (uint32, system.Status) {
	k.mu.Lock()
	defer k.mu.Unlock()
	c, ok := lookup[*consumer](k, h)
	if !ok {
		return 0, system.ResultInvalidArgument.Status()
	}
	return uint32(c.ring.size), system.ResultOK.Status()
}

func (k *Kernel) SetDataPipeConsumerReadThreshold(h system.MojoHandle, threshold uint32) system.Status {
	k.mu.Lock()
	defer k.mu.Unlock()
	c, ok := lookup[*consumer](k, h)
	if !ok {
		return system.ResultInvalidArgument.Status()
	}
	if threshold%c.ring.elementSize != 0 || int(threshold) > len(c.ring.buf) {
		return system.ResultInvalidArgument.Status()
	}
	c.ring.threshold = threshold
	k.notifyLocked()
	return system.ResultOK.Status()
}

func (k *Kernel) GetDataPipeConsumerReadThreshold(h system.MojoHandle) (uint32, system.Status) {
	k.mu.Lock()
	defer k.mu.Unlock()
	c, ok := lookup[*consumer](k, h)
	if !ok {
		return 0, system.ResultInvalidArgument.Status()
	}
	return c.ring.threshold, system.ResultOK.Status()
}
