// Copyright 2017 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package datapipe_test

import (
	"testing"

	"go.fuchsia.dev/mojo/memkernel/memkerneltest"
	"go.fuchsia.dev/mojo/system"
	"go.fuchsia.dev/mojo/system/datapipe"
)

func mustCreate(t *testing.T, elementNumBytes, capacityNumBytes uint32) (*datapipe.Producer, *datapipe.Consumer) {
	t.Helper()
	p, c, err := datapipe.Create(datapipe.CreateNone, elementNumBytes, capacityNumBytes)
	if err != nil {
		t.Fatalf("Create(%d, %d) = %v", elementNumBytes, capacityNumBytes, err)
	}
	t.Cleanup(func() { system.CloseAll(p, c) })
	return p, c
}

func readAll(t *testing.T, c *datapipe.Consumer, size int, flags datapipe.ReadFlags) string {
	t.Helper()
	buf := make([]byte, size)
	n, err := c.Read(buf, flags)
	if err != nil {
		t.Fatalf("Read(%d) = %v", size, err)
	}
	return string(buf[:n])
}

func TestWriteRead(t *testing.T) {
	memkerneltest.Install(t)
	p, c := mustCreate(t, 1, 16)

	if _, err := c.Read(make([]byte, 4), datapipe.ReadNone); system.ResultOf(err) != system.ResultShouldWait {
		t.Fatalf("Read() on empty pipe = %v, want SHOULD_WAIT", err)
	}
	if n, err := p.Write([]byte("hello world"), datapipe.WriteNone); err != nil || n != 11 {
		t.Fatalf("Write() = (%d, %v), want 11 bytes", n, err)
	}
	if _, err := c.Wait(system.SignalReadable, system.DeadlineIndefinite); err != nil {
		t.Fatalf("Wait(READABLE) = %v", err)
	}
	if got := readAll(t, c, 5, datapipe.ReadNone); got != "hello" {
		t.Errorf("Read() = %q, want %q", got, "hello")
	}
	if got := readAll(t, c, 32, datapipe.ReadNone); got != " world" {
		t.Errorf("Read() = %q, want %q", got, " world")
	}
}

func TestAllOrNone(t *testing.T) {
	memkerneltest.Install(t)
	p, c := mustCreate(t, 1, 8)

	if _, err := p.Write([]byte("abcdef"), datapipe.WriteNone); err != nil {
		t.Fatalf("Write() = %v", err)
	}
	if n, err := p.Write([]byte("ghi"), datapipe.WriteAllOrNone); system.ResultOf(err) != system.ResultOutOfRange || n != 0 {
		t.Errorf("Write(all or none) = (%d, %v), want OUT_OF_RANGE", n, err)
	}
	if n, err := p.Write([]byte("ghi"), datapipe.WriteNone); err != nil || n != 2 {
		t.Errorf("Write() partial = (%d, %v), want 2 bytes", n, err)
	}

	if n, err := c.Read(make([]byte, 10), datapipe.ReadAllOrNone); system.ResultOf(err) != system.ResultOutOfRange || n != 0 {
		t.Errorf("Read(all or none) = (%d, %v), want OUT_OF_RANGE", n, err)
	}
	if got, err := c.Query(); err != nil || got != 8 {
		t.Errorf("Query() after failed all-or-none read = (%d, %v), want 8", got, err)
	}
	if got := readAll(t, c, 8, datapipe.ReadAllOrNone); got != "abcdefgh" {
		t.Errorf("Read(all or none) = %q, want %q", got, "abcdefgh")
	}
}

func TestPeekQueryDiscard(t *testing.T) {
	memkerneltest.Install(t)
	p, c := mustCreate(t, 1, 0)

	if _, err := p.Write([]byte("0123456789"), datapipe.WriteNone); err != nil {
		t.Fatalf("Write() = %v", err)
	}
	if got := readAll(t, c, 4, datapipe.ReadPeek); got != "0123" {
		t.Errorf("Read(peek) = %q, want %q", got, "0123")
	}
	if n, err := c.Query(); err != nil || n != 10 {
		t.Errorf("Query() after peek = (%d, %v), want 10", n, err)
	}
	if n, err := c.Discard(3, datapipe.ReadPeek); err != nil || n != 3 {
		t.Errorf("Discard(3) = (%d, %v), want 3", n, err)
	}
	if n, err := c.Discard(100, datapipe.ReadAllOrNone); system.ResultOf(err) != system.ResultOutOfRange {
		t.Errorf("Discard(100, all or none) = (%d, %v), want OUT_OF_RANGE", n, err)
	}
	if got := readAll(t, c, 16, datapipe.ReadNone); got != "3456789" {
		t.Errorf("Read() = %q, want %q", got, "3456789")
	}
}

func TestElementSize(t *testing.T) {
	memkerneltest.Install(t)
	if _, _, err := datapipe.Create(datapipe.CreateNone, 4, 10); system.ResultOf(err) != system.ResultInvalidArgument {
		t.Errorf("Create(4, 10) = %v, want INVALID_ARGUMENT", err)
	}
	p, c := mustCreate(t, 4, 16)
	if _, err := p.Write([]byte("abc"), datapipe.WriteNone); system.ResultOf(err) != system.ResultInvalidArgument {
		t.Errorf("Write() of a partial element = %v, want INVALID_ARGUMENT", err)
	}
	if _, err := p.Write([]byte("abcd"), datapipe.WriteNone); err != nil {
		t.Fatalf("Write() = %v", err)
	}
	if _, err := c.Read(make([]byte, 2), datapipe.ReadNone); system.ResultOf(err) != system.ResultInvalidArgument {
		t.Errorf("Read() of a partial element = %v, want INVALID_ARGUMENT", err)
	}
}

func TestReadThreshold(t *testing.T) {
	memkerneltest.Install(t)
	p, c := mustCreate(t, 1, 16)

	if got, err := c.ReadThreshold(); err != nil || got != 0 {
		t.Fatalf("ReadThreshold() = (%d, %v), want 0", got, err)
	}
	if err := c.SetReadThreshold(4); err != nil {
		t.Fatalf("SetReadThreshold(4) = %v", err)
	}
	if got, _ := c.ReadThreshold(); got != 4 {
		t.Errorf("ReadThreshold() = %d, want 4", got)
	}
	if err := c.SetReadThreshold(32); system.ResultOf(err) != system.ResultInvalidArgument {
		t.Errorf("SetReadThreshold(32) beyond capacity = %v, want INVALID_ARGUMENT", err)
	}

	p.Write([]byte("ab"), datapipe.WriteNone)
	if _, err := c.Wait(system.SignalReadThreshold, system.DeadlineImmediate); system.ResultOf(err) != system.ResultDeadlineExceeded {
		t.Errorf("Wait(READ_THRESHOLD) below threshold = %v, want DEADLINE_EXCEEDED", err)
	}
	p.Write([]byte("cd"), datapipe.WriteNone)
	if _, err := c.Wait(system.SignalReadThreshold, system.DeadlineImmediate); err != nil {
		t.Errorf("Wait(READ_THRESHOLD) at threshold = %v", err)
	}

	if err := c.SetReadThreshold(0); err != nil {
		t.Fatalf("SetReadThreshold(0) = %v", err)
	}
	c.Discard(3, datapipe.ReadNone)
	if _, err := c.Wait(system.SignalReadThreshold, system.DeadlineImmediate); err != nil {
		t.Errorf("Wait(READ_THRESHOLD) with default threshold = %v", err)
	}
}

func TestProducerClosed(t *testing.T) {
	memkerneltest.Install(t)
	p, c := mustCreate(t, 1, 16)
	p.Write([]byte("tail"), datapipe.WriteNone)
	p.Close()

	st, err := c.Wait(system.SignalPeerClosed, system.DeadlineIndefinite)
	if err != nil {
		t.Fatalf("Wait(PEER_CLOSED) = %v", err)
	}
	if !st.Satisfied.Contains(system.SignalReadable) {
		t.Errorf("state = %+v, want READABLE while data remains", st)
	}
	if got := readAll(t, c, 16, datapipe.ReadNone); got != "tail" {
		t.Errorf("Read() = %q, want %q", got, "tail")
	}
	if _, err := c.Read(make([]byte, 1), datapipe.ReadNone); system.ResultOf(err) != system.ResultFailedPrecondition {
		t.Errorf("Read() after drain = %v, want FAILED_PRECONDITION", err)
	}
}

func TestConsumerClosed(t *testing.T) {
	memkerneltest.Install(t)
	p, c := mustCreate(t, 1, 16)
	c.Close()
	if _, err := p.Write([]byte("x"), datapipe.WriteNone); system.ResultOf(err) != system.ResultFailedPrecondition {
		t.Errorf("Write() after consumer closed = %v, want FAILED_PRECONDITION", err)
	}
	if _, err := p.Wait(system.SignalWritable, system.DeadlineIndefinite); system.ResultOf(err) != system.ResultFailedPrecondition {
		t.Errorf("Wait(WRITABLE) after consumer closed = %v, want FAILED_PRECONDITION", err)
	}
}

func TestTwoPhaseReadThreshold(t *testing.T) {
	memkerneltest.Install(t)
	p, c := mustCreate(t, 1, 0)
	if err := c.SetReadThreshold(2); err != nil {
		t.Fatalf("SetReadThreshold(2) = %v", err)
	}
	if _, err := p.Write([]byte("A"), datapipe.WriteNone); err != nil {
		t.Fatalf("Write() = %v", err)
	}

	st, err := c.Wait(system.SignalReadThreshold, system.DeadlineImmediate)
	if system.ResultOf(err) != system.ResultDeadlineExceeded {
		t.Fatalf("Wait(READ_THRESHOLD) with one byte = %v, want DEADLINE_EXCEEDED", err)
	}
	want := system.SignalsState{
		Satisfied:   system.SignalReadable,
		Satisfiable: system.SignalReadable | system.SignalPeerClosed | system.SignalReadThreshold,
	}
	if st != want {
		t.Errorf("state = %+v, want %+v", st, want)
	}

	buf, err := p.BeginWrite()
	if err != nil {
		t.Fatalf("BeginWrite() = %v", err)
	}
	if len(buf) == 0 {
		t.Fatal("BeginWrite() returned an empty span")
	}
	buf[0] = 'B'
	if err := p.EndWrite(1); err != nil {
		t.Fatalf("EndWrite(1) = %v", err)
	}

	st, err = c.Wait(system.SignalReadThreshold, system.DeadlineImmediate)
	if err != nil {
		t.Fatalf("Wait(READ_THRESHOLD) with two bytes = %v", err)
	}
	want.Satisfied = system.SignalReadable | system.SignalReadThreshold
	if st != want {
		t.Errorf("state = %+v, want %+v", st, want)
	}

	if got := readAll(t, c, 1, datapipe.ReadNone); got != "A" {
		t.Errorf("Read() = %q, want %q", got, "A")
	}
	if _, err := c.Wait(system.SignalReadThreshold, system.DeadlineImmediate); system.ResultOf(err) != system.ResultDeadlineExceeded {
		t.Errorf("Wait(READ_THRESHOLD) after read = %v, want DEADLINE_EXCEEDED", err)
	}
	if err := c.SetReadThreshold(0); err != nil {
		t.Fatalf("SetReadThreshold(0) = %v", err)
	}
	if _, err := c.Wait(system.SignalReadThreshold, system.DeadlineImmediate); err != nil {
		t.Errorf("Wait(READ_THRESHOLD) with default threshold = %v", err)
	}

	data, err := c.BeginRead()
	if err != nil {
		t.Fatalf("BeginRead() = %v", err)
	}
	if string(data) != "B" {
		t.Errorf("BeginRead() = %q, want %q", data, "B")
	}
	if err := c.EndRead(1); err != nil {
		t.Fatalf("EndRead(1) = %v", err)
	}
	if _, err := c.Wait(system.SignalReadThreshold, system.DeadlineImmediate); system.ResultOf(err) != system.ResultDeadlineExceeded {
		t.Errorf("Wait(READ_THRESHOLD) on empty pipe = %v, want DEADLINE_EXCEEDED", err)
	}

	p.Close()
	if _, err := c.Wait(system.SignalReadThreshold, system.DeadlineImmediate); system.ResultOf(err) != system.ResultFailedPrecondition {
		t.Errorf("Wait(READ_THRESHOLD) after producer closed = %v, want FAILED_PRECONDITION", err)
	}
}

func TestTwoPhaseBusy(t *testing.T) {
	memkerneltest.Install(t)
	p, c := mustCreate(t, 1, 8)

	buf, err := p.BeginWrite()
	if err != nil {
		t.Fatalf("BeginWrite() = %v", err)
	}
	if _, err := p.BeginWrite(); system.ResultOf(err) != system.ResultBusy {
		t.Errorf("second BeginWrite() = %v, want BUSY", err)
	}
	if _, err := p.Write([]byte("x"), datapipe.WriteNone); system.ResultOf(err) != system.ResultBusy {
		t.Errorf("Write() during two-phase write = %v, want BUSY", err)
	}
	if err := p.EndWrite(len(buf) + 1); system.ResultOf(err) != system.ResultInvalidArgument {
		t.Errorf("EndWrite(%d) = %v, want INVALID_ARGUMENT", len(buf)+1, err)
	}
	if err := p.EndWrite(0); system.ResultOf(err) != system.ResultFailedPrecondition {
		t.Errorf("EndWrite() with no write pending = %v, want FAILED_PRECONDITION", err)
	}

	if _, err := c.BeginRead(); system.ResultOf(err) != system.ResultShouldWait {
		t.Errorf("BeginRead() on empty pipe = %v, want SHOULD_WAIT", err)
	}
	p.Write([]byte("abc"), datapipe.WriteNone)
	if _, err := c.BeginRead(); err != nil {
		t.Fatalf("BeginRead() = %v", err)
	}
	if _, err := c.Read(make([]byte, 1), datapipe.ReadPeek); system.ResultOf(err) != system.ResultBusy {
		t.Errorf("Read() during two-phase read = %v, want BUSY", err)
	}
	if err := c.EndRead(-1); system.ResultOf(err) != system.ResultInvalidArgument {
		t.Errorf("EndRead(-1) = %v, want INVALID_ARGUMENT", err)
	}
	if err := c.EndRead(2); err != nil {
		t.Fatalf("EndRead(2) = %v", err)
	}
	if got := readAll(t, c, 8, datapipe.ReadNone); got != "c" {
		t.Errorf("Read() = %q, want %q", got, "c")
	}
}
