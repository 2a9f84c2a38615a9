// Copyright 2021 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package clock

import (
	"context"
	"testing"
	"time"
)

func TestFromContext(t *testing.T) {
	t.Run("real time", func(t *testing.T) {
		if _, ok := FromContext(context.Background()).(realClock); !ok {
			t.Errorf("FromContext(Background) = %T, want realClock", FromContext(context.Background()))
		}
	})

	t.Run("faked time", func(t *testing.T) {
		fakeClock := NewFakeClock()
		startTime := fakeClock.Now()
		ctx := NewContext(context.Background(), fakeClock)

		c := FromContext(ctx)
		time.Sleep(10 * time.Nanosecond)
		// After sleeping, the time should NOT be any later because it's faked.
		if now := c.Now(); !now.Equal(startTime) {
			t.Fatalf("Wrong time from Now(): expected %q, got %q", startTime, now)
		}

		diff := time.Minute
		fakeClock.Advance(diff)
		if now, want := c.Now(), startTime.Add(diff); !now.Equal(want) {
			t.Fatalf("Wrong time from Now(): expected %q, got %q", want, now)
		}
	})
}

func TestFakeClockTimers(t *testing.T) {
	c := NewFakeClock()
	short := c.After(time.Second)
	long := c.After(time.Minute)
	<-c.AfterCalledChan()

	if got := c.Pending(); got != 2 {
		t.Fatalf("Pending() = %d, want 2", got)
	}

	c.Advance(500 * time.Millisecond)
	select {
	case <-short:
		t.Fatal("short timer fired before its deadline")
	default:
	}

	c.Advance(time.Second)
	select {
	case <-short:
	default:
		t.Fatal("short timer did not fire after its deadline")
	}
	select {
	case <-long:
		t.Fatal("long timer fired early")
	default:
	}

	c.Advance(time.Hour)
	<-long
	if got := c.Pending(); got != 0 {
		t.Errorf("Pending() = %d after all timers fired, want 0", got)
	}
}

func TestFakeClockNonPositiveDuration(t *testing.T) {
	c := NewFakeClock()
	select {
	case <-c.After(0):
	default:
		t.Fatal("After(0) did not fire immediately")
	}
}

func TestFakeClockTimerStop(t *testing.T) {
	c := NewFakeClock()
	timer := c.NewTimer(time.Minute)
	if !timer.Stop() {
		t.Error("Stop() of a pending timer = false")
	}
	if got := c.Pending(); got != 0 {
		t.Errorf("Pending() after Stop = %d, want 0", got)
	}
	if timer.Stop() {
		t.Error("second Stop() = true")
	}
	c.Advance(time.Hour)
	select {
	case <-timer.C():
		t.Error("stopped timer fired")
	default:
	}
}
