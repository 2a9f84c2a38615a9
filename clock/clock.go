// Copyright 2021 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package clock

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Clock is the time source consulted by kernel deadlines.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
}

// Timer delivers the time on C once its duration has elapsed, unless it is
// stopped first.
type Timer interface {
	C() <-chan time.Time
	// Stop prevents the timer from firing and releases it. It reports
	// whether the timer was still pending.
	Stop() bool
}

type clockKeyType string

// clockKey is the key we use to associate a clock with a Context.
const clockKey = clockKeyType("clock")

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTimer(d time.Duration) Timer {
	return realTimer{time.NewTimer(d)}
}

type realTimer struct{ t *time.Timer }

func (t realTimer) C() <-chan time.Time { return t.t.C }
func (t realTimer) Stop() bool          { return t.t.Stop() }

// Real returns the system clock.
func Real() Clock {
	return realClock{}
}

// FromContext returns the clock associated with ctx, or the real clock if
// there is none. Anything that must be testable with mocked time should take
// its clock from here instead of calling time.Now directly.
func FromContext(ctx context.Context) Clock {
	if c, ok := ctx.Value(clockKey).(Clock); ok && c != nil {
		return c
	}
	return realClock{}
}

// NewContext returns a new context with the given clock attached.
//
// This should generally only be used in tests; production code should always
// use the real time.
func NewContext(ctx context.Context, c Clock) context.Context {
	return context.WithValue(ctx, clockKey, c)
}

type timer struct {
	clock   *FakeClock
	endTime time.Time
	ch      chan time.Time
}

func (t *timer) C() <-chan time.Time { return t.ch }

func (t *timer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, p := range c.timers {
		if p == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}
	return false
}

// FakeClock provides support for mocking the current time in tests. It is
// safe for concurrent use, and any number of timers may be pending at once.
type FakeClock struct {
	mu          sync.Mutex
	now         time.Time
	timers      []*timer
	afterCalled chan struct{}
}

func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Now(), afterCalled: make(chan struct{}, 1)}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After returns a channel that receives the fake time once the clock has
// been advanced by at least d.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	return c.NewTimer(d).C()
}

// NewTimer returns a timer that fires once the clock has been advanced by at
// least d. A non-positive d fires immediately.
func (c *FakeClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &timer{c, c.now.Add(d), make(chan time.Time, 1)}
	if d <= 0 {
		t.ch <- c.now
	} else {
		c.timers = append(c.timers, t)
		sort.Slice(c.timers, func(i, j int) bool { return c.timers[i].endTime.Before(c.timers[j].endTime) })
	}
	if len(c.afterCalled) == 0 {
		c.afterCalled <- struct{}{}
	}
	return t
}

// Advance moves the clock forward by d and fires every timer whose end time
// has been reached.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	i := 0
	for ; i < len(c.timers) && !c.timers[i].endTime.After(c.now); i++ {
		c.timers[i].ch <- c.now
	}
	c.timers = c.timers[i:]
}

// Pending returns the number of timers that have not fired yet.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// AfterCalledChan returns the channel to wait for the clock's timer to be set from a
// call to After() or NewTimer().
func (c *FakeClock) AfterCalledChan() chan struct{} {
	return c.afterCalled
}
