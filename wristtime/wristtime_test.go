// Copyright (c) The WristOS Authors
// SPDX-License-Identifier: BSD-3-Clause

package wristtime

import (
	"context"
	"testing"
	"testing/synctest"
	"time"
)

// fixedCounter is a Counter advanced by hand.
type fixedCounter struct {
	d time.Duration
}

func (c *fixedCounter) Elapsed() time.Duration { return c.d }

func TestNowDefaultsToZeroOffset(t *testing.T) {
	ctr := &fixedCounter{d: 90 * time.Second}
	c := New(ctr)

	if c.OffsetKnown() {
		t.Error("OffsetKnown before any sync")
	}
	if got := c.Now(); got != 90*time.Second {
		t.Errorf("Now = %v, want 90s", got)
	}
}

func TestSetOffset(t *testing.T) {
	ctr := &fixedCounter{d: 10 * time.Second}
	c := New(ctr)

	c.SetOffset(time.Hour)
	if !c.OffsetKnown() {
		t.Error("OffsetKnown false after SetOffset")
	}
	if got := c.Now(); got != time.Hour+10*time.Second {
		t.Errorf("Now = %v, want 1h10s", got)
	}

	// Later corrections overwrite.
	c.SetOffset(2 * time.Hour)
	if got := c.Now(); got != 2*time.Hour+10*time.Second {
		t.Errorf("Now after overwrite = %v, want 2h10s", got)
	}
}

func TestSyncTo(t *testing.T) {
	ctr := &fixedCounter{d: 42 * time.Second}
	c := New(ctr)

	wall := 1700000000 * time.Second
	c.SyncTo(wall)
	if got := c.Now(); got != wall {
		t.Errorf("Now after SyncTo = %v, want %v", got, wall)
	}
}

func TestMinutesTicks(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		c := New(NewSystemCounter())
		mins := c.Minutes(ctx)

		for i := range 3 {
			time.Sleep(MinutePeriod)
			synctest.Wait() // producer is now blocked sending the tick
			select {
			case ts, ok := <-mins:
				if !ok {
					t.Fatalf("stream closed at tick %d", i)
				}
				want := time.Duration(i+1) * MinutePeriod
				if ts != want {
					t.Errorf("tick %d = %v, want %v", i, ts, want)
				}
			default:
				t.Fatalf("no tick %d after a minute", i)
			}
		}

		cancel()
		synctest.Wait()
		if _, ok := <-mins; ok {
			t.Error("stream still open after cancel")
		}
	})
}

func TestMinutesTerminatesOnOffsetChange(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		c := New(NewSystemCounter())
		mins := c.Minutes(ctx)

		time.Sleep(MinutePeriod)
		if _, ok := <-mins; !ok {
			t.Fatal("stream closed before offset change")
		}

		c.SetOffset(30 * time.Minute)
		synctest.Wait()
		if _, ok := <-mins; ok {
			t.Fatal("stream survived an offset change")
		}

		// Re-subscribing works and ticks with the corrected time.
		mins = c.Minutes(ctx)
		time.Sleep(MinutePeriod)
		ts, ok := <-mins
		if !ok {
			t.Fatal("re-subscribed stream closed immediately")
		}
		if want := 30*time.Minute + 2*MinutePeriod; ts != want {
			t.Errorf("tick after re-subscribe = %v, want %v", ts, want)
		}
	})
}

func TestWallTime(t *testing.T) {
	ts := 1700000000 * time.Second
	got := WallTime(ts, time.UTC)
	if want := time.Unix(1700000000, 0).UTC(); !got.Equal(want) {
		t.Errorf("WallTime = %v, want %v", got, want)
	}
}
