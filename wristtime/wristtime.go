// Copyright (c) The WristOS Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package wristtime provides the device's notion of time: a
// free-running hardware counter corrected by an offset learned from
// network time sync.
package wristtime

import (
	"context"
	"time"

	"github.com/wristos/wristos/sticky"
)

// offsetWaiters bounds concurrent watchers of the offset signal:
// the minute stream, the display driver and a small margin.
const offsetWaiters = 4

// MinutePeriod is the tick period of the Minutes stream.
const MinutePeriod = time.Minute

// Counter reads a free-running monotonic hardware counter. Readings
// only increase while the device is awake and wrap at a period far
// beyond a single wake cycle.
type Counter interface {
	// Elapsed reports the time since the counter started.
	Elapsed() time.Duration
}

// SystemCounter is a Counter backed by the Go runtime's monotonic
// clock. Device builds replace it with the hardware timer; it is also
// the counter used under testing/synctest, where the runtime clock is
// virtualized.
type SystemCounter struct {
	start time.Time
}

func NewSystemCounter() *SystemCounter {
	return &SystemCounter{start: time.Now()}
}

func (c *SystemCounter) Elapsed() time.Duration { return time.Since(c.start) }

// Clock is the device's logical wall clock: counter plus correction
// offset. The offset starts unknown (treated as zero) and is signaled
// by the first successful time sync; later syncs overwrite it.
//
// Logical time is expressed as a Duration since the Unix epoch, the
// same form the time-sync collaborator reports.
type Clock struct {
	counter Counter
	offset  *sticky.Signal[time.Duration]
}

func New(counter Counter) *Clock {
	return &Clock{
		counter: counter,
		offset:  sticky.New[time.Duration]("time-offset", offsetWaiters),
	}
}

// Now returns the current logical time: counter plus offset, with the
// offset defaulting to zero until the first correction arrives.
func (c *Clock) Now() time.Duration {
	off, _ := c.offset.Peek()
	return c.counter.Elapsed() + off
}

// OffsetKnown reports whether a correction has ever been applied.
func (c *Clock) OffsetKnown() bool {
	_, ok := c.offset.Peek()
	return ok
}

// SetOffset applies a correction offset. Every consumer of Now sees
// the new offset immediately; the Minutes stream terminates so its
// consumers re-subscribe instead of trusting a stale cadence.
func (c *Clock) SetOffset(off time.Duration) {
	c.offset.Signal(off)
}

// SyncTo applies a correction so that Now() == wall, where wall is
// the current real time as a Duration since the Unix epoch.
func (c *Clock) SyncTo(wall time.Duration) {
	c.SetOffset(wall - c.counter.Elapsed())
}

// Minutes returns a stream of logical timestamps ticking once per
// minute. The stream closes permanently as soon as the offset
// changes, or when ctx is done; a consumer must call Minutes again
// after an offset update.
func (c *Clock) Minutes(ctx context.Context) <-chan time.Duration {
	out := make(chan time.Duration)
	go func() {
		defer close(out)

		changed := make(chan struct{})
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			defer close(changed)
			c.offset.Next(watchCtx)
		}()

		ticker := time.NewTicker(MinutePeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-changed:
				return
			case <-ticker.C:
				select {
				case out <- c.Now():
				case <-ctx.Done():
					return
				case <-changed:
					return
				}
			}
		}
	}()
	return out
}

// WallTime converts a logical timestamp to a time.Time in loc.
func WallTime(ts time.Duration, loc *time.Location) time.Time {
	return time.Unix(0, ts.Nanoseconds()).In(loc)
}
