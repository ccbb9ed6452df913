// Copyright (c) The WristOS Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package sticky provides a single-slot signaling primitive that
// retains its value after being read.
//
// A Signal is similar to a one-shot completion signal, but it does not
// clear the inner value when it is read. This matters when several
// independent tasks need to observe the latest value of a piece of
// shared state (for example "is the radio wanted"), or when a task
// needs to check-then-wait without a missed-wakeup race.
//
// Signals are created once at startup, owned by the application state
// struct, and borrowed by tasks for the life of the process.
package sticky

import (
	"context"
	"fmt"
	"sync"
)

// A Signal holds at most one value of type T and any number of waiters
// up to its configured capacity.
//
// Signal, Reset, Peek and TryTake never block. Wait, Next and WaitFor
// suspend the calling goroutine; a waiter abandoned via its context is
// deregistered, so cancelled waits do not leak slots.
//
// T must be a value type cheap to copy: every reader gets its own copy
// so reads never race.
type Signal[T any] struct {
	name string

	mu      sync.Mutex
	val     T
	set     bool
	waiters []waiter[T] // fixed capacity, allocated once
}

type waiter[T any] struct {
	used bool
	ch   chan T // buffered, cap 1
}

// New returns a Signal with room for at most maxWaiters concurrent
// waiters. The name is used in diagnostics only.
//
// maxWaiters is a static sizing decision: registering more concurrent
// waiters than configured is a configuration bug and panics rather
// than degrading.
func New[T any](name string, maxWaiters int) *Signal[T] {
	if maxWaiters <= 0 {
		panic(fmt.Sprintf("sticky: %s: non-positive waiter capacity %d", name, maxWaiters))
	}
	return &Signal[T]{
		name:    name,
		waiters: make([]waiter[T], maxWaiters),
	}
}

// Signal stores val and wakes every registered waiter before
// returning. Any prior unread value is overwritten (last-write-wins).
func (s *Signal[T]) Signal(val T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.val = val
	s.set = true
	for i := range s.waiters {
		if !s.waiters[i].used {
			continue
		}
		s.waiters[i].ch <- val // cap 1, each slot delivered at most once
		s.waiters[i] = waiter[T]{}
	}
}

// Reset forces the Signal back to empty, dropping any pending value.
// Registered waiters are kept; they resume on the next Signal call.
func (s *Signal[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	s.val = zero
	s.set = false
}

// Peek returns the current value without consuming it.
func (s *Signal[T]) Peek() (val T, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.val, s.set
}

// TryTake returns the current value and clears it. It is the only
// read that consumes; registered waiters are unaffected.
func (s *Signal[T]) TryTake() (val T, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		var zero T
		return zero, false
	}
	val = s.val
	var zero T
	s.val = zero
	s.set = false
	return val, true
}

// Wait returns the current value if one is set, without registering.
// Otherwise it suspends until the next Signal call and returns the
// signaled value. Wait never consumes the value.
func (s *Signal[T]) Wait(ctx context.Context) (T, error) {
	s.mu.Lock()
	if s.set {
		val := s.val
		s.mu.Unlock()
		return val, nil
	}
	ch, idx, ok := s.register()
	s.mu.Unlock()
	if !ok {
		s.overflow()
	}
	return s.await(ctx, ch, idx)
}

// Next suspends until the next Signal call, even if a value is
// already set, and returns the newly signaled value. It is the wait
// used by loops that react to changes rather than levels, such as the
// clock's minute stream watching for an offset update.
func (s *Signal[T]) Next(ctx context.Context) (T, error) {
	s.mu.Lock()
	ch, idx, ok := s.register()
	s.mu.Unlock()
	if !ok {
		s.overflow()
	}
	return s.await(ctx, ch, idx)
}

// WaitFor suspends until pred reports ok for the current or a newly
// signaled value, then returns pred's result. The current value is
// checked first, so a satisfied predicate returns without suspending.
// The check and the waiter registration happen under the signal's
// lock, so a Signal call can never slip between them; pred must
// therefore be fast and must not call back into s.
func WaitFor[T, U any](ctx context.Context, s *Signal[T], pred func(T) (U, bool)) (U, error) {
	for {
		s.mu.Lock()
		if s.set {
			if u, ok := pred(s.val); ok {
				s.mu.Unlock()
				return u, nil
			}
		}
		ch, idx, ok := s.register()
		s.mu.Unlock()
		if !ok {
			s.overflow()
		}
		val, err := s.await(ctx, ch, idx)
		if err != nil {
			var zero U
			return zero, err
		}
		if u, ok := pred(val); ok {
			return u, nil
		}
	}
}

// register adds a waiter slot. Caller must hold s.mu. A false result
// means the arena is full; the caller reports the overflow after
// releasing the lock.
func (s *Signal[T]) register() (ch chan T, idx int, ok bool) {
	for i := range s.waiters {
		if s.waiters[i].used {
			continue
		}
		ch := make(chan T, 1)
		s.waiters[i] = waiter[T]{used: true, ch: ch}
		return ch, i, true
	}
	return nil, 0, false
}

// overflow reports a waiter arena sized too small. This is a static
// configuration bug, not a runtime condition to recover from.
func (s *Signal[T]) overflow() {
	panic(fmt.Sprintf("sticky: %s: waiter capacity %d exceeded", s.name, len(s.waiters)))
}

// await blocks on ch or ctx. On cancellation the slot is removed so
// stale registrations cannot accumulate; a Signal that raced with the
// cancellation still wins.
func (s *Signal[T]) await(ctx context.Context, ch chan T, idx int) (T, error) {
	select {
	case val := <-ch:
		return val, nil
	case <-ctx.Done():
		s.mu.Lock()
		if s.waiters[idx].ch == ch {
			s.waiters[idx] = waiter[T]{}
		}
		s.mu.Unlock()
		select {
		case val := <-ch:
			return val, nil
		default:
		}
		var zero T
		return zero, ctx.Err()
	}
}
