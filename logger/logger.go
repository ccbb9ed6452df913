// Copyright (c) The WristOS Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package logger defines the printf-style logging type passed into
// every WristOS task. It's just a convenience type so that we don't
// have to pass verbose func(...) types around, plus the small set of
// wrappers the runtime needs.
package logger

import (
	"fmt"
	"log"
	"sync"

	"golang.org/x/time/rate"
)

// Logf is the basic WristOS logger type: a printf-like func.
// Like log.Printf, the format need not end in a newline.
// Logf functions must be safe for concurrent use.
type Logf func(format string, args ...any)

// WithPrefix wraps f, prefixing each format with the provided prefix.
func WithPrefix(f Logf, prefix string) Logf {
	return func(format string, args ...any) {
		f(prefix+format, args...)
	}
}

// Discard is a Logf that throws away the logs given to it.
func Discard(string, ...any) {}

// System returns a Logf that writes to the process log.
func System() Logf { return log.Printf }

// RateLimited returns a Logf that drops messages once the caller
// exceeds r messages per second with the given burst. Dropping is
// noted once per dry spell. It is meant for logs in retry loops that
// can spin when hardware misbehaves.
func RateLimited(f Logf, r float64, burst int) Logf {
	lim := rate.NewLimiter(rate.Limit(r), burst)
	var mu sync.Mutex
	blocked := false
	return func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		if !lim.Allow() {
			if !blocked {
				blocked = true
				f("[rate limited] %s", fmt.Sprintf(format, args...))
			}
			return
		}
		blocked = false
		f(format, args...)
	}
}
