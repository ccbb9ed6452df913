// Copyright (c) The WristOS Authors
// SPDX-License-Identifier: BSD-3-Clause

package logger

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestWithPrefix(t *testing.T) {
	var got []string
	f := func(format string, args ...any) {
		got = append(got, fmt.Sprintf(format, args...))
	}
	pf := WithPrefix(f, "radio: ")
	pf("connected in %d tries", 3)
	if len(got) != 1 || got[0] != "radio: connected in 3 tries" {
		t.Errorf("got %q", got)
	}
}

func TestRateLimited(t *testing.T) {
	var got []string
	f := func(format string, args ...any) {
		got = append(got, fmt.Sprintf(format, args...))
	}
	rl := RateLimited(f, 1, 2)
	for i := range 10 {
		rl("msg %d", i)
	}
	// Burst of 2, then a single drop notice for the rest.
	if len(got) != 3 {
		t.Fatalf("got %d lines, want 3: %q", len(got), got)
	}
	if !strings.HasPrefix(got[2], "[rate limited] ") {
		t.Errorf("line 3 = %q, want drop notice", got[2])
	}
}

func TestRateLimitedConcurrent(t *testing.T) {
	var mu sync.Mutex
	var lines int
	f := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		lines++
	}
	rl := RateLimited(f, 1, 4)

	// Several tasks sharing one rate-limited logf, as the radio's
	// retry paths do.
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				rl("msg %d", i)
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	// Burst of 4, plus at most one drop notice per dry spell.
	if lines < 1 || lines > 10 {
		t.Errorf("lines = %d, want a small bounded count", lines)
	}
}
