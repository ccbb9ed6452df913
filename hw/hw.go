// Copyright (c) The WristOS Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package hw defines the narrow contracts through which the runtime
// core touches hardware: raw sample reads, logic levels, the battery
// driver and wake-cause classification. Peripheral register access
// itself lives behind these interfaces, outside this module.
package hw

import (
	"context"
	"errors"
	"runtime"
)

// Level is a digital logic level.
type Level uint8

const (
	Low Level = iota
	High
)

func (l Level) String() string {
	if l == High {
		return "high"
	}
	return "low"
}

// RawSample is an uncalibrated ADC reading.
type RawSample uint16

// ErrNotReady is returned by a non-blocking read whose result is not
// yet available. Callers turn it into a suspend point with BlockOn.
var ErrNotReady = errors.New("hw: not ready")

// SampleReader reads one raw sample. Read is non-blocking: it returns
// ErrNotReady while a conversion is in flight. Any other error is a
// transient I/O failure for the caller to handle.
type SampleReader interface {
	ReadSample() (RawSample, error)
}

// BlockOn turns a non-blocking poll into a blocking operation: it
// calls poll, and on ErrNotReady yields to the scheduler once before
// re-polling. It never spins without yielding, and it honors ctx
// between polls.
func BlockOn[T any](ctx context.Context, poll func() (T, error)) (T, error) {
	for {
		v, err := poll()
		if !errors.Is(err, ErrNotReady) {
			return v, err
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		default:
			runtime.Gosched()
		}
	}
}
