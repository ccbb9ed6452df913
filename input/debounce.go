// Copyright (c) The WristOS Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package input turns raw, bouncy hardware lines into debounced edge
// events and runs the multiplexer task that drives buttons, haptic
// feedback and the accelerometer interrupt line.
package input

import (
	"context"
	"time"

	"github.com/wristos/wristos/hw"
)

// DebounceWindow is how long a line must hold a new level before the
// transition is reported.
const DebounceWindow = 5 * time.Millisecond

// A Line delivers raw level transitions from one input pin.
type Line interface {
	// Edges returns the channel of raw transitions. Each value is the
	// level after the transition. The channel is never closed.
	Edges() <-chan hw.Level
}

// Debouncer filters a Line's raw transitions: an edge is reported
// only once the new level has held for the full debounce window. A
// line that toggles and returns to its stable level within the window
// reports nothing.
type Debouncer struct {
	line   Line
	window time.Duration
	stable hw.Level
}

// NewDebouncer wraps line, treating initial as its current stable
// level.
func NewDebouncer(line Line, initial hw.Level) *Debouncer {
	return &Debouncer{line: line, window: DebounceWindow, stable: initial}
}

// WaitForEdge blocks until a debounced transition occurs and returns
// the new stable level.
func (d *Debouncer) WaitForEdge(ctx context.Context) (hw.Level, error) {
	edges := d.line.Edges()
	var (
		pending hw.Level
		timer   *time.Timer
		settle  <-chan time.Time // nil while no candidate transition
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case lvl := <-edges:
			if lvl == d.stable {
				// Bounced back before settling.
				if timer != nil {
					timer.Stop()
				}
				settle = nil
				continue
			}
			pending = lvl
			if timer == nil {
				timer = time.NewTimer(d.window)
			} else {
				timer.Stop()
				timer.Reset(d.window)
			}
			settle = timer.C
		case <-settle:
			d.stable = pending
			return pending, nil
		}
	}
}

// WaitForFallingEdge blocks until the line settles low. The buttons
// are active low, so this is a press.
func (d *Debouncer) WaitForFallingEdge(ctx context.Context) error {
	for {
		lvl, err := d.WaitForEdge(ctx)
		if err != nil {
			return err
		}
		if lvl == hw.Low {
			return nil
		}
	}
}
