// Copyright (c) The WristOS Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package display drives the watchface cadence: one frame per minute,
// with the refresh mode cycling so the panel gets a full refresh every
// five frames and cheap or no-flash refreshes in between.
package display

import (
	"context"
	"fmt"
	"time"

	"github.com/wristos/wristos/hw"
	"github.com/wristos/wristos/logger"
	"github.com/wristos/wristos/wristtime"
)

// RefreshMode selects the panel waveform for one frame.
type RefreshMode uint8

const (
	// Full rewrites the whole panel, clearing ghosting at the cost of
	// a visible flash.
	Full RefreshMode = iota
	// Partial updates changed pixels quickly, accumulating ghosting.
	Partial
	// None redraws the frame buffer without driving a panel refresh.
	None
)

func (m RefreshMode) String() string {
	switch m {
	case Full:
		return "full"
	case Partial:
		return "partial"
	case None:
		return "none"
	}
	return fmt.Sprintf("RefreshMode(%d)", uint8(m))
}

// refreshCycle is the per-frame mode sequence, restarting whenever the
// minute stream does.
var refreshCycle = [...]RefreshMode{Full, Partial, None, None, None}

// Frame is everything a watchface needs to draw itself once.
type Frame struct {
	Time     time.Time
	Battery  hw.BatteryStatus
	Charging bool
}

// Renderer draws one frame. A render failure is fatal to the cadence
// loop: the panel is the device's whole interface, so there is no
// useful degraded mode.
type Renderer interface {
	Render(ctx context.Context, f Frame, mode RefreshMode) error
}

// Driver runs the cadence loop.
type Driver struct {
	logf     logger.Logf
	clock    *wristtime.Clock
	battery  *hw.BatteryDriver
	renderer Renderer
	loc      *time.Location
}

// Config collects the driver's collaborators.
type Config struct {
	Logf     logger.Logf
	Clock    *wristtime.Clock
	Battery  *hw.BatteryDriver
	Renderer Renderer
	Location *time.Location // nil means UTC
}

func New(cfg Config) *Driver {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Driver{
		logf:     cfg.Logf,
		clock:    cfg.Clock,
		battery:  cfg.Battery,
		renderer: cfg.Renderer,
		loc:      loc,
	}
}

// Run draws frames until ctx is done. A frame is drawn immediately on
// entry and after every offset correction (the minute stream closing),
// then once per minute tick; every restart begins with a full refresh
// so a corrected time never lingers behind ghosting.
func (d *Driver) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		minutes := d.clock.Minutes(ctx)
		if err := d.frame(ctx, d.clock.Now(), refreshCycle[0]); err != nil {
			return err
		}
		step := 1
		for ts := range minutes {
			if err := d.frame(ctx, ts, refreshCycle[step%len(refreshCycle)]); err != nil {
				return err
			}
			step++
		}
	}
	return ctx.Err()
}

func (d *Driver) frame(ctx context.Context, ts time.Duration, mode RefreshMode) error {
	status, err := d.battery.Status(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Draw with an empty gauge rather than skipping the frame.
		d.logf("battery read failed: %v", err)
		status = hw.BatteryStatus{}
	}
	f := Frame{
		Time:     wristtime.WallTime(ts, d.loc),
		Battery:  status,
		Charging: d.battery.Charging(ctx),
	}
	if err := d.renderer.Render(ctx, f, mode); err != nil {
		return fmt.Errorf("render %v frame: %w", mode, err)
	}
	return nil
}
