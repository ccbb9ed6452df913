// Copyright (c) The WristOS Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"github.com/wristos/wristos/display"
	"github.com/wristos/wristos/hw"
	"github.com/wristos/wristos/logger"
	"github.com/wristos/wristos/timesync"
)

// simLine is an input line whose transitions are injected by the
// keyboard loop.
type simLine struct {
	edges chan hw.Level
}

func newSimLine() *simLine { return &simLine{edges: make(chan hw.Level)} }

func (l *simLine) Edges() <-chan hw.Level { return l.edges }

// press injects a press and release, complete with contact bounce so
// the debouncer has something to do.
func (l *simLine) press(ctx context.Context) {
	seq := []struct {
		lvl  hw.Level
		hold time.Duration
	}{
		{hw.Low, time.Millisecond},  // contact
		{hw.High, time.Millisecond}, // bounce
		{hw.Low, 80 * time.Millisecond},
		{hw.High, 0}, // release
	}
	for _, s := range seq {
		select {
		case l.edges <- s.lvl:
		case <-ctx.Done():
			return
		}
		time.Sleep(s.hold)
	}
}

// readKeys maps keyboard input onto the simulated lines: 1-4 press the
// buttons, a taps the accelerometer, c toggles the charger.
func readKeys(ctx context.Context, logf logger.Logf, buttons [4]*simLine, accel, charger *simLine) {
	charging := false
	buf := make([]byte, 1)
	for {
		if _, err := os.Stdin.Read(buf); err != nil {
			if err != io.EOF {
				logf("stdin: %v", err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		switch buf[0] {
		case '1', '2', '3', '4':
			buttons[buf[0]-'1'].press(ctx)
		case 'a':
			accel.press(ctx)
		case 'c':
			charging = !charging
			if charging {
				charger.press(ctx)
			}
		}
	}
}

// simRadio fakes the radio controller: power state is a flag and each
// connect attempt takes a moment and may flake.
type simRadio struct {
	logf      logger.Logf
	flakiness float64 // probability a connect attempt fails

	mu      sync.Mutex
	started bool
}

func (r *simRadio) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = true
	return nil
}

func (r *simRadio) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = false
	return nil
}

func (r *simRadio) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

func (r *simRadio) Connect(ctx context.Context) error {
	select {
	case <-time.After(300 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}
	if rand.Float64() < r.flakiness {
		r.logf("simulating an association failure")
		return fmt.Errorf("association timed out")
	}
	return nil
}

func (r *simRadio) WaitDisconnect(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// simStack fakes the network stack loop; the link comes up shortly
// after the loop starts.
type simStack struct {
	mu sync.Mutex
	up bool
}

func (s *simStack) Run(ctx context.Context) error {
	timer := time.NewTimer(200 * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
		s.mu.Lock()
		s.up = true
		s.mu.Unlock()
	case <-ctx.Done():
		return ctx.Err()
	}
	<-ctx.Done()
	s.mu.Lock()
	s.up = false
	s.mu.Unlock()
	return ctx.Err()
}

func (s *simStack) LinkUp() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.up
}

// simADC returns raw samples around a fixed level with a little noise,
// and is occasionally not ready so the poll path gets exercised.
type simADC struct {
	mu  sync.Mutex
	raw int
}

func (a *simADC) ReadSample() (hw.RawSample, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if rand.IntN(10) == 0 {
		return 0, hw.ErrNotReady
	}
	return hw.RawSample(a.raw + rand.IntN(8) - 4), nil
}

// simHaptic logs motor state instead of vibrating.
type simHaptic struct {
	logf logger.Logf
}

func (h *simHaptic) Set(on bool) {
	if on {
		h.logf("motor on")
	} else {
		h.logf("motor off")
	}
}

// consoleRenderer draws each frame as one log line.
type consoleRenderer struct {
	logf logger.Logf
}

func (r *consoleRenderer) Render(ctx context.Context, f display.Frame, mode display.RefreshMode) error {
	charge := ""
	if f.Charging {
		charge = " (charging)"
	}
	r.logf("%s | battery %d%%%s | refresh %v",
		f.Time.Format("15:04 Mon Jan 2"), f.Battery.Percent(), charge, mode)
	return nil
}

// hostClient answers time queries from the host clock, for running
// without network access.
type hostClient struct{}

func (hostClient) Query(ctx context.Context, server string, timeout time.Duration) (timesync.Result, error) {
	now := time.Now()
	return timesync.Result{
		Seconds:    now.Unix(),
		Subseconds: uint32(uint64(now.Nanosecond()) << 32 / uint64(time.Second)),
	}, nil
}

// simStatus scripts the boot status register.
type simStatus struct {
	source hw.SleepSource
	bits   uint32
}

func (s *simStatus) WakeSource() hw.SleepSource { return s.source }
func (s *simStatus) Ext1Bits() uint32           { return s.bits }
