// Copyright (c) The WristOS Authors
// SPDX-License-Identifier: BSD-3-Clause

package input

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wristos/wristos/hw"
	"github.com/wristos/wristos/logger"
	"github.com/wristos/wristos/sticky"
)

// pressBuzz is the haptic pulse length for a button press.
const pressBuzz = 60 * time.Millisecond

// Actuator drives the vibration motor.
type Actuator interface {
	Set(on bool)
}

// EventKind labels a multiplexer event.
type EventKind uint8

const (
	ButtonPressed EventKind = iota
	AccelTap
	ChargingStarted
)

// Event is one debounced input event.
type Event struct {
	Kind   EventKind
	Button hw.Button // valid when Kind is ButtonPressed
}

// Mux drives the input and feedback loops: debounced button presses,
// the retriggerable haptic timer, and the accelerometer's tap
// interrupt. It runs on the latency-sensitive executor.
type Mux struct {
	logf     logger.Logf
	buttons  [4]*Debouncer // indexed by hw.Button
	accel    *Debouncer
	charging *Debouncer // may be nil
	haptic   Actuator
	buzz     *sticky.Signal[time.Duration]

	// Notify, if non-nil, observes every event after its haptic
	// feedback has been requested. It must not block.
	Notify func(Event)
}

// Config collects the mux's collaborators.
type Config struct {
	Logf     logger.Logf
	Buttons  [4]Line // indexed by hw.Button
	AccelInt Line
	Charging Line // optional
	Haptic   Actuator
	Buzz     *sticky.Signal[time.Duration]
}

func NewMux(cfg Config) *Mux {
	m := &Mux{
		logf:   cfg.Logf,
		accel:  NewDebouncer(cfg.AccelInt, hw.High), // pulled up, active low
		haptic: cfg.Haptic,
		buzz:   cfg.Buzz,
	}
	for i, line := range cfg.Buttons {
		m.buttons[i] = NewDebouncer(line, hw.High)
	}
	if cfg.Charging != nil {
		m.charging = NewDebouncer(cfg.Charging, hw.High)
	}
	return m
}

// Buzz requests a haptic pulse of duration d, restarting any pulse
// already in progress.
func (m *Mux) Buzz(d time.Duration) {
	m.buzz.Signal(d)
}

// Run executes the button, haptic and accelerometer loops until ctx
// is done. The loops fail together: this task only exits on
// cancellation.
func (m *Mux) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.runButtons(ctx) })
	g.Go(func() error { return m.runHaptic(ctx) })
	g.Go(func() error { return m.runAccel(ctx) })
	return g.Wait()
}

// runButtons merges every button's press wait (and the charge-sense
// edge, when wired) into one labeled event channel and handles each
// event in a single select arm: any press buzzes and is reported.
func (m *Mux) runButtons(ctx context.Context) error {
	events := make(chan Event)

	g, ctx := errgroup.WithContext(ctx)
	for i, d := range m.buttons {
		g.Go(func() error {
			for {
				if err := d.WaitForFallingEdge(ctx); err != nil {
					return err
				}
				select {
				case events <- Event{Kind: ButtonPressed, Button: hw.Button(i)}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		})
	}
	if m.charging != nil {
		g.Go(func() error {
			for {
				if err := m.charging.WaitForFallingEdge(ctx); err != nil {
					return err
				}
				select {
				case events <- Event{Kind: ChargingStarted}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		})
	}
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ev := <-events:
				m.Buzz(pressBuzz)
				switch ev.Kind {
				case ButtonPressed:
					m.logf("button pressed: %v", ev.Button)
				case ChargingStarted:
					m.logf("charger attached")
				}
				if m.Notify != nil {
					m.Notify(ev)
				}
			}
		}
	})
	return g.Wait()
}

// runHaptic models a retriggerable one-shot: a buzz request drives
// the motor and arms a countdown of the requested duration, replacing
// any prior countdown; expiry stops the motor and disarms. The
// disarmed countdown is a nil channel, which never resolves.
func (m *Mux) runHaptic(ctx context.Context) error {
	requests := make(chan time.Duration)
	go func() {
		for {
			d, err := m.buzz.Next(ctx)
			if err != nil {
				return
			}
			select {
			case requests <- d:
			case <-ctx.Done():
				return
			}
		}
	}()

	var (
		timer  *time.Timer
		expire <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
		m.haptic.Set(false)
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d := <-requests:
			m.haptic.Set(true)
			if timer == nil {
				timer = time.NewTimer(d)
			} else {
				timer.Stop()
				timer.Reset(d)
			}
			expire = timer.C
		case <-expire:
			m.haptic.Set(false)
			expire = nil
		}
	}
}

// runAccel reports debounced taps from the accelerometer's interrupt
// line, independently of the button loop.
func (m *Mux) runAccel(ctx context.Context) error {
	for {
		if err := m.accel.WaitForFallingEdge(ctx); err != nil {
			return err
		}
		m.logf("tap")
		if m.Notify != nil {
			m.Notify(Event{Kind: AccelTap})
		}
	}
}
