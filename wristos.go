// Copyright (c) The WristOS Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package wristos assembles the runtime: the logical clock, the radio
// lifecycle manager and network stack loop, the request broker, the
// input multiplexer and the display cadence driver, all sharing one
// set of sticky signals created here at startup.
package wristos

import (
	"context"
	"time"

	"github.com/creachadair/taskgroup"

	"github.com/wristos/wristos/broker"
	"github.com/wristos/wristos/display"
	"github.com/wristos/wristos/hw"
	"github.com/wristos/wristos/input"
	"github.com/wristos/wristos/logger"
	"github.com/wristos/wristos/radio"
	"github.com/wristos/wristos/sticky"
	"github.com/wristos/wristos/timesync"
	"github.com/wristos/wristos/wristtime"
)

const (
	// syncRetryDelay spaces out clock sync attempts after a failure.
	syncRetryDelay = 30 * time.Second
	// resyncInterval is how often a synced clock is corrected again.
	resyncInterval = 24 * time.Hour

	// demandWaiters bounds concurrent watchers of the radio demand
	// signal: the lifecycle manager, the stack loop, the broker's
	// give-up watch and a small margin.
	demandWaiters = 8
)

// Config wires the hardware and network collaborators into a System.
// Every field is required unless marked optional.
type Config struct {
	Logf logger.Logf

	// Hardware.
	Counter      wristtime.Counter
	Buttons      [4]input.Line // indexed by hw.Button
	AccelInt     input.Line
	ChargingLine input.Line // optional charger-attach events
	Haptic       input.Actuator
	BatterySense hw.SampleReader
	ChargeSense  hw.SampleReader
	Renderer     display.Renderer
	Status       hw.StatusRegister // optional; nil reads as a plain reset

	// Network.
	Radio      radio.Controller
	Stack      radio.Stack
	TimeClient timesync.Client
	TimeServer string

	// Location renders frames in a timezone. Nil means UTC.
	Location *time.Location

	// Notify, if set, observes every input event. It must not block.
	Notify func(input.Event)
}

// System owns the runtime's long-lived state.
type System struct {
	logf  logger.Logf
	wake  hw.WakeCause
	clock *wristtime.Clock

	demand  *sticky.Signal[bool]
	manager *radio.Manager
	stack   radio.Stack
	broker  *broker.Broker
	mux     *input.Mux
	display *display.Driver
}

// New builds a System from cfg. Nothing runs until Run is called.
func New(cfg Config) *System {
	logf := cfg.Logf
	if logf == nil {
		logf = logger.Discard
	}

	var wake hw.WakeCause
	if cfg.Status != nil {
		wake = hw.ClassifyWake(cfg.Status)
	}

	clock := wristtime.New(cfg.Counter)
	demand := sticky.New[bool]("enable-network", demandWaiters)

	s := &System{
		logf:    logf,
		wake:    wake,
		clock:   clock,
		demand:  demand,
		stack:   cfg.Stack,
		manager: radio.NewManager(logger.WithPrefix(logf, "radio: "), cfg.Radio, demand),
		broker: broker.New(broker.Config{
			Logf:   logger.WithPrefix(logf, "broker: "),
			Demand: demand,
			Link:   cfg.Stack,
			Client: cfg.TimeClient,
			Server: cfg.TimeServer,
		}),
	}
	s.mux = input.NewMux(input.Config{
		Logf:     logger.WithPrefix(logf, "input: "),
		Buttons:  cfg.Buttons,
		AccelInt: cfg.AccelInt,
		Charging: cfg.ChargingLine,
		Haptic:   cfg.Haptic,
		Buzz:     sticky.New[time.Duration]("haptic", 4),
	})
	s.mux.Notify = cfg.Notify
	s.display = display.New(display.Config{
		Logf:     logger.WithPrefix(logf, "display: "),
		Clock:    clock,
		Battery:  hw.NewBatteryDriver(cfg.BatterySense, cfg.ChargeSense),
		Renderer: cfg.Renderer,
		Location: cfg.Location,
	})
	return s
}

// WakeCause reports why the device booted.
func (s *System) WakeCause() hw.WakeCause { return s.wake }

// Clock returns the system's logical clock.
func (s *System) Clock() *wristtime.Clock { return s.clock }

// Buzz requests a haptic pulse.
func (s *System) Buzz(d time.Duration) { s.mux.Buzz(d) }

// GetTime fetches the current time through the request broker.
func (s *System) GetTime(ctx context.Context) (timesync.Result, error) {
	return s.broker.GetTime(ctx)
}

// Run starts every task and blocks until ctx is done or a task fails.
// One task failing tears the rest down.
func (s *System) Run(ctx context.Context) error {
	s.logf("starting due to %v", s.wake)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g := taskgroup.New(func() { cancel() })
	g.Go(func() error { return s.manager.Run(ctx) })
	g.Go(func() error {
		return radio.RunStack(ctx, logger.WithPrefix(s.logf, "stack: "), s.demand, s.stack)
	})
	g.Go(func() error { return s.broker.Run(ctx) })
	g.Go(func() error { return s.mux.Run(ctx) })
	g.Go(func() error { return s.display.Run(ctx) })
	g.Go(func() error { return s.runTimeSync(ctx) })
	return g.Wait()
}

// runTimeSync keeps the clock corrected: it retries until the first
// sync lands, then refreshes on a long interval. Failures are retried
// rather than fatal; the watch still works on an uncorrected clock.
func (s *System) runTimeSync(ctx context.Context) error {
	for {
		res, err := s.broker.GetTime(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logf("time sync failed: %v; retrying in %v", err, syncRetryDelay)
			select {
			case <-time.After(syncRetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		s.clock.SyncTo(res.Wall())
		s.logf("clock synced: %v", wristtime.WallTime(s.clock.Now(), time.UTC))
		select {
		case <-time.After(resyncInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
