// Copyright (c) The WristOS Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package radio manages the radio's lifecycle on demand: it powers
// the radio up when any component asserts demand, associates with
// backoff on failure, shuts the radio off when demand drops, and
// gives up (clearing demand) after repeated connect failures.
package radio

import (
	"context"
	"fmt"
	"time"

	"github.com/wristos/wristos/logger"
	"github.com/wristos/wristos/sticky"
)

// State is the lifecycle manager's current phase.
type State uint8

const (
	Stopped State = iota
	Starting
	Connecting
	Connected
	Disconnecting
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnecting:
		return "disconnecting"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Controller drives the radio hardware. All methods honor ctx.
type Controller interface {
	// Start powers the radio up with its configuration applied.
	Start(ctx context.Context) error
	// Stop powers the radio down.
	Stop(ctx context.Context) error
	// Connect associates with the network, blocking until the attempt
	// succeeds or fails.
	Connect(ctx context.Context) error
	// Started reports whether the radio is powered.
	Started() bool
	// WaitDisconnect blocks until an involuntary disconnect occurs.
	WaitDisconnect(ctx context.Context) error
}

// Stack is the external network stack whose processing loop must run
// while the radio is in use.
type Stack interface {
	// Run drives the stack's processing loop until ctx is done.
	Run(ctx context.Context) error
	// LinkUp reports whether the link is established and usable.
	LinkUp() bool
}

const (
	// connectBackoff is the fixed delay between connect retries.
	connectBackoff = 5 * time.Second
	// maxConnectFailures is the consecutive-failure cap; exceeding it
	// forces demand off and powers the radio down.
	maxConnectFailures = 3
)

// Manager is the lifecycle state machine. Run it in its own task; it
// only exits when its context is done.
type Manager struct {
	logf      logger.Logf
	retryLogf logger.Logf // rate limited; used on the failure paths
	ctrl      Controller
	demand    *sticky.Signal[bool]
	backoff   time.Duration
	maxFail   int

	stateSig *sticky.Signal[State] // observable state, for diagnostics
	failures int                   // consecutive connect failures; reset on success
}

// NewManager returns a Manager driven by the given demand signal.
func NewManager(logf logger.Logf, ctrl Controller, demand *sticky.Signal[bool]) *Manager {
	m := &Manager{
		logf:      logf,
		retryLogf: logger.RateLimited(logf, 1, 5),
		ctrl:      ctrl,
		demand:    demand,
		backoff:   connectBackoff,
		maxFail:   maxConnectFailures,
		stateSig:  sticky.New[State]("radio-state", 4),
	}
	m.setState(Stopped)
	return m
}

// State returns the manager's current phase.
func (m *Manager) State() State {
	s, _ := m.stateSig.Peek()
	return s
}

// WaitState blocks until the manager reaches the given phase.
func (m *Manager) WaitState(ctx context.Context, want State) error {
	_, err := sticky.WaitFor(ctx, m.stateSig, func(s State) (struct{}, bool) {
		return struct{}{}, s == want
	})
	return err
}

func (m *Manager) setState(s State) {
	m.stateSig.Signal(s)
}

// Run executes the lifecycle loop until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		if m.ctrl.Started() && m.State() == Connected {
			if err := m.runConnected(ctx); err != nil {
				return err
			}
			continue
		}

		if !m.ctrl.Started() {
			m.setState(Stopped)
			// Wait until someone wants the radio.
			if _, err := sticky.WaitFor(ctx, m.demand, wantOn); err != nil {
				return err
			}
			m.setState(Starting)
			if err := m.ctrl.Start(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				// Power-up failure counts like a connect failure.
				m.retryLogf("start failed: %v", err)
				if m.countFailure(ctx) {
					continue
				}
				select {
				case <-time.After(m.backoff):
				case <-ctx.Done():
					return ctx.Err()
				}
				continue
			}
			m.logf("radio started")
		}

		m.setState(Connecting)
		if err := m.ctrl.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.retryLogf("connect failed: %v", err)
			if m.countFailure(ctx) {
				continue
			}
			select {
			case <-time.After(m.backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		m.logf("connected")
		m.failures = 0
		m.setState(Connected)
	}
	return ctx.Err()
}

// countFailure increments the consecutive-failure counter. If the cap
// is exceeded it forces demand off, powers the radio down and reports
// true; the caller skips the backoff and re-enters the idle wait.
func (m *Manager) countFailure(ctx context.Context) (shutdown bool) {
	m.failures++
	if m.failures <= m.maxFail {
		return false
	}
	m.logf("giving up after %d failures, shutting radio down", m.failures)
	m.demand.Signal(false)
	m.setState(Disconnecting)
	if err := m.ctrl.Stop(ctx); err != nil {
		m.logf("stop failed: %v", err)
	}
	m.failures = 0
	m.setState(Stopped)
	return true
}

// runConnected waits, while associated, for either demand to drop or
// an involuntary disconnect. Demand dropping stops the radio; an
// involuntary disconnect backs off and lets the loop reconnect.
func (m *Manager) runConnected(ctx context.Context) error {
	ev, err := m.nextConnectedEvent(ctx)
	if err != nil {
		return err
	}
	switch ev {
	case evDemandDropped:
		m.logf("demand dropped, stopping radio")
		m.setState(Disconnecting)
		if err := m.ctrl.Stop(ctx); err != nil {
			m.logf("stop failed: %v", err)
		}
		m.setState(Stopped)
	case evLinkLost:
		m.logf("involuntary disconnect, reconnecting in %v", m.backoff)
		m.setState(Connecting)
		select {
		case <-time.After(m.backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

type connectedEvent uint8

const (
	evDemandDropped connectedEvent = iota
	evLinkLost
)

// nextConnectedEvent races "demand deasserted" against "link lost"
// and reports whichever fires first. The losing wait is cancelled,
// which deregisters it from the demand signal.
func (m *Manager) nextConnectedEvent(ctx context.Context) (connectedEvent, error) {
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan connectedEvent, 2)
	go func() {
		if _, err := sticky.WaitFor(raceCtx, m.demand, wantOff); err == nil {
			events <- evDemandDropped
		}
	}()
	go func() {
		if err := m.ctrl.WaitDisconnect(raceCtx); err == nil {
			events <- evLinkLost
		}
	}()

	select {
	case ev := <-events:
		return ev, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func wantOn(v bool) (struct{}, bool)  { return struct{}{}, v }
func wantOff(v bool) (struct{}, bool) { return struct{}{}, !v }

// RunStack mirrors demand onto the network stack's processing loop:
// the loop runs only while demand is asserted and is torn down
// promptly when demand drops. Run it in its own task.
func RunStack(ctx context.Context, logf logger.Logf, demand *sticky.Signal[bool], stack Stack) error {
	for ctx.Err() == nil {
		if _, err := sticky.WaitFor(ctx, demand, wantOn); err != nil {
			return err
		}
		logf("network enabled, running stack")

		runCtx, cancel := context.WithCancel(ctx)
		stackDone := make(chan error, 1)
		go func() { stackDone <- stack.Run(runCtx) }()

		dropCtx, cancelDrop := context.WithCancel(runCtx)
		demandDropped := make(chan struct{})
		go func() {
			defer close(demandDropped)
			sticky.WaitFor(dropCtx, demand, wantOff)
		}()

		select {
		case <-demandDropped:
			logf("network disabled, stopping stack")
			cancel()
			<-stackDone
		case err := <-stackDone:
			// The stack's loop is not supposed to exit on its own.
			if err != nil && ctx.Err() == nil {
				logf("stack exited: %v", err)
			}
		case <-ctx.Done():
			cancel()
			<-stackDone
		}
		cancelDrop()
		<-demandDropped
		cancel()
	}
	return ctx.Err()
}
