// Copyright (c) The WristOS Authors
// SPDX-License-Identifier: BSD-3-Clause

package input

import (
	"context"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/wristos/wristos/hw"
	"github.com/wristos/wristos/sticky"
)

// fakeLine injects raw transitions by hand.
type fakeLine struct {
	edges chan hw.Level
}

func newFakeLine() *fakeLine {
	return &fakeLine{edges: make(chan hw.Level)}
}

func (l *fakeLine) Edges() <-chan hw.Level { return l.edges }

// press simulates a clean active-low press and release.
func (l *fakeLine) press() {
	l.edges <- hw.Low
	time.Sleep(DebounceWindow)
	synctest.Wait()
	l.edges <- hw.High
	time.Sleep(DebounceWindow)
	synctest.Wait()
}

func TestDebounceReportsSettledEdge(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		line := newFakeLine()
		d := NewDebouncer(line, hw.High)

		got := make(chan hw.Level, 1)
		go func() {
			lvl, err := d.WaitForEdge(ctx)
			if err != nil {
				t.Errorf("WaitForEdge: %v", err)
				return
			}
			got <- lvl
		}()
		synctest.Wait()

		line.edges <- hw.Low
		time.Sleep(DebounceWindow)
		synctest.Wait()

		select {
		case lvl := <-got:
			if lvl != hw.Low {
				t.Errorf("edge = %v, want low", lvl)
			}
		default:
			t.Fatal("no edge reported after full window")
		}
	})
}

func TestDebounceSuppressesBounce(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		line := newFakeLine()
		d := NewDebouncer(line, hw.High)

		got := make(chan hw.Level, 1)
		go func() {
			lvl, err := d.WaitForEdge(ctx)
			if err != nil {
				return
			}
			got <- lvl
		}()
		synctest.Wait()

		// Two transitions within 2ms: the line dips low and bounces
		// back before the window elapses. Nothing may be reported.
		line.edges <- hw.Low
		time.Sleep(2 * time.Millisecond)
		synctest.Wait()
		line.edges <- hw.High
		time.Sleep(10 * DebounceWindow)
		synctest.Wait()

		select {
		case lvl := <-got:
			t.Fatalf("bounce reported as edge %v", lvl)
		default:
		}

		// A real press afterwards still gets through.
		line.edges <- hw.Low
		time.Sleep(DebounceWindow)
		synctest.Wait()
		select {
		case lvl := <-got:
			if lvl != hw.Low {
				t.Errorf("edge = %v, want low", lvl)
			}
		default:
			t.Fatal("press after bounce not reported")
		}
	})
}

func TestDebounceRestartsWindowOnRetrigger(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		line := newFakeLine()
		d := NewDebouncer(line, hw.High)

		got := make(chan hw.Level, 1)
		go func() {
			lvl, err := d.WaitForEdge(ctx)
			if err != nil {
				return
			}
			got <- lvl
		}()
		synctest.Wait()

		// Bounce low-high-low: the final low must hold the full window
		// from its own transition, not from the first one.
		line.edges <- hw.Low
		time.Sleep(3 * time.Millisecond)
		synctest.Wait()
		line.edges <- hw.High
		time.Sleep(time.Millisecond)
		synctest.Wait()
		line.edges <- hw.Low
		time.Sleep(3 * time.Millisecond)
		synctest.Wait()

		select {
		case <-got:
			t.Fatal("edge reported before retriggered window elapsed")
		default:
		}

		time.Sleep(2 * time.Millisecond)
		synctest.Wait()
		select {
		case lvl := <-got:
			if lvl != hw.Low {
				t.Errorf("edge = %v, want low", lvl)
			}
		default:
			t.Fatal("no edge after retriggered window elapsed")
		}
	})
}

// fakeActuator records the motor's current state.
type fakeActuator struct {
	mu sync.Mutex
	on bool
}

func (a *fakeActuator) Set(on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.on = on
}

func (a *fakeActuator) On() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.on
}

func TestHapticPulseExpires(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		act := &fakeActuator{}
		m := &Mux{
			logf:   t.Logf,
			haptic: act,
			buzz:   sticky.New[time.Duration]("haptic", 4),
		}
		go m.runHaptic(ctx)
		synctest.Wait()

		m.Buzz(60 * time.Millisecond)
		synctest.Wait()
		if !act.On() {
			t.Fatal("motor off right after buzz request")
		}

		time.Sleep(59 * time.Millisecond)
		synctest.Wait()
		if !act.On() {
			t.Fatal("motor stopped before pulse elapsed")
		}
		time.Sleep(2 * time.Millisecond)
		synctest.Wait()
		if act.On() {
			t.Fatal("motor still on after pulse elapsed")
		}
	})
}

func TestHapticRetriggerRestartsCountdown(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		act := &fakeActuator{}
		m := &Mux{
			logf:   t.Logf,
			haptic: act,
			buzz:   sticky.New[time.Duration]("haptic", 4),
		}
		go m.runHaptic(ctx)
		synctest.Wait()

		m.Buzz(60 * time.Millisecond)
		synctest.Wait()
		time.Sleep(30 * time.Millisecond)
		synctest.Wait()
		m.Buzz(60 * time.Millisecond)
		synctest.Wait()

		// 75ms after the first request: the first pulse alone would
		// have expired, but the retrigger restarted the countdown.
		time.Sleep(45 * time.Millisecond)
		synctest.Wait()
		if !act.On() {
			t.Fatal("retrigger did not restart the countdown")
		}

		time.Sleep(20 * time.Millisecond)
		synctest.Wait()
		if act.On() {
			t.Fatal("motor still on after retriggered pulse elapsed")
		}
	})
}

func TestButtonPressBuzzesAndNotifies(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var buttons [4]Line
		lines := make([]*fakeLine, 4)
		for i := range lines {
			lines[i] = newFakeLine()
			buttons[i] = lines[i]
		}
		accel := newFakeLine()
		act := &fakeActuator{}

		var mu sync.Mutex
		var events []Event
		m := NewMux(Config{
			Logf:     t.Logf,
			Buttons:  buttons,
			AccelInt: accel,
			Haptic:   act,
			Buzz:     sticky.New[time.Duration]("haptic", 4),
		})
		m.Notify = func(ev Event) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, ev)
		}
		go m.Run(ctx)
		synctest.Wait()

		lines[hw.TopRight].press()

		if !act.On() {
			t.Error("press did not start the motor")
		}
		mu.Lock()
		if len(events) != 1 || events[0] != (Event{Kind: ButtonPressed, Button: hw.TopRight}) {
			t.Errorf("events = %v, want one top-right press", events)
		}
		mu.Unlock()

		// The press pulse runs its course.
		time.Sleep(pressBuzz)
		synctest.Wait()
		if act.On() {
			t.Error("motor still on after press pulse elapsed")
		}
	})
}

func TestAccelTapNotifies(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var buttons [4]Line
		for i := range buttons {
			buttons[i] = newFakeLine()
		}
		accel := newFakeLine()
		m := NewMux(Config{
			Logf:     t.Logf,
			Buttons:  buttons,
			AccelInt: accel,
			Haptic:   &fakeActuator{},
			Buzz:     sticky.New[time.Duration]("haptic", 4),
		})
		got := make(chan Event, 1)
		m.Notify = func(ev Event) {
			select {
			case got <- ev:
			default:
			}
		}
		go m.Run(ctx)
		synctest.Wait()

		accel.press()

		select {
		case ev := <-got:
			if ev.Kind != AccelTap {
				t.Errorf("event kind = %v, want tap", ev.Kind)
			}
		default:
			t.Fatal("tap not reported")
		}
	})
}
