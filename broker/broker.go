// Copyright (c) The WristOS Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package broker funnels network requests from the rest of the system
// through a single queue. The broker asserts radio demand while it has
// work, waits for the link, performs the request, and answers every
// caller through a per-kind completion signal, so concurrent requests
// for the same thing coalesce into one network operation.
package broker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wristos/wristos/logger"
	"github.com/wristos/wristos/sticky"
	"github.com/wristos/wristos/timesync"
)

// Kind identifies what a queued request asks for.
type Kind uint8

const (
	KindTime Kind = iota
	KindWeather
)

func (k Kind) String() string {
	switch k {
	case KindTime:
		return "time"
	case KindWeather:
		return "weather"
	}
	return "unknown"
}

var (
	// ErrUnimplemented is the answer for request kinds the broker
	// knows about but cannot serve yet.
	ErrUnimplemented = errors.New("broker: request kind not implemented")
	// ErrRadioUnavailable means the radio gave up while the request
	// was waiting for the link.
	ErrRadioUnavailable = errors.New("broker: radio unavailable")
)

const (
	// queueDepth bounds outstanding requests; submitters block when
	// it is full.
	queueDepth = 10
	// linkPollInterval is how often the broker re-checks the link
	// while waiting for it to come up.
	linkPollInterval = 100 * time.Millisecond

	// completionWaiters bounds concurrent callers joined on one
	// completion signal. Coalesced callers never occupy the queue, so
	// this is independent of queueDepth; it is sized to the tasks that
	// can plausibly want the same answer at once, with margin.
	completionWaiters = 8
)

// Link reports whether the network link is usable.
type Link interface {
	LinkUp() bool
}

// timeOutcome is the completion value for a time request.
type timeOutcome struct {
	res timesync.Result
	err error
}

// Broker owns the request queue and its worker. Run it in its own
// task; submit requests with GetTime and GetWeather.
type Broker struct {
	logf    logger.Logf
	demand  *sticky.Signal[bool]
	link    Link
	client  timesync.Client
	server  string
	timeout time.Duration

	queue chan Kind

	mu          sync.Mutex
	pending     map[Kind]bool
	timeDone    *sticky.Signal[timeOutcome]
	weatherDone *sticky.Signal[error]
}

// Config collects the broker's collaborators.
type Config struct {
	Logf   logger.Logf
	Demand *sticky.Signal[bool] // radio demand, shared with the lifecycle manager
	Link   Link
	Client timesync.Client
	Server string // time server host, e.g. "pool.ntp.org"

	// Timeout bounds each network operation. Zero means 5 seconds.
	Timeout time.Duration
}

func New(cfg Config) *Broker {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Broker{
		logf:        cfg.Logf,
		demand:      cfg.Demand,
		link:        cfg.Link,
		client:      cfg.Client,
		server:      cfg.Server,
		timeout:     timeout,
		queue:       make(chan Kind, queueDepth),
		pending:     make(map[Kind]bool),
		timeDone:    sticky.New[timeOutcome]("time-done", completionWaiters),
		weatherDone: sticky.New[error]("weather-done", completionWaiters),
	}
}

// GetTime requests the current time over the network and blocks until
// the broker answers. Concurrent callers share one network query.
func (b *Broker) GetTime(ctx context.Context) (timesync.Result, error) {
	if err := b.submit(ctx, KindTime); err != nil {
		return timesync.Result{}, err
	}
	out, err := b.timeDone.Wait(ctx)
	if err != nil {
		return timesync.Result{}, err
	}
	return out.res, out.err
}

// GetWeather requests a weather report. The network side is not
// built, so every request answers ErrUnimplemented; the queue path is
// exercised all the same so callers behave identically once it is.
func (b *Broker) GetWeather(ctx context.Context) error {
	if err := b.submit(ctx, KindWeather); err != nil {
		return err
	}
	res, err := b.weatherDone.Wait(ctx)
	if err != nil {
		return err
	}
	return res
}

// submit enqueues a request of kind k unless one is already pending,
// in which case the caller simply joins the outstanding one. The
// pending check, the completion reset and the queue send are ordered
// so a caller can never observe a stale completion value.
//
// There is an accepted window on the other side: a caller whose answer
// has been signaled but not yet read can have it replaced when the
// next submitter resets the completion, in which case it receives the
// later request's (fresher) result. Both are correct answers to the
// same question, so no caller is ever worse off.
func (b *Broker) submit(ctx context.Context, k Kind) error {
	b.mu.Lock()
	if b.pending[k] {
		b.mu.Unlock()
		return nil
	}
	b.pending[k] = true
	b.resetDone(k)
	b.mu.Unlock()

	select {
	case b.queue <- k:
		return nil
	case <-ctx.Done():
		b.mu.Lock()
		delete(b.pending, k)
		b.mu.Unlock()
		return ctx.Err()
	}
}

func (b *Broker) resetDone(k Kind) {
	switch k {
	case KindTime:
		b.timeDone.Reset()
	case KindWeather:
		b.weatherDone.Reset()
	}
}

// Run serves queued requests until ctx is done. Demand is asserted
// while network-bound work is outstanding and released once the queue
// drains, letting the radio power down between bursts.
func (b *Broker) Run(ctx context.Context) error {
	for {
		var k Kind
		select {
		case <-ctx.Done():
			return ctx.Err()
		case k = <-b.queue:
		}
		b.logf("serving %v request", k)
		b.serve(ctx, k)
		if len(b.queue) == 0 {
			b.demand.Signal(false)
		}
	}
}

func (b *Broker) serve(ctx context.Context, k Kind) {
	switch k {
	case KindTime:
		b.serveTime(ctx)
	case KindWeather:
		b.complete(k, func() { b.weatherDone.Signal(ErrUnimplemented) })
	default:
		b.logf("dropping unknown request kind %d", k)
		b.mu.Lock()
		delete(b.pending, k)
		b.mu.Unlock()
	}
}

func (b *Broker) serveTime(ctx context.Context) {
	b.demand.Signal(true)
	if err := b.awaitLink(ctx); err != nil {
		b.logf("time request failed waiting for link: %v", err)
		b.complete(KindTime, func() { b.timeDone.Signal(timeOutcome{err: err}) })
		return
	}
	res, err := b.client.Query(ctx, b.server, b.timeout)
	if err != nil {
		b.logf("time query failed: %v", err)
	} else {
		b.logf("time query ok: %v", res.Wall())
	}
	b.complete(KindTime, func() { b.timeDone.Signal(timeOutcome{res: res, err: err}) })
}

// complete answers the request's waiters and clears its pending mark
// in one step, so a submit racing the completion either joins before
// the answer lands or starts a fresh request after it.
func (b *Broker) complete(k Kind, signal func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, k)
	signal()
}

// awaitLink polls until the link is up. If demand is forced off in
// the meantime (the lifecycle manager giving up on the network), the
// wait fails instead of spinning against a dead radio.
func (b *Broker) awaitLink(ctx context.Context) error {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	dropped := make(chan struct{}, 1)
	go func() {
		_, err := sticky.WaitFor(waitCtx, b.demand, func(on bool) (struct{}, bool) {
			return struct{}{}, !on
		})
		if err == nil {
			dropped <- struct{}{}
		}
	}()

	tick := time.NewTicker(linkPollInterval)
	defer tick.Stop()
	for {
		if b.link.LinkUp() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-dropped:
			return ErrRadioUnavailable
		case <-tick.C:
		}
	}
}
