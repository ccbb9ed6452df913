// Copyright (c) The WristOS Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package timesync fetches the current time from an NTP server and
// classifies failures, so the radio lifecycle manager can count them
// as failed attempts without caring about the transport details.
package timesync

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/beevik/ntp"

	"github.com/wristos/wristos/logger"
)

// Failure classes. Every Query error wraps exactly one of these.
var (
	ErrBadTimestamp = errors.New("timesync: bad timestamp")
	ErrBadMode      = errors.New("timesync: bad protocol mode")
	ErrMalformed    = errors.New("timesync: malformed response")
	ErrTransport    = errors.New("timesync: transport failure")
	ErrResolve      = errors.New("timesync: address resolution failure")
)

// Result is one successful time reading: the server's notion of the
// current wall time, split the way the wire carries it.
type Result struct {
	// Seconds is whole seconds since the Unix epoch.
	Seconds int64
	// Subseconds is the fractional second in 1/2^32 units.
	Subseconds uint32
}

// Wall returns the reading as a Duration since the Unix epoch.
func (r Result) Wall() time.Duration {
	frac := time.Duration(uint64(r.Subseconds) * uint64(time.Second) >> 32)
	return time.Duration(r.Seconds)*time.Second + frac
}

// resultFromWall splits a wall reading into Result form.
func resultFromWall(wall time.Duration) Result {
	sec := wall / time.Second
	rem := wall - sec*time.Second
	return Result{
		Seconds:    int64(sec),
		Subseconds: uint32(uint64(rem) << 32 / uint64(time.Second)),
	}
}

// Client fetches the current time from a server. Implementations
// return an error wrapping one of this package's failure classes; a
// zero Result is never returned with a nil error.
type Client interface {
	Query(ctx context.Context, server string, timeout time.Duration) (Result, error)
}

// NTPClient is the production Client, backed by SNTP.
type NTPClient struct {
	logf logger.Logf
}

func NewNTPClient(logf logger.Logf) *NTPClient {
	return &NTPClient{logf: logf}
}

// Query asks server for the current time, waiting at most timeout.
func (c *NTPClient) Query(ctx context.Context, server string, timeout time.Duration) (Result, error) {
	resp, err := ntp.QueryWithOptions(server, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		err = classify(err)
		c.logf("query %s failed: %v", server, err)
		return Result{}, err
	}
	if err := resp.Validate(); err != nil {
		err = classify(err)
		c.logf("response from %s rejected: %v", server, err)
		return Result{}, err
	}
	wall := time.Duration(time.Now().Add(resp.ClockOffset).UnixNano())
	return resultFromWall(wall), nil
}

// classify wraps err in the matching failure class.
func classify(err error) error {
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &dnsErr):
		return wrap(ErrResolve, err)
	case errors.Is(err, ntp.ErrInvalidMode),
		errors.Is(err, ntp.ErrInvalidProtocolVersion):
		return wrap(ErrBadMode, err)
	case errors.Is(err, ntp.ErrInvalidTransmitTime),
		errors.Is(err, ntp.ErrServerTickedBackwards),
		errors.Is(err, ntp.ErrServerClockFreshness):
		return wrap(ErrBadTimestamp, err)
	case errors.Is(err, ntp.ErrInvalidStratum),
		errors.Is(err, ntp.ErrInvalidLeapSecond),
		errors.Is(err, ntp.ErrInvalidDispersion),
		errors.Is(err, ntp.ErrKissOfDeath),
		errors.Is(err, ntp.ErrServerResponseMismatch):
		return wrap(ErrMalformed, err)
	default:
		return wrap(ErrTransport, err)
	}
}

func wrap(class, cause error) error {
	return errors.Join(class, cause)
}
