// Copyright (c) The WristOS Authors
// SPDX-License-Identifier: BSD-3-Clause

// The wristd command runs the watch runtime against simulated
// hardware, for development on a desktop. Keys 1-4 press the buttons,
// a taps the accelerometer, c attaches the charger.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wristos/wristos"
	"github.com/wristos/wristos/input"
	"github.com/wristos/wristos/logger"
	"github.com/wristos/wristos/timesync"
	"github.com/wristos/wristos/wristtime"
)

var (
	server  = flag.String("server", "pool.ntp.org", "time server to query")
	useNTP  = flag.Bool("ntp", false, "sync over real SNTP instead of the host clock")
	tz      = flag.String("tz", "Local", "timezone to render frames in")
	flaky   = flag.Float64("flakiness", 0, "probability that a simulated connect attempt fails")
	battery = flag.Int("battery", 2975, "raw battery sample the simulated ADC reads")
)

func main() {
	flag.Parse()
	logf := logger.System()

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		log.Fatalf("bad -tz: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var buttons [4]*simLine
	var buttonLines [4]input.Line
	for i := range buttons {
		buttons[i] = newSimLine()
		buttonLines[i] = buttons[i]
	}
	accel := newSimLine()
	charger := newSimLine()
	go readKeys(ctx, logf, buttons, accel, charger)

	var client timesync.Client = hostClient{}
	if *useNTP {
		client = timesync.NewNTPClient(logger.WithPrefix(logf, "ntp: "))
	}

	sys := wristos.New(wristos.Config{
		Logf:         logf,
		Counter:      wristtime.NewSystemCounter(),
		Buttons:      buttonLines,
		AccelInt:     accel,
		ChargingLine: charger,
		Haptic:       &simHaptic{logf: logger.WithPrefix(logf, "haptic: ")},
		BatterySense: &simADC{raw: *battery},
		ChargeSense:  &simADC{raw: 0},
		Renderer:     &consoleRenderer{logf: logger.WithPrefix(logf, "face: ")},
		Status:       &simStatus{}, // plain reset
		Radio:        &simRadio{logf: logf, flakiness: *flaky},
		Stack:        &simStack{},
		TimeClient:   client,
		TimeServer:   *server,
		Location:     loc,
	})

	if err := sys.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("wristd: %v", err)
	}
}
