// Copyright (c) The WristOS Authors
// SPDX-License-Identifier: BSD-3-Clause

package hw

import "context"

// Battery voltage is sampled through a resistor divider; the raw
// reading scales by (360+100)/360 to recover millivolts. The charge
// percentage is linear between empty and full.
const (
	batteryEmptyMillivolts = 3400
	batteryFullMillivolts  = 4200

	// chargeSenseThreshold is the raw reading above which the charge
	// sense line indicates the charger is attached.
	chargeSenseThreshold = 3000
)

// BatteryStatus is one sampled battery reading.
type BatteryStatus struct {
	millivolts uint32
}

// Voltage returns the battery voltage in mV.
func (s BatteryStatus) Voltage() uint32 { return s.millivolts }

// Percent returns the charge percentage, clamped to [0, 100].
func (s BatteryStatus) Percent() uint8 {
	mv := s.millivolts
	if mv <= batteryEmptyMillivolts {
		return 0
	}
	pct := (mv - batteryEmptyMillivolts) * 100 / (batteryFullMillivolts - batteryEmptyMillivolts)
	return uint8(min(pct, 100))
}

// BatteryDriver retrieves the battery status by sampling the ADC.
type BatteryDriver struct {
	sense  SampleReader // battery voltage divider
	charge SampleReader // charger sense line
}

func NewBatteryDriver(sense, charge SampleReader) *BatteryDriver {
	return &BatteryDriver{sense: sense, charge: charge}
}

// Status samples the battery voltage. A read failure is returned to
// the caller, who decides whether to retry or substitute a default.
func (d *BatteryDriver) Status(ctx context.Context) (BatteryStatus, error) {
	raw, err := BlockOn(ctx, d.sense.ReadSample)
	if err != nil {
		return BatteryStatus{}, err
	}
	mv := uint32(raw) * (360 + 100) / 360
	return BatteryStatus{millivolts: mv}, nil
}

// Charging reports whether the charger is attached. Read failures
// report not-charging.
func (d *BatteryDriver) Charging(ctx context.Context) bool {
	raw, err := BlockOn(ctx, d.charge.ReadSample)
	if err != nil {
		return false
	}
	return raw > chargeSenseThreshold
}
