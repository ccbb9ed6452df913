// Copyright (c) The WristOS Authors
// SPDX-License-Identifier: BSD-3-Clause

package hw

import "fmt"

// Button identifies one of the four case buttons.
type Button uint8

const (
	BottomLeft Button = iota
	TopLeft
	TopRight
	BottomRight
)

func (b Button) String() string {
	switch b {
	case BottomLeft:
		return "bottom-left"
	case TopLeft:
		return "top-left"
	case TopRight:
		return "top-right"
	case BottomRight:
		return "bottom-right"
	}
	return fmt.Sprintf("Button(%d)", uint8(b))
}

// SleepSource is the hardware's coarse report of what ended sleep.
type SleepSource uint8

const (
	// SourceUndefined means no sleep wake occurred: first boot or a
	// manual reset.
	SourceUndefined SleepSource = iota
	// SourceExt0 is the external RTC alarm line.
	SourceExt0
	// SourceExt1 is the button wake bank; the status register's mask
	// says which line fired.
	SourceExt1
	// SourceTimer is the internal wake timer.
	SourceTimer
	// SourceOther covers sources this device never arms.
	SourceOther
)

// Wake-bank bit assignments for the button lines.
const (
	maskTopRight    uint32 = 1 << 5
	maskTopLeft     uint32 = 1 << 6
	maskBottomLeft  uint32 = 1 << 7
	maskBottomRight uint32 = 1 << 10
)

// StatusRegister reads the hardware wake status at boot.
type StatusRegister interface {
	// WakeSource reports what woke the device.
	WakeSource() SleepSource
	// Ext1Bits reports the raw wake-bank status mask. Only meaningful
	// when WakeSource is SourceExt1.
	Ext1Bits() uint32
}

// WakeKind classifies a wake cause.
type WakeKind uint8

const (
	// WakeReset is a first boot or manual reset.
	WakeReset WakeKind = iota
	// WakeRTCAlarm means the external RTC told us to wake up.
	WakeRTCAlarm
	// WakeButton means one of the case buttons was pressed.
	WakeButton
	// WakeUnknownMask is a wake-bank wake whose mask matches no
	// button line. Reported distinctly so the condition is observable.
	WakeUnknownMask
	// WakeUnknownSource is a wake source this device never arms.
	WakeUnknownSource
)

// WakeCause is the classified reason the device woke up.
type WakeCause struct {
	Kind   WakeKind
	Button Button      // valid when Kind is WakeButton
	Mask   uint32      // valid when Kind is WakeUnknownMask
	Source SleepSource // valid when Kind is WakeUnknownSource
}

func (c WakeCause) String() string {
	switch c.Kind {
	case WakeReset:
		return "reset"
	case WakeRTCAlarm:
		return "external rtc alarm"
	case WakeButton:
		return "button press: " + c.Button.String()
	case WakeUnknownMask:
		return fmt.Sprintf("unknown wake mask %#x", c.Mask)
	case WakeUnknownSource:
		return fmt.Sprintf("unknown wake source %d", c.Source)
	}
	return fmt.Sprintf("WakeCause(%d)", c.Kind)
}

// ClassifyWake maps the raw status register to a WakeCause.
func ClassifyWake(reg StatusRegister) WakeCause {
	switch src := reg.WakeSource(); src {
	case SourceExt0:
		return WakeCause{Kind: WakeRTCAlarm}
	case SourceExt1:
		switch bits := reg.Ext1Bits(); bits {
		case maskBottomLeft:
			return WakeCause{Kind: WakeButton, Button: BottomLeft}
		case maskTopLeft:
			return WakeCause{Kind: WakeButton, Button: TopLeft}
		case maskTopRight:
			return WakeCause{Kind: WakeButton, Button: TopRight}
		case maskBottomRight:
			return WakeCause{Kind: WakeButton, Button: BottomRight}
		default:
			return WakeCause{Kind: WakeUnknownMask, Mask: bits}
		}
	case SourceUndefined:
		return WakeCause{Kind: WakeReset}
	default:
		return WakeCause{Kind: WakeUnknownSource, Source: src}
	}
}
