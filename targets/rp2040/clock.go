//go:build rp2040 || rp2350

package main

import (
	"runtime/volatile"
	"unsafe"

	"softpwm/core"
)

// Low word of the free-running 64-bit microsecond TIMER; the address is
// per chip (mcu_*.go)
var timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerRawLAddr)))

// InitClock publishes the MCU name; CLOCK_FREQ comes from the core commands
func InitClock() {
	core.RegisterConstant("MCU", mcuName)
	core.ResetTime()
	UpdateSystemTime()
}

// GetHardwareTime returns the low word of the microsecond counter
func GetHardwareTime() uint32 {
	return timerRAWL.Get()
}

// UpdateSystemTime feeds the hardware counter into the core clock.
// Call it at least once per 2^32 us so wraps are counted.
func UpdateSystemTime() {
	core.SetTime(GetHardwareTime())
}
