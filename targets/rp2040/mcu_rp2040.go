//go:build rp2040

package main

const (
	mcuName = "rp2040"

	// TIMER at 0x40054000; TIMERAWL is the unlatched low word
	timerRawLAddr = 0x40054000 + 0x0C
)

// GPIO0-GPIO29
var nativePinCount = 30
