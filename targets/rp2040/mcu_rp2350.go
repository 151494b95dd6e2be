//go:build rp2350

package main

const (
	mcuName = "rp2350"

	// TIMER0 moved to 0x400B0000 and TIMERAWL to offset 0x28
	timerRawLAddr = 0x400B0000 + 0x28
)

// rp2350Package picks the pin count: the RP2350A (Pico 2) has GPIO0-29,
// the RP2350B GPIO0-47. Build with -ldflags "-X main.rp2350Package=B"
// for the larger package.
var rp2350Package = "A"

var nativePinCount = 30

func init() {
	if rp2350Package == "B" {
		nativePinCount = 48
	}
}
