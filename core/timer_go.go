//go:build !tinygo

package core

var (
	systemTicks uint32
	uptimeWraps uint32
)

// getSystemTicks returns the current system ticks (regular Go implementation)
func getSystemTicks() uint32 {
	return systemTicks
}

// setSystemTicks sets the system ticks (regular Go implementation)
func setSystemTicks(ticks uint32) {
	systemTicks = ticks
}

func getUptimeWraps() uint32 {
	return uptimeWraps
}

func setUptimeWraps(n uint32) {
	uptimeWraps = n
}

func addUptimeWrap() {
	uptimeWraps++
}
