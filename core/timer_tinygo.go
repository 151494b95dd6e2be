//go:build tinygo

package core

import "sync/atomic"

var (
	systemTicksValue uint32
	uptimeWrapsValue uint32
)

// getSystemTicks returns the current system ticks
func getSystemTicks() uint32 {
	return atomic.LoadUint32(&systemTicksValue)
}

// setSystemTicks sets the system ticks
func setSystemTicks(ticks uint32) {
	atomic.StoreUint32(&systemTicksValue, ticks)
}

func getUptimeWraps() uint32 {
	return atomic.LoadUint32(&uptimeWrapsValue)
}

func setUptimeWraps(n uint32) {
	atomic.StoreUint32(&uptimeWrapsValue, n)
}

func addUptimeWrap() {
	atomic.AddUint32(&uptimeWrapsValue, 1)
}
