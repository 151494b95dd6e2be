package core

// TimerFreq is the clock rate of GetTime. All supported targets expose a
// free-running 1MHz counter, so one tick is one microsecond.
const TimerFreq = 1000000

// GetTime returns the current 32-bit microsecond clock.
// The counter wraps modulo 2^32; compare times with unsigned subtraction.
func GetTime() uint32 {
	return getSystemTicks()
}

// SetTime feeds the clock from hardware (or from tests).
// A value lower than the previous one is counted as a wrap for GetUptime.
func SetTime(ticks uint32) {
	if ticks < getSystemTicks() {
		addUptimeWrap()
	}
	setSystemTicks(ticks)
}

// GetUptime returns the 64-bit microsecond uptime, extending the 32-bit
// counter with the number of wraps seen by SetTime.
func GetUptime() uint64 {
	return uint64(getUptimeWraps())<<32 | uint64(GetTime())
}

// ResetTime zeroes the clock and the wrap counter.
func ResetTime() {
	setSystemTicks(0)
	setUptimeWraps(0)
}
