//go:build linux

package gpio

import "golang.org/x/sys/unix"

// MonotonicMicros reads CLOCK_MONOTONIC in microseconds, truncated to 32
// bits. It wraps about every 71 minutes, which core.SoftPWM tolerates.
// It satisfies core.Clock.
func MonotonicMicros() uint32 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return uint32(ts.Nano() / 1000)
}
