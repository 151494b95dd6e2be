//go:build !linux

package gpio

import "time"

var clockStart = time.Now()

// MonotonicMicros returns microseconds since process start, truncated to
// 32 bits. It satisfies core.Clock.
func MonotonicMicros() uint32 {
	return uint32(time.Since(clockStart).Microseconds())
}
