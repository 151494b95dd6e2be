package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

var (
	// debugPrintln is set by platform code (UART, USB, stderr)
	debugPrintln DebugWriter = func(s string) {}

	// debugEnabled gates all output; the soft-PWM loop runs with it off
	debugEnabled bool

	// Async debug output channel
	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// InitAsyncDebug starts the async debug output goroutine.
// Call this from main() after SetDebugWriter.
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	go debugOutputWorker()
}

func debugOutputWorker() {
	for msg := range debugChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug message synchronously
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a debug message without blocking.
// Messages are dropped when the queue is full.
func DebugAsync(msg string) {
	if !debugEnabled || debugChan == nil {
		return
	}
	select {
	case debugChan <- msg:
	default:
	}
}
