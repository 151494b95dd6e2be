package core

import "sync/atomic"

// HostLink hands a host reconnect from the USB reader goroutine to the main
// loop. The reader only moves bytes into the input FIFO; the loop owns the
// transport and firmware state and performs the reset.
type HostLink struct {
	disconnected uint32 // atomic bool, set by the loop
	resetPending uint32 // atomic bool, set by the reader, cleared by the loop
}

// MarkDisconnected records that writes to the host keep failing.
// Main loop context.
func (l *HostLink) MarkDisconnected() {
	atomic.StoreUint32(&l.disconnected, 1)
}

// ReaderReady reports whether the reader may push input bytes. The first
// call after a disconnect raises a reset request, and it returns false
// until the loop has finished that reset. Reader context.
func (l *HostLink) ReaderReady() bool {
	if atomic.SwapUint32(&l.disconnected, 0) != 0 {
		atomic.StoreUint32(&l.resetPending, 1)
	}
	return atomic.LoadUint32(&l.resetPending) == 0
}

// ResetPending reports whether the reader is waiting for a reset.
// Main loop context.
func (l *HostLink) ResetPending() bool {
	return atomic.LoadUint32(&l.resetPending) != 0
}

// ResetDone releases the reader after the loop has reset its state
func (l *HostLink) ResetDone() {
	atomic.StoreUint32(&l.resetPending, 0)
}
