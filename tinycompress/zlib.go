// Package tinycompress writes zlib streams without the deflate compressor.
//
// Output uses stored (uncompressed) deflate blocks, so any zlib reader can
// inflate it while the firmware avoids compress/flate's large tables.
package tinycompress

import (
	"errors"
	"hash/adler32"
	"io"
)

const (
	// zlib CMF/FLG: deflate, 32K window, default level, FCHECK valid
	zlibCMF = 0x78
	zlibFLG = 0x9C

	// maxStoredBlock is the largest LEN a stored block can carry
	maxStoredBlock = 0xFFFF
)

var ErrClosed = errors.New("tinycompress: write after close")

// Writer buffers everything written and emits the zlib stream on Close
type Writer struct {
	output io.Writer
	input  []byte
	closed bool
}

// NewWriter returns a Writer. sizeHint preallocates the input buffer;
// allocation during Write is slow on some TinyGo schedulers.
func NewWriter(w io.Writer, sizeHint int) *Writer {
	return &Writer{
		output: w,
		input:  make([]byte, 0, sizeHint),
	}
}

func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrClosed
	}
	w.input = append(w.input, p...)
	return len(p), nil
}

// Close writes header, stored blocks and the Adler-32 trailer
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	_, err := w.output.Write(Encode(w.input))
	return err
}

// Encode returns data wrapped as a zlib stream of stored blocks
func Encode(data []byte) []byte {
	blocks := (len(data) + maxStoredBlock - 1) / maxStoredBlock
	if blocks == 0 {
		blocks = 1
	}
	out := make([]byte, 0, 2+blocks*5+len(data)+4)
	out = append(out, zlibCMF, zlibFLG)

	rest := data
	for {
		n := len(rest)
		if n > maxStoredBlock {
			n = maxStoredBlock
		}
		final := byte(0)
		if n == len(rest) {
			final = 1
		}
		length := uint16(n)
		// BFINAL bit, BTYPE=00, then LEN and NLEN little endian
		out = append(out, final, byte(length), byte(length>>8), byte(^length), byte(^length>>8))
		out = append(out, rest[:n]...)
		rest = rest[n:]
		if final == 1 {
			break
		}
	}

	sum := adler32.Checksum(data)
	return append(out, byte(sum>>24), byte(sum>>16), byte(sum>>8), byte(sum))
}
