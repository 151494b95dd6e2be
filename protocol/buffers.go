package protocol

// InputBuffer is a window over received bytes
type InputBuffer interface {
	Data() []byte
	Available() int
	// Pop discards n bytes from the front
	Pop(n int)
}

// OutputBuffer accumulates outgoing bytes. Update and DataSince let a
// framer patch the length byte and checksum a block in place.
type OutputBuffer interface {
	Output(data []byte)
	CurPosition() int
	Update(pos int, val byte)
	DataSince(pos int) []byte
}

// SliceInputBuffer is an InputBuffer over a plain slice
type SliceInputBuffer struct {
	data []byte
}

func NewSliceInputBuffer(data []byte) *SliceInputBuffer {
	return &SliceInputBuffer{data: data}
}

func (s *SliceInputBuffer) Data() []byte   { return s.data }
func (s *SliceInputBuffer) Available() int { return len(s.data) }

func (s *SliceInputBuffer) Pop(n int) {
	if n > len(s.data) {
		n = len(s.data)
	}
	s.data = s.data[n:]
}

// ScratchOutput is a fixed-size OutputBuffer; writes past MessageMax are
// dropped and counted.
type ScratchOutput struct {
	buf     [MessageMax]byte
	pos     int
	dropped int
}

func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{}
}

func (s *ScratchOutput) Output(data []byte) {
	n := copy(s.buf[s.pos:], data)
	s.pos += n
	s.dropped += len(data) - n
}

func (s *ScratchOutput) CurPosition() int { return s.pos }

func (s *ScratchOutput) Update(pos int, val byte) {
	if pos >= 0 && pos < s.pos {
		s.buf[pos] = val
	}
}

func (s *ScratchOutput) DataSince(pos int) []byte {
	if pos < 0 || pos > s.pos {
		return nil
	}
	return s.buf[pos:s.pos]
}

// Result returns the bytes written so far. The slice is reused after Reset.
func (s *ScratchOutput) Result() []byte {
	return s.buf[:s.pos]
}

// Dropped reports how many bytes did not fit
func (s *ScratchOutput) Dropped() int { return s.dropped }

func (s *ScratchOutput) Reset() {
	s.pos = 0
	s.dropped = 0
}

// FifoBuffer is a byte ring used between the serial driver and the parser.
// One slot stays empty to tell full from empty.
type FifoBuffer struct {
	buf   []byte
	read  int
	write int
}

func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{buf: make([]byte, capacity)}
}

// Write appends as much of data as fits and returns the count
func (f *FifoBuffer) Write(data []byte) int {
	size := len(f.buf)
	n := 0
	for _, b := range data {
		next := (f.write + 1) % size
		if next == f.read {
			break
		}
		f.buf[f.write] = b
		f.write = next
		n++
	}
	return n
}

// Read moves up to len(data) bytes out of the ring
func (f *FifoBuffer) Read(data []byte) int {
	n := 0
	for n < len(data) && f.read != f.write {
		data[n] = f.buf[f.read]
		f.read = (f.read + 1) % len(f.buf)
		n++
	}
	return n
}

func (f *FifoBuffer) Available() int {
	if f.write >= f.read {
		return f.write - f.read
	}
	return len(f.buf) - f.read + f.write
}

func (f *FifoBuffer) Free() int {
	return len(f.buf) - f.Available() - 1
}

// Data returns the buffered bytes as one slice; a wrapped ring is copied
func (f *FifoBuffer) Data() []byte {
	if f.read <= f.write {
		return f.buf[f.read:f.write]
	}
	out := make([]byte, 0, f.Available())
	out = append(out, f.buf[f.read:]...)
	return append(out, f.buf[:f.write]...)
}

func (f *FifoBuffer) Pop(n int) {
	if avail := f.Available(); n > avail {
		n = avail
	}
	f.read = (f.read + n) % len(f.buf)
}

func (f *FifoBuffer) IsEmpty() bool { return f.read == f.write }

func (f *FifoBuffer) Reset() {
	f.read = 0
	f.write = 0
}
