package protocol

import "sync/atomic"

// CommandHandler runs one decoded command; it consumes its arguments from data
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the firmware side of the link: it acknowledges host blocks,
// dispatches their commands and frames responses.
type Transport struct {
	parser frameParser

	// Sequence the host must send next. ACKs and responses carry it too.
	nextSequence uint32 // atomic uint8

	output        OutputBuffer
	handler       CommandHandler
	errorHandler  func(cmdID uint16, err error)
	resetCallback func()
	flushCallback func()
}

func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	return &Transport{
		parser:       newFrameParser(),
		nextSequence: MessageDest,
		output:       output,
		handler:      handler,
	}
}

// Receive consumes every complete block in input. Each block is answered
// with an ACK, or a NAK carrying the expected sequence when it was out of
// order.
func (t *Transport) Receive(input InputBuffer) {
	consumed := t.parser.parse(input.Data(), t.encodeAckNak, func(seq uint8, payload []byte) {
		expected := t.sequence()

		// Host restarted its sequence: drop ours and start over
		if seq == MessageDest && expected != MessageDest {
			atomic.StoreUint32(&t.nextSequence, MessageDest)
			expected = MessageDest
			if t.resetCallback != nil {
				t.resetCallback()
			}
		}

		if seq == expected {
			atomic.StoreUint32(&t.nextSequence, uint32(nextSeq(seq)))
			t.dispatch(payload)
		}
		t.encodeAckNak()
	})
	input.Pop(consumed)
}

// dispatch runs every command in a block. A handler that panics forces a
// resync rather than taking the firmware down.
func (t *Transport) dispatch(frame []byte) {
	defer func() {
		if r := recover(); r != nil {
			t.parser.synchronized = false
		}
	}()

	for len(frame) > 0 {
		cmdID, err := DecodeVLQUint(&frame)
		if err != nil {
			t.parser.synchronized = false
			return
		}
		if t.handler == nil {
			continue
		}
		if err := t.handler(uint16(cmdID), &frame); err != nil {
			// Remaining arguments can't be located once a handler fails
			if t.errorHandler != nil {
				t.errorHandler(uint16(cmdID), err)
			}
			return
		}
	}
}

// encodeAckNak writes an empty block carrying the next expected sequence
// and flushes it ahead of any queued responses.
func (t *Transport) encodeAckNak() {
	seq := t.sequence()
	block := [MessageLengthMin]byte{MessageLengthMin, seq}
	copy(block[MessageHeaderSize:], trailer(block[:MessageHeaderSize]))
	t.output.Output(block[:])

	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// EncodeFrame writes one block whose payload is produced by frameData.
// Responses share the current sequence; it only advances on receive.
func (t *Transport) EncodeFrame(frameData func(output OutputBuffer)) {
	start := t.output.CurPosition()
	t.output.Output([]byte{0, t.sequence()})
	frameData(t.output)

	t.output.Update(start+MessagePositionLen, uint8(len(t.output.DataSince(start))+MessageTrailerSize))
	t.output.Output(trailer(t.output.DataSince(start)))
}

// SendCommand frames a command or response with its arguments
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) {
	t.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
}

// Reset returns the transport to its power-on state, e.g. after USB reconnect
func (t *Transport) Reset() {
	t.parser = newFrameParser()
	atomic.StoreUint32(&t.nextSequence, MessageDest)
	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// SetResetCallback sets the function run when the host restarts its sequence
func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

// SetFlushCallback sets the function that pushes ACKs out immediately
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}

// SetErrorHandler sets the function told about failed commands
func (t *Transport) SetErrorHandler(handler func(cmdID uint16, err error)) {
	t.errorHandler = handler
}

func (t *Transport) sequence() uint8 {
	return uint8(atomic.LoadUint32(&t.nextSequence))
}
