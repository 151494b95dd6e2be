package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultAckTimeout bounds how long SendCommand waits for the MCU
const DefaultAckTimeout = 2 * time.Second

var ErrTransportClosed = errors.New("transport closed")

// ResponseHandler receives every response block; data starts after the ID
type ResponseHandler func(cmdID uint16, data *[]byte) error

// Message is one received block
type Message struct {
	Sequence uint8
	Payload  []byte // between header and trailer
}

// HostTransport is the host side of the link: it sends commands one at a
// time, waits for their ACK and collects responses in the background.
type HostTransport struct {
	port io.ReadWriteCloser

	currentSeq uint32 // atomic uint8, 0x10-0x1F

	sendMu sync.Mutex // one outstanding command at a time
	readMu sync.Mutex

	parser frameParser
	input  *FifoBuffer

	ackChan      chan *Message
	responseChan chan *Message

	handlerMu       sync.RWMutex
	responseHandler ResponseHandler

	closeOnce sync.Once
	stopChan  chan struct{}
	doneChan  chan struct{}
}

// NewHostTransport starts reading from port
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:         port,
		currentSeq:   MessageDest,
		parser:       newFrameParser(),
		input:        NewFifoBuffer(4 * MessageMax),
		ackChan:      make(chan *Message, 1),
		responseChan: make(chan *Message, 16),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// SendCommand sends a command and waits for its ACK
func (t *HostTransport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	return t.SendCommandWithTimeout(cmdID, args, DefaultAckTimeout)
}

// SendCommandWithTimeout sends a command and waits up to timeout for its ACK
func (t *HostTransport) SendCommandWithTimeout(cmdID uint16, args func(output OutputBuffer), timeout time.Duration) error {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	scratch := NewScratchOutput()
	EncodeVLQUint(scratch, uint32(cmdID))
	if args != nil {
		args(scratch)
	}

	seq := t.GetCurrentSequence()
	msg, err := EncodeMessage(seq, scratch.Result())
	if err != nil {
		return fmt.Errorf("encode command %d: %w", cmdID, err)
	}

	if _, err := t.port.Write(msg); err != nil {
		return fmt.Errorf("write command %d: %w", cmdID, err)
	}

	return t.waitForAck(nextSeq(seq), timeout)
}

// waitForAck waits for the MCU to acknowledge the block just sent. The ACK
// carries the sequence it expects next.
func (t *HostTransport) waitForAck(want uint8, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-t.ackChan:
			if ack.Sequence != want {
				// A NAK for an earlier block; keep waiting for ours
				continue
			}
			atomic.StoreUint32(&t.currentSeq, uint32(want))
			return nil
		case <-timer.C:
			return fmt.Errorf("ACK timeout after %v", timeout)
		case <-t.stopChan:
			return ErrTransportClosed
		}
	}
}

// ReceiveResponse returns the next response block
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (*Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-t.responseChan:
		return resp, nil
	case <-timer.C:
		return nil, fmt.Errorf("response timeout after %v", timeout)
	case <-t.stopChan:
		return nil, ErrTransportClosed
	}
}

// SetResponseHandler installs a callback run for every response block
func (t *HostTransport) SetResponseHandler(handler ResponseHandler) {
	t.handlerMu.Lock()
	defer t.handlerMu.Unlock()
	t.responseHandler = handler
}

func (t *HostTransport) readLoop() {
	defer close(t.doneChan)

	buf := make([]byte, 256)
	for {
		n, err := t.port.Read(buf)
		if n > 0 {
			t.processInput(buf[:n])
		}
		if err == nil {
			continue
		}

		select {
		case <-t.stopChan:
			return
		default:
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
			return
		}
		// Serial read timeouts surface as errors on some platforms
		time.Sleep(10 * time.Millisecond)
	}
}

func (t *HostTransport) processInput(data []byte) {
	t.readMu.Lock()
	defer t.readMu.Unlock()

	for len(data) > 0 {
		n := t.input.Write(data)
		data = data[n:]

		consumed := t.parser.parse(t.input.Data(), nil, func(seq uint8, payload []byte) {
			t.dispatchMessage(&Message{
				Sequence: seq,
				Payload:  append([]byte(nil), payload...),
			})
		})
		t.input.Pop(consumed)

		if n == 0 && consumed == 0 {
			// Ring full of bytes that never form a block
			t.input.Reset()
			t.parser.synchronized = false
		}
	}
}

// dispatchMessage routes empty blocks to the ACK channel and everything
// else to the response handler and channel.
func (t *HostTransport) dispatchMessage(msg *Message) {
	if len(msg.Payload) == 0 {
		// Keep only the newest ACK
		select {
		case <-t.ackChan:
		default:
		}
		t.ackChan <- msg
		return
	}

	t.handlerMu.RLock()
	handler := t.responseHandler
	t.handlerMu.RUnlock()
	if handler != nil {
		payload := msg.Payload
		if cmdID, err := DecodeVLQUint(&payload); err == nil {
			_ = handler(uint16(cmdID), &payload)
		}
	}

	select {
	case t.responseChan <- msg:
	default:
		// Full: drop the oldest response
		select {
		case <-t.responseChan:
		default:
		}
		t.responseChan <- msg
	}
}

// Close stops the reader and closes the port
func (t *HostTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stopChan)
		// Closing the port unblocks the pending Read
		err = t.port.Close()
		<-t.doneChan
	})
	return err
}

// Reset restarts the sequence and drops anything buffered
func (t *HostTransport) Reset() {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	t.readMu.Lock()
	defer t.readMu.Unlock()

	atomic.StoreUint32(&t.currentSeq, MessageDest)
	t.parser = newFrameParser()
	t.input.Reset()

	for len(t.ackChan) > 0 {
		<-t.ackChan
	}
	for len(t.responseChan) > 0 {
		<-t.responseChan
	}
}

// GetCurrentSequence returns the sequence the next command will use
func (t *HostTransport) GetCurrentSequence() uint8 {
	return uint8(atomic.LoadUint32(&t.currentSeq))
}
