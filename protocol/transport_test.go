package protocol

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"
)

func block(t *testing.T, seq uint8, values ...uint32) []byte {
	t.Helper()
	out := NewScratchOutput()
	for _, v := range values {
		EncodeVLQUint(out, v)
	}
	msg, err := EncodeMessage(seq, out.Result())
	if err != nil {
		t.Fatal(err)
	}
	return msg
}

func ack(t *testing.T, seq uint8) []byte {
	t.Helper()
	msg, err := EncodeMessage(seq, nil)
	if err != nil {
		t.Fatal(err)
	}
	return msg
}

func TestTransportAcksAndDispatches(t *testing.T) {
	out := NewScratchOutput()
	var got []uint32
	tr := NewTransport(out, func(cmdID uint16, data *[]byte) error {
		v, err := DecodeVLQUint(data)
		got = append(got, uint32(cmdID), v)
		return err
	})

	tr.Receive(NewSliceInputBuffer(block(t, 0x10, 5, 42, 6, 7)))

	if len(got) != 4 || got[0] != 5 || got[1] != 42 || got[2] != 6 || got[3] != 7 {
		t.Errorf("dispatched %v", got)
	}
	if !bytes.Equal(out.Result(), ack(t, 0x11)) {
		t.Errorf("ACK = %x, want %x", out.Result(), ack(t, 0x11))
	}
}

func TestTransportNaksOutOfOrder(t *testing.T) {
	out := NewScratchOutput()
	calls := 0
	tr := NewTransport(out, func(cmdID uint16, data *[]byte) error {
		calls++
		_, err := DecodeVLQUint(data)
		return err
	})

	tr.Receive(NewSliceInputBuffer(block(t, 0x10, 1, 0)))
	out.Reset()
	tr.Receive(NewSliceInputBuffer(block(t, 0x13, 1, 0)))

	if calls != 1 {
		t.Errorf("handler ran %d times, want 1", calls)
	}
	if !bytes.Equal(out.Result(), ack(t, 0x11)) {
		t.Errorf("NAK = %x, want expected sequence 0x11", out.Result())
	}
}

func TestTransportSequenceWraps(t *testing.T) {
	out := NewScratchOutput()
	tr := NewTransport(out, nil)

	seq := uint8(MessageDest)
	for i := 0; i < 17; i++ {
		tr.Receive(NewSliceInputBuffer(block(t, seq)))
		seq = nextSeq(seq)
	}
	if tr.sequence() != 0x11 {
		t.Errorf("sequence after 17 blocks = 0x%02x, want 0x11", tr.sequence())
	}
}

func TestTransportHostReset(t *testing.T) {
	out := NewScratchOutput()
	resets := 0
	tr := NewTransport(out, nil)
	tr.SetResetCallback(func() { resets++ })

	tr.Receive(NewSliceInputBuffer(block(t, 0x10)))
	tr.Receive(NewSliceInputBuffer(block(t, 0x11)))
	tr.Receive(NewSliceInputBuffer(block(t, 0x10)))

	if resets != 1 {
		t.Errorf("resets = %d, want 1", resets)
	}
	if tr.sequence() != 0x11 {
		t.Errorf("sequence = 0x%02x, want 0x11", tr.sequence())
	}
}

func TestTransportHandlerError(t *testing.T) {
	out := NewScratchOutput()
	failure := errors.New("bad args")
	var reported error
	calls := 0
	tr := NewTransport(out, func(cmdID uint16, data *[]byte) error {
		calls++
		return failure
	})
	tr.SetErrorHandler(func(cmdID uint16, err error) { reported = err })

	tr.Receive(NewSliceInputBuffer(block(t, 0x10, 3, 4)))

	if calls != 1 {
		t.Errorf("handler ran %d times, want 1", calls)
	}
	if !errors.Is(reported, failure) {
		t.Errorf("reported = %v", reported)
	}
	if !bytes.Equal(out.Result(), ack(t, 0x11)) {
		t.Error("failed command should still be acknowledged")
	}
}

func TestTransportKeepsPartialInput(t *testing.T) {
	out := NewScratchOutput()
	tr := NewTransport(out, nil)
	msg := block(t, 0x10, 1)

	in := NewFifoBuffer(64)
	in.Write(msg[:3])
	tr.Receive(in)
	if in.Available() != 3 || len(out.Result()) != 0 {
		t.Fatalf("partial block consumed: %d left, output %x", in.Available(), out.Result())
	}

	in.Write(msg[3:])
	tr.Receive(in)
	if !in.IsEmpty() || !bytes.Equal(out.Result(), ack(t, 0x11)) {
		t.Errorf("completed block not handled: output %x", out.Result())
	}
}

func TestSendCommandFraming(t *testing.T) {
	out := NewScratchOutput()
	tr := NewTransport(out, nil)
	tr.SendCommand(9, func(output OutputBuffer) {
		EncodeVLQUint(output, 1000)
	})

	want := block(t, MessageDest, 9, 1000)
	if !bytes.Equal(out.Result(), want) {
		t.Errorf("frame = %x, want %x", out.Result(), want)
	}
}

// startFakeMCU connects a HostTransport to a Transport over an in-memory pipe
func startFakeMCU(t *testing.T, handler func(mcu *Transport, cmdID uint16, data *[]byte) error) *HostTransport {
	t.Helper()
	hostEnd, mcuEnd := net.Pipe()

	out := NewScratchOutput()
	var mcu *Transport
	mcu = NewTransport(out, func(cmdID uint16, data *[]byte) error {
		return handler(mcu, cmdID, data)
	})

	go func() {
		in := NewFifoBuffer(1024)
		buf := make([]byte, 256)
		for {
			n, err := mcuEnd.Read(buf)
			if err != nil {
				return
			}
			in.Write(buf[:n])
			mcu.Receive(in)
			if len(out.Result()) > 0 {
				if _, err := mcuEnd.Write(out.Result()); err != nil {
					return
				}
				out.Reset()
			}
		}
	}()

	host := NewHostTransport(hostEnd)
	t.Cleanup(func() {
		host.Close()
		mcuEnd.Close()
	})
	return host
}

func TestHostTransportRoundTrip(t *testing.T) {
	host := startFakeMCU(t, func(mcu *Transport, cmdID uint16, data *[]byte) error {
		v, err := DecodeVLQUint(data)
		if err != nil {
			return err
		}
		mcu.SendCommand(cmdID+1, func(output OutputBuffer) {
			EncodeVLQUint(output, v*2)
		})
		return nil
	})

	var handled []uint16
	done := make(chan struct{}, 4)
	host.SetResponseHandler(func(cmdID uint16, data *[]byte) error {
		handled = append(handled, cmdID)
		done <- struct{}{}
		return nil
	})

	for i, arg := range []uint32{21, 500} {
		err := host.SendCommand(4, func(output OutputBuffer) {
			EncodeVLQUint(output, arg)
		})
		if err != nil {
			t.Fatalf("SendCommand %d: %v", i, err)
		}

		resp, err := host.ReceiveResponse(time.Second)
		if err != nil {
			t.Fatalf("ReceiveResponse %d: %v", i, err)
		}
		payload := resp.Payload
		id, _ := DecodeVLQUint(&payload)
		v, _ := DecodeVLQUint(&payload)
		if id != 5 || v != arg*2 {
			t.Errorf("response = id %d value %d, want id 5 value %d", id, v, arg*2)
		}
		<-done
	}

	if host.GetCurrentSequence() != 0x12 {
		t.Errorf("sequence = 0x%02x, want 0x12", host.GetCurrentSequence())
	}
	if len(handled) != 2 || handled[0] != 5 {
		t.Errorf("response handler saw %v", handled)
	}
}

func TestHostTransportAckTimeout(t *testing.T) {
	hostEnd, mcuEnd := net.Pipe()
	host := NewHostTransport(hostEnd)
	defer host.Close()
	defer mcuEnd.Close()

	// Swallow the command without acknowledging it
	go func() {
		buf := make([]byte, 64)
		for {
			if _, err := mcuEnd.Read(buf); err != nil {
				return
			}
		}
	}()

	err := host.SendCommandWithTimeout(1, nil, 20*time.Millisecond)
	if err == nil {
		t.Fatal("expected ACK timeout")
	}
	if host.GetCurrentSequence() != MessageDest {
		t.Error("sequence advanced without an ACK")
	}
}

func TestHostTransportCloseUnblocks(t *testing.T) {
	hostEnd, mcuEnd := net.Pipe()
	defer mcuEnd.Close()
	host := NewHostTransport(hostEnd)

	closed := make(chan error, 1)
	go func() { closed <- host.Close() }()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close blocked on the pending read")
	}

	if _, err := host.ReceiveResponse(time.Second); !errors.Is(err, ErrTransportClosed) {
		t.Errorf("ReceiveResponse after Close = %v", err)
	}
}
