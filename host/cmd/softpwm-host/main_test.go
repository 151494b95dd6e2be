package main

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"softpwm/host/mcu"
)

// fakeController records calls and serves canned answers
type fakeController struct {
	frequency uint32
	duties    map[uint32]uint32
	stopped   bool
}

func newFakeController() *fakeController {
	return &fakeController{frequency: 100, duties: make(map[uint32]uint32)}
}

func (f *fakeController) ConfigSoftPWM(frequency uint32) error {
	f.frequency = frequency
	f.duties = make(map[uint32]uint32)
	return nil
}

func (f *fakeController) SetSoftPWM(pin uint32, duty uint32) error {
	f.duties[pin] = duty
	return nil
}

func (f *fakeController) QuerySoftPWM(pin uint32) (mcu.ChannelState, error) {
	duty, ok := f.duties[pin]
	return mcu.ChannelState{Pin: pin, Duty: uint8(duty), Active: ok, IsOn: ok && duty > 0}, nil
}

func (f *fakeController) SoftPWMStatus() (mcu.Status, error) {
	return mcu.Status{
		Frequency: f.frequency,
		Period:    1000000 / f.frequency,
		Count:     len(f.duties),
		Capacity:  8,
	}, nil
}

func (f *fakeController) GetClock() (uint32, error)  { return 1234, nil }
func (f *fakeController) GetUptime() (uint64, error) { return 1 << 33, nil }

func (f *fakeController) EmergencyStop() error {
	f.stopped = true
	return nil
}

func (f *fakeController) PrintDictionary(w io.Writer) {
	io.WriteString(w, "dictionary\n")
}

func TestExecute(t *testing.T) {
	testCases := []struct {
		line string
		want string
	}{
		{"freq 1000", "frequency 1000 Hz, period 1000 us, 0/8 channels"},
		{"set 5 128", ""},
		{"get 5", "pin 5: duty 128/255 (50.2%) level high"},
		{"get 6", "pin 6: not assigned"},
		{"status", "1/8 channels"},
		{"get_clock", "clock: 1234"},
		{"get_uptime", "uptime: 8589934592 us"},
		{"dict", "dictionary"},
		{"help", "Available commands"},
		{"bogus", "Unknown command: bogus"},
	}

	c := newFakeController()
	for _, tc := range testCases {
		var out bytes.Buffer
		quit, err := execute(c, &out, tc.line)
		if err != nil || quit {
			t.Fatalf("%q: quit=%v err=%v", tc.line, quit, err)
		}
		if !strings.Contains(out.String(), tc.want) {
			t.Errorf("%q: output %q does not contain %q", tc.line, out.String(), tc.want)
		}
	}
}

func TestExecuteErrors(t *testing.T) {
	c := newFakeController()
	for _, line := range []string{"set 5", "freq", "get", "set 5 256", "set x 1"} {
		if _, err := execute(c, io.Discard, line); err == nil {
			t.Errorf("%q: expected error", line)
		}
	}
	if _, err := execute(c, io.Discard, "set 1"); !errors.Is(err, errUsage) {
		t.Errorf("err = %v, want usage error", err)
	}
}

func TestReplStopAndQuit(t *testing.T) {
	c := newFakeController()
	var out bytes.Buffer
	in := strings.NewReader("set 3 10\nstop\nquit\nset 4 10\n")

	if err := repl(c, in, &out); err != nil {
		t.Fatal(err)
	}
	if !c.stopped {
		t.Error("stop did not reach the controller")
	}
	if _, ok := c.duties[4]; ok {
		t.Error("commands after quit were executed")
	}
	if !strings.Contains(out.String(), "Goodbye!") {
		t.Errorf("output = %q", out.String())
	}
}
