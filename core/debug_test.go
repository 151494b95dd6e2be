package core

import (
	"testing"
	"time"
)

func TestDebugPrintlnGated(t *testing.T) {
	var got []string
	SetDebugWriter(func(s string) { got = append(got, s) })
	defer SetDebugWriter(func(s string) {})

	SetDebugEnabled(false)
	DebugPrintln("hidden")
	if len(got) != 0 {
		t.Fatalf("output while disabled: %v", got)
	}

	SetDebugEnabled(true)
	defer SetDebugEnabled(false)
	DebugPrintln("[SOFTPWM] pin=" + itoa(17))
	if len(got) != 1 || got[0] != "[SOFTPWM] pin=17" {
		t.Errorf("got %v", got)
	}
}

func TestDebugAsync(t *testing.T) {
	got := make(chan string, 1)
	SetDebugWriter(func(s string) { got <- s })
	SetDebugEnabled(true)
	InitAsyncDebug()
	defer func() {
		close(debugChan)
		debugChan = nil
		SetDebugEnabled(false)
		SetDebugWriter(func(s string) {})
	}()

	DebugAsync("[SOFTPWM] table full, dropped pin=9")
	select {
	case msg := <-got:
		if msg != "[SOFTPWM] table full, dropped pin=9" {
			t.Errorf("got %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("async message was not written")
	}
}

func TestItoa(t *testing.T) {
	testCases := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{7, "7"},
		{-42, "-42"},
		{1000000, "1000000"},
	}
	for _, tc := range testCases {
		if got := itoa(tc.in); got != tc.want {
			t.Errorf("itoa(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
	if got := valueToString(uint8(255)); got != "255" {
		t.Errorf("valueToString(uint8(255)) = %q", got)
	}
}
