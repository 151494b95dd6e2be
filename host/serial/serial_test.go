package serial

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/dev/ttyACM0")
	if cfg.Device != "/dev/ttyACM0" || cfg.Baud != DefaultBaud || cfg.ReadTimeout != 100*time.Millisecond {
		t.Errorf("DefaultConfig = %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     Config
		wantErr error
		baud    int
	}{
		{"missing device", Config{}, ErrNoDevice, 0},
		{"default baud", Config{Device: "/dev/ttyACM0"}, nil, DefaultBaud},
		{"custom baud", Config{Device: "/dev/ttyUSB0", Baud: 115200}, nil, 115200},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg
			err := cfg.Validate()
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tc.wantErr)
			}
			if err == nil && cfg.Baud != tc.baud {
				t.Errorf("baud = %d, want %d", cfg.Baud, tc.baud)
			}
		})
	}
}

func TestOpenRejectsMissingDevice(t *testing.T) {
	if _, err := Open(nil); !errors.Is(err, ErrNoDevice) {
		t.Errorf("Open(nil) = %v", err)
	}
	if _, err := Open(&Config{}); !errors.Is(err, ErrNoDevice) {
		t.Errorf("Open(empty) = %v", err)
	}
}
