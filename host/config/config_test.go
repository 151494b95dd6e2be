package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "softpwm.yaml")
	data := []byte(`
channels:
  - pin: 17
    duty: 64
  - pin: 27
    duty: 255
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != BackendGPIOCdev || cfg.Chip != DefaultChip {
		t.Errorf("backend = %q chip = %q", cfg.Backend, cfg.Chip)
	}
	if cfg.Frequency != 100 {
		t.Errorf("frequency = %d, want 100", cfg.Frequency)
	}
	if cfg.PollInterval != DefaultPollInterval {
		t.Errorf("poll_interval = %v", cfg.PollInterval)
	}
	if len(cfg.Channels) != 2 || cfg.Channels[0] != (Channel{Pin: 17, Duty: 64}) {
		t.Errorf("channels = %+v", cfg.Channels)
	}
}

func TestParseExplicitValues(t *testing.T) {
	cfg, err := Parse([]byte(`
backend: rpio
frequency: 250
poll_interval: 200us
channels:
  - pin: 4
    duty: 0
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Backend != BackendRPIO || cfg.Chip != "" {
		t.Errorf("backend = %q chip = %q", cfg.Backend, cfg.Chip)
	}
	if cfg.Frequency != 250 || cfg.PollInterval != 200*time.Microsecond {
		t.Errorf("frequency = %d poll_interval = %v", cfg.Frequency, cfg.PollInterval)
	}
}

func TestParseMQTT(t *testing.T) {
	cfg, err := Parse([]byte(`
mqtt:
  broker: 10.0.0.2:1883
  topic: /lab/fans/
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.MQTT == nil {
		t.Fatal("mqtt section was dropped")
	}
	if cfg.MQTT.Topic != "lab/fans" {
		t.Errorf("topic = %q, want lab/fans", cfg.MQTT.Topic)
	}
	if cfg.MQTT.ClientID != DefaultMQTTClientID {
		t.Errorf("client_id = %q", cfg.MQTT.ClientID)
	}

	cfg, err = Parse([]byte("mqtt: {broker: 'localhost:1883'}"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.MQTT.Topic != DefaultMQTTTopic {
		t.Errorf("default topic = %q", cfg.MQTT.Topic)
	}

	cfg, err = Parse([]byte("frequency: 50"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.MQTT != nil {
		t.Errorf("mqtt = %+v, want nil when absent", cfg.MQTT)
	}
}

func TestParseRejects(t *testing.T) {
	testCases := []struct {
		name string
		yaml string
		want string
	}{
		{"backend", "backend: sysfs", "backend must be"},
		{"frequency", "frequency: -5", "frequency must be"},
		{"poll", "poll_interval: -1ms", "poll_interval"},
		{"duty", "channels: [{pin: 1, duty: 300}]", "channels[0].duty"},
		{"pin", "channels: [{pin: -1, duty: 3}]", "channels[0].pin"},
		{"duplicate", "channels: [{pin: 1, duty: 3}, {pin: 1, duty: 4}]", "listed twice"},
		{"too many", "channels: [{pin: 1}, {pin: 2}, {pin: 3}, {pin: 4}, {pin: 5}, {pin: 6}, {pin: 7}, {pin: 8}, {pin: 9}]", "at most 8"},
		{"mqtt broker", "mqtt: {topic: pwm}", "mqtt.broker"},
		{"mqtt password", "mqtt: {broker: 'localhost:1883', password: x}", "mqtt.username"},
		{"syntax", "channels: [", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
}
