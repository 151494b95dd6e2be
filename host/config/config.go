// Package config loads the YAML channel file of the Linux soft-PWM runner.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"softpwm/core"
)

const (
	BackendGPIOCdev = "gpiocdev"
	BackendRPIO     = "rpio"

	DefaultChip         = "gpiochip0"
	DefaultPollInterval = 50 * time.Microsecond

	DefaultMQTTClientID = "softpwm-linux"
	DefaultMQTTTopic    = "softpwm"
)

type Config struct {
	Backend      string        `yaml:"backend"`
	Chip         string        `yaml:"chip"`
	Frequency    int           `yaml:"frequency"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Channels     []Channel     `yaml:"channels"`

	// MQTT is optional; when set, duty changes are accepted from the broker
	MQTT *MQTT `yaml:"mqtt"`
}

type Channel struct {
	Pin  int `yaml:"pin"`
	Duty int `yaml:"duty"`
}

type MQTT struct {
	Broker   string `yaml:"broker"` // host:port
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"` // messages arrive on <topic>/<pin>/duty
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Load reads and validates a config file
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse decodes YAML, applies defaults and validates the result
func Parse(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if cfg.Backend == "" {
		cfg.Backend = BackendGPIOCdev
	}
	if cfg.Backend != BackendGPIOCdev && cfg.Backend != BackendRPIO {
		return Config{}, fmt.Errorf("backend must be %q or %q, got %q", BackendGPIOCdev, BackendRPIO, cfg.Backend)
	}
	if cfg.Backend == BackendGPIOCdev && cfg.Chip == "" {
		cfg.Chip = DefaultChip
	}

	if cfg.Frequency < 0 {
		return Config{}, fmt.Errorf("frequency must be >= 0, got %d", cfg.Frequency)
	}
	if cfg.Frequency == 0 {
		cfg.Frequency = core.DefaultSoftPWMFrequency
	}
	if cfg.PollInterval < 0 {
		return Config{}, fmt.Errorf("poll_interval must be >= 0")
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	// The scheduler drops channels silently once full; reject them here instead
	if len(cfg.Channels) > core.MaxSoftPWMChannels {
		return Config{}, fmt.Errorf("at most %d channels, got %d", core.MaxSoftPWMChannels, len(cfg.Channels))
	}
	seen := make(map[int]bool, len(cfg.Channels))
	for i, ch := range cfg.Channels {
		if ch.Pin < 0 {
			return Config{}, fmt.Errorf("channels[%d].pin must be >= 0", i)
		}
		if ch.Duty < 0 || ch.Duty > core.SoftPWMMax {
			return Config{}, fmt.Errorf("channels[%d].duty must be 0-%d, got %d", i, core.SoftPWMMax, ch.Duty)
		}
		if seen[ch.Pin] {
			return Config{}, fmt.Errorf("channels[%d]: pin %d listed twice", i, ch.Pin)
		}
		seen[ch.Pin] = true
	}

	if m := cfg.MQTT; m != nil {
		if m.Broker == "" {
			return Config{}, fmt.Errorf("mqtt.broker is required")
		}
		if m.Password != "" && m.Username == "" {
			return Config{}, fmt.Errorf("mqtt.password requires mqtt.username")
		}
		if m.ClientID == "" {
			m.ClientID = DefaultMQTTClientID
		}
		m.Topic = strings.Trim(m.Topic, "/")
		if m.Topic == "" {
			m.Topic = DefaultMQTTTopic
		}
	}

	return cfg, nil
}
