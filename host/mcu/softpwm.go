package mcu

// ChannelState is one soft-PWM channel as reported by query_soft_pwm
type ChannelState struct {
	Pin    uint32
	Duty   uint8
	Active bool
	IsOn   bool
}

// Status is the scheduler summary reported by get_soft_pwm_status
type Status struct {
	Frequency uint32
	Period    uint32 // microseconds
	Count     int
	Capacity  int
	IOErrors  uint32
}

// ConfigSoftPWM sets the shared frequency and clears every channel.
// 0 selects the firmware default.
func (m *MCU) ConfigSoftPWM(frequency uint32) error {
	return m.Send("config_soft_pwm", frequency)
}

// SetSoftPWM sets a pin's duty (0-255). The firmware drops the request
// silently when all channels are taken.
func (m *MCU) SetSoftPWM(pin uint32, duty uint32) error {
	return m.Send("set_soft_pwm", pin, duty)
}

// QuerySoftPWM reads back one pin's channel
func (m *MCU) QuerySoftPWM(pin uint32) (ChannelState, error) {
	v, err := m.Query("query_soft_pwm", "soft_pwm_state", pin)
	if err != nil {
		return ChannelState{}, err
	}
	return ChannelState{
		Pin:    uint32(v["pin"]),
		Duty:   uint8(v["value"]),
		Active: v["active"] != 0,
		IsOn:   v["is_on"] != 0,
	}, nil
}

// SoftPWMStatus reads the scheduler summary
func (m *MCU) SoftPWMStatus() (Status, error) {
	v, err := m.Query("get_soft_pwm_status", "soft_pwm_status")
	if err != nil {
		return Status{}, err
	}
	return Status{
		Frequency: uint32(v["frequency"]),
		Period:    uint32(v["period"]),
		Count:     int(v["count"]),
		Capacity:  int(v["capacity"]),
		IOErrors:  uint32(v["io_errors"]),
	}, nil
}

// GetClock returns the MCU's 32-bit microsecond clock
func (m *MCU) GetClock() (uint32, error) {
	v, err := m.Query("get_clock", "clock")
	if err != nil {
		return 0, err
	}
	return uint32(v["clock"]), nil
}

// GetUptime returns the MCU's 64-bit microsecond uptime
func (m *MCU) GetUptime() (uint64, error) {
	v, err := m.Query("get_uptime", "uptime")
	if err != nil {
		return 0, err
	}
	return uint64(uint32(v["high"]))<<32 | uint64(uint32(v["clock"])), nil
}

// EmergencyStop drives every soft-PWM output low and latches shutdown
func (m *MCU) EmergencyStop() error {
	return m.Send("emergency_stop")
}
