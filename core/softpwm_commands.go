package core

import (
	"softpwm/protocol"
)

// Scheduler served by the soft-PWM commands; owned by the target's main loop
var softPWM *SoftPWM

// InitSoftPWMCommands registers the soft-PWM commands for scheduler s
func InitSoftPWMCommands(s *SoftPWM) {
	softPWM = s

	RegisterCommand("config_soft_pwm", "frequency=%u", handleConfigSoftPWM)
	RegisterCommand("set_soft_pwm", "pin=%u value=%hu", handleSetSoftPWM)
	RegisterCommand("query_soft_pwm", "pin=%u", handleQuerySoftPWM)
	RegisterCommand("get_soft_pwm_status", "", handleGetSoftPWMStatus)

	RegisterResponse("soft_pwm_state", "pin=%u value=%c active=%c is_on=%c")
	RegisterResponse("soft_pwm_status", "frequency=%u period=%u count=%c capacity=%c io_errors=%u")

	RegisterConstant("SOFT_PWM_MAX", uint32(SoftPWMMax))
	RegisterConstant("SOFT_PWM_CHANNELS", uint32(MaxSoftPWMChannels))
	RegisterConstant("SOFT_PWM_DEFAULT_FREQ", uint32(DefaultSoftPWMFrequency))
}

// SoftPWMTask advances the waveform; call it on every main loop iteration
func SoftPWMTask() {
	if softPWM != nil {
		softPWM.Update()
	}
}

// ShutdownAllSoftPWM drives every soft-PWM output low
func ShutdownAllSoftPWM() {
	if softPWM != nil {
		softPWM.Shutdown()
	}
}

// handleConfigSoftPWM sets the shared frequency and clears all channels
// Format: config_soft_pwm frequency=%u
func handleConfigSoftPWM(data *[]byte) error {
	freq, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	if softPWM == nil {
		return nil
	}

	softPWM.Initialize(int(freq))
	DebugPrintln("[SOFTPWM] frequency=" + itoa(softPWM.Frequency()) + " period=" + utoa(softPWM.Period()))
	return nil
}

// handleSetSoftPWM assigns a duty value to a pin
// Format: set_soft_pwm pin=%u value=%hu
func handleSetSoftPWM(data *[]byte) error {
	pin, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	value, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	if softPWM == nil || IsShutdown() {
		return nil
	}

	// Values above SoftPWMMax mean full on
	if value > SoftPWMMax {
		value = SoftPWMMax
	}

	if _, assigned := softPWM.Channel(GPIOPin(pin)); !assigned && softPWM.ActiveCount() == softPWM.Capacity() {
		DebugAsync("[SOFTPWM] table full, dropped pin=" + utoa(pin))
	}
	softPWM.SetDuty(GPIOPin(pin), uint8(value))
	return nil
}

// handleQuerySoftPWM reports one channel
// Format: query_soft_pwm pin=%u
func handleQuerySoftPWM(data *[]byte) error {
	pin, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	if softPWM == nil {
		return nil
	}

	ch, _ := softPWM.Channel(GPIOPin(pin))
	SendResponse("soft_pwm_state", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, pin)
		protocol.EncodeVLQUint(output, uint32(ch.Duty))
		protocol.EncodeVLQUint(output, boolToUint(ch.Active))
		protocol.EncodeVLQUint(output, boolToUint(ch.IsOn))
	})
	return nil
}

// handleGetSoftPWMStatus reports scheduler-wide state
// Format: get_soft_pwm_status
func handleGetSoftPWMStatus(data *[]byte) error {
	if softPWM == nil {
		return nil
	}

	SendResponse("soft_pwm_status", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(softPWM.Frequency()))
		protocol.EncodeVLQUint(output, softPWM.Period())
		protocol.EncodeVLQUint(output, uint32(softPWM.ActiveCount()))
		protocol.EncodeVLQUint(output, uint32(softPWM.Capacity()))
		protocol.EncodeVLQUint(output, softPWM.IOErrors())
	})
	return nil
}
