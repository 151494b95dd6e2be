//go:build rp2040 || rp2350

package main

import (
	"machine"

	"softpwm/core"
)

// Debug output goes to UART1 so it never mixes with protocol traffic on USB.
// Off by default: the UART write blocks and skews soft-PWM edges.
const debugUARTEnabled = false

var debugUART *machine.UART

// InitDebugUART routes core debug output to UART1 (TX=GPIO8, RX=GPIO9, 115200)
func InitDebugUART() {
	if !debugUARTEnabled {
		return
	}

	uart := machine.UART1
	err := uart.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GPIO8,
		RX:       machine.GPIO9,
	})
	if err != nil {
		return
	}
	debugUART = uart

	core.SetDebugWriter(func(s string) {
		debugUART.Write([]byte(s))
		debugUART.Write([]byte("\r\n"))
	})
	core.SetDebugEnabled(true)
	core.InitAsyncDebug()
	core.DebugPrintln("=== softpwm " + mcuName + " debug UART ===")
}
