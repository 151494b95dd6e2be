//go:build rp2040 || rp2350

package main

import (
	"machine"
	"runtime"
	"time"

	"softpwm/core"
	"softpwm/protocol"
)

var (
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport
	softPWM      *core.SoftPWM

	// Debug counters
	messagesReceived uint32
	msgerrors        uint32

	// USB connection state
	hostLink                 core.HostLink
	consecutiveWriteFailures uint32
)

// Set with -ldflags "-X main.version=..."
var version = "softpwm-dev"

func main() {
	// Clear any watchdog left running by a previous firmware
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	InitUSB()
	InitDebugUART()
	InitClock()

	core.InitCoreCommands()

	gpioDriver := NewRPGPIODriver()
	core.SetGPIODriver(gpioDriver)
	registerPins(gpioDriver.HasExpander())

	softPWM = core.NewSoftPWM(core.MustGPIO(), core.GetTime)
	core.InitSoftPWMCommands(softPWM)

	dict := core.GetGlobalDictionary()
	dict.SetVersion(version)
	dict.SetBuildVersions("tinygo " + runtime.Version())
	if err := dict.BuildDictionary(); err != nil {
		core.DebugPrintln("[MAIN] dictionary build failed: " + err.Error())
	}

	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()

	transport = protocol.NewTransport(outputBuffer, core.DispatchCommand)
	transport.SetResetCallback(func() {
		inputBuffer.Reset()
		outputBuffer.Reset()
		core.ResetFirmwareState()
	})
	transport.SetFlushCallback(writeUSB)
	transport.SetErrorHandler(func(cmdID uint16, err error) {
		msgerrors++
		core.DebugPrintln("[MAIN] command " + itoa(int(cmdID)) + ": " + err.Error())
	})
	core.SetGlobalTransport(transport)

	// Watchdog reset re-enumerates USB more reliably than SYSRESETREQ
	core.SetResetHandler(func() {
		core.ShutdownAllSoftPWM()
		if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 1}); err != nil {
			return
		}
		if err := machine.Watchdog.Start(); err != nil {
			return
		}
		for {
			time.Sleep(time.Millisecond)
		}
	})

	go usbReaderLoop()

	for {
		loopOnce()
		// Yield to the USB reader
		time.Sleep(10 * time.Microsecond)
	}
}

// loopOnce runs one pass of the cooperative main loop. Commands and Update
// share this context, so SoftPWM needs no locking.
func loopOnce() {
	defer func() {
		if r := recover(); r != nil {
			msgerrors++
			inputBuffer.Reset()
			outputBuffer.Reset()
		}
	}()

	UpdateSystemTime()

	if hostLink.ResetPending() {
		// Host came back: start from a clean state
		consecutiveWriteFailures = 0
		inputBuffer.Reset()
		outputBuffer.Reset()
		transport.Reset()
		core.ResetFirmwareState()
		hostLink.ResetDone()
	}

	if inputBuffer.Available() > 0 {
		transport.Receive(inputBuffer)
		messagesReceived++
	}

	if len(outputBuffer.Result()) > 0 {
		writeUSB()
	}

	// After output is flushed so the ACK for "reset" reaches the host
	core.CheckPendingReset()

	core.SoftPWMTask()
}

// usbReaderLoop moves bytes from USB into the input FIFO. After a
// disconnect it holds input until loopOnce has reset the link.
func usbReaderLoop() {
	defer func() {
		if r := recover(); r != nil {
			msgerrors++
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	for {
		for USBAvailable() > 0 && hostLink.ReaderReady() {
			b, err := USBRead()
			if err != nil {
				msgerrors++
				break
			}

			if inputBuffer.Write([]byte{b}) == 0 {
				msgerrors++
				break
			}
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// writeUSB flushes the output buffer. Repeated failures mark the host as
// gone and drop stale output.
func writeUSB() {
	result := outputBuffer.Result()
	written := 0
	for written < len(result) {
		n, err := USBWriteBytes(result[written:])
		if err != nil || n == 0 {
			consecutiveWriteFailures++
			if consecutiveWriteFailures > 10 {
				hostLink.MarkDisconnected()
				consecutiveWriteFailures = 0
				outputBuffer.Reset()
				inputBuffer.Reset()
			}
			return
		}
		written += n
	}
	consecutiveWriteFailures = 0
	outputBuffer.Reset()
}
