package core

import (
	"sync/atomic"

	"softpwm/protocol"
)

// FirmwareState holds the global firmware state
type FirmwareState struct {
	configCRC  uint32 // atomic
	isShutdown uint32 // atomic bool
	moveCount  uint16
}

var globalState = &FirmwareState{
	moveCount: 16, // Minimum command queue size the host accepts
}

// ResponseSender frames and queues a message to the host.
// *protocol.Transport satisfies it.
type ResponseSender interface {
	SendCommand(cmdID uint16, args func(output protocol.OutputBuffer))
}

var (
	globalTransport    ResponseSender
	globalResetHandler func()
	resetPending       uint32 // atomic bool
)

// InitCoreCommands registers the protocol bootstrap and housekeeping commands.
//
// identify_response and identify must be IDs 0 and 1: the host uses a
// hardcoded bootstrap dictionary to fetch the real one.
func InitCoreCommands() {
	RegisterResponse("identify_response", "offset=%u data=%*s")       // ID 0
	RegisterCommand("identify", "offset=%u count=%c", handleIdentify) // ID 1

	RegisterCommand("get_uptime", "", handleGetUptime)
	RegisterCommand("get_clock", "", handleGetClock)
	RegisterCommand("get_config", "", handleGetConfig)
	RegisterCommand("config_reset", "", handleConfigReset)
	RegisterCommand("finalize_config", "crc=%u", handleFinalizeConfig)
	RegisterCommand("allocate_oids", "count=%c", handleAllocateOids)
	RegisterCommand("emergency_stop", "", handleEmergencyStop)
	RegisterCommand("reset", "", handleReset)

	RegisterResponse("clock", "clock=%u")
	RegisterResponse("uptime", "high=%u clock=%u")
	RegisterResponse("config", "is_config=%c crc=%u is_shutdown=%c move_count=%hu")

	RegisterConstant("CLOCK_FREQ", uint32(TimerFreq))
}

// handleIdentify returns chunks of the data dictionary
func handleIdentify(data *[]byte) error {
	offset, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	chunk := GetGlobalDictionary().GetChunk(offset, uint8(count))

	SendResponse("identify_response", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQBytes(output, chunk)
	})
	return nil
}

// handleGetUptime returns the 64-bit uptime split in two words
func handleGetUptime(data *[]byte) error {
	uptime := GetUptime()

	SendResponse("uptime", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(uptime>>32))
		protocol.EncodeVLQUint(output, uint32(uptime))
	})
	return nil
}

// handleGetClock returns the current clock value
func handleGetClock(data *[]byte) error {
	clock := GetTime()

	SendResponse("clock", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, clock)
	})
	return nil
}

// handleGetConfig returns the configuration state
func handleGetConfig(data *[]byte) error {
	crc := atomic.LoadUint32(&globalState.configCRC)

	SendResponse("config", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, boolToUint(crc != 0))
		protocol.EncodeVLQUint(output, crc)
		protocol.EncodeVLQUint(output, boolToUint(IsShutdown()))
		protocol.EncodeVLQUint(output, uint32(globalState.moveCount))
	})
	return nil
}

func handleConfigReset(data *[]byte) error {
	atomic.StoreUint32(&globalState.configCRC, 0)
	return nil
}

func handleFinalizeConfig(data *[]byte) error {
	crc, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	atomic.StoreUint32(&globalState.configCRC, crc)
	return nil
}

// handleAllocateOids is accepted for host compatibility; soft-PWM
// channels are addressed by pin, not by object ID.
func handleAllocateOids(data *[]byte) error {
	_, err := protocol.DecodeVLQUint(data)
	return err
}

func handleEmergencyStop(data *[]byte) error {
	TryShutdown("emergency_stop")
	return nil
}

// handleReset defers the reset to the main loop so the ACK goes out first
func handleReset(_ *[]byte) error {
	atomic.StoreUint32(&resetPending, 1)
	return nil
}

// TryShutdown enters the shutdown state and drives every output to a safe level
func TryShutdown(reason string) {
	atomic.StoreUint32(&globalState.isShutdown, 1)
	ShutdownAllSoftPWM()
	DebugPrintln("[SHUTDOWN] " + reason)
}

// IsShutdown returns true if the firmware is in shutdown state
func IsShutdown() bool {
	return atomic.LoadUint32(&globalState.isShutdown) != 0
}

// ResetFirmwareState clears config and shutdown state on host reconnect
func ResetFirmwareState() {
	atomic.StoreUint32(&globalState.configCRC, 0)
	atomic.StoreUint32(&globalState.isShutdown, 0)
}

// SetGlobalTransport sets the transport used by SendResponse
func SetGlobalTransport(transport ResponseSender) {
	globalTransport = transport
}

// SetResetHandler sets the platform reset function
func SetResetHandler(handler func()) {
	globalResetHandler = handler
}

// CheckPendingReset runs the reset handler once a reset was requested.
// Call it from the main loop after pending output has been flushed.
func CheckPendingReset() {
	if atomic.LoadUint32(&resetPending) != 0 && globalResetHandler != nil {
		globalResetHandler()
	}
}

// SendResponse sends a registered response through the global transport
func SendResponse(responseName string, args func(output protocol.OutputBuffer)) {
	if globalTransport == nil {
		return
	}
	cmd, ok := globalRegistry.GetCommandByName(responseName)
	if !ok {
		panic("Response not registered: " + responseName)
	}
	globalTransport.SendCommand(cmd.ID, args)
}

func boolToUint(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
