// Package mcu talks to soft-PWM firmware over the Klipper protocol.
package mcu

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"softpwm/host/serial"
	"softpwm/protocol"
)

// Bootstrap IDs: the firmware registers these first so the host can fetch
// the dictionary before it knows any other ID.
const (
	identifyResponseID = 0
	identifyID         = 1

	identifyChunkSize = 40
	maxIdentifyChunks = 1000
)

var (
	ErrNotConnected = errors.New("not connected to MCU")
	ErrNoDictionary = errors.New("dictionary not loaded")
)

// MCU is a connection to a soft-PWM microcontroller
type MCU struct {
	transport *protocol.HostTransport
	logger    *slog.Logger

	dictionary     *Dictionary
	dictionaryData []byte

	// ResponseTimeout bounds waits for query responses
	ResponseTimeout time.Duration

	connected bool
}

// New returns an unconnected MCU. A nil logger uses slog.Default().
func New(logger *slog.Logger) *MCU {
	if logger == nil {
		logger = slog.Default()
	}
	return &MCU{
		logger:          logger,
		ResponseTimeout: time.Second,
	}
}

// Connect opens device with default serial settings
func (m *MCU) Connect(device string) error {
	return m.ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig opens a serial port and attaches to it
func (m *MCU) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return err
	}
	m.Attach(port)
	m.logger.Info("connected", "device", cfg.Device, "baud", cfg.Baud)

	// Give a freshly powered MCU time to enumerate
	time.Sleep(100 * time.Millisecond)
	return nil
}

// Attach uses an already open link, e.g. a pipe in tests
func (m *MCU) Attach(port io.ReadWriteCloser) {
	m.transport = protocol.NewHostTransport(port)
	m.transport.SetResponseHandler(func(cmdID uint16, data *[]byte) error {
		m.logger.Debug("recv", "id", cmdID, "bytes", len(*data))
		return nil
	})
	m.connected = true
}

// Close closes the link
func (m *MCU) Close() error {
	if !m.connected {
		return nil
	}
	m.connected = false
	return m.transport.Close()
}

// IsConnected reports whether a link is attached
func (m *MCU) IsConnected() bool {
	return m.connected
}

// RetrieveDictionary fetches the dictionary with identify and parses it
func (m *MCU) RetrieveDictionary() error {
	if !m.connected {
		return ErrNotConnected
	}

	m.logger.Debug("retrieving dictionary")
	var buf bytes.Buffer
	for i := 0; i < maxIdentifyChunks; i++ {
		chunk, err := m.sendIdentify(uint32(buf.Len()), identifyChunkSize)
		if err != nil {
			return fmt.Errorf("dictionary chunk at offset %d: %w", buf.Len(), err)
		}
		buf.Write(chunk)
		if len(chunk) < identifyChunkSize {
			break
		}
	}
	m.dictionaryData = buf.Bytes()

	dict, err := ParseDictionary(m.dictionaryData)
	if err != nil {
		return err
	}
	m.dictionary = dict
	m.logger.Info("dictionary loaded",
		"bytes", len(m.dictionaryData),
		"version", dict.Version,
		"commands", len(dict.Commands),
		"responses", len(dict.Responses))
	return nil
}

// sendIdentify fetches one chunk of the dictionary
func (m *MCU) sendIdentify(offset uint32, count uint8) ([]byte, error) {
	err := m.transport.SendCommand(identifyID, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQUint(output, uint32(count))
	})
	if err != nil {
		return nil, err
	}

	payload, err := m.awaitResponse(identifyResponseID)
	if err != nil {
		return nil, err
	}

	respOffset, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return nil, fmt.Errorf("decode offset: %w", err)
	}
	if respOffset != offset {
		return nil, fmt.Errorf("offset mismatch: expected %d, got %d", offset, respOffset)
	}

	data, err := protocol.DecodeVLQBytes(&payload)
	if err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}
	return append([]byte(nil), data...), nil
}

// awaitResponse returns the payload, after the ID, of the next response
// with the given ID. Other responses are logged and skipped.
func (m *MCU) awaitResponse(id int) ([]byte, error) {
	deadline := time.Now().Add(m.ResponseTimeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("no response %d within %v", id, m.ResponseTimeout)
		}
		msg, err := m.transport.ReceiveResponse(remaining)
		if err != nil {
			return nil, err
		}

		payload := msg.Payload
		got, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return nil, fmt.Errorf("decode response ID: %w", err)
		}
		if int(got) == id {
			return payload, nil
		}
		m.logger.Debug("skipping unrelated response", "id", got, "want", id)
	}
}

// GetDictionary returns the parsed dictionary, or nil before RetrieveDictionary
func (m *MCU) GetDictionary() *Dictionary {
	return m.dictionary
}

// GetDictionaryRaw returns the dictionary bytes as received
func (m *MCU) GetDictionaryRaw() []byte {
	return m.dictionaryData
}

// PrintDictionary writes a summary of the dictionary to w
func (m *MCU) PrintDictionary(w io.Writer) {
	if m.dictionary == nil {
		fmt.Fprintln(w, "No dictionary loaded")
		return
	}
	m.dictionary.Print(w)
}

// SendCommand sends the named command and waits for its ACK
func (m *MCU) SendCommand(name string, args func(output protocol.OutputBuffer)) error {
	cmd, err := m.command(name)
	if err != nil {
		return err
	}
	m.logger.Debug("send", "command", cmd.Name)
	return m.transport.SendCommand(uint16(cmd.ID), args)
}

// Send sends the named command with integer arguments in format order
func (m *MCU) Send(name string, args ...uint32) error {
	cmd, err := m.command(name)
	if err != nil {
		return err
	}
	if len(args) != len(cmd.Params) {
		return fmt.Errorf("%s takes %d arguments, got %d", cmd.Name, len(cmd.Params), len(args))
	}
	m.logger.Debug("send", "command", cmd.Name, "args", args)
	return m.transport.SendCommand(uint16(cmd.ID), func(output protocol.OutputBuffer) {
		for _, a := range args {
			protocol.EncodeVLQUint(output, a)
		}
	})
}

// Query sends a command and waits for the named response
func (m *MCU) Query(command string, response string, args ...uint32) (map[string]int64, error) {
	resp, err := m.response(response)
	if err != nil {
		return nil, err
	}
	if err := m.Send(command, args...); err != nil {
		return nil, err
	}

	payload, err := m.awaitResponse(resp.ID)
	if err != nil {
		return nil, err
	}
	values, _, err := resp.Decode(payload)
	return values, err
}

func (m *MCU) command(name string) (*Message, error) {
	if !m.connected {
		return nil, ErrNotConnected
	}
	if m.dictionary == nil {
		return nil, ErrNoDictionary
	}
	cmd, ok := m.dictionary.Command(name)
	if !ok {
		return nil, fmt.Errorf("unknown command: %s", name)
	}
	return cmd, nil
}

func (m *MCU) response(name string) (*Message, error) {
	if m.dictionary == nil {
		return nil, ErrNoDictionary
	}
	resp, ok := m.dictionary.Response(name)
	if !ok {
		return nil, fmt.Errorf("unknown response: %s", name)
	}
	return resp, nil
}
