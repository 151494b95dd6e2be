// Package protocol implements the Klipper-style framed serial protocol used
// between the soft-PWM firmware and its host tools.
//
// A message block is:
//
//	<len> <seq> <payload...> <crc_hi> <crc_lo> <sync>
//
// where payload is a sequence of VLQ-encoded command IDs and arguments.
package protocol

// Version is the protocol implementation version
const Version = "0.1.0"

// Framing constants
const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10
	MessageSeqMask     = 0x0F

	// MessageMax is the size of a scratch output buffer; it holds several blocks
	MessageMax = 512
)

// nextSeq advances a sequence byte within the 0x10-0x1F window
func nextSeq(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}
