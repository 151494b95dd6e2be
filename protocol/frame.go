package protocol

import "errors"

// ErrMessageTooLong is returned when a payload does not fit in one block
var ErrMessageTooLong = errors.New("message exceeds maximum block length")

// EncodeMessage frames payload as a single block with sequence byte seq
func EncodeMessage(seq uint8, payload []byte) ([]byte, error) {
	msgLen := MessageHeaderSize + len(payload) + MessageTrailerSize
	if msgLen > MessageLengthMax {
		return nil, ErrMessageTooLong
	}

	msg := make([]byte, 0, msgLen)
	msg = append(msg, uint8(msgLen), seq)
	msg = append(msg, payload...)
	return append(msg, trailer(msg)...), nil
}

// frameParser splits a byte stream into checked blocks. After a bad block
// it drops input up to the next sync byte.
type frameParser struct {
	synchronized bool
}

func newFrameParser() frameParser {
	return frameParser{synchronized: true}
}

// parse hands every complete block in data to fn and returns the number of
// bytes consumed. onResync runs when the stream recovers from an error.
// Payloads passed to fn alias data.
func (p *frameParser) parse(data []byte, onResync func(), fn func(seq uint8, payload []byte)) int {
	total := len(data)

	for len(data) > 0 {
		if !p.synchronized {
			i := 0
			for i < len(data) && data[i] != MessageValueSync {
				i++
			}
			if i == len(data) {
				data = nil
				break
			}
			data = data[i+1:]
			p.synchronized = true
			if onResync != nil {
				onResync()
			}
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}
		if len(data) < MessageLengthMin {
			break
		}

		msgLen := int(data[MessagePositionLen])
		seq := data[MessagePositionSeq]
		if msgLen < MessageLengthMin || msgLen > MessageLengthMax || seq&^MessageSeqMask != MessageDest {
			p.synchronized = false
			continue
		}
		if len(data) < msgLen {
			break
		}

		if data[msgLen-MessageTrailerSync] != MessageValueSync {
			p.synchronized = false
			continue
		}
		frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 | uint16(data[msgLen-MessageTrailerCRC+1])
		if frameCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
			p.synchronized = false
			continue
		}

		fn(seq, data[MessageHeaderSize:msgLen-MessageTrailerSize])
		data = data[msgLen:]
	}

	return total - len(data)
}
