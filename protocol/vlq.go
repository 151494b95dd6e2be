package protocol

import "errors"

var (
	ErrInvalidVLQ     = errors.New("invalid VLQ encoding")
	ErrBufferTooSmall = errors.New("buffer too small for VLQ")
)

// EncodeVLQInt writes v most significant group first, seven bits per byte.
// Values in [-32, 96) take a single byte.
func EncodeVLQInt(output OutputBuffer, v int32) {
	var tmp [5]byte
	n := 0
	for shift := uint(28); shift >= 7; shift -= 7 {
		lo := int32(-1) << (shift - 2)
		hi := int32(3) << (shift - 2)
		if v < lo || v >= hi {
			tmp[n] = byte((v>>shift)&0x7F) | 0x80
			n++
		}
	}
	tmp[n] = byte(v & 0x7F)
	output.Output(tmp[:n+1])
}

// EncodeVLQUint encodes an unsigned integer
func EncodeVLQUint(output OutputBuffer, v uint32) {
	EncodeVLQInt(output, int32(v))
}

// DecodeVLQInt decodes one value and advances data past it
func DecodeVLQInt(data *[]byte) (int32, error) {
	buf := *data
	if len(buf) == 0 {
		return 0, ErrBufferTooSmall
	}

	c := uint32(buf[0])
	v := c & 0x7F
	if c&0x60 == 0x60 {
		// Negative: sign extend from bit 5
		v |= ^uint32(0x1F)
	}

	i := 1
	for c&0x80 != 0 {
		if i >= len(buf) {
			return 0, ErrBufferTooSmall
		}
		if i >= 5 {
			return 0, ErrInvalidVLQ
		}
		c = uint32(buf[i])
		v = v<<7 | c&0x7F
		i++
	}

	*data = buf[i:]
	return int32(v), nil
}

// DecodeVLQUint decodes an unsigned integer
func DecodeVLQUint(data *[]byte) (uint32, error) {
	v, err := DecodeVLQInt(data)
	return uint32(v), err
}

// EncodeVLQBytes encodes a length-prefixed byte array
func EncodeVLQBytes(output OutputBuffer, data []byte) {
	EncodeVLQUint(output, uint32(len(data)))
	output.Output(data)
}

// DecodeVLQBytes decodes a length-prefixed byte array.
// The result aliases data.
func DecodeVLQBytes(data *[]byte) ([]byte, error) {
	length, err := DecodeVLQUint(data)
	if err != nil {
		return nil, err
	}
	if uint32(len(*data)) < length {
		return nil, ErrBufferTooSmall
	}
	result := (*data)[:length]
	*data = (*data)[length:]
	return result, nil
}
