package message

import (
	"encoding/binary"
)

// EncodeUint32 writes value in the shortest big-endian form; zero encodes to no bytes.
func EncodeUint32(buf []byte, value uint32) (int, error) {
	switch {
	case value == 0:
		return 0, nil
	case value <= max1ByteNumber:
		if len(buf) < 1 {
			return 1, ErrTooSmall
		}
		buf[0] = byte(value)
		return 1, nil
	case value <= max2ByteNumber:
		if len(buf) < 2 {
			return 2, ErrTooSmall
		}
		binary.BigEndian.PutUint16(buf, uint16(value))
		return 2, nil
	case value <= max3ByteNumber:
		if len(buf) < 3 {
			return 3, ErrTooSmall
		}
		buf[0] = byte(value >> 16)
		buf[1] = byte(value >> 8)
		buf[2] = byte(value)
		return 3, nil
	default:
		if len(buf) < 4 {
			return 4, ErrTooSmall
		}
		binary.BigEndian.PutUint32(buf, value)
		return 4, nil
	}
}

func DecodeUint32(buf []byte) (uint32, int, error) {
	if len(buf) > 4 {
		return 0, -1, ErrInvalidValueLength
	}
	var value uint32
	for _, b := range buf {
		value = value<<8 | uint32(b)
	}
	return value, len(buf), nil
}

func encodeUint32Value(value uint32) []byte {
	buf := make([]byte, 4)
	n, _ := EncodeUint32(buf, value)
	if n == 0 {
		return nil
	}
	return buf[:n]
}
