package coder

import (
	"encoding/binary"
	"fmt"

	"github.com/coapclient/go-coap/message"
	"github.com/coapclient/go-coap/message/codes"
)

const (
	version       = 1
	headerSize    = 4
	payloadMarker = 0xff
)

var DefaultCoder = new(Coder)

// Coder encodes and decodes CoAP over UDP datagrams (RFC 7252 section 3).
type Coder struct{}

func (c *Coder) Size(m message.Message) (int, error) {
	if len(m.Token) > message.MaxTokenSize {
		return -1, message.ErrInvalidTokenLen
	}
	size := headerSize + len(m.Token) + m.Options.Size()
	if len(m.Payload) > 0 {
		// for separator 0xff
		size += 1 + len(m.Payload)
	}
	return size, nil
}

// Encode writes m into buf and returns the number of bytes written.
// When buf is too small it returns the required size and message.ErrTooSmall.
func (c *Coder) Encode(m message.Message, buf []byte) (int, error) {
	/*
	     0                   1                   2                   3
	    0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
	   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	   |Ver| T |  TKL  |      Code     |          Message ID           |
	   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	   |   Token (if any, TKL bytes) ...
	   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	   |   Options (if any) ...
	   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	   |1 1 1 1 1 1 1 1|    Payload (if any) ...
	   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	*/
	if !message.ValidateType(m.Type) {
		return -1, fmt.Errorf("%w: %v", ErrInvalidType, m.Type)
	}
	size, err := c.Size(m)
	if err != nil {
		return -1, err
	}
	if len(buf) < size {
		return size, message.ErrTooSmall
	}

	out := buf[:0]
	out = append(out, version<<6|byte(m.Type)<<4|byte(len(m.Token)), byte(m.Code))
	out = binary.BigEndian.AppendUint16(out, m.MessageID)
	out = append(out, m.Token...)
	out, err = m.Options.Marshal(out)
	if err != nil {
		return -1, err
	}
	if len(m.Payload) > 0 {
		out = append(out, payloadMarker)
		out = append(out, m.Payload...)
	}
	return len(out), nil
}

// Marshal allocates a buffer of the exact size and encodes m into it.
func (c *Coder) Marshal(m message.Message) ([]byte, error) {
	size, err := c.Size(m)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	n, err := c.Encode(m, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Decode parses a whole datagram into m. Every failure wraps ErrMalformedMessage.
// Token, option values and payload are copied, so data may be reused.
func (c *Coder) Decode(data []byte, m *message.Message) (int, error) {
	size := len(data)
	if size < headerSize {
		return -1, malformed(ErrMessageTruncated)
	}
	if data[0]>>6 != version {
		return -1, malformed(ErrMessageInvalidVersion)
	}

	typ := message.Type((data[0] >> 4) & 0x3)
	tokenLen := int(data[0] & 0xf)
	if tokenLen > message.MaxTokenSize {
		return -1, malformed(message.ErrInvalidTokenLen)
	}

	code := codes.Code(data[1])
	messageID := binary.BigEndian.Uint16(data[2:4])
	data = data[headerSize:]
	if len(data) < tokenLen {
		return -1, malformed(ErrMessageTruncated)
	}
	var token message.Token
	if tokenLen > 0 {
		token = append(message.Token(nil), data[:tokenLen]...)
	}
	data = data[tokenLen:]

	var options message.Options
	proc, err := options.Unmarshal(data, message.CoapOptionDefs)
	if err != nil {
		return -1, malformed(err)
	}
	data = data[proc:]

	var payload []byte
	if len(data) > 0 {
		// options stop only at the payload marker
		if len(data) == 1 {
			return -1, malformed(ErrPayloadMarkerNoData)
		}
		payload = append([]byte(nil), data[1:]...)
	}

	m.Type = typ
	m.Code = code
	m.MessageID = messageID
	m.Token = token
	m.Options = options
	m.Payload = payload
	return size, nil
}

func malformed(err error) error {
	return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
}
