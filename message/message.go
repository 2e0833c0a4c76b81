package message

import (
	"fmt"

	"github.com/coapclient/go-coap/message/codes"
)

// MaxTokenSize maximum of token size that can be used in message
const MaxTokenSize = 8

// Message is a decoded CoAP datagram.
type Message struct {
	Type      Type
	Code      codes.Code
	MessageID uint16
	Token     Token
	Options   Options
	Payload   []byte
}

// IsEmpty reports whether the message is an Empty message (code 0.00).
func (r *Message) IsEmpty() bool {
	return r.Code == codes.Empty
}

// Clone returns a deep copy so the engine can hand out snapshots.
func (r *Message) Clone() *Message {
	if r == nil {
		return nil
	}
	c := &Message{
		Type:      r.Type,
		Code:      r.Code,
		MessageID: r.MessageID,
		Token:     append(Token(nil), r.Token...),
		Options:   r.Options.Clone(),
	}
	if r.Payload != nil {
		c.Payload = append([]byte(nil), r.Payload...)
	}
	return c
}

func (r *Message) String() string {
	if r == nil {
		return "nil"
	}
	buf := fmt.Sprintf("Code: %v, Token: %v, Type: %v, MessageID: %v", r.Code, r.Token, r.Type, r.MessageID)
	path, err := r.Options.Path()
	if err == nil {
		buf = fmt.Sprintf("%s, Path: %v", buf, path)
	}
	cf, err := r.Options.ContentFormat()
	if err == nil {
		buf = fmt.Sprintf("%s, ContentFormat: %v", buf, cf)
	}
	queries, err := r.Options.Queries()
	if err == nil {
		buf = fmt.Sprintf("%s, Queries: %+v", buf, queries)
	}
	if len(r.Payload) > 0 {
		buf = fmt.Sprintf("%s, PayloadLen: %v", buf, len(r.Payload))
	}
	return buf
}
