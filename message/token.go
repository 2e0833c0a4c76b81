package message

import (
	"bytes"
	"encoding/hex"
	"io"
)

type Token []byte

func (t Token) String() string {
	return hex.EncodeToString(t)
}

// Equal reports whether both tokens carry the same bytes.
func (t Token) Equal(o Token) bool {
	return bytes.Equal(t, o)
}

// GetToken generates a random 8-byte token from the given source.
func GetToken(r io.Reader) (Token, error) {
	b := make(Token, MaxTokenSize)
	_, err := io.ReadFull(r, b)
	if err != nil {
		return nil, err
	}
	return b, nil
}
