package message

import (
	"bytes"
	"testing"

	"github.com/coapclient/go-coap/message/codes"
	"github.com/stretchr/testify/require"
)

func TestGetToken(t *testing.T) {
	token, err := GetToken(bytes.NewReader([]byte{1, 2, 3, 4, 5, 6, 7, 8}))
	require.NoError(t, err)
	require.Len(t, token, MaxTokenSize)
	require.Equal(t, "0102030405060708", token.String())

	_, err = GetToken(bytes.NewReader([]byte{1, 2}))
	require.Error(t, err)
}

func TestMessageClone(t *testing.T) {
	opts, err := Options{}.SetPath("/a")
	require.NoError(t, err)
	m := &Message{
		Type:      Confirmable,
		Code:      codes.GET,
		MessageID: 7,
		Token:     Token("abcd"),
		Options:   opts,
		Payload:   []byte("x"),
	}
	c := m.Clone()
	require.Equal(t, m, c)
	c.Payload[0] = 'y'
	c.Token[0] = 'z'
	c.Options[0].Value[0] = 'b'
	require.Equal(t, []byte("x"), m.Payload)
	require.Equal(t, Token("abcd"), m.Token)
	p, err := m.Options.Path()
	require.NoError(t, err)
	require.Equal(t, "/a", p)
	require.Contains(t, m.String(), "Path: /a")
}

func TestTypeString(t *testing.T) {
	require.Equal(t, "CON", Confirmable.String())
	require.Equal(t, "RST", Reset.String())
	require.Equal(t, "Type(7)", Type(7).String())
	require.True(t, ValidateType(Acknowledgement))
	require.False(t, ValidateType(Type(4)))
}

func TestOptionIDCritical(t *testing.T) {
	require.True(t, URIPath.Critical())
	require.True(t, Block2.Critical())
	require.False(t, Observe.Critical())
	require.False(t, Size1.Critical())
	require.False(t, ContentFormat.Critical())
}
