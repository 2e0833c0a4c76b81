package main

import (
	"bytes"
	"net"
	"testing"

	"github.com/coapclient/go-coap/message"
	"github.com/coapclient/go-coap/message/codes"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"
)

func TestRenderPayload(t *testing.T) {
	cborPayload, err := cbor.Marshal(map[string]int{"temp": 21})
	require.NoError(t, err)

	tests := []struct {
		name    string
		cf      message.MediaType
		hasCF   bool
		payload []byte
		want    string
	}{
		{name: "empty", payload: nil, want: ""},
		{name: "text", cf: message.TextPlain, hasCF: true, payload: []byte("hello"), want: "hello"},
		{name: "no content format", payload: []byte("raw"), want: "raw"},
		{name: "binary", payload: []byte{0xff, 0x00, 0x01}, want: "ff 00 01"},
		{name: "cbor", cf: message.AppCBOR, hasCF: true, payload: cborPayload, want: `{"temp": 21}`},
		{
			name:    "link format",
			cf:      message.AppLinkFormat,
			hasCF:   true,
			payload: []byte(`</s>;rt="temp";obs,</l>;if="actuator"`),
			want:    "/s rt=temp obs\n/l if=actuator",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, renderPayload(tt.cf, tt.hasCF, tt.payload))
		})
	}
}

func TestPrintMessage(t *testing.T) {
	var b bytes.Buffer
	m := &message.Message{
		Code:    codes.Content,
		Options: message.Options{}.SetContentFormat(message.TextPlain).SetObserve(3),
		Payload: []byte("21.5"),
	}
	printMessage(&b, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5683}, m)
	out := b.String()
	require.Contains(t, out, "127.0.0.1:5683")
	require.Contains(t, out, codes.Content.String())
	require.Contains(t, out, "observe=3")
	require.Contains(t, out, "21.5")

	b.Reset()
	printMessage(&b, nil, nil)
	require.Empty(t, b.String())
}
