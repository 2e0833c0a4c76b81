package udp

import (
	"github.com/coapclient/go-coap/udp/client"
)

// Option sets a client setting; see package options.
type Option interface {
	UDPClientApply(cfg *client.Config)
}

// DefaultPort is the IANA port of coap over udp.
const DefaultPort = 5683

// WellKnownCore is the resource discovery path (RFC 6690).
const WellKnownCore = "/.well-known/core"
