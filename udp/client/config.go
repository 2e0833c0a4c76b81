package client

import (
	"time"

	"github.com/coapclient/go-coap/options/config"
	"github.com/coapclient/go-coap/pkg/rand"
)

const (
	// ExchangeLifetime bounds duplicate detection and the wait for a separate response (RFC 7252 section 4.8.2).
	ExchangeLifetime = 247 * time.Second
	// NonLifetime bounds how long a NON request waits for its response.
	NonLifetime = 145 * time.Second
	// DefaultMulticastWindow is how long replies to a multicast request are collected.
	DefaultMulticastWindow = 5 * time.Second

	defaultQueueSize = 64
	sweepInterval    = 4 * time.Second
	maxTokenAttempts = 16
	// maxBlockRestarts limits how often a block-wise download starts over.
	maxBlockRestarts = 8
)

var DefaultConfig = func() Config {
	return Config{
		Common:            config.NewCommon(),
		Transmission:      DefaultTransmission,
		ExchangeLifetime:  ExchangeLifetime,
		NonLifetime:       NonLifetime,
		MulticastWindow:   DefaultMulticastWindow,
		QueueSize:         defaultQueueSize,
		Network:           "udp",
		MulticastHopLimit: 1,
	}
}()

type Config struct {
	config.Common
	Transmission     Transmission
	ExchangeLifetime time.Duration
	NonLifetime      time.Duration
	MulticastWindow  time.Duration
	// Rand generates tokens, message ids and retransmission jitter; nil seeds from the clock.
	Rand      *rand.Rand
	QueueSize int

	// Network is the socket network of the client: udp, udp4 or udp6.
	Network string
	// MulticastHopLimit and MulticastLoopback apply to the client socket.
	MulticastHopLimit int
	MulticastLoopback bool
}
