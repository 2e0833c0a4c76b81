package options

import (
	"time"

	udpClient "github.com/coapclient/go-coap/udp/client"
)

// TransmissionOpt transmission options.
type TransmissionOpt struct {
	ackTimeout      time.Duration
	ackRandomFactor float64
	maxRetransmit   uint32
}

func (o TransmissionOpt) UDPClientApply(cfg *udpClient.Config) {
	cfg.Transmission = udpClient.Transmission{
		AckTimeout:      o.ackTimeout,
		AckRandomFactor: o.ackRandomFactor,
		MaxRetransmit:   o.maxRetransmit,
	}
}

// WithTransmission set options for (re)transmission for Confirmable message-s.
func WithTransmission(ackTimeout time.Duration, ackRandomFactor float64, maxRetransmit uint32) TransmissionOpt {
	return TransmissionOpt{
		ackTimeout:      ackTimeout,
		ackRandomFactor: ackRandomFactor,
		maxRetransmit:   maxRetransmit,
	}
}

type LifetimeOpt struct {
	exchangeLifetime time.Duration
	nonLifetime      time.Duration
}

func (o LifetimeOpt) UDPClientApply(cfg *udpClient.Config) {
	cfg.ExchangeLifetime = o.exchangeLifetime
	cfg.NonLifetime = o.nonLifetime
}

// WithLifetime sets how long a separate response is awaited and how long
// a non-confirmable request waits for its response.
func WithLifetime(exchangeLifetime, nonLifetime time.Duration) LifetimeOpt {
	return LifetimeOpt{
		exchangeLifetime: exchangeLifetime,
		nonLifetime:      nonLifetime,
	}
}

// MulticastOpt multicast options.
type MulticastOpt struct {
	window   time.Duration
	hopLimit int
	loopback bool
}

func (o MulticastOpt) UDPClientApply(cfg *udpClient.Config) {
	cfg.MulticastWindow = o.window
	cfg.MulticastHopLimit = o.hopLimit
	cfg.MulticastLoopback = o.loopback
}

// WithMulticast sets how long replies to a multicast request are collected,
// the hop limit of multicast datagrams and whether they loop back to the host.
func WithMulticast(window time.Duration, hopLimit int, loopback bool) MulticastOpt {
	return MulticastOpt{
		window:   window,
		hopLimit: hopLimit,
		loopback: loopback,
	}
}

// NetOpt network option.
type NetOpt struct {
	net string
}

func (o NetOpt) UDPClientApply(cfg *udpClient.Config) {
	cfg.Network = o.net
}

// WithNetwork define's udp version (udp4, udp6, udp) for client.
func WithNetwork(net string) NetOpt {
	return NetOpt{net: net}
}
