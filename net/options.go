package net

var DefaultUDPConnConfig = UDPConnConfig{
	Errors: func(error) {
		// don't report failures of optional socket settings
	},
	MulticastHopLimit: 1,
}

type UDPConnConfig struct {
	Errors            func(err error)
	MulticastHopLimit int
	MulticastLoopback bool
}

// A UDPOption sets options such as errors, multicast parameters, etc.
type UDPOption interface {
	ApplyUDP(*UDPConnConfig)
}

type ErrorsOpt struct {
	errors func(err error)
}

func (h ErrorsOpt) ApplyUDP(o *UDPConnConfig) {
	o.Errors = h.errors
}

func WithErrors(v func(err error)) ErrorsOpt {
	return ErrorsOpt{
		errors: v,
	}
}

type MulticastHopLimitOpt struct {
	hopLimit int
}

func (h MulticastHopLimitOpt) ApplyUDP(o *UDPConnConfig) {
	o.MulticastHopLimit = h.hopLimit
}

// WithMulticastHopLimit sets the TTL of multicast datagrams; 1 keeps them on the local link.
func WithMulticastHopLimit(hopLimit int) MulticastHopLimitOpt {
	return MulticastHopLimitOpt{hopLimit: hopLimit}
}

type MulticastLoopbackOpt struct {
	on bool
}

func (h MulticastLoopbackOpt) ApplyUDP(o *UDPConnConfig) {
	o.MulticastLoopback = h.on
}

// WithMulticastLoopback sets whether sent multicast datagrams are looped back to local listeners.
func WithMulticastLoopback(on bool) MulticastLoopbackOpt {
	return MulticastLoopbackOpt{on: on}
}
