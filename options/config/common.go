package config

import (
	"context"

	"github.com/coapclient/go-coap/net/blockwise"
	"github.com/coapclient/go-coap/pkg/runner/periodic"
	"github.com/rs/zerolog"
)

type ErrorFunc = func(error)

// Common holds settings shared by the engine and the client.
type Common struct {
	// zero disables the limiter
	LimitClientParallelRequests         int64
	LimitClientEndpointParallelRequests int64
	Ctx                                 context.Context
	// Errors receives asynchronous faults; nil logs them through Logger.
	Errors ErrorFunc
	// PeriodicRunner drives cache sweeps; nil makes the engine start its own ticker.
	PeriodicRunner  periodic.Func
	Logger          zerolog.Logger
	MaxMessageSize  uint32
	BlockwiseSZX    blockwise.SZX
	BlockwiseEnable bool
}

func NewCommon() Common {
	return Common{
		Ctx:             context.Background(),
		MaxMessageSize:  64 * 1024,
		Logger:          zerolog.Nop(),
		BlockwiseSZX:    blockwise.SZX1024,
		BlockwiseEnable: true,
	}
}
