package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coapclient/go-coap/pkg/rand"
)

// Transmission holds the RFC 7252 section 4.8 parameters for confirmable messages.
type Transmission struct {
	AckTimeout      time.Duration
	AckRandomFactor float64
	MaxRetransmit   uint32
}

var DefaultTransmission = Transmission{
	AckTimeout:      2 * time.Second,
	AckRandomFactor: 1.5,
	MaxRetransmit:   4,
}

var errInvalidTransmission = errors.New("invalid transmission parameters")

func (t Transmission) Validate() error {
	if t.AckTimeout <= 0 {
		return fmt.Errorf("%w: ack timeout %v", errInvalidTransmission, t.AckTimeout)
	}
	if t.AckRandomFactor < 1 {
		return fmt.Errorf("%w: ack random factor %v", errInvalidTransmission, t.AckRandomFactor)
	}
	if t.MaxRetransmit > 20 {
		return fmt.Errorf("%w: max retransmit %v", errInvalidTransmission, t.MaxRetransmit)
	}
	return nil
}

func (t Transmission) scaled(n uint32) time.Duration {
	return time.Duration(float64(t.AckTimeout) * float64(uint64(1)<<n-1) * t.AckRandomFactor)
}

// MaxRetransmitSpan is the maximum time from the first transmission to the last retransmission.
func (t Transmission) MaxRetransmitSpan() time.Duration {
	return t.scaled(t.MaxRetransmit)
}

// MaxRetransmitWait is the maximum time from the first transmission until giving up.
func (t Transmission) MaxRetransmitWait() time.Duration {
	return t.scaled(t.MaxRetransmit + 1)
}

// initialTimeout draws uniformly from [AckTimeout, AckTimeout*AckRandomFactor].
func (t Transmission) initialTimeout(r *rand.Rand) time.Duration {
	spread := float64(t.AckTimeout) * (t.AckRandomFactor - 1)
	return t.AckTimeout + time.Duration(spread*r.Float64())
}

// newBackOff returns the waits between transmissions of a confirmable
// message: the initial timeout first, then doubling, and backoff.Stop after
// MaxRetransmit retransmissions.
func (t Transmission) newBackOff(r *rand.Rand) backoff.BackOff {
	initial := t.initialTimeout(r)
	exp := &backoff.ExponentialBackOff{
		InitialInterval:     initial,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         initial << t.MaxRetransmit,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	exp.Reset()
	return backoff.WithMaxRetries(exp, uint64(t.MaxRetransmit)+1)
}
