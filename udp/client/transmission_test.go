package client

import (
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coapclient/go-coap/pkg/rand"
	"github.com/stretchr/testify/require"
)

func TestTransmissionDerivedTimes(t *testing.T) {
	require.Equal(t, 45*time.Second, DefaultTransmission.MaxRetransmitSpan())
	require.Equal(t, 93*time.Second, DefaultTransmission.MaxRetransmitWait())
}

func TestTransmissionValidate(t *testing.T) {
	require.NoError(t, DefaultTransmission.Validate())
	require.Error(t, Transmission{AckTimeout: 0, AckRandomFactor: 1.5, MaxRetransmit: 4}.Validate())
	require.Error(t, Transmission{AckTimeout: time.Second, AckRandomFactor: 0.5, MaxRetransmit: 4}.Validate())
	require.Error(t, Transmission{AckTimeout: time.Second, AckRandomFactor: 1, MaxRetransmit: 21}.Validate())
}

func TestInitialTimeoutWithinBounds(t *testing.T) {
	r := rand.NewRand(7)
	for i := 0; i < 1000; i++ {
		d := DefaultTransmission.initialTimeout(r)
		require.GreaterOrEqual(t, d, 2*time.Second)
		require.LessOrEqual(t, d, 3*time.Second)
	}
}

func TestRetransmitBackOffDoubles(t *testing.T) {
	tr := Transmission{AckTimeout: time.Second, AckRandomFactor: 1, MaxRetransmit: 4}
	b := tr.newBackOff(rand.NewRand(1))

	var waits []time.Duration
	for {
		d := b.NextBackOff()
		if d == backoff.Stop {
			break
		}
		waits = append(waits, d)
	}
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}, waits)

	var total time.Duration
	for _, w := range waits {
		total += w
	}
	require.Equal(t, tr.MaxRetransmitWait(), total)

	b.Reset()
	require.Equal(t, time.Second, b.NextBackOff())
	require.Equal(t, 2*time.Second, b.NextBackOff())
}

func TestRetransmitBackOffWithoutRetries(t *testing.T) {
	tr := Transmission{AckTimeout: time.Second, AckRandomFactor: 1.5, MaxRetransmit: 0}
	b := tr.newBackOff(rand.NewRand(1))
	d := b.NextBackOff()
	require.GreaterOrEqual(t, d, time.Second)
	require.LessOrEqual(t, d, 1500*time.Millisecond)
	require.Equal(t, backoff.Stop, b.NextBackOff())
}
