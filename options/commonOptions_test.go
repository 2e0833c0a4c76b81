package options_test

import (
	"context"
	"testing"
	"time"

	"github.com/coapclient/go-coap/net/blockwise"
	"github.com/coapclient/go-coap/options"
	"github.com/coapclient/go-coap/pkg/rand"
	"github.com/coapclient/go-coap/pkg/runner/periodic"
	"github.com/coapclient/go-coap/udp"
	udpClient "github.com/coapclient/go-coap/udp/client"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestCommonUDPClientApply(t *testing.T) {
	cfg := udpClient.Config{}
	ctx := context.Background()
	errs := func(error) {
		// no-op
	}
	periodicRunner := periodic.Func(func(func(time.Time) bool) {
		// no-op
	})
	r := rand.NewRand(7)
	logger := zerolog.New(zerolog.NewTestWriter(t))

	opts := []udp.Option{
		options.WithContext(ctx),
		options.WithMaxMessageSize(1024),
		options.WithErrors(errs),
		options.WithLogger(logger),
		options.WithPeriodicRunner(periodicRunner),
		options.WithBlockwise(true, blockwise.SZX256),
		options.WithRand(r),
		options.WithLimitClientParallelRequest(42),
		options.WithLimitClientEndpointParallelRequest(43),
		options.WithQueueSize(16),
	}
	for _, o := range opts {
		o.UDPClientApply(&cfg)
	}

	require.Equal(t, ctx, cfg.Ctx)
	require.Equal(t, uint32(1024), cfg.MaxMessageSize)
	require.NotNil(t, cfg.Errors)
	require.NotNil(t, cfg.PeriodicRunner)
	require.True(t, cfg.BlockwiseEnable)
	require.Equal(t, blockwise.SZX256, cfg.BlockwiseSZX)
	require.Same(t, r, cfg.Rand)
	require.Equal(t, int64(42), cfg.LimitClientParallelRequests)
	require.Equal(t, int64(43), cfg.LimitClientEndpointParallelRequests)
	require.Equal(t, 16, cfg.QueueSize)
}

func TestUDPClientApply(t *testing.T) {
	cfg := udpClient.DefaultConfig
	opts := []udp.Option{
		options.WithTransmission(time.Second, 1.25, 2),
		options.WithLifetime(10*time.Second, 20*time.Second),
		options.WithMulticast(3*time.Second, 4, true),
		options.WithNetwork("udp6"),
	}
	for _, o := range opts {
		o.UDPClientApply(&cfg)
	}

	require.Equal(t, udpClient.Transmission{
		AckTimeout:      time.Second,
		AckRandomFactor: 1.25,
		MaxRetransmit:   2,
	}, cfg.Transmission)
	require.Equal(t, 10*time.Second, cfg.ExchangeLifetime)
	require.Equal(t, 20*time.Second, cfg.NonLifetime)
	require.Equal(t, 3*time.Second, cfg.MulticastWindow)
	require.Equal(t, 4, cfg.MulticastHopLimit)
	require.True(t, cfg.MulticastLoopback)
	require.Equal(t, "udp6", cfg.Network)
	require.NoError(t, cfg.Transmission.Validate())
}

func TestDefaultConfig(t *testing.T) {
	cfg := udpClient.DefaultConfig
	require.Equal(t, udpClient.DefaultTransmission, cfg.Transmission)
	require.Equal(t, udpClient.ExchangeLifetime, cfg.ExchangeLifetime)
	require.Equal(t, udpClient.NonLifetime, cfg.NonLifetime)
	require.Equal(t, "udp", cfg.Network)
	require.Equal(t, 1, cfg.MulticastHopLimit)
	require.True(t, cfg.BlockwiseEnable)
	require.Equal(t, blockwise.SZX1024, cfg.BlockwiseSZX)
}
