package limitparallelrequests

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coapclient/go-coap/message"
	"github.com/coapclient/go-coap/message/codes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func newReq(t *testing.T, path string) *message.Message {
	opts, err := message.Options{}.SetPath(path)
	require.NoError(t, err)
	return &message.Message{Code: codes.GET, Options: opts}
}

type mockClient struct {
	num      atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (c *mockClient) enter() {
	c.num.Inc()
	v := c.inFlight.Inc()
	for {
		m := c.maxSeen.Load()
		if v <= m || c.maxSeen.CompareAndSwap(m, v) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	c.inFlight.Dec()
}

func (c *mockClient) do(context.Context, *message.Message) (*message.Message, error) {
	c.enter()
	return nil, errors.New("not implemented")
}

func (c *mockClient) doObserve(context.Context, *message.Message, func(*message.Message)) (Observation, error) {
	c.enter()
	return nil, errors.New("not implemented")
}

func TestLimitParallelRequestsDo(t *testing.T) {
	tests := []struct {
		name          string
		limit         int64
		endpointLimit int64
		wantMax       int32
	}{
		{name: "limit 1 endpointLimit 1", limit: 1, endpointLimit: 1, wantMax: 1},
		{name: "limit 1 endpointLimit n", limit: 1, endpointLimit: 0, wantMax: 1},
		{name: "limit n endpointLimit 2", limit: 0, endpointLimit: 2, wantMax: 2},
		{name: "limit n endpointLimit n", limit: 0, endpointLimit: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mockedClient mockClient
			c := New(tt.limit, tt.endpointLimit, mockedClient.do, mockedClient.doObserve)
			var wg sync.WaitGroup
			const n = 24
			wg.Add(n)
			for i := 0; i < n; i++ {
				go func() {
					defer wg.Done()
					_, err := c.Do(context.Background(), newReq(t, "/a"))
					assert.Error(t, err)
				}()
			}
			wg.Wait()
			require.Equal(t, int32(n), mockedClient.num.Load())
			if tt.wantMax > 0 {
				require.LessOrEqual(t, mockedClient.maxSeen.Load(), tt.wantMax)
			}
			require.Equal(t, 0, c.endpointQueues.Length())
		})
	}
}

func TestLimitParallelRequestsCanceledContext(t *testing.T) {
	var mockedClient mockClient
	c := New(1, 1, mockedClient.do, mockedClient.doObserve)
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	var wg sync.WaitGroup
	const n = 24
	wg.Add(n)
	for i := 0; i < n; i++ {
		ctx := context.Background()
		if i%3 == 1 {
			ctx = canceled
		}
		go func(ctx context.Context) {
			defer wg.Done()
			_, err := c.DoObserve(ctx, newReq(t, "/obs"), func(*message.Message) {})
			assert.Error(t, err)
		}(ctx)
	}
	wg.Wait()
	require.GreaterOrEqual(t, int32(n), mockedClient.num.Load())
	require.Equal(t, 0, c.endpointQueues.Length())
}

func TestLimitParallelRequestsPathsAreIndependent(t *testing.T) {
	assert.NotEqual(t, hash(newReq(t, "/a").Options), hash(newReq(t, "/b").Options))
	assert.Equal(t, hash(newReq(t, "/a").Options), hash(newReq(t, "/a").Options))
}
