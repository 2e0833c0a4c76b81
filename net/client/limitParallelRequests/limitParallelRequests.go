package limitparallelrequests

import (
	"context"
	"fmt"
	"hash/crc64"
	"math"

	"github.com/coapclient/go-coap/message"
	coapSync "github.com/coapclient/go-coap/pkg/sync"
	"golang.org/x/sync/semaphore"
)

type (
	DoFunc        = func(ctx context.Context, req *message.Message) (*message.Message, error)
	DoObserveFunc = func(ctx context.Context, req *message.Message, onNotification func(*message.Message)) (Observation, error)
)

type Observation = interface {
	Cancel(ctx context.Context) error
	Canceled() bool
}

type endpointQueue struct {
	processedCounter int64
	orderedRequest   []chan struct{}
}

// LimitParallelRequests bounds the number of requests in flight, overall and per resource path.
type LimitParallelRequests struct {
	endpointLimit int64
	limit         *semaphore.Weighted
	do            DoFunc
	doObserve     DoObserveFunc
	// requests over the endpoint limit wait here in arrival order
	endpointQueues *coapSync.Map[uint64, *endpointQueue]
}

// New creates new LimitParallelRequests. When limit, endpointLimit == 0, then limit is not used.
func New(limit, endpointLimit int64, do DoFunc, doObserve DoObserveFunc) *LimitParallelRequests {
	if limit <= 0 {
		limit = math.MaxInt64
	}
	if endpointLimit <= 0 {
		endpointLimit = math.MaxInt64
	}
	return &LimitParallelRequests{
		limit:          semaphore.NewWeighted(limit),
		endpointLimit:  endpointLimit,
		do:             do,
		doObserve:      doObserve,
		endpointQueues: coapSync.NewMap[uint64, *endpointQueue](),
	}
}

var crcTable = crc64.MakeTable(crc64.ISO)

func hash(opts message.Options) uint64 {
	h := crc64.New(crcTable)
	for _, opt := range opts {
		if opt.ID == message.URIPath {
			_, _ = h.Write(opt.Value) // hash never returns an error
		}
	}
	return h.Sum64()
}

func (c *LimitParallelRequests) acquireEndpoint(ctx context.Context, endpointLimitKey uint64) error {
	reqChan := make(chan struct{}) // closed when the request may proceed
	c.endpointQueues.ReplaceWithFunc(endpointLimitKey, func(value *endpointQueue, loaded bool) (*endpointQueue, bool) {
		if !loaded {
			close(reqChan)
			return &endpointQueue{processedCounter: 1}, false
		}
		if value.processedCounter < c.endpointLimit {
			close(reqChan)
			value.processedCounter++
			return value, false
		}
		value.orderedRequest = append(value.orderedRequest, reqChan)
		return value, false
	})
	select {
	case <-ctx.Done():
		c.cancelWaiting(endpointLimitKey, reqChan)
		return ctx.Err()
	case <-reqChan:
		return nil
	}
}

// cancelWaiting withdraws reqChan from the queue, or releases the slot when it was already granted.
func (c *LimitParallelRequests) cancelWaiting(endpointLimitKey uint64, reqChan chan struct{}) {
	granted := true
	c.endpointQueues.ReplaceWithFunc(endpointLimitKey, func(value *endpointQueue, loaded bool) (*endpointQueue, bool) {
		if !loaded {
			return nil, true
		}
		for i, ch := range value.orderedRequest {
			if ch == reqChan {
				value.orderedRequest = append(value.orderedRequest[:i], value.orderedRequest[i+1:]...)
				granted = false
				break
			}
		}
		return value, false
	})
	if granted {
		c.releaseEndpoint(endpointLimitKey)
	}
}

func (c *LimitParallelRequests) releaseEndpoint(endpointLimitKey uint64) {
	c.endpointQueues.ReplaceWithFunc(endpointLimitKey, func(oldValue *endpointQueue, oldLoaded bool) (*endpointQueue, bool) {
		if !oldLoaded {
			return nil, true
		}
		if len(oldValue.orderedRequest) > 0 {
			reqChan := oldValue.orderedRequest[0]
			oldValue.orderedRequest = oldValue.orderedRequest[1:]
			close(reqChan)
			return oldValue, false
		}
		oldValue.processedCounter--
		if oldValue.processedCounter <= 0 {
			return nil, true
		}
		return oldValue, false
	})
}

func (c *LimitParallelRequests) Do(ctx context.Context, req *message.Message) (*message.Message, error) {
	endpointLimitKey := hash(req.Options)
	if err := c.acquireEndpoint(ctx, endpointLimitKey); err != nil {
		return nil, fmt.Errorf("cannot process request %v for client endpoint limit: %w", req, err)
	}
	defer c.releaseEndpoint(endpointLimitKey)
	if err := c.limit.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("cannot process request %v for client limit: %w", req, err)
	}
	defer c.limit.Release(1)
	return c.do(ctx, req)
}

// DoObserve holds the limits only while the observation is being established.
func (c *LimitParallelRequests) DoObserve(ctx context.Context, req *message.Message, onNotification func(*message.Message)) (Observation, error) {
	endpointLimitKey := hash(req.Options)
	if err := c.acquireEndpoint(ctx, endpointLimitKey); err != nil {
		return nil, fmt.Errorf("cannot process observe request %v for client endpoint limit: %w", req, err)
	}
	defer c.releaseEndpoint(endpointLimitKey)
	if err := c.limit.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("cannot process observe request %v for client limit: %w", req, err)
	}
	defer c.limit.Release(1)
	return c.doObserve(ctx, req, onNotification)
}
