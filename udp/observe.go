package udp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/coapclient/go-coap/message"
	"github.com/coapclient/go-coap/message/codes"
	limitparallelrequests "github.com/coapclient/go-coap/net/client/limitParallelRequests"
	"github.com/coapclient/go-coap/udp/client"
	"go.uber.org/atomic"
)

// Observation is a running observe registration. Notifications are handed to
// the callback from a dedicated goroutine in the order they were accepted.
type Observation struct {
	c        *Client
	token    message.Token
	onNotify func(*message.Message)

	mutex    sync.Mutex
	queue    []*message.Message
	finished bool
	err      error
	wake     chan struct{}

	established     chan struct{}
	establishedOnce sync.Once
	done            chan struct{}
	canceled        atomic.Bool
}

func newObservation(c *Client, onNotify func(*message.Message)) *Observation {
	o := &Observation{
		c:           c,
		onNotify:    onNotify,
		wake:        make(chan struct{}, 1),
		established: make(chan struct{}),
		done:        make(chan struct{}),
	}
	go o.pump()
	return o
}

// handle runs on the engine goroutine.
func (o *Observation) handle(ev client.Event) {
	o.mutex.Lock()
	switch ev.Kind {
	case client.EventNotification:
		o.queue = append(o.queue, ev.Message)
	case client.EventResponse:
		if !o.canceled.Load() {
			o.queue = append(o.queue, ev.Message)
		}
	case client.EventError:
		o.err = ev.Err
	}
	if ev.Final {
		o.finished = true
	}
	o.mutex.Unlock()
	o.establishedOnce.Do(func() { close(o.established) })
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *Observation) pump() {
	defer close(o.done)
	for range o.wake {
		for {
			o.mutex.Lock()
			if len(o.queue) == 0 {
				finished := o.finished
				o.mutex.Unlock()
				if finished {
					return
				}
				break
			}
			m := o.queue[0]
			o.queue[0] = nil
			o.queue = o.queue[1:]
			o.mutex.Unlock()
			o.onNotify(m)
		}
	}
}

// firstError returns the error of an observation that ended before any
// notification was delivered.
func (o *Observation) firstError() error {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	if o.finished && o.err != nil && len(o.queue) == 0 {
		return o.err
	}
	return nil
}

// Token identifies the observation.
func (o *Observation) Token() message.Token {
	return o.token
}

// Done is closed after the last notification was handed to the callback.
func (o *Observation) Done() <-chan struct{} {
	return o.done
}

// Err returns why the observation ended; nil while running or after Cancel.
func (o *Observation) Err() error {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return o.err
}

func (o *Observation) Canceled() bool {
	return o.canceled.Load()
}

// Cancel deregisters the observation at the server and waits until it ended.
func (o *Observation) Cancel(ctx context.Context) error {
	if !o.canceled.CompareAndSwap(false, true) {
		return nil
	}
	err := o.c.engine.CancelObserve(ctx, o.token)
	if err != nil && !errors.Is(err, client.ErrUnknownToken) {
		return fmt.Errorf("cannot cancel observation %v: %w", o.token, err)
	}
	select {
	case <-o.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) doObserve(ctx context.Context, req *message.Message, onNotify func(*message.Message)) (limitparallelrequests.Observation, error) {
	o := newObservation(c, onNotify)
	token, err := c.engine.Submit(ctx, client.Request{
		Message: req,
		Target:  c.target,
		Observe: true,
		OnEvent: o.handle,
	})
	if err != nil {
		close(o.wake)
		return nil, err
	}
	o.token = token
	select {
	case <-o.established:
	case <-ctx.Done():
		o.canceled.Store(true)
		if err := c.engine.Abort(c.ctx, token); err != nil && !errors.Is(err, client.ErrUnknownToken) {
			c.log.Debug().Err(err).Stringer("token", token).Msg("cannot abort observation")
		}
		return nil, ctx.Err()
	}
	if err := o.firstError(); err != nil {
		return nil, err
	}
	return o, nil
}

// Observe registers at path and calls onNotify for the first response and
// every fresh notification. It returns once the server answered the
// registration; a server that does not support observe answers with a single
// response, after which the returned observation is already done.
func (c *Client) Observe(ctx context.Context, path string, onNotify func(*message.Message), queries ...string) (*Observation, error) {
	req, err := NewRequest(codes.GET, path, queries...)
	if err != nil {
		return nil, fmt.Errorf("cannot create observe request: %w", err)
	}
	obs, err := c.limit.DoObserve(ctx, req, onNotify)
	if err != nil {
		return nil, err
	}
	o, ok := obs.(*Observation)
	if !ok {
		return nil, fmt.Errorf("invalid observation type %T", obs)
	}
	return o, nil
}
