package udp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/coapclient/go-coap/message"
	"github.com/coapclient/go-coap/message/codes"
	coapNet "github.com/coapclient/go-coap/net"
	limitparallelrequests "github.com/coapclient/go-coap/net/client/limitParallelRequests"
	"github.com/coapclient/go-coap/pkg/fn"
	"github.com/coapclient/go-coap/udp/client"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

// Client talks to one coap server over udp. It also sends multicast
// requests from the same socket.
type Client struct {
	cfg    client.Config
	conn   *coapNet.UDPConn
	engine *client.Engine
	target *net.UDPAddr
	limit  *limitparallelrequests.LimitParallelRequests
	log    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	closed  atomic.Bool
	onClose fn.FuncList
}

// Dial creates a client for the server at target (host:port).
func Dial(target string, opts ...Option) (*Client, error) {
	cfg := client.DefaultConfig
	for _, o := range opts {
		o.UDPClientApply(&cfg)
	}
	if cfg.Ctx == nil {
		cfg.Ctx = context.Background()
	}
	raddr, err := net.ResolveUDPAddr(cfg.Network, target)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve %v: %w", target, err)
	}
	conn, err := coapNet.NewListenUDP(cfg.Network, ":0",
		coapNet.WithErrors(func(err error) {
			cfg.Logger.Debug().Err(err).Msg("socket option")
		}),
		coapNet.WithMulticastHopLimit(cfg.MulticastHopLimit),
		coapNet.WithMulticastLoopback(cfg.MulticastLoopback),
	)
	if err != nil {
		return nil, fmt.Errorf("cannot create udp socket: %w", err)
	}
	c, err := NewClient(conn, raddr, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

// NewClient runs the engine and the socket reader over conn. The client owns conn.
func NewClient(conn *coapNet.UDPConn, target *net.UDPAddr, cfg client.Config) (*Client, error) {
	engine, err := client.NewEngine(cfg, conn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(cfg.Ctx)
	group, gctx := errgroup.WithContext(ctx)
	c := &Client{
		cfg:    cfg,
		conn:   conn,
		engine: engine,
		target: target,
		log:    cfg.Logger.With().Str("remote", target.String()).Logger(),
		ctx:    gctx,
		cancel: cancel,
		group:  group,
	}
	c.limit = limitparallelrequests.New(cfg.LimitClientParallelRequests, cfg.LimitClientEndpointParallelRequests, c.do, c.doObserve)

	group.Go(func() error {
		return engine.Run(gctx)
	})
	group.Go(func() error {
		return c.readLoop(gctx, conn)
	})
	group.Go(func() error {
		<-gctx.Done()
		_ = conn.Close()
		return nil
	})
	return c, nil
}

type packetReader interface {
	ReadFrom(ctx context.Context, buffer []byte) (int, *net.UDPAddr, error)
}

func (c *Client) readLoop(ctx context.Context, r packetReader) error {
	buf := make([]byte, c.cfg.MaxMessageSize)
	for {
		n, from, err := r.ReadFrom(ctx, buf)
		if err != nil {
			switch {
			case ctx.Err() != nil, errors.Is(err, coapNet.ErrConnectionIsClosed):
				return nil
			case coapNet.IsTemporary(err):
				continue
			}
			err = fmt.Errorf("cannot read from socket: %w", err)
			if rerr := c.engine.ReportTransportError(ctx, c.target, err); rerr != nil {
				c.log.Debug().Err(rerr).Msg("cannot report transport error")
			}
			return err
		}
		if err := c.engine.Process(ctx, buf[:n], from); err != nil {
			if ctx.Err() != nil || errors.Is(err, client.ErrClosed) {
				return nil
			}
			return err
		}
	}
}

// Close stops the client; pending requests fail with client.ErrClosed.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs *multierror.Error
	c.cancel()
	if err := c.conn.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := c.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		errs = multierror.Append(errs, err)
	}
	c.onClose.Execute()
	return errs.ErrorOrNil()
}

// AddOnClose calls f when the client is closed.
func (c *Client) AddOnClose(f func()) {
	c.onClose.Add(f)
}

// Done is closed when the client stopped.
func (c *Client) Done() <-chan struct{} {
	return c.engine.Done()
}

// RemoteAddr returns the address of the server.
func (c *Client) RemoteAddr() net.Addr {
	return c.target
}

func (c *Client) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// PendingRequests returns the state of the requests in flight.
func (c *Client) PendingRequests(ctx context.Context) ([]client.RequestSnapshot, error) {
	return c.engine.Snapshot(ctx)
}

func eventResult(ev client.Event) (*message.Message, error) {
	switch ev.Kind {
	case client.EventError:
		return ev.Message, ev.Err
	case client.EventResponse, client.EventDiscovered, client.EventNotification:
		return ev.Message, nil
	}
	return nil, fmt.Errorf("%w: unexpected %v event", client.ErrProtocol, ev.Kind)
}

func (c *Client) submit(ctx context.Context, r client.Request) (message.Token, <-chan client.Event, error) {
	final := make(chan client.Event, 1)
	r.Target = c.target
	r.OnEvent = func(ev client.Event) {
		if ev.Final {
			final <- ev
		}
	}
	token, err := c.engine.Submit(ctx, r)
	if err != nil {
		return nil, nil, err
	}
	return token, final, nil
}

func (c *Client) wait(ctx context.Context, token message.Token, final <-chan client.Event) (client.Event, error) {
	select {
	case ev := <-final:
		return ev, nil
	case <-ctx.Done():
		if err := c.engine.Abort(c.ctx, token); err != nil && !errors.Is(err, client.ErrUnknownToken) {
			c.log.Debug().Err(err).Stringer("token", token).Msg("cannot abort request")
		}
		return client.Event{}, ctx.Err()
	}
}

func (c *Client) do(ctx context.Context, req *message.Message) (*message.Message, error) {
	token, final, err := c.submit(ctx, client.Request{Message: req})
	if err != nil {
		return nil, err
	}
	ev, err := c.wait(ctx, token, final)
	if err != nil {
		return nil, err
	}
	return eventResult(ev)
}

// Do sends req and waits for its final response. A 4.xx or 5.xx response is
// returned together with a status error.
func (c *Client) Do(ctx context.Context, req *message.Message) (*message.Message, error) {
	return c.limit.Do(ctx, req)
}

// NewRequest creates a confirmable request for path. Queries are added in order.
func NewRequest(code codes.Code, path string, queries ...string) (*message.Message, error) {
	opts, err := message.Options{}.SetPath(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path %v: %w", path, err)
	}
	for _, q := range queries {
		if opts, err = opts.AddQuery(q); err != nil {
			return nil, fmt.Errorf("invalid query %v: %w", q, err)
		}
	}
	return &message.Message{Type: message.Confirmable, Code: code, Options: opts}, nil
}

func newRequestWithPayload(code codes.Code, path string, contentFormat message.MediaType, payload io.ReadSeeker, queries ...string) (*message.Message, error) {
	req, err := NewRequest(code, path, queries...)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return req, nil
	}
	if _, err := payload.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("cannot seek payload: %w", err)
	}
	data, err := io.ReadAll(payload)
	if err != nil {
		return nil, fmt.Errorf("cannot read payload: %w", err)
	}
	req.Options = req.Options.SetContentFormat(contentFormat)
	req.Payload = data
	return req, nil
}

// Get issues a GET to the specified path.
func (c *Client) Get(ctx context.Context, path string, queries ...string) (*message.Message, error) {
	req, err := NewRequest(codes.GET, path, queries...)
	if err != nil {
		return nil, fmt.Errorf("cannot create get request: %w", err)
	}
	return c.Do(ctx, req)
}

// Post issues a POST to the specified path.
func (c *Client) Post(ctx context.Context, path string, contentFormat message.MediaType, payload io.ReadSeeker, queries ...string) (*message.Message, error) {
	req, err := newRequestWithPayload(codes.POST, path, contentFormat, payload, queries...)
	if err != nil {
		return nil, fmt.Errorf("cannot create post request: %w", err)
	}
	return c.Do(ctx, req)
}

// Put issues a PUT to the specified path.
func (c *Client) Put(ctx context.Context, path string, contentFormat message.MediaType, payload io.ReadSeeker, queries ...string) (*message.Message, error) {
	req, err := newRequestWithPayload(codes.PUT, path, contentFormat, payload, queries...)
	if err != nil {
		return nil, fmt.Errorf("cannot create put request: %w", err)
	}
	return c.Do(ctx, req)
}

// Delete deletes the resource identified by the request path.
func (c *Client) Delete(ctx context.Context, path string, queries ...string) (*message.Message, error) {
	req, err := NewRequest(codes.DELETE, path, queries...)
	if err != nil {
		return nil, fmt.Errorf("cannot create delete request: %w", err)
	}
	return c.Do(ctx, req)
}
