package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/coapclient/go-coap/message"
	"github.com/coapclient/go-coap/message/codes"
	"github.com/coapclient/go-coap/message/linkformat"
	"github.com/coapclient/go-coap/udp/client"
)

// Discover fetches /.well-known/core from the server and parses it as CoRE Link Format.
func (c *Client) Discover(ctx context.Context, queries ...string) ([]linkformat.Resource, error) {
	return c.DiscoverAt(ctx, WellKnownCore, queries...)
}

// DiscoverAt is Discover for servers that publish their links at another path.
func (c *Client) DiscoverAt(ctx context.Context, path string, queries ...string) ([]linkformat.Resource, error) {
	req, err := NewRequest(codes.GET, path, queries...)
	if err != nil {
		return nil, fmt.Errorf("cannot create discover request: %w", err)
	}
	token, final, err := c.submit(ctx, client.Request{Message: req, Discover: true})
	if err != nil {
		return nil, err
	}
	ev, err := c.wait(ctx, token, final)
	if err != nil {
		return nil, err
	}
	if ev.Kind == client.EventError {
		return nil, ev.Err
	}
	return ev.Resources, nil
}

// multicastCollector buffers replies delivered by the engine until the
// caller drains them.
type multicastCollector struct {
	mutex   sync.Mutex
	replies []client.Event
	final   *client.Event
	wake    chan struct{}
}

func (m *multicastCollector) handle(ev client.Event) {
	m.mutex.Lock()
	if ev.Final {
		m.final = &ev
	} else {
		m.replies = append(m.replies, ev)
	}
	m.mutex.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *multicastCollector) drain() ([]client.Event, *client.Event) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	replies := m.replies
	m.replies = nil
	return replies, m.final
}

func (c *Client) multicast(ctx context.Context, req *message.Message, group string, discover bool, onReply func(client.Event)) error {
	addr, err := net.ResolveUDPAddr(c.cfg.Network, group)
	if err != nil {
		return fmt.Errorf("cannot resolve multicast group %v: %w", group, err)
	}
	if !addr.IP.IsMulticast() {
		return fmt.Errorf("%w: %v is not a multicast address", client.ErrInvalidRequest, group)
	}
	msg := req.Clone()
	msg.Type = message.NonConfirmable
	collector := multicastCollector{wake: make(chan struct{}, 1)}
	token, err := c.engine.Submit(ctx, client.Request{
		Message:  msg,
		Target:   addr,
		Discover: discover,
		OnEvent:  collector.handle,
	})
	if err != nil {
		return err
	}
	for {
		select {
		case <-collector.wake:
		case <-ctx.Done():
			if err := c.engine.Abort(c.ctx, token); err != nil && !errors.Is(err, client.ErrUnknownToken) {
				c.log.Debug().Err(err).Stringer("token", token).Msg("cannot abort multicast request")
			}
			return ctx.Err()
		}
		replies, final := collector.drain()
		for _, ev := range replies {
			onReply(ev)
		}
		if final != nil {
			if final.Kind == client.EventError {
				return final.Err
			}
			return nil
		}
	}
}

// DoMulticast sends req as a non-confirmable request to group (host:port) and
// calls onReply for every reply received within the multicast window.
func (c *Client) DoMulticast(ctx context.Context, req *message.Message, group string, onReply func(from net.Addr, resp *message.Message)) error {
	return c.multicast(ctx, req, group, false, func(ev client.Event) {
		onReply(ev.Source, ev.Message)
	})
}

// MulticastDiscover queries /.well-known/core of every server in group.
func (c *Client) MulticastDiscover(ctx context.Context, group string, onResources func(from net.Addr, resources []linkformat.Resource), queries ...string) error {
	req, err := NewRequest(codes.GET, WellKnownCore, queries...)
	if err != nil {
		return fmt.Errorf("cannot create discover request: %w", err)
	}
	return c.multicast(ctx, req, group, true, func(ev client.Event) {
		if ev.Kind == client.EventDiscovered {
			onResources(ev.Source, ev.Resources)
		}
	})
}
