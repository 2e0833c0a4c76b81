package udp

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/coapclient/go-coap/message"
	"github.com/coapclient/go-coap/message/codes"
	"github.com/coapclient/go-coap/message/status"
	coapNet "github.com/coapclient/go-coap/net"
	"github.com/coapclient/go-coap/udp/client"
	"github.com/coapclient/go-coap/udp/coder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

type handlerFunc func(s *fakeServer, req *message.Message, from *net.UDPAddr)

type fakeServer struct {
	t       *testing.T
	conn    *coapNet.UDPConn
	handler handlerFunc
	mid     atomic.Uint32
	wg      sync.WaitGroup
}

func newFakeServer(t *testing.T, handler handlerFunc) *fakeServer {
	conn, err := coapNet.NewListenUDP("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	s := &fakeServer{t: t, conn: conn, handler: handler}
	s.mid.Store(1000)
	ctx, cancel := context.WithCancel(context.Background())
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		buf := make([]byte, 2048)
		for {
			n, from, err := conn.ReadFrom(ctx, buf)
			if err != nil {
				if coapNet.IsTemporary(err) {
					continue
				}
				return
			}
			var req message.Message
			if _, err := coder.DefaultCoder.Decode(buf[:n], &req); err != nil {
				continue
			}
			if req.Type == message.Acknowledgement || req.Type == message.Reset {
				continue
			}
			s.handler(s, &req, from)
		}
	}()
	t.Cleanup(func() {
		cancel()
		_ = conn.Close()
		s.wg.Wait()
	})
	return s
}

func (s *fakeServer) addr() string {
	return s.conn.LocalAddr().String()
}

func (s *fakeServer) send(m message.Message, to *net.UDPAddr) {
	data, err := coder.DefaultCoder.Marshal(m)
	require.NoError(s.t, err)
	require.NoError(s.t, s.conn.WriteTo(context.Background(), data, to))
}

func (s *fakeServer) nextMID() uint16 {
	return uint16(s.mid.Inc())
}

// reply answers req in a piggybacked ACK.
func (s *fakeServer) reply(req *message.Message, to *net.UDPAddr, code codes.Code, opts message.Options, payload []byte) {
	s.send(message.Message{
		Type:      message.Acknowledgement,
		Code:      code,
		MessageID: req.MessageID,
		Token:     req.Token,
		Options:   opts,
		Payload:   payload,
	}, to)
}

func dialTest(t *testing.T, s *fakeServer, opts ...Option) *Client {
	opts = append([]Option{
		transmissionOpt{ackTimeout: 200 * time.Millisecond},
	}, opts...)
	c, err := Dial(s.addr(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Close()
	})
	return c
}

type transmissionOpt struct {
	ackTimeout time.Duration
}

func (o transmissionOpt) UDPClientApply(cfg *client.Config) {
	cfg.Transmission.AckTimeout = o.ackTimeout
	cfg.Transmission.AckRandomFactor = 1
	cfg.Transmission.MaxRetransmit = 1
}

func TestClientGet(t *testing.T) {
	s := newFakeServer(t, func(s *fakeServer, req *message.Message, from *net.UDPAddr) {
		path, err := req.Options.Path()
		require.NoError(t, err)
		queries, err := req.Options.Queries()
		require.NoError(t, err)
		assert.Equal(t, "/a/b", path)
		assert.Equal(t, []string{"x=1", "y"}, queries)
		assert.Equal(t, codes.GET, req.Code)
		assert.Equal(t, message.Confirmable, req.Type)
		s.reply(req, from, codes.Content, message.Options{}.SetContentFormat(message.TextPlain), []byte("hello"))
	})
	c := dialTest(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := c.Get(ctx, "/a/b", "x=1", "y")
	require.NoError(t, err)
	assert.Equal(t, codes.Content, resp.Code)
	assert.Equal(t, []byte("hello"), resp.Payload)

	pending, err := c.PendingRequests(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestClientPostAndPut(t *testing.T) {
	s := newFakeServer(t, func(s *fakeServer, req *message.Message, from *net.UDPAddr) {
		cf, err := req.Options.ContentFormat()
		require.NoError(t, err)
		assert.Equal(t, message.AppJSON, cf)
		assert.Equal(t, []byte(`{"on":true}`), req.Payload)
		code := codes.Created
		if req.Code == codes.PUT {
			code = codes.Changed
		}
		s.reply(req, from, code, nil, nil)
	})
	c := dialTest(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := c.Post(ctx, "/light", message.AppJSON, bytes.NewReader([]byte(`{"on":true}`)))
	require.NoError(t, err)
	assert.Equal(t, codes.Created, resp.Code)

	resp, err = c.Put(ctx, "/light", message.AppJSON, bytes.NewReader([]byte(`{"on":true}`)))
	require.NoError(t, err)
	assert.Equal(t, codes.Changed, resp.Code)
}

func TestClientErrorResponse(t *testing.T) {
	s := newFakeServer(t, func(s *fakeServer, req *message.Message, from *net.UDPAddr) {
		s.reply(req, from, codes.NotFound, nil, []byte("no such resource"))
	})
	c := dialTest(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := c.Delete(ctx, "/missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, status.ErrPeer)
	assert.Equal(t, codes.NotFound, status.Code(err))
	require.NotNil(t, resp)
	assert.Equal(t, []byte("no such resource"), resp.Payload)
}

func TestClientTimeout(t *testing.T) {
	var received atomic.Int32
	s := newFakeServer(t, func(*fakeServer, *message.Message, *net.UDPAddr) {
		received.Inc()
	})
	c := dialTest(t, s, transmissionOpt{ackTimeout: 20 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.Get(ctx, "/slow")
	require.ErrorIs(t, err, client.ErrTimeout)
	require.Eventually(t, func() bool { return received.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestClientContextCanceled(t *testing.T) {
	s := newFakeServer(t, func(*fakeServer, *message.Message, *net.UDPAddr) {})
	c := dialTest(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Get(ctx, "/never")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.Eventually(t, func() bool {
		pending, err := c.PendingRequests(context.Background())
		return err == nil && len(pending) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestClientObserve(t *testing.T) {
	cancelReceived := make(chan struct{})
	s := newFakeServer(t, func(s *fakeServer, req *message.Message, from *net.UDPAddr) {
		obs, err := req.Options.Observe()
		require.NoError(t, err)
		if obs == 1 {
			s.reply(req, from, codes.Content, nil, []byte("bye"))
			close(cancelReceived)
			return
		}
		s.reply(req, from, codes.Content, message.Options{}.SetObserve(2), []byte("2"))
		for _, seq := range []uint32{3, 3, 4} {
			s.send(message.Message{
				Type:      message.NonConfirmable,
				Code:      codes.Content,
				MessageID: s.nextMID(),
				Token:     req.Token,
				Options:   message.Options{}.SetObserve(seq),
				Payload:   []byte{byte('0' + seq)},
			}, from)
		}
	})
	c := dialTest(t, s)

	var mutex sync.Mutex
	var got []string
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	obs, err := c.Observe(ctx, "/temp", func(m *message.Message) {
		mutex.Lock()
		defer mutex.Unlock()
		got = append(got, string(m.Payload))
	})
	require.NoError(t, err)
	require.NotEmpty(t, obs.Token())

	require.Eventually(t, func() bool {
		mutex.Lock()
		defer mutex.Unlock()
		return len(got) == 3
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, obs.Cancel(ctx))
	<-cancelReceived
	assert.True(t, obs.Canceled())
	assert.NoError(t, obs.Err())
	mutex.Lock()
	defer mutex.Unlock()
	assert.Equal(t, []string{"2", "3", "4"}, got)
}

func TestClientObserveNotSupported(t *testing.T) {
	s := newFakeServer(t, func(s *fakeServer, req *message.Message, from *net.UDPAddr) {
		s.reply(req, from, codes.Content, nil, []byte("once"))
	})
	c := dialTest(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got := make(chan string, 1)
	obs, err := c.Observe(ctx, "/plain", func(m *message.Message) {
		got <- string(m.Payload)
	})
	require.NoError(t, err)
	select {
	case <-obs.Done():
	case <-ctx.Done():
		require.FailNow(t, "observation did not end")
	}
	assert.Equal(t, "once", <-got)
}

func TestClientObserveRejected(t *testing.T) {
	s := newFakeServer(t, func(s *fakeServer, req *message.Message, from *net.UDPAddr) {
		s.reply(req, from, codes.Unauthorized, nil, nil)
	})
	c := dialTest(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.Observe(ctx, "/secret", func(*message.Message) {})
	require.Error(t, err)
	assert.Equal(t, codes.Unauthorized, status.Code(err))
}

func TestClientDiscover(t *testing.T) {
	s := newFakeServer(t, func(s *fakeServer, req *message.Message, from *net.UDPAddr) {
		path, err := req.Options.Path()
		require.NoError(t, err)
		assert.Equal(t, WellKnownCore, path)
		s.reply(req, from, codes.Content, message.Options{}.SetContentFormat(message.AppLinkFormat),
			[]byte(`</sensors/temp>;rt="temperature-c";if="sensor";obs,</light>;ct=0`))
	})
	c := dialTest(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := c.Discover(ctx)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "/sensors/temp", res[0].Path)
	assert.Equal(t, "temperature-c", res[0].ResourceType())
	assert.True(t, res[0].Observable())
	assert.Equal(t, "/light", res[1].Path)
}

func TestClientDiscoverAtPath(t *testing.T) {
	s := newFakeServer(t, func(s *fakeServer, req *message.Message, from *net.UDPAddr) {
		path, err := req.Options.Path()
		require.NoError(t, err)
		if path != "/links" {
			s.reply(req, from, codes.NotFound, nil, nil)
			return
		}
		s.reply(req, from, codes.Content, message.Options{}.SetContentFormat(message.AppLinkFormat), []byte(`</a>;rt="x",</b>;if="y",<broken`))
	})
	c := dialTest(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := c.DiscoverAt(ctx, "/links")
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "x", res[0].ResourceType())
	assert.Equal(t, "y", res[1].Interface())

	_, err = c.Discover(ctx)
	require.Error(t, err)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestClientNonConfirmableEcho(t *testing.T) {
	s := newFakeServer(t, func(s *fakeServer, req *message.Message, from *net.UDPAddr) {
		assert.Equal(t, message.NonConfirmable, req.Type)
		assert.Equal(t, message.Token("abcd"), req.Token)
		s.send(message.Message{
			Type:      message.NonConfirmable,
			Code:      codes.Content,
			MessageID: 24806,
			Token:     req.Token,
			Options:   message.Options{}.SetContentFormat(message.TextPlain).SetUint32(message.MaxAge, 30),
			Payload:   []byte("echo"),
		}, from)
	})
	c := dialTest(t, s)

	req, err := NewRequest(codes.GET, "/test")
	require.NoError(t, err)
	req.Type = message.NonConfirmable
	req.Token = message.Token("abcd")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := c.Do(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, message.NonConfirmable, resp.Type)
	assert.Equal(t, message.Token("abcd"), resp.Token)
	assert.Equal(t, uint16(24806), resp.MessageID)
	maxAge, err := resp.Options.GetUint32(message.MaxAge)
	require.NoError(t, err)
	assert.Equal(t, uint32(30), maxAge)
	assert.Equal(t, []byte("echo"), resp.Payload)
}

type failingReader struct {
	err error
}

func (r failingReader) ReadFrom(context.Context, []byte) (int, *net.UDPAddr, error) {
	return 0, nil, r.err
}

func TestClientReadErrorFailsPendingRequests(t *testing.T) {
	s := newFakeServer(t, func(*fakeServer, *message.Message, *net.UDPAddr) {})
	c := dialTest(t, s)

	errc := make(chan error, 1)
	go func() {
		_, err := c.Get(context.Background(), "/hang")
		errc <- err
	}()
	require.Eventually(t, func() bool {
		pending, err := c.PendingRequests(context.Background())
		return err == nil && len(pending) == 1
	}, time.Second, 5*time.Millisecond)

	readErr := errors.New("socket is broken")
	err := c.readLoop(context.Background(), failingReader{err: readErr})
	require.ErrorIs(t, err, readErr)
	select {
	case err := <-errc:
		require.ErrorIs(t, err, client.ErrTransport)
		require.ErrorIs(t, err, readErr)
		assert.Equal(t, client.ErrorKindTransport, client.KindOf(err))
	case <-time.After(time.Second):
		require.FailNow(t, "request did not fail")
	}
}

func TestClientMulticastLeavesRequestUntouched(t *testing.T) {
	s := newFakeServer(t, func(*fakeServer, *message.Message, *net.UDPAddr) {})
	c := dialTest(t, s)

	req, err := NewRequest(codes.GET, "/a")
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	// the group may be unreachable here; only the caller's message matters
	_ = c.DoMulticast(ctx, req, "224.0.1.187:5683", func(net.Addr, *message.Message) {})
	require.Equal(t, message.Confirmable, req.Type)
	require.Empty(t, req.Token)
}

func TestClientCloseFailsPendingAndRunsOnClose(t *testing.T) {
	s := newFakeServer(t, func(*fakeServer, *message.Message, *net.UDPAddr) {})
	c, err := Dial(s.addr())
	require.NoError(t, err)

	var closed atomic.Bool
	c.AddOnClose(func() { closed.Store(true) })

	errc := make(chan error, 1)
	go func() {
		_, err := c.Get(context.Background(), "/hang")
		errc <- err
	}()
	require.Eventually(t, func() bool {
		pending, err := c.PendingRequests(context.Background())
		return err == nil && len(pending) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	select {
	case err := <-errc:
		require.True(t, errors.Is(err, client.ErrClosed))
	case <-time.After(time.Second):
		require.FailNow(t, "pending request not failed")
	}
	<-c.Done()
	assert.True(t, closed.Load())
}

func TestDialInvalidTarget(t *testing.T) {
	_, err := Dial("no-port-here")
	require.Error(t, err)
}

func TestMulticastRejectsUnicastGroup(t *testing.T) {
	s := newFakeServer(t, func(*fakeServer, *message.Message, *net.UDPAddr) {})
	c := dialTest(t, s)
	req, err := NewRequest(codes.GET, "/x")
	require.NoError(t, err)
	err = c.DoMulticast(context.Background(), req, "127.0.0.1:5683", func(net.Addr, *message.Message) {})
	require.ErrorIs(t, err, client.ErrInvalidRequest)
}

func TestParseURI(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    URI
		wantErr bool
	}{
		{
			name: "default port",
			raw:  "coap://example.com/a/b",
			want: URI{Host: "example.com:5683", Path: "/a/b"},
		},
		{
			name: "port and queries",
			raw:  "coap://127.0.0.1:1234/sensors?rt=temp&if=s%20x",
			want: URI{Host: "127.0.0.1:1234", Path: "/sensors", Queries: []string{"rt=temp", "if=s x"}},
		},
		{
			name: "ipv6 root",
			raw:  "coap://[::1]",
			want: URI{Host: "[::1]:5683", Path: "/"},
		},
		{name: "wrong scheme", raw: "http://example.com/", wantErr: true},
		{name: "fragment", raw: "coap://example.com/a#frag", wantErr: true},
		{name: "missing host", raw: "coap:///a", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseURI(tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidURI)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
