package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coapclient/go-coap/message"
	"github.com/coapclient/go-coap/message/codes"
	"github.com/coapclient/go-coap/message/linkformat"
	"github.com/coapclient/go-coap/message/status"
	"github.com/coapclient/go-coap/net/blockwise"
	"github.com/coapclient/go-coap/net/observation"
	"github.com/coapclient/go-coap/pkg/cache"
	"github.com/coapclient/go-coap/pkg/rand"
	"github.com/coapclient/go-coap/pkg/runner/periodic"
	"github.com/coapclient/go-coap/udp/coder"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// Transport sends encoded datagrams.
type Transport interface {
	WriteTo(ctx context.Context, data []byte, to net.Addr) error
}

type exchangeKey struct {
	remote string
	mid    uint16
}

// Engine is the request/reply state machine. All state is owned by the
// goroutine executing Run; the exported methods post closures to it.
type Engine struct {
	cfg       Config
	transport Transport
	rand      *rand.Rand
	log       zerolog.Logger
	queue     chan func()
	done      chan struct{}
	running   atomic.Bool
	closeOnce sync.Once

	// owned by the Run goroutine
	ctx          context.Context
	byToken      map[string]*pendingRequest
	byMID        map[uint16]*pendingRequest
	observations *observation.Registry
	replies      *cache.Cache[exchangeKey, []byte]
	nextMID      uint16
}

func NewEngine(cfg Config, transport Transport) (*Engine, error) {
	if transport == nil {
		return nil, errors.New("transport is required")
	}
	if err := cfg.Transmission.Validate(); err != nil {
		return nil, err
	}
	if !cfg.BlockwiseSZX.Valid() {
		return nil, fmt.Errorf("blockwise: %w", blockwise.ErrInvalidSZX)
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.NewTimeSeeded()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Ctx == nil {
		cfg.Ctx = context.Background()
	}
	if cfg.Errors == nil {
		logger := cfg.Logger
		cfg.Errors = func(err error) {
			logger.Warn().Err(err).Msg("coap client")
		}
	}
	return &Engine{
		cfg:          cfg,
		transport:    transport,
		rand:         cfg.Rand,
		log:          cfg.Logger.With().Str("component", "engine").Logger(),
		queue:        make(chan func(), cfg.QueueSize),
		done:         make(chan struct{}),
		ctx:          cfg.Ctx,
		byToken:      make(map[string]*pendingRequest),
		byMID:        make(map[uint16]*pendingRequest),
		observations: observation.NewRegistry(),
		replies:      cache.NewCache[exchangeKey, []byte](),
		nextMID:      uint16(cfg.Rand.Uint32()),
	}, nil
}

// Run processes submitted work until ctx is done. Requests still pending
// then end with an ErrClosed event.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("engine is already running")
	}
	e.ctx = ctx
	defer e.shutdown()

	runner := e.cfg.PeriodicRunner
	if runner == nil {
		runner = periodic.New(ctx.Done(), sweepInterval)
	}
	runner(func(now time.Time) bool {
		return e.post(ctx, func() {
			e.replies.CheckExpirations(now)
		}) == nil
	})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-e.queue:
			f()
		}
	}
}

// Done is closed once Run returned.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

func (e *Engine) shutdown() {
	e.closeOnce.Do(func() {
		close(e.done)
	})
	for _, p := range e.byToken {
		e.fail(p, StateErrored, ErrClosed, nil, nil)
	}
}

func (e *Engine) post(ctx context.Context, f func()) error {
	select {
	case <-e.done:
		return ErrClosed
	default:
	}
	select {
	case e.queue <- f:
		return nil
	case <-e.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call runs f on the engine goroutine and waits for it.
func (e *Engine) call(ctx context.Context, f func()) error {
	finished := make(chan struct{})
	if err := e.post(ctx, func() {
		f()
		close(finished)
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-e.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrClosed
		}
	}
}

// Submit validates r and starts the exchange. Validation errors wrap
// ErrInvalidRequest and are returned before anything is sent; every later
// outcome is delivered to r.OnEvent.
func (e *Engine) Submit(ctx context.Context, r Request) (message.Token, error) {
	if err := r.validate(&e.cfg); err != nil {
		return nil, err
	}
	var token message.Token
	var err error
	if callErr := e.call(ctx, func() {
		token, err = e.start(r)
	}); callErr != nil {
		return nil, callErr
	}
	return token, err
}

// Process hands an inbound datagram to the engine. data is copied.
func (e *Engine) Process(ctx context.Context, data []byte, from net.Addr) error {
	buf := append([]byte(nil), data...)
	return e.post(ctx, func() {
		e.handleDatagram(buf, from)
	})
}

// Abort ends the request or observation with a single ErrAborted event.
func (e *Engine) Abort(ctx context.Context, token message.Token) error {
	var err error
	if callErr := e.call(ctx, func() {
		p, ok := e.byToken[string(token)]
		if !ok {
			err = fmt.Errorf("%w: %v", ErrUnknownToken, token)
			return
		}
		e.fail(p, StateAborted, ErrAborted, nil, nil)
	}); callErr != nil {
		return callErr
	}
	return err
}

// CancelObserve stops delivering notifications for token and deregisters it at
// the server with a GET carrying Observe=1 on the same token. The response to
// that GET ends the exchange.
func (e *Engine) CancelObserve(ctx context.Context, token message.Token) error {
	var err error
	if callErr := e.call(ctx, func() {
		p, ok := e.byToken[string(token)]
		if !ok || p.observe == nil {
			err = fmt.Errorf("%w: %v is not observed", ErrUnknownToken, token)
			return
		}
		e.observations.Remove(p.token)
		p.observe = nil
		p.cancelled = true
		p.receiver = nil
		msg := e.outbound(p)
		msg.Options = msg.Options.Remove(message.Block2).SetObserve(1)
		e.transmit(p, msg)
	}); callErr != nil {
		return callErr
	}
	return err
}

// ReportTransportError fails every request addressed to the endpoint.
func (e *Engine) ReportTransportError(ctx context.Context, endpoint net.Addr, cause error) error {
	return e.call(ctx, func() {
		e.failEndpoint(endpoint, fmt.Errorf("%w: %w", ErrTransport, cause))
	})
}

// Snapshot returns a copy of the state of all pending requests.
func (e *Engine) Snapshot(ctx context.Context) ([]RequestSnapshot, error) {
	var res []RequestSnapshot
	err := e.call(ctx, func() {
		res = make([]RequestSnapshot, 0, len(e.byToken))
		for _, p := range e.byToken {
			res = append(res, p.snapshot())
		}
	})
	return res, err
}

func (e *Engine) newToken() (message.Token, error) {
	for i := 0; i < maxTokenAttempts; i++ {
		token, err := message.GetToken(e.rand)
		if err != nil {
			return nil, err
		}
		if _, used := e.byToken[string(token)]; !used {
			return token, nil
		}
	}
	return nil, errors.New("cannot generate unique token")
}

// newMID returns the next message id not used by a pending exchange.
func (e *Engine) newMID() uint16 {
	for i := 0; i <= math.MaxUint16; i++ {
		e.nextMID++
		if _, used := e.byMID[e.nextMID]; !used {
			return e.nextMID
		}
	}
	return e.nextMID
}

func (e *Engine) start(r Request) (message.Token, error) {
	token := r.Message.Token
	if len(token) == 0 {
		var err error
		token, err = e.newToken()
		if err != nil {
			return nil, err
		}
	} else if _, used := e.byToken[string(token)]; used {
		return nil, invalidRequest("token %v is already in use", token)
	}

	tmpl := r.Message.Clone()
	tmpl.Token = append(message.Token(nil), token...)
	p := &pendingRequest{
		key:       string(token),
		token:     tmpl.Token,
		target:    r.Target,
		multicast: isMulticast(r.Target),
		discover:  r.Discover,
		onEvent:   r.OnEvent,
		template:  tmpl,
		state:     StateCreated,
	}
	if r.Observe {
		tmpl.Options = tmpl.Options.SetObserve(0)
		p.observe = e.observations.Register(token)
	}
	e.byToken[p.key] = p

	msg := e.outbound(p)
	switch {
	case e.cfg.BlockwiseEnable && !p.multicast && blockwise.NeedsBlockwise(len(tmpl.Payload), e.cfg.BlockwiseSZX):
		p.sender = blockwise.NewSender(tmpl.Payload, e.cfg.BlockwiseSZX)
		e.applyBlock1(p, &msg)
	case e.cfg.BlockwiseEnable && e.cfg.BlockwiseSZX < blockwise.SZX1024 && tmpl.Code == codes.GET:
		// early negotiation of a smaller Block2 size
		v, _ := blockwise.EncodeBlockOption(e.cfg.BlockwiseSZX, 0, false)
		msg.Options = msg.Options.SetUint32(message.Block2, v)
	}
	e.transmit(p, msg)
	return append(message.Token(nil), token...), nil
}

// outbound builds a fresh message from the request template.
func (e *Engine) outbound(p *pendingRequest) message.Message {
	return message.Message{
		Type:    p.template.Type,
		Code:    p.template.Code,
		Token:   p.token,
		Options: p.template.Options.Clone(),
		Payload: p.template.Payload,
	}
}

func (e *Engine) applyBlock1(p *pendingRequest, msg *message.Message) {
	blk, chunk := p.sender.Current()
	v, _ := blk.Value()
	msg.Options = msg.Options.SetUint32(message.Block1, v)
	if blk.Num == 0 {
		msg.Options = msg.Options.SetUint32(message.Size1, uint32(len(p.template.Payload)))
	}
	msg.Payload = chunk
}

// transmit sends msg under a new message id and arms the matching timer.
func (e *Engine) transmit(p *pendingRequest, msg message.Message) {
	e.releaseMID(p)
	msg.MessageID = e.newMID()
	data, err := coder.DefaultCoder.Marshal(msg)
	if err != nil {
		e.fail(p, StateErrored, fmt.Errorf("%w: %w", ErrInvalidRequest, err), nil, nil)
		return
	}
	if uint32(len(data)) > e.cfg.MaxMessageSize {
		e.fail(p, StateErrored, invalidRequest("message of %v bytes exceeds max message size %v", len(data), e.cfg.MaxMessageSize), nil, nil)
		return
	}
	p.msg = msg
	p.data = data
	p.midValid = true
	e.byMID[msg.MessageID] = p
	p.state = StateSent
	p.sentAt = time.Now()
	if msg.Type == message.Confirmable {
		p.backoff = e.cfg.Transmission.newBackOff(e.rand)
		p.retries = 0
		e.arm(p, p.backoff.NextBackOff(), e.onRetransmitTimeout)
	} else {
		p.backoff = nil
		p.retries = 0
		window := e.cfg.NonLifetime
		if p.multicast {
			window = e.cfg.MulticastWindow
		}
		e.arm(p, window, e.onNonTimeout)
	}
	e.log.Debug().Stringer("token", p.token).Uint16("mid", msg.MessageID).Str("remote", p.target.String()).
		Stringer("type", msg.Type).Stringer("code", msg.Code).Msg("send")
	if err := e.write(p.target, data); err != nil {
		e.failEndpoint(p.target, err)
	}
}

func (e *Engine) write(to net.Addr, data []byte) error {
	if err := e.transport.WriteTo(e.ctx, data, to); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

func (e *Engine) releaseMID(p *pendingRequest) {
	if !p.midValid {
		return
	}
	if cur, ok := e.byMID[p.msg.MessageID]; ok && cur == p {
		delete(e.byMID, p.msg.MessageID)
	}
	p.midValid = false
}

// arm replaces the request timer. A fired timer whose generation is outdated does nothing.
func (e *Engine) arm(p *pendingRequest, d time.Duration, fire func(*pendingRequest)) {
	e.stopTimer(p)
	gen := p.gen
	p.timer = time.AfterFunc(d, func() {
		_ = e.post(context.Background(), func() {
			cur, ok := e.byToken[p.key]
			if !ok || cur != p || p.gen != gen {
				return
			}
			fire(p)
		})
	})
}

func (e *Engine) stopTimer(p *pendingRequest) {
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (e *Engine) onRetransmitTimeout(p *pendingRequest) {
	d := p.backoff.NextBackOff()
	if d == backoff.Stop {
		e.fail(p, StateTimedOut, ErrTimeout, nil, nil)
		return
	}
	p.retries++
	e.log.Debug().Stringer("token", p.token).Uint16("mid", p.msg.MessageID).Uint32("retry", p.retries).Msg("retransmit")
	e.arm(p, d, e.onRetransmitTimeout)
	if err := e.write(p.target, p.data); err != nil {
		e.failEndpoint(p.target, err)
	}
}

func (e *Engine) onNonTimeout(p *pendingRequest) {
	if p.multicast {
		e.remove(p, StateCompleted)
		p.emit(Event{Kind: EventDone, Final: true})
		return
	}
	e.fail(p, StateTimedOut, ErrTimeout, nil, nil)
}

func (e *Engine) onSeparateResponseTimeout(p *pendingRequest) {
	e.fail(p, StateTimedOut, ErrTimeout, nil, nil)
}

func (e *Engine) remove(p *pendingRequest, state State) {
	e.stopTimer(p)
	e.releaseMID(p)
	if cur, ok := e.byToken[p.key]; ok && cur == p {
		delete(e.byToken, p.key)
	}
	if p.observe != nil {
		e.observations.Remove(p.token)
	}
	p.state = state
}

func (e *Engine) fail(p *pendingRequest, state State, err error, msg *message.Message, from net.Addr) {
	e.remove(p, state)
	e.log.Debug().Stringer("token", p.token).Stringer("state", state).Err(err).Msg("request ended")
	p.emit(Event{Kind: EventError, Err: err, Message: msg, Source: from, Final: true})
}

func (e *Engine) failEndpoint(endpoint net.Addr, err error) {
	var failed []*pendingRequest
	for _, p := range e.byToken {
		if sameEndpoint(p.target, endpoint) {
			failed = append(failed, p)
		}
	}
	for _, p := range failed {
		e.fail(p, StateErrored, err, nil, nil)
	}
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}

func (e *Engine) handleDatagram(data []byte, from net.Addr) {
	var m message.Message
	if _, err := coder.DefaultCoder.Decode(data, &m); err != nil {
		e.log.Debug().Err(err).Str("remote", addrString(from)).Int("len", len(data)).Msg("dropping malformed datagram")
		return
	}
	switch m.Type {
	case message.Acknowledgement, message.Reset:
		e.handleAckReset(&m, from)
	default:
		e.handleInbound(&m, from)
	}
}

func (e *Engine) handleAckReset(m *message.Message, from net.Addr) {
	p, ok := e.byMID[m.MessageID]
	if !ok || (!p.multicast && !sameEndpoint(p.target, from)) {
		e.log.Debug().Uint16("mid", m.MessageID).Str("remote", addrString(from)).Stringer("type", m.Type).Msg("unmatched message id")
		return
	}
	if m.Type == message.Reset {
		e.fail(p, StateErrored, ErrReset, nil, from)
		return
	}
	if m.IsEmpty() {
		e.releaseMID(p)
		if p.state == StateSent {
			p.state = StateAcknowledged
			e.arm(p, e.cfg.ExchangeLifetime, e.onSeparateResponseTimeout)
		}
		return
	}
	if !m.Token.Equal(p.token) {
		e.log.Debug().Uint16("mid", m.MessageID).Stringer("token", m.Token).Msg("piggybacked response with foreign token")
		return
	}
	e.handleResponse(p, m, from)
}

// handleInbound processes CON and NON messages: duplicate detection, ACK or RST, dispatch by token.
func (e *Engine) handleInbound(m *message.Message, from net.Addr) {
	now := time.Now()
	key := exchangeKey{remote: addrString(from), mid: m.MessageID}
	if el, ok := e.replies.Load(now, key); ok {
		if m.Type == message.Confirmable && el.Data() != nil {
			e.reply(from, el.Data())
		}
		e.log.Debug().Uint16("mid", m.MessageID).Str("remote", key.remote).Msg("duplicate message")
		return
	}

	p, ok := e.byToken[string(m.Token)]
	matched := ok && !m.IsEmpty() && !p.state.terminal() &&
		(p.multicast || sameEndpoint(p.target, from)) &&
		!(p.cancelled && m.Options.HasOption(message.Observe))

	var reply []byte
	if m.Type == message.Confirmable {
		typ := message.Acknowledgement
		if !matched {
			typ = message.Reset
		}
		reply = emptyMessage(typ, m.MessageID)
		e.reply(from, reply)
	}
	e.replies.Store(key, cache.NewElement(reply, now.Add(e.cfg.ExchangeLifetime), nil))
	if !matched {
		e.log.Debug().Stringer("token", m.Token).Str("remote", key.remote).Msg("dropping unmatched reply")
		return
	}
	e.handleResponse(p, m, from)
}

func emptyMessage(typ message.Type, mid uint16) []byte {
	data, _ := coder.DefaultCoder.Marshal(message.Message{Type: typ, MessageID: mid})
	return data
}

func (e *Engine) reply(to net.Addr, data []byte) {
	if err := e.transport.WriteTo(e.ctx, data, to); err != nil {
		e.cfg.Errors(fmt.Errorf("cannot reply to %v: %w", addrString(to), err))
	}
}

func (e *Engine) handleResponse(p *pendingRequest, m *message.Message, from net.Addr) {
	if p.state.terminal() {
		return
	}
	if p.observe != nil {
		e.handleNotification(p, m, from)
		return
	}
	e.settle(p)
	if p.sender != nil && e.handleUploadReply(p, m) {
		return
	}
	if p.sender == nil && m.Code == codes.RequestEntityTooLarge && e.startUploadAfterTooLarge(p, m) {
		return
	}
	if e.continueDownload(p, m, from) {
		return
	}
	e.complete(p, m, from)
}

// settle ends the current transmission of p once a reply was accepted for it.
func (e *Engine) settle(p *pendingRequest) {
	if !p.multicast {
		e.stopTimer(p)
	}
	e.releaseMID(p)
}

// handleNotification keeps the transmission in flight until m is known to be
// fresh, so a stale notification does not stop a pending block request.
func (e *Engine) handleNotification(p *pendingRequest, m *message.Message, from net.Addr) {
	if m.Code.IsError() {
		resp := m.Clone()
		e.fail(p, StateErrored, status.Errorf(resp, "observation ended"), resp, from)
		return
	}
	seq, err := m.Options.Observe()
	if err != nil {
		e.settle(p)
		if p.receiver != nil {
			// continuation block of a notification body
			e.continueDownload(p, m, from)
			return
		}
		// the server did not register the observation
		e.observations.Remove(p.token)
		p.observe = nil
		if e.continueDownload(p, m, from) {
			return
		}
		e.complete(p, m, from)
		return
	}
	if !p.observe.Accept(seq, time.Now()) {
		e.log.Debug().Stringer("token", p.token).Uint32("seq", seq).Msg("dropping stale notification")
		return
	}
	e.settle(p)
	p.state = StateObserving
	// a fresh notification replaces a partially received body
	p.receiver = nil
	p.restarts = 0
	if m.Options.HasOption(message.Block2) && e.continueDownload(p, m, from) {
		return
	}
	p.emit(Event{Kind: EventNotification, Message: m.Clone(), Source: from})
}

func protocolError(err error) error {
	return fmt.Errorf("%w: %w", ErrProtocol, err)
}

// continueDownload feeds Block2 fragments to the receiver and requests the next
// block. It reports false when m is not part of a block-wise body.
func (e *Engine) continueDownload(p *pendingRequest, m *message.Message, from net.Addr) bool {
	if !e.cfg.BlockwiseEnable || p.multicast || m.Code.IsError() {
		return false
	}
	v, err := m.Options.GetUint32(message.Block2)
	if err != nil {
		if p.receiver != nil {
			e.fail(p, StateErrored, protocolError(errors.New("block-wise continuation without Block2")), m.Clone(), from)
			return true
		}
		return false
	}
	blk, err := blockwise.DecodeBlockOption(v)
	if err != nil {
		e.fail(p, StateErrored, protocolError(err), m.Clone(), from)
		return true
	}
	if p.receiver == nil {
		if blk.Num == 0 && !blk.More {
			return false
		}
		p.receiver = blockwise.NewReceiver(e.cfg.BlockwiseSZX, int(e.cfg.MaxMessageSize))
	}
	etag, _ := m.Options.GetBytes(message.ETag)
	progress, err := p.receiver.Accept(blk, etag, m.Payload)
	if err != nil {
		e.fail(p, StateErrored, protocolError(err), m.Clone(), from)
		return true
	}
	switch progress {
	case blockwise.Completed:
		body := m.Clone()
		body.Payload = p.receiver.Payload()
		body.Options = body.Options.Remove(message.Block2)
		p.receiver = nil
		p.restarts = 0
		if p.observe != nil {
			p.state = StateObserving
			p.emit(Event{Kind: EventNotification, Message: body, Source: from})
			return true
		}
		e.complete(p, body, from)
		return true
	case blockwise.Restart:
		p.restarts++
		if p.restarts > maxBlockRestarts {
			e.fail(p, StateErrored, protocolError(errors.New("too many block-wise restarts")), nil, from)
			return true
		}
		e.log.Debug().Stringer("token", p.token).Stringer("block", blk).Msg("block-wise download restarts")
	}
	e.requestBlock(p, p.receiver.NextBlock())
	return true
}

func (e *Engine) requestBlock(p *pendingRequest, blk blockwise.Block) {
	msg := e.outbound(p)
	msg.Payload = nil
	msg.Options = msg.Options.Remove(message.Observe).Remove(message.Block1).Remove(message.Size1)
	v, err := blk.Value()
	if err != nil {
		e.fail(p, StateErrored, protocolError(err), nil, nil)
		return
	}
	msg.Options = msg.Options.SetUint32(message.Block2, v)
	p.state = StateAwaitingNextBlock
	e.transmit(p, msg)
}

// handleUploadReply advances a Block1 upload. It reports false when m is the final response.
func (e *Engine) handleUploadReply(p *pendingRequest, m *message.Message) bool {
	v, err := m.Options.GetUint32(message.Block1)
	if err != nil {
		p.sender = nil
		return false
	}
	blk, err := blockwise.DecodeBlockOption(v)
	if err != nil {
		e.fail(p, StateErrored, protocolError(err), m.Clone(), nil)
		return true
	}
	switch m.Code {
	case codes.Continue:
		done, err := p.sender.Ack(blk)
		if err != nil {
			e.fail(p, StateErrored, protocolError(err), m.Clone(), nil)
			return true
		}
		if done {
			p.sender = nil
			return false
		}
		e.sendNextChunk(p)
		return true
	case codes.RequestEntityTooLarge:
		if p.sender.Renegotiate(blk.SZX) {
			e.log.Debug().Stringer("token", p.token).Stringer("szx", blk.SZX).Msg("block-wise upload restarts with smaller blocks")
			e.sendNextChunk(p)
			return true
		}
	}
	p.sender = nil
	return false
}

// startUploadAfterTooLarge retries a single-message request block-wise when
// the peer answered 4.13 with the Block1 size it accepts.
func (e *Engine) startUploadAfterTooLarge(p *pendingRequest, m *message.Message) bool {
	if !e.cfg.BlockwiseEnable || p.multicast {
		return false
	}
	v, err := m.Options.GetUint32(message.Block1)
	if err != nil {
		return false
	}
	blk, err := blockwise.DecodeBlockOption(v)
	if err != nil || !blockwise.NeedsBlockwise(len(p.template.Payload), blk.SZX) {
		return false
	}
	p.sender = blockwise.NewSender(p.template.Payload, blk.SZX)
	e.sendNextChunk(p)
	return true
}

func (e *Engine) sendNextChunk(p *pendingRequest) {
	msg := e.outbound(p)
	e.applyBlock1(p, &msg)
	e.transmit(p, msg)
}

func (e *Engine) complete(p *pendingRequest, m *message.Message, from net.Addr) {
	resp := m.Clone()
	if p.multicast {
		ev := Event{Kind: EventNotification, Message: resp, Source: from}
		if p.discover && resp.Code.IsSuccess() {
			ev.Kind = EventDiscovered
			ev.Resources = linkformat.Parse(resp.Payload)
		}
		p.emit(ev)
		return
	}
	if resp.Code.IsError() {
		e.fail(p, StateErrored, status.Error(resp, nil), resp, from)
		return
	}
	ev := Event{Kind: EventResponse, Message: resp, Source: from, Final: true}
	if p.discover {
		ev.Kind = EventDiscovered
		ev.Resources = linkformat.Parse(resp.Payload)
	}
	e.remove(p, StateCompleted)
	p.emit(ev)
}
