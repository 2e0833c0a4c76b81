package client

import (
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coapclient/go-coap/message"
	"github.com/coapclient/go-coap/message/codes"
	"github.com/coapclient/go-coap/net/blockwise"
	"github.com/coapclient/go-coap/net/observation"
)

// Request is what a caller submits to the engine.
type Request struct {
	// Message carries Type (CON or NON), Code, Options and Payload.
	// A Token is generated when empty; MessageID is always assigned by the engine.
	Message *message.Message
	Target  net.Addr
	// Observe registers an observation (GET with Observe=0).
	Observe bool
	// Discover parses a 2.xx reply as CoRE Link Format.
	Discover bool
	// OnEvent is called on the engine goroutine and must not block.
	OnEvent func(Event)
}

// State is the lifecycle state of a pending request.
type State int

const (
	StateCreated State = iota
	StateSent
	StateAcknowledged
	StateAwaitingNextBlock
	StateObserving
	StateCompleted
	StateErrored
	StateTimedOut
	StateAborted
)

var stateToString = map[State]string{
	StateCreated:           "Created",
	StateSent:              "Sent",
	StateAcknowledged:      "Acknowledged",
	StateAwaitingNextBlock: "AwaitingNextBlock",
	StateObserving:         "Observing",
	StateCompleted:         "Completed",
	StateErrored:           "Errored",
	StateTimedOut:          "TimedOut",
	StateAborted:           "Aborted",
}

func (s State) String() string {
	if v, ok := stateToString[s]; ok {
		return v
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) terminal() bool {
	return s >= StateCompleted
}

// RequestSnapshot is a read-only view of a pending request.
type RequestSnapshot struct {
	Token           message.Token
	MessageID       uint16
	Target          string
	State           State
	Retransmissions uint32
	Observing       bool
	// ObserveSequence is the last accepted notification sequence number.
	ObserveSequence uint32
	BlockReceived   int
}

type pendingRequest struct {
	key       string
	token     message.Token
	target    net.Addr
	multicast bool
	discover  bool
	onEvent   func(Event)

	// template is the caller's request without engine assigned fields.
	template *message.Message
	msg      message.Message
	data     []byte
	midValid bool

	state     State
	backoff   backoff.BackOff
	retries   uint32
	timer     *time.Timer
	gen       uint64
	sentAt    time.Time
	receiver  *blockwise.Receiver
	restarts  int
	sender    *blockwise.Sender
	observe   *observation.Entry
	cancelled bool
}

func (p *pendingRequest) snapshot() RequestSnapshot {
	s := RequestSnapshot{
		Token:     append(message.Token(nil), p.token...),
		MessageID: p.msg.MessageID,
		Target:    p.target.String(),
		State:     p.state,
		Observing: p.observe != nil,
	}
	if p.backoff != nil {
		s.Retransmissions = p.retries
	}
	if p.observe != nil {
		s.ObserveSequence, _ = p.observe.LastSequence()
	}
	if p.receiver != nil {
		s.BlockReceived = p.receiver.Received()
	}
	return s
}

func (p *pendingRequest) emit(ev Event) {
	ev.Token = append(message.Token(nil), p.token...)
	p.onEvent(ev)
}

func isMulticast(addr net.Addr) bool {
	if u, ok := addr.(*net.UDPAddr); ok {
		return u.IP.IsMulticast()
	}
	return false
}

func sameEndpoint(a, b net.Addr) bool {
	if a == nil || b == nil {
		return false
	}
	ua, okA := a.(*net.UDPAddr)
	ub, okB := b.(*net.UDPAddr)
	if okA && okB {
		return ua.Port == ub.Port && ua.IP.Equal(ub.IP)
	}
	return a.String() == b.String()
}

func invalidRequest(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %v", ErrInvalidRequest, fmt.Sprintf(format, a...))
}

// validate checks everything that can be checked before touching the network.
func (r Request) validate(cfg *Config) error {
	if r.Message == nil {
		return invalidRequest("missing message")
	}
	if r.Target == nil {
		return invalidRequest("missing target")
	}
	if r.OnEvent == nil {
		return invalidRequest("missing event handler")
	}
	m := r.Message
	if !m.Code.IsRequest() {
		return invalidRequest("code %v is not a method", m.Code)
	}
	if m.Type != message.Confirmable && m.Type != message.NonConfirmable {
		return invalidRequest("type %v", m.Type)
	}
	if len(m.Token) > message.MaxTokenSize {
		return invalidRequest("token length %v", len(m.Token))
	}
	if isMulticast(r.Target) {
		if m.Type != message.NonConfirmable {
			return invalidRequest("multicast requests must be non-confirmable")
		}
		if r.Observe {
			return invalidRequest("cannot observe a multicast group")
		}
	}
	if r.Observe && m.Code != codes.GET {
		return invalidRequest("observe requires GET, got %v", m.Code)
	}
	if (r.Observe || r.Discover) && len(m.Payload) > 0 {
		return invalidRequest("GET carries no payload")
	}
	for _, o := range m.Options {
		def, ok := message.CoapOptionDefs[o.ID]
		if ok && (len(o.Value) < def.MinLen || len(o.Value) > def.MaxLen) {
			return invalidRequest("option %v has invalid length %v", o.ID, len(o.Value))
		}
	}
	if !cfg.BlockwiseEnable && uint32(len(m.Payload)) > cfg.MaxMessageSize {
		return invalidRequest("payload of %v bytes exceeds max message size %v", len(m.Payload), cfg.MaxMessageSize)
	}
	return nil
}
