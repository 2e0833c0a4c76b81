package client

import (
	"errors"
	"net"

	"github.com/coapclient/go-coap/message"
	"github.com/coapclient/go-coap/message/linkformat"
	"github.com/coapclient/go-coap/message/status"
	"github.com/coapclient/go-coap/udp/coder"
)

var (
	ErrTimeout        = errors.New("request timed out")
	ErrAborted        = errors.New("request aborted")
	ErrInvalidRequest = errors.New("invalid request")
	ErrTransport      = errors.New("transport error")
	ErrReset          = errors.New("request reset by peer")
	ErrClosed         = errors.New("engine closed")
	ErrProtocol       = errors.New("protocol error")
	ErrUnknownToken   = errors.New("unknown token")
)

// EventKind tags the variant carried by an Event.
type EventKind int

const (
	// EventResponse final response of a request.
	EventResponse EventKind = iota
	// EventNotification observe notification, or a reply to a multicast request.
	EventNotification
	// EventError terminal failure; Err is set.
	EventError
	// EventDiscovered parsed discovery reply.
	EventDiscovered
	// EventDone end of a multicast collection window.
	EventDone
)

var eventKindToString = map[EventKind]string{
	EventResponse:     "response",
	EventNotification: "notification",
	EventError:        "error",
	EventDiscovered:   "discovered",
	EventDone:         "done",
}

func (k EventKind) String() string {
	if s, ok := eventKindToString[k]; ok {
		return s
	}
	return "unknown"
}

// Event is delivered to the handler of a request. Message and Resources are
// snapshots owned by the receiver.
type Event struct {
	Kind      EventKind
	Token     message.Token
	Message   *message.Message
	Resources []linkformat.Resource
	Source    net.Addr
	Err       error
	// Final is set on the last event for the token.
	Final bool
}

// ErrorKind classifies an event error.
type ErrorKind int

const (
	ErrorKindNone ErrorKind = iota
	ErrorKindMalformed
	ErrorKindTimeout
	ErrorKindTransport
	ErrorKindInvalidRequest
	ErrorKindAborted
	ErrorKindPeer
	ErrorKindReset
	ErrorKindClosed
	ErrorKindProtocol
	ErrorKindUnknown
)

var errorKindToString = map[ErrorKind]string{
	ErrorKindNone:           "none",
	ErrorKindMalformed:      "malformed message",
	ErrorKindTimeout:        "timeout",
	ErrorKindTransport:      "transport",
	ErrorKindInvalidRequest: "invalid request",
	ErrorKindAborted:        "aborted",
	ErrorKindPeer:           "peer error",
	ErrorKindReset:          "reset",
	ErrorKindClosed:         "closed",
	ErrorKindProtocol:       "protocol",
	ErrorKindUnknown:        "unknown",
}

func (k ErrorKind) String() string {
	return errorKindToString[k]
}

// KindOf classifies err.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, coder.ErrMalformedMessage):
		return ErrorKindMalformed
	case errors.Is(err, ErrTimeout):
		return ErrorKindTimeout
	case errors.Is(err, ErrTransport):
		return ErrorKindTransport
	case errors.Is(err, ErrInvalidRequest):
		return ErrorKindInvalidRequest
	case errors.Is(err, ErrAborted):
		return ErrorKindAborted
	case errors.Is(err, status.ErrPeer):
		return ErrorKindPeer
	case errors.Is(err, ErrReset):
		return ErrorKindReset
	case errors.Is(err, ErrClosed):
		return ErrorKindClosed
	case errors.Is(err, ErrProtocol):
		return ErrorKindProtocol
	}
	return ErrorKindUnknown
}

func (e Event) ErrorKind() ErrorKind {
	return KindOf(e.Err)
}
