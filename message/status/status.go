package status

import (
	"errors"
	"fmt"

	"github.com/coapclient/go-coap/message"
	"github.com/coapclient/go-coap/message/codes"
)

// ErrPeer is matched by every Status via errors.Is.
var ErrPeer = errors.New("peer error")

// Status holds a reply whose code is 4.xx or 5.xx.
type Status struct {
	err error
	msg *message.Message
}

func (se Status) Error() string {
	return fmt.Sprintf("coap error: code = %v (%v) desc = %v", se.Code(), se.Code().Dotted(), se.err)
}

func (se Status) Unwrap() error {
	return se.err
}

// Is makes errors.Is(err, ErrPeer) hold for any Status.
func (se Status) Is(target error) bool {
	return target == ErrPeer
}

// Code returns the status code contained in se.
func (se Status) Code() codes.Code {
	if se.msg == nil {
		return codes.Empty
	}
	return se.msg.Code
}

// Message returns the reply that carried the error code.
func (se Status) Message() *message.Message {
	return se.msg
}

// Error returns a Status for msg. The optional err describes the context.
func Error(msg *message.Message, err error) Status {
	if err == nil {
		err = ErrPeer
	}
	return Status{
		msg: msg,
		err: err,
	}
}

// Errorf returns Error(msg, fmt.Errorf(format, a...)).
func Errorf(msg *message.Message, format string, a ...interface{}) Status {
	return Error(msg, fmt.Errorf(format, a...))
}

// FromError returns the Status wrapped in err, if any.
func FromError(err error) (Status, bool) {
	var s Status
	if errors.As(err, &s) {
		return s, true
	}
	return Status{}, false
}

// Code returns the code of the Status wrapped in err or codes.Empty.
func Code(err error) codes.Code {
	s, ok := FromError(err)
	if !ok {
		return codes.Empty
	}
	return s.Code()
}
