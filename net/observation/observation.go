// Package observation tracks RFC 7641 notification ordering per observed token.
package observation

import (
	"time"

	"github.com/coapclient/go-coap/message"
)

// ObservationSequenceTimeout defines how long is sequence number is valid. https://tools.ietf.org/html/rfc7641#section-3.4
const ObservationSequenceTimeout = 128 * time.Second

const (
	sequenceMask = 1<<24 - 1
	sequenceHalf = 1 << 23
)

// ValidSequenceNumber implements conditions in https://tools.ietf.org/html/rfc7641#section-3.4
// using 24-bit wrap-around arithmetic: new is fresher than old when (new-old) mod 2^24 is in (0, 2^23).
func ValidSequenceNumber(old, new uint32, lastEventOccurs time.Time, now time.Time) bool {
	d := (new - old) & sequenceMask
	if d != 0 && d < sequenceHalf {
		return true
	}
	return now.Sub(lastEventOccurs) > ObservationSequenceTimeout
}

// Entry is the ordering state of one observation.
type Entry struct {
	Token     message.Token
	lastSeq   uint32
	lastEvent time.Time
	seen      bool
}

// Accept reports whether a notification with seq is fresh and records it if so.
// The first notification is always accepted.
func (e *Entry) Accept(seq uint32, now time.Time) bool {
	if e.seen && !ValidSequenceNumber(e.lastSeq, seq, e.lastEvent, now) {
		return false
	}
	e.seen = true
	e.lastSeq = seq & sequenceMask
	e.lastEvent = now
	return true
}

// LastSequence returns the last accepted sequence number.
func (e *Entry) LastSequence() (uint32, bool) {
	return e.lastSeq, e.seen
}

// Registry holds the active observations keyed by token. It is not safe for
// concurrent use; the owner serializes access.
type Registry struct {
	entries map[string]*Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register starts tracking token, replacing any previous state.
func (r *Registry) Register(token message.Token) *Entry {
	e := &Entry{Token: append(message.Token(nil), token...)}
	r.entries[string(token)] = e
	return e
}

// Remove stops tracking token.
func (r *Registry) Remove(token message.Token) bool {
	_, ok := r.entries[string(token)]
	delete(r.entries, string(token))
	return ok
}
