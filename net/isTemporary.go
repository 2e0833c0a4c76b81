package net

import (
	"errors"
	"net"
	"strings"
)

// https://github.com/golang/go/blob/958e212db799e609b2a8df51cdd85c9341e7a404/src/internal/poll/fd.go#L43
const ioTimeout = "i/o timeout"

// IsTemporary reports whether a read may be retried after err.
func IsTemporary(err error) bool {
	if err == nil || errors.Is(err, ErrConnectionIsClosed) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), ioTimeout)
}
