package message

import "errors"

var (
	ErrTooSmall                     = errors.New("too small bytes buffer")
	ErrInvalidOptionHeaderExt       = errors.New("invalid option header ext")
	ErrInvalidTokenLen              = errors.New("invalid token length")
	ErrInvalidValueLength           = errors.New("invalid value length")
	ErrOptionTruncated              = errors.New("option truncated")
	ErrOptionUnexpectedExtendMarker = errors.New("option unexpected extend marker")
	ErrOptionNumberOverflow         = errors.New("option number overflow")
	ErrUnknownCriticalOption        = errors.New("unknown critical option")
	ErrOptionNotFound               = errors.New("option not found")
	ErrOptionNotRepeatable          = errors.New("option is not repeatable")
	ErrInvalidEncoding              = errors.New("invalid encoding")
)
