package net

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrConnectionIsClosed = Error("connection is closed")
	ErrWriteInterrupted   = Error("only part of the datagram was written")
)
