package blockwise

// Error is a constant blockwise error.
type Error string

func (e Error) Error() string { return string(e) }

// ErrBlockNumberExceedLimit block number is wider than 20 bits
const ErrBlockNumberExceedLimit = Error("block number exceed limit 1,048,575")

// ErrBlockInvalidSize block option value is wider than 3 bytes
const ErrBlockInvalidSize = Error("block has invalid size")

// ErrInvalidSZX SZX is reserved or out of range
const ErrInvalidSZX = Error("invalid block-wise transfer szx")

// ErrInvalidBlockSize size is not a power of two within 16..1024
const ErrInvalidBlockSize = Error("block size must be a power of two between 16 and 1024")

// ErrUnexpectedBlock peer acknowledged or sent a block that does not continue the transfer
const ErrUnexpectedBlock = Error("unexpected block")

// ErrShortBlock a non-final block carries less data than its size
const ErrShortBlock = Error("non-final block shorter than block size")

// ErrMessageTooLarge reassembled body would exceed the receiver limit
const ErrMessageTooLarge = Error("block-wise body exceeds max message size")
