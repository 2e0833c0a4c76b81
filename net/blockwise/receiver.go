package blockwise

import (
	"bytes"

	"github.com/dsnet/golib/memfile"
)

// Progress is the outcome of feeding one Block2 fragment to a Receiver.
type Progress int

const (
	// Next the fragment was stored; request NextBlock.
	Next Progress = iota
	// Completed the last fragment was stored; Payload holds the body.
	Completed
	// Restart the fragment did not continue the body; reassembly starts over at block 0.
	Restart
)

// Receiver reassembles a Block2 body in block order.
type Receiver struct {
	body     *memfile.File
	received int
	etag     []byte
	szx      SZX
	maxSize  int
}

// NewReceiver creates a receiver that requests blocks of at most szx and
// refuses bodies longer than maxSize bytes.
func NewReceiver(szx SZX, maxSize int) *Receiver {
	return &Receiver{
		body:    memfile.New(make([]byte, 0, szx.Size())),
		szx:     szx,
		maxSize: maxSize,
	}
}

func (r *Receiver) reset() {
	_ = r.body.Truncate(0)
	r.received = 0
	r.etag = nil
}

// Received returns the number of bytes reassembled so far.
func (r *Receiver) Received() int {
	return r.received
}

// Accept stores payload carried by block. etag is the ETag of the fragment, nil when absent.
// A fragment at an unexpected offset or with a changed ETag makes the receiver start over.
func (r *Receiver) Accept(block Block, etag []byte, payload []byte) (Progress, error) {
	if !block.SZX.Valid() {
		return Restart, ErrInvalidSZX
	}
	if block.Offset() != r.received || (r.received > 0 && !bytes.Equal(r.etag, etag)) {
		r.reset()
		return Restart, nil
	}
	if block.More && len(payload) != block.SZX.Size() {
		r.reset()
		return Restart, ErrShortBlock
	}
	if r.received+len(payload) > r.maxSize {
		r.reset()
		return Restart, ErrMessageTooLarge
	}
	if r.received == 0 {
		r.etag = append([]byte(nil), etag...)
	}
	if _, err := r.body.WriteAt(payload, int64(r.received)); err != nil {
		r.reset()
		return Restart, err
	}
	r.received += len(payload)
	if block.SZX < r.szx {
		// follow the size the peer chose
		r.szx = block.SZX
	}
	if !block.More {
		return Completed, nil
	}
	return Next, nil
}

// NextBlock returns the Block2 value to request after Next, or block 0 after Restart.
func (r *Receiver) NextBlock() Block {
	return Block{
		Num: uint32(r.received / r.szx.Size()),
		SZX: r.szx,
	}
}

// Payload returns a copy of the reassembled body.
func (r *Receiver) Payload() []byte {
	return append([]byte(nil), r.body.Bytes()[:r.received]...)
}
