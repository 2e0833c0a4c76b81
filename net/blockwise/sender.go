package blockwise

// Sender slices a request body into Block1 fragments.
type Sender struct {
	payload []byte
	offset  int
	szx     SZX
}

func NewSender(payload []byte, szx SZX) *Sender {
	return &Sender{
		payload: payload,
		szx:     szx,
	}
}

// NeedsBlockwise reports whether a body of n bytes exceeds one block of szx.
func NeedsBlockwise(n int, szx SZX) bool {
	return n > szx.Size()
}

// Current returns the block descriptor and data of the fragment to send.
func (s *Sender) Current() (Block, []byte) {
	size := s.szx.Size()
	end := s.offset + size
	more := true
	if end >= len(s.payload) {
		end = len(s.payload)
		more = false
	}
	return Block{
		Num:  uint32(s.offset / size),
		More: more,
		SZX:  s.szx,
	}, s.payload[s.offset:end]
}

// Ack advances past the current fragment after the peer accepted it with ack.
// A smaller SZX in ack is used for the remaining fragments. It reports true once
// the final fragment was accepted.
func (s *Sender) Ack(ack Block) (bool, error) {
	cur, _ := s.Current()
	if ack.Num != cur.Num {
		return false, ErrUnexpectedBlock
	}
	if !cur.More {
		return true, nil
	}
	s.offset += s.szx.Size()
	if ack.SZX.Valid() && ack.SZX < s.szx {
		s.szx = ack.SZX
	}
	return false, nil
}

// Renegotiate restarts the upload from the beginning with a smaller szx.
func (s *Sender) Renegotiate(szx SZX) bool {
	if !szx.Valid() || szx >= s.szx {
		return false
	}
	s.szx = szx
	s.offset = 0
	return true
}

// SZX returns the block size currently used.
func (s *Sender) SZX() SZX {
	return s.szx
}
