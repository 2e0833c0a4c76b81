// Package blockwise implements the block option codec and the transfer state
// of RFC 7959 block-wise downloads (Block2) and uploads (Block1).
package blockwise

import (
	"fmt"
)

// Block Option value is represented: https://tools.ietf.org/html/rfc7959#section-2.2
//  0
//  0 1 2 3 4 5 6 7
// +-+-+-+-+-+-+-+-+
// |  NUM  |M| SZX |
// +-+-+-+-+-+-+-+-+
//  0                   1
//  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |          NUM          |M| SZX |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//  0                   1                   2
//  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                   NUM                 |M| SZX |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+

const (
	// max block size is 3bytes: https://tools.ietf.org/html/rfc7959#section-2.1
	maxBlockValue = 0xffffff
	// maxBlockNumber is 20bits (NUM)
	maxBlockNumber = 0xfffff
	// moreBlocksFollowingMask is represented by one bit (M)
	moreBlocksFollowingMask = 0x8
	// szxMask last 3bits represents SZX (SZX)
	szxMask = 0x7
)

// SZX enum representation for the size of the block: https://tools.ietf.org/html/rfc7959#section-2.2
type SZX uint8

const (
	// SZX16 block of size 16bytes
	SZX16 SZX = 0
	// SZX32 block of size 32bytes
	SZX32 SZX = 1
	// SZX64 block of size 64bytes
	SZX64 SZX = 2
	// SZX128 block of size 128bytes
	SZX128 SZX = 3
	// SZX256 block of size 256bytes
	SZX256 SZX = 4
	// SZX512 block of size 512bytes
	SZX512 SZX = 5
	// SZX1024 block of size 1024bytes
	SZX1024 SZX = 6
)

// Valid reports whether s is usable over UDP; 7 is reserved for BERT.
func (s SZX) Valid() bool {
	return s <= SZX1024
}

// Size number of bytes, 2^(4+SZX).
func (s SZX) Size() int {
	if !s.Valid() {
		return -1
	}
	return 1 << (4 + s)
}

func (s SZX) String() string {
	return fmt.Sprintf("SZX%d", s.Size())
}

// SZXFromSize maps a power-of-two size in 16..1024 to its SZX.
func SZXFromSize(size int) (SZX, error) {
	for s := SZX16; s <= SZX1024; s++ {
		if s.Size() == size {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: %v", ErrInvalidBlockSize, size)
}

// Block is a decoded Block1 or Block2 option.
type Block struct {
	Num  uint32
	More bool
	SZX  SZX
}

// Offset returns the byte offset of the block in the whole body.
func (b Block) Offset() int {
	return int(b.Num) * b.SZX.Size()
}

// Value encodes the block to the option value.
func (b Block) Value() (uint32, error) {
	return EncodeBlockOption(b.SZX, b.Num, b.More)
}

func (b Block) String() string {
	return fmt.Sprintf("%d/%v/%d", b.Num, b.More, b.SZX.Size())
}

// EncodeBlockOption encodes block values to coap option.
func EncodeBlockOption(szx SZX, blockNumber uint32, moreBlocksFollowing bool) (uint32, error) {
	if !szx.Valid() {
		return 0, ErrInvalidSZX
	}
	if blockNumber > maxBlockNumber {
		return 0, ErrBlockNumberExceedLimit
	}
	blockVal := blockNumber << 4
	if moreBlocksFollowing {
		blockVal |= moreBlocksFollowingMask
	}
	blockVal |= uint32(szx)
	return blockVal, nil
}

// DecodeBlockOption decodes coap block option to block values.
func DecodeBlockOption(blockVal uint32) (Block, error) {
	if blockVal > maxBlockValue {
		return Block{}, ErrBlockInvalidSize
	}
	b := Block{
		Num:  blockVal >> 4,
		More: blockVal&moreBlocksFollowingMask != 0,
		SZX:  SZX(blockVal & szxMask),
	}
	if !b.SZX.Valid() {
		return Block{}, ErrInvalidSZX
	}
	return b, nil
}
