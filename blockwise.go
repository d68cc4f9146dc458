// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"errors"
	"sort"
)

// BlockMetadata is the decoded form of a Block1 or Block2 option
// (NUM:20 | M:1 | SZX:3, RFC 7959 section 2.2).
type BlockMetadata struct {
	Size int
	More bool
	Num  int
}

var errBlockLength = errors.New("coap: blockwise metadata invalid length")

func blockDecode(buf []byte) (*BlockMetadata, error) {
	var bm BlockMetadata
	var last byte

	switch len(buf) {
	case 0:
	case 1:
		last = buf[0]
		bm.Num = int(buf[0] >> 4)
	case 2:
		last = buf[1]
		bm.Num = int(buf[0])<<4 | int(buf[1]>>4)
	case 3:
		last = buf[2]
		bm.Num = int(buf[0])<<12 | int(buf[1])<<4 | int(buf[2]>>4)
	default:
		return nil, errBlockLength
	}
	bm.More = last&0x08 == 0x08
	bm.Size = 1 << (4 + uint(last&0x07))

	return &bm, nil
}

func blockInit(num int, more bool, sz int) *BlockMetadata {
	return &BlockMetadata{Size: sz, Num: num, More: more}
}

// szx returns the size exponent for Size, rounding down to a power of two.
func (bm *BlockMetadata) szx() byte {
	sz := byte(0)
	for s := bm.Size >> 5; s > 0 && sz < 7; s >>= 1 {
		sz++
	}
	return sz
}

// Encode returns the shortest option value carrying the block descriptor.
func (bm *BlockMetadata) Encode() []byte {
	var buf []byte
	switch {
	case bm.Num <= 0x0F:
		buf = []byte{byte(bm.Num << 4)}
	case bm.Num <= 0x0FFF:
		buf = []byte{byte(bm.Num >> 4), byte(bm.Num << 4)}
	default:
		buf = []byte{byte(bm.Num >> 12), byte(bm.Num >> 4), byte(bm.Num << 4)}
	}
	last := len(buf) - 1
	buf[last] |= bm.szx()
	if bm.More {
		buf[last] |= 0x08
	}
	return buf
}

// blockSlice returns block num of data and whether more blocks follow.
func blockSlice(data []byte, num int, size int) ([]byte, bool) {
	offset := num * size
	if offset >= len(data) {
		return nil, false
	}
	if offset+size >= len(data) {
		return data[offset:], false
	}
	return data[offset : offset+size], true
}

func blockNumber(m *Message) int {
	if b2 := m.Block2(); b2 != nil {
		return b2.Num
	}
	return 0
}

// mergeReplies assembles the fragments of one exchange into a single reply.
// Fragments are ordered by Block2 number, arrival order breaking ties; empty ACKs
// are dropped and a block number not above the previous one is skipped. The
// last fragment supplies everything but the payload.
func mergeReplies(fragments []*Message) *Message {
	live := make([]*Message, 0, len(fragments))
	for _, f := range fragments {
		if !f.isEmptyAck() {
			live = append(live, f)
		}
	}
	if len(live) == 0 {
		return nil
	}
	sort.SliceStable(live, func(i, j int) bool {
		return blockNumber(live[i]) < blockNumber(live[j])
	})

	var payload []byte
	last := -1
	for _, f := range live {
		num := blockNumber(f)
		if num <= last {
			continue
		}
		last = num
		if len(f.Payload) == 0 {
			continue
		}
		payload = append(payload, f.Payload...)
	}

	rv := *live[len(live)-1]
	rv.Payload = payload
	return &rv
}
