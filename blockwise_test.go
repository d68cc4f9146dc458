// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"bytes"
	"testing"
)

func TestBlockEncodeDecode(t *testing.T) {
	tests := []struct {
		bm   BlockMetadata
		want []byte
	}{
		{BlockMetadata{Num: 0, More: false, Size: 16}, []byte{0x00}},
		{BlockMetadata{Num: 1, More: true, Size: 64}, []byte{0x1a}},
		{BlockMetadata{Num: 15, More: false, Size: 1024}, []byte{0xf6}},
		{BlockMetadata{Num: 16, More: false, Size: 1024}, []byte{0x01, 0x06}},
		{BlockMetadata{Num: 4096, More: true, Size: 32}, []byte{0x01, 0x00, 0x09}},
	}
	for _, tt := range tests {
		got := tt.bm.Encode()
		if !bytes.Equal(got, tt.want) {
			t.Errorf("Encode(%+v) = %x, want %x", tt.bm, got, tt.want)
			continue
		}
		back, err := blockDecode(got)
		if err != nil || *back != tt.bm {
			t.Errorf("blockDecode(%x) = %+v, %v", got, back, err)
		}
	}
}

func TestBlockDecodeEdges(t *testing.T) {
	bm, err := blockDecode(nil)
	if err != nil || bm.Num != 0 || bm.Size != 16 || bm.More {
		t.Fatalf("empty value = %+v, %v", bm, err)
	}
	if _, err := blockDecode([]byte{1, 2, 3, 4}); err == nil {
		t.Fatal("4 byte block option accepted")
	}
}

func TestBlockSlice(t *testing.T) {
	data := []byte("0123456789")
	tests := []struct {
		num, size int
		want      string
		more      bool
	}{
		{0, 4, "0123", true},
		{1, 4, "4567", true},
		{2, 4, "89", false},
		{1, 5, "56789", false},
		{3, 4, "", false},
	}
	for _, tt := range tests {
		got, more := blockSlice(data, tt.num, tt.size)
		if string(got) != tt.want || more != tt.more {
			t.Errorf("blockSlice(%d, %d) = %q, %v", tt.num, tt.size, got, more)
		}
	}
}

func fragment(num int, more bool, payload string) *Message {
	m := &Message{Type: TypeAcknowledgement, Code: RspCodeContent, Payload: []byte(payload)}
	m.WithBlock2(blockInit(num, more, 16))
	return m
}

func TestMergeRepliesOrdersByBlock(t *testing.T) {
	last := fragment(2, false, "c")
	last.WithContentFormat(TextPlain)
	merged := mergeReplies([]*Message{
		{Type: TypeAcknowledgement, Code: CodeEmpty},
		last,
		fragment(0, true, "a"),
		fragment(1, true, "b"),
		fragment(1, true, "B"),
	})
	if got := string(merged.Payload); got != "abc" {
		t.Fatalf("payload = %q", got)
	}
	if merged.ContentFormat() != TextPlain || merged.Block2().Num != 2 {
		t.Fatalf("options not taken from the last block: %s", merged)
	}
	if string(last.Payload) != "c" {
		t.Fatal("merge modified a fragment")
	}
}

func TestMergeRepliesEdges(t *testing.T) {
	if mergeReplies([]*Message{{Type: TypeAcknowledgement, Code: CodeEmpty}}) != nil {
		t.Fatal("empty ACK merged into a reply")
	}
	single := &Message{Type: TypeNonConfirmable, Code: RspCodeContent, Payload: []byte("x")}
	if got := mergeReplies([]*Message{single}); string(got.Payload) != "x" {
		t.Fatalf("single = %s", got)
	}
	noPayload := mergeReplies([]*Message{fragment(0, true, ""), fragment(1, false, "z")})
	if string(noPayload.Payload) != "z" {
		t.Fatalf("payload = %q", noPayload.Payload)
	}
}
