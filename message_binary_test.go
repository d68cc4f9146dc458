// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/message/pool"
	"github.com/plgd-dev/go-coap/v3/udp/coder"
)

const testVector = "5401dc504647f09bb474657374"

func vectorMessage() *Message {
	m := &Message{
		Type:      TypeNonConfirmable,
		Code:      CodeGet,
		MessageID: 56400,
		Token:     []byte{0x46, 0x47, 0xf0, 0x9b},
	}
	m.WithPathString("/test")
	return m
}

func TestMarshalVector(t *testing.T) {
	data, err := vectorMessage().MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if got := hex.EncodeToString(data); got != testVector {
		t.Fatalf("encoded %s, want %s", got, testVector)
	}
}

func TestRequestFrameVector(t *testing.T) {
	req, err := NewRequest(CodeGet, "coap://10.20.30.40:5683/test")
	if err != nil {
		t.Fatal(err)
	}
	req.MessageID = 56400
	req.Token = []byte{0x46, 0x47, 0xf0, 0x9b}
	data, err := req.frame().MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if got := hex.EncodeToString(data); got != testVector {
		t.Fatalf("encoded %s, want %s", got, testVector)
	}
}

func TestUnmarshalVector(t *testing.T) {
	data, _ := hex.DecodeString(testVector)
	m, err := ParseMessage(data)
	if err != nil {
		t.Fatal(err)
	}
	if m.Type != TypeNonConfirmable || m.Code != CodeGet || m.MessageID != 56400 {
		t.Fatalf("decoded %s", m)
	}
	if !bytes.Equal(m.Token, []byte{0x46, 0x47, 0xf0, 0x9b}) || m.PathString() != "/test" || len(m.Payload) != 0 {
		t.Fatalf("decoded %s", m)
	}
}

func TestMarshalExtendedOptions(t *testing.T) {
	m := &Message{Type: TypeConfirmable, Code: RspCodeContent, MessageID: 1, Payload: []byte("hello")}
	m.AddOption(NewOption(OptURIHost, strings.Repeat("h", 20)))
	m.AddOption(NewOption(OptProxyURI, strings.Repeat("p", 300)))
	m.AddOption(NewOption(OptSize1, 70000))
	m.WithContentFormat(AppJSON)

	data, err := m.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	// Uri-Host: delta 3, 20 bytes -> length nibble 13 with one extension byte
	if data[4] != 0x3d || data[5] != 20-13 {
		t.Fatalf("first option header %x", data[4:6])
	}

	back, err := ParseMessage(data)
	if err != nil {
		t.Fatal(err)
	}
	if o, _ := back.Option(OptProxyURI); len(o.Value) != 300 {
		t.Fatalf("proxy-uri length %d", len(o.Value))
	}
	if o, _ := back.Option(OptSize1); o.UintValue() != 70000 {
		t.Fatalf("size1 %d", o.UintValue())
	}
	if back.ContentFormat() != AppJSON || string(back.Payload) != "hello" {
		t.Fatalf("decoded %s", back)
	}
	if !bytes.Equal(mustMarshal(t, back), data) {
		t.Fatal("re-encoding differs")
	}
}

func TestUnmarshalErrors(t *testing.T) {
	tests := []struct {
		name string
		hex  string
		want error
	}{
		{"short header", "5401dc", ErrShortPacket},
		{"bad version", "9401dc504647f09b", ErrBadVersion},
		{"token length", "5901dc50", ErrInvalidTokenLen},
		{"truncated token", "5401dc5046", ErrShortPacket},
		{"payload marker only", "4001000aff", errPayloadMarker},
		{"reserved delta", "4001000af0", errReservedNibble},
		{"reserved length", "4001000a0f", errReservedNibble},
		{"option past end", "4001000ab474", errTruncatedOption},
		{"missing extension", "4001000ad0", errTruncatedOption},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := hex.DecodeString(tt.hex)
			if err != nil {
				t.Fatal(err)
			}
			_, err = ParseMessage(data)
			var derr *DecodeError
			if !errors.As(err, &derr) || !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestUnmarshalKeepsMetadata(t *testing.T) {
	data, _ := hex.DecodeString(testVector)
	m := &Message{Meta: Metadata{RemoteAddr: "10.20.30.40:5683"}}
	if err := m.UnmarshalBinary(data); err != nil {
		t.Fatal(err)
	}
	if m.Meta.RemoteAddr != "10.20.30.40:5683" {
		t.Fatalf("meta lost: %+v", m.Meta)
	}
}

func TestMarshalRejectsLongToken(t *testing.T) {
	m := &Message{Token: bytes.Repeat([]byte{1}, 9)}
	if _, err := m.MarshalBinary(); !errors.Is(err, ErrInvalidTokenLen) {
		t.Fatalf("err = %v", err)
	}
}

func TestEncodingMatchesGoCoap(t *testing.T) {
	m := &Message{Type: TypeConfirmable, Code: CodePost, MessageID: 4242, Token: []byte("tok")}
	m.WithPathString("/a/b")
	m.WithContentFormat(TextPlain)
	m.WithPayload([]byte("body"))
	data := mustMarshal(t, m)

	pm := pool.NewMessage(context.Background())
	defer pm.Reset()
	if _, err := pm.UnmarshalWithDecoder(coder.DefaultCoder, data); err != nil {
		t.Fatalf("go-coap decode: %v", err)
	}
	if pm.Code() != codes.POST || pm.Type() != message.Confirmable || pm.MessageID() != 4242 {
		t.Fatalf("go-coap decoded code %v type %v mid %d", pm.Code(), pm.Type(), pm.MessageID())
	}
	if !bytes.Equal(pm.Token(), []byte("tok")) {
		t.Fatalf("go-coap token %x", pm.Token())
	}
	path, err := pm.Options().Path()
	if err != nil || strings.TrimPrefix(path, "/") != "a/b" {
		t.Fatalf("go-coap path %q, %v", path, err)
	}

	ref := pool.NewMessage(context.Background())
	defer ref.Reset()
	ref.SetCode(codes.Content)
	ref.SetType(message.Acknowledgement)
	ref.SetMessageID(99)
	ref.SetToken(message.Token("ref"))
	ref.SetContentFormat(message.AppJSON)
	refData, err := ref.MarshalWithEncoder(coder.DefaultCoder)
	if err != nil {
		t.Fatal(err)
	}
	back, err := ParseMessage(refData)
	if err != nil {
		t.Fatalf("decode go-coap frame: %v", err)
	}
	if back.Code != RspCodeContent || back.Type != TypeAcknowledgement || back.MessageID != 99 || string(back.Token) != "ref" {
		t.Fatalf("decoded %s", back)
	}
	if back.ContentFormat() != AppJSON {
		t.Fatalf("content format %d", back.ContentFormat())
	}
}
