// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"encoding/binary"
	"errors"
)

/*
	|       0       |       1       |       2       |       3       |
	|7 6 5 4 3 2 1 0|7 6 5 4 3 2 1 0|7 6 5 4 3 2 1 0|7 6 5 4 3 2 1 0|
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|Ver| T |  TKL  |      Code     |          Message ID           |
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|   Token (if any, TKL bytes) ...
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|   Options (if any) ...
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	|1 1 1 1 1 1 1 1|    Payload (if any) ...
	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
*/

const (
	coapVersion    = 1
	payloadMarker  = 0xFF
	extendByte     = 13
	extendWord     = 14
	extendReserved = 15
	maxTokenLen    = 8
)

var (
	errPayloadMarker   = errors.New("payload marker without payload")
	errReservedNibble  = errors.New("reserved option nibble")
	errTruncatedOption = errors.New("option runs past end of packet")
)

// extendedNibble splits v into its 4 bit nibble and the extension bytes.
func extendedNibble(v int) (byte, []byte) {
	switch {
	case v < extendByte:
		return byte(v), nil
	case v < 269:
		return extendByte, []byte{byte(v - 13)}
	default:
		ext := make([]byte, 2)
		binary.BigEndian.PutUint16(ext, uint16(v-269))
		return extendWord, ext
	}
}

// MarshalBinary encodes the message as a CoAP PDU.
func (m *Message) MarshalBinary() ([]byte, error) {
	if len(m.Token) > maxTokenLen {
		return nil, ErrInvalidTokenLen
	}

	size := 4 + len(m.Token) + len(m.Payload) + 1
	for _, o := range m.opts {
		size += 5 + len(o.Value)
	}
	buf := make([]byte, 4, size)
	buf[0] = coapVersion<<6 | byte(m.Type&0x3)<<4 | byte(len(m.Token))
	buf[1] = byte(m.Code)
	binary.BigEndian.PutUint16(buf[2:], m.MessageID)
	buf = append(buf, m.Token...)

	prev := 0
	for _, o := range m.opts {
		delta := int(o.ID) - prev
		if delta < 0 {
			return nil, ErrOptionGapTooLarge
		}
		if len(o.Value) > 65535+269 {
			return nil, ErrOptionTooLong
		}
		dn, dext := extendedNibble(delta)
		ln, lext := extendedNibble(len(o.Value))
		buf = append(buf, dn<<4|ln)
		buf = append(buf, dext...)
		buf = append(buf, lext...)
		buf = append(buf, o.Value...)
		prev = int(o.ID)
	}

	if len(m.Payload) > 0 {
		buf = append(buf, payloadMarker)
		buf = append(buf, m.Payload...)
	}
	return buf, nil
}

// readExtended resolves a delta or length nibble, consuming extension bytes at data[pos:].
func readExtended(data []byte, pos int, nibble byte) (int, int, error) {
	switch nibble {
	case extendByte:
		if pos+1 > len(data) {
			return 0, pos, errTruncatedOption
		}
		return int(data[pos]) + 13, pos + 1, nil
	case extendWord:
		if pos+2 > len(data) {
			return 0, pos, errTruncatedOption
		}
		return int(binary.BigEndian.Uint16(data[pos:])) + 269, pos + 2, nil
	case extendReserved:
		return 0, pos, errReservedNibble
	default:
		return int(nibble), pos, nil
	}
}

// UnmarshalBinary decodes a CoAP PDU; it never reads past the end of data.
func (m *Message) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return &DecodeError{Offset: len(data), Err: ErrShortPacket}
	}
	if data[0]>>6 != coapVersion {
		return &DecodeError{Offset: 0, Err: ErrBadVersion}
	}
	tkl := int(data[0] & 0x0F)
	if tkl > maxTokenLen {
		return &DecodeError{Offset: 0, Err: ErrInvalidTokenLen}
	}
	if 4+tkl > len(data) {
		return &DecodeError{Offset: 4, Err: ErrShortPacket}
	}

	rv := Message{
		Type:      COAPType((data[0] >> 4) & 0x3),
		Code:      COAPCode(data[1]),
		MessageID: binary.BigEndian.Uint16(data[2:4]),
	}
	if tkl > 0 {
		rv.Token = append([]byte(nil), data[4:4+tkl]...)
	}

	pos := 4 + tkl
	prev := 0
	var opts options
	for pos < len(data) {
		flag := data[pos]
		if flag == payloadMarker {
			pos++
			if pos == len(data) {
				return &DecodeError{Offset: pos, Err: errPayloadMarker}
			}
			rv.Payload = append([]byte(nil), data[pos:]...)
			break
		}
		start := pos
		pos++

		delta, next, err := readExtended(data, pos, flag>>4)
		if err != nil {
			return &DecodeError{Offset: start, Err: err}
		}
		pos = next
		length, next, err := readExtended(data, pos, flag&0x0F)
		if err != nil {
			return &DecodeError{Offset: start, Err: err}
		}
		pos = next
		if pos+length > len(data) {
			return &DecodeError{Offset: start, Err: errTruncatedOption}
		}
		id := prev + delta
		if id > 0xFFFF {
			return &DecodeError{Offset: start, Err: ErrOptionGapTooLarge}
		}
		opt := Option{ID: OptionID(id)}
		if length > 0 {
			opt.Value = append([]byte(nil), data[pos:pos+length]...)
		}
		opt.checkLength()
		// deltas are non-negative, so appending keeps the list ordered
		opts = append(opts, opt)
		pos += length
		prev = id
	}
	rv.opts = opts

	if b2 := rv.Block2(); b2 != nil && b2.Size > 1024 {
		logWarn(&rv, nil, "block2 size %d exceeds 1024", b2.Size)
	}

	rv.Meta = m.Meta
	*m = rv
	return nil
}

// ParseMessage decodes data into a new Message.
func ParseMessage(data []byte) (*Message, error) {
	m := &Message{}
	if err := m.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return m, nil
}
