// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// OptionID identifies an option in a message.
type OptionID uint16

/*
   +-----+----+---+---+---+----------------+--------+--------+---------+
   | No. | C  | U | N | R | Name           | Format | Length | Default |
   +-----+----+---+---+---+----------------+--------+--------+---------+
   |   1 | x  |   |   | x | If-Match       | opaque | 0-8    | (none)  |
   |   3 | x  | x | - |   | Uri-Host       | string | 1-255  | (see    |
   |     |    |   |   |   |                |        |        | below)  |
   |   4 |    |   |   | x | ETag           | opaque | 1-8    | (none)  |
   |   5 | x  |   |   |   | If-None-Match  | empty  | 0      | (none)  |
   |   6 |    | x | - |   | Observe        | uint   | 0-3    | (none)  |
   |   7 | x  | x | - |   | Uri-Port       | uint   | 0-2    | (see    |
   |     |    |   |   |   |                |        |        | below)  |
   |   8 |    |   |   | x | Location-Path  | string | 0-255  | (none)  |
   |  11 | x  | x | - | x | Uri-Path       | string | 0-255  | (none)  |
   |  12 |    |   |   |   | Content-Format | uint   | 0-2    | (none)  |
   |  14 |    | x | - |   | Max-Age        | uint   | 0-4    | 60      |
   |  15 | x  | x | - | x | Uri-Query      | string | 0-255  | (none)  |
   |  17 | x  |   |   |   | Accept         | uint   | 0-2    | (none)  |
   |  20 |    |   |   | x | Location-Query | string | 0-255  | (none)  |
   |  23 | x  | x |   |   | Block2         | uint   | 0-3    | (none)  |
   |  27 | x  | x |   |   | Block1         | uint   | 0-3    | (none)  |
   |  28 |    |   | x |   | Size2          | uint   | 0-4    | (none)  |
   |  35 | x  | x | - |   | Proxy-Uri      | string | 1-1034 | (none)  |
   |  39 | x  | x | - |   | Proxy-Scheme   | string | 1-255  | (none)  |
   |  60 |    |   | x |   | Size1          | uint   | 0-4    | (none)  |
   +-----+----+---+---+---+----------------+--------+--------+---------+
*/

// Option IDs.
const (
	OptInvalid       OptionID = 0
	OptIfMatch       OptionID = 1
	OptURIHost       OptionID = 3
	OptETag          OptionID = 4
	OptIfNoneMatch   OptionID = 5
	OptObserve       OptionID = 6
	OptURIPort       OptionID = 7
	OptLocationPath  OptionID = 8
	OptURIPath       OptionID = 11
	OptContentFormat OptionID = 12
	OptMaxAge        OptionID = 14
	OptURIQuery      OptionID = 15
	OptAccept        OptionID = 17
	OptLocationQuery OptionID = 20
	OptBlock2        OptionID = 23
	OptBlock1        OptionID = 27
	OptSize2         OptionID = 28
	OptProxyURI      OptionID = 35
	OptProxyScheme   OptionID = 39
	OptSize1         OptionID = 60
)

// Option value format (RFC7252 section 3.2)
type valueFormat uint8

const (
	valueUnknown valueFormat = iota
	valueEmpty
	valueOpaque
	valueUint
	valueString
)

type optionDef struct {
	name        string
	valueFormat valueFormat
	minLen      int
	maxLen      int
}

var optionDefs = map[OptionID]optionDef{
	OptIfMatch:       {name: "If-Match", valueFormat: valueOpaque, minLen: 0, maxLen: 8},
	OptURIHost:       {name: "Uri-Host", valueFormat: valueString, minLen: 1, maxLen: 255},
	OptETag:          {name: "ETag", valueFormat: valueOpaque, minLen: 1, maxLen: 8},
	OptIfNoneMatch:   {name: "If-None-Match", valueFormat: valueEmpty, minLen: 0, maxLen: 0},
	OptObserve:       {name: "Observe", valueFormat: valueUint, minLen: 0, maxLen: 3},
	OptURIPort:       {name: "Uri-Port", valueFormat: valueUint, minLen: 0, maxLen: 2},
	OptLocationPath:  {name: "Location-Path", valueFormat: valueString, minLen: 0, maxLen: 255},
	OptURIPath:       {name: "Uri-Path", valueFormat: valueString, minLen: 0, maxLen: 255},
	OptContentFormat: {name: "Content-Format", valueFormat: valueUint, minLen: 0, maxLen: 2},
	OptMaxAge:        {name: "Max-Age", valueFormat: valueUint, minLen: 0, maxLen: 4},
	OptURIQuery:      {name: "Uri-Query", valueFormat: valueString, minLen: 0, maxLen: 255},
	OptAccept:        {name: "Accept", valueFormat: valueUint, minLen: 0, maxLen: 2},
	OptLocationQuery: {name: "Location-Query", valueFormat: valueString, minLen: 0, maxLen: 255},
	OptBlock2:        {name: "Block2", valueFormat: valueUint, minLen: 0, maxLen: 3},
	OptBlock1:        {name: "Block1", valueFormat: valueUint, minLen: 0, maxLen: 3},
	OptSize2:         {name: "Size2", valueFormat: valueUint, minLen: 0, maxLen: 4},
	OptProxyURI:      {name: "Proxy-Uri", valueFormat: valueString, minLen: 1, maxLen: 1034},
	OptProxyScheme:   {name: "Proxy-Scheme", valueFormat: valueString, minLen: 1, maxLen: 255},
	OptSize1:         {name: "Size1", valueFormat: valueUint, minLen: 0, maxLen: 4},
}

func (o OptionID) String() string {
	if def, found := optionDefs[o]; found {
		return def.name
	}
	return fmt.Sprintf("Option(%d)", uint16(o))
}

// MaxLength returns the largest value length the standard allows for this option,
// or -1 if the option is not a registered one.
func (o OptionID) MaxLength() int {
	if def, found := optionDefs[o]; found {
		return def.maxLen
	}
	return -1
}

// Option is a single option with its raw value.
type Option struct {
	ID    OptionID
	Value []byte
}

// NewOption builds an option from a string, []byte, MediaType or any integer value.
// Integers are truncated to 32 bits; other types panic. An oversized value is
// logged but kept.
func NewOption(id OptionID, val interface{}) Option {
	o := Option{ID: id, Value: toBytes(id, val)}
	o.checkLength()
	return o
}

func (o Option) checkLength() bool {
	def, found := optionDefs[o.ID]
	if !found || len(o.Value) <= def.maxLen {
		return true
	}
	logWarn(nil, ErrOptionTooLong, "%s value is %d bytes, maximum is %d", o.ID.String(), len(o.Value), def.maxLen)
	return false
}

// StringValue returns the value as a string.
func (o Option) StringValue() string {
	return string(o.Value)
}

// UintValue returns the value decoded as a big-endian unsigned integer.
func (o Option) UintValue() uint32 {
	return decodeInt(o.Value)
}

func (o Option) clone() Option {
	if o.Value == nil {
		return o
	}
	v := make([]byte, len(o.Value))
	copy(v, o.Value)
	return Option{ID: o.ID, Value: v}
}

func (o Option) String() string {
	def := optionDefs[o.ID]
	switch def.valueFormat {
	case valueString:
		return fmt.Sprintf("%s: %q", o.ID.String(), string(o.Value))
	case valueUint:
		return fmt.Sprintf("%s: %d", o.ID.String(), decodeInt(o.Value))
	default:
		return fmt.Sprintf("%s: %x", o.ID.String(), o.Value)
	}
}

func encodeInt(v uint32) []byte {
	switch {
	case v == 0:
		return nil
	case v < 256:
		return []byte{byte(v)}
	case v < 65536:
		rv := []byte{0, 0}
		binary.BigEndian.PutUint16(rv, uint16(v))
		return rv
	case v < 16777216:
		rv := []byte{0, 0, 0, 0}
		binary.BigEndian.PutUint32(rv, uint32(v))
		return rv[1:]
	default:
		rv := []byte{0, 0, 0, 0}
		binary.BigEndian.PutUint32(rv, uint32(v))
		return rv
	}
}

func decodeInt(b []byte) uint32 {
	if len(b) > 4 {
		b = b[len(b)-4:]
	}
	tmp := []byte{0, 0, 0, 0}
	copy(tmp[4-len(b):], b)
	return binary.BigEndian.Uint32(tmp)
}

func toBytes(id OptionID, val interface{}) []byte {
	var v uint32

	switch i := val.(type) {
	case nil:
		return nil
	case string:
		return []byte(i)
	case []byte:
		return i
	case MediaType:
		v = uint32(i)
	case COAPCode:
		v = uint32(i)
	case int:
		v = uint32(i)
	case int8:
		v = uint32(i)
	case int16:
		v = uint32(i)
	case int32:
		v = uint32(i)
	case int64:
		v = uint32(i)
	case uint:
		v = uint32(i)
	case uint8:
		v = uint32(i)
	case uint16:
		v = uint32(i)
	case uint32:
		v = i
	case uint64:
		v = uint32(i)
	default:
		panic(fmt.Errorf("coap: invalid type for option %s: %T (%v)", id.String(), val, val))
	}

	return encodeInt(v)
}

// options is kept sorted by ID; options with the same ID keep insertion order.
type options []Option

func (o options) Len() int {
	return len(o)
}

func (o options) Less(i, j int) bool {
	return o[i].ID < o[j].ID
}

func (o options) Swap(i, j int) {
	o[i], o[j] = o[j], o[i]
}

// insert returns a new slice with opt placed after any options with an ID <= opt.ID.
func (o options) insert(opt Option) options {
	idx := sort.Search(len(o), func(i int) bool { return o[i].ID > opt.ID })
	rv := make(options, 0, len(o)+1)
	rv = append(rv, o[:idx]...)
	rv = append(rv, opt)
	rv = append(rv, o[idx:]...)
	return rv
}

// Minus returns a new slice without any option of the given ID.
func (o options) Minus(oid OptionID) options {
	rv := options{}
	for _, opt := range o {
		if opt.ID != oid {
			rv = append(rv, opt)
		}
	}
	return rv
}

func (o options) clone() options {
	if o == nil {
		return nil
	}
	rv := make(options, len(o))
	for i, opt := range o {
		rv[i] = opt.clone()
	}
	return rv
}
