// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Metadata describes where an inbound message came from.
type Metadata struct {
	ListenerName string
	RemoteAddr   string
	DtlsIdentity string
	ReceivedAt   time.Time
}

// Message is a CoAP message.
//
// Copying a Message by value is cheap; every mutator replaces the option slice
// instead of writing into it, so a mutated copy never changes the original.
// Token and Payload are replaced wholesale by their setters.
type Message struct {
	Type      COAPType
	Code      COAPCode
	MessageID uint16
	Token     []byte

	Payload []byte

	opts options

	Meta Metadata
}

func NewMessage() *Message {
	return &Message{}
}

// Clone returns a deep copy.
func (m *Message) Clone() *Message {
	c := *m
	if m.Token != nil {
		c.Token = append([]byte(nil), m.Token...)
	}
	if m.Payload != nil {
		c.Payload = append([]byte(nil), m.Payload...)
	}
	c.opts = m.opts.clone()
	return &c
}

// IsConfirmable returns true if this message is confirmable.
func (m Message) IsConfirmable() bool {
	return m.Type == TypeConfirmable
}

// IsEmpty reports whether the message carries code 0.00 (ping, empty ACK, RST).
func (m Message) IsEmpty() bool {
	return m.Code == CodeEmpty
}

func (m Message) isEmptyAck() bool {
	return m.Type == TypeAcknowledgement && m.Code == CodeEmpty
}

// AllOptions returns the options in wire order.
func (m Message) AllOptions() []Option {
	rv := make([]Option, len(m.opts))
	copy(rv, m.opts)
	return rv
}

// Options gets all the values for the given option.
func (m Message) Options(o OptionID) []Option {
	var rv []Option
	for _, v := range m.opts {
		if o == v.ID {
			rv = append(rv, v)
		}
	}
	return rv
}

// Option gets the first value for the given option ID.
func (m Message) Option(o OptionID) (Option, bool) {
	for _, v := range m.opts {
		if o == v.ID {
			return v, true
		}
	}
	return Option{}, false
}

func (m Message) HasOption(o OptionID) bool {
	_, found := m.Option(o)
	return found
}

func (m Message) optionStrings(o OptionID) []string {
	var rv []string
	for _, o := range m.Options(o) {
		rv = append(rv, o.StringValue())
	}
	return rv
}

// AddOption inserts an option keeping the list in ascending ID order.
func (m *Message) AddOption(opt Option) *Message {
	opt.checkLength()
	m.opts = m.opts.insert(opt)
	return m
}

// WithOption adds an option built from val; string slices add one option per element.
func (m *Message) WithOption(opID OptionID, val interface{}, replace bool) *Message {
	if replace {
		m.RemoveOption(opID)
	}
	iv := reflect.ValueOf(val)
	if iv.IsValid() && (iv.Kind() == reflect.Slice || iv.Kind() == reflect.Array) &&
		iv.Type().Elem().Kind() == reflect.String {
		for i := 0; i < iv.Len(); i++ {
			m.opts = m.opts.insert(NewOption(opID, iv.Index(i).Interface()))
		}
		return m
	}
	m.opts = m.opts.insert(NewOption(opID, val))
	return m
}

// RemoveOption removes all references to an option
func (m *Message) RemoveOption(opID OptionID) *Message {
	m.opts = m.opts.Minus(opID)
	return m
}

func (m Message) ParseQuery() map[string]string {
	rv := map[string]string{}
	for _, qs := range m.optionStrings(OptURIQuery) {
		ss := strings.SplitN(qs, "=", 2)
		if len(ss) == 2 {
			rv[ss[0]] = ss[1]
		} else {
			rv[ss[0]] = ""
		}
	}
	return rv
}

func (m Message) QueryString() string {
	return strings.Join(m.optionStrings(OptURIQuery), "&")
}

func (m *Message) WithQuery(q map[string]string) *Message {
	for k, v := range q {
		val := k
		if len(v) != 0 {
			val = fmt.Sprintf("%s=%s", k, v)
		}
		m.WithOption(OptURIQuery, val, false)
	}
	return m
}

// Path gets the Path set on this message if any.
func (m Message) Path() []string {
	return m.optionStrings(OptURIPath)
}

// PathString gets a path as a / separated string.
func (m Message) PathString() string {
	return "/" + strings.Join(m.Path(), "/")
}

// WithPathString sets a path by a / separated string.
func (m *Message) WithPathString(s string) *Message {
	s = strings.TrimLeft(s, "/")
	if s == "" {
		m.RemoveOption(OptURIPath)
		return m
	}
	m.WithPath(strings.Split(s, "/"))
	return m
}

// WithPath updates or adds a URIPath attribute on this message.
func (m *Message) WithPath(s []string) *Message {
	m.WithOption(OptURIPath, s, true)
	return m
}

func (m *Message) WithPayload(payload []byte) *Message {
	m.Payload = payload
	return m
}

func (m *Message) WithType(t COAPType) *Message {
	m.Type = t
	return m
}

func (m *Message) WithCode(code COAPCode) *Message {
	m.Code = code
	return m
}

func (m *Message) WithToken(token []byte) *Message {
	m.Token = token
	return m
}

func (m *Message) WithMessageID(mid uint16) *Message {
	m.MessageID = mid
	return m
}

// Block1 returns the decoded Block1 option or nil.
func (m Message) Block1() *BlockMetadata {
	return m.block(OptBlock1)
}

// Block2 returns the decoded Block2 option or nil.
func (m Message) Block2() *BlockMetadata {
	return m.block(OptBlock2)
}

func (m Message) block(id OptionID) *BlockMetadata {
	if o, found := m.Option(id); found {
		bm, err := blockDecode(o.Value)
		if err != nil {
			logWarn(&m, err, "ignoring %s option", id.String())
			return nil
		}
		return bm
	}
	return nil
}

func (m *Message) WithBlock1(bm *BlockMetadata) *Message {
	if bm == nil {
		return m.RemoveOption(OptBlock1)
	}
	m.WithOption(OptBlock1, bm.Encode(), true)
	return m
}

func (m *Message) WithBlock2(bm *BlockMetadata) *Message {
	if bm == nil {
		return m.RemoveOption(OptBlock2)
	}
	m.WithOption(OptBlock2, bm.Encode(), true)
	return m
}

func (m *Message) WithSize1(sz int) *Message {
	m.WithOption(OptSize1, sz, true)
	return m
}

func (m *Message) WithSize2(sz int) *Message {
	m.WithOption(OptSize2, sz, true)
	return m
}

// Size2 returns the announced total size of a block-wise response, or -1.
func (m Message) Size2() int {
	if o, found := m.Option(OptSize2); found {
		return int(o.UintValue())
	}
	return -1
}

// Observe returns the Observe option value.
func (m Message) Observe() (uint32, bool) {
	if o, found := m.Option(OptObserve); found {
		return o.UintValue(), true
	}
	return 0, false
}

func (m *Message) WithObserve(seq uint32) *Message {
	m.WithOption(OptObserve, seq, true)
	return m
}

func (m Message) Accept() MediaType {
	if o, found := m.Option(OptAccept); found {
		return MediaType(o.UintValue())
	}
	return None
}

func (m *Message) WithAccept(mt MediaType) *Message {
	if mt == None {
		return m
	}
	m.WithOption(OptAccept, mt, true)
	return m
}

func (m Message) ContentFormat() MediaType {
	if o, found := m.Option(OptContentFormat); found {
		return MediaType(o.UintValue())
	}
	return None
}

func (m *Message) WithContentFormat(mt MediaType) *Message {
	if mt == None {
		return m
	}
	m.WithOption(OptContentFormat, mt, true)
	return m
}

// LocationPath gets the Location-Path set on this message if any.
func (m Message) LocationPath() []string {
	return m.optionStrings(OptLocationPath)
}

// LocationPathString gets the Location-Path as a / separated string.
func (m Message) LocationPathString() string {
	return strings.Join(m.LocationPath(), "/")
}

func (m Message) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s mid=%d token=%x", m.Type.String(), m.Code.NumberString(), m.MessageID, m.Token)
	for _, o := range m.opts {
		sb.WriteString(" [")
		sb.WriteString(o.String())
		sb.WriteString("]")
	}
	if len(m.Payload) != 0 {
		fmt.Fprintf(&sb, " payload=%d bytes", len(m.Payload))
	}
	return sb.String()
}

// makeEmpty builds an empty ACK or RST answering m.
func (m *Message) makeEmpty(t COAPType) *Message {
	return &Message{
		Type:      t,
		Code:      CodeEmpty,
		MessageID: m.MessageID,
	}
}
