// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"reflect"
	"testing"
)

func optionIDs(m *Message) []OptionID {
	var rv []OptionID
	for _, o := range m.AllOptions() {
		rv = append(rv, o.ID)
	}
	return rv
}

func TestOptionsStayOrdered(t *testing.T) {
	m := &Message{}
	m.AddOption(NewOption(OptSize1, 10))
	m.AddOption(NewOption(OptURIPath, "b"))
	m.AddOption(NewOption(OptURIHost, "example"))
	m.AddOption(NewOption(OptURIPath, "c"))
	m.AddOption(NewOption(OptObserve, 0))
	m.WithContentFormat(AppCBOR)

	want := []OptionID{OptURIHost, OptObserve, OptURIPath, OptURIPath, OptContentFormat, OptSize1}
	if got := optionIDs(m); !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	if got := m.PathString(); got != "/b/c" {
		t.Fatalf("repeated options lost insertion order: %q", got)
	}
}

func TestMutatedCopyLeavesOriginal(t *testing.T) {
	orig := &Message{Type: TypeConfirmable, Code: CodeGet}
	orig.WithPathString("/a/b")
	orig.WithObserve(0)

	cp := *orig
	cp.RemoveOption(OptObserve)
	cp.AddOption(NewOption(OptURIQuery, "x=1"))
	cp.WithPathString("/c")

	if !orig.HasOption(OptObserve) || orig.HasOption(OptURIQuery) || orig.PathString() != "/a/b" {
		t.Fatalf("original changed: %s", orig)
	}
	if cp.HasOption(OptObserve) || cp.QueryString() != "x=1" || cp.PathString() != "/c" {
		t.Fatalf("copy wrong: %s", cp.String())
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := &Message{Token: []byte{1, 2}, Payload: []byte("abc")}
	orig.AddOption(NewOption(OptETag, []byte{9, 9}))

	c := orig.Clone()
	c.Token[0] = 7
	c.Payload[0] = 'z'
	c.opts[0].Value[0] = 0

	if orig.Token[0] != 1 || orig.Payload[0] != 'a' || orig.opts[0].Value[0] != 9 {
		t.Fatalf("clone shares memory: %s", orig)
	}
}

func TestQueryHelpers(t *testing.T) {
	m := &Message{}
	m.WithQuery(map[string]string{"ep": "node1"})
	m.WithOption(OptURIQuery, "flag", false)

	q := m.ParseQuery()
	if q["ep"] != "node1" {
		t.Fatalf("query = %v", q)
	}
	if v, ok := q["flag"]; !ok || v != "" {
		t.Fatalf("query = %v", q)
	}
}

func TestObserveAndBlockAccessors(t *testing.T) {
	m := &Message{}
	if _, ok := m.Observe(); ok {
		t.Fatal("observe reported on a bare message")
	}
	m.WithObserve(0)
	if seq, ok := m.Observe(); !ok || seq != 0 {
		t.Fatalf("observe = %d, %v", seq, ok)
	}
	m.WithObserve(300)
	if seq, _ := m.Observe(); seq != 300 || len(m.Options(OptObserve)) != 1 {
		t.Fatalf("observe = %d with %d options", seq, len(m.Options(OptObserve)))
	}

	m.WithBlock2(blockInit(5, true, 64))
	if b := m.Block2(); b == nil || b.Num != 5 || !b.More || b.Size != 64 {
		t.Fatalf("block2 = %+v", b)
	}
	m.WithBlock2(nil)
	if m.Block2() != nil {
		t.Fatal("block2 not removed")
	}
	if m.Size2() != -1 {
		t.Fatalf("size2 = %d", m.Size2())
	}
	m.WithSize2(4096)
	if m.Size2() != 4096 {
		t.Fatalf("size2 = %d", m.Size2())
	}
}

func TestMakeEmpty(t *testing.T) {
	m := &Message{Type: TypeConfirmable, Code: RspCodeContent, MessageID: 12, Token: []byte{1}, Payload: []byte("x")}
	e := m.makeEmpty(TypeAcknowledgement)
	if !e.isEmptyAck() || e.MessageID != 12 || len(e.Token) != 0 || len(e.Payload) != 0 {
		t.Fatalf("empty = %s", e)
	}
}
