// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import "testing"

func TestNstartLimiter(t *testing.T) {
	l := newNstartLimiter()
	a := &exchange{endpoint: "10.0.0.1:5683"}
	b := &exchange{endpoint: "10.0.0.1:5683"}
	c := &exchange{endpoint: "10.0.0.1:5683"}
	other := &exchange{endpoint: "10.0.0.2:5683"}

	if !l.acquire(a, 1) || !l.acquire(other, 1) {
		t.Fatal("first exchange per endpoint queued")
	}
	if l.acquire(b, 1) || l.acquire(c, 1) {
		t.Fatal("exchange over the limit not queued")
	}
	if !b.queued || l.waitingCount(a.endpoint) != 2 {
		t.Fatalf("waiting = %d", l.waitingCount(a.endpoint))
	}

	if next := l.release(a); next != b || !b.holding || b.queued {
		t.Fatalf("release handed the slot to %+v", next)
	}
	if next := l.release(c); next != nil || c.queued || l.waitingCount(a.endpoint) != 0 {
		t.Fatal("queued exchange not removed")
	}
	if next := l.release(b); next != nil {
		t.Fatal("slot handed to a removed exchange")
	}
	l.release(other)
	if l.entryCount() != 0 {
		t.Fatalf("%d endpoints left", l.entryCount())
	}
	if l.release(other) != nil {
		t.Fatal("double release")
	}
}

func TestNstartUnlimited(t *testing.T) {
	l := newNstartLimiter()
	for i := 0; i < 10; i++ {
		if !l.acquire(&exchange{endpoint: "x"}, 0) {
			t.Fatal("queued without a limit")
		}
	}
	if l.entryCount() != 0 {
		t.Fatal("unlimited acquire tracked the endpoint")
	}
}
