// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"context"
	"testing"
	"time"

	"github.com/pion/transport/v3/test"
)

func newBridge(t *testing.T) *test.Bridge {
	br := test.NewBridge()
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				br.Tick()
			}
		}
	}()
	t.Cleanup(func() { close(stop) })
	return br
}

func TestConnTransportRoundTrip(t *testing.T) {
	br := newBridge(t)
	server := br.GetConn1()

	c, err := NewClient(NewConnTransport("bridge", br.GetConn0(), false), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	sniffed := make(chan string, 8)
	SetSniffPacketsCallback(func(transportType string, op string, from string, to string, data []byte) {
		sniffed <- transportType + "/" + op
	})
	defer SetSniffPacketsCallback(nil)

	r, err := c.Get(confirmableGet(t, "coap://device.local/status"))
	if err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 1500)
	_ = server.SetReadDeadline(time.Now().Add(testWait))
	n, err := server.Read(buf)
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	req, err := ParseMessage(buf[:n])
	if err != nil {
		t.Fatal(err)
	}
	if h, _ := req.Option(OptURIHost); h.StringValue() != "device.local" {
		t.Fatalf("Uri-Host = %q", h.StringValue())
	}
	data, err := piggybacked(req, RspCodeContent, "ok").MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := server.Write(data); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), testWait)
	defer cancel()
	msg, err := r.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if string(msg.Payload) != "ok" {
		t.Fatalf("payload %q", msg.Payload)
	}

	select {
	case op := <-sniffed:
		if op != "conn/write" && op != "conn/read" {
			t.Fatalf("sniffed %q", op)
		}
	case <-time.After(testWait):
		t.Fatal("sniffer not called")
	}
}
