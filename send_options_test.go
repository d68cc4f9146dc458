// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"errors"
	"testing"
	"time"
)

func TestSendOptionsDerivedTimes(t *testing.T) {
	so := NewSendOptions()
	if got := so.maxTransmitWait(); got != 93*time.Second {
		t.Fatalf("max transmit wait = %s", got)
	}
	if got := so.initialTimeout(&scriptedRandom{}); got != 2500*time.Millisecond {
		t.Fatalf("initial timeout = %s", got)
	}
	so.WithRetry(0, time.Second, 1)
	if got := so.maxTransmitWait(); got != time.Second {
		t.Fatalf("max transmit wait without retries = %s", got)
	}
	if got := so.initialTimeout(&scriptedRandom{}); got != time.Second {
		t.Fatalf("initial timeout without jitter = %s", got)
	}
}

func TestSendOptionsValidate(t *testing.T) {
	tests := []struct {
		name string
		so   *SendOptions
		ok   bool
	}{
		{"defaults", NewSendOptions(), true},
		{"no retry", NewSendOptions().NoRetry(), true},
		{"cap", NewSendOptions().WithRetry(MaxRetransmitCap, time.Second, 1), true},
		{"over cap", NewSendOptions().WithRetry(MaxRetransmitCap+1, time.Second, 1), false},
		{"negative retries", NewSendOptions().WithRetry(-1, time.Second, 1), false},
		{"zero timeout", NewSendOptions().WithRetry(4, 0, 1.5), false},
		{"factor below one", NewSendOptions().WithRetry(4, time.Second, 0.9), false},
		{"block 16", NewSendOptions().WithBlockSize(16), true},
		{"block 1024", NewSendOptions().WithBlockSize(1024), true},
		{"block 48", NewSendOptions().WithBlockSize(48), false},
		{"block 2048", NewSendOptions().WithBlockSize(2048), false},
		{"nstart", NewSendOptions().WithNStart(1), true},
		{"negative nstart", NewSendOptions().WithNStart(-1), false},
		{"zero response delay", NewSendOptions().WithMaxServerResponseDelay(0), false},
	}
	for _, tt := range tests {
		err := tt.so.validate()
		if tt.ok && err != nil {
			t.Errorf("%s: %v", tt.name, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidValue) {
			t.Errorf("%s: validate = %v", tt.name, err)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	conf := (*Config)(nil).withDefaults()
	if conf.Clock == nil || conf.Random == nil || conf.Options == nil {
		t.Fatal("defaults not filled")
	}
	if conf.NotificationBuffer != 16 || conf.DeduplicateExpiration != ExchangeLifetime {
		t.Fatalf("defaults = %+v", conf)
	}

	so := NewSendOptions().WithBlockSize(64)
	conf = (&Config{Options: so, NotificationBuffer: 2}).withDefaults()
	so.WithBlockSize(128)
	if conf.Options.BlockSize() != 64 || conf.NotificationBuffer != 2 {
		t.Fatal("config options not copied")
	}
}
