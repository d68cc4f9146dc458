// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"
)

// RandomSource supplies tokens, message IDs and retransmission jitter.
// *rand.Rand satisfies it. It is only used from the client's engine goroutine.
type RandomSource interface {
	Uint32() uint32
	Float64() float64
}

type Config struct {
	// Options are the default transmission parameters, nil for the RFC 7252 defaults.
	Options               *SendOptions
	DeduplicateExpiration time.Duration
	NotificationBuffer    int
	Clock                 clockwork.Clock
	Random                RandomSource
	Metrics               *Metrics
}

func defaultConfig() *Config {
	return &Config{
		Options:               NewSendOptions(),
		DeduplicateExpiration: ExchangeLifetime,
		NotificationBuffer:    16,
	}
}

func (conf *Config) withDefaults() *Config {
	rv := defaultConfig()
	if conf == nil {
		conf = &Config{}
	}
	if conf.Options != nil {
		so := *conf.Options
		rv.Options = &so
	}
	if conf.DeduplicateExpiration > 0 {
		rv.DeduplicateExpiration = conf.DeduplicateExpiration
	}
	if conf.NotificationBuffer > 0 {
		rv.NotificationBuffer = conf.NotificationBuffer
	}
	rv.Clock = conf.Clock
	if rv.Clock == nil {
		rv.Clock = clockwork.NewRealClock()
	}
	rv.Random = conf.Random
	if rv.Random == nil {
		rv.Random = newSeededRandom()
	}
	rv.Metrics = conf.Metrics
	return rv
}

// newSeededRandom returns a math/rand source seeded from crypto/rand.
func newSeededRandom() *rand.Rand {
	var seed [8]byte
	if _, err := crand.Read(seed[:]); err != nil {
		return rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return rand.New(rand.NewSource(int64(binary.BigEndian.Uint64(seed[:]))))
}
