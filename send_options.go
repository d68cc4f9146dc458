// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"math"
	"time"
)

// SendOptions holds the transmission parameters of an exchange.
type SendOptions struct {
	maxRetransmit          int
	ackTimeout             time.Duration
	randomFactor           float64
	blockSize              int
	nStart                 int
	maxServerResponseDelay time.Duration
}

func NewSendOptions() *SendOptions {
	return &SendOptions{
		maxRetransmit:          DefaultMaxRetransmit,
		ackTimeout:             DefaultAckTimeout,
		randomFactor:           DefaultAckRandomFactor,
		blockSize:              0,
		nStart:                 0,
		maxServerResponseDelay: DefaultMaxServerResponseDelay,
	}
}

func (so *SendOptions) WithRetry(count int, timeout time.Duration, randomFactor float64) *SendOptions {
	so.maxRetransmit = count
	so.ackTimeout = timeout
	so.randomFactor = randomFactor
	return so
}

func (so *SendOptions) WithBlockSize(bs int) *SendOptions {
	so.blockSize = bs
	return so
}

func (so *SendOptions) WithNStart(ns int) *SendOptions {
	so.nStart = ns
	return so
}

func (so *SendOptions) WithMaxServerResponseDelay(d time.Duration) *SendOptions {
	so.maxServerResponseDelay = d
	return so
}

func (so *SendOptions) NoRetry() *SendOptions {
	so.maxRetransmit = 0
	return so
}

func (so *SendOptions) MaxRetransmit() int                    { return so.maxRetransmit }
func (so *SendOptions) AckTimeout() time.Duration             { return so.ackTimeout }
func (so *SendOptions) AckRandomFactor() float64              { return so.randomFactor }
func (so *SendOptions) BlockSize() int                        { return so.blockSize }
func (so *SendOptions) NStart() int                           { return so.nStart }
func (so *SendOptions) MaxServerResponseDelay() time.Duration { return so.maxServerResponseDelay }

// validate applies the same rules as the client setters.
func (so *SendOptions) validate() error {
	if so.ackTimeout <= 0 {
		return validationError("ack timeout", ErrInvalidValue)
	}
	if so.randomFactor < 1 {
		return validationError("ack random factor", ErrInvalidValue)
	}
	if so.maxRetransmit < 0 || so.maxRetransmit > MaxRetransmitCap {
		return validationError("max retransmit", ErrInvalidValue)
	}
	if !validBlockSize(so.blockSize) {
		return validationError("block size", ErrInvalidValue)
	}
	if so.nStart < 0 {
		return validationError("nstart", ErrInvalidValue)
	}
	if so.maxServerResponseDelay <= 0 {
		return validationError("max server response delay", ErrInvalidValue)
	}
	return nil
}

func validBlockSize(bs int) bool {
	if bs == 0 {
		return true
	}
	return bs >= 16 && bs <= 1024 && bs&(bs-1) == 0
}

// maxTransmitWait is ACK_TIMEOUT * (2^(MAX_RETRANSMIT+1) - 1) * ACK_RANDOM_FACTOR.
func (so *SendOptions) maxTransmitWait() time.Duration {
	return time.Duration(float64(so.ackTimeout) * (math.Pow(2.0, float64(so.maxRetransmit+1)) - 1) * so.randomFactor)
}

// initialTimeout draws the first retransmission timeout from [ACK_TIMEOUT, ACK_TIMEOUT*ACK_RANDOM_FACTOR].
func (so *SendOptions) initialTimeout(rnd RandomSource) time.Duration {
	span := float64(so.ackTimeout)*so.randomFactor - float64(so.ackTimeout)
	return so.ackTimeout + time.Duration(span*rnd.Float64())
}
