// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// exchange is one request/response transaction. It is only touched from the
// client's engine goroutine.
type exchange struct {
	token     []byte
	messageID uint16

	// original is the request as submitted; request is the current round
	// (block options, payload slice).
	original *Request
	request  *Request
	frame    []byte
	host     string
	port     int

	replies   []*Message
	reply     *Reply
	discovery *DiscoveryReply
	opts      SendOptions

	retransmissions int
	timeout         time.Duration
	seq             uint64
	retransmitTimer clockwork.Timer
	watchdog        clockwork.Timer
	collectTimer    clockwork.Timer
	acked           bool

	observe   bool
	cancelled bool
	multicast bool

	upload    []byte
	blockSize int

	endpoint string
	holding  bool
	queued   bool
	started  time.Time
}

func (ex *exchange) stopTimers() {
	ex.seq++
	if ex.retransmitTimer != nil {
		ex.retransmitTimer.Stop()
		ex.retransmitTimer = nil
	}
	if ex.watchdog != nil {
		ex.watchdog.Stop()
		ex.watchdog = nil
	}
}

// exchangeTable maps tokens to live exchanges. Not safe for concurrent use.
type exchangeTable struct {
	rnd     RandomSource
	byToken map[string]*exchange
	byMID   map[uint16]*exchange
}

func newExchangeTable(rnd RandomSource) *exchangeTable {
	return &exchangeTable{
		rnd:     rnd,
		byToken: map[string]*exchange{},
		byMID:   map[uint16]*exchange{},
	}
}

func (t *exchangeTable) len() int {
	return len(t.byToken)
}

func (t *exchangeTable) tokenInUse(token []byte) bool {
	if len(token) == 0 {
		return true
	}
	_, found := t.byToken[string(token)]
	return found
}

func (t *exchangeTable) messageIDInUse(mid uint16) bool {
	if mid == 0 {
		return true
	}
	_, found := t.byMID[mid]
	return found
}

// generateToken returns a token of 1 to 8 random bytes not held by a live exchange.
func (t *exchangeTable) generateToken() []byte {
	for {
		n := int(t.rnd.Uint32()%maxTokenLen) + 1
		token := make([]byte, n)
		for i := 0; i < n; i += 4 {
			v := t.rnd.Uint32()
			for j := 0; j < 4 && i+j < n; j++ {
				token[i+j] = byte(v >> (8 * j))
			}
		}
		if !t.tokenInUse(token) {
			return token
		}
	}
}

// generateMessageID returns a non-zero message ID not held by a live exchange.
func (t *exchangeTable) generateMessageID() uint16 {
	for {
		mid := uint16(t.rnd.Uint32())
		if !t.messageIDInUse(mid) {
			return mid
		}
	}
}

func (t *exchangeTable) register(token []byte, ex *exchange) error {
	if t.tokenInUse(token) {
		return ErrTokenInUse
	}
	ex.token = token
	t.byToken[string(token)] = ex
	return nil
}

// setMessageID moves ex to a new message ID.
func (t *exchangeTable) setMessageID(ex *exchange, mid uint16) {
	if cur, found := t.byMID[ex.messageID]; found && cur == ex {
		delete(t.byMID, ex.messageID)
	}
	ex.messageID = mid
	if mid != 0 {
		t.byMID[mid] = ex
	}
}

func (t *exchangeTable) lookupByToken(token []byte) *exchange {
	if len(token) == 0 {
		return nil
	}
	return t.byToken[string(token)]
}

func (t *exchangeTable) lookupByMessageID(mid uint16) *exchange {
	return t.byMID[mid]
}

func (t *exchangeTable) lookupByReply(r *Reply) *exchange {
	for _, ex := range t.byToken {
		if ex.reply == r {
			return ex
		}
	}
	return nil
}

func (t *exchangeTable) appendReply(token []byte, msg *Message) error {
	ex := t.lookupByToken(token)
	if ex == nil {
		return ErrUnknownToken
	}
	ex.replies = append(ex.replies, msg)
	return nil
}

func (t *exchangeTable) forget(token []byte) {
	ex, found := t.byToken[string(token)]
	if !found {
		return
	}
	delete(t.byToken, string(token))
	if cur, found := t.byMID[ex.messageID]; found && cur == ex {
		delete(t.byMID, ex.messageID)
	}
}

func (t *exchangeTable) forgetReplies(token []byte) {
	if ex := t.lookupByToken(token); ex != nil {
		ex.replies = nil
	}
}

func (t *exchangeTable) all() []*exchange {
	rv := make([]*exchange, 0, len(t.byToken))
	for _, ex := range t.byToken {
		rv = append(rv, ex)
	}
	return rv
}
