// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

const (
	resultSuccess = "success"
	resultError   = "error"
	resultTimeout = "timeout"
	resultAborted = "aborted"
)

// startExchange registers ex and transmits its first round unless NSTART queues it.
func (c *Client) startExchange(ex *exchange) {
	if ex.reply.IsFinished() {
		return
	}

	token := ex.original.Token
	if len(token) == 0 {
		token = c.exchanges.generateToken()
	}
	if err := c.exchanges.register(token, ex); err != nil {
		logWarn(&ex.original.Message, err, "token %x collides with a live exchange", token)
		ex.reply.abort(validationError("token", err))
		return
	}
	ex.original.Token = token
	ex.request = ex.original.Clone()
	ex.started = c.clock.Now()

	c.metrics.request(ex.original.Method, ex.original.Type)
	c.metrics.setLive(c.exchanges.len())
	ex.reply.setRunning()

	if ex.multicast && ex.discovery != nil {
		ex.collectTimer = c.clock.AfterFunc(ex.opts.maxServerResponseDelay, func() {
			c.post(func() { c.onCollectDeadline(ex) })
		})
	}

	if !c.nstart.acquire(ex, ex.opts.nStart) {
		logDebug(&ex.original.Message, nil, "exchange queued, %d waiting for %s", c.nstart.waitingCount(ex.endpoint), ex.endpoint)
		return
	}
	c.firstRound(ex)
}

// firstRound prepares the opening block of the exchange and sends it.
func (c *Client) firstRound(ex *exchange) {
	req := ex.request
	if ex.upload != nil {
		block, more := blockSlice(ex.upload, 0, ex.blockSize)
		req.Payload = block
		req.WithBlock1(blockInit(0, more, ex.blockSize))
		req.WithSize1(len(ex.upload))
	} else if ex.opts.blockSize > 0 && req.Method == CodeGet {
		req.WithBlock2(blockInit(0, false, ex.opts.blockSize))
	}
	c.sendRound(ex)
}

// sendRound transmits ex.request with a fresh message ID and a fresh timer draw.
func (c *Client) sendRound(ex *exchange) {
	c.exchanges.setMessageID(ex, c.exchanges.generateMessageID())
	ex.request.MessageID = ex.messageID
	ex.request.Token = ex.token
	ex.retransmissions = 0
	ex.acked = false

	data, err := ex.request.frame().MarshalBinary()
	if err != nil {
		logError(&ex.request.Message, err, "unable to encode request")
		c.failExchange(ex, err)
		return
	}
	ex.frame = data

	c.armTimers(ex)
	c.transmit(ex)
}

func (c *Client) armTimers(ex *exchange) {
	ex.stopTimers()
	seq := ex.seq

	if ex.request.IsConfirmable() && ex.opts.maxRetransmit > 0 {
		ex.timeout = ex.opts.initialTimeout(c.rnd)
		ex.retransmitTimer = c.clock.AfterFunc(ex.timeout, func() {
			c.post(func() { c.onRetransmitTimeout(ex, seq) })
		})
	}
	if !(ex.multicast && ex.discovery != nil) {
		ex.watchdog = c.clock.AfterFunc(ex.opts.maxTransmitWait(), func() {
			c.post(func() { c.onWatchdog(ex, seq) })
		})
	}
}

func (c *Client) transmit(ex *exchange) {
	logDebug(&ex.request.Message, nil, "sending to %s", ex.endpoint)
	if err := c.transport.Send(ex.frame, ex.host, ex.port); err != nil {
		logWarn(&ex.request.Message, err, "unable to send to %s", ex.endpoint)
		c.failExchange(ex, toTransportError(err))
	}
}

func (c *Client) isLive(ex *exchange) bool {
	return c.exchanges.lookupByToken(ex.token) == ex
}

func (c *Client) onRetransmitTimeout(ex *exchange, seq uint64) {
	if ex.seq != seq || !c.isLive(ex) || ex.acked {
		return
	}
	if ex.retransmissions >= ex.opts.maxRetransmit {
		c.timeoutExchange(ex)
		return
	}
	ex.retransmissions++
	ex.timeout *= 2
	c.metrics.retransmission()
	logDebug(&ex.request.Message, nil, "retransmission %d of %d", ex.retransmissions, ex.opts.maxRetransmit)

	ex.retransmitTimer = c.clock.AfterFunc(ex.timeout, func() {
		c.post(func() { c.onRetransmitTimeout(ex, seq) })
	})
	c.transmit(ex)
}

func (c *Client) onWatchdog(ex *exchange, seq uint64) {
	if ex.seq != seq || !c.isLive(ex) {
		return
	}
	logDebug(&ex.request.Message, nil, "max transmit wait reached")
	c.timeoutExchange(ex)
}

// onCollectDeadline ends a multicast discovery successfully.
func (c *Client) onCollectDeadline(ex *exchange) {
	if !c.isLive(ex) {
		return
	}
	logDebug(&ex.request.Message, nil, "multicast collection closed, %d resources", len(ex.discovery.Resources()))
	c.endExchange(ex, resultSuccess)
	ex.reply.finish(nil, nil)
}

func (c *Client) timeoutExchange(ex *exchange) {
	c.metrics.timeout()
	logWarn(&ex.request.Message, ErrTimeout, "exchange with %s timed out", ex.endpoint)
	c.endExchange(ex, resultTimeout)
	ex.reply.abort(ErrTimeout)
}

func (c *Client) failExchange(ex *exchange, err error) {
	c.endExchange(ex, resultAborted)
	ex.reply.abort(err)
}

// finalizeExchange delivers the merged reply. An error response code finishes the
// reply with a *ResponseError.
func (c *Client) finalizeExchange(ex *exchange, msg *Message) {
	err := RspCodeToError(msg.Code)
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	c.endExchange(ex, result)
	ex.reply.finish(msg, err)
}

// endExchange removes ex from every engine structure.
func (c *Client) endExchange(ex *exchange, result string) {
	ex.stopTimers()
	if ex.collectTimer != nil {
		ex.collectTimer.Stop()
		ex.collectTimer = nil
	}
	if c.isLive(ex) {
		c.exchanges.forget(ex.token)
		c.metrics.finished(result, c.clock.Since(ex.started))
	}
	c.metrics.setLive(c.exchanges.len())
	c.releaseSlot(ex)
}

// releaseSlot frees the NSTART slot of ex and starts the next queued exchange.
func (c *Client) releaseSlot(ex *exchange) {
	next := c.nstart.release(ex)
	if next == nil {
		return
	}
	if !c.isLive(next) {
		c.releaseSlot(next)
		return
	}
	logDebug(&next.request.Message, nil, "exchange dequeued for %s", next.endpoint)
	c.firstRound(next)
}

// abortExchange handles Reply.Abort on the engine.
func (c *Client) abortExchange(r *Reply) {
	if ex := c.exchanges.lookupByReply(r); ex != nil {
		c.endExchange(ex, resultAborted)
	}
	r.abort(ErrAborted)
}
