// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

// handleEmptyAck handles the empty ACK announcing a separate response: the
// retransmission stops, the MAX_TRANSMIT_WAIT watchdog keeps running.
func (c *Client) handleEmptyAck(msg *Message) {
	ex := c.exchanges.lookupByMessageID(msg.MessageID)
	if ex == nil {
		c.metrics.dropped(dropUnmatched)
		logDebug(msg, nil, "no exchange for mid %d", msg.MessageID)
		return
	}
	if !c.senderMatches(ex, msg.Meta.RemoteAddr) {
		c.metrics.dropped(dropHost)
		return
	}
	if ex.acked {
		c.metrics.dropped(dropDuplicate)
		return
	}

	ex.acked = true
	if ex.retransmitTimer != nil {
		ex.retransmitTimer.Stop()
		ex.retransmitTimer = nil
	}
	ex.replies = append(ex.replies, msg)
	logDebug(msg, nil, "acknowledged, waiting for separate response")
}

// handleReset handles an RST matching one of our message IDs.
func (c *Client) handleReset(msg *Message) {
	ex := c.exchanges.lookupByMessageID(msg.MessageID)
	if ex == nil {
		c.metrics.dropped(dropUnmatched)
		return
	}
	if !c.senderMatches(ex, msg.Meta.RemoteAddr) {
		c.metrics.dropped(dropHost)
		return
	}
	if ex.cancelled {
		logDebug(msg, nil, "cancelled observation reset by peer")
		c.endExchange(ex, resultSuccess)
		return
	}
	logWarn(msg, ErrReset, "%s reset the exchange", ex.endpoint)
	c.failExchange(ex, ErrReset)
}
