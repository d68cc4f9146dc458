// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

// deliverNotification publishes a reassembled response and rearms the exchange
// for the next one. It returns false when the server did not accept the
// registration, leaving the caller to finish the exchange.
func (c *Client) deliverNotification(ex *exchange, merged *Message) bool {
	seq, ok := notificationSequence(ex.replies)
	if !ok {
		return false
	}
	if _, has := merged.Observe(); !has {
		merged.WithObserve(seq)
	}
	c.metrics.notification()
	logDebug(merged, nil, "notification %d from %s", seq, ex.endpoint)

	ex.reply.notify(merged)
	c.exchanges.forgetReplies(ex.token)
	ex.request = ex.original.Clone()
	ex.request.Token = ex.token
	c.releaseSlot(ex)
	return true
}

// rejectCancelled answers the next message of a cancelled observation with RST
// and forgets it. A piggybacked ACK cannot be reset, so the exchange stays
// registered for the following notification.
func (c *Client) rejectCancelled(ex *exchange, msg *Message, entry *dedupEntry) {
	c.exchanges.forgetReplies(ex.token)
	if msg.Type == TypeAcknowledgement {
		if _, ok := msg.Observe(); ok {
			return
		}
		c.endExchange(ex, resultSuccess)
		return
	}
	logDebug(msg, nil, "resetting cancelled observation")
	c.sendReset(msg, entry)
	c.endExchange(ex, resultSuccess)
}

// notificationSequence returns the Observe value of a notification. Only the
// first block of a block-wise notification carries the option.
func notificationSequence(fragments []*Message) (uint32, bool) {
	for _, f := range fragments {
		if seq, ok := f.Observe(); ok {
			return seq, true
		}
	}
	return 0, false
}
