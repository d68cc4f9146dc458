// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"net"
)

const (
	dropDecode    = "decode"
	dropDuplicate = "duplicate"
	dropUnmatched = "unmatched"
	dropHost      = "host"
	dropStale     = "stale"
)

// handleDatagram processes one inbound frame on the engine goroutine.
func (c *Client) handleDatagram(data []byte, meta Metadata) {
	msg := &Message{Meta: meta}
	if err := msg.UnmarshalBinary(data); err != nil {
		c.metrics.dropped(dropDecode)
		logWarn(nil, err, "dropping undecodable frame from %s", meta.RemoteAddr)
		return
	}
	logDebug(msg, nil, "received from %s", meta.RemoteAddr)

	switch msg.Type {
	case TypeConfirmable, TypeNonConfirmable:
		if msg.IsEmpty() {
			if msg.IsConfirmable() {
				c.handlePing(msg)
			}
			return
		}
		entry, fresh := c.dedup.deduplicate(meta.RemoteAddr, msg.MessageID, c.clock.Now())
		if !fresh {
			c.metrics.dropped(dropDuplicate)
			logDebug(msg, nil, "duplicate from %s", meta.RemoteAddr)
			if entry.ack != nil {
				c.sendTo(entry.ack, meta.RemoteAddr)
			}
			return
		}
		c.handleResponse(msg, entry)
	case TypeAcknowledgement:
		if msg.IsEmpty() {
			c.handleEmptyAck(msg)
			return
		}
		c.handleResponse(msg, nil)
	case TypeReset:
		c.handleReset(msg)
	}
}

// handleResponse runs a response or notification through its exchange.
// entry is the deduplication record of a CON or NON frame, nil for a piggybacked ACK.
func (c *Client) handleResponse(msg *Message, entry *dedupEntry) {
	ex := c.exchanges.lookupByToken(msg.Token)
	if ex == nil && msg.Type == TypeAcknowledgement {
		ex = c.exchanges.lookupByMessageID(msg.MessageID)
	}
	if ex == nil {
		c.metrics.dropped(dropUnmatched)
		logDebug(msg, nil, "no exchange for token %x", msg.Token)
		return
	}
	if !c.senderMatches(ex, msg.Meta.RemoteAddr) {
		c.metrics.dropped(dropHost)
		logWarn(msg, nil, "reply from %s does not match target %s", msg.Meta.RemoteAddr, ex.host)
		return
	}
	if msg.Type == TypeAcknowledgement && msg.MessageID != ex.messageID {
		c.metrics.dropped(dropStale)
		logDebug(msg, nil, "stale acknowledgement, expecting mid %d", ex.messageID)
		return
	}

	ex.stopTimers()
	if err := c.exchanges.appendReply(ex.token, msg); err != nil {
		logError(msg, err, "unable to record reply")
		return
	}
	c.metrics.response(msg.Code)

	if msg.Code.IsError() {
		if msg.IsConfirmable() {
			c.sendEmptyAck(msg, entry)
		}
		logInfo(msg, nil, "%s answered %s", ex.endpoint, msg.Code.String())
		c.finalizeExchange(ex, msg)
		return
	}
	if ex.cancelled {
		c.rejectCancelled(ex, msg, entry)
		return
	}
	if msg.IsConfirmable() {
		c.sendEmptyAck(msg, entry)
	}

	if !ex.multicast {
		if c.continueUpload(ex, msg) || c.continueDownload(ex, msg) {
			return
		}
	}

	merged := mergeReplies(ex.replies)
	if merged == nil {
		return
	}
	switch {
	case ex.multicast && ex.discovery != nil:
		ex.discovery.addResources(merged)
		c.exchanges.forgetReplies(ex.token)
	case ex.observe && c.deliverNotification(ex, merged):
	default:
		if ex.discovery != nil {
			ex.discovery.addResources(merged)
		}
		c.finalizeExchange(ex, merged)
	}
}

// continueUpload sends the next Block1 block when the server asks for it.
func (c *Client) continueUpload(ex *exchange, msg *Message) bool {
	b1 := msg.Block1()
	cur := ex.request.Block1()
	if ex.upload == nil || b1 == nil || !b1.More || cur == nil {
		return false
	}

	num, size := cur.Num+1, cur.Size
	if b1.Size < cur.Size {
		num = (cur.Size / b1.Size) * (cur.Num + 1)
		size = b1.Size
	}
	block, more := blockSlice(ex.upload, num, size)
	if block == nil {
		return false
	}
	logDebug(msg, nil, "sending block1 %d (%d bytes)", num, size)

	next := ex.original.Clone()
	next.Payload = block
	next.RemoveOption(OptSize1)
	next.WithBlock1(blockInit(num, more, size))
	ex.request = next
	ex.blockSize = size
	c.exchanges.forgetReplies(ex.token)
	c.sendRound(ex)
	return true
}

// continueDownload requests the next Block2 block while the server reports more.
func (c *Client) continueDownload(ex *exchange, msg *Message) bool {
	b2 := msg.Block2()
	if b2 == nil || !b2.More {
		return false
	}
	logDebug(msg, nil, "requesting block2 %d (%d bytes)", b2.Num+1, b2.Size)

	next := ex.original.Clone()
	next.Payload = nil
	next.RemoveOption(OptBlock1).RemoveOption(OptSize1).RemoveOption(OptObserve)
	next.WithBlock2(blockInit(b2.Num+1, false, b2.Size))
	ex.request = next
	c.sendRound(ex)
	return true
}

// senderMatches rejects replies from a host other than the unicast target.
// Targets given by name cannot be checked.
func (c *Client) senderMatches(ex *exchange, remote string) bool {
	if ex.multicast {
		return true
	}
	target := net.ParseIP(ex.host)
	if target == nil {
		return true
	}
	return target.Equal(net.ParseIP(senderHost(remote)))
}
