// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"net"
	"strconv"
)

// handlePing answers an empty CON with RST (RFC 7252 section 4.3).
func (c *Client) handlePing(msg *Message) {
	logDebug(msg, nil, "ping from %s", msg.Meta.RemoteAddr)
	c.sendEmpty(msg.makeEmpty(TypeReset), msg.Meta.RemoteAddr, nil)
}

func (c *Client) sendEmptyAck(msg *Message, entry *dedupEntry) {
	c.sendEmpty(msg.makeEmpty(TypeAcknowledgement), msg.Meta.RemoteAddr, entry)
}

func (c *Client) sendReset(msg *Message, entry *dedupEntry) {
	c.sendEmpty(msg.makeEmpty(TypeReset), msg.Meta.RemoteAddr, entry)
}

// sendEmpty encodes rsp and sends it to remote. With entry set the frame is kept
// to answer duplicates.
func (c *Client) sendEmpty(rsp *Message, remote string, entry *dedupEntry) {
	data, err := rsp.MarshalBinary()
	if err != nil {
		logError(rsp, err, "unable to encode empty message")
		return
	}
	if entry != nil {
		entry.save(data)
	}
	c.sendTo(data, remote)
}

func (c *Client) sendTo(data []byte, remote string) {
	host, p, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}
	port, _ := strconv.Atoi(p)
	if err := c.transport.Send(data, host, port); err != nil {
		logWarn(nil, err, "unable to send to %s", remote)
	}
}
