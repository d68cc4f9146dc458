// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/qwerty-iot/dtls/v2"
)

// DTLSTransport carries coaps over an application configured dtls listener.
// Sessions (handshake, keys, PSK) are managed by the listener; Send only
// writes to peers that already have a session.
type DTLSTransport struct {
	name     string
	socket   *dtls.Listener
	shutdown atomic.Bool
}

func NewDTLSTransport(name string, listener *dtls.Listener) *DTLSTransport {
	return &DTLSTransport{name: name, socket: listener}
}

func (l *DTLSTransport) Start(h TransportHandler) error {
	go l.reader(h)
	return nil
}

func (l *DTLSTransport) reader(h TransportHandler) {
	for {
		data, peer := l.socket.Read()
		if l.shutdown.Load() {
			logDebug(nil, nil, "dtls %s: port is shutdown", l.name)
			return
		}
		if peer == nil {
			continue
		}
		sniffActivity("dtls", SniffRead, peer.RemoteAddr(), l.name, data)
		h.HandleDatagram(data, Metadata{
			ListenerName: l.name,
			RemoteAddr:   peer.RemoteAddr(),
			DtlsIdentity: peer.SessionIdentityString(),
			ReceivedAt:   time.Now().UTC(),
		})
	}
}

func (l *DTLSTransport) FindPeer(addr string) *dtls.Peer {
	if l == nil || l.socket == nil {
		return nil
	}
	peer, _ := l.socket.FindPeer(addr)
	return peer
}

func (l *DTLSTransport) Send(data []byte, host string, port int) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	peer := l.FindPeer(addr)
	if peer == nil {
		return &TransportError{Kind: TransportErrorHostNotFound, Err: ErrNoPeer}
	}
	sniffActivity("dtls", SniffWrite, l.name, addr, data)
	if err := peer.Write(data); err != nil {
		return toTransportError(err)
	}
	return nil
}

func (l *DTLSTransport) IsSecure() bool {
	return true
}

func (l *DTLSTransport) Close() error {
	l.shutdown.Store(true)
	return l.socket.Shutdown()
}
