// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"errors"
	"io"
	"net"
	"sync/atomic"
	"time"
)

// ConnTransport talks to a single endpoint over a connected datagram net.Conn.
// Send ignores host and port; the connection decides the destination.
type ConnTransport struct {
	name     string
	conn     net.Conn
	secure   bool
	shutdown atomic.Bool
}

func NewConnTransport(name string, conn net.Conn, secure bool) *ConnTransport {
	return &ConnTransport{name: name, conn: conn, secure: secure}
}

func (l *ConnTransport) Start(h TransportHandler) error {
	go l.reader(h)
	return nil
}

func (l *ConnTransport) reader(h TransportHandler) {
	buf := make([]byte, udpReadBuffer)
	remote := l.remoteAddr()
	for {
		n, err := l.conn.Read(buf)
		if err != nil {
			if l.shutdown.Load() || errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
				logDebug(nil, nil, "conn %s: port is shutdown", l.name)
				return
			}
			logWarn(nil, err, "conn %s: error reading packet", l.name)
			h.HandleTransportError(toTransportError(err))
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		sniffActivity("conn", SniffRead, remote, l.name, data)
		h.HandleDatagram(data, Metadata{
			ListenerName: l.name,
			RemoteAddr:   remote,
			ReceivedAt:   time.Now().UTC(),
		})
	}
}

func (l *ConnTransport) remoteAddr() string {
	if ra := l.conn.RemoteAddr(); ra != nil {
		return ra.String()
	}
	return ""
}

func (l *ConnTransport) Send(data []byte, host string, port int) error {
	sniffActivity("conn", SniffWrite, l.name, l.remoteAddr(), data)
	if _, err := l.conn.Write(data); err != nil {
		return toTransportError(err)
	}
	return nil
}

func (l *ConnTransport) IsSecure() bool {
	return l.secure
}

func (l *ConnTransport) Close() error {
	l.shutdown.Store(true)
	return l.conn.Close()
}
