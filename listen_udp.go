// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"errors"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const udpReadBuffer = 8192

// UDPTransport sends and receives plain CoAP over a UDP socket, including
// multicast requests to the All CoAP Nodes groups.
type UDPTransport struct {
	name       string
	listenAddr string

	multicastTTL      int
	multicastLoopback bool

	mu       sync.Mutex
	socket   *net.UDPConn
	shutdown atomic.Bool
}

// NewUDPTransport prepares a transport bound to listenAddr (":0" when empty) on Start.
func NewUDPTransport(name string, listenAddr string) *UDPTransport {
	if listenAddr == "" {
		listenAddr = ":0"
	}
	return &UDPTransport{name: name, listenAddr: listenAddr, multicastTTL: 1}
}

func (l *UDPTransport) WithMulticastTTL(ttl int) *UDPTransport {
	l.multicastTTL = ttl
	return l
}

func (l *UDPTransport) WithMulticastLoopback(loop bool) *UDPTransport {
	l.multicastLoopback = loop
	return l
}

func (l *UDPTransport) Start(h TransportHandler) error {
	uaddr, err := net.ResolveUDPAddr("udp", l.listenAddr)
	if err != nil {
		return toTransportError(err)
	}
	socket, err := net.ListenUDP("udp", uaddr)
	if err != nil {
		return toTransportError(err)
	}

	// Only one of the families applies to a given socket.
	if err := ipv4.NewPacketConn(socket).SetMulticastTTL(l.multicastTTL); err != nil {
		logDebug(nil, err, "udp %s: ipv4 multicast ttl not set", l.name)
	}
	if err := ipv4.NewPacketConn(socket).SetMulticastLoopback(l.multicastLoopback); err != nil {
		logDebug(nil, err, "udp %s: ipv4 multicast loopback not set", l.name)
	}
	if err := ipv6.NewPacketConn(socket).SetMulticastHopLimit(l.multicastTTL); err != nil {
		logDebug(nil, err, "udp %s: ipv6 multicast hop limit not set", l.name)
	}
	if err := ipv6.NewPacketConn(socket).SetMulticastLoopback(l.multicastLoopback); err != nil {
		logDebug(nil, err, "udp %s: ipv6 multicast loopback not set", l.name)
	}

	l.mu.Lock()
	l.socket = socket
	l.mu.Unlock()

	go l.reader(socket, h)
	return nil
}

// LocalAddr returns the bound address once started.
func (l *UDPTransport) LocalAddr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.socket == nil {
		return nil
	}
	return l.socket.LocalAddr()
}

func (l *UDPTransport) reader(socket *net.UDPConn, h TransportHandler) {
	buf := make([]byte, udpReadBuffer)
	for {
		n, from, err := socket.ReadFromUDP(buf)
		if err != nil {
			if l.shutdown.Load() || errors.Is(err, net.ErrClosed) {
				logDebug(nil, nil, "udp %s: port is shutdown", l.name)
				return
			}
			logWarn(nil, err, "udp %s: error reading packet", l.name)
			h.HandleTransportError(toTransportError(err))
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		sniffActivity("udp", SniffRead, from.String(), socket.LocalAddr().String(), data)
		h.HandleDatagram(data, Metadata{
			ListenerName: l.name,
			RemoteAddr:   from.String(),
			ReceivedAt:   time.Now().UTC(),
		})
	}
}

func (l *UDPTransport) Send(data []byte, host string, port int) error {
	l.mu.Lock()
	socket := l.socket
	l.mu.Unlock()
	if socket == nil {
		return &TransportError{Kind: TransportErrorUnknown, Err: net.ErrClosed}
	}
	uaddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return toTransportError(err)
	}
	sniffActivity("udp", SniffWrite, socket.LocalAddr().String(), uaddr.String(), data)
	if _, err = socket.WriteToUDP(data, uaddr); err != nil {
		return toTransportError(err)
	}
	return nil
}

func (l *UDPTransport) IsSecure() bool {
	return false
}

func (l *UDPTransport) Close() error {
	l.shutdown.Store(true)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.socket == nil {
		return nil
	}
	err := l.socket.Close()
	l.socket = nil
	return err
}
