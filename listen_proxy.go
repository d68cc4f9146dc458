// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"errors"
	"net"
	"strconv"
	"sync"
	"time"
)

// ProxySendFunc receives every outbound datagram of a ProxyTransport.
type ProxySendFunc func(data []byte, host string, port int) error

// ProxyTransport hands datagrams to a callback and accepts inbound ones through
// Inject, for applications that own the socket themselves.
type ProxyTransport struct {
	name   string
	secure bool
	send   ProxySendFunc

	mu      sync.Mutex
	handler TransportHandler
}

var errProxyNotStarted = errors.New("coap: proxy transport not started")

func NewProxyTransport(name string, secure bool, send ProxySendFunc) *ProxyTransport {
	return &ProxyTransport{name: name, secure: secure, send: send}
}

func (l *ProxyTransport) Start(h TransportHandler) error {
	l.mu.Lock()
	l.handler = h
	l.mu.Unlock()
	return nil
}

// Inject delivers a datagram received from the "host:port" address from.
func (l *ProxyTransport) Inject(data []byte, from string) error {
	l.mu.Lock()
	h := l.handler
	l.mu.Unlock()
	if h == nil {
		return errProxyNotStarted
	}
	sniffActivity("proxy", SniffRead, from, l.name, data)
	h.HandleDatagram(data, Metadata{
		ListenerName: l.name,
		RemoteAddr:   from,
		ReceivedAt:   time.Now().UTC(),
	})
	return nil
}

// InjectError reports an asynchronous transport failure.
func (l *ProxyTransport) InjectError(err error) {
	l.mu.Lock()
	h := l.handler
	l.mu.Unlock()
	if h != nil {
		h.HandleTransportError(toTransportError(err))
	}
}

func (l *ProxyTransport) Send(data []byte, host string, port int) error {
	if l.send == nil {
		return &TransportError{Kind: TransportErrorUnknown, Err: errors.New("coap: no proxy send callback registered")}
	}
	sniffActivity("proxy", SniffWrite, l.name, net.JoinHostPort(host, strconv.Itoa(port)), data)
	if err := l.send(data, host, port); err != nil {
		return toTransportError(err)
	}
	return nil
}

func (l *ProxyTransport) IsSecure() bool {
	return l.secure
}

func (l *ProxyTransport) Close() error {
	l.mu.Lock()
	l.handler = nil
	l.mu.Unlock()
	return nil
}
