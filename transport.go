// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"errors"
	"net"
	"syscall"
)

// Transport moves datagrams for a Client. The client never opens sockets itself.
type Transport interface {
	// Start begins delivering inbound datagrams to h.
	Start(h TransportHandler) error
	Send(data []byte, host string, port int) error
	// IsSecure selects the coaps scheme and port 5684.
	IsSecure() bool
	Close() error
}

// TransportHandler receives transport events. Implementations must not block.
type TransportHandler interface {
	HandleDatagram(data []byte, meta Metadata)
	HandleTransportError(err error)
}

// toTransportError classifies a socket level error.
func toTransportError(err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	var dnsErr *net.DNSError
	var addrErr *net.AddrError
	switch {
	case errors.As(err, &dnsErr), errors.As(err, &addrErr):
		return &TransportError{Kind: TransportErrorHostNotFound, Err: err}
	case errors.Is(err, syscall.EADDRINUSE):
		return &TransportError{Kind: TransportErrorAddressInUse, Err: err}
	default:
		return &TransportError{Kind: TransportErrorUnknown, Err: err}
	}
}
