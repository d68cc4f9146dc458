// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import "sync/atomic"

const (
	SniffWrite = "write"
	SniffRead  = "read"
)

type SniffPacketsCallback func(transportType string, op string, from string, to string, data []byte)

var sniffActivityCallback atomic.Value

// SetSniffPacketsCallback installs a hook seeing every datagram of every transport.
// For dtls the hook sees the decrypted CoAP payloads. nil removes the hook.
func SetSniffPacketsCallback(callback SniffPacketsCallback) {
	sniffActivityCallback.Store(callback)
}

func sniffActivity(transportType string, op string, from string, to string, data []byte) {
	cb, _ := sniffActivityCallback.Load().(SniffPacketsCallback)
	if cb != nil {
		go cb(transportType, op, from, to, data)
	}
}
