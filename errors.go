// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"errors"
	"fmt"
)

var (
	ErrTimeout               = errors.New("coap: timeout")
	ErrAborted               = errors.New("coap: aborted")
	ErrReset                 = errors.New("coap: reset by peer")
	ErrClientClosed          = errors.New("coap: client closed")
	ErrInvalidTokenLen       = errors.New("coap: invalid token length")
	ErrOptionTooLong         = errors.New("coap: option is too long")
	ErrOptionGapTooLarge     = errors.New("coap: option gap too large")
	ErrShortPacket           = errors.New("coap: packet too short")
	ErrBadVersion            = errors.New("coap: unsupported version")
	ErrTokenInUse            = errors.New("coap: token already registered")
	ErrUnknownToken          = errors.New("coap: unknown token")
	ErrInvalidURL            = errors.New("coap: invalid url")
	ErrInvalidMethod         = errors.New("coap: invalid method")
	ErrInvalidScheme         = errors.New("coap: invalid scheme")
	ErrMulticastConfirmable  = errors.New("coap: multicast request must be non-confirmable")
	ErrInvalidValue          = errors.New("coap: invalid value")
	ErrNoPeer                = errors.New("coap: no dtls session for peer")
	ErrBadRequest            = errors.New("coap: bad request")
	ErrUnauthorized          = errors.New("coap: not authorized")
	ErrBadOption             = errors.New("coap: bad option")
	ErrForbidden             = errors.New("coap: forbidden")
	ErrNotFound              = errors.New("coap: not found")
	ErrMethodNotAllowed      = errors.New("coap: method not allowed")
	ErrEncodingNotAcceptable = errors.New("coap: not acceptable")
	ErrEntityIncomplete      = errors.New("coap: request entity incomplete")
	ErrPreconditionFailed    = errors.New("coap: precondition failed")
	ErrEntityTooLarge        = errors.New("coap: request entity too large")
	ErrUnsupportedMediaType  = errors.New("coap: unsupported media type")
	ErrInternalServerError   = errors.New("coap: internal server error")
	ErrNotImplemented        = errors.New("coap: not implemented")
	ErrBadGateway            = errors.New("coap: bad gateway")
	ErrServiceUnavailable    = errors.New("coap: service unavailable")
	ErrGatewayTimeout        = errors.New("coap: gateway timeout")
	ErrProxyingNotSupported  = errors.New("coap: proxying not supported")
	ErrOtherResponse         = errors.New("coap: error response")
)

var rspCodeErrors = map[COAPCode]error{
	RspCodeBadRequest:              ErrBadRequest,
	RspCodeUnauthorized:            ErrUnauthorized,
	RspCodeBadOption:               ErrBadOption,
	RspCodeForbidden:               ErrForbidden,
	RspCodeNotFound:                ErrNotFound,
	RspCodeMethodNotAllowed:        ErrMethodNotAllowed,
	RspCodeNotAcceptable:           ErrEncodingNotAcceptable,
	RspCodeRequestEntityIncomplete: ErrEntityIncomplete,
	RspCodePreconditionFailed:      ErrPreconditionFailed,
	RspCodeRequestEntityTooLarge:   ErrEntityTooLarge,
	RspCodeUnsupportedMediaType:    ErrUnsupportedMediaType,
	RspCodeInternalServerError:     ErrInternalServerError,
	RspCodeNotImplemented:          ErrNotImplemented,
	RspCodeBadGateway:              ErrBadGateway,
	RspCodeServiceUnavailable:      ErrServiceUnavailable,
	RspCodeGatewayTimeout:          ErrGatewayTimeout,
	RspCodeProxyingNotSupported:    ErrProxyingNotSupported,
}

// ResponseError is returned when the server answers with a 4.xx or 5.xx code.
type ResponseError struct {
	Code COAPCode
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("coap: response %s (%s)", e.Code.NumberString(), e.Code.String())
}

// Is matches the per-code sentinel, so errors.Is(err, ErrNotFound) works.
func (e *ResponseError) Is(target error) bool {
	if sentinel, found := rspCodeErrors[e.Code]; found {
		return sentinel == target
	}
	return target == ErrOtherResponse
}

// RspCodeToError returns a *ResponseError for error codes and nil otherwise.
func RspCodeToError(code COAPCode) error {
	if !code.IsError() {
		return nil
	}
	return &ResponseError{Code: code}
}

type TransportErrorKind int

const (
	TransportErrorUnknown TransportErrorKind = iota
	TransportErrorHostNotFound
	TransportErrorAddressInUse
)

func (k TransportErrorKind) String() string {
	switch k {
	case TransportErrorHostNotFound:
		return "host not found"
	case TransportErrorAddressInUse:
		return "address in use"
	default:
		return "transport failure"
	}
}

// TransportError wraps a failure reported by the datagram transport.
type TransportError struct {
	Kind TransportErrorKind
	Err  error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return "coap: " + e.Kind.String()
	}
	return "coap: " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError reports a malformed inbound frame.
type DecodeError struct {
	Offset int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("coap: decode failed at byte %d: %v", e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ValidationError is returned synchronously when a request or setting is rejected.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Err.Error() + " (" + e.Field + ")"
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func validationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}
