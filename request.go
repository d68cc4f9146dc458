// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"net"
	"net/url"
	"strconv"
	"strings"
)

const maxProxyURILen = 1034

// Request is a Message addressed to a URL.
type Request struct {
	Message

	URL      *url.URL
	ProxyURL *url.URL
	Method   COAPCode

	rawURL   string
	rawProxy string
}

// NewRequest builds a NonConfirmable request for rawURL, normalized for a plain
// transport. The client normalizes again for its own transport when sending.
func NewRequest(method COAPCode, rawURL string) (*Request, error) {
	r := &Request{Method: method}
	r.Type = TypeNonConfirmable
	if err := r.SetURL(rawURL); err != nil {
		return nil, err
	}
	return r, nil
}

// SetURL assigns and normalizes the target URL.
func (r *Request) SetURL(rawURL string) error {
	u, err := AdjustedURL(rawURL, false)
	if err != nil {
		return err
	}
	r.URL = u
	r.rawURL = rawURL
	return nil
}

// SetProxyURL routes the request through a forward proxy.
func (r *Request) SetProxyURL(rawURL string) error {
	if rawURL == "" {
		r.ProxyURL = nil
		r.rawProxy = ""
		return nil
	}
	u, err := AdjustedURL(rawURL, false)
	if err != nil {
		return err
	}
	r.ProxyURL = u
	r.rawProxy = rawURL
	return nil
}

func (r *Request) WithType(t COAPType) *Request {
	r.Type = t
	return r
}

func (r *Request) WithPayload(payload []byte) *Request {
	r.Payload = payload
	return r
}

// EnableObserve sets Observe to 0 (register).
func (r *Request) EnableObserve() *Request {
	r.WithObserve(0)
	return r
}

// IsObserve reports whether the request carries an Observe option.
func (r *Request) IsObserve() bool {
	return r.HasOption(OptObserve)
}

// Clone returns a deep copy.
func (r *Request) Clone() *Request {
	c := *r
	c.Message = *r.Message.Clone()
	if r.URL != nil {
		u := *r.URL
		c.URL = &u
	}
	if r.ProxyURL != nil {
		u := *r.ProxyURL
		c.ProxyURL = &u
	}
	return &c
}

// adjust renormalizes the URLs for the transport security.
func (r *Request) adjust(secure bool) error {
	if r.rawURL != "" {
		u, err := AdjustedURL(r.rawURL, secure)
		if err != nil {
			return err
		}
		r.URL = u
	}
	if r.rawProxy != "" {
		u, err := AdjustedURL(r.rawProxy, secure)
		if err != nil {
			return err
		}
		r.ProxyURL = u
	}
	return nil
}

// validate checks everything that must hold before a frame is built.
func (r *Request) validate(secure bool) error {
	if !r.Method.IsMethod() {
		return validationError("method", ErrInvalidMethod)
	}
	if !IsURLValid(r.URL) {
		return validationError("url", ErrInvalidURL)
	}
	scheme := SchemeCoap
	if secure {
		scheme = SchemeCoaps
	}
	if r.URL.Scheme != scheme {
		return validationError("url", ErrInvalidScheme)
	}
	if r.ProxyURL != nil && !IsURLValid(r.ProxyURL) {
		return validationError("proxy url", ErrInvalidURL)
	}
	if len(r.Token) > maxTokenLen {
		return validationError("token", ErrInvalidTokenLen)
	}
	if r.Type == TypeConfirmable && isMulticastHost(r.URL.Hostname()) {
		return validationError("type", ErrMulticastConfirmable)
	}
	return nil
}

// endpoint is the host and port the datagrams are sent to.
func (r *Request) endpoint() (string, int) {
	u := r.URL
	if r.ProxyURL != nil {
		u = r.ProxyURL
	}
	port, _ := strconv.Atoi(u.Port())
	return u.Hostname(), port
}

// frame returns the message to put on the wire: the request options with the
// URL expanded into Uri-* or Proxy-* options.
func (r *Request) frame() *Message {
	m := r.Message
	m.Code = r.Method
	for _, id := range []OptionID{OptURIHost, OptURIPort, OptURIPath, OptURIQuery, OptProxyURI, OptProxyScheme} {
		m.opts = m.opts.Minus(id)
	}
	if r.ProxyURL != nil {
		target := r.URL.String()
		if len(target) <= maxProxyURILen {
			m.AddOption(NewOption(OptProxyURI, target))
			return &m
		}
		m.AddOption(NewOption(OptProxyScheme, r.URL.Scheme))
		m.AddOption(NewOption(OptURIHost, r.URL.Hostname()))
	} else if host := r.URL.Hostname(); net.ParseIP(host) == nil {
		m.AddOption(NewOption(OptURIHost, host))
	}
	if port, err := strconv.Atoi(r.URL.Port()); err == nil && port != defaultPort(r.URL.Scheme) {
		m.AddOption(NewOption(OptURIPort, port))
	}
	for _, seg := range strings.Split(r.URL.Path, "/") {
		if seg != "" {
			m.AddOption(NewOption(OptURIPath, seg))
		}
	}
	if r.URL.RawQuery != "" {
		for _, q := range strings.Split(r.URL.RawQuery, "&") {
			if uq, err := url.QueryUnescape(q); err == nil {
				q = uq
			}
			m.AddOption(NewOption(OptURIQuery, q))
		}
	}
	return &m
}

func defaultPort(scheme string) int {
	if scheme == SchemeCoaps {
		return DefaultSecurePort
	}
	return DefaultPort
}

// AdjustedURL normalizes rawURL: a missing scheme becomes coap (coaps when
// secure), a missing port becomes the scheme default, and dot segments are
// removed from the percent-decoded path.
func AdjustedURL(rawURL string, secure bool) (*url.URL, error) {
	if rawURL == "" {
		return nil, validationError("url", ErrInvalidURL)
	}
	if strings.Contains(rawURL, "#") {
		return nil, validationError("url", ErrInvalidURL)
	}
	if !strings.Contains(rawURL, "://") {
		if secure {
			rawURL = SchemeCoaps + "://" + rawURL
		} else {
			rawURL = SchemeCoap + "://" + rawURL
		}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, validationError("url", err)
	}
	if u.Port() == "" && u.Hostname() != "" {
		u.Host = net.JoinHostPort(u.Hostname(), strconv.Itoa(defaultPort(u.Scheme)))
	}
	u.Path = removeDotSegments(u.Path)
	u.RawPath = ""
	if !IsURLValid(u) {
		return nil, validationError("url", ErrInvalidURL)
	}
	return u, nil
}

// IsURLValid reports whether u is an absolute coap or coaps URL with a host and no fragment.
func IsURLValid(u *url.URL) bool {
	if u == nil || u.Hostname() == "" || u.Fragment != "" || u.Opaque != "" {
		return false
	}
	return u.Scheme == SchemeCoap || u.Scheme == SchemeCoaps
}

// removeDotSegments implements RFC 3986 section 5.2.4 on a decoded path.
func removeDotSegments(p string) string {
	if p == "" {
		return p
	}
	in := strings.Split(p, "/")
	out := make([]string, 0, len(in))
	trailing := false
	for i, seg := range in {
		last := i == len(in)-1
		trailing = false
		switch seg {
		case ".":
			trailing = last
		case "..":
			if len(out) > 1 {
				out = out[:len(out)-1]
			}
			trailing = last
		default:
			out = append(out, seg)
		}
	}
	rv := strings.Join(out, "/")
	if trailing && !strings.HasSuffix(rv, "/") {
		rv += "/"
	}
	if strings.HasPrefix(p, "/") && !strings.HasPrefix(rv, "/") {
		rv = "/" + rv
	}
	return rv
}

func isMulticastHost(host string) bool {
	ip := net.ParseIP(host)
	return ip != nil && ip.IsMulticast()
}
