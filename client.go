// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

const runningQueueSize = 256

// Client is a CoAP client endpoint bound to one Transport.
//
// All protocol state (exchange table, timers, deduplication, NSTART queues) is
// owned by a single engine goroutine. Callers, timers and the transport reach it
// by posting closures, so none of that state is locked.
type Client struct {
	transport          Transport
	clock              clockwork.Clock
	metrics            *Metrics
	notificationBuffer int

	optsMu sync.Mutex
	opts   SendOptions

	runningc chan func()
	closing  chan struct{}
	done     chan struct{}
	errc     chan error

	liveMu sync.Mutex
	live   map[*Reply]struct{}
	closed atomic.Bool

	// engine goroutine only
	rnd       RandomSource
	exchanges *exchangeTable
	dedup     *dedupCache
	nstart    *nstartLimiter
}

// NewClient starts the transport and the engine. A nil conf uses the defaults.
func NewClient(transport Transport, conf *Config) (*Client, error) {
	conf = conf.withDefaults()
	if err := conf.Options.validate(); err != nil {
		return nil, err
	}

	c := &Client{
		transport:          transport,
		clock:              conf.Clock,
		metrics:            conf.Metrics,
		notificationBuffer: conf.NotificationBuffer,
		opts:               *conf.Options,
		runningc:           make(chan func(), runningQueueSize),
		closing:            make(chan struct{}),
		done:               make(chan struct{}),
		errc:               make(chan error, 16),
		live:               map[*Reply]struct{}{},
		rnd:                conf.Random,
		exchanges:          newExchangeTable(conf.Random),
		dedup:              newDedupCache(conf.DeduplicateExpiration),
		nstart:             newNstartLimiter(),
	}

	if err := transport.Start(clientHandler{c}); err != nil {
		return nil, toTransportError(err)
	}
	go c.running()
	return c, nil
}

func (c *Client) running() {
	defer close(c.done)
	for {
		select {
		case fn := <-c.runningc:
			fn()
		case <-c.closing:
			c.shutdown()
			return
		}
	}
}

// post queues fn on the engine goroutine. It must not be called from the engine itself.
func (c *Client) post(fn func()) bool {
	if c.closed.Load() {
		return false
	}
	select {
	case c.runningc <- fn:
		return true
	case <-c.done:
		return false
	}
}

func (c *Client) shutdown() {
	for _, ex := range c.exchanges.all() {
		ex.stopTimers()
		if ex.collectTimer != nil {
			ex.collectTimer.Stop()
		}
		c.exchanges.forget(ex.token)
	}
	c.metrics.setLive(0)
}

// Close stops the engine and the transport. Replies still in flight end Aborted
// with ErrClientClosed.
func (c *Client) Close() error {
	c.liveMu.Lock()
	if c.closed.Load() {
		c.liveMu.Unlock()
		return nil
	}
	c.closed.Store(true)
	c.liveMu.Unlock()

	close(c.closing)
	<-c.done
	err := c.transport.Close()

	c.liveMu.Lock()
	pending := make([]*Reply, 0, len(c.live))
	for r := range c.live {
		pending = append(pending, r)
	}
	c.live = map[*Reply]struct{}{}
	c.liveMu.Unlock()

	for _, r := range pending {
		r.abort(ErrClientClosed)
	}
	return err
}

// Errors reports transport failures that are not tied to an exchange.
func (c *Client) Errors() <-chan error {
	return c.errc
}

// IsSecure reports whether the transport carries coaps.
func (c *Client) IsSecure() bool {
	return c.transport.IsSecure()
}

func (c *Client) track(r *Reply) bool {
	c.liveMu.Lock()
	defer c.liveMu.Unlock()
	if c.closed.Load() {
		return false
	}
	c.live[r] = struct{}{}
	return true
}

func (c *Client) untrack(r *Reply) {
	c.liveMu.Lock()
	delete(c.live, r)
	c.liveMu.Unlock()
}

// Options returns a copy of the default transmission parameters.
func (c *Client) Options() *SendOptions {
	c.optsMu.Lock()
	defer c.optsMu.Unlock()
	so := c.opts
	return &so
}

// SetAckTimeout sets ACK_TIMEOUT for new exchanges.
func (c *Client) SetAckTimeout(d time.Duration) error {
	if d <= 0 {
		return validationError("ack timeout", ErrInvalidValue)
	}
	c.optsMu.Lock()
	c.opts.ackTimeout = d
	c.optsMu.Unlock()
	return nil
}

// SetAckRandomFactor sets ACK_RANDOM_FACTOR. Values below 1 are raised to 1 and
// reported with a *ValidationError.
func (c *Client) SetAckRandomFactor(f float64) error {
	var err error
	if f < 1 {
		logWarn(nil, nil, "ack random factor %.2f raised to 1", f)
		f = 1
		err = validationError("ack random factor", ErrInvalidValue)
	}
	c.optsMu.Lock()
	c.opts.randomFactor = f
	c.optsMu.Unlock()
	return err
}

// SetMaxRetransmit sets MAX_RETRANSMIT. Negative values are rejected; values above
// 25 are capped and reported with a *ValidationError.
func (c *Client) SetMaxRetransmit(n int) error {
	if n < 0 {
		return validationError("max retransmit", ErrInvalidValue)
	}
	var err error
	if n > MaxRetransmitCap {
		logWarn(nil, nil, "max retransmit %d capped at %d", n, MaxRetransmitCap)
		n = MaxRetransmitCap
		err = validationError("max retransmit", ErrInvalidValue)
	}
	c.optsMu.Lock()
	c.opts.maxRetransmit = n
	c.optsMu.Unlock()
	return err
}

// SetBlockSize sets the preferred block size: 0 (server's choice) or a power of two in [16, 1024].
func (c *Client) SetBlockSize(bs int) error {
	if !validBlockSize(bs) {
		return validationError("block size", ErrInvalidValue)
	}
	c.optsMu.Lock()
	c.opts.blockSize = bs
	c.optsMu.Unlock()
	return nil
}

// SetMaxServerResponseDelay sets how long multicast responses are collected.
func (c *Client) SetMaxServerResponseDelay(d time.Duration) error {
	if d <= 0 {
		return validationError("max server response delay", ErrInvalidValue)
	}
	c.optsMu.Lock()
	c.opts.maxServerResponseDelay = d
	c.optsMu.Unlock()
	return nil
}

// Get sends req with the GET method.
func (c *Client) Get(req *Request) (*Reply, error) {
	return c.sendMethod(req, CodeGet)
}

func (c *Client) Put(req *Request) (*Reply, error) {
	return c.sendMethod(req, CodePut)
}

func (c *Client) Post(req *Request) (*Reply, error) {
	return c.sendMethod(req, CodePost)
}

func (c *Client) Delete(req *Request) (*Reply, error) {
	return c.sendMethod(req, CodeDelete)
}

// GetURL sends a GET to rawURL.
func (c *Client) GetURL(rawURL string) (*Reply, error) {
	req, err := NewRequest(CodeGet, rawURL)
	if err != nil {
		return nil, err
	}
	return c.Send(req)
}

func (c *Client) PutURL(rawURL string, payload []byte, cf MediaType) (*Reply, error) {
	req, err := NewRequest(CodePut, rawURL)
	if err != nil {
		return nil, err
	}
	req.WithPayload(payload).WithContentFormat(cf)
	return c.Send(req)
}

func (c *Client) PostURL(rawURL string, payload []byte, cf MediaType) (*Reply, error) {
	req, err := NewRequest(CodePost, rawURL)
	if err != nil {
		return nil, err
	}
	req.WithPayload(payload).WithContentFormat(cf)
	return c.Send(req)
}

func (c *Client) DeleteURL(rawURL string) (*Reply, error) {
	req, err := NewRequest(CodeDelete, rawURL)
	if err != nil {
		return nil, err
	}
	return c.Send(req)
}

func (c *Client) sendMethod(req *Request, method COAPCode) (*Reply, error) {
	if req == nil {
		return nil, validationError("request", ErrInvalidURL)
	}
	r := req.Clone()
	r.Method = method
	return c.Send(r)
}

// Send submits a request carrying its own method with the client's default options.
func (c *Client) Send(req *Request) (*Reply, error) {
	return c.SendWithOptions(req, nil)
}

// SendWithOptions submits req with per-request transmission parameters.
// Validation failures are returned here and no exchange is created.
func (c *Client) SendWithOptions(req *Request, so *SendOptions) (*Reply, error) {
	ex, err := c.prepare(req, so)
	if err != nil {
		return nil, err
	}
	if err := c.submit(ex); err != nil {
		return nil, err
	}
	return ex.reply, nil
}

func (c *Client) submit(ex *exchange) error {
	if !c.track(ex.reply) {
		return ErrClientClosed
	}
	if !c.post(func() { c.startExchange(ex) }) {
		c.untrack(ex.reply)
		return ErrClientClosed
	}
	return nil
}

func (c *Client) prepare(req *Request, so *SendOptions) (*exchange, error) {
	if req == nil {
		return nil, validationError("request", ErrInvalidURL)
	}
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	secure := c.transport.IsSecure()
	r := req.Clone()
	if err := r.adjust(secure); err != nil {
		return nil, err
	}
	if err := r.validate(secure); err != nil {
		logWarn(&r.Message, err, "request rejected")
		return nil, err
	}

	opts := *c.Options()
	if so != nil {
		if err := so.validate(); err != nil {
			return nil, err
		}
		opts = *so
	}

	host, port := r.endpoint()
	ex := &exchange{
		original:  r,
		request:   r,
		opts:      opts,
		host:      host,
		port:      port,
		endpoint:  net.JoinHostPort(host, strconv.Itoa(port)),
		observe:   r.IsObserve(),
		multicast: isMulticastHost(host),
	}
	if opts.blockSize > 0 && len(r.Payload) > opts.blockSize {
		ex.upload = r.Payload
		ex.blockSize = opts.blockSize
	}
	ex.reply = newReply(c, r.Clone(), c.notificationBuffer)
	return ex, nil
}

// clientHandler receives transport events on transport goroutines.
type clientHandler struct {
	c *Client
}

func (h clientHandler) HandleDatagram(data []byte, meta Metadata) {
	h.c.post(func() { h.c.handleDatagram(data, meta) })
}

func (h clientHandler) HandleTransportError(err error) {
	logWarn(nil, err, "transport error")
	select {
	case h.c.errc <- err:
	default:
	}
}
