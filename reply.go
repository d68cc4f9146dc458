// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"context"
	"net/url"
	"sync"
)

type ReplyState int

const (
	ReplyCreated ReplyState = iota
	ReplyRunning
	ReplyFinished
	ReplyAborted
)

func (s ReplyState) String() string {
	switch s {
	case ReplyCreated:
		return "created"
	case ReplyRunning:
		return "running"
	case ReplyFinished:
		return "finished"
	default:
		return "aborted"
	}
}

// Reply is the handle of a request in flight. Its methods are safe for concurrent use.
type Reply struct {
	client  *Client
	request *Request

	mu      sync.Mutex
	state   ReplyState
	message *Message
	err     error

	done          chan struct{}
	notifications chan *Message
	discovered    chan []Resource
	resources     []Resource
}

func newReply(c *Client, req *Request, notificationBuffer int) *Reply {
	r := &Reply{
		client:  c,
		request: req,
		done:    make(chan struct{}),
	}
	if req.IsObserve() {
		r.notifications = make(chan *Message, notificationBuffer)
	}
	return r
}

func (r *Reply) Request() *Request {
	return r.request
}

func (r *Reply) URL() *url.URL {
	return r.request.URL
}

func (r *Reply) Method() COAPCode {
	return r.request.Method
}

func (r *Reply) State() ReplyState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Reply) IsRunning() bool {
	return r.State() == ReplyRunning
}

func (r *Reply) IsFinished() bool {
	s := r.State()
	return s == ReplyFinished || s == ReplyAborted
}

func (r *Reply) IsAborted() bool {
	return r.State() == ReplyAborted
}

// IsSuccessful reports a finished reply without error and with a non-error code.
func (r *Reply) IsSuccessful() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == ReplyFinished && r.err == nil
}

// Err returns the terminal error, nil while running or on success.
func (r *Reply) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Message returns the latest merged response (the last notification for observe).
func (r *Reply) Message() *Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.message
}

func (r *Reply) ResponseCode() COAPCode {
	if m := r.Message(); m != nil {
		return m.Code
	}
	return CodeEmpty
}

// ReadAll returns the payload of the latest response.
func (r *Reply) ReadAll() []byte {
	if m := r.Message(); m != nil {
		return m.Payload
	}
	return nil
}

// Done is closed once the reply is finished or aborted.
func (r *Reply) Done() <-chan struct{} {
	return r.done
}

// Notifications delivers each observe notification. It is nil for plain requests
// and closed when the reply finishes.
func (r *Reply) Notifications() <-chan *Message {
	return r.notifications
}

// Wait blocks until the reply finishes or ctx is done.
func (r *Reply) Wait(ctx context.Context) (*Message, error) {
	select {
	case <-r.done:
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.message, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Abort cancels the exchange. The reply ends Aborted with ErrAborted.
func (r *Reply) Abort() {
	if r.client == nil || !r.client.post(func() { r.client.abortExchange(r) }) {
		r.terminate(ReplyAborted, nil, ErrAborted)
	}
}

func (r *Reply) setRunning() {
	r.mu.Lock()
	if r.state == ReplyCreated {
		r.state = ReplyRunning
	}
	r.mu.Unlock()
}

// notify publishes an observe notification; a full buffer drops it.
// The send happens under mu so terminate cannot close the channel in between.
func (r *Reply) notify(msg *Message) bool {
	r.mu.Lock()
	if r.state != ReplyRunning {
		r.mu.Unlock()
		return false
	}
	r.message = msg
	sent := false
	select {
	case r.notifications <- msg:
		sent = true
	default:
	}
	r.mu.Unlock()

	if !sent {
		logWarn(msg, nil, "notification dropped, buffer full")
	}
	return sent
}

// finish ends the reply as Finished; err is nil or a *ResponseError.
func (r *Reply) finish(msg *Message, err error) {
	r.terminate(ReplyFinished, msg, err)
}

// abort ends the reply as Aborted with a transport, timeout or user error.
func (r *Reply) abort(err error) {
	r.terminate(ReplyAborted, nil, err)
}

func (r *Reply) terminate(state ReplyState, msg *Message, err error) {
	r.mu.Lock()
	if r.state == ReplyFinished || r.state == ReplyAborted {
		r.mu.Unlock()
		return
	}
	r.state = state
	if msg != nil {
		r.message = msg
	}
	r.err = err
	r.mu.Unlock()

	if r.client != nil {
		r.client.untrack(r)
	}

	if r.notifications != nil {
		close(r.notifications)
	}
	if r.discovered != nil {
		close(r.discovered)
	}
	close(r.done)
}
