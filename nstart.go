// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

type nstart struct {
	count   int
	waiting []*exchange
}

// nstartLimiter bounds outstanding exchanges per endpoint (RFC 7252 section 4.7).
// Excess exchanges wait in FIFO order. Not safe for concurrent use.
type nstartLimiter struct {
	endpoints map[string]*nstart
}

func newNstartLimiter() *nstartLimiter {
	return &nstartLimiter{endpoints: map[string]*nstart{}}
}

// acquire takes a slot for ex, or queues it and returns false.
func (l *nstartLimiter) acquire(ex *exchange, limit int) bool {
	if limit <= 0 {
		return true
	}
	s, found := l.endpoints[ex.endpoint]
	if !found {
		s = &nstart{}
		l.endpoints[ex.endpoint] = s
	}
	if s.count >= limit {
		s.waiting = append(s.waiting, ex)
		ex.queued = true
		return false
	}
	s.count++
	ex.holding = true
	return true
}

// release frees the slot of ex and returns the next waiting exchange, now holding a slot.
func (l *nstartLimiter) release(ex *exchange) *exchange {
	if ex.queued {
		l.remove(ex)
		return nil
	}
	if !ex.holding {
		return nil
	}
	ex.holding = false
	s, found := l.endpoints[ex.endpoint]
	if !found {
		return nil
	}
	s.count--
	if len(s.waiting) > 0 {
		next := s.waiting[0]
		s.waiting = s.waiting[1:]
		next.queued = false
		next.holding = true
		s.count++
		return next
	}
	if s.count <= 0 {
		delete(l.endpoints, ex.endpoint)
	}
	return nil
}

func (l *nstartLimiter) remove(ex *exchange) {
	ex.queued = false
	s, found := l.endpoints[ex.endpoint]
	if !found {
		return
	}
	for i, w := range s.waiting {
		if w == ex {
			s.waiting = append(s.waiting[:i:i], s.waiting[i+1:]...)
			break
		}
	}
}

func (l *nstartLimiter) waitingCount(endpoint string) int {
	if s, found := l.endpoints[endpoint]; found {
		return len(s.waiting)
	}
	return 0
}

func (l *nstartLimiter) entryCount() int {
	return len(l.endpoints)
}
