// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

// Observe registers req as an observation (RFC 7641). Every notification is
// delivered on the reply's Notifications channel until CancelObserve.
func (c *Client) Observe(req *Request) (*Reply, error) {
	if req == nil {
		return nil, validationError("request", ErrInvalidURL)
	}
	r := req.Clone()
	r.Method = CodeGet
	r.EnableObserve()
	return c.Send(r)
}

// CancelObserve stops an observation. The reply finishes successfully right away,
// keeping the last notification; the next notification from the server is
// answered with RST.
func (c *Client) CancelObserve(r *Reply) {
	if r == nil {
		return
	}
	c.post(func() { c.cancelObserve(r) })
}

// CancelObserveURL cancels every observation of rawURL.
func (c *Client) CancelObserveURL(rawURL string) error {
	u, err := AdjustedURL(rawURL, c.transport.IsSecure())
	if err != nil {
		return err
	}
	target := u.String()
	c.post(func() {
		for _, ex := range c.exchanges.all() {
			if ex.observe && ex.original.URL.String() == target {
				c.cancelObserve(ex.reply)
			}
		}
	})
	return nil
}

func (c *Client) cancelObserve(r *Reply) {
	ex := c.exchanges.lookupByReply(r)
	if ex == nil || !ex.observe || ex.cancelled {
		return
	}
	logDebug(&ex.original.Message, nil, "cancelling observation of %s", ex.original.URL)
	ex.cancelled = true
	ex.original.RemoveOption(OptObserve)
	c.releaseSlot(ex)
	r.finish(nil, nil)
}
