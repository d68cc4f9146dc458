// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"net"
	"strconv"
	"strings"

	"github.com/qwerty-iot/tox"
)

// Resource is one link of a CoRE Link Format document.
type Resource struct {
	Host          string
	Path          string
	Title         string
	ResourceType  string
	Interface     string
	MaximumSize   int
	ContentFormat MediaType
	Observable    bool
}

// ResourcesFromCoreLinkList parses an application/link-format payload received from sender.
// Links without a path are skipped.
func ResourcesFromCoreLinkList(sender string, payload []byte) []Resource {
	var rv []Resource
	host := senderHost(sender)

	for _, link := range strings.Split(string(payload), ",") {
		res := Resource{Host: host, ContentFormat: None}
		for _, param := range strings.Split(strings.TrimSpace(link), ";") {
			switch {
			case strings.HasPrefix(param, "<"):
				res.Path = strings.TrimSuffix(strings.TrimPrefix(param, "<"), ">")
			case strings.HasPrefix(param, "title="):
				res.Title = unquote(param[6:])
			case strings.HasPrefix(param, "rt="):
				res.ResourceType = unquote(param[3:])
			case strings.HasPrefix(param, "if="):
				res.Interface = unquote(param[3:])
			case strings.HasPrefix(param, "sz="):
				res.MaximumSize = tox.ToInt(unquote(param[3:]))
			case strings.HasPrefix(param, "ct="):
				res.ContentFormat = MediaType(tox.ToInt(unquote(param[3:])))
			case param == "obs":
				res.Observable = true
			}
		}
		if res.Path != "" {
			rv = append(rv, res)
		}
	}
	return rv
}

func unquote(s string) string {
	return strings.ReplaceAll(s, "\"", "")
}

func senderHost(sender string) string {
	if host, _, err := net.SplitHostPort(sender); err == nil {
		return host
	}
	return sender
}

// DiscoveryReply is the handle of a discovery request. Resources accumulate across
// responses; a multicast discovery collects responses until the server response
// delay elapses or the reply is aborted.
type DiscoveryReply struct {
	*Reply
}

// Resources returns everything discovered so far.
func (d *DiscoveryReply) Resources() []Resource {
	d.mu.Lock()
	defer d.mu.Unlock()
	rv := make([]Resource, len(d.resources))
	copy(rv, d.resources)
	return rv
}

// Discovered delivers the resources of each response; it is closed when the reply finishes.
func (d *DiscoveryReply) Discovered() <-chan []Resource {
	return d.discovered
}

func (d *DiscoveryReply) addResources(msg *Message) []Resource {
	res := ResourcesFromCoreLinkList(msg.Meta.RemoteAddr, msg.Payload)
	d.mu.Lock()
	if d.state == ReplyFinished || d.state == ReplyAborted {
		d.mu.Unlock()
		return nil
	}
	d.resources = append(d.resources, res...)
	d.message = msg
	sent := false
	select {
	case d.discovered <- res:
		sent = true
	default:
	}
	d.mu.Unlock()

	if !sent {
		logWarn(msg, nil, "discovery batch dropped, buffer full")
	}
	return res
}

// Discover sends a resource discovery GET to path on the authority of rawURL.
// An empty path means /.well-known/core.
func (c *Client) Discover(rawURL string, path string) (*DiscoveryReply, error) {
	if path == "" {
		path = DefaultDiscoveryPath
	}
	u, err := AdjustedURL(rawURL, c.transport.IsSecure())
	if err != nil {
		return nil, err
	}
	u.Path = "/" + strings.TrimPrefix(path, "/")
	req, err := NewRequest(CodeGet, u.String())
	if err != nil {
		return nil, err
	}

	ex, err := c.prepare(req, nil)
	if err != nil {
		return nil, err
	}
	ex.discovery = &DiscoveryReply{Reply: ex.reply}
	ex.reply.discovered = make(chan []Resource, c.notificationBuffer)
	if err := c.submit(ex); err != nil {
		return nil, err
	}
	return ex.discovery, nil
}

// DiscoverGroup runs a multicast discovery on one of the All CoAP Nodes groups.
// Responses are collected until the max server response delay elapses.
func (c *Client) DiscoverGroup(group MulticastGroup, path string) (*DiscoveryReply, error) {
	scheme := SchemeCoap
	if c.transport.IsSecure() {
		scheme = SchemeCoaps
	}
	host := net.JoinHostPort(group.Address(), strconv.Itoa(defaultPort(scheme)))
	return c.Discover(scheme+"://"+host, path)
}
