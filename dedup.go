// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"strconv"
	"time"
)

const dedupPruneInterval = time.Second

type dedupEntry struct {
	expires time.Time
	// ack is the encoded empty ACK sent for a Confirmable message, resent for duplicates
	ack []byte
}

// dedupCache remembers recently processed (sender, message ID) pairs.
// Not safe for concurrent use.
type dedupCache struct {
	expiration time.Duration
	entries    map[string]*dedupEntry
	lastPrune  time.Time
}

func newDedupCache(expiration time.Duration) *dedupCache {
	return &dedupCache{expiration: expiration, entries: map[string]*dedupEntry{}}
}

func dedupKey(from string, mid uint16) string {
	return from + "#" + strconv.Itoa(int(mid))
}

// deduplicate returns the existing entry and false for a duplicate, or a new entry and true.
func (d *dedupCache) deduplicate(from string, mid uint16, now time.Time) (*dedupEntry, bool) {
	d.prune(now)

	key := dedupKey(from, mid)
	if entry, found := d.entries[key]; found && now.Before(entry.expires) {
		return entry, false
	}
	entry := &dedupEntry{expires: now.Add(d.expiration)}
	d.entries[key] = entry
	return entry, true
}

func (entry *dedupEntry) save(ack []byte) {
	entry.ack = ack
}

func (d *dedupCache) prune(now time.Time) {
	if now.Sub(d.lastPrune) < dedupPruneInterval {
		return
	}
	d.lastPrune = now
	for key, entry := range d.entries {
		if !now.Before(entry.expires) {
			delete(d.entries, key)
		}
	}
}

func (d *dedupCache) len() int {
	return len(d.entries)
}
