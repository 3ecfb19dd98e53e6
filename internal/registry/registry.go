// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

// Package registry tracks the peers known to the hub. Entries are
// created on the first register command from a peer, refreshed on every
// subsequent one, and removed only on an explicit shutdown; there is no
// TTL sweep, so a crashed peer stays listed until the hub restarts.
package registry

import (
	"log/slog"
	"slices"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// Peer is the hub's record of a registered node. Accepts determines
// addressability: the command bus never routes a verb to a peer whose
// accepts set does not contain it.
type Peer struct {
	URL      string    `json:"url"`
	Type     string    `json:"type"`
	Location string    `json:"location"`
	Group    string    `json:"group"`
	Accepts  []string  `json:"accepts"`
	Active   bool      `json:"active"`
	Version  string    `json:"version,omitempty"`
	LastSeen time.Time `json:"last_seen"`
}

// AcceptsAction reports whether the peer advertises the given verb.
func (p Peer) AcceptsAction(action string) bool {
	return slices.Contains(p.Accepts, action)
}

// Registry is the concurrent map of peer URL to peer record. It is
// written only by the register handler and shutdown; everything else
// reads snapshots.
type Registry struct {
	peers *xsync.Map[string, Peer]
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		peers: xsync.NewMap[string, Peer](),
	}
}

// Register inserts or refreshes the record for the peer's URL. New
// peers are logged at info level, refreshes at debug.
func (r *Registry) Register(peer Peer) {
	peer.LastSeen = time.Now()
	if _, known := r.peers.Load(peer.URL); known {
		slog.Debug("Refreshed remote device", "url", peer.URL)
	} else {
		slog.Info("Registered remote device", "url", peer.URL, "type", peer.Type, "location", peer.Location)
	}
	r.peers.Store(peer.URL, peer)
}

// Get returns the record stored for the given URL.
func (r *Registry) Get(url string) (Peer, bool) {
	return r.peers.Load(url)
}

// Remove deletes the record for the given URL.
func (r *Registry) Remove(url string) {
	r.peers.Delete(url)
}

// Len returns the number of registered peers.
func (r *Registry) Len() int {
	return r.peers.Size()
}

// Snapshot copies the registry into a plain map for status reporting.
func (r *Registry) Snapshot() map[string]Peer {
	out := make(map[string]Peer, r.peers.Size())
	r.peers.Range(func(url string, peer Peer) bool {
		out[url] = peer
		return true
	})
	return out
}

// URLs returns the URLs of every registered peer.
func (r *Registry) URLs() []string {
	out := make([]string, 0, r.peers.Size())
	r.peers.Range(func(url string, _ Peer) bool {
		out = append(out, url)
		return true
	})
	return out
}

// Match snapshots the active peers in the given location that accept
// the given action. The copy lets callers perform network I/O without
// holding any registry state.
func (r *Registry) Match(location, action string) []Peer {
	var out []Peer
	r.peers.Range(func(_ string, peer Peer) bool {
		if peer.Active && peer.Location == location && peer.AcceptsAction(action) {
			out = append(out, peer)
		}
		return true
	})
	return out
}
