// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package core

// Context carries the routing metadata attached to every command: the
// originating node's URL, its device type, and the user-assigned room
// label and zone. Outbound routing fans out on Location only; Group is
// carried for peers and status but the bus does not route on it.
type Context struct {
	URL      string `json:"url,omitempty"`
	Type     string `json:"type,omitempty"`
	Location string `json:"location,omitempty"`
	Group    string `json:"group,omitempty"`
}

// IsZero reports whether the context carries no routing information.
func (c Context) IsZero() bool {
	return c == Context{}
}
