// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package registry_test

import (
	"testing"

	"github.com/lnxusr1/kenzy/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kitchenSTT(url string) registry.Peer {
	return registry.Peer{
		URL:      url,
		Type:     "kenzy.stt",
		Location: "kitchen",
		Group:    "downstairs",
		Accepts:  []string{"mute", "unmute", "status"},
		Active:   true,
	}
}

func TestRegisterAndRefresh(t *testing.T) {
	t.Parallel()
	r := registry.New()

	r.Register(kitchenSTT("http://10.0.0.2:9700"))
	assert.Equal(t, 1, r.Len())

	peer, ok := r.Get("http://10.0.0.2:9700")
	require.True(t, ok)
	assert.Equal(t, "kitchen", peer.Location)
	first := peer.LastSeen

	refreshed := kitchenSTT("http://10.0.0.2:9700")
	refreshed.Location = "den"
	r.Register(refreshed)

	peer, ok = r.Get("http://10.0.0.2:9700")
	require.True(t, ok)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, "den", peer.Location)
	assert.False(t, peer.LastSeen.Before(first))
}

func TestRemove(t *testing.T) {
	t.Parallel()
	r := registry.New()
	r.Register(kitchenSTT("http://10.0.0.2:9700"))
	r.Remove("http://10.0.0.2:9700")
	_, ok := r.Get("http://10.0.0.2:9700")
	assert.False(t, ok)
	assert.Empty(t, r.URLs())
}

func TestMatchFiltersLocationAcceptsAndActive(t *testing.T) {
	t.Parallel()
	r := registry.New()

	r.Register(kitchenSTT("http://10.0.0.2:9700"))

	den := kitchenSTT("http://10.0.0.3:9700")
	den.Location = "den"
	r.Register(den)

	inactive := kitchenSTT("http://10.0.0.4:9700")
	inactive.Active = false
	r.Register(inactive)

	tts := kitchenSTT("http://10.0.0.5:9700")
	tts.Type = "kenzy.tts"
	tts.Accepts = []string{"speak", "play"}
	r.Register(tts)

	matches := r.Match("kitchen", "mute")
	require.Len(t, matches, 1)
	assert.Equal(t, "http://10.0.0.2:9700", matches[0].URL)

	// The bus never routes a verb to a peer that does not accept it.
	assert.Empty(t, r.Match("kitchen", "teleport"))
	assert.Len(t, r.Match("kitchen", "speak"), 1)
}

func TestSnapshotIsACopy(t *testing.T) {
	t.Parallel()
	r := registry.New()
	r.Register(kitchenSTT("http://10.0.0.2:9700"))

	snap := r.Snapshot()
	delete(snap, "http://10.0.0.2:9700")
	assert.Equal(t, 1, r.Len())
}
