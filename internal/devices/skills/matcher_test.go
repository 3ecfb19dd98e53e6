// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package skills

import (
	"testing"
	"time"

	"github.com/lnxusr1/kenzy/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhraseMatcherExactPhrase(t *testing.T) {
	t.Parallel()
	m := NewPhraseMatcher()
	require.NoError(t, m.AddIntent("time", []string{"what time is it", "tell me the time"}))
	require.NoError(t, m.Train())

	intent, ok := m.Match("What time is it?")
	require.True(t, ok)
	assert.Equal(t, "time", intent.Name)
	assert.GreaterOrEqual(t, intent.Confidence, 0.6)

	_, ok = m.Match("open the garage")
	assert.False(t, ok)
}

func TestPhraseMatcherEntitySlot(t *testing.T) {
	t.Parallel()
	m := NewPhraseMatcher()
	require.NoError(t, m.AddIntent("greet", []string{"say hello to {person}"}))

	intent, ok := m.Match("say hello to alice smith")
	require.True(t, ok)
	assert.Equal(t, "greet", intent.Name)
	assert.Equal(t, "alice smith", intent.Entities["person"])
}

func TestPhraseMatcherRestrictedEntity(t *testing.T) {
	t.Parallel()
	m := NewPhraseMatcher()
	require.NoError(t, m.AddEntity("room", []string{"kitchen", "den"}))
	require.NoError(t, m.AddIntent("lights", []string{"turn on the {room} lights"}))

	intent, ok := m.Match("turn on the kitchen lights")
	require.True(t, ok)
	assert.Equal(t, "kitchen", intent.Entities["room"])

	_, ok = m.Match("turn on the garage lights")
	assert.False(t, ok)
}

func TestNormalizeStripsPunctuation(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "whats the time", normalize("What's the time?"))
	assert.Equal(t, "hello there", normalize("  Hello,   there!  "))
}

func TestAskTableReplaceAndExpiry(t *testing.T) {
	t.Parallel()
	table := NewAskTable()

	table.Put("http://a:9700", func(string, *core.Context) {}, time.Minute)
	assert.Equal(t, 1, table.Len())

	// A new ask replaces the prior entry for the same URL.
	hit := false
	table.Put("http://a:9700", func(string, *core.Context) { hit = true }, time.Minute)
	assert.Equal(t, 1, table.Len())

	callback, ok := table.Pop("http://a:9700")
	require.True(t, ok)
	callback("x", nil)
	assert.True(t, hit)

	// Popped entries are gone.
	_, ok = table.Pop("http://a:9700")
	assert.False(t, ok)

	// Expired entries do not fire.
	table.Put("http://b:9700", func(string, *core.Context) {}, -time.Second)
	_, ok = table.Pop("http://b:9700")
	assert.False(t, ok)
}
