// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package tts

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/lnxusr1/kenzy/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"that costs $3.50 today", "that costs three dollars and fifty cents today"},
		{"I have $5", "I have five dollars"},
		{"pi is 3.14", "pi is three point fourteen"},
		{"count to 21", "count to twenty one"},
		{"the year 1999", "the year one thousand nine hundred ninety nine"},
		{"1,250 items", "one thousand two hundred fifty items"},
		{"no numbers here", "no numbers here"},
		{"0 problems", "zero problems"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeText(tt.in), "input %q", tt.in)
	}
}

func TestNumberToWords(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "zero", numberToWords(0))
	assert.Equal(t, "nineteen", numberToWords(19))
	assert.Equal(t, "forty two", numberToWords(42))
	assert.Equal(t, "one hundred", numberToWords(100))
	assert.Equal(t, "two million three", numberToWords(2_000_003))
	assert.Equal(t, "one billion", numberToWords(1_000_000_000))
}

func TestCacheFileNameStable(t *testing.T) {
	t.Parallel()
	a, err := CacheFileName("hello there", "slt")
	require.NoError(t, err)
	b, err := CacheFileName("hello there", "slt")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := CacheFileName("hello there", "bdl")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	d, err := CacheFileName("hello here", "slt")
	require.NoError(t, err)
	assert.NotEqual(t, a, d)
}

// fakeSynth returns a canned WAV and counts invocations.
type fakeSynth struct {
	mu    sync.Mutex
	calls int
	texts []string
}

func (s *fakeSynth) Synthesize(text, _ string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.texts = append(s.texts, text)
	return []byte("RIFFfake"), nil
}

// fakePlayer records played paths.
type fakePlayer struct {
	mu     sync.Mutex
	played []string
}

func (p *fakePlayer) Play(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, filepath.Base(path))
	return nil
}

func newTestDevice(t *testing.T) (*Device, *fakeSynth, *fakePlayer) {
	t.Helper()
	cacheDir := t.TempDir()
	assetDir := t.TempDir()
	// The generating cue must exist for the cache-miss path to play it.
	require.NoError(t, os.WriteFile(filepath.Join(assetDir, "generating.wav"), []byte("RIFFcue"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(assetDir, "ready.wav"), []byte("RIFFcue"), 0o644))

	cfg := &config.Config{
		Device: config.Device{
			Location: "kitchen",
			Group:    "downstairs",
			TTS: config.TTS{
				Speaker:     "slt",
				CacheFolder: cacheDir,
				AssetFolder: assetDir,
			},
		},
	}
	synth := &fakeSynth{}
	player := &fakePlayer{}
	device := New(cfg, synth, player)
	require.True(t, device.Start().IsSuccess())
	return device, synth, player
}

func TestSpeakSynthesizesOnceAndCaches(t *testing.T) {
	t.Parallel()
	device, synth, player := newTestDevice(t)

	resp := device.Do("speak", map[string]any{"text": "hello"}, nil)
	require.True(t, resp.IsSuccess(), resp.Errors)

	synth.mu.Lock()
	assert.Equal(t, 1, synth.calls)
	synth.mu.Unlock()

	player.mu.Lock()
	// The generating cue played during the miss, then the rendering.
	assert.Contains(t, player.played, "generating.wav")
	played := len(player.played)
	player.mu.Unlock()
	require.GreaterOrEqual(t, played, 2)

	// Second call hits the cache: no new synthesis, no cue.
	resp = device.Do("speak", map[string]any{"text": "hello"}, nil)
	require.True(t, resp.IsSuccess())

	synth.mu.Lock()
	assert.Equal(t, 1, synth.calls)
	synth.mu.Unlock()
}

func TestSpeakNormalizesNumbers(t *testing.T) {
	t.Parallel()
	device, synth, _ := newTestDevice(t)

	resp := device.Do("speak", map[string]any{"text": "$3.50 please"}, nil)
	require.True(t, resp.IsSuccess())

	synth.mu.Lock()
	defer synth.mu.Unlock()
	require.Len(t, synth.texts, 1)
	assert.Equal(t, "three dollars and fifty cents please", synth.texts[0])
}

func TestSpeakRequiresRunningDevice(t *testing.T) {
	t.Parallel()
	device, _, _ := newTestDevice(t)
	require.True(t, device.Stop().IsSuccess())

	resp := device.Do("speak", map[string]any{"text": "hello"}, nil)
	assert.False(t, resp.IsSuccess())
}

func TestPlayNamedCue(t *testing.T) {
	t.Parallel()
	device, _, player := newTestDevice(t)

	resp := device.Do("play", map[string]any{"file_name": "ready.wav"}, nil)
	require.True(t, resp.IsSuccess())

	player.mu.Lock()
	defer player.mu.Unlock()
	assert.Contains(t, player.played, "ready.wav")
}

func TestPlayMissingFile(t *testing.T) {
	t.Parallel()
	device, _, _ := newTestDevice(t)
	resp := device.Do("play", map[string]any{"file_name": "nope.wav"}, nil)
	assert.False(t, resp.IsSuccess())
}
