// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package skills

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lnxusr1/kenzy/internal/config"
	"github.com/lnxusr1/kenzy/internal/core"
	"github.com/lnxusr1/kenzy/internal/devices"
	"github.com/lnxusr1/kenzy/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService records the commands the device hands to the bus.
type fakeService struct {
	mu       sync.Mutex
	commands []*core.Command
	peers    map[string]registry.Peer
}

func (s *fakeService) LocalContext() core.Context { return core.Context{Location: "den"} }
func (s *fakeService) ServiceURL() string         { return "http://hub:9700" }
func (s *fakeService) LocalURL() string           { return "http://hub:9700" }

func (s *fakeService) SendCommand(cmd *core.Command, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, cmd)
	return nil
}

func (s *fakeService) SendEnvelope(string, core.Envelope, map[string]string, time.Duration, bool) (*core.Response, error) {
	return core.Success("ok"), nil
}

func (s *fakeService) Collect(map[string]any, *core.Context) {}

func (s *fakeService) Peers() map[string]registry.Peer { return s.peers }

func (s *fakeService) sent() []*core.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*core.Command, len(s.commands))
	copy(out, s.commands)
	return out
}

var _ devices.Service = (*fakeService)(nil)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Device: config.Device{
			Location: "den",
			Group:    "downstairs",
			Skills: config.Skills{
				Folder:      t.TempDir(),
				WakeWords:   []string{"kenzy"},
				WakeTimeout: 10,
				AskTimeout:  10,
			},
		},
	}
}

func newTestDevice(t *testing.T) (*Device, *fakeService) {
	t.Helper()
	device, err := New(testConfig(t), func() Matcher { return NewPhraseMatcher() })
	require.NoError(t, err)
	service := &fakeService{}
	device.SetService(service)
	require.True(t, device.Start().IsSuccess())
	t.Cleanup(func() { device.Stop() })
	return device, service
}

func sttCollect(text, url string) (map[string]any, *core.Context) {
	return map[string]any{"type": "kenzy.stt", "text": text},
		&core.Context{URL: url, Type: "kenzy.stt", Location: "kitchen"}
}

// speakTexts extracts the text of every speak command sent so far.
func speakTexts(service *fakeService) []string {
	var out []string
	for _, cmd := range service.sent() {
		if cmd.Action == "speak" {
			text, _ := cmd.Payload["text"].(string)
			out = append(out, text)
		}
	}
	return out
}

func TestWakeGate(t *testing.T) {
	t.Parallel()
	device, service := newTestDevice(t)

	// Cold: no wake word, no dispatch.
	payload, ctx := sttCollect("what time is it", "http://a:9700")
	device.Do("collect", payload, ctx)
	assert.Empty(t, speakTexts(service))

	// Wake word present: intent dispatched.
	payload, ctx = sttCollect("kenzy what time is it", "http://a:9700")
	device.Do("collect", payload, ctx)
	require.Len(t, speakTexts(service), 1)

	// Within the activation window no wake word is needed.
	payload, ctx = sttCollect("and the date", "http://a:9700")
	device.Do("collect", payload, ctx)
	require.Len(t, speakTexts(service), 2)

	// After the window closes the wake word is required again.
	device.Manager().mu.Lock()
	device.Manager().activated = time.Now().Add(-11 * time.Second)
	device.Manager().mu.Unlock()

	payload, ctx = sttCollect("the date", "http://a:9700")
	device.Do("collect", payload, ctx)
	assert.Len(t, speakTexts(service), 2)
}

func TestWakeWordAloneplaysReadyCue(t *testing.T) {
	t.Parallel()
	device, service := newTestDevice(t)

	payload, ctx := sttCollect("kenzy", "http://a:9700")
	device.Do("collect", payload, ctx)

	sent := service.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "play", sent[0].Action)
	assert.Equal(t, "ready.wav", sent[0].Payload["file_name"])
}

func TestAskIsolationBetweenPeers(t *testing.T) {
	t.Parallel()
	device, _ := newTestDevice(t)

	ctxA := &core.Context{URL: "http://a:9700", Location: "kitchen"}
	ctxB := &core.Context{URL: "http://b:9700", Location: "den"}

	answers := map[string]string{}
	var mu sync.Mutex

	resp := device.Ask("who?", func(text string, _ *core.Context) {
		mu.Lock()
		answers["a"] = text
		mu.Unlock()
	}, 0, ctxA)
	require.True(t, resp.IsSuccess())

	resp = device.Ask("who?", func(text string, _ *core.Context) {
		mu.Lock()
		answers["b"] = text
		mu.Unlock()
	}, 0, ctxB)
	require.True(t, resp.IsSuccess())

	payload, ctx := sttCollect("alice", "http://a:9700")
	device.Do("collect", payload, ctx)
	payload, ctx = sttCollect("bob", "http://b:9700")
	device.Do("collect", payload, ctx)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "alice", answers["a"])
	assert.Equal(t, "bob", answers["b"])
}

func TestAskReplacesPriorEntry(t *testing.T) {
	t.Parallel()
	device, _ := newTestDevice(t)

	ctx := &core.Context{URL: "http://a:9700"}
	var got string
	var mu sync.Mutex

	device.Ask("first?", func(text string, _ *core.Context) {
		mu.Lock()
		got = "first:" + text
		mu.Unlock()
	}, 0, ctx)
	device.Ask("second?", func(text string, _ *core.Context) {
		mu.Lock()
		got = "second:" + text
		mu.Unlock()
	}, 0, ctx)

	payload, collectCtx := sttCollect("answer", "http://a:9700")
	device.Do("collect", payload, collectCtx)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "second:answer", got)
}

func TestExpiredAskFallsThroughToIntents(t *testing.T) {
	t.Parallel()
	device, service := newTestDevice(t)

	ctx := &core.Context{URL: "http://a:9700"}
	called := false
	device.askTable.Put(ctx.URL, func(string, *core.Context) { called = true }, -time.Second)

	payload, collectCtx := sttCollect("kenzy hello", "http://a:9700")
	device.Do("collect", payload, collectCtx)

	assert.False(t, called)
	assert.NotEmpty(t, speakTexts(service))
}

func TestSayBuildsMuteUnmuteChain(t *testing.T) {
	t.Parallel()
	device, service := newTestDevice(t)

	ctx := &core.Context{Location: "kitchen"}
	resp := device.Say("hello there", ctx)
	require.True(t, resp.IsSuccess())

	sent := service.sent()
	require.Len(t, sent, 1)
	cmd := sent[0]
	assert.Equal(t, "speak", cmd.Action)
	require.Len(t, cmd.Pre, 1)
	require.Len(t, cmd.Post, 1)
	assert.Equal(t, "mute", cmd.Pre[0].Action)
	assert.Equal(t, "unmute", cmd.Post[0].Action)
	assert.Equal(t, ctx, cmd.Context)
}

func TestFallbackRelaysToLLMPeer(t *testing.T) {
	t.Parallel()
	device, service := newTestDevice(t)
	service.peers = map[string]registry.Peer{
		"http://llm:9700": {
			URL: "http://llm:9700", Type: "kenzy.llm", Active: true,
			Accepts: []string{"fallback"},
		},
	}

	payload, ctx := sttCollect("kenzy recite some poetry", "http://a:9700")
	device.Do("collect", payload, ctx)

	var fallbacks []*core.Command
	for _, cmd := range service.sent() {
		if cmd.Action == "fallback" {
			fallbacks = append(fallbacks, cmd)
		}
	}
	require.Len(t, fallbacks, 1)
	assert.Equal(t, "http://llm:9700", fallbacks[0].URL)
	assert.Equal(t, "recite some poetry", fallbacks[0].Payload["text"])
}

func TestManifestSkillLoads(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	folder := cfg.Device.Skills.Folder
	skillDir := filepath.Join(folder, "GoodNightSkill")
	require.NoError(t, os.MkdirAll(skillDir, 0o755))
	manifest := `name: GoodNightSkill
description: Says good night
intents:
  - name: good_night
    phrases:
      - good night
    responses:
      - Good night
`
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, "skill.yml"), []byte(manifest), 0o644))

	device, err := New(cfg, func() Matcher { return NewPhraseMatcher() })
	require.NoError(t, err)
	service := &fakeService{}
	device.SetService(service)
	require.True(t, device.Start().IsSuccess())
	defer device.Stop()

	payload, ctx := sttCollect("kenzy good night", "http://a:9700")
	device.Do("collect", payload, ctx)
	assert.Equal(t, []string{"Good night"}, speakTexts(service))
}

func TestStatusListsSkillsAndDevices(t *testing.T) {
	t.Parallel()
	device, service := newTestDevice(t)
	service.peers = map[string]registry.Peer{
		"http://a:9700": {URL: "http://a:9700", Type: "kenzy.stt", Active: true},
	}

	resp := device.Status()
	require.True(t, resp.IsSuccess())
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	inner, ok := data["data"].(map[string]any)
	require.True(t, ok)

	skillList, ok := inner["skills"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, skillList, "HelloSkill")
	assert.Contains(t, skillList, "TellDateTimeSkill")

	peers, ok := inner["devices"].(map[string]registry.Peer)
	require.True(t, ok)
	assert.Contains(t, peers, "http://a:9700")
}
