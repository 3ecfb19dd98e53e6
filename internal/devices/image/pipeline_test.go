// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package image

import (
	"io"
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

type chanSource struct {
	frames chan Frame
	once   sync.Once
	done   chan struct{}
}

func newChanSource() *chanSource {
	return &chanSource{frames: make(chan Frame, 16), done: make(chan struct{})}
}

func (s *chanSource) Start() error { return nil }

func (s *chanSource) Read() (Frame, error) {
	select {
	case frame := <-s.frames:
		return frame, nil
	case <-s.done:
		return nil, io.EOF
	}
}

func (s *chanSource) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

type fakeService struct {
	collects chan map[string]any
}

func (s *fakeService) LocalContext() core.Context { return core.Context{} }
func (s *fakeService) ServiceURL() string         { return "http://hub:9700" }
func (s *fakeService) LocalURL() string           { return "http://self:9700" }
func (s *fakeService) SendCommand(*core.Command, bool) error {
	return nil
}
func (s *fakeService) SendEnvelope(string, core.Envelope, map[string]string, time.Duration, bool) (*core.Response, error) {
	return core.Success("ok"), nil
}
func (s *fakeService) Collect(data map[string]any, _ *core.Context) { s.collects <- data }
func (s *fakeService) Peers() map[string]registry.Peer              { return nil }

var _ devices.Service = (*fakeService)(nil)

func testConfig() *config.Config {
	return &config.Config{
		Device: config.Device{
			Location: "porch",
			Group:    "outside",
			Image:    config.Image{MotionThreshold: 0.05, FramesPerSecond: 10},
		},
	}
}

func TestDeviceEmitsOnSceneChange(t *testing.T) {
	t.Parallel()
	source := newChanSource()
	device := New(testConfig(), source, NewFrameDiffDetector(0.05))
	service := &fakeService{collects: make(chan map[string]any, 8)}
	device.SetService(service)
	require.True(t, device.Start().IsSuccess())
	defer device.Stop()

	still := make(Frame, 64)
	moving := make(Frame, 64)
	for i := range moving {
		moving[i] = 0xFF
	}

	// Two identical frames establish the baseline, then the scene
	// changes.
	source.frames <- still
	source.frames <- still
	source.frames <- moving

	deadline := time.After(5 * time.Second)
	for {
		select {
		case data := <-service.collects:
			assert.Equal(t, "kenzy.image", data["type"])
			if motion, _ := data["motion"].(bool); motion {
				return
			}
		case <-deadline:
			t.Fatal("no motion event emitted")
		}
	}
}

func TestDeviceSuppressesUnchangedScenes(t *testing.T) {
	t.Parallel()
	source := newChanSource()
	device := New(testConfig(), source, NewFrameDiffDetector(0.05))
	service := &fakeService{collects: make(chan map[string]any, 8)}
	device.SetService(service)
	require.True(t, device.Start().IsSuccess())
	defer device.Stop()

	still := make(Frame, 64)
	for i := 0; i < 5; i++ {
		source.frames <- still
	}

	// The first detection establishes the scene; repeats are dropped.
	select {
	case <-service.collects:
	case <-time.After(5 * time.Second):
		t.Fatal("no initial event")
	}
	select {
	case data := <-service.collects:
		t.Fatalf("unexpected repeat event: %v", data)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestFrameDiffDetector(t *testing.T) {
	t.Parallel()
	detector := NewFrameDiffDetector(0.05)

	base := make(Frame, 100)
	first, err := detector.Detect(base)
	require.NoError(t, err)
	assert.False(t, first.Motion)

	same, err := detector.Detect(base)
	require.NoError(t, err)
	assert.False(t, same.Motion)

	changed := make(Frame, 100)
	for i := 0; i < 10; i++ {
		changed[i] = 1
	}
	moved, err := detector.Detect(changed)
	require.NoError(t, err)
	assert.True(t, moved.Motion)
}

func TestDeviceLifecycleIdempotent(t *testing.T) {
	t.Parallel()
	device := New(testConfig(), NewNullSource(), NewFrameDiffDetector(0.05))
	device.SetService(&fakeService{collects: make(chan map[string]any, 1)})

	require.True(t, device.Start().IsSuccess())
	require.True(t, device.Start().IsSuccess())
	assert.True(t, device.IsAlive())
	require.True(t, device.Stop().IsSuccess())
	require.True(t, device.Stop().IsSuccess())
	assert.False(t, device.IsAlive())
}
