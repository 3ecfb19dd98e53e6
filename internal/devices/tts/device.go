// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

// Package tts implements the text-to-speech device. Renderings are
// cached by normalized text and speaker so repeated utterances play
// instantly; only cache misses hit the synthesizer.
package tts

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/lnxusr1/kenzy/internal/config"
	"github.com/lnxusr1/kenzy/internal/core"
	"github.com/lnxusr1/kenzy/internal/devices"
)

func init() {
	devices.Register(config.DeviceTypeTTS, func(cfg *config.Config) (devices.Device, error) {
		return New(cfg,
			NewCommandSynthesizer(cfg.Device.TTS.SynthCommand),
			NewCommandPlayer(cfg.Device.TTS.ExternalPlayer),
		), nil
	})
}

const generatingCue = "generating.wav"

// Device is the TTS device runtime.
type Device struct {
	*devices.Base
	cfg config.TTS

	synth  Synthesizer
	player Player

	running atomic.Bool
	// playMu serializes access to the audio output.
	playMu sync.Mutex
}

// New builds the device around explicit synthesis components; the
// registered constructor wires the defaults from config.
func New(cfg *config.Config, synth Synthesizer, player Player) *Device {
	d := &Device{
		Base:   devices.NewBase(string(config.DeviceTypeTTS), cfg.Device.Location, cfg.Device.Group),
		cfg:    cfg.Device.TTS,
		synth:  synth,
		player: player,
	}

	d.Handle("start", func(map[string]any, *core.Context) *core.Response { return d.Start() })
	d.Handle("stop", func(map[string]any, *core.Context) *core.Response { return d.Stop() })
	d.Handle("restart", func(map[string]any, *core.Context) *core.Response { return d.Restart() })
	d.Handle("status", func(map[string]any, *core.Context) *core.Response { return d.Status() })
	d.Handle("speak", d.speak)
	d.Handle("play", d.play)
	d.Handle("get_settings", func(map[string]any, *core.Context) *core.Response { return core.Success(d.cfg) })
	d.Handle("set_settings", func(map[string]any, *core.Context) *core.Response {
		return core.Failure("Not implemented")
	})

	return d
}

func (d *Device) IsAlive() bool {
	return d.running.Load()
}

func (d *Device) Start() *core.Response {
	if err := os.MkdirAll(expandHome(d.cfg.CacheFolder), 0o755); err != nil {
		return core.Failure("Unable to create speech cache: " + err.Error())
	}
	d.running.Store(true)
	return core.Success("Speaker started")
}

func (d *Device) Stop() *core.Response {
	d.running.Store(false)
	return core.Success("Speaker stopped")
}

func (d *Device) Restart() *core.Response {
	if resp := d.Stop(); !resp.IsSuccess() {
		return resp
	}
	return d.Start()
}

func (d *Device) Status() *core.Response {
	return core.Success(devices.StatusData(d, d.cfg, nil))
}

// speak renders text to speech. The normalized text plus speaker keys
// the WAV cache; a miss synthesizes while a short cue plays so the
// room knows the node heard.
func (d *Device) speak(payload map[string]any, _ *core.Context) *core.Response {
	if !d.running.Load() {
		return core.Failure("Device is stopped.")
	}
	text, _ := payload["text"].(string)
	if strings.TrimSpace(text) == "" {
		return core.Failure("Speak requires text.")
	}

	text = NormalizeText(text)
	slog.Debug("SPEAK " + strings.ReplaceAll(text, ":", "-"))

	fileName, err := CacheFileName(text, d.cfg.Speaker)
	if err != nil {
		return core.Failure(err.Error())
	}
	fullPath := filepath.Join(expandHome(d.cfg.CacheFolder), fileName)

	if _, err := os.Stat(fullPath); err != nil {
		// Cache miss. Let a background worker play the generating cue
		// while the synthesizer works.
		cueDone := make(chan struct{})
		go func() {
			defer close(cueDone)
			d.playFile(d.resolveAsset(generatingCue))
		}()

		wav, err := d.synth.Synthesize(text, d.cfg.Speaker)
		if err != nil {
			slog.Error("Unable to synthesize speech", "error", err)
			return core.Failure("Unable to synthesize speech.")
		}
		if err := os.WriteFile(fullPath, wav, 0o644); err != nil {
			slog.Error("Unable to cache speech segment", "path", fullPath, "error", err)
			return core.Failure("Unable to cache speech segment.")
		}
		slog.Debug("Cached speech segment", "path", fullPath)
		<-cueDone
	}

	if err := d.playFile(fullPath); err != nil {
		return core.Failure("Unable to play speech output.")
	}
	return core.Success("Complete")
}

// play plays a named cue or an absolute WAV path.
func (d *Device) play(payload map[string]any, _ *core.Context) *core.Response {
	fileName, _ := payload["file_name"].(string)
	if fileName == "" {
		return core.Failure("Play requires a file_name.")
	}
	if err := d.playFile(d.resolveAsset(fileName)); err != nil {
		return core.Failure("Unable to play file.")
	}
	return core.Success("Complete")
}

// resolveAsset maps a bare file name onto the asset folder; paths with
// separators pass through.
func (d *Device) resolveAsset(fileName string) string {
	if strings.ContainsAny(fileName, "/\\") {
		return expandHome(fileName)
	}
	return filepath.Join(expandHome(d.cfg.AssetFolder), fileName)
}

func (d *Device) playFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		slog.Debug("Audio file not found", "path", path)
		return err
	}
	d.playMu.Lock()
	defer d.playMu.Unlock()
	if err := d.player.Play(path); err != nil {
		slog.Error("Unable to play audio file", "path", path, "error", err)
		return err
	}
	return nil
}
