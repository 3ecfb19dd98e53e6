// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

// Package stt implements the speech-to-text device: a staged capture
// pipeline that segments live audio on voice activity, gates on the
// wake word, transcribes closed segments, and emits the text to the
// hub as collect events.
package stt

import (
	"sync"
	"sync/atomic"

	"github.com/lnxusr1/kenzy/internal/config"
	"github.com/lnxusr1/kenzy/internal/core"
	"github.com/lnxusr1/kenzy/internal/devices"
)

func init() {
	devices.Register(config.DeviceTypeSTT, func(cfg *config.Config) (devices.Device, error) {
		return New(cfg,
			NewCommandSource(cfg.Device.STT.CaptureCommand, cfg.Device.STT.FrameLength),
			NewEnergyVAD(cfg.Device.STT.VADAggressiveness),
			NewWakeDetector(cfg.Device.STT.WakeModel),
			NewCommandRecognizer(cfg.Device.STT.RecognizeCommand, cfg.Device.STT.Model),
		), nil
	})
}

// Device is the STT device runtime.
type Device struct {
	*devices.Base
	cfg config.STT

	source     Source
	vad        VAD
	wake       WakeDetector
	recognizer Recognizer

	mu    sync.Mutex
	pipe  *pipeline
	muted atomic.Bool
}

// New builds the device around explicit pipeline components; the
// registered constructor wires the defaults from config.
func New(cfg *config.Config, source Source, vad VAD, wake WakeDetector, recognizer Recognizer) *Device {
	d := &Device{
		Base:       devices.NewBase(string(config.DeviceTypeSTT), cfg.Device.Location, cfg.Device.Group),
		cfg:        cfg.Device.STT,
		source:     source,
		vad:        vad,
		wake:       wake,
		recognizer: recognizer,
	}

	d.Handle("start", func(map[string]any, *core.Context) *core.Response { return d.Start() })
	d.Handle("stop", func(map[string]any, *core.Context) *core.Response { return d.Stop() })
	d.Handle("restart", func(map[string]any, *core.Context) *core.Response { return d.Restart() })
	d.Handle("status", func(map[string]any, *core.Context) *core.Response { return d.Status() })
	d.Handle("mute", d.mute)
	d.Handle("unmute", d.unmute)
	d.Handle("get_settings", d.getSettings)
	d.Handle("set_settings", func(map[string]any, *core.Context) *core.Response {
		return core.Failure("Not implemented")
	})

	return d
}

// IsAlive reports whether the pipeline workers are running.
func (d *Device) IsAlive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pipe != nil && d.pipe.alive()
}

// Start spawns the pipeline workers. Starting a running device is a
// success without side effects.
func (d *Device) Start() *core.Response {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pipe != nil && d.pipe.alive() {
		return core.Success("Audio processor already running")
	}

	pipe := newPipeline(d.cfg, d.source, d.vad, d.wake, d.recognizer,
		&d.muted, d.emitText, d.RequestRestart)
	if err := pipe.start(); err != nil {
		return core.Failure("Unable to start audio processor: " + err.Error())
	}
	d.pipe = pipe
	return core.Success("Audio processor started")
}

// Stop winds the pipeline down and joins its workers.
func (d *Device) Stop() *core.Response {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pipe == nil {
		return core.Success("Audio processor is not running")
	}
	d.pipe.shutdown()
	d.pipe = nil
	return core.Success("Audio processor stopped")
}

// Restart stops then starts the pipeline, reporting failure if either
// leg failed.
func (d *Device) Restart() *core.Response {
	if resp := d.Stop(); !resp.IsSuccess() {
		return resp
	}
	return d.Start()
}

// Status reports the device state, including the mute flag.
func (d *Device) Status() *core.Response {
	return core.Success(devices.StatusData(d, d.cfg, map[string]any{
		"muted": d.muted.Load(),
	}))
}

// mute discards frames at the capture stage so no collect events
// originate until unmute. Used by the speak chain to prevent
// self-hearing.
func (d *Device) mute(map[string]any, *core.Context) *core.Response {
	d.muted.Store(true)
	return core.Success("Muted")
}

func (d *Device) unmute(map[string]any, *core.Context) *core.Response {
	d.muted.Store(false)
	return core.Success("Unmuted")
}

func (d *Device) getSettings(map[string]any, *core.Context) *core.Response {
	return core.Success(d.cfg)
}

func (d *Device) emitText(text string) {
	service := d.Service()
	if service == nil {
		return
	}
	service.Collect(map[string]any{
		"type": string(config.DeviceTypeSTT),
		"text": text,
	}, nil)
}
