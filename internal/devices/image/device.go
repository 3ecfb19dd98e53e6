// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

// Package image implements the vision device: a staged capture
// pipeline in the same shape as the speech one that emits collect
// events when the observed scene changes.
package image

import (
	"sync"

	"github.com/lnxusr1/kenzy/internal/config"
	"github.com/lnxusr1/kenzy/internal/core"
	"github.com/lnxusr1/kenzy/internal/devices"
)

func init() {
	devices.Register(config.DeviceTypeImage, func(cfg *config.Config) (devices.Device, error) {
		return New(cfg, NewNullSource(), NewFrameDiffDetector(cfg.Device.Image.MotionThreshold)), nil
	})
}

// Device is the image device runtime.
type Device struct {
	*devices.Base
	cfg config.Image

	source   Source
	detector Detector

	mu   sync.Mutex
	pipe *pipeline
}

// New builds the device around explicit pipeline components; the
// registered constructor wires the defaults from config.
func New(cfg *config.Config, source Source, detector Detector) *Device {
	d := &Device{
		Base:     devices.NewBase(string(config.DeviceTypeImage), cfg.Device.Location, cfg.Device.Group),
		cfg:      cfg.Device.Image,
		source:   source,
		detector: detector,
	}

	d.Handle("start", func(map[string]any, *core.Context) *core.Response { return d.Start() })
	d.Handle("stop", func(map[string]any, *core.Context) *core.Response { return d.Stop() })
	d.Handle("restart", func(map[string]any, *core.Context) *core.Response { return d.Restart() })
	d.Handle("status", func(map[string]any, *core.Context) *core.Response { return d.Status() })
	d.Handle("get_settings", func(map[string]any, *core.Context) *core.Response { return core.Success(d.cfg) })
	d.Handle("set_settings", func(map[string]any, *core.Context) *core.Response {
		return core.Failure("Not implemented")
	})

	return d
}

func (d *Device) IsAlive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pipe != nil && d.pipe.alive()
}

func (d *Device) Start() *core.Response {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pipe != nil && d.pipe.alive() {
		return core.Success("Video processor already running")
	}
	pipe := newPipeline(d.source, d.detector, d.emit, d.RequestRestart)
	if err := pipe.start(); err != nil {
		return core.Failure("Unable to start video processor: " + err.Error())
	}
	d.pipe = pipe
	return core.Success("Video processor started")
}

func (d *Device) Stop() *core.Response {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pipe == nil {
		return core.Success("Video processor is not running")
	}
	d.pipe.shutdown()
	d.pipe = nil
	return core.Success("Video processor stopped")
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

func (d *Device) emit(detection Detection) {
	service := d.Service()
	if service == nil {
		return
	}
	service.Collect(map[string]any{
		"type":    string(config.DeviceTypeImage),
		"motion":  detection.Motion,
		"objects": detection.Objects,
		"faces":   detection.Faces,
	}, nil)
}
