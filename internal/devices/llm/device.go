// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

// Package llm implements the fallback device: utterances no skill
// matched are relayed here by the hub, completed against a language
// model, and spoken back in the caller's location.
package llm

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/lnxusr1/kenzy/internal/config"
	"github.com/lnxusr1/kenzy/internal/core"
	"github.com/lnxusr1/kenzy/internal/devices"
)

func init() {
	devices.Register(config.DeviceTypeLLM, func(cfg *config.Config) (devices.Device, error) {
		return New(cfg, nil), nil
	})
}

// Completer generates a reply for a conversation. History alternates
// user and assistant turns, oldest first.
type Completer interface {
	Complete(history []string, text string) (string, error)
}

// Device is the fallback language-model device runtime.
type Device struct {
	*devices.Base
	cfg config.LLM

	completer Completer
	running   atomic.Bool

	mu      sync.Mutex
	history map[string][]string
}

// New builds the device. A nil completer leaves the device as a
// logging sink, which is enough for fabrics without a model node.
func New(cfg *config.Config, completer Completer) *Device {
	d := &Device{
		Base:      devices.NewBase(string(config.DeviceTypeLLM), cfg.Device.Location, cfg.Device.Group),
		cfg:       cfg.Device.LLM,
		completer: completer,
		history:   map[string][]string{},
	}

	d.Handle("start", func(map[string]any, *core.Context) *core.Response { return d.Start() })
	d.Handle("stop", func(map[string]any, *core.Context) *core.Response { return d.Stop() })
	d.Handle("restart", func(map[string]any, *core.Context) *core.Response { return d.Restart() })
	d.Handle("status", func(map[string]any, *core.Context) *core.Response { return d.Status() })
	d.Handle("fallback", d.fallback)
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
	d.running.Store(true)
	return core.Success("LLM started")
}

func (d *Device) Stop() *core.Response {
	d.running.Store(false)
	return core.Success("LLM stopped")
}

func (d *Device) Restart() *core.Response {
	if resp := d.Stop(); !resp.IsSuccess() {
		return resp
	}
	return d.Start()
}

func (d *Device) Status() *core.Response {
	d.mu.Lock()
	conversations := len(d.history)
	d.mu.Unlock()
	return core.Success(devices.StatusData(d, d.cfg, map[string]any{
		"conversations": conversations,
	}))
}

// fallback completes an unmatched utterance and speaks the reply back
// in the caller's location. Conversation history is kept per caller
// URL so rooms don't share context.
func (d *Device) fallback(payload map[string]any, ctx *core.Context) *core.Response {
	if !d.running.Load() {
		return core.Failure("Device is stopped.")
	}

	text, _ := payload["text"].(string)
	if text == "" {
		return core.Failure("Fallback requires text.")
	}

	if d.completer == nil {
		slog.Info("COMMAND RECEIVED", "text", text)
		return core.Success("Complete")
	}

	caller := "self"
	if ctx != nil && ctx.URL != "" {
		caller = ctx.URL
	}

	d.mu.Lock()
	history := append([]string(nil), d.history[caller]...)
	d.mu.Unlock()

	reply, err := d.completer.Complete(history, text)
	if err != nil {
		slog.Error("Completion failed", "error", err)
		return core.Failure("Completion failed.")
	}

	d.mu.Lock()
	turns := append(d.history[caller], text, reply)
	if max := d.cfg.MaxHistory * 2; max > 0 && len(turns) > max {
		turns = turns[len(turns)-max:]
	}
	d.history[caller] = turns
	d.mu.Unlock()

	if service := d.Service(); service != nil && ctx != nil {
		cmd := core.NewSpeakCommand(reply, ctx)
		if err := service.SendCommand(cmd, false); err != nil {
			slog.Debug("Failed to speak completion", "error", err)
		}
	}
	return core.Success(map[string]any{"text": reply})
}
