// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package devices

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/lnxusr1/kenzy/internal/core"
	"github.com/lnxusr1/kenzy/internal/version"
)

// Handler executes one device verb.
type Handler func(payload map[string]any, ctx *core.Context) *core.Response

// Base carries the state shared by every device type: routing labels,
// the service back-reference, the restart flag, and the verb dispatch
// table. Device types embed it and register their verbs at
// construction time.
type Base struct {
	deviceType string
	location   string
	group      string

	mu      sync.RWMutex
	service Service
	verbs   map[string]Handler

	restartRequested atomic.Bool
}

// NewBase creates the shared device state.
func NewBase(deviceType, location, group string) *Base {
	return &Base{
		deviceType: deviceType,
		location:   location,
		group:      group,
		verbs:      map[string]Handler{},
	}
}

// Handle registers a verb handler. Registered verbs make up the
// device's accepts set.
func (b *Base) Handle(action string, handler Handler) {
	b.verbs[action] = handler
}

// Type returns the device-type string (e.g. kenzy.stt).
func (b *Base) Type() string { return b.deviceType }

// Location returns the configured room label.
func (b *Base) Location() string { return b.location }

// Group returns the configured zone label.
func (b *Base) Group() string { return b.group }

// Accepts lists the verbs the device dispatches, sorted for stable
// status output.
func (b *Base) Accepts() []string {
	accepts := make([]string, 0, len(b.verbs))
	for action := range b.verbs {
		accepts = append(accepts, action)
	}
	sort.Strings(accepts)
	return accepts
}

// Do dispatches an accepted verb to its handler.
func (b *Base) Do(action string, payload map[string]any, ctx *core.Context) *core.Response {
	handler, ok := b.verbs[action]
	if !ok {
		return core.Failure("Unrecognized command")
	}
	return handler(payload, ctx)
}

// SetService wires the node runtime into the device.
func (b *Base) SetService(service Service) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.service = service
}

// Service returns the wired node runtime, or nil before SetService.
func (b *Base) Service() Service {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.service
}

// RequestRestart flags the device for a supervisor restart. Device
// workers call this when they hit an unrecoverable error.
func (b *Base) RequestRestart() {
	b.restartRequested.Store(true)
}

// RestartRequested reports whether a restart has been requested.
func (b *Base) RestartRequested() bool {
	return b.restartRequested.Load()
}

// ClearRestartRequest resets the restart flag; called by the
// supervisor once the restart ran.
func (b *Base) ClearRestartRequest() {
	b.restartRequested.Store(false)
}

// StatusData assembles the common status payload for a device.
func StatusData(d Device, settings any, data map[string]any) map[string]any {
	if data == nil {
		data = map[string]any{}
	}
	return map[string]any{
		"active":   d.IsAlive(),
		"type":     d.Type(),
		"accepts":  d.Accepts(),
		"location": d.Location(),
		"group":    d.Group(),
		"version":  version.Version,
		"info":     fmt.Sprintf("%s %s (%s/%s)", version.AppTitle, version.Version, runtime.GOOS, runtime.GOARCH),
		"settings": settings,
		"data":     data,
	}
}
