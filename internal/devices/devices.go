// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

// Package devices defines the uniform contract every device type
// implements and the build-time registry mapping a device-type string
// to its constructor. The set of devices is sealed: stt, tts,
// skillmanager, image, and llm register themselves from their package
// init functions.
package devices

import (
	"errors"
	"fmt"
	"time"

	"github.com/lnxusr1/kenzy/internal/config"
	"github.com/lnxusr1/kenzy/internal/core"
	"github.com/lnxusr1/kenzy/internal/registry"
)

// ErrUnknownDeviceType indicates a device type with no registered
// constructor.
var ErrUnknownDeviceType = errors.New("unknown device type")

// Service is the slice of the node runtime a device may call back
// into: building outbound commands, forwarding collect events, and
// reading the fabric state.
type Service interface {
	// LocalContext returns the node's own routing context.
	LocalContext() core.Context
	// ServiceURL returns the hub's URL (the node's own URL on the hub).
	ServiceURL() string
	// LocalURL returns this node's URL.
	LocalURL() string
	// SendCommand routes a command through the bus: explicit URL,
	// location fan-out, or the hub default, with pre/post chains.
	SendCommand(cmd *core.Command, wait bool) error
	// SendEnvelope posts a raw envelope to a URL. With wait false the
	// send is queued on the worker pool and the response is nil.
	SendEnvelope(url string, env core.Envelope, headers map[string]string, timeout time.Duration, wait bool) (*core.Response, error)
	// Collect forwards a collect event to the hub, or to the local
	// device when this node is the hub.
	Collect(data map[string]any, ctx *core.Context)
	// Peers snapshots the registry (empty on non-hub nodes).
	Peers() map[string]registry.Peer
}

// Device is the uniform contract of a device runtime. Start, Stop, and
// Restart are idempotent; Do dispatches the device's own verbs.
type Device interface {
	Type() string
	Location() string
	Group() string
	Accepts() []string
	IsAlive() bool
	Start() *core.Response
	Stop() *core.Response
	Restart() *core.Response
	Status() *core.Response
	Do(action string, payload map[string]any, ctx *core.Context) *core.Response
	// RestartRequested reports the flag a device worker sets when it
	// hits an unrecoverable error. Only the supervisor may act on it.
	RestartRequested() bool
	ClearRestartRequest()
	SetService(Service)
}

// Constructor builds a device from the node configuration.
type Constructor func(cfg *config.Config) (Device, error)

//nolint:golint,gochecknoglobals
var constructors = map[config.DeviceType]Constructor{}

// Register binds a device type to its constructor. Called from device
// package init functions.
func Register(deviceType config.DeviceType, constructor Constructor) {
	constructors[deviceType] = constructor
}

// New builds the device for the given type.
func New(deviceType config.DeviceType, cfg *config.Config) (Device, error) {
	constructor, ok := constructors[deviceType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDeviceType, deviceType)
	}
	return constructor(cfg)
}
