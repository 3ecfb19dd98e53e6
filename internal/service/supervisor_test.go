// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSupervisorRestartsFlaggedDevice(t *testing.T) {
	t.Parallel()
	device := newTestDevice("kenzy.stt")
	device.alive.Store(true)
	s := newHubService(t, device)

	s.wg.Add(1)
	go s.restartWatcher()
	defer s.Stop(t.Context())

	// Simulate a worker hitting an unrecoverable error.
	device.RequestRestart()

	assert.Eventually(t, func() bool {
		return device.restarts.Load() == 1 && device.IsAlive() && !device.RestartRequested()
	}, 5*time.Second, 50*time.Millisecond)
}

func TestSupervisorLeavesHealthyDeviceAlone(t *testing.T) {
	t.Parallel()
	device := newTestDevice("kenzy.stt")
	device.alive.Store(true)
	s := newHubService(t, device)

	s.wg.Add(1)
	go s.restartWatcher()
	defer s.Stop(t.Context())

	time.Sleep(supervisorPoll * 3)
	assert.Zero(t, device.restarts.Load())
}
