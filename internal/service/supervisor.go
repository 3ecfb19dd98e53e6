// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package service

import (
	"log/slog"
	"time"
)

const (
	supervisorPoll  = 500 * time.Millisecond
	restartCooldown = 2 * time.Second

	// maxRestartFailures bounds consecutive failed restarts. The
	// upstream design leaves this unbounded; five in a row means the
	// fault is not transient and supervision stops until the node is
	// restarted.
	maxRestartFailures = 5
)

// restartWatcher polls the device's restart flag. Device workers set
// the flag when they hit an unrecoverable error; the watcher is the
// only component that calls Restart from outside the device.
func (s *Service) restartWatcher() {
	defer s.wg.Done()

	failures := 0
	for {
		select {
		case <-s.stopCh:
			return
		case <-time.After(supervisorPoll):
		}

		if !s.device.RestartRequested() {
			continue
		}

		// Give the failed workers a moment to unwind before relaunch.
		select {
		case <-s.stopCh:
			return
		case <-time.After(restartCooldown):
		}

		slog.Info("Restart flag identified, restarting device", "type", s.device.Type())
		resp := s.device.Restart()
		s.metrics.RecordRestart()

		// The flag is cleared only on success, so a failed restart is
		// retried on the next poll until the bound is reached.
		if resp.IsSuccess() {
			s.device.ClearRestartRequest()
			failures = 0
			continue
		}

		failures++
		slog.Error("Device restart failed", "type", s.device.Type(), "errors", resp.Errors, "failures", failures)
		if failures >= maxRestartFailures {
			slog.Error("Too many consecutive restart failures, supervision disabled", "type", s.device.Type())
			return
		}
	}
}
