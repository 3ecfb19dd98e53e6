// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package service

import (
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lnxusr1/kenzy/internal/core"
)

const (
	registerTick     = 500 * time.Millisecond
	registerInterval = 20 * time.Second
	registerTimeout  = 5 * time.Second
	rediscoverTries  = 3
)

// registerLoop keeps the hub's record of this node fresh. Re-sending
// the registration every 20 seconds is the fabric's only health
// signal; the hub never pings peers.
func (s *Service) registerLoop() {
	defer s.wg.Done()

	ticksPerInterval := int(registerInterval / registerTick)
	ticker := time.NewTicker(registerTick)
	defer ticker.Stop()

	// Register immediately so the hub learns about us without waiting
	// a full interval.
	s.registerWithHub()

	count := 0
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			count++
			if count >= ticksPerInterval {
				count = 0
				s.registerWithHub()
			}
		}
	}
}

// registerWithHub sends this node's current status to the hub as a
// register command. A failed send means the hub may have moved, so
// SSDP discovery is re-run before the next attempt.
func (s *Service) registerWithHub() {
	cmd := core.NewRegisterCommand()
	cmd.Set("url", s.localURL)

	for _, accepted := range s.device.Accepts() {
		if accepted == "status" {
			if st := s.device.Status(); st.IsSuccess() {
				if data, ok := st.Data.(map[string]any); ok {
					for name, value := range data {
						cmd.Set(name, value)
					}
				}
			}
			break
		}
	}

	resp, err := s.SendEnvelope(s.ServiceURL(), cmd.Envelope(), nil, registerTimeout, true)
	if err == nil && resp.IsSuccess() {
		return
	}
	slog.Warn("Failed to register with hub, retriggering discovery", "hub", s.ServiceURL(), "error", err)
	s.rediscover()
}

// rediscover re-runs SSDP client discovery with exponential backoff to
// recompute the hub URL after a failed registration.
func (s *Service) rediscover() {
	window := time.Duration(s.cfg.Service.UPNP.Timeout) * time.Second
	operation := func() error {
		url, err := s.discoverer.Discover(window)
		if err != nil {
			return err
		}
		if url != s.ServiceURL() {
			s.setServiceURL(url)
			slog.Info("Service URL set to " + url)
		}
		return nil
	}
	err := backoff.Retry(operation, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), rediscoverTries))
	if err != nil {
		slog.Error("SSDP rediscovery failed", "error", err)
	}
}
