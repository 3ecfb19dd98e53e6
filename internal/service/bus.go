// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package service

import (
	"strings"

	"github.com/lnxusr1/kenzy/internal/core"
	"github.com/lnxusr1/kenzy/internal/registry"
)

// Command is the inbound half of the command bus: it decodes one
// envelope into a local action. register and shutdown are handled by
// the node itself; every other verb is dispatched to the device when
// its accepts set contains it.
func (s *Service) Command(action string, payload map[string]any, ctx *core.Context) *core.Response {
	if ctx == nil {
		ctx = &core.Context{}
	}
	action = strings.ToLower(strings.TrimSpace(action))

	switch action {
	case "register":
		resp := s.handleRegister(payload, ctx)
		s.metrics.RecordCommand(action, resp.Status)
		return resp
	case "shutdown":
		// The stop runs on a background worker so this reply flushes
		// before the endpoint goes away.
		s.ShutdownAsync()
		s.metrics.RecordCommand(action, core.StatusSuccess)
		return core.Success("Shutdown commencing.")
	}

	for _, accepted := range s.device.Accepts() {
		if accepted == action {
			resp := s.device.Do(action, payload, ctx)
			if resp == nil {
				resp = core.Failure("Unrecognized response from device.")
			}
			s.metrics.RecordCommand(action, resp.Status)
			return resp
		}
	}

	s.metrics.RecordCommand(action, core.StatusFailed)
	return core.Failure("Unrecognized command")
}

// handleRegister records the calling peer on the hub. On a non-hub
// node a register command re-triggers this node's own registration
// with the hub instead.
func (s *Service) handleRegister(payload map[string]any, _ *core.Context) *core.Response {
	if !s.IsHub() {
		go s.registerWithHub()
		return core.Success("Register completed successfully.")
	}

	peer := peerFromPayload(payload)
	if peer.URL == "" {
		return core.Failure("Register requires a url.")
	}
	// A register with active=false is the peer's going-away notice;
	// that is the only eviction path (no TTL sweep).
	if !peer.Active {
		if _, known := s.registry.Get(peer.URL); known {
			s.registry.Remove(peer.URL)
			s.metrics.SetPeersRegistered(float64(s.registry.Len()))
			return core.Success("Register completed successfully.")
		}
	}
	s.registry.Register(peer)
	s.metrics.SetPeersRegistered(float64(s.registry.Len()))
	return core.Success("Register completed successfully.")
}

func peerFromPayload(payload map[string]any) registry.Peer {
	peer := registry.Peer{}
	if payload == nil {
		return peer
	}
	peer.URL, _ = payload["url"].(string)
	peer.Type, _ = payload["type"].(string)
	peer.Location, _ = payload["location"].(string)
	peer.Group, _ = payload["group"].(string)
	peer.Version, _ = payload["version"].(string)
	peer.Active, _ = payload["active"].(bool)
	if accepts, ok := payload["accepts"].([]any); ok {
		for _, item := range accepts {
			if action, ok := item.(string); ok {
				peer.Accepts = append(peer.Accepts, action)
			}
		}
	} else if accepts, ok := payload["accepts"].([]string); ok {
		peer.Accepts = append(peer.Accepts, accepts...)
	}
	return peer
}
