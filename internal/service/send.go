// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/lnxusr1/kenzy/internal/core"
)

// SendCommand is the outbound half of the command bus. A command with
// an explicit URL goes straight there; one whose context names a
// location fans out to every active peer there that accepts the
// action; anything else goes to the hub. The pre chain runs once,
// then the primary delivery (however many peers it fans out to), then
// the post chain once — a failed leg never aborts the chain, but the
// composite result only succeeds when every leg did.
func (s *Service) SendCommand(cmd *core.Command, wait bool) error {
	local := s.LocalContext()
	cmd.SetContext(&local, false)

	var result *multierror.Error

	for _, pre := range cmd.Pre {
		pre.SetContext(cmd.Context, false)
		pre.Timeout = cmd.Timeout
		if err := s.sendLeg(pre, wait); err != nil {
			result = multierror.Append(result, fmt.Errorf("pre %s: %w", pre.Action, err))
		}
	}

	if err := s.sendLeg(cmd, wait); err != nil {
		result = multierror.Append(result, err)
	}

	// Post legs run even when the primary failed: a mute that went out
	// must still be balanced by its unmute.
	for _, post := range cmd.Post {
		post.SetContext(cmd.Context, false)
		post.Timeout = cmd.Timeout
		if err := s.sendLeg(post, wait); err != nil {
			result = multierror.Append(result, fmt.Errorf("post %s: %w", post.Action, err))
		}
	}

	return result.ErrorOrNil()
}

// sendLeg delivers one action: the primary command or a single chain
// leg. Without a URL it fans out by location (the speak chain relies
// on this: its mute reaches every listener in the room, and a speak
// reaches every speaker there).
func (s *Service) sendLeg(cmd *core.Command, wait bool) error {
	if cmd.URL == "" && cmd.Context != nil && cmd.Context.Location != "" {
		peers := s.registry.Match(cmd.Context.Location, cmd.Action)
		if len(peers) == 0 {
			return fmt.Errorf("no peer in location %q accepts %q", cmd.Context.Location, cmd.Action)
		}
		var result *multierror.Error
		for _, peer := range peers {
			s.metrics.RecordForward(cmd.Action)
			if resp, err := s.SendEnvelope(peer.URL, cmd.Envelope(), nil, cmd.Timeout, wait); err != nil {
				result = multierror.Append(result, err)
			} else if wait && !resp.IsSuccess() {
				result = multierror.Append(result, fmt.Errorf("%s rejected %s: %s", peer.URL, cmd.Action, resp.Errors))
			}
		}
		return result.ErrorOrNil()
	}

	url := cmd.URL
	if url == "" {
		url = s.ServiceURL()
	}
	s.metrics.RecordForward(cmd.Action)
	resp, err := s.SendEnvelope(url, cmd.Envelope(), nil, cmd.Timeout, wait)
	if err != nil {
		return err
	}
	if wait && !resp.IsSuccess() {
		return fmt.Errorf("%s rejected %s: %s", url, cmd.Action, resp.Errors)
	}
	return nil
}

// SendEnvelope posts one envelope to a URL. Transport failures are
// logged and returned as errors, never panics; with wait false the
// send runs on the bounded worker pool and the returned response is
// nil.
func (s *Service) SendEnvelope(url string, env core.Envelope, headers map[string]string, timeout time.Duration, wait bool) (*core.Response, error) {
	if env.Context == nil {
		local := s.LocalContext()
		env.Context = &local
	}
	if !wait {
		s.pool <- struct{}{}
		go func() {
			defer func() { <-s.pool }()
			if _, err := s.post(url, env, headers, timeout); err != nil {
				slog.Error("Request failed", "url", url, "action", env.Action, "error", err)
			}
		}()
		return nil, nil
	}
	return s.post(url, env, headers, timeout)
}

func (s *Service) post(url string, env core.Envelope, headers map[string]string, timeout time.Duration) (*core.Response, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	token := s.cfg.Service.APIKey
	if token == "" {
		token = uuid.NewString()
	}
	req.Header.Set("Authorization", "Bearer "+token)
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Error("Request connection error", "url", url, "action", env.Action)
		slog.Debug("Request error detail", "error", err)
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	var decoded core.Response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	slog.Debug("Response received", "url", url, "action", env.Action, "status", decoded.Status)
	return &decoded, nil
}

// Collect forwards a collect event toward the hub. On the hub itself
// the event goes straight to the local device. Delivery is
// fire-and-forget with a short timeout; a lost event is not worth
// stalling the capture pipeline for.
func (s *Service) Collect(data map[string]any, ctx *core.Context) {
	s.metrics.RecordCollect()
	if ctx == nil {
		local := s.LocalContext()
		ctx = &local
	}

	if !s.IsHub() {
		env := core.Envelope{Action: "collect", Payload: data, Context: ctx}
		if _, err := s.SendEnvelope(s.ServiceURL(), env, nil, collectTimeout, false); err != nil {
			slog.Error("Failed to queue collect", "error", err)
		}
		return
	}

	for _, accepted := range s.device.Accepts() {
		if accepted == "collect" {
			s.device.Do("collect", data, ctx)
			return
		}
	}
	slog.Debug("Collect dropped, device does not accept it", "data", data)
}
