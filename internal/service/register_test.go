// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lnxusr1/kenzy/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterWithHubSendsStatusFields(t *testing.T) {
	t.Parallel()

	received := make(chan core.Envelope, 1)
	hub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env core.Envelope
		_ = json.NewDecoder(r.Body).Decode(&env)
		received <- env
		_ = json.NewEncoder(w).Encode(core.Success("Register completed successfully."))
	}))
	defer hub.Close()

	cfg := standaloneConfig()
	cfg.Service.ServiceURL = hub.URL
	device := newTestDevice("kenzy.stt")
	device.alive.Store(true)
	s := New(cfg, device, nil)
	require.False(t, s.IsHub())

	s.registerWithHub()

	select {
	case env := <-received:
		assert.Equal(t, "register", env.Action)
		assert.Equal(t, s.LocalURL(), env.Payload["url"])
		// Status fields ride along so the hub records capabilities.
		assert.Equal(t, "kenzy.stt", env.Payload["type"])
		assert.Equal(t, "kitchen", env.Payload["location"])
		assert.Equal(t, true, env.Payload["active"])
		assert.NotEmpty(t, env.Payload["accepts"])
	case <-timeAfter(t):
		t.Fatal("hub never received the registration")
	}
}

func TestDeregisterOnStop(t *testing.T) {
	t.Parallel()

	type seen struct {
		action string
		active any
	}
	received := make(chan seen, 4)
	hub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env core.Envelope
		_ = json.NewDecoder(r.Body).Decode(&env)
		received <- seen{action: env.Action, active: env.Payload["active"]}
		_ = json.NewEncoder(w).Encode(core.Success("ok"))
	}))
	defer hub.Close()

	cfg := standaloneConfig()
	cfg.Service.ServiceURL = hub.URL
	device := newTestDevice("kenzy.stt")
	device.alive.Store(true)
	s := New(cfg, device, nil)

	s.Stop(t.Context())

	select {
	case got := <-received:
		assert.Equal(t, "register", got.action)
		assert.Equal(t, false, got.active)
	case <-timeAfter(t):
		t.Fatal("hub never received the deregistration")
	}
}
