// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

// Package service implements the runtime every node shares: the HTTP
// endpoint, the command bus, peer registration, and the device
// supervisor. One Service wraps exactly one device.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lnxusr1/kenzy/internal/config"
	"github.com/lnxusr1/kenzy/internal/core"
	"github.com/lnxusr1/kenzy/internal/devices"
	"github.com/lnxusr1/kenzy/internal/discovery"
	"github.com/lnxusr1/kenzy/internal/metrics"
	"github.com/lnxusr1/kenzy/internal/registry"
)

const (
	defTimeout     = 10 * time.Second
	sendPoolSize   = 20
	collectTimeout = 2 * time.Second
	shutdownFlush  = 250 * time.Millisecond
)

// ErrBind indicates the HTTP endpoint could not be bound; the node
// cannot run without it.
var ErrBind = errors.New("failed to bind service endpoint")

// Service is a node of the fabric: the HTTP endpoint, the SSDP role,
// the command bus, and the wrapped device.
type Service struct {
	cfg      *config.Config
	device   devices.Device
	registry *registry.Registry
	metrics  *metrics.Metrics

	id       string
	localURL string

	urlMu      sync.RWMutex
	serviceURL string

	httpServer *http.Server
	listener   net.Listener

	ssdp       *discovery.Server
	discoverer *discovery.Client

	client *http.Client
	pool   chan struct{}

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	active   atomic.Bool
}

// New assembles a node around the given device. In client mode this
// blocks for up to the discovery window while the hub is located; a
// failed discovery leaves the node pointing at itself.
func New(cfg *config.Config, device devices.Device, m *metrics.Metrics) *Service {
	s := &Service{
		cfg:        cfg,
		device:     device,
		registry:   registry.New(),
		metrics:    m,
		id:         uuid.NewString(),
		discoverer: discovery.NewClient(),
		client:     &http.Client{},
		pool:       make(chan struct{}, sendPoolSize),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}

	scheme := "http"
	if cfg.Service.SSL.Enabled {
		scheme = "https"
	}
	host := cfg.Service.Host
	if host == "0.0.0.0" || host == "::" || host == "[::]" {
		host = localIPAddress()
	}
	s.localURL = fmt.Sprintf("%s://%s:%d", scheme, host, cfg.Service.Port)
	s.serviceURL = cfg.Service.ServiceURL

	switch cfg.Service.UPNP.Type {
	case config.UPNPModeServer:
		if s.serviceURL == "" {
			s.serviceURL = s.localURL
			slog.Info("Service URL set to " + s.serviceURL)
		}
		s.ssdp = discovery.NewServer(s.id, s.serviceURL+"/upnp.xml")
	case config.UPNPModeClient:
		if s.serviceURL == "" {
			s.resolveServiceURL()
		}
	case config.UPNPModeStandalone:
	}

	if s.ServiceURL() == "" {
		s.setServiceURL(s.localURL)
		slog.Info("Service URL set to " + s.localURL)
	}

	device.SetService(s)
	return s
}

// resolveServiceURL runs one SSDP discovery pass and adopts the
// result. Failures are logged and the current URL stands.
func (s *Service) resolveServiceURL() {
	window := time.Duration(s.cfg.Service.UPNP.Timeout) * time.Second
	url, err := s.discoverer.Discover(window)
	if err != nil {
		slog.Warn("SSDP discovery failed", "error", err)
		return
	}
	if url != s.ServiceURL() {
		s.setServiceURL(url)
		slog.Info("Service URL set to " + url)
	}
}

// ServiceURL returns the hub URL this node forwards to.
func (s *Service) ServiceURL() string {
	s.urlMu.RLock()
	defer s.urlMu.RUnlock()
	return s.serviceURL
}

func (s *Service) setServiceURL(url string) {
	s.urlMu.Lock()
	defer s.urlMu.Unlock()
	s.serviceURL = url
}

// LocalURL returns this node's own URL.
func (s *Service) LocalURL() string {
	return s.localURL
}

// IsHub reports whether this node is the fabric hub.
func (s *Service) IsHub() bool {
	return s.ServiceURL() == s.localURL
}

// LocalContext returns the routing context describing this node.
func (s *Service) LocalContext() core.Context {
	return core.Context{
		URL:      s.localURL,
		Type:     s.device.Type(),
		Location: s.device.Location(),
		Group:    s.device.Group(),
	}
}

// Peers snapshots the registry.
func (s *Service) Peers() map[string]registry.Peer {
	return s.registry.Snapshot()
}

// Start brings the node up: device, discovery, supervisor, the
// re-register loop on non-hub nodes, and finally the HTTP endpoint.
// A refused bind is fatal and returned to the caller.
func (s *Service) Start() error {
	if !s.device.IsAlive() {
		if resp := s.device.Start(); !resp.IsSuccess() {
			slog.Error("Device failed to start", "type", s.device.Type(), "errors", resp.Errors)
		}
	}

	if s.ssdp != nil {
		if err := s.ssdp.Start(); err != nil {
			slog.Error("Failed to start SSDP server", "error", err)
		}
	}

	s.wg.Add(1)
	go s.restartWatcher()

	if !s.IsHub() {
		s.wg.Add(1)
		go s.registerLoop()
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Service.Host, s.cfg.Service.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBind, err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.router(),
		ReadTimeout: defTimeout,
	}

	s.active.Store(true)
	slog.Info("Server started", "addr", addr, "url", s.localURL, "type", s.device.Type())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		var err error
		if s.cfg.Service.SSL.Enabled {
			err = s.httpServer.ServeTLS(listener, s.cfg.Service.SSL.CertFile, s.cfg.Service.SSL.KeyFile)
		} else {
			err = s.httpServer.Serve(listener)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
		}
	}()

	return nil
}

// ShutdownAsync schedules a full node stop on a background worker so
// the caller's HTTP response can flush first.
func (s *Service) ShutdownAsync() {
	go func() {
		time.Sleep(shutdownFlush)
		s.Stop(context.Background())
	}()
}

// Stop brings the node down: notify peers (hub only), stop discovery,
// background loops, the device, and the HTTP endpoint. Safe to call
// more than once.
func (s *Service) Stop(ctx context.Context) {
	s.stopOnce.Do(func() {
		slog.Info("Shutting down", "type", s.device.Type())
		s.active.Store(false)

		if s.IsHub() {
			s.shutdownPeers()
		} else {
			s.deregisterFromHub()
		}

		close(s.stopCh)

		if s.ssdp != nil {
			s.ssdp.Stop()
		}

		if s.device.IsAlive() {
			if resp := s.device.Stop(); !resp.IsSuccess() {
				slog.Error("Device failed to stop", "type", s.device.Type(), "errors", resp.Errors)
			}
		}

		if s.httpServer != nil {
			shutdownCtx, cancel := context.WithTimeout(ctx, defTimeout)
			defer cancel()
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("Failed to shutdown HTTP server", "error", err)
			}
		}

		s.wg.Wait()
		close(s.doneCh)
		slog.Info("Server stopped", "url", s.localURL)
	})
}

// shutdownPeers sends a best-effort shutdown command to every
// registered peer.
func (s *Service) shutdownPeers() {
	local := s.LocalContext()
	for _, url := range s.registry.URLs() {
		cmd := core.NewCommand("shutdown")
		cmd.Context = &local
		cmd.URL = url
		if _, err := s.SendEnvelope(url, cmd.Envelope(), nil, collectTimeout, true); err != nil {
			slog.Debug("Failed to send shutdown to peer", "url", url, "error", err)
		}
	}
}

// deregisterFromHub tells the hub this node is going away. Best
// effort; a crashed peer simply stays listed until the hub restarts.
func (s *Service) deregisterFromHub() {
	cmd := core.NewRegisterCommand()
	cmd.Set("url", s.localURL)
	cmd.Set("active", false)
	if _, err := s.SendEnvelope(s.ServiceURL(), cmd.Envelope(), nil, collectTimeout, true); err != nil {
		slog.Debug("Failed to deregister from hub", "error", err)
	}
}

// Done is closed once the node has fully stopped.
func (s *Service) Done() <-chan struct{} {
	return s.doneCh
}

// localIPAddress finds the address peers can reach this node on by
// opening a throwaway datagram socket toward the local network.
func localIPAddress() string {
	conn, err := net.Dial("udp4", "192.168.0.1:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "127.0.0.1"
	}
	return addr.IP.String()
}
