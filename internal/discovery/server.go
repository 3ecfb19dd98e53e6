// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package discovery

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"golang.org/x/net/ipv4"
)

const notifyInterval = 30 * time.Second

var (
	// ErrNoInterface indicates that no network interface could join the
	// SSDP multicast group.
	ErrNoInterface = errors.New("unable to find a network interface for the multicast group")
	// ErrOpenSocket indicates the SSDP UDP socket could not be bound.
	ErrOpenSocket = errors.New("error opening SSDP socket")
)

// Server advertises the hub on the SSDP multicast group. It answers
// M-SEARCH probes with a unicast response and emits a NOTIFY
// ssdp:alive every 30 seconds; Stop sends a single ssdp:byebye.
type Server struct {
	usn        string
	serviceURL string

	mu        sync.Mutex
	conn      net.PacketConn
	pconn     *ipv4.PacketConn
	scheduler gocron.Scheduler
	stopped   chan struct{}
	wg        sync.WaitGroup
	started   bool
}

// NewServer creates an SSDP server advertising the given UPnP
// description URL (the hub's /upnp.xml) under the given device UUID.
func NewServer(uuid, locationURL string) *Server {
	return &Server{
		usn:        fmt.Sprintf("uuid:%s::%s", uuid, DeviceType),
		serviceURL: locationURL,
	}
}

func (s *Server) notifyMessage(nts string) []byte {
	return buildMessage("NOTIFY * HTTP/1.1", [][2]string{
		{"HOST", multicastAddress},
		{"CACHE-CONTROL", fmt.Sprintf("max-age=%d", maxAge)},
		{"LOCATION", s.serviceURL},
		{"NT", DeviceType},
		{"NTS", nts},
		{"SERVER", serverName()},
		{"USN", s.usn},
		{ServiceHeader, "core"},
	})
}

func (s *Server) searchResponse() []byte {
	return buildMessage("HTTP/1.1 200 OK", [][2]string{
		{"CACHE-CONTROL", fmt.Sprintf("max-age=%d", maxAge)},
		{"DATE", time.Now().UTC().Format(time.RFC1123)},
		{"EXT", ""},
		{"LOCATION", s.serviceURL},
		{"SERVER", serverName()},
		{"ST", DeviceType},
		{"USN", s.usn},
		{ServiceHeader, "core"},
	})
}

// AnswersSearchTarget reports whether an M-SEARCH with the given ST
// header should be answered.
func AnswersSearchTarget(st string) bool {
	st = strings.Trim(strings.TrimSpace(st), `"`)
	return strings.EqualFold(st, "ssdp:all") || strings.EqualFold(st, DeviceType)
}

// Start joins the multicast group and begins answering searches.
// Calling Start on a running server is a no-op.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		slog.Info("SSDP server is already running")
		return nil
	}

	conn, err := net.ListenPacket("udp4", "0.0.0.0:1900")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOpenSocket, err)
	}

	pconn := ipv4.NewPacketConn(conn)
	if err := pconn.SetMulticastLoopback(true); err != nil {
		slog.Debug("Failed to enable multicast loopback", "error", err)
	}

	group := net.IPv4(239, 255, 255, 250)
	joined := false
	interfaces, err := net.Interfaces()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to list network interfaces: %w", err)
	}
	for i := range interfaces {
		iface := interfaces[i]
		if iface.Flags&net.FlagMulticast == 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if err := pconn.JoinGroup(&iface, &net.UDPAddr{IP: group}); err != nil {
			slog.Debug("Failed to join multicast group", "interface", iface.Name, "error", err)
			continue
		}
		joined = true
	}
	if !joined {
		conn.Close()
		return ErrNoInterface
	}

	s.conn = conn
	s.pconn = pconn
	s.stopped = make(chan struct{})
	s.started = true

	s.wg.Add(1)
	go s.read()

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		slog.Error("Failed to create SSDP notify scheduler", "error", err)
	} else {
		_, err = scheduler.NewJob(
			gocron.DurationJob(notifyInterval),
			gocron.NewTask(func() { s.notify("ssdp:alive") }),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			slog.Error("Failed to schedule SSDP notify job", "error", err)
		}
		scheduler.Start()
		s.scheduler = scheduler
	}

	slog.Info("SSDP server listening", "group", multicastAddress)
	return nil
}

func (s *Server) notify(nts string) {
	addr, err := net.ResolveUDPAddr("udp4", multicastAddress)
	if err != nil {
		slog.Error("Failed to resolve SSDP multicast address", "error", err)
		return
	}
	if _, err := s.conn.WriteTo(s.notifyMessage(nts), addr); err != nil {
		slog.Debug("Failed to send SSDP notify", "nts", nts, "error", err)
	}
}

func (s *Server) read() {
	defer s.wg.Done()
	buf := make([]byte, datagramSize)
	for {
		n, src, err := s.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-s.stopped:
			default:
				slog.Debug("SSDP read error", "error", err)
			}
			return
		}
		if n == 0 {
			continue
		}
		s.handle(buf[:n], src)
	}
}

func (s *Server) handle(datagram []byte, src net.Addr) {
	if !strings.HasPrefix(string(datagram), "M-SEARCH") {
		return
	}
	headers := ParseHeaders(datagram)
	if !AnswersSearchTarget(headers["ST"]) {
		return
	}
	if _, err := s.conn.WriteTo(s.searchResponse(), src); err != nil {
		slog.Debug("Failed to answer M-SEARCH", "src", src.String(), "error", err)
	}
}

// Stop emits ssdp:byebye and closes the socket. Calling Stop on a
// stopped server is a no-op.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		slog.Info("SSDP server is not currently running")
		return
	}

	if s.scheduler != nil {
		if err := s.scheduler.Shutdown(); err != nil {
			slog.Error("Failed to stop SSDP notify scheduler", "error", err)
		}
		s.scheduler = nil
	}

	s.notify("ssdp:byebye")
	close(s.stopped)
	s.conn.Close()
	s.wg.Wait()
	s.conn = nil
	s.pconn = nil
	s.started = false
	slog.Info("SSDP server stopped")
}
