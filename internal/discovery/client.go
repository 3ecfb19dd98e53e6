// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package discovery

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrNoServiceFound indicates that no Kenzy hub answered within the
	// discovery window.
	ErrNoServiceFound = errors.New("no service identified via SSDP")
	// ErrNoPresentationURL indicates the hub's device description had
	// no presentationURL element.
	ErrNoPresentationURL = errors.New("device description carries no presentationURL")
)

const locationFetchTimeout = 5 * time.Second

// Client locates the fabric hub by multicasting an M-SEARCH and
// resolving the presentationURL of the first Kenzy response.
type Client struct {
	// HTTPClient fetches candidate device descriptions; the default
	// applies a short timeout.
	HTTPClient *http.Client
}

// NewClient creates a discovery client with default settings.
func NewClient() *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: locationFetchTimeout},
	}
}

func searchMessage() []byte {
	return buildMessage("M-SEARCH * HTTP/1.1", [][2]string{
		{"HOST", multicastAddress},
		{"MAN", `"ssdp:discover"`},
		{"MX", "3"},
		{"ST", DeviceType},
	})
}

// Discover multicasts an M-SEARCH and collects unicast replies for the
// given window. Responses without the Kenzy service header are
// ignored; the first reply whose device description yields a
// presentationURL wins. On any failure the caller's configured service
// URL is left to stand.
func (c *Client) Discover(timeout time.Duration) (string, error) {
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrOpenSocket, err)
	}
	defer conn.Close()

	group, err := net.ResolveUDPAddr("udp4", multicastAddress)
	if err != nil {
		return "", fmt.Errorf("failed to resolve SSDP multicast address: %w", err)
	}
	if _, err := conn.WriteTo(searchMessage(), group); err != nil {
		return "", fmt.Errorf("failed to send M-SEARCH: %w", err)
	}

	slog.Debug("Waiting for SSDP responses", "window", timeout)

	deadline := time.Now().Add(timeout)
	buf := make([]byte, datagramSize)
	for time.Now().Before(deadline) {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return "", fmt.Errorf("failed to set read deadline: %w", err)
		}
		n, src, err := conn.ReadFrom(buf)
		if err != nil {
			break
		}
		headers := ParseHeaders(buf[:n])
		if headers[ServiceHeader] == "" {
			continue
		}
		location := headers["LOCATION"]
		if location == "" {
			continue
		}
		slog.Debug("SSDP response received", "src", src.String(), "location", location)
		url, err := c.resolveLocation(location)
		if err != nil {
			slog.Debug("Failed to resolve SSDP candidate", "location", location, "error", err)
			continue
		}
		return url, nil
	}

	return "", ErrNoServiceFound
}

func (c *Client) resolveLocation(location string) (string, error) {
	resp, err := c.HTTPClient.Get(location)
	if err != nil {
		return "", fmt.Errorf("failed to fetch device description: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("device description returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read device description: %w", err)
	}
	return ParsePresentationURL(body)
}

// ParsePresentationURL walks a UPnP device description and returns the
// text of the first presentationURL element.
func ParsePresentationURL(description []byte) (string, error) {
	decoder := xml.NewDecoder(strings.NewReader(string(description)))
	inPresentationURL := false
	for {
		token, err := decoder.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", ErrNoPresentationURL
			}
			return "", fmt.Errorf("failed to parse device description: %w", err)
		}
		switch t := token.(type) {
		case xml.StartElement:
			inPresentationURL = t.Name.Local == "presentationURL"
		case xml.CharData:
			if inPresentationURL {
				if url := strings.TrimSpace(string(t)); url != "" {
					return url, nil
				}
			}
		case xml.EndElement:
			inPresentationURL = false
		}
	}
}
