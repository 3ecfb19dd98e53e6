// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

// Package discovery implements the SSDP/UPnP layer that lets nodes
// find the fabric hub on the local network without configuration. The
// hub runs the server side and advertises itself; every other node
// runs the client side once at startup and again whenever the hub
// stops answering.
package discovery

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/lnxusr1/kenzy/internal/version"
)

// DeviceType is the UPnP notification type (NT/ST) of a Kenzy hub.
const DeviceType = "urn:schemas-upnp-org:device:Kenzy-Core:1"

// ServiceHeader discriminates Kenzy responses from other UPnP devices
// on the network; clients ignore replies without it.
const ServiceHeader = "X-KENZY-SERVICE"

const (
	multicastAddress = "239.255.255.250:1900"
	maxAge           = 1800
	datagramSize     = 2048
)

func serverName() string {
	return fmt.Sprintf("%s/%s UPnP/1.0 %s/%s", runtime.GOOS, version.Version, version.AppTitle, version.Version)
}

// buildMessage renders an SSDP request or response. Header order is
// preserved so the wire format stays stable for tests and packet
// captures.
func buildMessage(startLine string, headers [][2]string) []byte {
	var b strings.Builder
	b.WriteString(startLine)
	b.WriteString("\r\n")
	for _, h := range headers {
		b.WriteString(h[0])
		b.WriteString(": ")
		b.WriteString(h[1])
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}

// ParseHeaders extracts the header fields of an SSDP datagram into a
// map keyed by upper-cased header name. The start line is skipped.
func ParseHeaders(datagram []byte) map[string]string {
	headers := map[string]string{}
	for _, line := range strings.Split(string(datagram), "\n") {
		name, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		headers[strings.ToUpper(strings.TrimSpace(name))] = strings.Trim(value, "\r ")
	}
	return headers
}
