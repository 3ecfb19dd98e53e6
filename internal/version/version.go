// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package version

var (
	// GitCommit is stamped at build time via
	// -ldflags "-X github.com/lnxusr1/kenzy/internal/version.GitCommit=...".
	GitCommit = "unknown" //nolint:golint,gochecknoglobals

	// Version of the program.
	Version = "2.1.0" //nolint:golint,gochecknoglobals

	// AppName is the short program name used in templates and SSDP headers.
	AppName = "kenzy" //nolint:golint,gochecknoglobals

	// AppTitle is the display name used in templates and SSDP headers.
	AppTitle = "Kenzy" //nolint:golint,gochecknoglobals
)
