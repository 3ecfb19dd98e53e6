// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package service

import (
	"embed"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lnxusr1/kenzy/internal/core"
	"github.com/lnxusr1/kenzy/internal/version"
)

// FS is the embedded admin tree served on GET requests.
//
//go:embed web/*
var FS embed.FS

const unsupportedRequestPage = `<html><head><title>Error: Unsupported Request</title></head><body>` +
	`<h1>Unsupported Request</h1><p>Please use POST for data transmission.</p></body></html>`

func (s *Service) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/*any", s.handleAPI)
	r.GET("/*any", s.handleStatic)

	return r
}

// authenticate checks the Authorization header against the configured
// api key. An empty configured key disables authentication (kept from
// the original behavior; see DESIGN.md).
func (s *Service) authenticate(header string) bool {
	if s.cfg.Service.APIKey == "" {
		return true
	}
	token := header
	if len(token) >= 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.Trim(strings.TrimSpace(token[7:]), `"'`)
	}
	return token == s.cfg.Service.APIKey
}

func (s *Service) handleAPI(c *gin.Context) {
	if !s.authenticate(c.GetHeader("Authorization")) {
		c.JSON(http.StatusOK, core.Failure("Unauthorized"))
		return
	}

	var envelope core.Envelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		c.String(http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	if strings.TrimSpace(envelope.Action) == "" {
		c.JSON(http.StatusOK, core.Failure("Unrecognized request"))
		return
	}

	response := s.Command(envelope.Action, envelope.Payload, envelope.Context)
	c.JSON(http.StatusOK, response)
}

func (s *Service) handleStatic(c *gin.Context) {
	requestPath := c.Param("any")

	// Non-hub nodes bounce browsers to the hub's admin pages.
	if s.localURL != s.ServiceURL() && !strings.HasPrefix(strings.ToLower(requestPath), "/api/") {
		c.Redirect(http.StatusFound, strings.TrimRight(s.ServiceURL(), "/")+requestPath)
		return
	}

	lower := strings.ToLower(requestPath)
	if lower == "/" || lower == "/admin" || strings.HasPrefix(lower, "/admin/") {
		c.Redirect(http.StatusFound, "/index.html")
		return
	}

	// Works with most browsers even without a real .ico.
	if requestPath == "/favicon.ico" {
		requestPath = "/favicon.svg"
	}

	if strings.HasPrefix(lower, "/api/") {
		c.Data(http.StatusOK, "text/html", []byte(unsupportedRequestPage))
		return
	}

	s.sendFile(c, requestPath)
}

// cleanFilePath strips query fragments and traversal attempts from a
// requested file path.
func cleanFilePath(requestPath string) string {
	if i := strings.IndexAny(requestPath, "?#"); i >= 0 {
		requestPath = requestPath[:i]
	}
	var b strings.Builder
	for _, r := range requestPath {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_' || r == '-' || r == '.' || r == '/':
			b.WriteRune(r)
		}
	}
	cleaned := strings.ReplaceAll(b.String(), "..", "")
	cleaned = strings.ReplaceAll(cleaned, "//", "/")
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || strings.HasSuffix(cleaned, "/") {
		cleaned += "index.html"
	}
	return cleaned
}

func (s *Service) sendFile(c *gin.Context, requestPath string) {
	filePath := cleanFilePath(requestPath)

	content, err := FS.ReadFile(path.Join("web", filePath))
	if err != nil {
		c.String(http.StatusNotFound, "File Not Found")
		return
	}

	if strings.HasSuffix(filePath, ".html") || strings.HasSuffix(filePath, "upnp.xml") {
		content = s.renderTemplate(content)
	}

	mimeType := mime.TypeByExtension(path.Ext(filePath))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	c.Data(http.StatusOK, mimeType, content)
}

// renderTemplate substitutes the service tokens used by index.html and
// upnp.xml.
func (s *Service) renderTemplate(content []byte) []byte {
	replacer := strings.NewReplacer(
		"{service_url}", s.ServiceURL(),
		"{server_uuid}", s.id,
		"{VERSION}", version.Version,
		"{APP_NAME}", version.AppName,
		"{APP_TITLE}", version.AppTitle,
	)
	return []byte(replacer.Replace(string(content)))
}
