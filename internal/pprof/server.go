// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package pprof

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/lnxusr1/kenzy/internal/config"
)

const readTimeout = 3 * time.Second

func CreatePProfServer(config *config.Config) {
	if !config.PProf.Enabled {
		return
	}
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	pprof.Register(r)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.PProf.Bind, config.PProf.Port),
		Handler:           r,
		ReadHeaderTimeout: readTimeout,
	}
	if err := server.ListenAndServe(); err != nil {
		slog.Error("pprof server failed", "error", err)
	}
}
