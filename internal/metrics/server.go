// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/lnxusr1/kenzy/internal/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const readTimeout = 3 * time.Second

func CreateMetricsServer(config *config.Config) error {
	if !config.Metrics.Enabled {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Metrics.Bind, config.Metrics.Port),
		Handler:           mux,
		ReadHeaderTimeout: readTimeout,
	}
	err := server.ListenAndServe()
	if err != nil {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}
