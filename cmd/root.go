// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/USA-RedDragon/configulator"
	"github.com/lmittmann/tint"
	"github.com/lnxusr1/kenzy/internal/config"
	"github.com/lnxusr1/kenzy/internal/devices"
	"github.com/lnxusr1/kenzy/internal/metrics"
	"github.com/lnxusr1/kenzy/internal/pprof"
	"github.com/lnxusr1/kenzy/internal/service"
	"github.com/spf13/cobra"

	// Register the sealed device set with the constructor registry.
	_ "github.com/lnxusr1/kenzy/internal/devices/image"
	_ "github.com/lnxusr1/kenzy/internal/devices/llm"
	_ "github.com/lnxusr1/kenzy/internal/devices/skills"
	_ "github.com/lnxusr1/kenzy/internal/devices/stt"
	_ "github.com/lnxusr1/kenzy/internal/devices/tts"
)

func NewCommand(version, commit string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "kenzy",
		Version: fmt.Sprintf("%s - %s", version, commit),
		Annotations: map[string]string{
			"version": version,
			"commit":  commit,
		},
		RunE:              runRoot,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}
	cmd.PersistentFlags().StringP("config", "c", "", "Configuration file")
	cmd.PersistentFlags().StringP("type", "t", "", "Device type (overrides the config value)")
	cmd.PersistentFlags().String("upnp", "", "SSDP role: server, client, or standalone")
	cmd.PersistentFlags().Bool("offline", false, "Run in offline mode")
	cmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, or error")
	return cmd
}

func runRoot(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	fmt.Printf("Kenzy - %s (%s)\n", cmd.Annotations["version"], cmd.Annotations["commit"])

	cfg, err := loadConfig(ctx, cmd)
	if err != nil {
		slog.Error("Unable to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	if cfg.Offline {
		// External model tools honor these; nothing downloads mid-run.
		os.Setenv("TRANSFORMERS_OFFLINE", "1")
		os.Setenv("HF_DATASETS_OFFLINE", "1")
	}

	if cfg.Type == config.DeviceTypeMulti {
		configPath, _ := cmd.Flags().GetString("config")
		return runMulti(configPath)
	}

	go func() {
		if err := metrics.CreateMetricsServer(cfg); err != nil {
			slog.Error("Failed to start metrics server", "error", err)
		}
	}()
	go pprof.CreatePProfServer(cfg)

	device, err := devices.New(cfg.Type, cfg)
	if err != nil {
		slog.Error("Unable to create device", "type", cfg.Type, "error", err)
		os.Exit(1)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics()
	}

	node := service.New(cfg, device, m)
	if err := node.Start(); err != nil {
		slog.Error("Unable to start service", "error", err)
		os.Exit(1)
	}

	waitForShutdown(ctx, node)
	return nil
}

// loadConfig resolves the configuration from file and environment via
// configulator, then applies the explicit command-line overrides.
func loadConfig(ctx context.Context, cmd *cobra.Command) (*config.Config, error) {
	c, err := configulator.FromContext[config.Config](ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get config from context: %w", err)
	}

	cfg, err := c.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if deviceType, _ := cmd.Flags().GetString("type"); deviceType != "" {
		cfg.Type = config.DeviceType(deviceType)
	}
	if upnp, _ := cmd.Flags().GetString("upnp"); upnp != "" {
		cfg.Service.UPNP.Type = config.UPNPMode(upnp)
	}
	if offline, _ := cmd.Flags().GetBool("offline"); offline {
		cfg.Offline = true
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = config.LogLevel(level)
	}

	return cfg, nil
}

// setupLogger configures the structured logger.
func setupLogger(cfg *config.Config) {
	var logger *slog.Logger
	switch cfg.LogLevel {
	case config.LogLevelDebug:
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelDebug}))
	case config.LogLevelInfo:
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo}))
	case config.LogLevelWarn:
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelWarn}))
	case config.LogLevelError:
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelError}))
	default:
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo}))
	}
	slog.SetDefault(logger)
}

// waitForShutdown blocks until a signal arrives or the node stops on
// its own (e.g. a shutdown command), then stops everything with a
// bounded grace period.
func waitForShutdown(ctx context.Context, node *service.Service) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		slog.Error("Shutting down due to signal", "signal", sig)
	case <-node.Done():
		return
	}

	const timeout = 10 * time.Second
	done := make(chan struct{})
	go func() {
		defer close(done)
		node.Stop(ctx)
	}()
	select {
	case <-done:
		slog.Info("Shutdown safely completed")
	case <-time.After(timeout):
		slog.Error("Shutdown timed out, forcing exit")
		os.Exit(1)
	}
}
