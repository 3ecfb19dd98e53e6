// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package config_test

import (
	"errors"
	"testing"

	"github.com/lnxusr1/kenzy/internal/config"
)

func makeValidConfig() config.Config {
	return config.Config{
		LogLevel: config.LogLevelInfo,
		Type:     config.DeviceTypeSTT,
		Service: config.Service{
			Host: "0.0.0.0",
			Port: 9700,
			UPNP: config.UPNP{
				Type:    config.UPNPModeClient,
				Timeout: 45,
			},
		},
		Device: config.Device{
			Location: "Kitchen",
			Group:    "Downstairs",
			STT: config.STT{
				SampleRate:        16000,
				Channels:          1,
				FrameLength:       640,
				VADAggressiveness: 1,
				SpeechRatio:       0.75,
				BufferPadding:     350,
			},
		},
	}
}

func TestValidConfig(t *testing.T) {
	t.Parallel()
	cfg := makeValidConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected nil error for valid config, got %v", err)
	}
}

func TestMissingDeviceType(t *testing.T) {
	t.Parallel()
	cfg := makeValidConfig()
	cfg.Type = ""
	if !errors.Is(cfg.Validate(), config.ErrMissingDeviceType) {
		t.Errorf("Expected ErrMissingDeviceType, got %v", cfg.Validate())
	}
}

func TestInvalidDeviceType(t *testing.T) {
	t.Parallel()
	cfg := makeValidConfig()
	cfg.Type = "kenzy.toaster"
	if !errors.Is(cfg.Validate(), config.ErrInvalidDeviceType) {
		t.Errorf("Expected ErrInvalidDeviceType, got %v", cfg.Validate())
	}
}

func TestInvalidLogLevel(t *testing.T) {
	t.Parallel()
	cfg := makeValidConfig()
	cfg.LogLevel = "verbose"
	if !errors.Is(cfg.Validate(), config.ErrInvalidLogLevel) {
		t.Errorf("Expected ErrInvalidLogLevel, got %v", cfg.Validate())
	}
}

func TestInvalidUPNPMode(t *testing.T) {
	t.Parallel()
	cfg := makeValidConfig()
	cfg.Service.UPNP.Type = "broadcast"
	if !errors.Is(cfg.Validate(), config.ErrInvalidUPNPMode) {
		t.Errorf("Expected ErrInvalidUPNPMode, got %v", cfg.Validate())
	}
}

func TestInvalidServicePort(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		port int
	}{
		{"zero", 0},
		{"negative", -1},
		{"too large", 70000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := makeValidConfig()
			cfg.Service.Port = tt.port
			if !errors.Is(cfg.Validate(), config.ErrInvalidServicePort) {
				t.Errorf("Expected ErrInvalidServicePort, got %v", cfg.Validate())
			}
		})
	}
}

func TestSSLRequiresCertAndKey(t *testing.T) {
	t.Parallel()
	cfg := makeValidConfig()
	cfg.Service.SSL.Enabled = true
	if !errors.Is(cfg.Validate(), config.ErrSSLCertRequired) {
		t.Errorf("Expected ErrSSLCertRequired, got %v", cfg.Validate())
	}
	cfg.Service.SSL.CertFile = "/tmp/cert.pem"
	if !errors.Is(cfg.Validate(), config.ErrSSLKeyRequired) {
		t.Errorf("Expected ErrSSLKeyRequired, got %v", cfg.Validate())
	}
}

func TestFrameLengthMustBeMultipleOfTenMillis(t *testing.T) {
	t.Parallel()
	cfg := makeValidConfig()
	// 500 samples at 16 kHz is 31.25 ms of audio.
	cfg.Device.STT.FrameLength = 500
	if !errors.Is(cfg.Validate(), config.ErrInvalidFrameLength) {
		t.Errorf("Expected ErrInvalidFrameLength, got %v", cfg.Validate())
	}
}

func TestFrameLengthIgnoredForOtherDevices(t *testing.T) {
	t.Parallel()
	cfg := makeValidConfig()
	cfg.Type = config.DeviceTypeTTS
	cfg.Device.STT.FrameLength = 500
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
}

func TestInvalidVADAggressiveness(t *testing.T) {
	t.Parallel()
	cfg := makeValidConfig()
	cfg.Device.STT.VADAggressiveness = 4
	if !errors.Is(cfg.Validate(), config.ErrInvalidVADAggressiveness) {
		t.Errorf("Expected ErrInvalidVADAggressiveness, got %v", cfg.Validate())
	}
}

func TestInvalidSpeechRatio(t *testing.T) {
	t.Parallel()
	for _, ratio := range []float64{0, -0.5, 1.5} {
		cfg := makeValidConfig()
		cfg.Device.STT.SpeechRatio = ratio
		if !errors.Is(cfg.Validate(), config.ErrInvalidSpeechRatio) {
			t.Errorf("Expected ErrInvalidSpeechRatio for %v, got %v", ratio, cfg.Validate())
		}
	}
}

func TestMetricsValidateDisabled(t *testing.T) {
	t.Parallel()
	m := config.Metrics{Enabled: false}
	if err := m.Validate(); err != nil {
		t.Errorf("Expected nil error for disabled metrics, got %v", err)
	}
}

func TestMetricsValidateInvalidPort(t *testing.T) {
	t.Parallel()
	m := config.Metrics{Enabled: true, Port: 0}
	if !errors.Is(m.Validate(), config.ErrInvalidMetricsPort) {
		t.Errorf("Expected ErrInvalidMetricsPort, got %v", m.Validate())
	}
}
