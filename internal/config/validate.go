// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package config

import "errors"

var (
	// ErrInvalidLogLevel indicates that the provided log level is not valid.
	ErrInvalidLogLevel = errors.New("invalid log level provided")
	// ErrMissingDeviceType indicates that no device type was configured.
	ErrMissingDeviceType = errors.New("device type is required (use --type to specify one)")
	// ErrInvalidDeviceType indicates that the configured device type is not one of the known types.
	ErrInvalidDeviceType = errors.New("invalid device type provided")
	// ErrInvalidUPNPMode indicates that the SSDP role is not server, client, or standalone.
	ErrInvalidUPNPMode = errors.New("invalid upnp mode provided, must be one of server, client, or standalone")
	// ErrInvalidServiceHost indicates that the provided service bind address is not valid.
	ErrInvalidServiceHost = errors.New("invalid service host provided")
	// ErrInvalidServicePort indicates that the provided service port is not valid.
	ErrInvalidServicePort = errors.New("invalid service port provided")
	// ErrInvalidUPNPTimeout indicates that the discovery window is not positive.
	ErrInvalidUPNPTimeout = errors.New("invalid upnp timeout provided, must be positive")
	// ErrSSLCertRequired indicates that SSL is enabled without a certificate path.
	ErrSSLCertRequired = errors.New("ssl certificate file is required when ssl is enabled")
	// ErrSSLKeyRequired indicates that SSL is enabled without a key path.
	ErrSSLKeyRequired = errors.New("ssl key file is required when ssl is enabled")
	// ErrInvalidFrameLength indicates that the capture frame is not a
	// whole multiple of 10 ms, which the VAD engine requires.
	ErrInvalidFrameLength = errors.New("invalid frame length provided, must be a multiple of 10ms of audio")
	// ErrInvalidVADAggressiveness indicates that the VAD aggressiveness is outside 0-3.
	ErrInvalidVADAggressiveness = errors.New("invalid vad aggressiveness provided, must be between 0 and 3")
	// ErrInvalidSpeechRatio indicates that the speech ratio is outside (0, 1].
	ErrInvalidSpeechRatio = errors.New("invalid speech ratio provided, must be greater than 0 and at most 1")
	// ErrInvalidSampleRate indicates that the sample rate is not positive.
	ErrInvalidSampleRate = errors.New("invalid sample rate provided")
	// ErrInvalidMetricsPort indicates that the metrics server port is not valid.
	ErrInvalidMetricsPort = errors.New("invalid metrics server port provided")
	// ErrInvalidPProfPort indicates that the pprof server port is not valid.
	ErrInvalidPProfPort = errors.New("invalid pprof server port provided")
)

func validPort(port int) bool {
	return port > 0 && port <= 65535
}

// Validate validates the service configuration.
func (s Service) Validate() error {
	if s.Host == "" {
		return ErrInvalidServiceHost
	}
	if !validPort(s.Port) {
		return ErrInvalidServicePort
	}
	switch s.UPNP.Type {
	case UPNPModeServer, UPNPModeClient, UPNPModeStandalone:
	default:
		return ErrInvalidUPNPMode
	}
	if s.UPNP.Timeout <= 0 {
		return ErrInvalidUPNPTimeout
	}
	if s.SSL.Enabled {
		if s.SSL.CertFile == "" {
			return ErrSSLCertRequired
		}
		if s.SSL.KeyFile == "" {
			return ErrSSLKeyRequired
		}
	}
	return nil
}

// Validate validates the STT pipeline configuration.
func (s STT) Validate() error {
	if s.SampleRate <= 0 {
		return ErrInvalidSampleRate
	}
	// The VAD engine only accepts frames spanning a multiple of 10 ms.
	frameMillis := s.FrameLength * 1000 / s.SampleRate
	if s.FrameLength <= 0 || frameMillis == 0 || frameMillis%10 != 0 {
		return ErrInvalidFrameLength
	}
	if s.VADAggressiveness < 0 || s.VADAggressiveness > 3 {
		return ErrInvalidVADAggressiveness
	}
	if s.SpeechRatio <= 0 || s.SpeechRatio > 1 {
		return ErrInvalidSpeechRatio
	}
	return nil
}

// Validate validates the metrics server configuration.
func (m Metrics) Validate() error {
	if !m.Enabled {
		return nil
	}
	if !validPort(m.Port) {
		return ErrInvalidMetricsPort
	}
	return nil
}

// Validate validates the pprof server configuration.
func (p PProf) Validate() error {
	if !p.Enabled {
		return nil
	}
	if !validPort(p.Port) {
		return ErrInvalidPProfPort
	}
	return nil
}

// Validate checks the whole configuration and returns the first
// problem found.
func (c Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return ErrInvalidLogLevel
	}

	switch c.Type {
	case "":
		return ErrMissingDeviceType
	case DeviceTypeSTT, DeviceTypeTTS, DeviceTypeSkillManager, DeviceTypeImage, DeviceTypeLLM, DeviceTypeMulti:
	default:
		return ErrInvalidDeviceType
	}

	if err := c.Service.Validate(); err != nil {
		return err
	}
	if c.Type == DeviceTypeSTT {
		if err := c.Device.STT.Validate(); err != nil {
			return err
		}
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	if err := c.PProf.Validate(); err != nil {
		return err
	}
	return nil
}
