// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package config

// LogLevel represents the logging level for the application.
type LogLevel string

const (
	// LogLevelDebug is the debug logging level, providing detailed information.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is the informational logging level, providing general information.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn is the warning logging level, indicating potential issues.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError is the error logging level, indicating serious issues.
	LogLevelError LogLevel = "error"
)

// UPNPMode represents the SSDP role of a node.
type UPNPMode string

const (
	// UPNPModeServer advertises this node as the fabric hub.
	UPNPModeServer UPNPMode = "server"
	// UPNPModeClient discovers the hub on the local network.
	UPNPModeClient UPNPMode = "client"
	// UPNPModeStandalone disables discovery entirely.
	UPNPModeStandalone UPNPMode = "standalone"
)

// DeviceType identifies which device runtime a node hosts.
type DeviceType string

const (
	// DeviceTypeSTT runs the speech-to-text capture pipeline.
	DeviceTypeSTT DeviceType = "kenzy.stt"
	// DeviceTypeTTS runs the text-to-speech output device.
	DeviceTypeTTS DeviceType = "kenzy.tts"
	// DeviceTypeSkillManager runs the fabric hub's skill manager.
	DeviceTypeSkillManager DeviceType = "kenzy.skillmanager"
	// DeviceTypeImage runs the vision capture pipeline.
	DeviceTypeImage DeviceType = "kenzy.image"
	// DeviceTypeLLM runs the fallback language-model device.
	DeviceTypeLLM DeviceType = "kenzy.llm"
	// DeviceTypeMulti spawns one child process per config stanza.
	DeviceTypeMulti DeviceType = "multi"
)
