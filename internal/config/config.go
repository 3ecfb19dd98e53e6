// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package config

// Config stores the full node configuration. Values are loaded by
// configulator from the config file, environment variables, and
// command-line flags, in that order of precedence.
type Config struct {
	LogLevel LogLevel   `name:"log-level" description:"Logging level for the application" default:"info"`
	Type     DeviceType `name:"type" description:"Device type this node runs"`
	Offline  bool       `name:"offline" description:"Disable model and skill downloads"`
	Service  Service    `name:"service"`
	Device   Device     `name:"device"`
	Metrics  Metrics    `name:"metrics"`
	PProf    PProf      `name:"pprof"`
}

// Service holds the settings of the HTTP endpoint and discovery layer.
type Service struct {
	Host       string `name:"host" description:"Address to bind the HTTP endpoint to" default:"0.0.0.0"`
	Port       int    `name:"port" description:"Port for the HTTP endpoint" default:"9700"`
	APIKey     string `name:"api-key" description:"Bearer token required on API requests (empty disables auth)"`
	ServiceURL string `name:"service-url" description:"URL of the fabric hub (discovered via SSDP when unset)"`
	UPNP       UPNP   `name:"upnp"`
	SSL        SSL    `name:"ssl"`
}

// UPNP selects the SSDP discovery role of the node.
type UPNP struct {
	Type    UPNPMode `name:"type" description:"SSDP role: server, client, or standalone" default:"client"`
	Timeout int      `name:"timeout" description:"Seconds to wait for SSDP discovery replies" default:"45"`
}

// SSL enables HTTPS on the service endpoint.
type SSL struct {
	Enabled  bool   `name:"enabled" description:"Serve the endpoint over HTTPS"`
	CertFile string `name:"cert-file" description:"Path to the TLS certificate"`
	KeyFile  string `name:"key-file" description:"Path to the TLS private key"`
}

// Device carries the per-type device settings. Only the section
// matching Config.Type is consulted at runtime.
type Device struct {
	Location string `name:"location" description:"Room label used for command routing" default:"Kenzy's Room"`
	Group    string `name:"group" description:"Zone label used for command routing" default:"Kenzy's Group"`
	STT      STT    `name:"stt"`
	TTS      TTS    `name:"tts"`
	Skills   Skills `name:"skills"`
	Image    Image  `name:"image"`
	LLM      LLM    `name:"llm"`
}

// STT configures the speech-to-text capture pipeline.
type STT struct {
	AudioDevice       int     `name:"audio-device" description:"Input device index (-1 selects the default)" default:"-1"`
	SampleRate        int     `name:"sample-rate" description:"Capture sample rate in Hz" default:"16000"`
	Channels          int     `name:"channels" description:"Capture channel count" default:"1"`
	FrameLength       int     `name:"frame-length" description:"Samples per captured frame" default:"640"`
	VADAggressiveness int     `name:"vad-aggressiveness" description:"Voice activity detection aggressiveness (0-3)" default:"1"`
	SpeechRatio       float64 `name:"speech-ratio" description:"Voiced fraction of the padded window that opens or closes a segment" default:"0.75"`
	BufferPadding     int     `name:"buffer-padding" description:"Speech padding window in milliseconds" default:"350"`
	Model             string  `name:"model" description:"Speech recognition model name" default:"tiny"`
	CaptureCommand    string  `name:"capture-command" description:"Command producing raw signed 16-bit PCM on stdout" default:"arecord -q -t raw -f S16_LE -r 16000 -c 1"`
	RecognizeCommand  string  `name:"recognize-command" description:"Command transcribing a WAV segment; {file} and {model} are substituted" default:"whisper-cli -nt -np -m {model} -f {file}"`
	WakeModel         string  `name:"wake-model" description:"Wake-word model path (empty disables the frame-level wake gate)"`
	WakeThreshold     float64 `name:"wake-threshold" description:"Wake-word score needed to open a segment" default:"0.5"`
}

// TTS configures the text-to-speech output device.
type TTS struct {
	Speaker        string `name:"speaker" description:"Synthesizer voice identifier" default:"slt"`
	CacheFolder    string `name:"cache-folder" description:"Folder for cached synthesized audio" default:"~/.kenzy/cache/speech"`
	AssetFolder    string `name:"asset-folder" description:"Folder searched for named audio cues" default:"~/.kenzy/assets"`
	ExternalPlayer string `name:"external-player" description:"Command used to play WAV files" default:"aplay -q"`
	SynthCommand   string `name:"synth-command" description:"Command used to synthesize speech when no engine is wired in-process" default:"festival --tts"`
}

// Skills configures the hub's skill manager.
type Skills struct {
	Folder      string   `name:"folder" description:"Folder holding installed skills" default:"~/.kenzy/skills"`
	WakeWords   []string `name:"wake-words" description:"Accepted wake words" default:"kenzy,kenzie"`
	WakeTimeout float64  `name:"wake-timeout" description:"Seconds the activation window stays open after a wake word" default:"45"`
	AskTimeout  float64  `name:"ask-timeout" description:"Seconds an ask waits for the answering collect" default:"10"`
}

// Image configures the vision capture pipeline.
type Image struct {
	VideoDevice     int     `name:"video-device" description:"Capture device index (-1 selects the default)" default:"-1"`
	FramesPerSecond float64 `name:"frames-per-second" description:"Capture rate" default:"10"`
	MotionThreshold float64 `name:"motion-threshold" description:"Scene-change fraction that triggers detection" default:"0.05"`
}

// LLM configures the fallback language-model device.
type LLM struct {
	Model      string `name:"model" description:"Completion model name"`
	MaxHistory int    `name:"max-history" description:"Conversation turns retained per caller" default:"10"`
}

// Metrics configures the Prometheus metrics endpoint.
type Metrics struct {
	Enabled bool   `name:"enabled" description:"Enable the metrics server"`
	Bind    string `name:"bind" description:"Address to bind the metrics server to" default:"0.0.0.0"`
	Port    int    `name:"port" description:"Port for the metrics server" default:"9701"`
}

// PProf configures the debug profiling endpoint.
type PProf struct {
	Enabled bool   `name:"enabled" description:"Enable the pprof server"`
	Bind    string `name:"bind" description:"Address to bind the pprof server to" default:"0.0.0.0"`
	Port    int    `name:"port" description:"Port for the pprof server" default:"9702"`
}
