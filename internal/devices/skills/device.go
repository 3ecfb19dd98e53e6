// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

// Package skills implements the hub's skill manager device: it gates
// utterances on the wake word, routes ask answers back to waiting
// skills, matches intents, and gives skills the say/ask/play surface
// used to drive the rest of the fabric.
package skills

import (
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lnxusr1/kenzy/internal/config"
	"github.com/lnxusr1/kenzy/internal/core"
	"github.com/lnxusr1/kenzy/internal/devices"
)

func init() {
	devices.Register(config.DeviceTypeSkillManager, func(cfg *config.Config) (devices.Device, error) {
		return New(cfg, func() Matcher { return NewPhraseMatcher() })
	})
}

// Device is the skill manager device runtime; the node that hosts it
// is the fabric hub.
type Device struct {
	*devices.Base
	cfg config.Skills

	newMatcher func() Matcher

	mu         sync.Mutex
	manager    *Manager
	askTable   *AskTable
	askTimeout time.Duration
	running    atomic.Bool
}

// New builds the device around a matcher factory and loads the
// built-in and on-disk skills. The factory runs again on every skill
// reload so stale bindings never accumulate.
func New(cfg *config.Config, newMatcher func() Matcher) (*Device, error) {
	d := &Device{
		Base:       devices.NewBase(string(config.DeviceTypeSkillManager), cfg.Device.Location, cfg.Device.Group),
		cfg:        cfg.Device.Skills,
		newMatcher: newMatcher,
		askTable:   NewAskTable(),
		askTimeout: time.Duration(cfg.Device.Skills.AskTimeout * float64(time.Second)),
	}

	d.Handle("status", func(map[string]any, *core.Context) *core.Response { return d.Status() })
	d.Handle("collect", d.collect)
	d.Handle("download_skill", d.downloadSkill)
	d.Handle("relay", d.relay)
	d.Handle("get_settings", func(map[string]any, *core.Context) *core.Response { return core.Success(d.cfg) })
	d.Handle("set_settings", func(map[string]any, *core.Context) *core.Response {
		return core.Failure("Not implemented")
	})

	if err := d.initialize(); err != nil {
		return nil, err
	}
	return d, nil
}

// initialize rebuilds the intent manager, registers the built-in
// skills, loads learned skills from the skills folder, and trains the
// matcher.
func (d *Device) initialize() error {
	slog.Debug("Loading skills")

	folder := expandHome(d.cfg.Folder)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return err
	}

	manager := NewManager(d, d.newMatcher(),
		d.cfg.WakeWords,
		time.Duration(d.cfg.WakeTimeout*float64(time.Second)))
	d.mu.Lock()
	d.manager = manager
	d.mu.Unlock()

	loaded, err := loadManifestSkills(folder)
	if err != nil {
		return err
	}
	for _, skill := range append(builtinSkills(), loaded...) {
		slog.Debug("Loading skill", "name", skill.Name())
		if err := skill.Initialize(d); err != nil {
			slog.Error("Failed to initialize skill", "name", skill.Name(), "error", err)
		}
	}

	slog.Debug("Training started")
	if err := manager.Train(); err != nil {
		slog.Error("Training failed", "error", err)
		return err
	}
	slog.Debug("Training completed")
	slog.Info("Skills load is complete", "count", len(manager.Skills()))
	return nil
}

// Manager exposes the intent manager to skills during Initialize.
func (d *Device) Manager() *Manager {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.manager
}

func (d *Device) IsAlive() bool {
	return d.running.Load()
}

func (d *Device) Start() *core.Response {
	d.running.Store(true)
	return core.Success("Skill manager started")
}

func (d *Device) Stop() *core.Response {
	d.Manager().Stop()
	d.running.Store(false)
	return core.Success("Skill manager stopped")
}

func (d *Device) Restart() *core.Response {
	if resp := d.Stop(); !resp.IsSuccess() {
		return resp
	}
	return d.Start()
}

// Status reports the hub view: registered skills and the peer
// registry.
func (d *Device) Status() *core.Response {
	skillList := map[string]any{}
	for _, skill := range d.Manager().Skills() {
		skillList[skill.Name()] = map[string]any{
			"description": skill.Description(),
			"version":     skill.Version(),
		}
	}

	data := map[string]any{
		"skills":       skillList,
		"pending_asks": d.askTable.Len(),
	}
	if service := d.Service(); service != nil {
		data["devices"] = service.Peers()
	}
	return core.Success(devices.StatusData(d, d.cfg, data))
}

// collect receives events from peers. STT text goes first to a pending
// ask for the originating URL, then through the wake gate and the
// intent matcher. Other collect types are logged for now.
func (d *Device) collect(payload map[string]any, ctx *core.Context) *core.Response {
	kind, _ := payload["type"].(string)
	if kind != string(config.DeviceTypeSTT) {
		slog.Debug("COLLECT", "payload", payload)
		return core.Success("Collect complete")
	}

	text, _ := payload["text"].(string)
	url := contextURL(ctx)

	if callback, ok := d.askTable.Pop(url); ok {
		slog.Debug("Initiating ask callback", "url", url)
		callback(text, ctx)
		d.Manager().Activate()
		return core.Success("Collect complete")
	}

	d.Manager().Parse(text, ctx)
	return core.Success("Collect complete")
}

// Say speaks text in the caller's location via the speak command and
// its mute/unmute chain.
func (d *Device) Say(text string, ctx *core.Context) *core.Response {
	service := d.Service()
	if service == nil {
		return core.Failure("Service not referenced")
	}
	if ctx != nil {
		slog.Info("SAY", "text", text, "location", ctx.Location)
	} else {
		slog.Info("SAY", "text", text)
	}
	cmd := core.NewSpeakCommand(text, ctx)
	if err := service.SendCommand(cmd, true); err != nil {
		return core.Failure(err.Error())
	}
	return core.Success("Say command complete")
}

// Ask speaks a question and arms the ask table so the next collect
// from the asking peer's URL is routed to the callback.
func (d *Device) Ask(text string, callback AnswerFunc, timeout time.Duration, ctx *core.Context) *core.Response {
	service := d.Service()
	if service == nil {
		return core.Failure("Service not referenced")
	}
	if timeout <= 0 {
		timeout = d.askTimeout
	}
	if ctx != nil {
		slog.Info("ASK", "text", text, "location", ctx.Location)
	} else {
		slog.Info("ASK", "text", text)
	}

	d.askTable.Put(contextURL(ctx), callback, timeout)

	cmd := core.NewSpeakCommand(text, ctx)
	if err := service.SendCommand(cmd, true); err != nil {
		return core.Failure(err.Error())
	}
	return core.Success("Ask command complete")
}

// Play plays a named audio cue in the caller's location.
func (d *Device) Play(fileName string, ctx *core.Context) *core.Response {
	service := d.Service()
	if service == nil {
		return core.Failure("Service not referenced")
	}
	cmd := core.NewPlayCommand(fileName, ctx)
	if err := service.SendCommand(cmd, true); err != nil {
		return core.Failure(err.Error())
	}
	return core.Success("Play command complete")
}

// downloadSkill reloads the built-in skills and the skills already in
// the skills folder; nothing is downloaded.
func (d *Device) downloadSkill(map[string]any, *core.Context) *core.Response {
	slog.Info("Reloading skills")
	if err := d.initialize(); err != nil {
		return core.Failure("Download failed.")
	}
	return core.Success("Download successful.")
}

// relay forwards a raw command to another node on behalf of the
// caller, fire-and-forget.
func (d *Device) relay(payload map[string]any, _ *core.Context) *core.Response {
	service := d.Service()
	if service == nil {
		return core.Failure("Service not referenced")
	}

	url, _ := payload["url"].(string)
	if url == "" {
		url = service.ServiceURL()
	}
	command, ok := payload["command"].(map[string]any)
	if !ok {
		return core.Failure("No command received")
	}

	headers := map[string]string{}
	if raw, ok := payload["headers"].(map[string]any); ok {
		for name, value := range raw {
			if s, ok := value.(string); ok {
				headers[name] = s
			}
		}
	}

	action, _ := command["action"].(string)
	env := core.Envelope{Action: action}
	if p, ok := command["payload"].(map[string]any); ok {
		env.Payload = p
	}
	if _, err := service.SendEnvelope(url, env, headers, 0, false); err != nil {
		return core.Failure(err.Error())
	}
	return core.Success("Command received successfully")
}

func contextURL(ctx *core.Context) string {
	if ctx != nil && ctx.URL != "" {
		return ctx.URL
	}
	return "self"
}

// pick selects a random element, used by skills with several phrasings
// of the same response.
func pick(values []string) string {
	return values[rand.Intn(len(values))] //nolint:golint,gosec
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
