// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package skills

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lnxusr1/kenzy/internal/core"
)

// minConfidence is the floor below which a match is treated as a miss
// and handed to the fallback path.
const minConfidence = 0.6

// Callback handles one matched intent. Returning false reports the
// skill could not act on it.
type Callback func(intent Intent, ctx *core.Context, raw string) bool

type boundSkill struct {
	intentName string
	callback   Callback
	skill      Skill
}

// Manager owns the wake gate and the intent dispatch table. All state
// it guards is touched from the hub's concurrent collect handlers.
type Manager struct {
	device *Device

	wakeWords         []string
	activationTimeout time.Duration

	mu        sync.Mutex
	activated time.Time
	matcher   Matcher
	skills    []boundSkill
}

// NewManager creates the manager around a matcher.
func NewManager(device *Device, matcher Matcher, wakeWords []string, activationTimeout time.Duration) *Manager {
	if len(wakeWords) == 0 {
		wakeWords = []string{"kenzy", "kenzie"}
	}
	return &Manager{
		device:            device,
		wakeWords:         wakeWords,
		activationTimeout: activationTimeout,
		matcher:           matcher,
	}
}

// Bind registers an intent's phrases and callback with the matcher.
func (m *Manager) Bind(skill Skill, intentName string, phrases []string, callback Callback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.matcher.AddIntent(intentName, phrases); err != nil {
		return err
	}
	m.skills = append(m.skills, boundSkill{intentName: intentName, callback: callback, skill: skill})
	return nil
}

// BindEntity registers an entity's value list with the matcher.
func (m *Manager) BindEntity(name string, values []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matcher.AddEntity(name, values)
}

// Train compiles the matcher after all skills registered.
func (m *Manager) Train() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matcher.Train()
}

// Skills lists the registered skills for status reporting.
func (m *Manager) Skills() []Skill {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	var out []Skill
	for _, bound := range m.skills {
		if bound.skill == nil || seen[bound.skill.Name()] {
			continue
		}
		seen[bound.skill.Name()] = true
		out = append(out, bound.skill)
	}
	return out
}

// Activate refreshes the wake window, e.g. after an answered ask.
func (m *Manager) Activate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activated = time.Now()
}

// gate applies the wake-word rule: outside the activation window the
// utterance must begin with a wake word, which is stripped. Returns
// the remaining text and whether the utterance passed.
func (m *Manager) gate(text string) (string, bool) {
	clean := normalize(text)

	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.activated) > m.activationTimeout {
		found := false
		for _, wake := range m.wakeWords {
			if strings.HasPrefix(clean, strings.ToLower(wake)) {
				clean = strings.TrimSpace(clean[len(wake):])
				m.activated = time.Now()
				found = true
				break
			}
		}
		if !found {
			slog.Debug("Not activated", "heard", clean)
			return "", false
		}
	}

	// Inside the window a leading wake word is still stripped so
	// "kenzy what time is it" works either way.
	for _, wake := range m.wakeWords {
		if strings.HasPrefix(clean, strings.ToLower(wake)) {
			clean = strings.TrimSpace(clean[len(wake):])
		}
	}
	return clean, true
}

// Parse wake-gates an utterance, matches it against the registered
// intents, and invokes the bound callback on a confident match.
func (m *Manager) Parse(text string, ctx *core.Context) bool {
	clean, ok := m.gate(text)
	if !ok {
		return false
	}

	if clean == "" {
		// The user only said the wake word; answer with the ready cue
		// on their node.
		cmd := core.NewPlayCommand("ready.wav", ctx)
		if service := m.device.Service(); service != nil {
			if err := service.SendCommand(cmd, true); err != nil {
				slog.Debug("Failed to play ready cue", "error", err)
			}
		}
		return false
	}

	if ctx != nil {
		slog.Debug("HEARD", "text", clean, "location", ctx.Location)
	} else {
		slog.Debug("HEARD", "text", clean)
	}

	intent, found := m.match(clean)
	if !found || intent.Confidence < minConfidence {
		return m.fallback(clean, text, ctx)
	}

	for _, bound := range m.bindings() {
		if bound.intentName == intent.Name {
			result := bound.callback(intent, ctx, text)
			m.Activate()
			return result
		}
	}
	return m.fallback(clean, text, ctx)
}

func (m *Manager) match(text string) (Intent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matcher.Match(text)
}

func (m *Manager) bindings() []boundSkill {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]boundSkill, len(m.skills))
	copy(out, m.skills)
	return out
}

// fallback hands an unmatched utterance to a registered llm peer when
// one exists; otherwise it is logged and dropped.
func (m *Manager) fallback(text, raw string, ctx *core.Context) bool {
	slog.Debug("fallback", "text", text)
	service := m.device.Service()
	if service == nil {
		return false
	}
	for url, peer := range service.Peers() {
		if peer.Active && peer.AcceptsAction("fallback") {
			cmd := core.NewCommand("fallback")
			cmd.Set("text", text)
			cmd.Set("raw", raw)
			cmd.Context = ctx
			cmd.URL = url
			if err := service.SendCommand(cmd, false); err != nil {
				slog.Debug("Failed to relay fallback", "url", url, "error", err)
			}
			return true
		}
	}
	return false
}

// Stop calls every registered skill's Stop hook.
func (m *Manager) Stop() {
	for _, skill := range m.Skills() {
		if err := skill.Stop(); err != nil {
			slog.Debug("Skill stop failed", "skill", skill.Name(), "error", err)
		}
	}
}
