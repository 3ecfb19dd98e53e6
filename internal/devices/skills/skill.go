// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package skills

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lnxusr1/kenzy/internal/core"
	"gopkg.in/yaml.v3"
)

// Skill is a plug-in the skill manager hosts. Initialize registers the
// skill's intents and entities with the manager and may start its own
// workers; Stop tears those down.
type Skill interface {
	Name() string
	Description() string
	Version() string
	Initialize(dev *Device) error
	Stop() error
}

// manifest is the on-disk format of a learned skill: a skill.yml in a
// directory under the skills folder binding phrases to spoken
// responses.
type manifest struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Version     string   `yaml:"version"`
	Intents     []struct {
		Name      string   `yaml:"name"`
		Phrases   []string `yaml:"phrases"`
		Responses []string `yaml:"responses"`
	} `yaml:"intents"`
	Entities map[string][]string `yaml:"entities"`
}

// manifestSkill speaks a canned response when one of its phrases
// matches.
type manifestSkill struct {
	m manifest
}

func (s *manifestSkill) Name() string        { return s.m.Name }
func (s *manifestSkill) Description() string { return s.m.Description }
func (s *manifestSkill) Version() string {
	if s.m.Version == "" {
		return "1.0"
	}
	return s.m.Version
}
func (s *manifestSkill) Stop() error { return nil }

func (s *manifestSkill) Initialize(dev *Device) error {
	for name, values := range s.m.Entities {
		if err := dev.Manager().BindEntity(name, values); err != nil {
			return err
		}
	}
	for _, intent := range s.m.Intents {
		responses := intent.Responses
		err := dev.Manager().Bind(s, intent.Name, intent.Phrases, func(_ Intent, ctx *core.Context, _ string) bool {
			if len(responses) == 0 {
				return false
			}
			return dev.Say(pick(responses), ctx).IsSuccess()
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// loadManifestSkills reads every skill.yml beneath the skills folder.
func loadManifestSkills(folder string) ([]Skill, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read skills folder: %w", err)
	}
	var out []Skill
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(folder, entry.Name(), "skill.yml")
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var m manifest
		if err := yaml.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if m.Name == "" {
			m.Name = entry.Name()
		}
		out = append(out, &manifestSkill{m: m})
	}
	return out, nil
}
