// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package tts

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mitchellh/hashstructure/v2"
)

// Synthesizer renders text to WAV audio for one speaker voice.
type Synthesizer interface {
	Synthesize(text, speaker string) ([]byte, error)
}

// Player plays a WAV file through the audio output.
type Player interface {
	Play(path string) error
}

// cacheKey identifies one cached rendering: the normalized text plus
// the speaker voice. Hashed with hashstructure so the key is stable
// across runs.
type cacheKey struct {
	Text    string
	Speaker string
}

// CacheFileName returns the cache file name for a normalized text and
// speaker.
func CacheFileName(text, speaker string) (string, error) {
	hash, err := hashstructure.Hash(cacheKey{Text: text, Speaker: speaker}, hashstructure.FormatV2, nil)
	if err != nil {
		return "", fmt.Errorf("failed to hash speech segment: %w", err)
	}
	return fmt.Sprintf("%s-%016x.wav", speaker, hash), nil
}

// commandSynthesizer shells text out to an external speech engine that
// writes WAV to the given output path.
type commandSynthesizer struct {
	command string
}

// NewCommandSynthesizer builds the default synthesizer around a CLI
// engine. {text} and {file} in the command are substituted; when no
// {text} placeholder is present the text is piped on stdin, and when no
// {file} placeholder is present the WAV is taken from stdout.
func NewCommandSynthesizer(command string) Synthesizer {
	return commandSynthesizer{command: command}
}

func (s commandSynthesizer) Synthesize(text, _ string) ([]byte, error) {
	tmp, err := os.CreateTemp("", "kenzy-tts-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create synth file: %w", err)
	}
	tmpName := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpName)

	command := strings.ReplaceAll(s.command, "{file}", tmpName)
	usesFile := command != s.command
	command = strings.ReplaceAll(command, "{text}", text)

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty synth command")
	}
	cmd := exec.Command(parts[0], parts[1:]...)
	if !strings.Contains(s.command, "{text}") {
		cmd.Stdin = strings.NewReader(text)
	}

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("synth command failed: %w", err)
	}
	if usesFile {
		wav, err := os.ReadFile(tmpName)
		if err != nil {
			return nil, fmt.Errorf("failed to read synth output: %w", err)
		}
		return wav, nil
	}
	return out, nil
}

// commandPlayer plays WAV files through an external player.
type commandPlayer struct {
	command string
}

// NewCommandPlayer builds the default player around a CLI audio
// player (aplay by default).
func NewCommandPlayer(command string) Player {
	return commandPlayer{command: command}
}

func (p commandPlayer) Play(path string) error {
	parts := strings.Fields(p.command)
	if len(parts) == 0 {
		return fmt.Errorf("empty player command")
	}
	args := append(parts[1:], path)
	if err := exec.Command(parts[0], args...).Run(); err != nil {
		return fmt.Errorf("player command failed: %w", err)
	}
	return nil
}

// expandHome resolves a leading ~ in configured folders.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
