// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/lnxusr1/kenzy/internal/config"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// ErrNoStanzas indicates a multi config without any device stanzas.
var ErrNoStanzas = errors.New("multi configuration contains no device stanzas")

const basePort = 9700

// stanza is one device definition inside a multi config. Model
// libraries keep global state, so each stanza runs in its own child
// process rather than a goroutine.
type stanza struct {
	Name    string
	Type    string
	Service map[string]any
	Device  map[string]any
}

// reserved top-level keys of a multi config that are not stanzas.
var reservedKeys = map[string]bool{
	"type": true, "default": true, "log-level": true, "offline": true,
	"service": true, "device": true, "metrics": true, "pprof": true,
}

// parseStanzas reads the raw multi config. Stanza order follows the
// sorted stanza names except that the skill manager always comes
// first so peers find a hub to register with.
func parseStanzas(raw []byte) ([]stanza, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse multi config: %w", err)
	}

	defaults, _ := doc["default"].(map[string]any)

	var names []string
	for name := range doc {
		if reservedKeys[name] {
			continue
		}
		if _, ok := doc[name].(map[string]any); !ok {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var out []stanza
	for _, name := range names {
		body := doc[name].(map[string]any)
		st := stanza{
			Name:    name,
			Service: mergeSection(defaults, body, "service"),
			Device:  mergeSection(defaults, body, "device"),
		}
		if t, ok := body["type"].(string); ok {
			st.Type = t
		} else {
			st.Type = string(config.DeviceTypeSkillManager)
		}
		if st.Type == string(config.DeviceTypeSkillManager) {
			if _, ok := st.Service["upnp"]; !ok {
				st.Service["upnp"] = map[string]any{"type": "server"}
			}
		}
		out = append(out, st)
	}

	if len(out) == 0 {
		return nil, ErrNoStanzas
	}

	// The hub starts first.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Type == string(config.DeviceTypeSkillManager) &&
			out[j].Type != string(config.DeviceTypeSkillManager)
	})

	assignPorts(out)
	return out, nil
}

func mergeSection(defaults, body map[string]any, key string) map[string]any {
	merged := map[string]any{}
	if defaults != nil {
		if section, ok := defaults[key].(map[string]any); ok {
			for k, v := range section {
				merged[k] = v
			}
		}
	}
	if section, ok := body[key].(map[string]any); ok {
		for k, v := range section {
			merged[k] = v
		}
	}
	return merged
}

// assignPorts gives every stanza a distinct ascending port, starting
// from the first explicitly configured port or the base port.
func assignPorts(stanzas []stanza) {
	lastPort := 0
	for i := range stanzas {
		port := basePort
		if p, ok := stanzas[i].Service["port"].(int); ok && p > 0 {
			port = p
		}
		if port <= lastPort {
			port = lastPort + 1
		}
		lastPort = port
		stanzas[i].Service["port"] = port
	}
}

// runMulti spawns one child process per stanza and supervises the
// group until every child exits or a signal arrives.
func runMulti(configPath string) error {
	raw, err := os.ReadFile(configPath)
	if err != nil {
		slog.Error("Unable to read multi configuration", "path", configPath, "error", err)
		os.Exit(1)
	}

	stanzas, err := parseStanzas(raw)
	if err != nil {
		slog.Error("Unable to parse multi configuration", "error", err)
		os.Exit(1)
	}

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "kenzy-multi-")
	if err != nil {
		return fmt.Errorf("failed to create config folder: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	var children []*exec.Cmd
	for _, st := range stanzas {
		childCfg := map[string]any{
			"type":    st.Type,
			"service": st.Service,
			"device":  st.Device,
		}
		encoded, err := yaml.Marshal(childCfg)
		if err != nil {
			return fmt.Errorf("failed to encode stanza %s: %w", st.Name, err)
		}
		childPath := filepath.Join(tmpDir, st.Name+".yml")
		if err := os.WriteFile(childPath, encoded, 0o600); err != nil {
			return fmt.Errorf("failed to write stanza %s: %w", st.Name, err)
		}

		child := exec.Command(self, "-c", childPath)
		child.Stdout = os.Stdout
		child.Stderr = os.Stderr
		if err := child.Start(); err != nil {
			slog.Error("Failed to start child", "stanza", st.Name, "error", err)
			continue
		}
		slog.Info("Started child", "stanza", st.Name, "type", st.Type, "port", st.Service["port"], "pid", child.Process.Pid)
		children = append(children, child)

		if st.Type == string(config.DeviceTypeSkillManager) {
			// Let the hub get fully online before its peers.
			time.Sleep(time.Second)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)

	g := new(errgroup.Group)
	for _, child := range children {
		g.Go(child.Wait)
	}
	doneCh := make(chan struct{})
	go func() {
		if err := g.Wait(); err != nil {
			slog.Debug("Child exited with error", "error", err)
		}
		close(doneCh)
	}()

	select {
	case sig := <-sigCh:
		slog.Error("Shutting down children due to signal", "signal", sig)
		for _, child := range children {
			if child.Process != nil {
				_ = child.Process.Signal(syscall.SIGTERM)
			}
		}
		<-doneCh
	case <-doneCh:
	}
	return nil
}
