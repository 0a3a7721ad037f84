// Package config loads the per-task courier configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"courier/pkg/comms"
	"courier/pkg/threshold"
)

// ConfigFile is the name of the configuration file inside a task directory.
const ConfigFile = "courier.toml"

// TmuxTarget names where one role's agent lives in tmux.
type TmuxTarget struct {
	Session string `toml:"session"`
	Pane    string `toml:"pane"`
}

// Config holds all tunable behavior for a task. Every field has a working
// default; a task with no config file gets the stock behavior.
type Config struct {
	// MaxContextTokens is the context-window budget the threshold
	// percentages are computed against.
	MaxContextTokens int `toml:"max_context_tokens"`

	// GraceMillis is how long the inbox watcher waits after a create event
	// before reading the file.
	GraceMillis int `toml:"grace_ms"`

	// AlwaysUrgentKinds are message kinds promoted to urgent regardless of
	// their declared priority.
	AlwaysUrgentKinds []string `toml:"always_urgent_kinds"`

	// Agent is the coding-agent tool running in the worker session; it
	// selects the session-injection strategy.
	Agent string `toml:"agent"`

	// Tmux maps each role to its tmux target.
	Tmux map[string]TmuxTarget `toml:"tmux"`
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		MaxContextTokens:  threshold.DefaultMaxTokens,
		GraceMillis:       200,
		AlwaysUrgentKinds: []string{string(comms.KindBlocker)},
		Agent:             "claude",
		Tmux:              map[string]TmuxTarget{},
	}
}

// Load reads the task's config file, returning defaults when no file exists.
func Load(taskDir string) (*Config, error) {
	path := filepath.Join(taskDir, ConfigFile)
	data, err := os.ReadFile(path) //nolint:gosec // path derived from task dir
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = threshold.DefaultMaxTokens
	}
	if cfg.GraceMillis < 0 {
		cfg.GraceMillis = 0
	}
	return cfg, nil
}

// Save writes the config to the task directory.
func Save(taskDir string, cfg *Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	path := filepath.Join(taskDir, ConfigFile)
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // task-local config
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// Grace returns the watcher grace period as a duration.
func (c *Config) Grace() time.Duration {
	return time.Duration(c.GraceMillis) * time.Millisecond
}

// AlwaysUrgent converts the configured kind names into the router's
// promotion set.
func (c *Config) AlwaysUrgent() map[comms.Kind]bool {
	set := make(map[comms.Kind]bool, len(c.AlwaysUrgentKinds))
	for _, k := range c.AlwaysUrgentKinds {
		set[comms.Kind(k)] = true
	}
	return set
}

// Target returns the tmux target for a role, with ok reporting whether one
// is configured.
func (c *Config) Target(role comms.Role) (TmuxTarget, bool) {
	t, ok := c.Tmux[string(role)]
	return t, ok
}
