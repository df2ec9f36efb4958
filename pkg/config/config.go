// Package config loads reasend settings from a TOML file
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/james-see/reasend/pkg/host/memhost"
)

// ServerConfig configures the bridge server
type ServerConfig struct {
	Port           int `toml:"port"`
	SessionLeaseMs int `toml:"session_lease_ms,omitempty"`
}

// SessionLease returns the configured lease, or zero for the server default
func (s ServerConfig) SessionLease() time.Duration {
	return time.Duration(s.SessionLeaseMs) * time.Millisecond
}

// ClientConfig configures the remote host client
type ClientConfig struct {
	Host      string `toml:"host,omitempty"` // bridge base URL; empty uses the local project
	TimeoutMs int    `toml:"timeout_ms,omitempty"`
}

// Timeout returns the per-request timeout
func (c ClientConfig) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// ProjectConfig is the in-memory project served when no real host is attached
type ProjectConfig struct {
	Extension bool                `toml:"extension"`
	Tracks    []memhost.TrackSpec `toml:"tracks"`
}

// Project converts the config into a memhost layout
func (p ProjectConfig) Project() memhost.Project {
	return memhost.Project{Tracks: p.Tracks}
}

// Config is the main configuration structure
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Client  ClientConfig  `toml:"client"`
	Project ProjectConfig `toml:"project"`
}

// DefaultConfig returns a config with a small demo project
func DefaultConfig() *Config {
	vol := 0.5
	flags := 12615685
	return &Config{
		Server: ServerConfig{Port: 8080},
		Client: ClientConfig{TimeoutMs: 5000},
		Project: ProjectConfig{
			Extension: true,
			Tracks: []memhost.TrackSpec{
				{
					Name:            "Drums",
					Sends:           []memhost.SendSpec{{To: "Reverb", Volume: &vol}},
					HardwareOutputs: 1,
				},
				{
					Name:  "Keys",
					Sends: []memhost.SendSpec{{To: "Synth", MIDIFlags: &flags}, {To: "Reverb", Pan: -0.3}},
				},
				{Name: "Synth"},
				{Name: "Reverb", HardwareOutputs: 1},
			},
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "reasend"), nil
}

// ConfigPath returns the full path to config.toml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config at path, or at ConfigPath when path is empty.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return DefaultConfig(), nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}
	return Parse(data)
}

// Parse decodes TOML on top of the defaults. A file that lists tracks
// replaces the demo project.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Project.Tracks = nil

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Project.Tracks == nil {
		cfg.Project.Tracks = DefaultConfig().Project.Tracks
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	return cfg, nil
}

// Save writes the config to path, or to ConfigPath when path is empty
func (c *Config) Save(path string) error {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
