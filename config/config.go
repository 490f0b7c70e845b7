// Package config handles application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

const (
	appName        = "koe"
	configFileName = "config.json"
)

// Config represents the application configuration.
type Config struct {
	// ServerURL is the HTTP base URL of the speech backend.
	ServerURL string `json:"server_url"`

	// Audio capture parameters.
	SampleRate    int `json:"sample_rate"`
	Channels      int `json:"channels"`
	ChunkInterval int `json:"chunk_interval_ms"`

	// HotkeyEnabled toggles the global push-to-talk hotkey.
	HotkeyEnabled bool `json:"hotkey_enabled"`
}

// Load loads configuration from the config file.
// Returns default config if the file doesn't exist.
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, fmt.Errorf("get config path: %w", err)
	}
	return loadFrom(path)
}

func loadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Files written before hotkey_enabled existed keep the hotkey on;
	// only an explicit false turns it off.
	var present struct {
		HotkeyEnabled *bool `json:"hotkey_enabled"`
	}
	if err := json.Unmarshal(data, &present); err == nil && present.HotkeyEnabled == nil {
		cfg.HotkeyEnabled = true
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// Save persists the configuration to disk.
func (c *Config) Save() error {
	path, err := configPath()
	if err != nil {
		return fmt.Errorf("get config path: %w", err)
	}
	return c.saveTo(path)
}

func (c *Config) saveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// WebsocketURL derives the duplex audio endpoint from ServerURL.
func (c *Config) WebsocketURL() (string, error) {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = "/ws/audio"
	return u.String(), nil
}

// ChunkDuration returns the chunk cadence as a duration.
func (c *Config) ChunkDuration() time.Duration {
	return time.Duration(c.ChunkInterval) * time.Millisecond
}

func (c *Config) applyDefaults() {
	if c.ServerURL == "" {
		c.ServerURL = "http://localhost:8000"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.Channels == 0 {
		c.Channels = 1
	}
	if c.ChunkInterval == 0 {
		c.ChunkInterval = 100
	}
}

func defaultConfig() *Config {
	cfg := &Config{HotkeyEnabled: true}
	cfg.applyDefaults()
	return cfg
}

func configPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(configDir, appName, configFileName), nil
}
