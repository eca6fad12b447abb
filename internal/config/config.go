package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

// Settings holds coordinator-local launch settings. The dictation config
// itself (hotkey, mode, devices) lives in the backend and round-trips
// through the command client; these knobs only describe how to reach and
// provision the backend.
type Settings struct {
	Backend BackendSettings `yaml:"backend"`
	Window  WindowSettings  `yaml:"window"`
}

type BackendSettings struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Python         string        `yaml:"python"`
	SourceDir      string        `yaml:"source_dir"`
	DataDir        string        `yaml:"data_dir"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	HealthInterval time.Duration `yaml:"health_interval"`
	HealthAttempts int           `yaml:"health_attempts"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
}

type WindowSettings struct {
	DefaultWidth   int           `yaml:"default_width"`
	DefaultHeight  int           `yaml:"default_height"`
	ExpandedWidth  int           `yaml:"expanded_width"`
	ExpandedHeight int           `yaml:"expanded_height"`
	TopmostPeriod  time.Duration `yaml:"topmost_period"`
}

// BaseURL returns the backend HTTP base URL.
func (b BackendSettings) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", b.Host, b.Port)
}

// WebsocketURL returns the backend push channel URL.
func (b BackendSettings) WebsocketURL() string {
	return fmt.Sprintf("ws://%s:%d/ws", b.Host, b.Port)
}

// DefaultPath returns the settings file location, honoring
// FREEFLOW_SETTINGS when set.
func DefaultPath() (string, error) {
	if override := strings.TrimSpace(os.Getenv("FREEFLOW_SETTINGS")); override != "" {
		return override, nil
	}
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.yaml"), nil
}

func configDir() (string, error) {
	if os.PathSeparator == '\\' {
		if appData := strings.TrimSpace(os.Getenv("APPDATA")); appData != "" {
			return filepath.Join(appData, "freeflow"), nil
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("could not determine home directory")
	}
	return filepath.Join(home, ".config", "freeflow"), nil
}

// Load reads settings from path, tolerating a missing file, and fills in
// defaults for anything unset.
func Load(path string) (Settings, error) {
	var settings Settings

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// First launch: defaults only.
	case err != nil:
		return Settings{}, fmt.Errorf("failed to read settings file: %w", err)
	default:
		if err := yaml.Unmarshal(raw, &settings); err != nil {
			return Settings{}, fmt.Errorf("failed to parse settings file %s: %w", path, err)
		}
	}

	settings.applyDefaults()
	return settings, nil
}

func (s *Settings) applyDefaults() {
	if s.Backend.Host == "" {
		s.Backend.Host = "127.0.0.1"
	}
	if s.Backend.Port <= 0 || s.Backend.Port > 65535 {
		s.Backend.Port = 5000
	}
	if s.Backend.Python == "" {
		s.Backend.Python = "python3"
	}
	if s.Backend.SourceDir == "" {
		s.Backend.SourceDir = "python"
	}
	if s.Backend.DataDir == "" {
		if dir, err := configDir(); err == nil {
			s.Backend.DataDir = dir
		} else {
			s.Backend.DataDir = "."
		}
	}
	if s.Backend.RequestTimeout <= 0 {
		s.Backend.RequestTimeout = 30 * time.Second
	}
	if s.Backend.HealthInterval <= 0 {
		s.Backend.HealthInterval = time.Second
	}
	if s.Backend.HealthAttempts <= 0 {
		s.Backend.HealthAttempts = 30
	}
	if s.Backend.ReconnectDelay <= 0 {
		s.Backend.ReconnectDelay = 2 * time.Second
	}
	if s.Window.DefaultWidth <= 0 {
		s.Window.DefaultWidth = 240
	}
	if s.Window.DefaultHeight <= 0 {
		s.Window.DefaultHeight = 72
	}
	if s.Window.ExpandedWidth <= 0 {
		s.Window.ExpandedWidth = 360
	}
	if s.Window.ExpandedHeight <= 0 {
		s.Window.ExpandedHeight = 140
	}
	if s.Window.TopmostPeriod <= 0 {
		s.Window.TopmostPeriod = 5 * time.Second
	}
}
