package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	settings, err := Load(filepath.Join(t.TempDir(), "settings.yaml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if settings.Backend.Host != "127.0.0.1" || settings.Backend.Port != 5000 {
		t.Fatalf("unexpected backend defaults: %+v", settings.Backend)
	}
	if settings.Backend.HealthInterval != time.Second || settings.Backend.HealthAttempts != 30 {
		t.Fatalf("unexpected health defaults: %+v", settings.Backend)
	}
	if settings.Backend.ReconnectDelay != 2*time.Second {
		t.Fatalf("unexpected reconnect delay: %v", settings.Backend.ReconnectDelay)
	}
	if settings.Window.TopmostPeriod != 5*time.Second {
		t.Fatalf("unexpected topmost period: %v", settings.Window.TopmostPeriod)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	raw := []byte("backend:\n  host: localhost\n  port: 8123\n  python: python3.12\n  reconnect_delay: 250ms\nwindow:\n  default_width: 300\n")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	settings, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if settings.Backend.Host != "localhost" || settings.Backend.Port != 8123 {
		t.Fatalf("unexpected backend settings: %+v", settings.Backend)
	}
	if settings.Backend.Python != "python3.12" {
		t.Fatalf("unexpected python: %q", settings.Backend.Python)
	}
	if settings.Backend.ReconnectDelay != 250*time.Millisecond {
		t.Fatalf("unexpected reconnect delay: %v", settings.Backend.ReconnectDelay)
	}
	if settings.Window.DefaultWidth != 300 {
		t.Fatalf("unexpected default width: %d", settings.Window.DefaultWidth)
	}
	// Unset fields still get defaults.
	if settings.Window.ExpandedWidth != 360 {
		t.Fatalf("expected expanded width default, got %d", settings.Window.ExpandedWidth)
	}
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("backend: [not a mapping"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadRepairsInvalidPort(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("backend:\n  port: 700000\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	settings, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if settings.Backend.Port != 5000 {
		t.Fatalf("expected out-of-range port repaired, got %d", settings.Backend.Port)
	}
}

func TestBackendURLs(t *testing.T) {
	t.Parallel()

	backend := BackendSettings{Host: "127.0.0.1", Port: 5000}
	if got := backend.BaseURL(); got != "http://127.0.0.1:5000" {
		t.Fatalf("unexpected base url: %q", got)
	}
	if got := backend.WebsocketURL(); got != "ws://127.0.0.1:5000/ws" {
		t.Fatalf("unexpected websocket url: %q", got)
	}
}

func TestDefaultPathHonorsOverride(t *testing.T) {
	t.Setenv("FREEFLOW_SETTINGS", "/tmp/custom-settings.yaml")

	path, err := DefaultPath()
	if err != nil {
		t.Fatalf("default path failed: %v", err)
	}
	if path != "/tmp/custom-settings.yaml" {
		t.Fatalf("unexpected path: %q", path)
	}
}
