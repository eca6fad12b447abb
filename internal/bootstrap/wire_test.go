package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"freeflow/internal/domain"
)

type nullSink struct{}

func (nullSink) StatusChanged(domain.StatusEvent, domain.RecordingState) {}
func (nullSink) PartialTranscript(string)                                {}
func (nullSink) ConfigUpdated(domain.Config)                             {}
func (nullSink) PasteText(string)                                        {}
func (nullSink) HistoryChanged()                                         {}

type nullClipboard struct{}

func (nullClipboard) SetText(context.Context, string) error { return nil }

func TestBuildAssemblesServices(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	raw := []byte("backend:\n  port: 8123\n  source_dir: /opt/freeflow\n")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	t.Setenv("FREEFLOW_SETTINGS", path)

	services, err := Build(nullSink{}, nullClipboard{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if services.Runtime == nil {
		t.Fatalf("expected assembled runtime")
	}
	if services.Settings.Backend.Port != 8123 {
		t.Fatalf("expected loaded settings, got %+v", services.Settings.Backend)
	}
	if services.Runtime.Started() {
		t.Fatalf("build must not start the runtime")
	}
}

func TestBuildMissingSettingsUsesDefaults(t *testing.T) {
	t.Setenv("FREEFLOW_SETTINGS", filepath.Join(t.TempDir(), "absent.yaml"))

	services, err := Build(nullSink{}, nullClipboard{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if services.Settings.Backend.Port != 5000 {
		t.Fatalf("expected default port, got %d", services.Settings.Backend.Port)
	}
}

func TestBuildRejectsBrokenSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("backend: [broken"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	t.Setenv("FREEFLOW_SETTINGS", path)

	if _, err := Build(nullSink{}, nullClipboard{}); err == nil {
		t.Fatalf("expected settings parse error")
	}
}
