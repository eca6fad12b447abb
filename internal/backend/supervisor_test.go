package backend

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"freeflow/internal/config"
)

type fakeProber struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (p *fakeProber) Health(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func testSettings(t *testing.T) config.BackendSettings {
	t.Helper()
	return config.BackendSettings{
		Host:           "127.0.0.1",
		Port:           5000,
		Python:         "python3",
		SourceDir:      t.TempDir(),
		DataDir:        t.TempDir(),
		HealthInterval: time.Millisecond,
		HealthAttempts: 5,
	}
}

func noSpawn(t *testing.T) (func(ctx context.Context) (*os.Process, <-chan error, error), chan error) {
	t.Helper()
	waitErr := make(chan error, 1)
	return func(context.Context) (*os.Process, <-chan error, error) {
		return nil, waitErr, nil
	}, waitErr
}

func TestEnsureReadyTrustsInstallMarker(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	marker := installMarker{Installed: true, InstalledAt: time.Now().UTC(), InstallID: uuid.NewString()}
	raw, _ := json.Marshal(marker)
	if err := os.WriteFile(filepath.Join(settings.DataDir, "deps_installed.json"), raw, 0o644); err != nil {
		t.Fatalf("write marker failed: %v", err)
	}

	supervisor := NewSupervisor(settings, &fakeProber{})
	supervisor.runTool = func(context.Context, func(string), string, ...string) error {
		t.Errorf("install tool must not run when the marker is present")
		return nil
	}
	spawn, waitErr := noSpawn(t)
	supervisor.spawn = spawn

	handle, err := supervisor.EnsureReady(context.Background(), nil)
	if err != nil {
		t.Fatalf("ensure ready failed: %v", err)
	}
	if state, _ := handle.State(); state != HandleRunning {
		t.Fatalf("unexpected state: %s", state)
	}
	if handle.RunID() == "" {
		t.Fatalf("expected a run id")
	}
	waitErr <- nil
}

func TestEnsureReadyRepairsMissingMarker(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	// Environment exists but the marker is gone.
	venvPython := filepath.Join(settings.DataDir, "venv", "bin", "python")
	if err := os.MkdirAll(filepath.Dir(venvPython), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(venvPython, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	supervisor := NewSupervisor(settings, &fakeProber{})
	supervisor.runTool = func(context.Context, func(string), string, ...string) error {
		t.Errorf("install tool must not run when the environment is present")
		return nil
	}
	spawn, waitErr := noSpawn(t)
	supervisor.spawn = spawn

	if _, err := supervisor.EnsureReady(context.Background(), nil); err != nil {
		t.Fatalf("ensure ready failed: %v", err)
	}
	waitErr <- nil

	raw, err := os.ReadFile(filepath.Join(settings.DataDir, "deps_installed.json"))
	if err != nil {
		t.Fatalf("expected repaired marker: %v", err)
	}
	var marker installMarker
	if err := json.Unmarshal(raw, &marker); err != nil {
		t.Fatalf("marker parse failed: %v", err)
	}
	if !marker.Installed {
		t.Fatalf("expected installed=true, got %+v", marker)
	}
	if _, err := uuid.Parse(marker.InstallID); err != nil {
		t.Fatalf("expected a uuid install id, got %q", marker.InstallID)
	}
}

func TestEnsureReadyProvisionsFromScratch(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	var toolCalls [][]string
	var progressMessages []string

	supervisor := NewSupervisor(settings, &fakeProber{failures: 2})
	supervisor.runTool = func(_ context.Context, progress func(string), name string, args ...string) error {
		toolCalls = append(toolCalls, append([]string{name}, args...))
		progress("Downloading fastapi...")
		return nil
	}
	spawn, waitErr := noSpawn(t)
	supervisor.spawn = spawn

	handle, err := supervisor.EnsureReady(context.Background(), func(message string) {
		progressMessages = append(progressMessages, message)
	})
	if err != nil {
		t.Fatalf("ensure ready failed: %v", err)
	}
	if state, _ := handle.State(); state != HandleRunning {
		t.Fatalf("unexpected state: %s", state)
	}
	waitErr <- nil

	if len(toolCalls) != 2 {
		t.Fatalf("expected venv then pip, got %v", toolCalls)
	}
	if toolCalls[0][0] != "python3" || toolCalls[0][2] != "venv" {
		t.Fatalf("unexpected venv invocation: %v", toolCalls[0])
	}
	if toolCalls[1][2] != "pip" || toolCalls[1][3] != "install" {
		t.Fatalf("unexpected pip invocation: %v", toolCalls[1])
	}

	if len(progressMessages) < 3 {
		t.Fatalf("expected provisioning progress, got %v", progressMessages)
	}
	if progressMessages[len(progressMessages)-1] != "Dependencies installed." {
		t.Fatalf("unexpected final progress: %v", progressMessages)
	}

	if _, err := os.Stat(filepath.Join(settings.DataDir, "deps_installed.json")); err != nil {
		t.Fatalf("expected marker after install: %v", err)
	}
}

func TestEnsureReadyInstallFailureIsFatal(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	supervisor := NewSupervisor(settings, &fakeProber{})
	supervisor.runTool = func(context.Context, func(string), string, ...string) error {
		return errors.New("no network")
	}
	supervisor.spawn = func(context.Context) (*os.Process, <-chan error, error) {
		t.Errorf("spawn must not run after a failed install")
		return nil, nil, nil
	}

	_, err := supervisor.EnsureReady(context.Background(), nil)
	var provErr *ProvisioningError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected provisioning error, got %v", err)
	}
	if provErr.Step != "create-environment" {
		t.Fatalf("unexpected step: %s", provErr.Step)
	}

	if _, statErr := os.Stat(filepath.Join(settings.DataDir, "deps_installed.json")); statErr == nil {
		t.Fatalf("marker must not be written after a failed install")
	}
}

func TestEnsureReadyHealthTimeout(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	settings.HealthAttempts = 3

	supervisor := NewSupervisor(settings, &fakeProber{failures: 100})
	supervisor.runTool = func(context.Context, func(string), string, ...string) error { return nil }
	spawn, waitErr := noSpawn(t)
	supervisor.spawn = spawn
	close(waitErr)

	_, err := supervisor.EnsureReady(context.Background(), nil)
	if !errors.Is(err, ErrHealthCheckTimeout) {
		t.Fatalf("expected health timeout, got %v", err)
	}
	var provErr *ProvisioningError
	if !errors.As(err, &provErr) || provErr.Step != "health-check" {
		t.Fatalf("expected health-check step, got %v", err)
	}
}

func TestEnsureReadySpawnFailure(t *testing.T) {
	t.Parallel()

	settings := testSettings(t)
	supervisor := NewSupervisor(settings, &fakeProber{})
	supervisor.runTool = func(context.Context, func(string), string, ...string) error { return nil }
	supervisor.spawn = func(context.Context) (*os.Process, <-chan error, error) {
		return nil, nil, errors.New("interpreter missing")
	}

	_, err := supervisor.EnsureReady(context.Background(), nil)
	var provErr *ProvisioningError
	if !errors.As(err, &provErr) || provErr.Step != "spawn" {
		t.Fatalf("expected spawn step, got %v", err)
	}
}

func TestParseInstallProgress(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		line    string
		message string
		ok      bool
	}{
		"collecting":           {"Collecting fastapi", "Downloading fastapi...", true},
		"collecting versioned": {"Collecting uvicorn[standard]>=0.23", "Downloading uvicorn...", true},
		"collecting padded":    {"  Collecting numpy==1.26.0", "Downloading numpy...", true},
		"installing":           {"Installing collected packages: fastapi, uvicorn", "Installing packages...", true},
		"done":                 {"Successfully installed fastapi-0.110.0", "Install complete.", true},
		"noise":                {"Using cached fastapi-0.110.0-py3-none-any.whl", "", false},
		"empty":                {"", "", false},
	}
	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			message, ok := parseInstallProgress(tc.line)
			if ok != tc.ok || message != tc.message {
				t.Fatalf("parseInstallProgress(%q) = %q, %v; want %q, %v", tc.line, message, ok, tc.message, tc.ok)
			}
		})
	}
}
