package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"freeflow/internal/config"
)

// ErrHealthCheckTimeout is returned when the spawned backend never answers
// its health endpoint within the bounded polling window.
var ErrHealthCheckTimeout = errors.New("backend health check timed out")

// ProvisioningError wraps a startup failure with the step that failed.
// Any provisioning failure is fatal to startup; the caller surfaces it and
// does not proceed with a half-initialized system.
type ProvisioningError struct {
	Step string
	Err  error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning failed at %s: %v", e.Step, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// HandleState is the observed lifecycle state of the supervised process.
type HandleState string

const (
	HandleNotStarted   HandleState = "not-started"
	HandleProvisioning HandleState = "provisioning"
	HandleRunning      HandleState = "running"
	HandleExited       HandleState = "exited"
	HandleFailed       HandleState = "failed"
)

// Handle is the opaque reference to the supervised backend process. It is
// owned by the Supervisor; other components only see derived status.
type Handle struct {
	runID string

	mu       sync.Mutex
	state    HandleState
	exitCode int
	process  *os.Process
	waitErr  <-chan error
}

// State returns the lifecycle state and, for HandleExited, the exit code.
func (h *Handle) State() (HandleState, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state, h.exitCode
}

// RunID identifies this supervised run in logs and the provisioning marker.
func (h *Handle) RunID() string { return h.runID }

// Stop terminates the backend process, escalating from interrupt to kill.
func (h *Handle) Stop() {
	h.mu.Lock()
	process := h.process
	h.process = nil
	waitErr := h.waitErr
	h.mu.Unlock()

	if process == nil {
		return
	}
	_ = process.Signal(os.Interrupt)

	select {
	case <-waitErr:
	case <-time.After(3 * time.Second):
		_ = process.Kill()
		<-waitErr
	}
}

func (h *Handle) setState(state HandleState, exitCode int) {
	h.mu.Lock()
	h.state = state
	h.exitCode = exitCode
	h.mu.Unlock()
}

// installMarker is the persisted record that backend dependencies are
// installed. Its presence is trusted as the fast path on later launches.
type installMarker struct {
	Installed   bool      `json:"installed"`
	InstalledAt time.Time `json:"installed_at"`
	InstallID   string    `json:"install_id"`
}

type healthProber interface {
	Health(ctx context.Context) error
}

// Supervisor provisions a runnable backend environment and supervises the
// backend process for the lifetime of the application run.
type Supervisor struct {
	settings config.BackendSettings
	prober   healthProber

	// Test seams; production values are set by NewSupervisor.
	runTool func(ctx context.Context, progress func(string), name string, args ...string) error
	spawn   func(ctx context.Context) (*os.Process, <-chan error, error)
}

// NewSupervisor creates a supervisor that probes readiness through the
// given health prober (normally the command client).
func NewSupervisor(settings config.BackendSettings, prober healthProber) *Supervisor {
	s := &Supervisor{settings: settings, prober: prober}
	s.runTool = s.runInstallTool
	s.spawn = s.spawnBackend
	return s
}

// EnsureReady brings the backend up: provision if needed, spawn, then poll
// health until the backend answers. progress receives best-effort
// human-readable provisioning updates and may be nil. Exactly one backend
// process is spawned per application run.
func (s *Supervisor) EnsureReady(ctx context.Context, progress func(string)) (*Handle, error) {
	if progress == nil {
		progress = func(string) {}
	}

	handle := &Handle{runID: uuid.NewString(), state: HandleProvisioning}

	if err := s.ensureInstalled(ctx, progress); err != nil {
		handle.setState(HandleFailed, 0)
		return nil, err
	}

	process, waitErr, err := s.spawn(ctx)
	if err != nil {
		handle.setState(HandleFailed, 0)
		return nil, &ProvisioningError{Step: "spawn", Err: err}
	}

	handle.mu.Lock()
	handle.process = process
	handle.waitErr = waitErr
	handle.mu.Unlock()

	if err := s.awaitHealthy(ctx); err != nil {
		handle.Stop()
		handle.setState(HandleFailed, 0)
		return nil, &ProvisioningError{Step: "health-check", Err: err}
	}

	handle.setState(HandleRunning, 0)
	slog.Info("[supervisor] backend running", "run_id", handle.runID)

	go s.watchExit(handle, waitErr)
	return handle, nil
}

// ensureInstalled resolves the dependency state: trust the marker, probe
// and self-heal it, or create the environment and install from scratch.
func (s *Supervisor) ensureInstalled(ctx context.Context, progress func(string)) error {
	marker, err := s.readMarker()
	if err == nil && marker.Installed {
		slog.Debug("[supervisor] install marker present, skipping provisioning",
			"installed_at", marker.InstalledAt)
		return nil
	}

	if s.environmentPresent() {
		slog.Info("[supervisor] environment present without marker, repairing marker")
		if err := s.writeMarker(); err != nil {
			slog.Warn("[supervisor] marker repair failed", "error", err)
		}
		return nil
	}

	progress("Setting up Python environment...")
	if err := s.runTool(ctx, progress, s.settings.Python, "-m", "venv", s.venvDir()); err != nil {
		return &ProvisioningError{Step: "create-environment", Err: err}
	}

	progress("Installing dependencies (this can take a few minutes)...")
	requirements := filepath.Join(s.settings.SourceDir, "requirements.txt")
	if err := s.runTool(ctx, progress, s.venvPython(), "-m", "pip", "install", "-r", requirements); err != nil {
		return &ProvisioningError{Step: "install", Err: err}
	}

	if err := s.writeMarker(); err != nil {
		return &ProvisioningError{Step: "write-marker", Err: err}
	}
	progress("Dependencies installed.")
	return nil
}

func (s *Supervisor) awaitHealthy(ctx context.Context) error {
	ticker := time.NewTicker(s.settings.HealthInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= s.settings.HealthAttempts; attempt++ {
		if err := s.prober.Health(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return ErrHealthCheckTimeout
}

func (s *Supervisor) watchExit(handle *Handle, waitErr <-chan error) {
	err := <-waitErr

	exitCode := 0
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	handle.mu.Lock()
	alreadyStopped := handle.process == nil
	handle.process = nil
	handle.state = HandleExited
	handle.exitCode = exitCode
	handle.mu.Unlock()

	if alreadyStopped {
		slog.Info("[supervisor] backend stopped", "run_id", handle.runID)
		return
	}
	// Unexpected exit mid-session. The coordinator does not auto-restart;
	// the user relaunches.
	slog.Error("[supervisor] backend exited unexpectedly",
		"run_id", handle.runID, "exit_code", exitCode, "error", err)
}

func (s *Supervisor) runInstallTool(ctx context.Context, progress func(string), name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe for %s: %w", name, err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", name, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		slog.Debug("[supervisor] install output", "line", line)
		if message, ok := parseInstallProgress(line); ok {
			progress(message)
		}
	}
	// Scanner errors only cost progress detail; the exit status decides.

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%s %s failed: %w", name, strings.Join(args, " "), err)
	}
	return nil
}

// parseInstallProgress extracts a human-readable progress message from one
// line of pip output. Best effort: unrecognized lines yield no message.
func parseInstallProgress(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, "Collecting "):
		pkg := strings.TrimPrefix(trimmed, "Collecting ")
		if i := strings.IndexAny(pkg, " =<>!~["); i > 0 {
			pkg = pkg[:i]
		}
		if pkg == "" {
			return "", false
		}
		return "Downloading " + pkg + "...", true
	case strings.HasPrefix(trimmed, "Installing collected packages"):
		return "Installing packages...", true
	case strings.HasPrefix(trimmed, "Successfully installed"):
		return "Install complete.", true
	default:
		return "", false
	}
}

func (s *Supervisor) spawnBackend(ctx context.Context) (*os.Process, <-chan error, error) {
	script := filepath.Join(s.settings.SourceDir, "api.py")
	cmd := exec.CommandContext(ctx, s.venvPython(), script)
	cmd.Dir = s.settings.SourceDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create backend stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create backend stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("failed to start backend: %w", err)
	}

	// Captured output is logged only; it carries no control decisions.
	go logStream(stdout, "stdout")
	go logStream(stderr, "stderr")

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	return cmd.Process, waitErr, nil
}

func logStream(r io.Reader, stream string) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		slog.Info("[backend] "+scanner.Text(), "stream", stream)
	}
}

func (s *Supervisor) venvDir() string {
	return filepath.Join(s.settings.DataDir, "venv")
}

func (s *Supervisor) venvPython() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(s.venvDir(), "Scripts", "python.exe")
	}
	return filepath.Join(s.venvDir(), "bin", "python")
}

// environmentPresent probes for the one component a runnable environment
// must have: the virtualenv's python interpreter.
func (s *Supervisor) environmentPresent() bool {
	info, err := os.Stat(s.venvPython())
	return err == nil && !info.IsDir()
}

func (s *Supervisor) markerPath() string {
	return filepath.Join(s.settings.DataDir, "deps_installed.json")
}

func (s *Supervisor) readMarker() (installMarker, error) {
	raw, err := os.ReadFile(s.markerPath())
	if err != nil {
		return installMarker{}, err
	}
	var marker installMarker
	if err := json.Unmarshal(raw, &marker); err != nil {
		return installMarker{}, fmt.Errorf("failed to parse install marker: %w", err)
	}
	return marker, nil
}

func (s *Supervisor) writeMarker() error {
	marker := installMarker{
		Installed:   true,
		InstalledAt: time.Now().UTC(),
		InstallID:   uuid.NewString(),
	}
	raw, err := json.MarshalIndent(marker, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.settings.DataDir, 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
		return err
	}
	return os.WriteFile(s.markerPath(), raw, 0o644)
}
