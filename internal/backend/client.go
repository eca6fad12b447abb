package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"freeflow/internal/domain"
)

// Client is a thin synchronous wrapper over the backend control API.
// A failed call means no state change occurred on the backend as far as
// the caller is concerned.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a command client for the given backend base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Health probes the backend readiness endpoint.
func (c *Client) Health(ctx context.Context) error {
	var resp struct {
		Healthy bool `json:"healthy"`
	}
	if err := c.call(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return err
	}
	if !resp.Healthy {
		return fmt.Errorf("backend reported unhealthy")
	}
	return nil
}

// Status fetches the current backend status snapshot.
func (c *Client) Status(ctx context.Context) (domain.StatusEvent, error) {
	var resp domain.StatusEvent
	if err := c.call(ctx, http.MethodGet, "/status", nil, &resp); err != nil {
		return domain.StatusEvent{}, err
	}
	resp.Type = domain.EventTypeStatus
	return resp, nil
}

// StartRecording begins audio capture on the backend.
func (c *Client) StartRecording(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/recording/start", nil, nil)
}

// StopRecording stops capture and returns the transcription result.
func (c *Client) StopRecording(ctx context.Context) (domain.TranscriptionResult, error) {
	var result domain.TranscriptionResult
	if err := c.call(ctx, http.MethodPost, "/recording/stop", nil, &result); err != nil {
		return domain.TranscriptionResult{}, err
	}
	return result, nil
}

// CancelRecording discards an in-progress recording without transcribing.
func (c *Client) CancelRecording(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/recording/cancel", nil, nil)
}

// GetConfig loads the dictation configuration from the backend.
func (c *Client) GetConfig(ctx context.Context) (domain.Config, error) {
	var cfg domain.Config
	if err := c.call(ctx, http.MethodGet, "/config", nil, &cfg); err != nil {
		return domain.Config{}, err
	}
	cfg.Normalize()
	return cfg, nil
}

// SaveConfig persists the dictation configuration to the backend.
func (c *Client) SaveConfig(ctx context.Context, cfg domain.Config) error {
	var resp struct {
		Saved bool `json:"saved"`
	}
	if err := c.call(ctx, http.MethodPost, "/config", cfg, &resp); err != nil {
		return err
	}
	if !resp.Saved {
		return fmt.Errorf("backend did not confirm config save")
	}
	return nil
}

// ListAudioDevices lists the backend's available input devices.
func (c *Client) ListAudioDevices(ctx context.Context) ([]domain.AudioDevice, error) {
	var resp struct {
		Devices []domain.AudioDevice `json:"devices"`
	}
	if err := c.call(ctx, http.MethodGet, "/audio-devices", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Devices, nil
}

type hotkeyEnableRequest struct {
	Hotkey []string              `json:"hotkey"`
	Mode   domain.ActivationMode `json:"mode"`
}

// EnableHotkey arms backend-side (delegated) hotkey detection. The backend
// echoes the armed combination; a mismatched echo is logged but not treated
// as a failure since the backend re-asserts its own state independently.
func (c *Client) EnableHotkey(ctx context.Context, hotkey []string, mode domain.ActivationMode) error {
	var resp struct {
		Enabled bool                  `json:"enabled"`
		Hotkey  []string              `json:"hotkey"`
		Mode    domain.ActivationMode `json:"mode"`
	}
	req := hotkeyEnableRequest{Hotkey: hotkey, Mode: mode}
	if err := c.call(ctx, http.MethodPost, "/hotkey/enable", req, &resp); err != nil {
		return err
	}
	if !resp.Enabled || !equalKeys(resp.Hotkey, hotkey) || resp.Mode != mode {
		slog.Warn("[backend] delegated hotkey echo mismatch",
			"sent", hotkey, "echoed", resp.Hotkey, "mode", resp.Mode)
	}
	return nil
}

// DisableHotkey disarms backend-side hotkey detection.
func (c *Client) DisableHotkey(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/hotkey/disable", nil, nil)
}

// Paste asks the backend to synthesize a paste keystroke into the focused
// application.
func (c *Client) Paste(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/paste", nil, nil)
}

func (c *Client) call(ctx context.Context, method string, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend call %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := readErrorDetail(resp.Body)
		if detail == "" {
			return fmt.Errorf("backend call %s failed: %s", path, resp.Status)
		}
		return fmt.Errorf("backend call %s failed: %s: %s", path, resp.Status, detail)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func readErrorDetail(body io.Reader) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Detail != "" {
		return payload.Detail
	}
	return strings.TrimSpace(string(raw))
}

func equalKeys(a []string, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}
