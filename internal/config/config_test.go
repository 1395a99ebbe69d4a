package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rickgao/agentlink/internal/connection"
)

func TestLoad(t *testing.T) {
	yaml := `
endpoint:
  base_url: wss://agents.example.com
  path: /v2/agents/{agent}/socket
  headers:
    X-Tenant: acme
api:
  token: abc
connection:
  reconnect_base_delay: 2s
  reconnect_max_delay: 30s
  max_reconnect_attempts: 8
requests:
  timeout: 15s
metrics:
  port: 9100
log:
  level: debug
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Endpoint.BaseURL != "wss://agents.example.com" {
		t.Errorf("Endpoint.BaseURL = %q", cfg.Endpoint.BaseURL)
	}
	if cfg.Endpoint.Headers["X-Tenant"] != "acme" {
		t.Errorf("Endpoint.Headers = %v", cfg.Endpoint.Headers)
	}
	if cfg.Connection.ReconnectBaseDelay != 2*time.Second {
		t.Errorf("Connection.ReconnectBaseDelay = %v, want 2s", cfg.Connection.ReconnectBaseDelay)
	}
	if cfg.Connection.ReconnectMaxDelay != 30*time.Second {
		t.Errorf("Connection.ReconnectMaxDelay = %v, want 30s", cfg.Connection.ReconnectMaxDelay)
	}
	if cfg.Connection.MaxReconnectAttempts != 8 {
		t.Errorf("Connection.MaxReconnectAttempts = %d, want 8", cfg.Connection.MaxReconnectAttempts)
	}
	if cfg.Requests.Timeout != 15*time.Second {
		t.Errorf("Requests.Timeout = %v, want 15s", cfg.Requests.Timeout)
	}
	if cfg.Metrics.Port != 9100 {
		t.Errorf("Metrics.Port = %d, want 9100", cfg.Metrics.Port)
	}
	// Load alone applies no defaults.
	if cfg.Connection.BufferSize != 0 {
		t.Errorf("Connection.BufferSize = %d, want 0", cfg.Connection.BufferSize)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_AGENT_TOKEN", "secret123")
	t.Setenv("TEST_WS_URL", "wss://env.example.com")

	yaml := `
endpoint:
  base_url: ${TEST_WS_URL}
api:
  token: ${TEST_AGENT_TOKEN}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.Token != "secret123" {
		t.Errorf("API.Token = %q, want %q", cfg.API.Token, "secret123")
	}
	if cfg.Endpoint.BaseURL != "wss://env.example.com" {
		t.Errorf("Endpoint.BaseURL = %q", cfg.Endpoint.BaseURL)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
endpoint:
  base_url: wss://agents.example.com/base
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Endpoint.Path != DefaultEndpointPath {
		t.Errorf("Endpoint.Path = %q, want default %q", cfg.Endpoint.Path, DefaultEndpointPath)
	}
	if cfg.API.BaseURL != "https://agents.example.com/base" {
		t.Errorf("API.BaseURL = %q, want derived https base", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != DefaultAPITimeout {
		t.Errorf("API.Timeout = %v, want default %v", cfg.API.Timeout, DefaultAPITimeout)
	}
	if cfg.Connection.ReconnectBaseDelay != time.Second {
		t.Errorf("ReconnectBaseDelay = %v, want 1s", cfg.Connection.ReconnectBaseDelay)
	}
	if cfg.Connection.ReconnectMaxDelay != 16*time.Second {
		t.Errorf("ReconnectMaxDelay = %v, want 16s", cfg.Connection.ReconnectMaxDelay)
	}
	if cfg.Connection.MaxReconnectAttempts != 5 {
		t.Errorf("MaxReconnectAttempts = %d, want 5", cfg.Connection.MaxReconnectAttempts)
	}
	if cfg.Connection.HeartbeatInterval != 30*time.Second {
		t.Errorf("HeartbeatInterval = %v, want 30s", cfg.Connection.HeartbeatInterval)
	}
	if cfg.Requests.Timeout != 10*time.Second {
		t.Errorf("Requests.Timeout = %v, want 10s", cfg.Requests.Timeout)
	}
	if cfg.Metrics.Port != 0 {
		t.Errorf("Metrics.Port = %d, want 0 (disabled)", cfg.Metrics.Port)
	}
	if cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Metrics.Path = %q, want default %q", cfg.Metrics.Path, DefaultMetricsPath)
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("SlogLevel = %v, want info", cfg.SlogLevel())
	}
}

func TestDefaultsMatchConnectionDefaults(t *testing.T) {
	t.Setenv(EnvWSURL, "ws://localhost:8080")

	got := Default().ConnectionSettings()
	want := connection.DefaultConfig()

	if got.ReconnectBaseDelay != want.ReconnectBaseDelay ||
		got.ReconnectMaxDelay != want.ReconnectMaxDelay ||
		got.MaxReconnectAttempts != want.MaxReconnectAttempts ||
		got.HeartbeatInterval != want.HeartbeatInterval ||
		got.BufferSize != want.BufferSize ||
		got.SendRetries != want.SendRetries ||
		got.SendRetryDelay != want.SendRetryDelay {
		t.Errorf("ConnectionSettings() = %+v, want %+v", got, want)
	}
	if got.URL != "" {
		t.Errorf("URL = %q, want empty template", got.URL)
	}
}

func TestEnvEndpointFallback(t *testing.T) {
	t.Setenv(EnvWSURL, "https://agents.example.com")

	cfg, err := LoadAndValidate("")
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}

	got, err := cfg.EndpointURL("a1")
	if err != nil {
		t.Fatalf("EndpointURL failed: %v", err)
	}
	if got != "wss://agents.example.com/ws/agents/a1" {
		t.Errorf("EndpointURL = %q", got)
	}
	if cfg.API.BaseURL != "https://agents.example.com" {
		t.Errorf("API.BaseURL = %q", cfg.API.BaseURL)
	}
}

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		path    string
		agent   string
		want    string
		wantErr bool
	}{
		{"ws passthrough", "ws://localhost:8080", "", "a1", "ws://localhost:8080/ws/agents/a1", false},
		{"http rewritten", "http://localhost:8080", "", "a1", "ws://localhost:8080/ws/agents/a1", false},
		{"https rewritten", "https://example.com", "", "a1", "wss://example.com/ws/agents/a1", false},
		{"base path kept", "wss://example.com/api/", "", "a1", "wss://example.com/api/ws/agents/a1", false},
		{"custom path", "wss://example.com", "/agents/{agent}/live", "a1", "wss://example.com/agents/a1/live", false},
		{"agent escaped", "wss://example.com", "", "sales bot/eu", "wss://example.com/ws/agents/sales%20bot%2Feu", false},
		{"bad scheme", "ftp://example.com", "", "a1", "", true},
		{"no host", "ws://", "", "a1", "", true},
		{"empty agent", "wss://example.com", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Endpoint: EndpointConfig{BaseURL: tt.base, Path: tt.path}}
			got, err := cfg.EndpointURL(tt.agent)
			if tt.wantErr {
				if err == nil {
					t.Errorf("EndpointURL() = %q, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("EndpointURL() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("EndpointURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEndpointURL_NoEndpoint(t *testing.T) {
	cfg := &Config{}
	if _, err := cfg.EndpointURL("a1"); !errors.Is(err, ErrNoEndpoint) {
		t.Errorf("EndpointURL error = %v, want ErrNoEndpoint", err)
	}
}

func TestConnectionSettingsHeaders(t *testing.T) {
	cfg := &Config{Endpoint: EndpointConfig{Headers: map[string]string{"x-tenant": "acme"}}}
	h := cfg.ConnectionSettings().Header
	if h.Get("X-Tenant") != "acme" {
		t.Errorf("Header = %v", h)
	}
	if (&Config{}).ConnectionSettings().Header != nil {
		t.Error("expected nil header when none configured")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{Endpoint: EndpointConfig{BaseURL: "wss://example.com"}}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: "",
		},
		{
			name:    "missing endpoint",
			mutate:  func(c *Config) { c.Endpoint.BaseURL = "" },
			wantErr: "endpoint.base_url is required (or set AGENTLINK_WS_URL)",
		},
		{
			name:    "bad scheme",
			mutate:  func(c *Config) { c.Endpoint.BaseURL = "ftp://example.com" },
			wantErr: `endpoint.base_url: unsupported scheme "ftp"`,
		},
		{
			name:    "path without agent",
			mutate:  func(c *Config) { c.Endpoint.Path = "/ws" },
			wantErr: `endpoint.path must contain {agent}, got "/ws"`,
		},
		{
			name: "max delay below base",
			mutate: func(c *Config) {
				c.Connection.ReconnectBaseDelay = 5 * time.Second
				c.Connection.ReconnectMaxDelay = time.Second
			},
			wantErr: "connection.reconnect_max_delay (1s) cannot be less than reconnect_base_delay (5s)",
		},
		{
			name:    "negative attempts",
			mutate:  func(c *Config) { c.Connection.MaxReconnectAttempts = -1 },
			wantErr: "connection.max_reconnect_attempts must be >= 0",
		},
		{
			name:    "negative send retries",
			mutate:  func(c *Config) { c.Connection.SendRetries = -2 },
			wantErr: "connection.send_retries must be >= 0",
		},
		{
			name:    "metrics port out of range",
			mutate:  func(c *Config) { c.Metrics.Port = 70000 },
			wantErr: "metrics.port must be between 0 and 65535, got 70000",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: `log.level: unknown level "loud"`,
		},
		{
			name:    "negative heartbeat disables",
			mutate:  func(c *Config) { c.Connection.HeartbeatInterval = -time.Second },
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestLoadAndValidate_Errors(t *testing.T) {
	t.Setenv(EnvWSURL, "")

	if _, err := LoadAndValidate(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := writeTempFile(t, "endpoint: [not, a, map]\n")
	if _, err := LoadAndValidate(path); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Errorf("expected parse error, got %v", err)
	}

	path = writeTempFile(t, "log:\n  level: debug\n")
	if _, err := LoadAndValidate(path); err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Errorf("expected validation error, got %v", err)
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
