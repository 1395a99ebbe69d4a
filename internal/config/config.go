// Package config loads agentlink's YAML configuration.
//
// ${VAR} references are expanded from the environment before parsing.
// Zero values are replaced by the defaults in defaults.go.
package config

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rickgao/agentlink/internal/connection"
)

// Config is the top-level configuration.
type Config struct {
	Endpoint   EndpointConfig   `yaml:"endpoint"`
	API        APIConfig        `yaml:"api"`
	Connection ConnectionConfig `yaml:"connection"`
	Requests   RequestsConfig   `yaml:"requests"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
}

// EndpointConfig locates the agent websocket.
type EndpointConfig struct {
	// BaseURL falls back to $AGENTLINK_WS_URL. http(s) schemes are rewritten to ws(s).
	BaseURL string `yaml:"base_url"`

	// Path is appended to BaseURL with {agent} replaced by the escaped agent id.
	Path string `yaml:"path"`

	Headers map[string]string `yaml:"headers"`
}

// APIConfig configures the history HTTP client.
type APIConfig struct {
	// BaseURL defaults to the endpoint base with ws(s) rewritten to http(s).
	BaseURL      string        `yaml:"base_url"`
	Token        string        `yaml:"token"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	HistoryLimit int           `yaml:"history_limit"`
}

// ConnectionConfig mirrors connection.Config.
type ConnectionConfig struct {
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	HeartbeatInterval    time.Duration `yaml:"heartbeat_interval"`
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	BufferSize           int           `yaml:"buffer_size"`
	SendRetries          int           `yaml:"send_retries"`
	SendRetryDelay       time.Duration `yaml:"send_retry_delay"`
}

// RequestsConfig configures data request correlation.
type RequestsConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// MetricsConfig configures the Prometheus endpoint. Port 0 disables it.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// ConnectionSettings returns the connection template. URL is left empty and
// filled per agent by EndpointURL.
func (c *Config) ConnectionSettings() connection.Config {
	cc := c.Connection

	var header http.Header
	if len(c.Endpoint.Headers) > 0 {
		header = make(http.Header, len(c.Endpoint.Headers))
		for k, v := range c.Endpoint.Headers {
			header.Set(k, v)
		}
	}

	return connection.Config{
		Header:               header,
		ReconnectBaseDelay:   cc.ReconnectBaseDelay,
		ReconnectMaxDelay:    cc.ReconnectMaxDelay,
		MaxReconnectAttempts: cc.MaxReconnectAttempts,
		HeartbeatInterval:    cc.HeartbeatInterval,
		HandshakeTimeout:     cc.HandshakeTimeout,
		WriteTimeout:         cc.WriteTimeout,
		BufferSize:           cc.BufferSize,
		SendRetries:          cc.SendRetries,
		SendRetryDelay:       cc.SendRetryDelay,
	}
}

// SlogLevel returns the configured log level, Info if unset or unknown.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}
