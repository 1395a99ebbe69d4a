package config

import (
	"os"
	"time"
)

// EnvWSURL is consulted when endpoint.base_url is empty.
const EnvWSURL = "AGENTLINK_WS_URL"

// Default values for optional configuration fields.
const (
	DefaultEndpointPath         = "/ws/agents/{agent}"
	DefaultAPITimeout           = 30 * time.Second
	DefaultMaxRetries           = 3
	DefaultRetryBackoff         = 1 * time.Second
	DefaultHistoryLimit         = 50
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultReconnectMaxDelay    = 16 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultHeartbeatInterval    = 30 * time.Second
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultBufferSize           = 1000
	DefaultSendRetries          = 3
	DefaultSendRetryDelay       = 500 * time.Millisecond
	DefaultRequestTimeout       = 10 * time.Second
	DefaultMetricsPath          = "/metrics"
	DefaultLogLevel             = "info"
)

func (c *Config) applyDefaults() {
	// Endpoint defaults
	if c.Endpoint.BaseURL == "" {
		c.Endpoint.BaseURL = os.Getenv(EnvWSURL)
	}
	if c.Endpoint.Path == "" {
		c.Endpoint.Path = DefaultEndpointPath
	}

	// API defaults
	if c.API.BaseURL == "" {
		c.API.BaseURL = httpBase(c.Endpoint.BaseURL)
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}
	if c.API.RetryBackoff == 0 {
		c.API.RetryBackoff = DefaultRetryBackoff
	}
	if c.API.HistoryLimit == 0 {
		c.API.HistoryLimit = DefaultHistoryLimit
	}

	// Connection defaults
	cc := &c.Connection
	if cc.ReconnectBaseDelay == 0 {
		cc.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if cc.ReconnectMaxDelay == 0 {
		cc.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if cc.MaxReconnectAttempts == 0 {
		cc.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if cc.HeartbeatInterval == 0 {
		cc.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cc.HandshakeTimeout == 0 {
		cc.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cc.WriteTimeout == 0 {
		cc.WriteTimeout = DefaultWriteTimeout
	}
	if cc.BufferSize == 0 {
		cc.BufferSize = DefaultBufferSize
	}
	if cc.SendRetries == 0 {
		cc.SendRetries = DefaultSendRetries
	}
	if cc.SendRetryDelay == 0 {
		cc.SendRetryDelay = DefaultSendRetryDelay
	}

	// Requests defaults
	if c.Requests.Timeout == 0 {
		c.Requests.Timeout = DefaultRequestTimeout
	}

	// Metrics defaults. Port stays 0 (disabled) unless set.
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}
