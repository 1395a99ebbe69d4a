package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNoEndpoint means neither endpoint.base_url nor $AGENTLINK_WS_URL is set.
var ErrNoEndpoint = errors.New("no websocket endpoint configured")

const agentPlaceholder = "{agent}"

// EndpointURL returns the websocket URL for one agent.
func (c *Config) EndpointURL(agentID string) (string, error) {
	if c.Endpoint.BaseURL == "" {
		return "", ErrNoEndpoint
	}
	if agentID == "" {
		return "", errors.New("agent id is required")
	}

	u, err := parseWSBase(c.Endpoint.BaseURL)
	if err != nil {
		return "", err
	}

	p := c.Endpoint.Path
	if p == "" {
		p = DefaultEndpointPath
	}
	escaped := url.PathEscape(agentID)
	u.RawPath = strings.TrimRight(u.EscapedPath(), "/") + strings.ReplaceAll(p, agentPlaceholder, escaped)
	u.Path = strings.TrimRight(u.Path, "/") + strings.ReplaceAll(p, agentPlaceholder, agentID)

	return u.String(), nil
}

func parseWSBase(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("endpoint.base_url: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("endpoint.base_url: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("endpoint.base_url: missing host in %q", raw)
	}
	return u, nil
}

// httpBase derives the REST base from a websocket base. Returns "" for
// anything it cannot parse.
func httpBase(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return ""
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u.String()
}
