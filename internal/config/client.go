package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Default client configuration values (production)
const (
	DefaultDomain = "zava-chat.app"
	DefaultSTUN   = "stun:stun.l.google.com:19302"
)

var ErrRelayWithoutTURN = errors.New("cannot force relay mode without TURN server configured")

// Config holds the client configuration.
type Config struct {
	// Domain serves the web app and the relay.
	Domain string

	// WebSocketURL is the relay endpoint, wss://<domain>/ws unless overridden.
	WebSocketURL string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// ForceRelay restricts ICE to relayed candidates.
	ForceRelay bool
}

// Options carries CLI flag overrides.
type Options struct {
	Domain     string
	Server     string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	domain := firstNonEmpty(opts.Domain, os.Getenv("DOMAIN"), DefaultDomain)

	wsURL := firstNonEmpty(opts.Server, os.Getenv("SERVER_URL"), fmt.Sprintf("wss://%s/ws", domain))
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("server url %q: scheme must be ws or wss", wsURL)
	}

	cfg := &Config{
		Domain:       domain,
		WebSocketURL: wsURL,
		STUNServer:   firstNonEmpty(opts.STUNServer, os.Getenv("STUN_SERVER"), DefaultSTUN),
		TURNServer:   firstNonEmpty(opts.TURNServer, os.Getenv("TURN_SERVER")),
		TURNUser:     firstNonEmpty(opts.TURNUser, os.Getenv("TURN_USERNAME")),
		TURNPass:     firstNonEmpty(opts.TURNPass, os.Getenv("TURN_PASSWORD")),
		ForceRelay:   opts.ForceRelay,
	}

	if cfg.ForceRelay && cfg.TURNServers() == nil {
		return nil, ErrRelayWithoutTURN
	}
	return cfg, nil
}

// InviteLink returns the web app URL that joins roomID.
func (c *Config) InviteLink(roomID string) string {
	return fmt.Sprintf("https://%s/join/%s", c.Domain, url.PathEscape(roomID))
}

// HTTPBase is the relay's HTTP origin, derived from the WebSocket URL.
func (c *Config) HTTPBase() string {
	u, err := url.Parse(c.WebSocketURL)
	if err != nil {
		return "https://" + c.Domain
	}
	if u.Scheme == "ws" {
		u.Scheme = "http"
	} else {
		u.Scheme = "https"
	}
	u.Path = ""
	u.RawQuery = ""
	return strings.TrimSuffix(u.String(), "/")
}

func (c *Config) STUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// TURNServers expands the configured TURN host into the usual transports.
// A value that already carries a port or query is used as is.
func (c *Config) TURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}

	host := strings.TrimPrefix(strings.TrimPrefix(c.TURNServer, "turn:"), "turns:")
	if strings.Contains(host, ":") || strings.Contains(host, "?") {
		return []string{c.TURNServer}
	}
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

func (c *Config) TURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
