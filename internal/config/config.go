// Package config holds the client configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// DefaultReconnectDelay is the fixed delay before reconnecting after an
// abnormal close. It is deliberately flat, not exponential.
const DefaultReconnectDelay = 5 * time.Second

// DefaultSTUNServers are used for ICE candidate gathering. No TURN.
var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// Config stores every parameter the client needs. Values come from
// defaults, then MATCHLINK_* environment variables, then CLI flags.
type Config struct {
	ServerURL       string        `env:"SERVER_URL"`
	ReconnectDelay  time.Duration `env:"RECONNECT_DELAY"`
	STUNServers     []string      `env:"STUN_SERVERS" envSeparator:","`
	CredentialsPath string        `env:"CREDENTIALS_PATH"`
	MetricsAddr     string        `env:"METRICS_ADDR"`
	Debug           bool          `env:"DEBUG"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ServerURL:       "ws://127.0.0.1:8080/ws",
		ReconnectDelay:  DefaultReconnectDelay,
		STUNServers:     append([]string(nil), DefaultSTUNServers...),
		CredentialsPath: defaultCredentialsPath(),
	}
}

// Load returns Default overlaid with the MATCHLINK_* environment.
func Load() (Config, error) {
	cfg := Default()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "MATCHLINK_"}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks the values that cannot be corrected silently.
func (c Config) Validate() error {
	if c.ReconnectDelay <= 0 {
		return errors.New("reconnect delay must be positive")
	}
	if _, err := NormalizeWSURL(c.ServerURL); err != nil {
		return err
	}
	return nil
}

// NormalizeWSURL validates a raw server URL and fills in a ws/wss scheme.
// A bare host defaults to wss and the /ws path.
func NormalizeWSURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "wss://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid WebSocket URL: %s", raw)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid WebSocket URL scheme: %s", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String(), nil
}

func defaultCredentialsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "matchlink-credentials.yaml"
	}
	return filepath.Join(dir, "matchlink", "credentials.yaml")
}
