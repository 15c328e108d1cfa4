// Package config resolves the configuration surface for both the server
// and the client, with the precedence: CLI flag > environment variable >
// default.
package config

import (
	"fmt"
	"os"
	"strings"
)

// Default configuration values.
const (
	DefaultListenAddr = ":5001"
	DefaultServerURL  = "ws://localhost:5001/ws"
	DefaultSTUN       = "stun:stun.l.google.com:19302"
)

// Config holds the resolved application configuration.
type Config struct {
	// Server side
	ListenAddr     string
	AllowedOrigins []string // empty means allow all (development)
	StaticDir      string   // optional browser client build to serve

	// Client side
	ServerURL string

	// ICE configuration, passed through to the peer connection and not
	// interpreted here.
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
}

// Options carries CLI flag overrides into Load.
type Options struct {
	ListenAddr     string
	AllowedOrigins []string
	StaticDir      string
	ServerURL      string
	STUNServer     string
	TURNServer     string
	TURNUser       string
	TURNPass       string
	ForceRelay     bool
}

// Load resolves configuration with the precedence flag > env > default.
func Load(opts Options) (*Config, error) {
	cfg := &Config{
		ListenAddr: firstOf(opts.ListenAddr, os.Getenv("PAIRLINE_LISTEN"), DefaultListenAddr),
		StaticDir:  firstOf(opts.StaticDir, os.Getenv("PAIRLINE_STATIC")),
		ServerURL:  firstOf(opts.ServerURL, os.Getenv("PAIRLINE_SERVER"), DefaultServerURL),
		STUNServer: firstOf(opts.STUNServer, os.Getenv("STUN_SERVER"), DefaultSTUN),
		TURNServer: firstOf(opts.TURNServer, os.Getenv("TURN_SERVER")),
		TURNUser:   firstOf(opts.TURNUser, os.Getenv("TURN_USERNAME")),
		TURNPass:   firstOf(opts.TURNPass, os.Getenv("TURN_PASSWORD")),
		ForceRelay: opts.ForceRelay,
	}

	cfg.AllowedOrigins = opts.AllowedOrigins
	if len(cfg.AllowedOrigins) == 0 {
		if env := os.Getenv("PAIRLINE_ORIGINS"); env != "" {
			for _, o := range strings.Split(env, ",") {
				if o = strings.TrimSpace(o); o != "" {
					cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
				}
			}
		}
	}

	if cfg.ForceRelay && cfg.TURNServer == "" {
		return nil, fmt.Errorf("cannot force relay mode without a TURN server configured")
	}

	return cfg, nil
}

// GetSTUNServers returns the STUN server URLs.
func (c *Config) GetSTUNServers() []string {
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URL variants if a relay is
// configured, nil otherwise.
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	if strings.Contains(c.TURNServer, "?") {
		// caller supplied a fully-formed TURN URL
		return []string{c.TURNServer}
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns the TURN username and password.
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
