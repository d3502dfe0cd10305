// Package config reads the relay and client settings from the environment,
// with a .env file as fallback for local development.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultRelayAddr   = "0.0.0.0:8473"
	defaultRelayURL    = "ws://localhost:8473/ws"
	defaultRingTimeout = 30 * time.Second
)

var defaultSTUNURLs = []string{"stun:stun.l.google.com:19302"}

// Server is the relay binary's configuration.
type Server struct {
	// Addr is the listen address of the websocket endpoint.
	Addr string
	// AuthSecret signs and verifies connect tokens.
	AuthSecret string
	// Env is the deployment environment name, e.g. "dev" or "prod".
	Env string
}

// Client is the demo client's configuration.
type Client struct {
	// RelayURL is the websocket URL of the relay.
	RelayURL string
	// AuthSecret mints the connect token locally. In production tokens come
	// from the account service instead.
	AuthSecret string
	// RingTimeout bounds how long an unanswered call rings.
	RingTimeout time.Duration
	// STUNURLs are the ICE servers handed to the peer connection.
	STUNURLs []string
}

// LoadServer reads the relay configuration. Environment variables take
// precedence over .env values.
func LoadServer() (*Server, error) {
	_ = godotenv.Load()

	secret := os.Getenv("AUTH_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("AUTH_SECRET environment variable is required")
	}

	cfg := &Server{
		Addr:       defaultRelayAddr,
		AuthSecret: secret,
		Env:        "dev",
	}
	if v := os.Getenv("RELAY_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.Env = v
	}
	return cfg, nil
}

// LoadClient reads the demo client configuration.
func LoadClient() (*Client, error) {
	_ = godotenv.Load()

	secret := os.Getenv("AUTH_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("AUTH_SECRET environment variable is required")
	}

	cfg := &Client{
		RelayURL:    defaultRelayURL,
		AuthSecret:  secret,
		RingTimeout: defaultRingTimeout,
		STUNURLs:    defaultSTUNURLs,
	}
	if v := os.Getenv("RELAY_URL"); v != "" {
		cfg.RelayURL = v
	}
	if v := os.Getenv("RING_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse RING_TIMEOUT: %w", err)
		}
		cfg.RingTimeout = d
	}
	if v := os.Getenv("STUN_URLS"); v != "" {
		cfg.STUNURLs = splitList(v)
	}
	return cfg, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
