package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerRequiresSecret(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	_, err := LoadServer()
	assert.Error(t, err)
}

func TestLoadServerDefaultsAndOverrides(t *testing.T) {
	t.Setenv("AUTH_SECRET", "s3cret")
	t.Setenv("RELAY_ADDR", "")
	t.Setenv("APP_ENV", "")

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, defaultRelayAddr, cfg.Addr)
	assert.Equal(t, "dev", cfg.Env)

	t.Setenv("RELAY_ADDR", "127.0.0.1:9999")
	t.Setenv("APP_ENV", "prod")
	cfg, err = LoadServer()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.Addr)
	assert.Equal(t, "prod", cfg.Env)
}

func TestLoadClientParsesListsAndDurations(t *testing.T) {
	t.Setenv("AUTH_SECRET", "s3cret")
	t.Setenv("RELAY_URL", "ws://relay.example:8473/ws")
	t.Setenv("RING_TIMEOUT", "45s")
	t.Setenv("STUN_URLS", "stun:a.example:3478, stun:b.example:3478 ,")

	cfg, err := LoadClient()
	require.NoError(t, err)
	assert.Equal(t, "ws://relay.example:8473/ws", cfg.RelayURL)
	assert.Equal(t, 45*time.Second, cfg.RingTimeout)
	assert.Equal(t, []string{"stun:a.example:3478", "stun:b.example:3478"}, cfg.STUNURLs)
}

func TestLoadClientRejectsBadDuration(t *testing.T) {
	t.Setenv("AUTH_SECRET", "s3cret")
	t.Setenv("RING_TIMEOUT", "soon")
	_, err := LoadClient()
	assert.Error(t, err)
}
