package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FEEDGEN_PUBLISHER_DID", "did:plc:publisher")

	cfg, err := Load(New(), true)
	require.NoError(t, err)

	assert.Equal(t, DefaultHostname, cfg.Hostname)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultDatabaseURL, cfg.DatabaseURL)
	assert.Equal(t, DefaultFirehoseURL, cfg.FirehoseURL)
	assert.Equal(t, 5, cfg.DatabaseMaxConns)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 7*24*time.Hour, cfg.PostMaxAge)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	assert.Equal(t, "did:web:localhost", cfg.ServiceDID())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("FEEDGEN_PUBLISHER_DID", "did:plc:publisher")
	t.Setenv("FEEDGEN_HOSTNAME", "feed.example.com")
	t.Setenv("PORT", "8080")
	t.Setenv("DATABASE_URL", "postgres://localhost/feeds")
	t.Setenv("FEEDGEN_WORKERS", "3")
	t.Setenv("FEEDGEN_POST_MAX_AGE", "36h")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(New(), true)
	require.NoError(t, err)

	assert.Equal(t, "feed.example.com", cfg.Hostname)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "postgres://localhost/feeds", cfg.DatabaseURL)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 36*time.Hour, cfg.PostMaxAge)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, "did:web:feed.example.com", cfg.ServiceDID())
}

func TestLoad_RequiresPublisherDID(t *testing.T) {
	t.Setenv("FEEDGEN_PUBLISHER_DID", "")

	_, err := Load(New(), true)
	assert.ErrorContains(t, err, "FEEDGEN_PUBLISHER_DID")

	_, err = Load(New(), false)
	assert.NoError(t, err)
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("FEEDGEN_PUBLISHER_DID", "did:plc:publisher")
	t.Setenv("PORT", "not-a-port")

	_, err := Load(New(), true)
	assert.Error(t, err)
}

func TestLoad_RejectsUnboundedRetention(t *testing.T) {
	tests := []struct {
		name string
		env  string
		val  string
	}{
		{"zero rows", "FEEDGEN_POST_MAX_ROWS", "0"},
		{"negative rows", "FEEDGEN_POST_MAX_ROWS", "-10"},
		{"zero age", "FEEDGEN_POST_MAX_AGE", "0s"},
		{"negative age", "FEEDGEN_POST_MAX_AGE", "-1h"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("FEEDGEN_PUBLISHER_DID", "did:plc:publisher")
			t.Setenv(tt.env, tt.val)

			_, err := Load(New(), true)
			assert.ErrorContains(t, err, tt.env)
		})
	}
}
