package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stringstack/internal/session"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8420, cfg.Port)
	assert.Equal(t, 10, cfg.MaxSessions)
	assert.Equal(t, 256, cfg.HistorySize)
	assert.Equal(t, session.DefaultSentinel, cfg.Sentinel)
	assert.Equal(t, session.DrainByCapacity, cfg.Drain)
	assert.Empty(t, cfg.ScriptsDir)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("STRINGSTACK_PORT", "9000")
	t.Setenv("STRINGSTACK_MAX_SESSIONS", "3")
	t.Setenv("STRINGSTACK_SENTINEL", "quit")
	t.Setenv("STRINGSTACK_DRAIN", "length")
	t.Setenv("STRINGSTACK_SCRIPTS_DIR", "/tmp/scripts")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 3, cfg.MaxSessions)
	assert.Equal(t, "/tmp/scripts", cfg.ScriptsDir)

	opts := cfg.SessionOptions()
	assert.Equal(t, "quit", opts.Sentinel)
	assert.Equal(t, session.DrainByLength, opts.Drain)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"port not a number", "STRINGSTACK_PORT", "eighty"},
		{"port out of range", "STRINGSTACK_PORT", "70000"},
		{"negative max sessions", "STRINGSTACK_MAX_SESSIONS", "-1"},
		{"unknown drain policy", "STRINGSTACK_DRAIN", "everything"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestValidate_EmptySentinel(t *testing.T) {
	cfg := &Config{Port: 1, Sentinel: ""}
	assert.Error(t, cfg.Validate())
}
