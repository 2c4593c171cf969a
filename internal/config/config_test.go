package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("VALKEY_ADDR", "")

	cfg := Load()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.NotEmpty(t, cfg.DatabaseURL)
	assert.NotEmpty(t, cfg.ValkeyAddr)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv("ALLOWED_ORIGIN", "https://chat.example.com")

	cfg := Load()
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "postgres://x", cfg.DatabaseURL)
	assert.Equal(t, "https://chat.example.com", cfg.AllowedOrigin)
}
