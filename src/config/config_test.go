package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("missing database url", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		t.Setenv("JWT_SECRET", "secret")
		_, err := Load()
		assert.ErrorIs(t, err, ErrMissingDatabaseURL)
	})

	t.Run("missing jwt secret", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/finpilot")
		t.Setenv("JWT_SECRET", "")
		_, err := Load()
		assert.ErrorIs(t, err, ErrMissingJWTSecret)
	})

	t.Run("defaults and overrides", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/finpilot")
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("PORT", "9090")
		t.Setenv("READ_ONLY", "true")
		t.Setenv("CACHE_STALE_TIME", "not-a-duration")
		t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "9090", cfg.Port)
		assert.True(t, cfg.ReadOnly)
		assert.Equal(t, 30*time.Second, cfg.CacheStaleTime)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	})
}
