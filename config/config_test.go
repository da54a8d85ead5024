package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := InitConfig()
		require.NoError(t, err)

		assert.Equal(t, "8000", cfg.Server.HTTPPort)
		assert.Equal(t, 60*time.Second, cfg.Server.Timeout)
		assert.Equal(t, 10, cfg.Server.ReviewsPerMinute)
		assert.Equal(t, "easytrip", cfg.Repositories.Postgres.DB)
		assert.Equal(t, "disabled", cfg.Images.Provider)
		assert.True(t, cfg.StubAuth())
		assert.False(t, cfg.IsProduction())
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("EASYTRIP_REPOSITORIES_POSTGRES_HOST", "db.internal")
		t.Setenv("EASYTRIP_CACHE_SNAPSHOTTTL", "5m")

		cfg, err := InitConfig()
		require.NoError(t, err)
		assert.Equal(t, "db.internal", cfg.Repositories.Postgres.Host)
		assert.Equal(t, 5*time.Minute, cfg.Cache.SnapshotTTL)
	})

	t.Run("production refuses stub auth", func(t *testing.T) {
		t.Setenv("EASYTRIP_MODE", "production")

		_, err := InitConfig()
		assert.ErrorContains(t, err, "auth.stub")
	})
}

func TestValidate(t *testing.T) {
	var cfg Config
	cfg.Mode = "development"
	cfg.Auth.Stub = false
	assert.ErrorContains(t, cfg.Validate(), "firebaseProjectID")

	cfg.Auth.FirebaseProjectID = "easytrip-dev"
	cfg.Images.Provider = "imgur"
	assert.ErrorContains(t, cfg.Validate(), "images.provider")

	cfg.Images.Provider = "Cloudinary"
	assert.NoError(t, cfg.Validate())
}
