package config_test

import (
	"testing"
	"time"

	"github.com/bcnelson/workspace-tree/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "http://localhost:8080", cfg.Tree.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Tree.HTTPTimeout)
	assert.True(t, cfg.Seed.Demo)
	assert.False(t, cfg.UseFixture())
	require.NoError(t, cfg.Validate())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_DSN", "postgres://localhost/tree")
	t.Setenv("TREE_FIXTURE", "testdata/tree.json")
	t.Setenv("TREE_HTTP_TIMEOUT", "2s")
	t.Setenv("SEED_DEMO", "false")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 2*time.Second, cfg.Tree.HTTPTimeout)
	assert.True(t, cfg.UseFixture())
	assert.False(t, cfg.Seed.Demo)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MalformedDuration(t *testing.T) {
	t.Setenv("TREE_HTTP_TIMEOUT", "soon")
	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tree config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"unknown driver", func(c *config.Config) { c.Database.Driver = "mysql" }, "DB_DRIVER"},
		{"relative base url", func(c *config.Config) { c.Tree.BaseURL = "/squash" }, "TREE_BASE_URL"},
		{"zero timeout", func(c *config.Config) { c.Tree.HTTPTimeout = 0 }, "TREE_HTTP_TIMEOUT"},
		{"bad level", func(c *config.Config) { c.Log.Level = "loud" }, "LOG_LEVEL"},
		{"bad format", func(c *config.Config) { c.Log.Format = "xml" }, "LOG_FORMAT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Load()
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
