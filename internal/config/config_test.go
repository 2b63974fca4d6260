package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "workout_sessions", cfg.Database.Name)
	assert.Equal(t, 300, cfg.Engine.WarmupSeconds)
	assert.Equal(t, 90, cfg.Engine.RestSeconds)
	assert.Equal(t, time.Second, cfg.Engine.TickInterval)
	assert.True(t, cfg.Engine.TrackSetElapsed)
	assert.Equal(t, "elapsed", cfg.Engine.ResumePolicy)
	assert.Equal(t, 5*time.Second, cfg.Persist.WriteTimeout)
	assert.Equal(t, 15*time.Minute, cfg.Persist.ArchiveURLExpiry)
	assert.True(t, cfg.Persist.Archive)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := writeConfig(t, `
server:
  address: ":9090"
jwt:
  secret: from-file
engine:
  rest_seconds: 60
  tick_interval: 500ms
  resume_policy: frozen
s3:
  endpoint: http://localhost:9000
  bucket_name: archive
log:
  pretty: true
`)
	t.Setenv("ENGINE_REST_SECONDS", "45")
	t.Setenv("DATABASE_NAME", "from_env")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "from-file", cfg.JWT.Secret)
	assert.Equal(t, 45, cfg.Engine.RestSeconds, "env wins over the file")
	assert.Equal(t, 500*time.Millisecond, cfg.Engine.TickInterval)
	assert.Equal(t, "frozen", cfg.Engine.ResumePolicy)
	assert.Equal(t, "from_env", cfg.Database.Name)
	assert.Equal(t, "http://localhost:9000", cfg.S3.Endpoint)
	assert.Equal(t, "archive", cfg.S3.BucketName)
	assert.True(t, cfg.Log.Pretty)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing secret", "engine:\n  rest_seconds: 60\n"},
		{"unknown resume policy", "jwt:\n  secret: s\nengine:\n  resume_policy: rewind\n"},
		{"negative rest", "jwt:\n  secret: s\nengine:\n  rest_seconds: -1\n"},
		{"zero tick", "jwt:\n  secret: s\nengine:\n  tick_interval: 0s\n"},
		{"broken yaml", "jwt: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
