package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	t.Setenv(EnvServiceKey, "secret-service-key-1234")
	path := writeConfig(t, `
app:
  name: harvester-test
store:
  backend: memory
`)

	cfg, err := LoadFromFile(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "harvester-test", cfg.App.Name)
	assert.Equal(t, 3, cfg.Harvest.Workers)
	assert.Equal(t, "Asia/Seoul", cfg.Harvest.Timezone)
	assert.Equal(t, 500, cfg.HTTP.Pacing)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2.0, cfg.Retry.Multiplier)
	assert.Equal(t, "local", cfg.Lock.Backend)
	assert.Equal(t, "secret-service-key-1234", cfg.Credentials.ServiceKey)
	assert.Equal(t, 30*time.Second, GetDuration(cfg.HTTP.Timeout))
}

func TestLoadFromFile_MissingServiceKey(t *testing.T) {
	t.Setenv(EnvServiceKey, "")
	path := writeConfig(t, "store:\n  backend: memory\n")

	_, err := LoadFromFile(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials.service_key is required")
}

func TestLoadFromFile_ExpandsPlaceholders(t *testing.T) {
	t.Setenv(EnvServiceKey, "k")
	t.Setenv("TEST_MINIO_ENDPOINT", "minio.local:9000")
	path := writeConfig(t, `
store:
  backend: minio
  minio:
    endpoint: ${TEST_MINIO_ENDPOINT}
    bucket: procurement
`)

	cfg, err := LoadFromFile(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "minio.local:9000", cfg.Store.MinIO.Endpoint)
}

func TestLoadFromFile_FlagsOverrideFile(t *testing.T) {
	t.Setenv(EnvServiceKey, "k")
	path := writeConfig(t, `
harvest:
  workers: 2
store:
  backend: memory
`)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("workers", 0, "")
	flags.StringSlice("categories", nil, "")
	require.NoError(t, flags.Parse([]string{"--workers=5", "--categories=공사,용역"}))

	cfg, err := LoadFromFile(path, flags)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Harvest.Workers)
	assert.Equal(t, []string{"공사", "용역"}, cfg.Harvest.Categories)
}

func TestValidateConfig(t *testing.T) {
	base := func() *Config {
		cfg := &Config{Credentials: CredentialsConfig{ServiceKey: "k"}}
		cfg.Store.Backend = "memory"
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown store", func(c *Config) { c.Store.Backend = "ftp" }, "store.backend"},
		{"minio without bucket", func(c *Config) {
			c.Store.Backend = "minio"
			c.Store.MinIO.Endpoint = "localhost:9000"
		}, "store.minio.endpoint and store.minio.bucket"},
		{"drive without credential", func(c *Config) { c.Store.Backend = "drive" }, EnvDriveCredential},
		{"redis lock without address", func(c *Config) { c.Lock.Backend = "redis" }, "database.redis.address"},
		{"bad timezone", func(c *Config) { c.Harvest.Timezone = "Mars/Olympus" }, "harvest.timezone"},
		{"ses without recipients", func(c *Config) {
			c.Notifications.SES.Enabled = true
			c.Notifications.SES.FromEmail = "bot@example.com"
		}, "notifications.ses"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigStringRedactsSecrets(t *testing.T) {
	cfg := Config{Credentials: CredentialsConfig{ServiceKey: "abcdefghijklmnop"}}
	out := cfg.String()
	assert.NotContains(t, out, "abcdefghijklmnop")
	assert.Contains(t, out, "****mnop")
}
