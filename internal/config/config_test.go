package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJSON = `{
	"server_address": ":3000",
	"log_level": "debug",
	"database_dsn": "json-dsn",
	"asset_folder": "posts",
	"upload_max_bytes": 1024
}`

func writeTempJSON(t *testing.T, content string) string {
	t.Helper()
	file, err := os.CreateTemp("", "config*.json")
	require.NoError(t, err)
	_, err = file.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, file.Close())
	t.Cleanup(func() {
		err := os.Remove(file.Name())
		require.NoError(t, err)
	})
	return file.Name()
}

func TestDefaults(t *testing.T) {
	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.RunAddr)
	assert.Equal(t, int64(5<<20), cfg.UploadMaxBytes)
	assert.Equal(t, "blogs", cfg.AssetFolder)
	assert.Equal(t, AssetBackendFS, cfg.AssetBackend)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
}

func TestConfigPriorityJSONOnly(t *testing.T) {
	jsonPath := writeTempJSON(t, testJSON)
	t.Setenv("CONFIG", jsonPath)

	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.RunAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json-dsn", cfg.DatabaseDSN)
	assert.Equal(t, "posts", cfg.AssetFolder)
	assert.Equal(t, int64(1024), cfg.UploadMaxBytes)
}

func TestConfigPriorityJSONPlusEnv(t *testing.T) {
	jsonPath := writeTempJSON(t, testJSON)
	t.Setenv("CONFIG", jsonPath)
	t.Setenv("SERVER_ADDRESS", ":4000")
	t.Setenv("ASSET_FOLDER", "covers")

	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":4000", cfg.RunAddr) // env overrides json
	assert.Equal(t, "covers", cfg.AssetFolder)
	assert.Equal(t, "json-dsn", cfg.DatabaseDSN) // from JSON
}

func TestConfigPriorityAllSources(t *testing.T) {
	jsonPath := writeTempJSON(t, testJSON)
	t.Setenv("CONFIG", jsonPath)
	t.Setenv("SERVER_ADDRESS", ":4000")

	oldArgs := os.Args
	t.Cleanup(func() { os.Args = oldArgs })
	os.Args = []string{
		"testbin",
		"-a", ":6000",
		"-l", "error",
	}

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, ":6000", cfg.RunAddr) // CLI > ENV > JSON
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, "json-dsn", cfg.DatabaseDSN) // from JSON
}

func TestConfigEnvOnly(t *testing.T) {
	t.Setenv("SERVER_ADDRESS", ":7000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TOKEN_TTL", "1h")

	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.RunAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "unknown log level",
			env:  map[string]string{"LOG_LEVEL": "verbose"},
		},
		{
			name: "signing key is not base64url",
			env:  map[string]string{"TOKEN_SIGNING_KEY": "not base64!"},
		},
		{
			name: "unknown asset backend",
			env:  map[string]string{"ASSET_BACKEND": "ftp"},
		},
		{
			name: "s3 backend without bucket",
			env:  map[string]string{"ASSET_BACKEND": "s3"},
		},
		{
			name: "folder with a slash",
			env:  map[string]string{"ASSET_FOLDER": "a/b"},
		},
		{
			name: "broken trusted subnet",
			env:  map[string]string{"TRUSTED_SUBNET": "10.0.0.0/99"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := New(WithDisableFlagsParsing(true))
			assert.Error(t, err)
		})
	}
}
