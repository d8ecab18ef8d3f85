package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
backend:
  base_url: http://backend:8000
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "http://backend:8000", cfg.Backend.BaseURL)
	assert.Equal(t, 2, cfg.Backend.MaxRetries)
	assert.Equal(t, "dark", cfg.Map.DefaultStyle)
	assert.Contains(t, cfg.Map.Styles, "satellite")
	assert.Equal(t, 50, cfg.Map.FitPadding)
	assert.Equal(t, 2000, cfg.Transition.ReadyTimeout)
	assert.Equal(t, 50.0, cfg.Panorama.NearbyRadius)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("VIEWER_TEST_BACKEND", "http://expanded:9000")
	path := writeConfig(t, `
backend:
  base_url: ${VIEWER_TEST_BACKEND}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://expanded:9000", cfg.Backend.BaseURL)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "non http backend",
			body: "backend:\n  base_url: ftp://nope\n",
			want: "backend.base_url",
		},
		{
			name: "default style missing from catalogue",
			body: "map:\n  default_style: watercolor\n  styles:\n    dark: http://x/style.json\n",
			want: "map.default_style",
		},
		{
			name: "redis enabled without address",
			body: "cache:\n  redis:\n    enabled: true\n",
			want: "cache.redis.address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, "1.5s", GetDuration(1500).String())
}
