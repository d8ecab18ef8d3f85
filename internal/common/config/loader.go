// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	// ENV override like BACKEND_BASE_URL
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// environment overlay, ignored when absent
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// AutomaticEnv only applies to keys viper already knows about, so the
// scalar keys are bound explicitly for env-only deployments.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"app.environment",
		"backend.base_url", "backend.timeout", "backend.max_retries",
		"map.default_style", "map.fit_padding",
		"transition.ready_timeout", "transition.settle_delay",
		"transition.highlight_delay", "transition.trailing_guard",
		"panorama.nearby_radius",
		"cache.redis.enabled", "cache.redis.address", "cache.redis.password", "cache.redis.db",
		"cache.campaign_ttl",
		"metrics.enabled", "metrics.address",
		"logging.level", "logging.format",
	} {
		_ = v.BindEnv(key)
	}
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env", // tests in test/e2e/
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "mapping-viewer"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = "http://localhost:8000"
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 60000
	}
	if cfg.Backend.MaxRetries == 0 {
		cfg.Backend.MaxRetries = 2
	}

	if len(cfg.Map.Styles) == 0 {
		cfg.Map.Styles = map[string]string{
			"dark":      "https://basemaps.cartocdn.com/gl/dark-matter-gl-style/style.json",
			"streets":   "https://basemaps.cartocdn.com/gl/voyager-gl-style/style.json",
			"satellite": "https://api.maptiler.com/maps/hybrid/style.json",
		}
	}
	if cfg.Map.DefaultStyle == "" {
		cfg.Map.DefaultStyle = "dark"
	}
	if cfg.Map.FitPadding == 0 {
		cfg.Map.FitPadding = 50
	}

	if cfg.Transition.ReadyTimeout == 0 {
		cfg.Transition.ReadyTimeout = 2000
	}
	if cfg.Transition.SettleDelay == 0 {
		cfg.Transition.SettleDelay = 100
	}
	if cfg.Transition.HighlightDelay == 0 {
		cfg.Transition.HighlightDelay = 50
	}
	if cfg.Transition.TrailingGuard == 0 {
		cfg.Transition.TrailingGuard = 300
	}

	if cfg.Panorama.NearbyRadius == 0 {
		cfg.Panorama.NearbyRadius = 50
	}

	if cfg.Cache.CampaignTTL == 0 {
		cfg.Cache.CampaignTTL = 3600
	}

	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":9090"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if !strings.HasPrefix(cfg.Backend.BaseURL, "http://") && !strings.HasPrefix(cfg.Backend.BaseURL, "https://") {
		return fmt.Errorf("backend.base_url must be an http(s) URL")
	}
	if cfg.Backend.MaxRetries < 0 {
		return fmt.Errorf("backend.max_retries must not be negative")
	}

	if _, ok := cfg.Map.Styles[cfg.Map.DefaultStyle]; !ok {
		return fmt.Errorf("map.default_style %q is not in map.styles", cfg.Map.DefaultStyle)
	}

	if cfg.Transition.ReadyTimeout < 0 || cfg.Transition.SettleDelay < 0 ||
		cfg.Transition.HighlightDelay < 0 || cfg.Transition.TrailingGuard < 0 {
		return fmt.Errorf("transition delays must not be negative")
	}

	if cfg.Panorama.NearbyRadius <= 0 {
		return fmt.Errorf("panorama.nearby_radius must be positive")
	}

	if cfg.Cache.Redis.Enabled && cfg.Cache.Redis.Address == "" {
		return fmt.Errorf("cache.redis.address is required when the cache is enabled")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
