// internal/common/config/config.go
package config

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Backend    BackendConfig    `mapstructure:"backend"`
	Map        MapConfig        `mapstructure:"map"`
	Transition TransitionConfig `mapstructure:"transition"`
	Panorama   PanoramaConfig   `mapstructure:"panorama"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// BackendConfig points at the agent/projection backend.
type BackendConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
	MaxRetries int    `mapstructure:"max_retries"`
}

// MapConfig holds the basemap catalogue and viewport settings.
type MapConfig struct {
	Styles       map[string]string `mapstructure:"styles"` // style name -> style definition URL
	DefaultStyle string            `mapstructure:"default_style"`
	FitPadding   int               `mapstructure:"fit_padding"` // pixels
}

// TransitionConfig holds the style swap timings, all in milliseconds.
type TransitionConfig struct {
	ReadyTimeout   int `mapstructure:"ready_timeout"`
	SettleDelay    int `mapstructure:"settle_delay"`
	HighlightDelay int `mapstructure:"highlight_delay"`
	TrailingGuard  int `mapstructure:"trailing_guard"`
}

// PanoramaConfig holds hotspot synchronizer settings.
type PanoramaConfig struct {
	NearbyRadius float64 `mapstructure:"nearby_radius"` // meters
}

type CacheConfig struct {
	Redis       RedisConfig `mapstructure:"redis"`
	CampaignTTL int         `mapstructure:"campaign_ttl"` // seconds
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
