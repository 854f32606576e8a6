package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Cache     CacheConfig     `mapstructure:"cache" yaml:"cache"`
	Transform TransformConfig `mapstructure:"transform" yaml:"transform"`
}

// ServerConfig tunes the HTTP listener and its middleware.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
	// AuthToken is the shared-secret bearer token. The sentinel value "none"
	// disables authentication entirely.
	AuthToken       string        `mapstructure:"auth_token" yaml:"-"`
	EnableCORS      bool          `mapstructure:"enable_cors" yaml:"enable_cors"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Addr returns the host:port string the server binds to.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig holds settings for the headless browser instances.
type BrowserConfig struct {
	Headless bool `mapstructure:"headless" yaml:"headless"`
	// ExecutablePath overrides the browser binary location; empty means the
	// driver's own managed installation is used.
	ExecutablePath    string        `mapstructure:"executable_path" yaml:"executable_path"`
	BrowsersPath      string        `mapstructure:"browsers_path" yaml:"browsers_path"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// Concurrency bounds the number of simultaneously running browse sessions.
	Concurrency int    `mapstructure:"concurrency" yaml:"concurrency"`
	DownloadDir string `mapstructure:"download_dir" yaml:"download_dir"`
	VideoDir    string `mapstructure:"video_dir" yaml:"video_dir"`
	VideoWidth  int    `mapstructure:"video_width" yaml:"video_width"`
	VideoHeight int    `mapstructure:"video_height" yaml:"video_height"`
}

// CacheConfig controls the fingerprint result cache.
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`
	// JanitorInterval enables background purging of expired entries when
	// positive. Expired entries are treated as absent on read either way.
	JanitorInterval time.Duration `mapstructure:"janitor_interval" yaml:"janitor_interval"`
}

// TransformConfig carries defaults for the stateless image transforms.
type TransformConfig struct {
	ThumbnailSize int `mapstructure:"thumbnail_size" yaml:"thumbnail_size"`
	JPEGQuality   int `mapstructure:"jpeg_quality" yaml:"jpeg_quality"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Server --
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.auth_token", "none")
	v.SetDefault("server.enable_cors", false)
	v.SetDefault("server.shutdown_timeout", "15s")

	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pagetrace")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.navigation_timeout", "120s")
	v.SetDefault("browser.concurrency", 4)
	v.SetDefault("browser.download_dir", "downloads")
	v.SetDefault("browser.video_dir", "videos")
	v.SetDefault("browser.video_width", 1280)
	v.SetDefault("browser.video_height", 720)

	// -- Cache --
	v.SetDefault("cache.ttl", "3600s")
	v.SetDefault("cache.janitor_interval", "0s")

	// -- Transform --
	v.SetDefault("transform.thumbnail_size", 450)
	v.SetDefault("transform.jpeg_quality", 85)
}

// NewConfigFromViper creates a configuration instance from a viper object.
// Environment names used by earlier deployments of the service are bound
// explicitly so existing setups keep working unchanged.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	v.BindEnv("server.auth_token", "PAGETRACE_SERVER_AUTH_TOKEN", "API_KEY")
	v.BindEnv("browser.browsers_path", "PAGETRACE_BROWSER_BROWSERS_PATH", "PLAYWRIGHT_BROWSERS_PATH")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// CACHE_EXPIRATION_SECONDS predates the duration-typed config key and is a
	// bare integer, so it bypasses viper's duration decode hook.
	if secs := os.Getenv("CACHE_EXPIRATION_SECONDS"); secs != "" {
		n, err := strconv.Atoi(secs)
		if err != nil {
			return nil, fmt.Errorf("CACHE_EXPIRATION_SECONDS must be an integer: %w", err)
		}
		cfg.Cache.TTL = time.Duration(n) * time.Second
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// NewDefaultConfig creates a configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with defaults alone.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0, 65535]")
	}
	if c.Server.AuthToken == "" {
		return fmt.Errorf("server.auth_token must be set (use \"none\" to disable auth)")
	}
	if c.Browser.Concurrency <= 0 {
		return fmt.Errorf("browser.concurrency must be a positive integer")
	}
	if c.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be a positive duration")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be a positive duration")
	}
	if c.Transform.JPEGQuality < 1 || c.Transform.JPEGQuality > 100 {
		return fmt.Errorf("transform.jpeg_quality must be between 1 and 100")
	}
	if c.Transform.ThumbnailSize <= 0 {
		return fmt.Errorf("transform.thumbnail_size must be a positive integer")
	}
	return nil
}
