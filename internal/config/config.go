// Package config provides configuration management for notetime.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config holds all configuration for notetime.
type Config struct {
	Tracking      TrackingConfig     `mapstructure:"tracking"`
	Storage       StorageConfig      `mapstructure:"storage"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	HostLink      HostLinkConfig     `mapstructure:"hostlink"`
	Sync          SyncConfig         `mapstructure:"sync"`
	Dashboard     DashboardConfig    `mapstructure:"dashboard"`
	Log           LogConfig          `mapstructure:"log"`
}

// TrackingConfig holds session tracking settings.
type TrackingConfig struct {
	Vault             string   `mapstructure:"vault"`
	IdleThreshold     Duration `mapstructure:"idle_threshold"`
	TrackInactiveTime bool     `mapstructure:"track_inactive_time"`
	InputDebounce     Duration `mapstructure:"input_debounce"`
	Extensions        []string `mapstructure:"extensions"`
	Ignore            []string `mapstructure:"ignore"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	DataDir       string   `mapstructure:"data_dir"`
	Backend       string   `mapstructure:"backend"`
	SaveDebounce  Duration `mapstructure:"save_debounce"`
	SaveInterval  Duration `mapstructure:"save_interval"`
	RetentionDays int      `mapstructure:"retention_days"`
}

// NotificationConfig holds notification settings.
type NotificationConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// HostLinkConfig holds the host plugin WebSocket settings.
type HostLinkConfig struct {
	Port int `mapstructure:"port"`
}

// SyncConfig holds the remote sync OAuth2 settings.
type SyncConfig struct {
	ClientID     string `mapstructure:"client_id"`
	AuthURL      string `mapstructure:"auth_url"`
	TokenURL     string `mapstructure:"token_url"`
	Endpoint     string `mapstructure:"endpoint"`
	RedirectPort int    `mapstructure:"redirect_port"`
}

// DashboardConfig holds dashboard settings.
type DashboardConfig struct {
	DailyGoal Duration `mapstructure:"daily_goal"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Storage backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

const defaultDataDir = "~/.notetime"

// Duration is a wrapper around time.Duration for TOML parsing.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// String returns the string representation of the duration.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Tracking: TrackingConfig{
			IdleThreshold: Duration(5 * time.Minute),
			InputDebounce: Duration(time.Second),
			Extensions:    []string{".md"},
			Ignore:        []string{"*.tmp", ".obsidian/*", ".trash/*"},
		},
		Storage: StorageConfig{
			DataDir:      defaultDataDir,
			Backend:      BackendJSON,
			SaveDebounce: Duration(5 * time.Second),
			SaveInterval: Duration(time.Minute),
		},
		Notifications: NotificationConfig{
			Enabled: true,
		},
		HostLink: HostLinkConfig{
			Port: 27183,
		},
		Sync: SyncConfig{
			RedirectPort: 27184,
		},
		Dashboard: DashboardConfig{
			DailyGoal: Duration(2 * time.Hour),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads the configuration from the default config file, creating it
// with defaults when missing.
func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadFrom(configPath)
}

// LoadFrom loads the configuration from configPath, creating it with
// defaults when missing.
func LoadFrom(configPath string) (*Config, error) {
	// Ensure config directory exists
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	v.SetEnvPrefix("NOTETIME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// If config file doesn't exist, create it with defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := SaveTo(configPath, DefaultConfig()); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	dataDir, err := ExpandHome(cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}
	cfg.Storage.DataDir = dataDir
	if cfg.Tracking.Vault != "" {
		if cfg.Tracking.Vault, err = ExpandHome(cfg.Tracking.Vault); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values viper cannot type-check.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("invalid storage backend %q: must be json or sqlite", c.Storage.Backend)
	}
	if c.Tracking.IdleThreshold <= 0 {
		return fmt.Errorf("tracking.idle_threshold must be positive, got %s", c.Tracking.IdleThreshold)
	}
	if c.Storage.RetentionDays < 0 {
		return fmt.Errorf("storage.retention_days must not be negative, got %d", c.Storage.RetentionDays)
	}
	return nil
}

// Save saves the configuration to the default config file.
func Save(cfg *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return SaveTo(configPath, cfg)
}

// SaveTo writes the configuration to configPath.
func SaveTo(configPath string, cfg *Config) error {
	// Ensure config directory exists
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	v.Set("tracking.vault", cfg.Tracking.Vault)
	v.Set("tracking.idle_threshold", cfg.Tracking.IdleThreshold.String())
	v.Set("tracking.track_inactive_time", cfg.Tracking.TrackInactiveTime)
	v.Set("tracking.input_debounce", cfg.Tracking.InputDebounce.String())
	v.Set("tracking.extensions", cfg.Tracking.Extensions)
	v.Set("tracking.ignore", cfg.Tracking.Ignore)
	v.Set("storage.data_dir", cfg.Storage.DataDir)
	v.Set("storage.backend", cfg.Storage.Backend)
	v.Set("storage.save_debounce", cfg.Storage.SaveDebounce.String())
	v.Set("storage.save_interval", cfg.Storage.SaveInterval.String())
	v.Set("storage.retention_days", cfg.Storage.RetentionDays)
	v.Set("notifications.enabled", cfg.Notifications.Enabled)
	v.Set("hostlink.port", cfg.HostLink.Port)
	v.Set("sync.client_id", cfg.Sync.ClientID)
	v.Set("sync.auth_url", cfg.Sync.AuthURL)
	v.Set("sync.token_url", cfg.Sync.TokenURL)
	v.Set("sync.endpoint", cfg.Sync.Endpoint)
	v.Set("sync.redirect_port", cfg.Sync.RedirectPort)
	v.Set("dashboard.daily_goal", cfg.Dashboard.DailyGoal.String())
	v.Set("log.level", cfg.Log.Level)

	return v.WriteConfig()
}

// GetConfigPath returns the path to the config file. NOTETIME_CONFIG
// overrides the default location.
func GetConfigPath() (string, error) {
	if p := os.Getenv("NOTETIME_CONFIG"); p != "" {
		return p, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".notetime", "config.toml"), nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(p string) (string, error) {
	if p == "" {
		p = defaultDataDir
	}
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, strings.TrimPrefix(p, "~")), nil
}

// GetDBPath returns the path to the SQLite database file.
func GetDBPath(cfg *Config) string {
	return filepath.Join(cfg.Storage.DataDir, "notetime.db")
}

// GetTokenPath returns the path to the cached sync token.
func GetTokenPath(cfg *Config) string {
	return filepath.Join(cfg.Storage.DataDir, "sync-token.json")
}

// setDefaults sets default values for viper.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("tracking.vault", d.Tracking.Vault)
	v.SetDefault("tracking.idle_threshold", d.Tracking.IdleThreshold.String())
	v.SetDefault("tracking.track_inactive_time", d.Tracking.TrackInactiveTime)
	v.SetDefault("tracking.input_debounce", d.Tracking.InputDebounce.String())
	v.SetDefault("tracking.extensions", d.Tracking.Extensions)
	v.SetDefault("tracking.ignore", d.Tracking.Ignore)
	v.SetDefault("storage.data_dir", d.Storage.DataDir)
	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.save_debounce", d.Storage.SaveDebounce.String())
	v.SetDefault("storage.save_interval", d.Storage.SaveInterval.String())
	v.SetDefault("storage.retention_days", d.Storage.RetentionDays)
	v.SetDefault("notifications.enabled", d.Notifications.Enabled)
	v.SetDefault("hostlink.port", d.HostLink.Port)
	v.SetDefault("sync.client_id", "")
	v.SetDefault("sync.auth_url", "")
	v.SetDefault("sync.token_url", "")
	v.SetDefault("sync.endpoint", "")
	v.SetDefault("sync.redirect_port", d.Sync.RedirectPort)
	v.SetDefault("dashboard.daily_goal", d.Dashboard.DailyGoal.String())
	v.SetDefault("log.level", d.Log.Level)
}
