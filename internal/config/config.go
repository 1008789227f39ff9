// Package config loads taskstack settings from the config file, a .env file
// and TASKSTACK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fentz26/taskstack/internal/syncclient"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// AppName is the application directory name.
	AppName = "taskstack"

	// ConfigFile is the default config filename inside DefaultDir.
	ConfigFile = "config.yaml"

	// EnvPrefix prefixes every environment override, e.g. TASKSTACK_API_BASE_URL.
	EnvPrefix = "TASKSTACK"

	// DefaultListen is where the dev backend listens.
	DefaultListen = "127.0.0.1:7466"
)

// Config is the root configuration.
type Config struct {
	API    APIConfig    `json:"api"    mapstructure:"api"`
	Stream StreamConfig `json:"stream" mapstructure:"stream"`
	Server ServerConfig `json:"server" mapstructure:"server"`
	Log    LogConfig    `json:"log"    mapstructure:"log"`
}

// APIConfig points the clients at the backend.
type APIConfig struct {
	BaseURL string        `json:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `json:"timeout"  mapstructure:"timeout"`
}

// StreamConfig controls the event stream.
type StreamConfig struct {
	Reconnect ReconnectConfig `json:"reconnect" mapstructure:"reconnect"`
}

// ReconnectConfig maps onto syncclient.Policy.
type ReconnectConfig struct {
	Strategy    string        `json:"strategy"     mapstructure:"strategy"`
	Interval    time.Duration `json:"interval"     mapstructure:"interval"`
	MaxInterval time.Duration `json:"max_interval" mapstructure:"max_interval"`
	MaxAttempts int           `json:"max_attempts" mapstructure:"max_attempts"`
}

// ServerConfig configures the dev backend.
type ServerConfig struct {
	Listen string `json:"listen" mapstructure:"listen"`
	DB     string `json:"db"     mapstructure:"db"`
	Seed   bool   `json:"seed"   mapstructure:"seed"`
}

// LogConfig configures logging.
type LogConfig struct {
	Debug bool   `json:"debug" mapstructure:"debug"`
	File  string `json:"file"  mapstructure:"file"`
}

// DefaultDir returns the configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	dir := DefaultDir()
	v.SetDefault("api.base_url", "http://"+DefaultListen)
	v.SetDefault("api.timeout", "10s")
	v.SetDefault("stream.reconnect.strategy", string(syncclient.StrategyNone))
	v.SetDefault("stream.reconnect.interval", "1s")
	v.SetDefault("stream.reconnect.max_interval", "30s")
	v.SetDefault("stream.reconnect.max_attempts", 0)
	v.SetDefault("server.listen", DefaultListen)
	v.SetDefault("server.db", filepath.Join(dir, "tasks.db"))
	v.SetDefault("server.seed", true)
	v.SetDefault("log.debug", false)
	v.SetDefault("log.file", filepath.Join(dir, AppName+".log"))
}

// Load reads configuration into v and decodes it. path may be empty, in
// which case the default config file is used if it exists. A .env file in
// the working directory is loaded first; variables already set win.
func Load(v *viper.Viper, path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName(strings.TrimSuffix(ConfigFile, filepath.Ext(ConfigFile)))
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultDir())
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.Stream.Reconnect.Strategy = strings.ToLower(strings.TrimSpace(cfg.Stream.Reconnect.Strategy))
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ReconnectPolicy converts the stream settings for the sync client.
func (c Config) ReconnectPolicy() (syncclient.Policy, error) {
	strategy, err := syncclient.ParseStrategy(c.Stream.Reconnect.Strategy)
	if err != nil {
		return syncclient.Policy{}, err
	}
	return syncclient.Policy{
		Strategy:    strategy,
		Interval:    c.Stream.Reconnect.Interval,
		MaxInterval: c.Stream.Reconnect.MaxInterval,
		MaxAttempts: c.Stream.Reconnect.MaxAttempts,
	}, nil
}
