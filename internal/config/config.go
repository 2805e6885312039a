// Package config handles configuration loading and management for Noesis.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all configuration for Noesis.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Workers   WorkersConfig   `mapstructure:"workers"`
	Store     StoreConfig     `mapstructure:"store"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	MaxTokens  int    `mapstructure:"max_tokens"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// EngineConfig holds reasoning session settings.
type EngineConfig struct {
	// DebugLog is a file path for verbose session logging. Empty disables it.
	DebugLog string `mapstructure:"debug_log"`
	// EventBuffer sizes the engine's event channel.
	EventBuffer int `mapstructure:"event_buffer"`
}

// WorkersConfig holds worker pool and delegation settings.
type WorkersConfig struct {
	// Max caps concurrent pool workers.
	Max int `mapstructure:"max"`
	// IdleTimeout is how long a pool worker waits before terminating itself.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	// TaskTimeout bounds a single delegated task.
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
	// Capabilities are advertised by every pool worker.
	Capabilities []string `mapstructure:"capabilities"`
	// Manifest is a YAML file of external workers to register.
	Manifest string `mapstructure:"manifest"`
}

// StoreConfig holds content store settings.
type StoreConfig struct {
	// Scope selects where persisted graphs live: "global" or "project".
	Scope string `mapstructure:"scope"`
	// Path overrides the store location entirely when set.
	Path string `mapstructure:"path"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.noesis.yaml in current directory or parent)
// 3. User config (~/.config/noesis/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Project config takes precedence over user config.
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.model", "NOESIS_MODEL")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Watch re-reads a config file whenever it changes on disk and hands the
// fresh Config to onChange. Parse errors are reported through onError and
// the previous configuration stays in effect.
func Watch(path string, onChange func(*Config), onError func(error)) error {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config from %s: %w", path, err)
	}

	v.OnConfigChange(func(fsnotify.Event) {
		cfg := &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			if onError != nil {
				onError(fmt.Errorf("unmarshaling config: %w", err))
			}
			return
		}
		cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.max_tokens", cfg.Anthropic.MaxTokens)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("engine.debug_log", cfg.Engine.DebugLog)
	v.Set("engine.event_buffer", cfg.Engine.EventBuffer)
	v.Set("workers.max", cfg.Workers.Max)
	v.Set("workers.idle_timeout", cfg.Workers.IdleTimeout.String())
	v.Set("workers.task_timeout", cfg.Workers.TaskTimeout.String())
	v.Set("workers.capabilities", cfg.Workers.Capabilities)
	v.Set("workers.manifest", cfg.Workers.Manifest)
	v.Set("store.scope", cfg.Store.Scope)
	v.Set("store.path", cfg.Store.Path)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.use_bedrock", false)

	v.SetDefault("engine.debug_log", "")
	v.SetDefault("engine.event_buffer", 100)

	v.SetDefault("workers.max", 4)
	v.SetDefault("workers.idle_timeout", "30s")
	v.SetDefault("workers.task_timeout", "2m")
	v.SetDefault("workers.capabilities", []string{})
	v.SetDefault("workers.manifest", "")

	v.SetDefault("store.scope", "global")
	v.SetDefault("store.path", "")
}

// getUserConfigDir returns the XDG config directory for Noesis.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "noesis")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "noesis")
	}
	return filepath.Join(home, ".config", "noesis")
}

// findProjectConfig searches for .noesis.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".noesis.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			MaxTokens: 4096,
		},
		Engine: EngineConfig{
			EventBuffer: 100,
		},
		Workers: WorkersConfig{
			Max:          4,
			IdleTimeout:  30 * time.Second,
			TaskTimeout:  2 * time.Minute,
			Capabilities: []string{},
		},
		Store: StoreConfig{
			Scope: "global",
		},
	}
}
