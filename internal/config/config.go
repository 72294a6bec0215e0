package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Provider names accepted in completion.provider.
const (
	ProviderHTTP   = "http"
	ProviderOpenAI = "openai"
)

// Store backends accepted in store.backend.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config holds the application configuration
type Config struct {
	Completion CompletionConfig `mapstructure:"completion"`
	Store      StoreConfig      `mapstructure:"store"`
	Log        LogConfig        `mapstructure:"log"`
}

// CompletionConfig describes the remote completion service
type CompletionConfig struct {
	Provider string         `mapstructure:"provider"`
	BaseURL  string         `mapstructure:"base_url"`
	APIKey   string         `mapstructure:"api_key"`
	Model    string         `mapstructure:"model"`
	Metadata map[string]any `mapstructure:"metadata"`
}

// StoreConfig selects and configures the history persistence backend.
// Path is a directory for the file backend and a database file for sqlite.
type StoreConfig struct {
	Backend string        `mapstructure:"backend"`
	Path    string        `mapstructure:"path"`
	Key     string        `mapstructure:"key"`
	Timeout time.Duration `mapstructure:"timeout"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// RedisConfig holds the redis connection settings
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig holds the logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("completion.provider", ProviderHTTP)
	v.SetDefault("completion.base_url", "http://localhost:5000/api")
	v.SetDefault("completion.api_key", "")
	v.SetDefault("completion.model", "fake_llm_model")
	v.SetDefault("completion.metadata", map[string]any{})

	v.SetDefault("store.backend", BackendFile)
	v.SetDefault("store.path", ".chatsession")
	v.SetDefault("store.key", "chatMessages")
	v.SetDefault("store.timeout", 3*time.Second)
	v.SetDefault("store.redis.addr", "127.0.0.1:6379")
	v.SetDefault("store.redis.username", "")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)

	v.SetDefault("log.level", "info")
}

// Load reads the configuration. An explicit path wins, then CONFIG_PATH,
// then config.yaml in the working directory. A missing config.yaml is not an
// error: defaults and CHATSESSION_* environment variables still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CHATSESSION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.Completion.Metadata == nil {
		cfg.Completion.Metadata = map[string]any{}
	}

	return &cfg, nil
}
