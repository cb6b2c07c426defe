// Package config loads application configuration from file and environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/daybreak-hq/daybreak/internal/llm"
)

// Config holds all configuration for the assistant service.
type Config struct {
	General GeneralConfig `mapstructure:"general"`
	Server  ServerConfig  `mapstructure:"server"`
	LLM     LLMConfig     `mapstructure:"llm"`
	History HistoryConfig `mapstructure:"history"`
	Storage StorageConfig `mapstructure:"storage"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	BaseURL  string `mapstructure:"base_url"` // public URL used in calendar links
	Timezone string `mapstructure:"timezone"`
}

// ServerConfig contains HTTP server and auth settings.
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// LLMConfig holds per-provider backend settings and the default choice.
type LLMConfig struct {
	Default   string                    `mapstructure:"default"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig is one backend's connection settings.
type ProviderConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Model    string        `mapstructure:"model"`
	APIKey   string        `mapstructure:"api_key"`
	ProxyURL string        `mapstructure:"proxy_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// HistoryConfig bounds the conversation log.
type HistoryConfig struct {
	Keep    int `mapstructure:"keep"`
	Context int `mapstructure:"context"`
}

// StorageConfig points at the data directory and the optional redis
// history backend.
type StorageConfig struct {
	DataDir string      `mapstructure:"data_dir"`
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig is the optional shared history store. Empty address means
// in-process history.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// providerKeyEnv maps provider names to their conventional credential
// variables, checked before the DAYBREAK_-prefixed ones.
var providerKeyEnv = map[string]string{
	"openai": "OPENAI_API_KEY",
	"groq":   "GROQ_API_KEY",
	"gemini": "GEMINI_API_KEY",
}

// LoadConfig loads configuration. The file is optional; defaults plus
// environment variables (DAYBREAK_* and the provider key variables) are
// enough to boot.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")

	v.SetDefault("general.debug", false)
	v.SetDefault("general.base_url", "http://localhost:8080")
	v.SetDefault("general.timezone", "UTC")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("history.keep", 20)
	v.SetDefault("history.context", 12)
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.redis.address", "")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("llm.default", "openai")
	v.SetDefault("llm.providers.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.providers.openai.model", "gpt-4o-mini")
	v.SetDefault("llm.providers.groq.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.providers.groq.model", "llama-3.3-70b-versatile")
	v.SetDefault("llm.providers.gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("llm.providers.gemini.model", "gemini-2.0-flash")
	// every key needs a default, even an empty one: AutomaticEnv only
	// surfaces keys viper already knows about to Unmarshal
	for _, name := range []string{"openai", "groq", "gemini"} {
		v.SetDefault("llm.providers."+name+".api_key", "")
		v.SetDefault("llm.providers."+name+".proxy_url", "")
	}

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("DAYBREAK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	for name, env := range providerKeyEnv {
		if key := os.Getenv(env); key != "" {
			pc := cfg.LLM.Providers[name]
			pc.APIKey = key
			cfg.LLM.Providers[name] = pc
		}
	}
	return &cfg, nil
}

// ProviderConfigs converts to the llm package's registry input.
func (c *Config) ProviderConfigs() map[string]llm.ProviderConfig {
	out := make(map[string]llm.ProviderConfig, len(c.LLM.Providers))
	for name, pc := range c.LLM.Providers {
		out[name] = llm.ProviderConfig{
			BaseURL:  pc.BaseURL,
			Model:    pc.Model,
			APIKey:   pc.APIKey,
			ProxyURL: pc.ProxyURL,
			Timeout:  pc.Timeout,
		}
	}
	return out
}
