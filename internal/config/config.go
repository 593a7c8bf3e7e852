// Package config loads loom configuration from .loom/config.toml and
// LOOM_* environment variables via viper.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Provider names for the generation gateway.
const (
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
)

// Config is the resolved loom configuration.
type Config struct {
	// Provider selects the generation backend: ollama or anthropic.
	Provider string `mapstructure:"provider"`

	// OllamaURL is the Ollama endpoint base URL.
	OllamaURL string `mapstructure:"ollama_url"`

	// AnthropicAPIKey authenticates the anthropic provider.
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`

	// Model is the model identifier passed to the endpoint.
	Model string `mapstructure:"model"`

	// MaxTokens caps completion length (0 = endpoint default).
	MaxTokens int `mapstructure:"max_tokens"`

	// NumTasks is the default task count for PRD parsing.
	NumTasks int `mapstructure:"num_tasks"`

	// NumSubtasks is the default subtask count for expansion.
	NumSubtasks int `mapstructure:"num_subtasks"`

	// Debug enables raw/accumulated/normalized response dumps.
	Debug bool `mapstructure:"debug"`

	// DashboardPort is the websocket dashboard listen port.
	DashboardPort int `mapstructure:"dashboard_port"`

	// LogFile is the daemon's rotating log file path (relative paths
	// resolve against the .loom directory).
	LogFile string `mapstructure:"log_file"`
}

// Load reads configuration from dir/config.toml (when present) and
// the LOOM_* environment. Missing config files are not an error;
// defaults apply.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	if dir != "" {
		v.AddConfigPath(dir)
	}

	v.SetDefault("provider", ProviderOllama)
	v.SetDefault("ollama_url", "http://localhost:11434")
	v.SetDefault("model", "llama3.1")
	v.SetDefault("max_tokens", 8192)
	v.SetDefault("num_tasks", 10)
	v.SetDefault("num_subtasks", 5)
	v.SetDefault("debug", false)
	v.SetDefault("dashboard_port", 8080)
	v.SetDefault("log_file", "daemon.log")

	v.SetEnvPrefix("LOOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.Provider != ProviderOllama && cfg.Provider != ProviderAnthropic {
		return nil, fmt.Errorf("unknown provider %q (expected %q or %q)", cfg.Provider, ProviderOllama, ProviderAnthropic)
	}

	return &cfg, nil
}
