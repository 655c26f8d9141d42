package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	LLM     LLMConfig
	Server  ServerConfig
	API     APIConfig
	Store   StoreConfig
	History HistoryConfig
	Log     LogConfig
	Chat    ChatConfig
}

// LLMConfig holds the LLM configuration
type LLMConfig struct {
	Provider string `mapstructure:"provider"`
	BaseURL  string `mapstructure:"base_url"`
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
}

// ServerConfig holds the backend server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	// Workers bounds concurrent background email processing.
	Workers int `mapstructure:"workers"`
}

// APIConfig tells the client side where the REST API lives.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StoreConfig holds the backend SQLite store configuration
type StoreConfig struct {
	Path      string `mapstructure:"path"`
	MockInbox string `mapstructure:"mock_inbox"`
}

// HistoryConfig controls the chat transcript archive. An empty DBPath
// disables archiving.
type HistoryConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// ChatConfig holds chat session options
type ChatConfig struct {
	Welcome       string        `mapstructure:"welcome"`
	RedirectDelay time.Duration `mapstructure:"redirect_delay"`
}

const DefaultWelcome = "Hello! I'm your Email Agent. I can help you:\n\n" +
	"• Summarize emails\n• Find action items\n• Answer questions about your inbox\n• Draft replies\n\n" +
	"What would you like to know?"

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.workers", 4)
	v.SetDefault("api.base_url", "http://127.0.0.1:8000")
	v.SetDefault("api.timeout", 60*time.Second)
	v.SetDefault("store.path", "email_agent.db")
	v.SetDefault("store.mock_inbox", "")
	v.SetDefault("history.db_path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("chat.welcome", DefaultWelcome)
	v.SetDefault("chat.redirect_delay", 1500*time.Millisecond)
}

// Load loads the configuration from config.yaml (or the file named by
// CONFIG_PATH), with MAILAGENT_* environment overrides and defaults for
// every key. A missing config file is not an error.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv("CONFIG_PATH"))
}

// LoadFrom is Load with an explicit config file. An empty path searches
// the working directory for config.yaml.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("MAILAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
