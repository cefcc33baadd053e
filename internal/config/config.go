package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	NLU       NLUConfig       `koanf:"nlu"`
	Generator GeneratorConfig `koanf:"generator"`
	Chat      ChatConfig      `koanf:"chat"`
	Clarify   ClarifyConfig   `koanf:"clarify"`
	Auth      AuthConfig      `koanf:"auth"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Port int `koanf:"port"`
}

// NLUConfig holds intent classifier settings
type NLUConfig struct {
	BaseURL        string        `koanf:"base_url"`
	ParseEndpoint  string        `koanf:"parse_endpoint"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// GeneratorConfig holds the reply generator model settings
type GeneratorConfig struct {
	BaseURL     string  `koanf:"base_url"`
	Model       string  `koanf:"model"`
	Temperature float64 `koanf:"temperature"`
}

// ChatConfig holds conversation behaviour settings
type ChatConfig struct {
	ConfidenceThreshold float64  `koanf:"confidence_threshold"`
	HighRiskIntents     []string `koanf:"high_risk_intents"`
	HistoryWindow       int      `koanf:"history_window"`
	MaxMessageLength    int      `koanf:"max_message_length"`
}

// ClarifyConfig holds clarification dialog settings
type ClarifyConfig struct {
	TTL time.Duration `koanf:"ttl"`
}

// AuthConfig holds session and token settings
type AuthConfig struct {
	JWTSecret       string `koanf:"jwt_secret"`
	SessionTTLHours int    `koanf:"session_ttl_hours"`
}

// LoadConfig loads the configuration from a file
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	// Set up default configuration
	k.Load(confmap.Provider(map[string]interface{}{
		"server.port":               8877,
		"nlu.base_url":              "http://localhost:5005",
		"nlu.parse_endpoint":        "/model/parse",
		"nlu.request_timeout":       "10s",
		"generator.base_url":        "http://localhost:11434",
		"generator.model":           "qwen3:4b",
		"generator.temperature":     0.7,
		"chat.confidence_threshold": 0.7,
		"chat.high_risk_intents": []string{
			"order_food",
			"book_taxi",
			"document_question",
			"create_user",
			"delete_user",
			"modify_user",
			"change_admin_password",
		},
		"chat.history_window":     30,
		"chat.max_message_length": 300,
		"clarify.ttl":             "15m",
		"auth.session_ttl_hours":  12,
	}, "."), nil)

	// Load from TOML file if it exists
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		// Try default locations - prioritize avadata for containerized environments
		defaultPaths := []string{"./avadata/ava.toml", "./ava.toml", "$HOME/.ava.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// Load from environment variables with prefix AVA_
	k.Load(env.Provider("AVA_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "AVA_")), "_", ".", -1)
	}), nil)

	// Unmarshal into Config struct
	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

// InitConfig initializes a new configuration file
func InitConfig(configPath string) error {
	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sampleConfig := `# Ava Configuration

[server]
port = 8877

[nlu]
base_url = "http://localhost:5005"
parse_endpoint = "/model/parse"

[generator]
base_url = "http://localhost:11434"
model = "qwen3:4b"
temperature = 0.7

[chat]
confidence_threshold = 0.7
high_risk_intents = [
  "order_food",
  "book_taxi",
  "document_question",
  "create_user",
  "delete_user",
  "modify_user",
  "change_admin_password",
]

[auth]
jwt_secret = "change-me"
session_ttl_hours = 12
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate validates the configuration
func Validate(config *Config) error {
	if config.Server.Port <= 0 {
		return fmt.Errorf("server port must be positive")
	}

	if config.NLU.BaseURL == "" {
		return fmt.Errorf("nlu base_url is required")
	}

	if config.Generator.Model == "" {
		return fmt.Errorf("generator model is required")
	}

	if config.Chat.ConfidenceThreshold < 0 || config.Chat.ConfidenceThreshold > 1 {
		return fmt.Errorf("chat confidence_threshold must be in [0,1], got %v", config.Chat.ConfidenceThreshold)
	}

	if config.Auth.JWTSecret == "" {
		return fmt.Errorf("auth jwt_secret is required")
	}

	return nil
}

// IsHighRiskIntent reports whether the named intent is confidence-gated.
// Only intents with real-world side effects belong in the configured list.
func (c *Config) IsHighRiskIntent(name string) bool {
	for _, intent := range c.Chat.HighRiskIntents {
		if intent == name {
			return true
		}
	}
	return false
}
