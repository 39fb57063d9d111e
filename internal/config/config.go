// Package config loads and validates the gateway configuration.
package config

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config represents the gateway configuration
type Config struct {
	Port        int              `json:"port"`
	SecretsFile string           `json:"secrets_file,omitempty"`
	Database    DatabaseConfig   `json:"database"`
	Embedding   EmbeddingConfig  `json:"embedding"`
	Generation  GenerationConfig `json:"generation"`
	Retrieval   RetrievalConfig  `json:"retrieval,omitempty"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `json:"path"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider string `json:"provider,omitempty"` // "hashing" (default), "huggingface"
	Model    string `json:"model,omitempty"`    // Default: all-MiniLM-L6-v2
	Dims     int    `json:"dims,omitempty"`     // Default: 512 hashing, 384 huggingface
	APIKey   string `json:"api_key,omitempty"`  // Supports ${ENV_VAR} expansion
}

// GenerationConfig configures the hosted text-generation model.
type GenerationConfig struct {
	Model        string  `json:"model,omitempty"` // Default: microsoft/DialoGPT-small
	APIKey       string  `json:"api_key,omitempty"`
	MaxNewTokens int     `json:"max_new_tokens,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
}

// RetrievalConfig configures context retrieval defaults.
type RetrievalConfig struct {
	TopK int `json:"top_k,omitempty"` // Default: 3
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Port:     8080,
		Database: DatabaseConfig{Path: "shifa.db"},
		Embedding: EmbeddingConfig{
			Provider: "hashing",
		},
		Generation: GenerationConfig{
			APIKey: "${HUGGINGFACE_API_KEY}",
		},
		Retrieval: RetrievalConfig{TopK: 3},
	}
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	// Check if file exists, create default if not
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
		fmt.Printf("Created default configuration at %s\n", path)
		cfg.expandEnvVars()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Expand tilde in path fields first so that secrets_file can
	// reference ~/... paths.
	cfg.expandTilde()

	// Load secrets file (KEY=VALUE) into the environment before
	// expanding ${ENV_VAR} placeholders in the config.
	if err := cfg.loadSecretsFile(); err != nil {
		return nil, fmt.Errorf("failed to load secrets file: %w", err)
	}

	cfg.expandEnvVars()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// expandEnvVars expands environment variables in configuration values
func (c *Config) expandEnvVars() {
	c.SecretsFile = os.ExpandEnv(c.SecretsFile)
	c.Database.Path = os.ExpandEnv(c.Database.Path)
	c.Embedding.APIKey = os.ExpandEnv(c.Embedding.APIKey)
	c.Generation.APIKey = os.ExpandEnv(c.Generation.APIKey)
}

// expandTilde expands a leading ~ in path-valued config fields
func (c *Config) expandTilde() {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	expand := func(p string) string {
		if p == "~" {
			return home
		}
		if strings.HasPrefix(p, "~/") {
			return filepath.Join(home, p[2:])
		}
		return p
	}
	c.SecretsFile = expand(c.SecretsFile)
	c.Database.Path = expand(c.Database.Path)
}

// loadSecretsFile reads a KEY=VALUE file into the process environment.
// Existing environment variables are NOT overridden (shell/systemd wins).
func (c *Config) loadSecretsFile() error {
	if c.SecretsFile == "" {
		return nil
	}

	f, err := os.Open(c.SecretsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Don't override existing env vars
		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, value)
		}
	}
	return scanner.Err()
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	switch c.Embedding.Provider {
	case "", "hashing", "huggingface":
	default:
		return fmt.Errorf("unknown embedding provider: %q", c.Embedding.Provider)
	}
	if c.Embedding.Provider == "huggingface" && c.Embedding.APIKey == "" {
		return fmt.Errorf("embedding api_key is required for the huggingface provider")
	}
	if c.Retrieval.TopK < 0 {
		return fmt.Errorf("retrieval top_k must not be negative")
	}
	return nil
}
