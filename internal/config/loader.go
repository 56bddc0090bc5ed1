package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default returns the built-in configuration. Everything except the backend
// URL has a usable default; secrets come from the environment.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses a configuration from the given YAML file path.
// After parsing, defaults are applied to any field left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault searches for a config in standard locations and loads the first
// one found. Search order: ./repofactor.yaml, ~/.repofactor/config.yaml.
// With no config file present, the built-in defaults are returned.
func LoadDefault() (*Config, error) {
	candidates := []string{"repofactor.yaml"}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".repofactor", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	return Default(), nil
}

func applyDefaults(cfg *Config) {
	b := &cfg.Backend
	if b.APIKeyEnv == "" {
		b.APIKeyEnv = "LIGHTNING_API_KEY"
	}
	if b.Model == "" {
		b.Model = "codellama/CodeLlama-34b-Instruct-hf"
	}
	if b.MaxTokens == 0 {
		b.MaxTokens = 2000
	}
	if b.Temperature == 0 {
		b.Temperature = 0.1
	}
	if b.MonthlyQuota == 0 {
		b.MonthlyQuota = 20
	}
	if b.Timeout == "" {
		b.Timeout = "300s"
	}

	if cfg.GitHub.TokenEnv == "" {
		cfg.GitHub.TokenEnv = "GITHUB_TOKEN"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite3"
	}

	l := &cfg.Limits
	if l.LogTail == 0 {
		l.LogTail = 10
	}
	if l.MaxFileBytes == 0 {
		l.MaxFileBytes = 64 * 1024
	}
	if l.MaxAnalysisFiles == 0 {
		l.MaxAnalysisFiles = 5
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
