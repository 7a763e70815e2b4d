// Package config handles agent configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./mnemo.yaml, ~/.config/mnemo/config.yaml, /etc/mnemo/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"mnemo.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "mnemo", "config.yaml"))
	}

	paths = append(paths, "/etc/mnemo/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must
// exist. Otherwise, searches DefaultSearchPaths and returns the first
// that exists. Returns an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all agent configuration.
type Config struct {
	// Model is the Claude model used for reasoning.
	Model string `yaml:"model"`

	// MaxTokens caps response tokens per reasoning call.
	MaxTokens int64 `yaml:"max_tokens"`

	// Temperature is the sampling temperature.
	Temperature float64 `yaml:"temperature"`

	// UserID namespaces memory for the CLI session.
	UserID string `yaml:"user_id"`

	// Workspace is the root directory for the file tools.
	Workspace string `yaml:"workspace"`

	// DatabasePath is the SQLite file backing long-term memory.
	DatabasePath string `yaml:"database_path"`

	// EpisodePath is the directory backing the episodic vector index.
	// Empty keeps episodes in memory only.
	EpisodePath string `yaml:"episode_path"`

	// RecallLimit is how many similar episodes each turn recalls.
	RecallLimit int `yaml:"recall_limit"`

	// MinSimilarity drops recalled episodes scoring below it.
	MinSimilarity float64 `yaml:"min_similarity"`

	// MaxIterations caps reasoning calls per turn.
	MaxIterations int `yaml:"max_iterations"`

	// StoreEvery stores an episode every Nth interaction. Zero
	// disables episode storage.
	StoreEvery int `yaml:"store_every"`
}

// Load reads configuration from a YAML file. Environment variables in
// the file are expanded, and fields absent from the file keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Model:         "claude-sonnet-4-20250514",
		MaxTokens:     4096,
		Temperature:   0.7,
		UserID:        "demo_user",
		Workspace:     "workspace",
		DatabasePath:  filepath.Join("data", "memory.db"),
		EpisodePath:   filepath.Join("data", "episodes"),
		RecallLimit:   3,
		MaxIterations: 25,
		StoreEvery:    3,
	}
}
