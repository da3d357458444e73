// Package config provides configuration loading for the epubtext CLI.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all tunable settings. Every field has a working default;
// a config file is optional and command-line flags override file values.
type Config struct {
	Extract ExtractConfig `yaml:"extract"`
	Cover   CoverConfig   `yaml:"cover"`
}

// ExtractConfig holds extraction pipeline settings.
type ExtractConfig struct {
	// Workers bounds concurrent spine-entry extraction.
	Workers int `yaml:"workers"`

	// MaxEntrySize caps the decompressed size of a single archive entry,
	// in bytes.
	MaxEntrySize int64 `yaml:"max_entry_size"`

	// SkipNonLinear drops spine items marked linear="no".
	SkipNonLinear bool `yaml:"skip_non_linear"`
}

// CoverConfig holds cover export settings.
type CoverConfig struct {
	MaxWidth int `yaml:"max_width"`
	Quality  int `yaml:"quality"`
}

// Load reads and parses the config file at path and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a Config with every default applied.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}
