package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Pessimistress/minecraft-chunk-viewer/blocks"
)

// Config holds the viewer configuration.
type Config struct {
	Workers  int    `yaml:"workers"`   // chunks decoded concurrently
	LogLevel string `yaml:"log_level"` // debug, info, warn or error
	Listen   string `yaml:"listen"`

	// Optional replacements for the embedded block and biome tables.
	BlocksFile string `yaml:"blocks_file,omitempty"`
	BiomesFile string `yaml:"biomes_file,omitempty"`

	// DefaultBiome is used for chunks that carry no biome array.
	DefaultBiome int `yaml:"default_biome"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Workers:      runtime.NumCPU(),
		LogLevel:     "info",
		Listen:       ":8080",
		DefaultBiome: blocks.DefaultBiomeID,
	}
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if c.DefaultBiome < 0 || c.DefaultBiome > 255 {
		return fmt.Errorf("default biome %d out of range", c.DefaultBiome)
	}
	return nil
}

// Merge applies file-loaded config values into cfg, but only for fields
// that were NOT explicitly set via CLI flags. explicitFlags contains the
// flag names that were explicitly provided on the command line.
func Merge(cfg *Config, fromFile *Config, explicitFlags map[string]bool) {
	if !explicitFlags["workers"] {
		cfg.Workers = fromFile.Workers
	}
	if !explicitFlags["log-level"] {
		cfg.LogLevel = fromFile.LogLevel
	}
	if !explicitFlags["listen"] {
		cfg.Listen = fromFile.Listen
	}
	if !explicitFlags["blocks"] {
		cfg.BlocksFile = fromFile.BlocksFile
	}
	if !explicitFlags["biomes"] {
		cfg.BiomesFile = fromFile.BiomesFile
	}
	if !explicitFlags["default-biome"] {
		cfg.DefaultBiome = fromFile.DefaultBiome
	}
}

// Tables loads the block and biome tables the config names.
func (c *Config) Tables() (*blocks.Tables, error) {
	tables, err := blocks.LoadFiles(c.BlocksFile, c.BiomesFile)
	if err != nil {
		return nil, err
	}
	tables.SetMissingBiome(c.DefaultBiome)
	return tables, nil
}
