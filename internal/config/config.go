package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/digitaldesignunit/clayprinting-slicer/internal/layers"
	"github.com/digitaldesignunit/clayprinting-slicer/internal/toolpath"
)

// Config holds the settings shared by all commands.
type Config struct {
	Process  toolpath.Params `yaml:"process"`
	Classify layers.Params   `yaml:"classify"`
	Logging  LoggingConfig   `yaml:"logging"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}

func DefaultConfig() *Config {
	return &Config{
		Process: toolpath.Params{
			PrintSpeed:         1500,
			TravelSpeed:        3000,
			RetractionSpeed:    1800,
			ExtrusionRate:      0.2,
			InitExtrusion:      0.5,
			RetractionConstant: 1.0,
			LayerHeight:        1.5,
			LineWidth:          3.0,
			ZHop:               2.0,
			FloorLayerCount:    3,
			PauseTime:          10000,
			Tolerance:          toolpath.DefaultTolerance,
		},
		Classify: layers.Params{
			FloorLayerCount: 3,
			CapLayerCount:   3,
			FloorEnabled:    true,
			Threshold:       10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
