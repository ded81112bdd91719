// Package config provides configuration loading and management for
// bin2dicom. It handles loading configuration from YAML files and
// provides default values for the settings the source format leaves
// undeclared: the text encoding chain, voxel byte order and slice
// stacking direction.
package config

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"bin2dicom/pkg/textenc"
)

// Byte order and slice stacking values accepted in the input section.
const (
	ByteOrderLittle = "little"
	ByteOrderBig    = "big"

	SliceOrderAscending  = "ascending"
	SliceOrderDescending = "descending"
)

// Config represents the conversion configuration loaded from YAML
type Config struct {
	// Input parameters controlling byte- and text-level interpretation
	Input struct {
		// Encodings is the ordered text encoding attempt chain
		Encodings []string `yaml:"encodings"`

		// ByteOrder of binary voxel data: "little" or "big".
		// The source format does not declare it; little matches the
		// reference datasets and is the default.
		ByteOrder string `yaml:"byteOrder"`

		// SliceOrder is the slice stacking direction of the binary
		// volume: "ascending" or "descending"
		SliceOrder string `yaml:"sliceOrder"`
	} `yaml:"input"`

	// Spatial parameters for cross-object consistency checks
	Spatial struct {
		// Tolerance is the maximum allowed spatial mismatch in patient
		// units; 0 means half the slice spacing
		Tolerance float64 `yaml:"tolerance"`
	} `yaml:"spatial"`

	// Output parameters
	Output struct {
		// Verbose controls the level of progress output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Input.Encodings = append([]string(nil), textenc.DefaultChain...)
	cfg.Input.ByteOrder = ByteOrderLittle
	cfg.Input.SliceOrder = SliceOrderAscending

	cfg.Spatial.Tolerance = 0

	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// Validate rejects settings that have no defined interpretation.
func (c *Config) Validate() error {
	switch c.Input.ByteOrder {
	case ByteOrderLittle, ByteOrderBig:
	default:
		return fmt.Errorf("invalid byteOrder %q: want %q or %q", c.Input.ByteOrder, ByteOrderLittle, ByteOrderBig)
	}
	switch c.Input.SliceOrder {
	case SliceOrderAscending, SliceOrderDescending:
	default:
		return fmt.Errorf("invalid sliceOrder %q: want %q or %q", c.Input.SliceOrder, SliceOrderAscending, SliceOrderDescending)
	}
	if c.Spatial.Tolerance < 0 {
		return fmt.Errorf("invalid tolerance %g: must not be negative", c.Spatial.Tolerance)
	}
	return nil
}

// ByteOrder returns the configured binary byte order.
func (c *Config) ByteOrder() binary.ByteOrder {
	if c.Input.ByteOrder == ByteOrderBig {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Descending reports whether slice stacking is reversed.
func (c *Config) Descending() bool {
	return c.Input.SliceOrder == SliceOrderDescending
}

// Decoder builds the text decoder for the configured encoding chain.
func (c *Config) Decoder() (*textenc.Decoder, error) {
	return textenc.NewDecoder(c.Input.Encodings...)
}
