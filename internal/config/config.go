// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package config loads the YAML configuration file and provides defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/mlnoga/falsecolor/internal/raster"
	"github.com/mlnoga/falsecolor/internal/tonemap"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Band selection and tone mapping for previews
	Preview struct {
		// 1-based bands shown as red, green and blue
		Red   int `yaml:"red"`
		Green int `yaml:"green"`
		Blue  int `yaml:"blue"`

		// One of linear, percentile, equalize, gaussian
		Strategy string `yaml:"strategy"`

		// Fraction of the range trimmed at each end by the percentile strategy
		Percent float64 `yaml:"percent"`
	} `yaml:"preview"`

	// Output files. Empty names are not written
	Output struct {
		Raw         string `yaml:"raw"`
		Processed   string `yaml:"processed"`
		SideBySide  string `yaml:"sideBySide"`
		JPEGQuality int    `yaml:"jpegQuality"`
		Matte       string `yaml:"matte"` // background for JPEG, hex color
	} `yaml:"output"`

	Processing struct {
		// Goroutines per pass, 0 for all logical cores
		Threads int `yaml:"threads"`

		// Share of physical memory a raster may occupy, 0 for no limit
		MemoryFraction float64 `yaml:"memoryFraction"`
	} `yaml:"processing"`

	Server struct {
		Listen string `yaml:"listen"`
		Chroot string `yaml:"chroot"`
		Setuid int    `yaml:"setuid"` // negative keeps the current user
	} `yaml:"server"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Preview.Red, cfg.Preview.Green, cfg.Preview.Blue = 1, 2, 3
	cfg.Preview.Strategy = tonemap.Linear.String()
	cfg.Preview.Percent = tonemap.DefaultPercent

	cfg.Output.Processed = "out.png"
	cfg.Output.JPEGQuality = 95
	cfg.Output.Matte = "#000000"

	cfg.Processing.Threads = 0
	cfg.Processing.MemoryFraction = 0.7

	cfg.Server.Listen = ":8080"
	cfg.Server.Setuid = -1

	return cfg
}

// LoadConfig loads configuration from a YAML file on top of the defaults.
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	if configPath == "" {
		return cfg, nil
	}
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
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}
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

// Selection returns the configured band selection
func (cfg *Config) Selection() raster.BandSelection {
	return raster.BandSelection{R: cfg.Preview.Red, G: cfg.Preview.Green, B: cfg.Preview.Blue}
}

// Params parses the configured tone mapping strategy
func (cfg *Config) Params() (tonemap.Params, error) {
	s, err := tonemap.ParseStrategy(cfg.Preview.Strategy)
	if err != nil {
		return tonemap.Params{}, err
	}
	p := tonemap.NewParams(s, cfg.Preview.Percent)
	return p, p.Validate()
}

func (cfg *Config) Validate() error {
	if _, err := cfg.Params(); err != nil {
		return err
	}
	if cfg.Processing.MemoryFraction < 0 || cfg.Processing.MemoryFraction > 1 {
		return fmt.Errorf("memoryFraction %g outside [0,1]", cfg.Processing.MemoryFraction)
	}
	return nil
}
