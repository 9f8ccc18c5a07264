// Package config handles mmdtool configuration loading and management.
package config

import (
	"fmt"

	"github.com/Faultbox/headless-mmd/internal/logger"
	"github.com/Faultbox/headless-mmd/pkg/anim"
)

// Name encodings for VMD and capture track names.
const (
	NameEncodingShiftJIS = "shift_jis"
	NameEncodingRaw      = "raw"
)

// Config holds all tool settings.
type Config struct {
	Data    DataConfig    `yaml:"data"`
	Import  ImportConfig  `yaml:"import"`
	Export  ExportConfig  `yaml:"export"`
	Logging LoggingConfig `yaml:"logging"`
}

// DataConfig holds asset search paths.
type DataConfig struct {
	SearchPaths []string `yaml:"search_paths"` // tried in order for relative asset paths
}

// ImportConfig controls how motions are matched to models.
type ImportConfig struct {
	NameEncoding string `yaml:"name_encoding"` // shift_jis or raw
	FrameCount   string `yaml:"frame_count"`   // keys or last_frame
}

// ExportConfig holds settings for written motions.
type ExportConfig struct {
	ModelName string `yaml:"model_name"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			SearchPaths: []string{"."},
		},
		Import: ImportConfig{
			NameEncoding: NameEncodingShiftJIS,
			FrameCount:   anim.FrameCountKeys.String(),
		},
		Export: ExportConfig{
			ModelName: "headless-mmd",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Import.NameEncoding {
	case NameEncodingShiftJIS, NameEncodingRaw:
	default:
		return fmt.Errorf("import.name_encoding: unknown encoding %q", c.Import.NameEncoding)
	}
	if _, err := anim.ParseFrameCount(c.Import.FrameCount); err != nil {
		return fmt.Errorf("import.frame_count: %w", err)
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// ImportOptions returns the sampler options selected by the config.
// The config must be valid.
func (c *Config) ImportOptions() anim.Options {
	fc, _ := anim.ParseFrameCount(c.Import.FrameCount)
	return anim.Options{FrameCount: fc}
}
