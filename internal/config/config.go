// Package config handles viewer configuration loading and management.
package config

import (
	"errors"
	"fmt"
)

// Config holds all viewer settings.
type Config struct {
	Scene   SceneConfig   `yaml:"scene" toml:"scene"`
	Loading LoadingConfig `yaml:"loading" toml:"loading"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// SceneConfig holds scene placement settings.
type SceneConfig struct {
	// Size is the outer box every loaded model is uniformly scaled to fit.
	Size [3]float32 `yaml:"size" toml:"size"`
}

// LoadingConfig holds geometry loader settings.
type LoadingConfig struct {
	Pedantic     bool `yaml:"pedantic" toml:"pedantic"`           // first statement error aborts a file
	Mmap         bool `yaml:"mmap" toml:"mmap"`                   // memory-map c3d files
	FlipTextures bool `yaml:"flip_textures" toml:"flip_textures"` // bottom-left texture origin
	Workers      int  `yaml:"workers" toml:"workers"`             // files loaded in parallel
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level" toml:"level"`
	LogFile string `yaml:"log_file" toml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Scene: SceneConfig{
			Size: [3]float32{100, 100, 100},
		},
		Loading: LoadingConfig{
			Pedantic:     false,
			Mmap:         true,
			FlipTextures: true,
			Workers:      4,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

var (
	ErrInvalidSceneSize = errors.New("scene size must be positive")
	ErrInvalidWorkers   = errors.New("workers must be at least 1")
)

// Validate checks settings that have no usable meaning when out of range.
func (c *Config) Validate() error {
	for i, v := range c.Scene.Size {
		if !(v > 0) {
			return fmt.Errorf("%w: axis %d is %v", ErrInvalidSceneSize, i, v)
		}
	}
	if c.Loading.Workers < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidWorkers, c.Loading.Workers)
	}
	return nil
}
