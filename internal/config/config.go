// Package config loads the AI Core destination descriptor and performs
// the eager validation that runs before any strategy call: settings
// shapes, provider options, and model-to-deployment resolution.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/anhofmann/aicore-go/internal/domain"
)

// Destination describes one AI Core service target.
type Destination struct {
	BaseURL       string `koanf:"base_url"`
	Token         string `koanf:"token"`
	ResourceGroup string `koanf:"resource_group"`
	APIVersion    string `koanf:"api_version"`
}

// Config is the process-level configuration.
type Config struct {
	Destination  Destination `koanf:"destination"`
	LogLevel     string      `koanf:"log_level"`
	RecorderPath string      `koanf:"recorder_path"`
}

// Load reads the optional yaml descriptor at path, then applies AICORE_*
// environment overrides. Double underscores separate nesting levels so
// single underscores survive inside key names
// (AICORE_DESTINATION__BASE_URL -> destination.base_url).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("AICORE_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "AICORE_")), "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	if !k.Exists("destination.resource_group") {
		k.Set("destination.resource_group", "default")
	}
	if !k.Exists("log_level") {
		k.Set("log_level", "info")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if cfg.Destination.BaseURL == "" {
		return nil, &domain.ValidationError{
			Field:   "destination.base_url",
			Message: "no AI Core base URL configured",
		}
	}
	return &cfg, nil
}
