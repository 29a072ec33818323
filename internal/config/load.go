package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// ErrInvalidSetting is returned when a loaded value is out of range.
var ErrInvalidSetting = errors.New("invalid config setting")

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	// Start with defaults
	cfg := Default()

	// Try to load from file (explicit path takes priority)
	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	// Apply CLI flags (highest priority)
	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFile loads defaults overlaid with a single YAML file, without flags.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := loadFromFile(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the lighting system cannot honor.
func (c *Config) Validate() error {
	switch c.Bake.Quality {
	case "full", "design", "draft":
	default:
		return fmt.Errorf("%w: bake quality %q", ErrInvalidSetting, c.Bake.Quality)
	}
	switch c.Cache.PurgeMethod {
	case "minSize", "maxSize", "lastCreated", "lastModified":
	default:
		return fmt.Errorf("%w: purge method %q", ErrInvalidSetting, c.Cache.PurgeMethod)
	}
	switch c.Export.Format {
	case "png", "tga", "bmp", "webp":
	default:
		return fmt.Errorf("%w: export format %q", ErrInvalidSetting, c.Export.Format)
	}
	if c.Lighting.MaxBestLights < 1 {
		return fmt.Errorf("%w: max_best_lights must be positive", ErrInvalidSetting)
	}
	if c.Shadows.Size < 4 {
		return fmt.Errorf("%w: shadow size %d", ErrInvalidSetting, c.Shadows.Size)
	}
	return nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "MidgardLighting")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "MidgardLighting")
	default: // Linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "midgard-lighting")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "midgard-lighting")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
