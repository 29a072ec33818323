package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Lighting defaults
	if cfg.Lighting.MaxBestLights != 10 {
		t.Errorf("expected max best lights 10, got %d", cfg.Lighting.MaxBestLights)
	}
	if cfg.Lighting.DefaultModel != "stock" {
		t.Errorf("expected default model 'stock', got %s", cfg.Lighting.DefaultModel)
	}
	if !cfg.Lighting.FilterZones {
		t.Error("expected zone filtering to be on by default")
	}

	// Bake defaults
	if cfg.Bake.Quality != "full" {
		t.Errorf("expected quality 'full', got %s", cfg.Bake.Quality)
	}
	if !cfg.Bake.Persist {
		t.Error("expected persist to be true by default")
	}
	if cfg.Bake.TimeSlice != 500*time.Millisecond {
		t.Errorf("expected time slice 500ms, got %v", cfg.Bake.TimeSlice)
	}

	// Cache defaults
	if cfg.Cache.QuotaKB != -1 {
		t.Errorf("expected unlimited quota, got %d", cfg.Cache.QuotaKB)
	}
	if cfg.Cache.PurgeMethod != "lastModified" {
		t.Errorf("expected purge method lastModified, got %s", cfg.Cache.PurgeMethod)
	}

	// Shadow defaults
	if cfg.Shadows.Size != 128 {
		t.Errorf("expected shadow size 128, got %d", cfg.Shadows.Size)
	}
	if cfg.Shadows.FrameSkip != 5 {
		t.Errorf("expected frame skip 5, got %d", cfg.Shadows.FrameSkip)
	}
	if cfg.Shadows.MaxVisibleDistance != 50 {
		t.Errorf("expected max visible distance 50, got %f", cfg.Shadows.MaxVisibleDistance)
	}
	if cfg.Shadows.ProjectionDistance != 14 {
		t.Errorf("expected projection distance 14, got %f", cfg.Shadows.ProjectionDistance)
	}

	// Pool defaults
	if cfg.Pool.CleanupInterval != 2*time.Second {
		t.Errorf("expected cleanup interval 2s, got %v", cfg.Pool.CleanupInterval)
	}
	if cfg.Pool.IdleTimeout != 30*time.Second {
		t.Errorf("expected idle timeout 30s, got %v", cfg.Pool.IdleTimeout)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
lighting:
  max_best_lights: 4
  default_model: "advanced"
  filter_zones: false

bake:
  quality: "draft"
  persist: false
  time_slice: 250ms

cache:
  dir: "/tmp/lightcache"
  quota_kb: 2048
  purge_method: "maxSize"

shadows:
  size: 256
  frame_skip: 2
  idle_timeout: 10s

export:
  format: "webp"

logging:
  level: "debug"
  log_file: "bake.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Lighting.MaxBestLights != 4 {
		t.Errorf("expected max best lights 4, got %d", cfg.Lighting.MaxBestLights)
	}
	if cfg.Lighting.DefaultModel != "advanced" {
		t.Errorf("expected model 'advanced', got %s", cfg.Lighting.DefaultModel)
	}
	if cfg.Lighting.FilterZones {
		t.Error("expected filter_zones to be false")
	}
	if cfg.Bake.Quality != "draft" {
		t.Errorf("expected quality 'draft', got %s", cfg.Bake.Quality)
	}
	if cfg.Bake.TimeSlice != 250*time.Millisecond {
		t.Errorf("expected time slice 250ms, got %v", cfg.Bake.TimeSlice)
	}
	if cfg.Cache.QuotaKB != 2048 {
		t.Errorf("expected quota 2048, got %d", cfg.Cache.QuotaKB)
	}
	if cfg.Cache.PurgeMethod != "maxSize" {
		t.Errorf("expected purge method maxSize, got %s", cfg.Cache.PurgeMethod)
	}
	if cfg.Shadows.Size != 256 {
		t.Errorf("expected shadow size 256, got %d", cfg.Shadows.Size)
	}
	if cfg.Shadows.IdleTimeout != 10*time.Second {
		t.Errorf("expected idle timeout 10s, got %v", cfg.Shadows.IdleTimeout)
	}
	// Untouched sections keep their defaults
	if cfg.Shadows.ProjectionDistance != 14 {
		t.Errorf("expected default projection distance, got %f", cfg.Shadows.ProjectionDistance)
	}
	if cfg.Export.Format != "webp" {
		t.Errorf("expected export format webp, got %s", cfg.Export.Format)
	}
	if cfg.Logging.LogFile != "bake.log" {
		t.Errorf("expected log file 'bake.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
lighting:
  max_best_lights: not a number
  invalid syntax here
`

	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFromFile(cfg, "/nonexistent/path/config.yaml"); err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad quality", func(c *Config) { c.Bake.Quality = "ultra" }},
		{"bad purge method", func(c *Config) { c.Cache.PurgeMethod = "random" }},
		{"bad export format", func(c *Config) { c.Export.Format = "gif" }},
		{"zero lights", func(c *Config) { c.Lighting.MaxBestLights = 0 }},
		{"tiny shadow", func(c *Config) { c.Shadows.Size = 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidSetting) {
				t.Errorf("Validate() = %v, want ErrInvalidSetting", err)
			}
		})
	}
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("bake:\n  quality: best\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := LoadFile(configPath); !errors.Is(err, ErrInvalidSetting) {
		t.Errorf("LoadFile() error = %v, want ErrInvalidSetting", err)
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "config.yaml")

	cfg := Default()
	cfg.Cache.Dir = "custom-cache"
	cfg.Bake.Quality = "design"
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() failed: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if loaded.Cache.Dir != "custom-cache" {
		t.Errorf("expected cache dir custom-cache, got %s", loaded.Cache.Dir)
	}
	if loaded.Bake.Quality != "design" {
		t.Errorf("expected quality design, got %s", loaded.Bake.Quality)
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}

	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	os.Chdir(tmpDir)

	path := findConfigFile()
	if path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("bake:\n  quality: draft\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	path = findConfigFile()
	if path == "" {
		t.Error("expected to find config.yaml in current directory")
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*testing.T, *Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name:  "quality flag",
			setup: func() { *flagQuality = "draft" },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Bake.Quality != "draft" {
					t.Errorf("expected quality draft, got %s", cfg.Bake.Quality)
				}
			},
			teardown: func() { *flagQuality = "" },
		},
		{
			name:  "cache dir flag",
			setup: func() { *flagCacheDir = "/var/cache/lights" },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Cache.Dir != "/var/cache/lights" {
					t.Errorf("expected cache dir override, got %s", cfg.Cache.Dir)
				}
			},
			teardown: func() { *flagCacheDir = "" },
		},
		{
			name:  "max lights flag",
			setup: func() { *flagMaxLights = 3 },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Lighting.MaxBestLights != 3 {
					t.Errorf("expected 3 lights, got %d", cfg.Lighting.MaxBestLights)
				}
			},
			teardown: func() { *flagMaxLights = 0 },
		},
		{
			name:  "no persist flag",
			setup: func() { *flagNoPersist = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Bake.Persist {
					t.Error("expected persist to be disabled")
				}
			},
			teardown: func() { *flagNoPersist = false },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg)

			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
bake:
  quality: design
cache:
  dir: from-file
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	*flagQuality = "draft"
	defer func() {
		*flagConfig = ""
		*flagQuality = ""
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Quality comes from the flag, not the file
	if cfg.Bake.Quality != "draft" {
		t.Errorf("expected quality draft from flag, got %s", cfg.Bake.Quality)
	}

	// Cache dir comes from the file since no flag overrides it
	if cfg.Cache.Dir != "from-file" {
		t.Errorf("expected cache dir from file, got %s", cfg.Cache.Dir)
	}
}
