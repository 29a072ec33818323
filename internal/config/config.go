// Package config handles lighting tool configuration loading and management.
package config

import "time"

// Config holds all lighting settings.
type Config struct {
	Lighting LightingConfig `yaml:"lighting"`
	Bake     BakeConfig     `yaml:"bake"`
	Cache    CacheConfig    `yaml:"cache"`
	Shadows  ShadowConfig   `yaml:"shadows"`
	Pool     PoolConfig     `yaml:"pool"`
	Export   ExportConfig   `yaml:"export"`
	Viewer   ViewerConfig   `yaml:"viewer"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LightingConfig holds light selection settings.
type LightingConfig struct {
	MaxBestLights          int    `yaml:"max_best_lights"`
	DefaultModel           string `yaml:"default_model"`
	FilterZones            bool   `yaml:"filter_zones"`
	DynamicShadows         bool   `yaml:"dynamic_shadows"`
	MultipleDynamicShadows bool   `yaml:"multiple_dynamic_shadows"`
	ShadowQuality          int    `yaml:"shadow_quality"` // 0 best, 2 fixed-function
}

// BakeConfig holds static lighting settings.
type BakeConfig struct {
	Quality   string        `yaml:"quality"` // full, design, draft
	Persist   bool          `yaml:"persist"`
	TimeSlice time.Duration `yaml:"time_slice"`
	Blur      bool          `yaml:"blur"`
}

// CacheConfig holds lighting cache settings.
type CacheConfig struct {
	Dir         string `yaml:"dir"`
	QuotaKB     int64  `yaml:"quota_kb"` // -1 is unlimited
	PurgeMethod string `yaml:"purge_method"`
}

// ShadowConfig holds per-object dynamic shadow defaults.
type ShadowConfig struct {
	Enable             bool          `yaml:"enable"`
	CanMove            bool          `yaml:"can_move"`
	CanRTT             bool          `yaml:"can_rtt"`
	SelfShadow         bool          `yaml:"self_shadow"`
	Size               int           `yaml:"size"`
	FrameSkip          int           `yaml:"frame_skip"`
	MaxVisibleDistance float32       `yaml:"max_visible_distance"`
	ProjectionDistance float32       `yaml:"projection_distance"`
	SphereAdjust       float32       `yaml:"sphere_adjust"`
	IdleTimeout        time.Duration `yaml:"idle_timeout"`
}

// PoolConfig holds render target pool settings.
type PoolConfig struct {
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
}

// ExportConfig holds lightmap export settings.
type ExportConfig struct {
	Format string `yaml:"format"` // png, tga, bmp, webp
}

// ViewerConfig holds display settings for lightview.
type ViewerConfig struct {
	Width  int  `yaml:"width"`
	Height int  `yaml:"height"`
	VSync  bool `yaml:"vsync"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Lighting: LightingConfig{
			MaxBestLights:          10,
			DefaultModel:           "stock",
			FilterZones:            true,
			DynamicShadows:         true,
			MultipleDynamicShadows: true,
			ShadowQuality:          0,
		},
		Bake: BakeConfig{
			Quality:   "full",
			Persist:   true,
			TimeSlice: 500 * time.Millisecond,
			Blur:      true,
		},
		Cache: CacheConfig{
			Dir:         "lighting",
			QuotaKB:     -1,
			PurgeMethod: "lastModified",
		},
		Shadows: ShadowConfig{
			Enable:             true,
			CanMove:            true,
			CanRTT:             true,
			SelfShadow:         false,
			Size:               128,
			FrameSkip:          5,
			MaxVisibleDistance: 50,
			ProjectionDistance: 14,
			SphereAdjust:       1,
			IdleTimeout:        3 * time.Second,
		},
		Pool: PoolConfig{
			CleanupInterval: 2 * time.Second,
			IdleTimeout:     30 * time.Second,
		},
		Export: ExportConfig{
			Format: "png",
		},
		Viewer: ViewerConfig{
			Width:  1280,
			Height: 720,
			VSync:  true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
