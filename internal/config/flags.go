package config

import "flag"

var (
	flagConfig    = flag.String("config", "", "Path to config file")
	flagDebug     = flag.Bool("debug", false, "Enable debug logging")
	flagQuality   = flag.String("quality", "", "Bake quality: full, design or draft")
	flagCacheDir  = flag.String("cache-dir", "", "Lighting cache directory")
	flagMaxLights = flag.Int("max-lights", 0, "Maximum lights returned per query")
	flagNoPersist = flag.Bool("no-persist", false, "Bake without writing a cache file")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagQuality != "" {
		cfg.Bake.Quality = *flagQuality
	}
	if *flagCacheDir != "" {
		cfg.Cache.Dir = *flagCacheDir
	}
	if *flagMaxLights > 0 {
		cfg.Lighting.MaxBestLights = *flagMaxLights
	}
	if *flagNoPersist {
		cfg.Bake.Persist = false
	}
}
