package config

// Default values for unset config fields.
const (
	DefaultWorkers      = 4
	DefaultMaxEntrySize = 256 * 1024 * 1024
	DefaultCoverWidth   = 1200
	DefaultCoverQuality = 85
)

// ApplyDefaults fills in zero-valued fields with defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Extract.Workers <= 0 {
		cfg.Extract.Workers = DefaultWorkers
	}
	if cfg.Extract.MaxEntrySize <= 0 {
		cfg.Extract.MaxEntrySize = DefaultMaxEntrySize
	}
	if cfg.Cover.MaxWidth <= 0 {
		cfg.Cover.MaxWidth = DefaultCoverWidth
	}
	if cfg.Cover.Quality <= 0 || cfg.Cover.Quality > 100 {
		cfg.Cover.Quality = DefaultCoverQuality
	}
}
