// Package config provides configuration types and defaults for mlvfs.
package config

import "fmt"

// Default constants, mirroring the recording-wide options a real MLVFS
// mount exposes as FUSE mount options.
const (
	// DefaultDeflickerTargetMedian is the brightness value deflicker
	// normalizes the frame median toward, on the same 14-bit-ish scale raw
	// samples live on.
	DefaultDeflickerTargetMedian int = 8192

	// DefaultCacheBudgetBytes is the image buffer cache's default byte
	// budget: enough for a double-digit count of full-resolution DNGs.
	DefaultCacheBudgetBytes int64 = 512 * 1024 * 1024

	// DefaultChromaSmoothRadius is the chroma-smoothing kernel radius when
	// chroma smoothing is enabled without an explicit radius.
	DefaultChromaSmoothRadius int = 2

	// DefaultHeaderCacheRecordings bounds how many recordings' forward-scan
	// resume points and stripe-correction tables are memoized at once.
	DefaultHeaderCacheRecordings int = 32
)

// NameScheme selects the virtual directory/file naming convention.
type NameScheme string

const (
	NameSchemeDefault           NameScheme = "default"
	NameSchemeResolveCompatible NameScheme = "resolve-compatible"
)

// Config holds all configuration for one MLVFS mount.
type Config struct {
	// MLVPath is the directory scanned for ".MLV" recordings.
	MLVPath string
	// LogDir is where the debug logger writes its own log file (distinct
	// from the per-recording virtual ".LOG" files materialized from DEBG
	// blocks).
	LogDir string

	NameScheme NameScheme

	// Correction passes, all off by default except deflicker (matching the
	// original implementation's defaults: deflicker is the one pass enabled
	// out of the box since it corrects a visible, common artifact).
	Deflicker             bool
	DeflickerTargetMedian int
	FixPatternNoise       bool
	FixBadPixels          bool
	FixStripes            bool
	ChromaSmooth          int // 0 = off, else kernel radius

	// DualISO: 0 = off, 1 = fast recovery, 2 = HQ recovery (fast blend plus seam smoothing).
	DualISO            int
	HDRInterpolationHQ bool
	HDRNoAliasMap      bool
	HDRNoFullRes       bool

	// FPS overrides the recording's own frame rate when non-zero, for
	// players that need a fixed value regardless of source variable frame
	// rate.
	FPS float64

	// CacheBudgetBytes bounds the image buffer cache (internal/framecache).
	CacheBudgetBytes int64

	// HeaderCacheRecordings bounds the frame-index/stripe-table memo caches.
	HeaderCacheRecordings int

	Verbose bool
}

// NewConfig creates a new Config with default values for mlvPath.
func NewConfig(mlvPath, logDir string) *Config {
	return &Config{
		MLVPath:               mlvPath,
		LogDir:                logDir,
		NameScheme:            NameSchemeDefault,
		Deflicker:             true,
		DeflickerTargetMedian: DefaultDeflickerTargetMedian,
		CacheBudgetBytes:      DefaultCacheBudgetBytes,
		HeaderCacheRecordings: DefaultHeaderCacheRecordings,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.MLVPath == "" {
		return fmt.Errorf("mlv_path must be set")
	}

	if c.NameScheme != NameSchemeDefault && c.NameScheme != NameSchemeResolveCompatible {
		return fmt.Errorf("name_scheme must be %q or %q, got %q", NameSchemeDefault, NameSchemeResolveCompatible, c.NameScheme)
	}

	if c.DualISO < 0 || c.DualISO > 2 {
		return fmt.Errorf("dual_iso must be 0, 1, or 2, got %d", c.DualISO)
	}

	switch c.ChromaSmooth {
	case 0, 2, 3, 5:
	default:
		return fmt.Errorf("chroma_smooth must be one of 0, 2, 3, 5, got %d", c.ChromaSmooth)
	}

	if c.CacheBudgetBytes < 0 {
		return fmt.Errorf("cache_budget_bytes must be non-negative, got %d", c.CacheBudgetBytes)
	}

	if c.HeaderCacheRecordings < 1 {
		return fmt.Errorf("header_cache_recordings must be at least 1, got %d", c.HeaderCacheRecordings)
	}

	if c.FPS < 0 {
		return fmt.Errorf("fps must be non-negative, got %g", c.FPS)
	}

	return nil
}
