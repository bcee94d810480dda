package util

import "fmt"

// FormatBytesReadable renders a byte count as a human-friendly string using
// binary (1024-based) units, matching the scale conventions disk tools use.
func FormatBytesReadable(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	units := []string{"KiB", "MiB", "GiB", "TiB", "PiB"}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), units[exp])
}

// FormatDurationFromSecs renders a duration given in seconds as "H:MM:SS",
// or "M:SS" when under an hour (the leading field is not zero-padded).
func FormatDurationFromSecs(totalSecs int64) string {
	if totalSecs < 0 {
		totalSecs = 0
	}
	h := totalSecs / 3600
	m := (totalSecs % 3600) / 60
	s := totalSecs % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// CalculateSizeReduction returns the percentage size reduction from
// original to reduced; 0 if original is 0.
func CalculateSizeReduction(original, reduced int64) float64 {
	if original == 0 {
		return 0
	}
	return (1 - float64(reduced)/float64(original)) * 100
}
