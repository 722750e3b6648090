package helpers

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// FormatBytes formats bytes into human-readable format
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatDuration formats duration into human-readable format.
//
// Formatting rules:
//   - Nanoseconds: whole number, no decimals (e.g., "123ns")
//   - Microseconds: whole number, no decimals (e.g., "456µs")
//   - Milliseconds: up to 3 decimal places (e.g., "123.456ms")
//   - Seconds: up to 2 decimal places (e.g., "45.67s")
//   - Minutes+: compound format (e.g., "3m 45.67s", "2h 30m 15s")
func FormatDuration(d time.Duration) string {
	if d < 0 {
		return "-" + FormatDuration(-d)
	}

	switch {
	case d == 0:
		return "0s"
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return formatFloat(float64(d)/float64(time.Millisecond), 3) + "ms"
	case d < time.Minute:
		return formatFloat(d.Seconds(), 2) + "s"
	case d < time.Hour:
		mins := int(d.Minutes())
		secs := float64(d-time.Duration(mins)*time.Minute) / float64(time.Second)
		if secs < 0.01 {
			return fmt.Sprintf("%dm", mins)
		}
		return fmt.Sprintf("%dm %ss", mins, formatFloat(secs, 2))
	}

	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60
	if secs == 0 && mins == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm %ds", hours, mins, secs)
}

// formatFloat formats a float with up to maxDecimals, trimming trailing zeros.
func formatFloat(value float64, maxDecimals int) string {
	s := fmt.Sprintf("%.*f", maxDecimals, value)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	return s
}

// FormatThroughput formats bytes moved over a duration (e.g. "12.50 MB/s").
func FormatThroughput(bytes int64, d time.Duration) string {
	if d <= 0 {
		return "0 B/s"
	}
	return FormatBytes(int64(float64(bytes)/d.Seconds())) + "/s"
}

// FileExists checks if a file or directory exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDir checks if path is a directory
func IsDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
