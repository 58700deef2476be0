package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bamsammich/shuttle/internal/stats"
)

var rateUnits = [...]string{"B/s", "KB/s", "MB/s", "GB/s", "TB/s", "PB/s"}

// FormatRate formats a bytes-per-second rate with three significant digits.
func FormatRate(bytesPerSec float64) string {
	if bytesPerSec <= 0 {
		return "0 B/s"
	}
	unit := 0
	for bytesPerSec >= 1024 && unit < len(rateUnits)-1 {
		bytesPerSec /= 1024
		unit++
	}
	return threeDigits(bytesPerSec) + " " + rateUnits[unit]
}

func threeDigits(v float64) string {
	switch {
	case v < 10:
		return strconv.FormatFloat(v, 'f', 2, 64)
	case v < 100:
		return strconv.FormatFloat(v, 'f', 1, 64)
	default:
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
}

// FormatETA is FormatDuration, or "--" while the remaining time is unknown.
func FormatETA(d time.Duration) string {
	if d <= 0 {
		return "--"
	}
	return FormatDuration(d)
}

// FormatDuration formats d as "1h 02m 03s", "3m 17s" or "30s".
func FormatDuration(d time.Duration) string {
	secs := int64(d.Round(time.Second) / time.Second)
	h, m, s := secs/3600, secs/60%60, secs%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// FormatCount formats n with thousands separators.
func FormatCount(n int64) string {
	digits := strconv.FormatInt(n, 10)
	sign := ""
	if n < 0 {
		sign, digits = "-", digits[1:]
	}

	var b strings.Builder
	b.WriteString(sign)
	for i, c := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// ProgressBar renders pct (clamped to [0, 1]) as width cells of ▪ and □.
func ProgressBar(pct float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(min(max(pct, 0), 1) * float64(width))
	return strings.Repeat("▪", filled) + strings.Repeat("□", width-filled)
}

// FormatBytes is stats.FormatBytes.
func FormatBytes(b int64) string {
	return stats.FormatBytes(b)
}
