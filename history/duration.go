package history

import (
	"fmt"
	"math"
)

// FormatDuration renders seconds as MM:SS, or HH:MM:SS from one hour up.
// Negative and non-finite inputs render as 00:00.
func FormatDuration(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "00:00"
	}
	total := int64(math.Floor(seconds))
	hours := total / 3600
	minutes := total % 3600 / 60
	secs := total % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}
