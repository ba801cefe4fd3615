package slots

import "fmt"

// FormatDuration formats minutes the way the front desk writes them.
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d Min.", minutes)
	}
	hours := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		return fmt.Sprintf("%d Std.", hours)
	}
	return fmt.Sprintf("%d Std. %d Min.", hours, mins)
}
