package catalog

import "fmt"

const bytesPerMB = 1024 * 1024

// FormatDuration renders milliseconds as MM:SS. Minutes are not wrapped into
// hours, so an hour-long video reads "61:01" rather than "01:01:01".
func FormatDuration(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	minutes := ms / 60000
	seconds := (ms / 1000) % 60
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// FormatSize renders a byte count in whole megabytes, switching to
// gigabytes with one decimal above 1000 MB.
func FormatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	mb := bytes / bytesPerMB
	if mb > 1000 {
		return fmt.Sprintf("%.1f GB", float64(mb)/1024.0)
	}
	return fmt.Sprintf("%d MB", mb)
}
