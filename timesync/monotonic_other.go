//go:build !linux

package timesync

import "time"

// Monotonic returns a monotonic reading relative to process start.
func Monotonic() time.Duration {
	return time.Since(processStart)
}
