//go:build linux

package timesync

import (
	"time"

	"golang.org/x/sys/unix"
)

// Monotonic returns the host CLOCK_MONOTONIC reading, the clock the USB stack stamps arrivals
// with.
func Monotonic() time.Duration {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return time.Since(processStart)
	}
	return time.Duration(ts.Nano())
}
