//go:build linux

package sensors

import (
	"time"

	"golang.org/x/sys/unix"
)

func monotonicMicros() uint64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return fallbackMicros()
	}
	return uint64(ts.Nano() / int64(time.Microsecond))
}
