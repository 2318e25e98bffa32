package sensors

import "time"

var processStart = time.Now()

func fallbackMicros() uint64 {
	return uint64(time.Since(processStart) / time.Microsecond)
}
