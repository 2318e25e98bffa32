//go:build !linux

package sensors

func monotonicMicros() uint64 {
	return fallbackMicros()
}
