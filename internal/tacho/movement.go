package tacho

// MotionReport is produced by every Observe call.
type MotionReport struct {
	FilteredActivity float64 `json:"filtered_activity"`
	MotionDetected   bool    `json:"motion_detected"`
}

// MovementDetector is a moving average over the last N binary readings.
// The running sum is kept incrementally so Observe is O(1).
type MovementDetector struct {
	buf []uint8
	sum int
	idx int
}

// NewMovementDetector allocates a window of n readings (n >= 1).
func NewMovementDetector(n int) *MovementDetector {
	if n < 1 {
		n = 1
	}
	return &MovementDetector{buf: make([]uint8, n)}
}

// Observe evicts the oldest reading, stores level and reports the activity.
func (m *MovementDetector) Observe(level bool) MotionReport {
	var v uint8
	if level {
		v = 1
	}
	m.sum -= int(m.buf[m.idx])
	m.sum += int(v)
	m.buf[m.idx] = v
	m.idx = (m.idx + 1) % len(m.buf)
	return m.Report()
}

// Report returns the activity without observing a new reading.
func (m *MovementDetector) Report() MotionReport {
	activity := float64(m.sum) / float64(len(m.buf))
	return MotionReport{
		FilteredActivity: activity,
		MotionDetected:   activity > MotionThreshold,
	}
}

// Size returns the window length.
func (m *MovementDetector) Size() int { return len(m.buf) }
