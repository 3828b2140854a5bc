package util

import "time"

// Timer measures elapsed time for request and decision log fields.
type Timer struct {
	start time.Time
}

// StartTimer creates a timer starting now.
func StartTimer() Timer {
	return Timer{start: time.Now()}
}

// Elapsed returns the time since start; a zero Timer reports 0.
func (t Timer) Elapsed() time.Duration {
	if t.start.IsZero() {
		return 0
	}
	return time.Since(t.start)
}

// ElapsedMs returns Elapsed in whole milliseconds.
func (t Timer) ElapsedMs() int64 {
	return t.Elapsed().Milliseconds()
}

// ElapsedMicros returns Elapsed in microseconds, for sub-millisecond work.
func (t Timer) ElapsedMicros() int64 {
	return t.Elapsed().Microseconds()
}
