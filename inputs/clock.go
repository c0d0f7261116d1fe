package inputs

import "time"

// processStart is captured as early as Go code runs and stands in for the
// process start time.
var processStart = time.Now()

// ProcessStart returns the instant the process started rendering-related work.
// Elapsed shader time is measured from here, so switching shaders never
// resets iTime.
func ProcessStart() time.Time {
	return processStart
}

// Clock produces the time-dependent uniform values. It is immutable after creation.
type Clock struct {
	start time.Time
}

// NewClock returns a clock that counts from start.
func NewClock(start time.Time) Clock {
	return Clock{start: start}
}

// Start returns the instant the clock counts from.
func (c Clock) Start() time.Time {
	return c.start
}

// Elapsed returns the seconds between the clock start and now.
func (c Clock) Elapsed(now time.Time) float64 {
	return now.Sub(c.start).Seconds()
}

// Date returns the iDate value for now: year, month, day and seconds into the day.
func (c Clock) Date(now time.Time) [4]float32 {
	year, month, day := now.Date()
	midnight := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	return [4]float32{
		float32(year),
		float32(month),
		float32(day),
		float32(now.Sub(midnight).Seconds()),
	}
}
