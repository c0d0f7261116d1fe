package renderer

import "time"

// FrameStats counts frames over one-second windows.
type FrameStats struct {
	Count       int
	WindowStart time.Time
	fps         int
}

// NewFrameStats starts the first window at now.
func NewFrameStats(now time.Time) FrameStats {
	return FrameStats{WindowStart: now}
}

// Tick records a frame at now. When a second or more has passed since the
// window started, the count is reset and the finished window's count is
// returned with rolled set.
func (s *FrameStats) Tick(now time.Time) (fps int, rolled bool) {
	if now.Sub(s.WindowStart) >= time.Second {
		s.fps = s.Count
		s.Count = 0
		s.WindowStart = now
		return s.fps, true
	}
	s.Count++
	return s.fps, false
}

// FPS returns the count of the last completed window.
func (s *FrameStats) FPS() int {
	return s.fps
}
