package inputs

import "time"

// Uniforms holds the standard values pushed to the fragment program every frame.
type Uniforms struct {
	Resolution [3]float32
	Time       float32
	Date       [4]float32
	Mouse      [4]float32
}

// Collect builds the uniform values for one frame on a surface of width x height.
func Collect(clock Clock, pointer *Pointer, width, height int, now time.Time) *Uniforms {
	return &Uniforms{
		Resolution: [3]float32{float32(width), float32(height), 0},
		Time:       float32(clock.Elapsed(now)),
		Date:       clock.Date(now),
		Mouse:      pointer.Mouse(height),
	}
}
