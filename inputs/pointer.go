package inputs

// Pointer holds the last known pointer position in host coordinates
// (origin top-left, y increasing downward).
type Pointer struct {
	x, y float64
}

// Move records a new pointer position in host coordinates.
func (p *Pointer) Move(x, y float64) {
	p.x = x
	p.y = y
}

// Position returns the last recorded host coordinates.
func (p *Pointer) Position() (float64, float64) {
	return p.x, p.y
}

// Mouse returns the iMouse value for a surface of the given height. The y axis
// is flipped to shader space (origin bottom-left) and the position is repeated
// in zw since no separate drag start is tracked.
func (p *Pointer) Mouse(height int) [4]float32 {
	x := float32(p.x)
	y := float32(float64(height) - p.y)
	return [4]float32{x, y, x, y}
}
