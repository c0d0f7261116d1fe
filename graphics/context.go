package graphics

// Context defines the render surface a renderer draws into. Implementations
// own the graphics context and pump host events.
type Context interface {
	MakeCurrent()
	Shutdown()
	ShouldClose() bool
	// EndFrame presents the back buffer and processes pending host events.
	EndFrame()
	GetFramebufferSize() (int, int)
	// SetHandler registers the receiver of resize and pointer events.
	SetHandler(h Handler)
}

// Handler receives host surface events. Calls arrive on the thread that owns
// the graphics context.
type Handler interface {
	OnResize(width, height int)
	PointerMoved(x, y float64)
}
