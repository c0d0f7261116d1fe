package gltest

import "github.com/richinsley/glowsaver/graphics"

// Context is a fake graphics.Context with a fixed framebuffer size.
type Context struct {
	Width, Height int
	Handler       graphics.Handler
	Frames        int
	Current       bool
	Closed        bool
	// CloseAfter makes ShouldClose report true once Frames reaches it.
	CloseAfter int
	// OnEndFrame runs after each presented frame, standing in for host events.
	OnEndFrame func(frame int)
}

// NewContext returns a fake surface of width x height.
func NewContext(width, height int) *Context {
	return &Context{Width: width, Height: height}
}

func (c *Context) MakeCurrent() { c.Current = true }

func (c *Context) Shutdown() { c.Closed = true }

func (c *Context) ShouldClose() bool {
	return c.Closed || (c.CloseAfter > 0 && c.Frames >= c.CloseAfter)
}

func (c *Context) EndFrame() {
	c.Frames++
	if c.OnEndFrame != nil {
		c.OnEndFrame(c.Frames)
	}
}

func (c *Context) GetFramebufferSize() (int, int) { return c.Width, c.Height }

func (c *Context) SetHandler(h graphics.Handler) { c.Handler = h }

// Resize changes the framebuffer size and notifies the handler.
func (c *Context) Resize(width, height int) {
	c.Width, c.Height = width, height
	if c.Handler != nil {
		c.Handler.OnResize(width, height)
	}
}

var _ graphics.Context = (*Context)(nil)
