package glfwcontext

import (
	"log"
	"runtime"

	glfw "github.com/go-gl/glfw/v3.3/glfw"
	"github.com/richinsley/glowsaver/graphics"
	"github.com/richinsley/glowsaver/options"
)

const windowTitle = "glowsaver"

// Context is a GLFW window implementing graphics.Context.
type Context struct {
	window  *glfw.Window
	handler graphics.Handler

	vsync         bool
	pointerButton string
	// screensaver closes the window on any key or left click.
	screensaver bool
}

// New creates a window sized and configured from opts. A fullscreen window
// covers the primary monitor and behaves as a screensaver. A window that is
// not visible is used for offscreen rendering.
func New(opts *options.Options, visible bool) (*Context, error) {
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)

	width, height := opts.Width, opts.Height
	var monitor *glfw.Monitor
	fullscreen := visible && opts.Fullscreen
	if fullscreen {
		monitor = glfw.GetPrimaryMonitor()
		mode := monitor.GetVideoMode()
		glfw.WindowHint(glfw.RedBits, mode.RedBits)
		glfw.WindowHint(glfw.GreenBits, mode.GreenBits)
		glfw.WindowHint(glfw.BlueBits, mode.BlueBits)
		glfw.WindowHint(glfw.RefreshRate, mode.RefreshRate)
		width, height = mode.Width, mode.Height
	}

	if visible {
		glfw.WindowHint(glfw.Resizable, glfw.True)
	} else {
		glfw.WindowHint(glfw.Visible, glfw.False)
	}

	win, err := glfw.CreateWindow(width, height, windowTitle, monitor, nil)
	if err != nil {
		return nil, err
	}

	c := &Context{
		window:        win,
		vsync:         opts.VSync,
		pointerButton: opts.PointerButton,
		screensaver:   fullscreen,
	}
	if fullscreen {
		win.SetInputMode(glfw.CursorMode, glfw.CursorHidden)
	}

	win.SetKeyCallback(c.glfwKeyCallback)
	win.SetMouseButtonCallback(c.glfwMouseButtonCallback)
	win.SetCursorPosCallback(c.glfwCursorPosCallback)
	win.SetFramebufferSizeCallback(c.glfwFramebufferSizeCallback)

	return c, nil
}

// SetHandler routes resize and pointer events to h.
func (c *Context) SetHandler(h graphics.Handler) {
	c.handler = h
}

func (c *Context) glfwKeyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action != glfw.Press {
		return
	}
	if key == glfw.KeyEscape || c.screensaver {
		w.SetShouldClose(true)
	}
}

func (c *Context) glfwMouseButtonCallback(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
	if c.screensaver && button == glfw.MouseButtonLeft && action == glfw.Press {
		w.SetShouldClose(true)
	}
}

// glfwCursorPosCallback forwards the cursor in framebuffer pixels while the
// configured button is held.
func (c *Context) glfwCursorPosCallback(w *glfw.Window, x, y float64) {
	if c.handler == nil || !c.buttonHeld() {
		return
	}
	fbWidth, fbHeight := w.GetFramebufferSize()
	winWidth, winHeight := w.GetSize()
	scaleX, scaleY := 1.0, 1.0
	if winWidth > 0 && winHeight > 0 {
		scaleX = float64(fbWidth) / float64(winWidth)
		scaleY = float64(fbHeight) / float64(winHeight)
	}
	c.handler.PointerMoved(x*scaleX, y*scaleY)
}

func (c *Context) buttonHeld() bool {
	pressed := func(b glfw.MouseButton) bool {
		return c.window.GetMouseButton(b) == glfw.Press
	}
	switch c.pointerButton {
	case options.ButtonNone:
		return true
	case options.ButtonLeft:
		return pressed(glfw.MouseButtonLeft)
	case options.ButtonAny:
		return pressed(glfw.MouseButtonLeft) || pressed(glfw.MouseButtonRight) || pressed(glfw.MouseButtonMiddle)
	default:
		return pressed(glfw.MouseButtonRight)
	}
}

func (c *Context) glfwFramebufferSizeCallback(w *glfw.Window, width, height int) {
	if c.handler != nil {
		c.handler.OnResize(width, height)
	}
}

// MakeCurrent makes the context current for the calling goroutine and
// applies the swap interval.
func (c *Context) MakeCurrent() {
	c.window.MakeContextCurrent()
	if c.vsync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}
}

// Shutdown destroys the window.
func (c *Context) Shutdown() {
	c.window.Destroy()
}

func (c *Context) ShouldClose() bool {
	return c.window.ShouldClose()
}

func (c *Context) EndFrame() {
	c.window.SwapBuffers()
	glfw.PollEvents()
}

func (c *Context) GetFramebufferSize() (int, int) {
	return c.window.GetFramebufferSize()
}

// InitGraphics initializes the main graphics subsystem (GLFW). Must be called from the main thread.
func InitGraphics() error {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return err
	}
	log.Printf("GLFW Initialized")
	return nil
}

// TerminateGraphics shuts down the graphics subsystem. Must be called from the main thread.
func TerminateGraphics() {
	glfw.Terminate()
	log.Printf("GLFW Terminated")
}

var _ graphics.Context = (*Context)(nil)
