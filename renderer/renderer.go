package renderer

import (
	"fmt"
	"log"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/richinsley/glowsaver/graphics"
	"github.com/richinsley/glowsaver/inputs"
	"github.com/richinsley/glowsaver/shader"
)

// Options configures a Renderer.
type Options struct {
	// Start is the instant iTime counts from. Zero means process start.
	Start time.Time
	// Translator, when set, switches fragment bodies to the WebGL dialect.
	Translator shader.Translator
	// ShowFPS logs the frame rate once per second.
	ShowFPS bool
}

// Renderer draws one fragment program over the whole surface of a
// graphics.Context. All methods must be called on the thread that owns the
// context.
type Renderer struct {
	gl      graphics.GL
	context graphics.Context
	program *shader.Program

	clock   inputs.Clock
	pointer inputs.Pointer
	stats   FrameStats
	showFPS bool

	width      int
	height     int
	projection mgl32.Mat4
	modelView  mgl32.Mat4

	quadVAO uint32
	quadVBO uint32
}

// NewRenderer makes ctx current, compiles the fixed vertex stage, registers
// itself as the surface's event handler and sizes the viewport to the surface.
func NewRenderer(g graphics.GL, ctx graphics.Context, opts Options) (*Renderer, error) {
	start := opts.Start
	if start.IsZero() {
		start = inputs.ProcessStart()
	}
	r := &Renderer{
		gl:         g,
		context:    ctx,
		clock:      inputs.NewClock(start),
		stats:      NewFrameStats(time.Now()),
		showFPS:    opts.ShowFPS,
		projection: mgl32.Ident4(),
		modelView:  mgl32.Ident4(),
	}

	r.context.MakeCurrent()

	var err error
	r.program, err = shader.NewProgram(g, opts.Translator)
	if err != nil {
		return nil, fmt.Errorf("failed to create shader program: %w", err)
	}
	r.quadVAO, r.quadVBO = g.CreateQuad()
	g.ClearColor(0.0, 0.0, 0.0, 1.0)

	ctx.SetHandler(r)
	r.OnResize(ctx.GetFramebufferSize())
	return r, nil
}

// Shutdown releases the program, its shaders and the quad. The context
// itself belongs to the caller.
func (r *Renderer) Shutdown() {
	r.program.Destroy()
	r.gl.DeleteQuad(r.quadVAO, r.quadVBO)
}

// LoadFragment replaces the active fragment body. Compile problems are
// logged and returned; the previous program keeps rendering.
func (r *Renderer) LoadFragment(source string) *shader.Diagnostic {
	return r.program.Load(source)
}

// PointerMoved records a pointer position in host coordinates.
func (r *Renderer) PointerMoved(x, y float64) {
	r.pointer.Move(x, y)
}

// OnResize sets an orthographic projection over [0,width]x[0,height] with
// the origin bottom-left, a matching viewport and a quad covering it.
func (r *Renderer) OnResize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	r.width, r.height = width, height
	r.projection = mgl32.Ortho(0, float32(width), 0, float32(height), -1, 1)
	r.gl.Viewport(0, 0, int32(width), int32(height))
	r.gl.UpdateQuad(r.quadVAO, r.quadVBO, quadVertices(float32(width), float32(height)))
}

// Size returns the current surface size.
func (r *Renderer) Size() (int, int) {
	return r.width, r.height
}

// Program returns the active shader program.
func (r *Renderer) Program() *shader.Program {
	return r.program
}

// FPS returns the frame count of the last completed one-second window.
func (r *Renderer) FPS() int {
	return r.stats.FPS()
}

// OnTick renders and presents one frame for the instant now.
func (r *Renderer) OnTick(now time.Time) {
	r.draw(r.clock, now)
	r.present(now)
}

func (r *Renderer) draw(clock inputs.Clock, now time.Time) {
	r.gl.Clear()
	r.modelView = mgl32.Ident4()
	if !r.program.Linked() {
		return
	}
	r.program.Use()
	r.updateUniforms(inputs.Collect(clock, &r.pointer, r.width, r.height, now))
	r.gl.DrawQuad(r.quadVAO, 6)
}

func (r *Renderer) present(now time.Time) {
	r.context.EndFrame()
	if fps, rolled := r.stats.Tick(now); rolled && r.showFPS {
		log.Printf("FPS: %d", fps)
	}
}

func (r *Renderer) updateUniforms(u *inputs.Uniforms) {
	p := r.program
	if loc := p.UniformLocation(shader.UniformProjection); loc != -1 {
		m := [16]float32(r.projection)
		r.gl.UniformMatrix4fv(loc, &m)
	}
	if loc := p.UniformLocation(shader.UniformModelView); loc != -1 {
		m := [16]float32(r.modelView)
		r.gl.UniformMatrix4fv(loc, &m)
	}
	if loc := p.UniformLocation(shader.UniformResolution); loc != -1 {
		r.gl.Uniform3f(loc, u.Resolution[0], u.Resolution[1], u.Resolution[2])
	}
	if loc := p.UniformLocation(shader.UniformTime); loc != -1 {
		r.gl.Uniform1f(loc, u.Time)
	}
	if loc := p.UniformLocation(shader.UniformDate); loc != -1 {
		r.gl.Uniform4f(loc, u.Date[0], u.Date[1], u.Date[2], u.Date[3])
	}
	if loc := p.UniformLocation(shader.UniformMouse); loc != -1 {
		r.gl.Uniform4f(loc, u.Mouse[0], u.Mouse[1], u.Mouse[2], u.Mouse[3])
	}
}

// Run drives the render loop until the surface asks to close. Sources
// received on reload replace the fragment body between frames.
func (r *Renderer) Run(reload <-chan string) {
	for !r.context.ShouldClose() {
		reload = r.drainReloads(reload)
		r.OnTick(time.Now())
	}
}

func (r *Renderer) drainReloads(reload <-chan string) <-chan string {
	for reload != nil {
		select {
		case src, ok := <-reload:
			if !ok {
				return nil
			}
			r.LoadFragment(src)
		default:
			return reload
		}
	}
	return nil
}

// quadVertices returns two triangles covering (0,0)-(w,h).
func quadVertices(w, h float32) []float32 {
	return []float32{
		0, 0, w, 0, w, h,
		0, 0, w, h, 0, h,
	}
}
