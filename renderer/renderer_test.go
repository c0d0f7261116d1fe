package renderer

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinsley/glowsaver/graphics"
	"github.com/richinsley/glowsaver/graphics/gltest"
	"github.com/richinsley/glowsaver/shader"
)

const mouseShader = `
void mainImage(out vec4 fragColor, in vec2 fragCoord)
{
    vec2 d = fragCoord - iMouse.xy;
    fragColor = vec4(vec3(length(d) / iResolution.y), 1.0);
}
`

const timeShader = `
void mainImage(out vec4 fragColor, in vec2 fragCoord)
{
    fragColor = vec4(0.5 + 0.5 * sin(iTime + iDate.w), 0.0, 0.0, 1.0);
}
`

func newTestRenderer(t *testing.T, w, h int) (*Renderer, *gltest.GL, *gltest.Context) {
	t.Helper()
	g := gltest.NewGL()
	ctx := gltest.NewContext(w, h)
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	r, err := NewRenderer(g, ctx, Options{Start: start})
	require.NoError(t, err)
	return r, g, ctx
}

func TestNewRendererSizesSurface(t *testing.T) {
	r, g, ctx := newTestRenderer(t, 640, 480)

	assert.True(t, ctx.Current)
	assert.Same(t, r, ctx.Handler)
	w, h := r.Size()
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)
	assert.Equal(t, [4]int32{0, 0, 640, 480}, g.ViewportRect)
	assert.Equal(t, []float32{0, 0, 640, 0, 640, 480, 0, 0, 640, 480, 0, 480}, g.QuadVertices)
}

func TestOnResize(t *testing.T) {
	r, g, ctx := newTestRenderer(t, 640, 480)

	ctx.Resize(1920, 1080)
	assert.Equal(t, [4]int32{0, 0, 1920, 1080}, g.ViewportRect)
	assert.Equal(t, float32(1920), g.QuadVertices[4])
	assert.Equal(t, float32(1080), g.QuadVertices[5])

	// Ortho maps the top-right corner to clip (1,1).
	corner := r.projection.Mul4x1([4]float32{1920, 1080, 0, 1})
	assert.InDelta(t, 1.0, corner[0], 1e-6)
	assert.InDelta(t, 1.0, corner[1], 1e-6)
	origin := r.projection.Mul4x1([4]float32{0, 0, 0, 1})
	assert.InDelta(t, -1.0, origin[0], 1e-6)
	assert.InDelta(t, -1.0, origin[1], 1e-6)

	r.OnResize(0, 0)
	w, h := r.Size()
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)
}

func TestOnTickPushesUniforms(t *testing.T) {
	r, g, ctx := newTestRenderer(t, 800, 600)
	require.Nil(t, r.LoadFragment(mouseShader))

	r.PointerMoved(100, 150)
	r.OnTick(time.Now())

	res, ok := g.Uniform(shader.UniformResolution)
	require.True(t, ok)
	assert.Equal(t, []float32{800, 600, 0}, res)

	mouse, ok := g.Uniform(shader.UniformMouse)
	require.True(t, ok)
	assert.Equal(t, []float32{100, 450, 100, 450}, mouse)

	proj, ok := g.Uniform(shader.UniformProjection)
	require.True(t, ok)
	assert.Len(t, proj, 16)
	mv, ok := g.Uniform(shader.UniformModelView)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}, mv)

	assert.Equal(t, 1, g.Draws)
	assert.Equal(t, 1, ctx.Frames)
}

func TestMouseFlipTracksHeight(t *testing.T) {
	r, g, ctx := newTestRenderer(t, 800, 600)
	require.Nil(t, r.LoadFragment(mouseShader))
	r.PointerMoved(10, 20)

	ctx.Resize(800, 1000)
	r.OnTick(time.Now())

	mouse, _ := g.Uniform(shader.UniformMouse)
	assert.Equal(t, []float32{10, 980, 10, 980}, mouse)
}

func TestOnTickSkipsUnusedUniforms(t *testing.T) {
	r, g, _ := newTestRenderer(t, 800, 600)
	require.Nil(t, r.LoadFragment(timeShader))

	now := time.Date(2024, 5, 1, 10, 0, 4, 0, time.UTC)
	assert.NotPanics(t, func() { r.OnTick(now) })

	_, ok := g.Uniform(shader.UniformMouse)
	assert.False(t, ok)
	_, ok = g.Uniform(shader.UniformResolution)
	assert.False(t, ok)

	tm, ok := g.Uniform(shader.UniformTime)
	require.True(t, ok)
	assert.InDelta(t, 4.0, tm[0], 1e-6)

	date, ok := g.Uniform(shader.UniformDate)
	require.True(t, ok)
	assert.Equal(t, []float32{2024, 5, 1, 36004}, date)
}

func TestTimeNotResetByReload(t *testing.T) {
	r, g, _ := newTestRenderer(t, 800, 600)
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.Nil(t, r.LoadFragment(timeShader))
	r.OnTick(start.Add(10 * time.Second))
	require.Nil(t, r.LoadFragment(timeShader))
	r.OnTick(start.Add(11 * time.Second))

	tm, _ := g.Uniform(shader.UniformTime)
	assert.InDelta(t, 11.0, tm[0], 1e-6)
}

func TestBrokenShaderDegradesToClear(t *testing.T) {
	r, g, ctx := newTestRenderer(t, 320, 200)

	d := r.LoadFragment("void main() {}")
	require.NotNil(t, d)
	assert.NotPanics(t, func() { r.OnTick(time.Now()) })
	assert.Equal(t, 0, g.Draws)
	assert.Equal(t, 1, g.Calls["Clear"])
	assert.Equal(t, 1, ctx.Frames)
}

func TestLoadFragmentTwiceLeavesOneHandle(t *testing.T) {
	r, g, _ := newTestRenderer(t, 320, 200)
	require.Nil(t, r.LoadFragment(timeShader))
	require.Nil(t, r.LoadFragment(mouseShader))

	assert.Len(t, g.Attached(r.Program().Handle(), graphics.FragmentShader), 1)
	assert.Equal(t, 1, g.LiveShaders(graphics.FragmentShader))
}

func TestShutdownReleasesEverything(t *testing.T) {
	r, g, ctx := newTestRenderer(t, 320, 200)
	require.Nil(t, r.LoadFragment(timeShader))

	r.Shutdown()
	assert.Equal(t, 0, g.LivePrograms())
	assert.Equal(t, 0, g.LiveShaders(graphics.FragmentShader))
	assert.Equal(t, 0, g.LiveShaders(graphics.VertexShader))
	assert.Equal(t, 0, g.LiveQuads())
	assert.False(t, ctx.Closed)
}

func TestRunAppliesReloads(t *testing.T) {
	r, g, ctx := newTestRenderer(t, 320, 200)
	ctx.CloseAfter = 3

	reload := make(chan string, 2)
	reload <- timeShader
	ctx.OnEndFrame = func(frame int) {
		if frame == 1 {
			reload <- mouseShader
			close(reload)
		}
	}
	r.Run(reload)

	assert.Equal(t, 3, ctx.Frames)
	assert.Equal(t, 3, g.Draws)
	assert.Contains(t, g.Source(r.Program().FragmentHandle()), "iMouse.xy")
}

func TestFrameStats(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewFrameStats(start)

	for i := 1; i <= 59; i++ {
		fps, rolled := s.Tick(start.Add(time.Duration(i) * 16 * time.Millisecond))
		assert.False(t, rolled)
		assert.Equal(t, 0, fps)
	}
	assert.Equal(t, 59, s.Count)

	fps, rolled := s.Tick(start.Add(time.Second))
	assert.True(t, rolled)
	assert.Equal(t, 59, fps)
	assert.Equal(t, 0, s.Count)
	assert.Equal(t, start.Add(time.Second), s.WindowStart)
	assert.Equal(t, 59, s.FPS())

	_, rolled = s.Tick(start.Add(1500 * time.Millisecond))
	assert.False(t, rolled)
	assert.Equal(t, 1, s.Count)
}

func TestRunOffscreen(t *testing.T) {
	r, g, ctx := newTestRenderer(t, 4, 2)
	require.Nil(t, r.LoadFragment(timeShader))
	g.Pixels = 0x7f

	var buf bytes.Buffer
	var gotW, gotH, gotFPS int
	enc := func(w, h, fps int, frames io.Reader) error {
		gotW, gotH, gotFPS = w, h, fps
		_, err := io.Copy(&buf, frames)
		return err
	}

	err := r.RunOffscreen(RecordOptions{Duration: 0.5, FPS: 10, Encoder: enc})
	require.NoError(t, err)
	assert.Equal(t, 4, gotW)
	assert.Equal(t, 2, gotH)
	assert.Equal(t, 10, gotFPS)
	assert.Equal(t, 5*4*2*4, buf.Len())
	assert.Equal(t, byte(0x7f), buf.Bytes()[0])
	assert.Equal(t, 5, ctx.Frames)

	// Recording time starts at zero: last frame is at 0.4s.
	tm, _ := g.Uniform(shader.UniformTime)
	assert.InDelta(t, 0.4, tm[0], 1e-6)
}

func TestRunOffscreenEncoderFailure(t *testing.T) {
	r, _, _ := newTestRenderer(t, 4, 2)
	require.Nil(t, r.LoadFragment(timeShader))

	boom := errors.New("ffmpeg not found")
	err := r.RunOffscreen(RecordOptions{Duration: 1, FPS: 30, Encoder: func(int, int, int, io.Reader) error {
		return boom
	}})
	assert.ErrorIs(t, err, boom)
}

func TestRunOffscreenValidates(t *testing.T) {
	r, _, _ := newTestRenderer(t, 4, 2)
	assert.Error(t, r.RunOffscreen(RecordOptions{Duration: 1, FPS: 0, Encoder: FFmpegEncoder("out.mp4", "")}))
	assert.Error(t, r.RunOffscreen(RecordOptions{Duration: 1, FPS: 30}))
}
