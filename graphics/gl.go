package graphics

// ShaderKind selects the pipeline stage of a shader object.
type ShaderKind int

const (
	VertexShader ShaderKind = iota
	FragmentShader
)

func (k ShaderKind) String() string {
	switch k {
	case VertexShader:
		return "vertex"
	case FragmentShader:
		return "fragment"
	}
	return "unknown"
}

// GL is the subset of the OpenGL API the renderer uses. Handles are the raw
// GL object names. A uniform location of -1 means the uniform is not active
// in the linked program.
type GL interface {
	CreateShader(kind ShaderKind) uint32
	ShaderSource(shader uint32, source string)
	CompileShader(shader uint32)
	ShaderCompiled(shader uint32) bool
	ShaderInfoLog(shader uint32) string
	DeleteShader(shader uint32)

	CreateProgram() uint32
	AttachShader(program, shader uint32)
	DetachShader(program, shader uint32)
	BindAttribLocation(program, index uint32, name string)
	LinkProgram(program uint32)
	ProgramLinked(program uint32) bool
	ProgramInfoLog(program uint32) string
	UseProgram(program uint32)
	DeleteProgram(program uint32)

	GetUniformLocation(program uint32, name string) int32
	Uniform1f(location int32, v0 float32)
	Uniform3f(location int32, v0, v1, v2 float32)
	Uniform4f(location int32, v0, v1, v2, v3 float32)
	UniformMatrix4fv(location int32, m *[16]float32)

	// CreateQuad allocates a vertex array with a single vec2 attribute at location 0.
	CreateQuad() (vao, vbo uint32)
	// UpdateQuad replaces the vertex data of a quad created by CreateQuad.
	UpdateQuad(vao, vbo uint32, vertices []float32)
	DrawQuad(vao uint32, count int32)
	DeleteQuad(vao, vbo uint32)

	ClearColor(r, g, b, a float32)
	// Clear clears the color and depth buffers.
	Clear()
	Viewport(x, y, width, height int32)
	// ReadPixels reads RGBA bytes of the current read buffer into dst.
	ReadPixels(x, y, width, height int32, dst []byte)
}
