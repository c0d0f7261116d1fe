package shader

// Dialect selects the GLSL flavour the fragment body is wrapped in.
type Dialect int

const (
	// Desktop wraps the body in GLSL 1.50 and compiles it directly.
	Desktop Dialect = iota
	// WebGL wraps the body in GLSL ES 3.00 and expects a translator to turn it
	// into desktop GLSL before compilation.
	WebGL
)

// Names of the standard uniforms every wrapped fragment program declares.
const (
	UniformTime       = "iTime"
	UniformResolution = "iResolution"
	UniformMouse      = "iMouse"
	UniformDate       = "iDate"
)

// Names of the vertex stage inputs.
const (
	AttribVertex      = "in_vert"
	UniformProjection = "uProjection"
	UniformModelView  = "uModelView"
)

// ────────────────────────────────── Vertex stage ──────────────────────────────────

const vertexShaderSource150 = `#version 150
in vec2 in_vert;
uniform mat4 uProjection;
uniform mat4 uModelView;
void main(void)
{
    gl_Position = uProjection * uModelView * vec4(in_vert, 0.0, 1.0);
}
`

const vertexShaderSource410 = `#version 410 core
in vec2 in_vert;
uniform mat4 uProjection;
uniform mat4 uModelView;
void main(void)
{
    gl_Position = uProjection * uModelView * vec4(in_vert, 0.0, 1.0);
}
`

// ────────────────────────────────── Fragment glue ──────────────────────────────────

const preamble150 = `#version 150
out vec4 out_frag_color;
uniform vec4 iDate;
uniform vec4 iMouse;
uniform float iTime;
uniform vec3 iResolution;
`

const preambleES = `#version 300 es
precision highp float;
precision highp int;
out vec4 out_frag_color;
uniform vec4 iDate;
uniform vec4 iMouse;
uniform float iTime;
uniform vec3 iResolution;
`

const epilogue = `
void main(void)
{
    vec4 fragColor;
    mainImage(fragColor, gl_FragCoord.xy);
    out_frag_color = fragColor;
}
`

// GenerateVertexShader returns the fixed vertex stage matching the dialect's
// compiled fragment version.
func GenerateVertexShader(d Dialect) string {
	if d == WebGL {
		return vertexShaderSource410
	}
	return vertexShaderSource150
}

// GeneratePreamble returns the declarations placed before the user body.
func GeneratePreamble(d Dialect) string {
	if d == WebGL {
		return preambleES
	}
	return preamble150
}

// GetMain returns the entry point that calls the user's mainImage.
func GetMain() string {
	return epilogue
}

// GetFragmentShader wraps a raw fragment body with the preamble and main.
func GetFragmentShader(d Dialect, body string) string {
	return GeneratePreamble(d) + body + "\n" + GetMain()
}
