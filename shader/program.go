package shader

import (
	"fmt"
	"log"

	"github.com/richinsley/glowsaver/graphics"
)

// Translator converts a wrapped WebGL fragment source into desktop GLSL.
// The returned map resolves declared uniform names to the names used in the
// translated code. Names missing from the map are looked up unchanged.
type Translator interface {
	Translate(source string) (code string, uniforms map[string]string, err error)
}

// Program owns one linked GPU program: a fixed vertex stage compiled once and
// at most one attached fragment stage, replaced on every Load.
type Program struct {
	gl         graphics.GL
	dialect    Dialect
	translator Translator

	program  uint32
	vertex   uint32
	fragment uint32
	linked   bool

	names     map[string]string
	locations map[string]int32
}

// NewProgram compiles the vertex stage and creates the program object.
// With a non-nil translator, fragment bodies are wrapped in the WebGL dialect.
func NewProgram(g graphics.GL, t Translator) (*Program, error) {
	p := &Program{
		gl:         g,
		translator: t,
		locations:  make(map[string]int32),
	}
	if t != nil {
		p.dialect = WebGL
	}

	vs := g.CreateShader(graphics.VertexShader)
	g.ShaderSource(vs, GenerateVertexShader(p.dialect))
	g.CompileShader(vs)
	if !g.ShaderCompiled(vs) {
		logText := g.ShaderInfoLog(vs)
		g.DeleteShader(vs)
		return nil, fmt.Errorf("failed to compile vertex shader: %v", logText)
	}

	p.vertex = vs
	p.program = g.CreateProgram()
	g.AttachShader(p.program, p.vertex)
	g.BindAttribLocation(p.program, 0, AttribVertex)
	return p, nil
}

// Load wraps body, compiles it as the new fragment stage and relinks the
// program. Problems are logged and returned as a Diagnostic, never as an
// error. A body that fails to translate or compile leaves the previous
// fragment stage attached and linked.
func (p *Program) Load(body string) *Diagnostic {
	source := GetFragmentShader(p.dialect, body)
	var names map[string]string
	if p.translator != nil {
		code, uniforms, err := p.translator.Translate(source)
		if err != nil {
			return report(&Diagnostic{Stage: "translate", Log: err.Error(), Fatal: true})
		}
		source, names = code, uniforms
	}

	fs := p.gl.CreateShader(graphics.FragmentShader)
	p.gl.ShaderSource(fs, source)
	p.gl.CompileShader(fs)
	infoLog := p.gl.ShaderInfoLog(fs)
	if !p.gl.ShaderCompiled(fs) {
		p.gl.DeleteShader(fs)
		return report(&Diagnostic{Stage: "compile", Log: infoLog, Fatal: true})
	}
	var warning *Diagnostic
	if meaningfulLog(infoLog) {
		warning = report(&Diagnostic{Stage: "compile", Log: infoLog})
	}

	if p.fragment != 0 {
		p.gl.DetachShader(p.program, p.fragment)
		p.gl.DeleteShader(p.fragment)
		p.fragment = 0
	}
	p.gl.AttachShader(p.program, fs)
	p.fragment = fs

	p.gl.LinkProgram(p.program)
	p.names = names
	p.locations = make(map[string]int32)
	if !p.gl.ProgramLinked(p.program) {
		p.linked = false
		return report(&Diagnostic{Stage: "link", Log: p.gl.ProgramInfoLog(p.program), Fatal: true})
	}
	p.linked = true
	p.gl.UseProgram(p.program)
	return warning
}

func report(d *Diagnostic) *Diagnostic {
	if d.Fatal {
		log.Printf("Warning: fragment shader %s", d)
	} else {
		log.Printf("Fragment shader %s", d)
	}
	return d
}

// Linked reports whether the program currently holds a usable executable.
func (p *Program) Linked() bool {
	return p.linked
}

// Use makes the program current.
func (p *Program) Use() {
	p.gl.UseProgram(p.program)
}

// Handle returns the GL program name.
func (p *Program) Handle() uint32 {
	return p.program
}

// FragmentHandle returns the attached fragment shader name, or 0.
func (p *Program) FragmentHandle() uint32 {
	return p.fragment
}

// UniformLocation returns the location of a declared uniform in the linked
// program, or -1 when the program does not use it.
func (p *Program) UniformLocation(name string) int32 {
	if !p.linked {
		return -1
	}
	if loc, ok := p.locations[name]; ok {
		return loc
	}
	mapped := name
	if m, ok := p.names[name]; ok {
		mapped = m
	}
	loc := p.gl.GetUniformLocation(p.program, mapped)
	p.locations[name] = loc
	return loc
}

// Destroy releases the program and its shader objects.
func (p *Program) Destroy() {
	if p.fragment != 0 {
		p.gl.DetachShader(p.program, p.fragment)
		p.gl.DeleteShader(p.fragment)
		p.fragment = 0
	}
	if p.vertex != 0 {
		p.gl.DetachShader(p.program, p.vertex)
		p.gl.DeleteShader(p.vertex)
		p.vertex = 0
	}
	if p.program != 0 {
		p.gl.DeleteProgram(p.program)
		p.program = 0
	}
	p.linked = false
}
