// Package gltest provides in-memory stand-ins for the graphics interfaces.
// The fake GL keeps handle bookkeeping so tests can assert that shader and
// program objects are neither leaked nor double-released.
package gltest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/richinsley/glowsaver/graphics"
)

var (
	mainImageRe = regexp.MustCompile(`void\s+mainImage\s*\(`)
	uniformRe   = regexp.MustCompile(`uniform\s+\w+\s+(\w+)\s*;`)
)

type shaderObject struct {
	kind     graphics.ShaderKind
	source   string
	compiled bool
	log      string
}

type programObject struct {
	attached []uint32
	linked   bool
	log      string
	active   map[string]int32
}

// GL is a fake graphics.GL. Fragment shaders fail to compile when they
// define no mainImage entry point or contain an #error directive. A declared
// uniform is active after linking only if its name is referenced again in
// the source, mirroring dead-uniform elimination of real drivers.
type GL struct {
	nextID   uint32
	shaders  map[uint32]*shaderObject
	programs map[uint32]*programObject
	quads    map[uint32]uint32

	// locations maps active uniform locations to names across all programs.
	locations map[int32]string
	nextLoc   int32

	// Uniforms records the last value uploaded per uniform name.
	Uniforms map[string][]float32
	// Calls counts calls per method name.
	Calls map[string]int

	CurrentProgram uint32
	ViewportRect   [4]int32
	QuadVertices   []float32
	Draws          int
	// Pixels fills ReadPixels output.
	Pixels byte
	// CompileWarning is returned as the info log of successful compiles.
	CompileWarning string
}

// NewGL returns an empty fake.
func NewGL() *GL {
	return &GL{
		shaders:   make(map[uint32]*shaderObject),
		programs:  make(map[uint32]*programObject),
		quads:     make(map[uint32]uint32),
		locations: make(map[int32]string),
		Uniforms:  make(map[string][]float32),
		Calls:     make(map[string]int),
	}
}

func (f *GL) id() uint32 {
	f.nextID++
	return f.nextID
}

func (f *GL) call(name string) {
	f.Calls[name]++
}

// LiveShaders returns the number of shader objects not yet deleted, by kind.
func (f *GL) LiveShaders(kind graphics.ShaderKind) int {
	n := 0
	for _, s := range f.shaders {
		if s.kind == kind {
			n++
		}
	}
	return n
}

// LivePrograms returns the number of program objects not yet deleted.
func (f *GL) LivePrograms() int {
	return len(f.programs)
}

// LiveQuads returns the number of vertex arrays not yet deleted.
func (f *GL) LiveQuads() int {
	return len(f.quads)
}

// Attached returns the shader handles attached to program, by kind.
func (f *GL) Attached(program uint32, kind graphics.ShaderKind) []uint32 {
	p, ok := f.programs[program]
	if !ok {
		return nil
	}
	var out []uint32
	for _, h := range p.attached {
		if s, ok := f.shaders[h]; ok && s.kind == kind {
			out = append(out, h)
		}
	}
	return out
}

// Source returns the source text of a live shader.
func (f *GL) Source(shader uint32) string {
	if s, ok := f.shaders[shader]; ok {
		return s.source
	}
	return ""
}

// Uniform returns the last value uploaded for name.
func (f *GL) Uniform(name string) ([]float32, bool) {
	v, ok := f.Uniforms[name]
	return v, ok
}

func (f *GL) CreateShader(kind graphics.ShaderKind) uint32 {
	f.call("CreateShader")
	h := f.id()
	f.shaders[h] = &shaderObject{kind: kind}
	return h
}

func (f *GL) ShaderSource(shader uint32, source string) {
	f.call("ShaderSource")
	if s, ok := f.shaders[shader]; ok {
		s.source = source
	}
}

func (f *GL) CompileShader(shader uint32) {
	f.call("CompileShader")
	s, ok := f.shaders[shader]
	if !ok {
		return
	}
	s.compiled, s.log = true, f.CompileWarning
	if s.kind != graphics.FragmentShader {
		return
	}
	switch {
	case strings.Contains(s.source, "#error"):
		s.compiled, s.log = false, "ERROR: 0:1: '#error' : user error"
	case !mainImageRe.MatchString(s.source):
		s.compiled, s.log = false, "ERROR: 0:12: 'mainImage' : no matching overloaded function found"
	}
}

func (f *GL) ShaderCompiled(shader uint32) bool {
	s, ok := f.shaders[shader]
	return ok && s.compiled
}

func (f *GL) ShaderInfoLog(shader uint32) string {
	if s, ok := f.shaders[shader]; ok {
		return s.log
	}
	return ""
}

func (f *GL) DeleteShader(shader uint32) {
	f.call("DeleteShader")
	if _, ok := f.shaders[shader]; !ok {
		panic(fmt.Sprintf("gltest: DeleteShader(%d) on unknown handle", shader))
	}
	for _, p := range f.programs {
		for _, h := range p.attached {
			if h == shader {
				panic(fmt.Sprintf("gltest: DeleteShader(%d) while still attached", shader))
			}
		}
	}
	delete(f.shaders, shader)
}

func (f *GL) CreateProgram() uint32 {
	f.call("CreateProgram")
	h := f.id()
	f.programs[h] = &programObject{}
	return h
}

func (f *GL) AttachShader(program, shader uint32) {
	f.call("AttachShader")
	p, ok := f.programs[program]
	if !ok {
		return
	}
	for _, h := range p.attached {
		if h == shader {
			panic(fmt.Sprintf("gltest: shader %d already attached", shader))
		}
	}
	p.attached = append(p.attached, shader)
}

func (f *GL) DetachShader(program, shader uint32) {
	f.call("DetachShader")
	p, ok := f.programs[program]
	if !ok {
		return
	}
	for i, h := range p.attached {
		if h == shader {
			p.attached = append(p.attached[:i], p.attached[i+1:]...)
			return
		}
	}
	panic(fmt.Sprintf("gltest: DetachShader(%d) not attached", shader))
}

func (f *GL) BindAttribLocation(program, index uint32, name string) {
	f.call("BindAttribLocation")
}

func (f *GL) LinkProgram(program uint32) {
	f.call("LinkProgram")
	p, ok := f.programs[program]
	if !ok {
		return
	}
	p.linked, p.log = true, ""
	p.active = make(map[string]int32)
	var hasVertex, hasFragment bool
	for _, h := range p.attached {
		s := f.shaders[h]
		if !s.compiled {
			p.linked, p.log = false, fmt.Sprintf("ERROR: shader %d not compiled", h)
		}
		switch s.kind {
		case graphics.VertexShader:
			hasVertex = true
		case graphics.FragmentShader:
			hasFragment = true
		}
		for _, m := range uniformRe.FindAllStringSubmatch(s.source, -1) {
			name := m[1]
			if strings.Count(s.source, name) < 2 {
				continue
			}
			f.nextLoc++
			p.active[name] = f.nextLoc
			f.locations[f.nextLoc] = name
		}
	}
	if !hasVertex || !hasFragment {
		p.linked, p.log = false, "ERROR: missing shader stage"
	}
	if !p.linked {
		p.active = map[string]int32{}
	}
}

func (f *GL) ProgramLinked(program uint32) bool {
	p, ok := f.programs[program]
	return ok && p.linked
}

func (f *GL) ProgramInfoLog(program uint32) string {
	if p, ok := f.programs[program]; ok {
		return p.log
	}
	return ""
}

func (f *GL) UseProgram(program uint32) {
	f.call("UseProgram")
	f.CurrentProgram = program
}

func (f *GL) DeleteProgram(program uint32) {
	f.call("DeleteProgram")
	delete(f.programs, program)
}

func (f *GL) GetUniformLocation(program uint32, name string) int32 {
	f.call("GetUniformLocation")
	p, ok := f.programs[program]
	if !ok {
		return -1
	}
	if loc, ok := p.active[name]; ok {
		return loc
	}
	return -1
}

func (f *GL) set(location int32, v ...float32) {
	if location == -1 {
		panic("gltest: uniform upload to location -1")
	}
	name, ok := f.locations[location]
	if !ok {
		panic(fmt.Sprintf("gltest: unknown uniform location %d", location))
	}
	f.Uniforms[name] = v
}

func (f *GL) Uniform1f(location int32, v0 float32) {
	f.call("Uniform1f")
	f.set(location, v0)
}

func (f *GL) Uniform3f(location int32, v0, v1, v2 float32) {
	f.call("Uniform3f")
	f.set(location, v0, v1, v2)
}

func (f *GL) Uniform4f(location int32, v0, v1, v2, v3 float32) {
	f.call("Uniform4f")
	f.set(location, v0, v1, v2, v3)
}

func (f *GL) UniformMatrix4fv(location int32, m *[16]float32) {
	f.call("UniformMatrix4fv")
	f.set(location, m[:]...)
}

func (f *GL) CreateQuad() (uint32, uint32) {
	f.call("CreateQuad")
	vao, vbo := f.id(), f.id()
	f.quads[vao] = vbo
	return vao, vbo
}

func (f *GL) UpdateQuad(vao, vbo uint32, vertices []float32) {
	f.call("UpdateQuad")
	f.QuadVertices = append([]float32(nil), vertices...)
}

func (f *GL) DrawQuad(vao uint32, count int32) {
	f.call("DrawQuad")
	f.Draws++
}

func (f *GL) DeleteQuad(vao, vbo uint32) {
	f.call("DeleteQuad")
	delete(f.quads, vao)
}

func (f *GL) ClearColor(r, g, b, a float32) {
	f.call("ClearColor")
}

func (f *GL) Clear() {
	f.call("Clear")
}

func (f *GL) Viewport(x, y, width, height int32) {
	f.call("Viewport")
	f.ViewportRect = [4]int32{x, y, width, height}
}

func (f *GL) ReadPixels(x, y, width, height int32, dst []byte) {
	f.call("ReadPixels")
	for i := range dst {
		dst[i] = f.Pixels
	}
}

var _ graphics.GL = (*GL)(nil)
