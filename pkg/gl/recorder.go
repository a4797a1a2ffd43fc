package gl

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/draw"
)

// ErrUnknownObject is returned when a Recorder is asked to operate on a
// texture, framebuffer or program it never created.
var ErrUnknownObject = errors.New("unknown GL object")

// Call is one recorded backend call.
type Call struct {
	Op   string
	Args []any
}

// DrawCall is a recorded Draw or DrawInstanced call, with the state in
// effect when it was issued.
type DrawCall struct {
	Prim        Primitive
	Vertices    int
	Instances   int
	Program     uint32
	Framebuffer uint32
	Textures    map[int]uint32
	Projection  mgl32.Mat4
	ModelView   mgl32.Mat4
	Data        VertexData
	Enabled     map[Capability]bool
}

type recordedTexture struct {
	desc TextureDesc
	data []byte
}

type recordedFramebuffer struct {
	colour        uint32
	width, height int
	clear         [4]float32
}

// Recorder is a Backend which records every call instead of drawing.
// It keeps enough state (textures, framebuffers, programs, bindings) to
// validate object lifetimes, so tests can check that nothing leaks and
// that draws happen exactly when expected.
type Recorder struct {
	caps Caps

	// FailPrograms makes NewProgram fail for the named programs. A key
	// starting with "*" matches every program name ending with the rest
	// of the key.
	FailPrograms map[string]error

	nextID       uint32
	textures     map[uint32]*recordedTexture
	framebuffers map[uint32]*recordedFramebuffer
	programs     map[uint32]string
	uniforms     map[uint32]map[string]any

	program     uint32
	framebuffer uint32
	bound       map[int]uint32
	enabled     map[Capability]bool
	projection  mgl32.Mat4
	modelView   mgl32.Mat4
	viewport    [4]int
	screenClear [4]float32

	calls []Call
	draws []DrawCall
}

// NewRecorder creates a recorder reporting caps.
func NewRecorder(caps Caps) *Recorder {
	if caps.MaxTextureSize == 0 {
		caps.MaxTextureSize = 4096
	}
	if caps.Max3DTextureSize == 0 {
		caps.Max3DTextureSize = 2048
	}
	if caps.Version == "" {
		caps.Version = "2.1 (recorder)"
	}
	return &Recorder{
		caps:         caps,
		FailPrograms: map[string]error{},
		textures:     map[uint32]*recordedTexture{},
		framebuffers: map[uint32]*recordedFramebuffer{},
		programs:     map[uint32]string{},
		uniforms:     map[uint32]map[string]any{},
		bound:        map[int]uint32{},
		enabled:      map[Capability]bool{},
		projection:   mgl32.Ident4(),
		modelView:    mgl32.Ident4(),
	}
}

func (r *Recorder) record(op string, args ...any) {
	r.calls = append(r.calls, Call{Op: op, Args: args})
}

func (r *Recorder) newID() uint32 {
	r.nextID++
	return r.nextID
}

// Caps implements Backend.
func (r *Recorder) Caps() Caps { return r.caps }

// NewTexture implements Backend.
func (r *Recorder) NewTexture(desc TextureDesc) (uint32, error) {
	id := r.newID()
	r.textures[id] = &recordedTexture{desc: desc}
	r.record("NewTexture", id, desc)
	return id, nil
}

// SetTextureData implements Backend.
func (r *Recorder) SetTextureData(id uint32, desc TextureDesc, data []byte) error {
	tex, ok := r.textures[id]
	if !ok {
		return fmt.Errorf("%w: texture %d", ErrUnknownObject, id)
	}
	if data != nil && len(data) != desc.NumBytes() {
		return fmt.Errorf("texture %d: %d bytes for %v (need %d)", id, len(data), desc.Shape, desc.NumBytes())
	}
	tex.desc = desc
	tex.data = data
	r.record("SetTextureData", id, desc, len(data))
	return nil
}

// DeleteTexture implements Backend.
func (r *Recorder) DeleteTexture(id uint32) {
	delete(r.textures, id)
	r.record("DeleteTexture", id)
}

// BindTexture implements Backend.
func (r *Recorder) BindTexture(unit int, target TextureTarget, id uint32) {
	if id == 0 {
		delete(r.bound, unit)
	} else {
		r.bound[unit] = id
	}
	r.record("BindTexture", unit, target, id)
}

// NewFramebuffer implements Backend.
func (r *Recorder) NewFramebuffer(colour uint32, width, height int) (uint32, error) {
	if _, ok := r.textures[colour]; !ok {
		return 0, fmt.Errorf("%w: texture %d", ErrUnknownObject, colour)
	}
	id := r.newID()
	r.framebuffers[id] = &recordedFramebuffer{colour: colour, width: width, height: height}
	r.record("NewFramebuffer", id, colour, width, height)
	return id, nil
}

// BindFramebuffer implements Backend.
func (r *Recorder) BindFramebuffer(id uint32) {
	r.framebuffer = id
	r.record("BindFramebuffer", id)
}

// DeleteFramebuffer implements Backend.
func (r *Recorder) DeleteFramebuffer(id uint32) {
	delete(r.framebuffers, id)
	if r.framebuffer == id {
		r.framebuffer = 0
	}
	r.record("DeleteFramebuffer", id)
}

// NewProgram implements Backend.
func (r *Recorder) NewProgram(name, vertex, fragment string) (uint32, error) {
	if err := r.programFailure(name); err != nil {
		return 0, fmt.Errorf("compiling %s: %w", name, err)
	}
	if vertex == "" || fragment == "" {
		return 0, fmt.Errorf("compiling %s: empty shader source", name)
	}
	id := r.newID()
	r.programs[id] = name
	r.uniforms[id] = map[string]any{}
	r.record("NewProgram", id, name)
	return id, nil
}

func (r *Recorder) programFailure(name string) error {
	if err, ok := r.FailPrograms[name]; ok {
		return err
	}
	for key, err := range r.FailPrograms {
		if suffix, ok := strings.CutPrefix(key, "*"); ok && strings.HasSuffix(name, suffix) {
			return err
		}
	}
	return nil
}

// UseProgram implements Backend.
func (r *Recorder) UseProgram(id uint32) {
	r.program = id
	r.record("UseProgram", id)
}

// DeleteProgram implements Backend.
func (r *Recorder) DeleteProgram(id uint32) {
	delete(r.programs, id)
	delete(r.uniforms, id)
	r.record("DeleteProgram", id)
}

// SetUniform implements Backend.
func (r *Recorder) SetUniform(program uint32, name string, value any) error {
	u, ok := r.uniforms[program]
	if !ok {
		return fmt.Errorf("%w: program %d", ErrUnknownObject, program)
	}
	u[name] = value
	r.record("SetUniform", program, name, value)
	return nil
}

// Viewport implements Backend.
func (r *Recorder) Viewport(x, y, width, height int) {
	r.viewport = [4]int{x, y, width, height}
	r.record("Viewport", x, y, width, height)
}

// Clear implements Backend.
func (r *Recorder) Clear(mask ClearMask, colour [4]float32) {
	if mask&ClearColour != 0 {
		if fb, ok := r.framebuffers[r.framebuffer]; ok {
			fb.clear = colour
		} else {
			r.screenClear = colour
		}
	}
	r.record("Clear", mask, colour)
}

// LoadProjection implements Backend.
func (r *Recorder) LoadProjection(m mgl32.Mat4) {
	r.projection = m
	r.record("LoadProjection", m)
}

// LoadModelView implements Backend.
func (r *Recorder) LoadModelView(m mgl32.Mat4) {
	r.modelView = m
	r.record("LoadModelView", m)
}

// Enable implements Backend.
func (r *Recorder) Enable(c Capability) {
	r.enabled[c] = true
	r.record("Enable", c)
}

// Disable implements Backend.
func (r *Recorder) Disable(c Capability) {
	delete(r.enabled, c)
	r.record("Disable", c)
}

// DepthMask implements Backend.
func (r *Recorder) DepthMask(write bool) { r.record("DepthMask", write) }

// ColorMask implements Backend.
func (r *Recorder) ColorMask(red, green, blue, alpha bool) {
	r.record("ColorMask", red, green, blue, alpha)
}

// CullFace implements Backend.
func (r *Recorder) CullFace(f Face) { r.record("CullFace", f) }

// StencilFunc implements Backend.
func (r *Recorder) StencilFunc(fn CompareFunc, ref int32, mask uint32) {
	r.record("StencilFunc", fn, ref, mask)
}

// StencilOp implements Backend.
func (r *Recorder) StencilOp(fail, zfail, zpass StencilAction) {
	r.record("StencilOp", fail, zfail, zpass)
}

// LineWidth implements Backend.
func (r *Recorder) LineWidth(w float32) { r.record("LineWidth", w) }

// PointSize implements Backend.
func (r *Recorder) PointSize(s float32) { r.record("PointSize", s) }

// Draw implements Backend.
func (r *Recorder) Draw(prim Primitive, data VertexData) error {
	return r.DrawInstanced(prim, data, Instances{Count: 1})
}

// DrawInstanced implements Backend.
func (r *Recorder) DrawInstanced(prim Primitive, data VertexData, inst Instances) error {
	if len(data.Vertices)%3 != 0 {
		return fmt.Errorf("draw %s: %d vertex values is not a multiple of 3", prim, len(data.Vertices))
	}
	nverts := len(data.Vertices) / 3
	for _, idx := range data.Indices {
		if int(idx) >= nverts {
			return fmt.Errorf("draw %s: index %d out of range (%d vertices)", prim, idx, nverts)
		}
	}
	if data.TexComps > 0 && len(data.TexCoords) != nverts*data.TexComps {
		return fmt.Errorf("draw %s: %d texture coordinates for %d vertices", prim, len(data.TexCoords), nverts)
	}
	for _, a := range inst.Attribs {
		if len(a.Data) != a.Comps*inst.Count {
			return fmt.Errorf("draw %s: instance attribute %s has %d values for %d instances", prim, a.Name, len(a.Data), inst.Count)
		}
	}
	textures := make(map[int]uint32, len(r.bound))
	for unit, id := range r.bound {
		textures[unit] = id
	}
	enabled := make(map[Capability]bool, len(r.enabled))
	for c := range r.enabled {
		enabled[c] = true
	}
	dc := DrawCall{
		Prim:        prim,
		Vertices:    data.NumVertices(),
		Instances:   inst.Count,
		Program:     r.program,
		Framebuffer: r.framebuffer,
		Textures:    textures,
		Projection:  r.projection,
		ModelView:   r.modelView,
		Data:        data,
		Enabled:     enabled,
	}
	r.draws = append(r.draws, dc)
	r.record("Draw", prim, dc.Vertices, inst.Count)
	return nil
}

// ReadPixels implements Backend. The recorder does not rasterise, so the
// returned image is filled with the clear colour of the bound target.
func (r *Recorder) ReadPixels(x, y, width, height int) (*image.RGBA, error) {
	c := r.screenClear
	if fb, ok := r.framebuffers[r.framebuffer]; ok {
		c = fb.clear
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fill := color.RGBA{
		R: uint8(c[0] * 255), G: uint8(c[1] * 255), B: uint8(c[2] * 255), A: uint8(c[3] * 255),
	}
	draw.Draw(img, img.Bounds(), &image.Uniform{C: fill}, image.Point{}, draw.Src)
	r.record("ReadPixels", x, y, width, height)
	return img, nil
}

// Calls returns every recorded call.
func (r *Recorder) Calls() []Call { return r.calls }

// CallCount returns the number of recorded calls to op.
func (r *Recorder) CallCount(op string) int {
	n := 0
	for _, c := range r.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Draws returns every recorded draw call.
func (r *Recorder) Draws() []DrawCall { return r.draws }

// ProgramName returns the name a program was compiled with.
func (r *Recorder) ProgramName(id uint32) string { return r.programs[id] }

// Uniform returns the last value set for a uniform.
func (r *Recorder) Uniform(program uint32, name string) (any, bool) {
	v, ok := r.uniforms[program][name]
	return v, ok
}

// TextureData returns the description and data of a live texture.
func (r *Recorder) TextureData(id uint32) (TextureDesc, []byte, bool) {
	tex, ok := r.textures[id]
	if !ok {
		return TextureDesc{}, nil, false
	}
	return tex.desc, tex.data, true
}

// LiveTextures returns the number of textures created and not deleted.
func (r *Recorder) LiveTextures() int { return len(r.textures) }

// LiveFramebuffers returns the number of live framebuffers.
func (r *Recorder) LiveFramebuffers() int { return len(r.framebuffers) }

// LivePrograms returns the number of live programs.
func (r *Recorder) LivePrograms() int { return len(r.programs) }

// Reset forgets recorded calls and draws, keeping object state.
func (r *Recorder) Reset() {
	r.calls = nil
	r.draws = nil
}

// Stats summarises the recorded work.
func (r *Recorder) Stats() Stats {
	s := Stats{DrawCalls: len(r.draws), TexturesAlive: len(r.textures)}
	for _, d := range r.draws {
		s.Vertices += d.Vertices
		s.Instances += d.Instances
	}
	for _, t := range r.textures {
		s.TextureBytes += len(t.data)
	}
	return s
}
