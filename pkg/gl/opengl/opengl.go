// Package opengl implements gl.Backend on an OpenGL 2.1 context, using
// the EXT_framebuffer_object and ARB_texture_float extensions.
//
// A context must be current on the calling thread when New is called, and
// for every subsequent call.
package opengl

import (
	"errors"
	"fmt"
	"image"
	"strings"
	"unsafe"

	gogl "github.com/go-gl/gl/v2.1/gl"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/logx"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
)

// ErrNoFramebuffers is returned by New when the context does not support
// framebuffer objects.
var ErrNoFramebuffers = errors.New("EXT_framebuffer_object is not supported")

var _ gl.Backend = (*Backend)(nil)

type framebuffer struct {
	fbo, rbo uint32
}

// Backend draws with OpenGL. It is not safe for concurrent use.
type Backend struct {
	caps         gl.Caps
	program      uint32
	framebuffers map[uint32]framebuffer
	attribs      map[uint32]map[string]int32
	uniforms     map[uint32]map[string]int32
}

// New loads the OpenGL function pointers for the current context and
// queries its capabilities.
func New() (*Backend, error) {
	if err := gogl.Init(); err != nil {
		return nil, fmt.Errorf("opengl: %w", err)
	}
	exts := gogl.GoStr(gogl.GetString(gogl.EXTENSIONS))
	if !strings.Contains(exts, "GL_EXT_framebuffer_object") {
		return nil, ErrNoFramebuffers
	}
	var max2D, max3D int32
	gogl.GetIntegerv(gogl.MAX_TEXTURE_SIZE, &max2D)
	gogl.GetIntegerv(gogl.MAX_3D_TEXTURE_SIZE, &max3D)
	b := &Backend{
		caps: gl.Caps{
			Version:          gogl.GoStr(gogl.GetString(gogl.VERSION)),
			Renderer:         gogl.GoStr(gogl.GetString(gogl.RENDERER)),
			MaxTextureSize:   int(max2D),
			Max3DTextureSize: int(max3D),
			FloatTextures:    strings.Contains(exts, "GL_ARB_texture_float"),
		},
		framebuffers: map[uint32]framebuffer{},
		attribs:      map[uint32]map[string]int32{},
		uniforms:     map[uint32]map[string]int32{},
	}
	gogl.PixelStorei(gogl.UNPACK_ALIGNMENT, 1)
	gogl.PixelStorei(gogl.PACK_ALIGNMENT, 1)
	logx.Logger().Info("opengl context", "version", b.caps.Version, "renderer", b.caps.Renderer,
		"max_texture", b.caps.MaxTextureSize, "max_3d_texture", b.caps.Max3DTextureSize,
		"float_textures", b.caps.FloatTextures)
	return b, nil
}

// Caps implements gl.Backend.
func (b *Backend) Caps() gl.Caps { return b.caps }

func target(t gl.TextureTarget) uint32 {
	switch t {
	case gl.Texture1D:
		return gogl.TEXTURE_1D
	case gl.Texture3D:
		return gogl.TEXTURE_3D
	}
	return gogl.TEXTURE_2D
}

func pixelType(p gl.PixelType) uint32 {
	switch p {
	case gl.UnsignedShort:
		return gogl.UNSIGNED_SHORT
	case gl.Float:
		return gogl.FLOAT
	}
	return gogl.UNSIGNED_BYTE
}

func format(f gl.Format) uint32 {
	switch f {
	case gl.RGB:
		return gogl.RGB
	case gl.RGBA:
		return gogl.RGBA
	}
	return gogl.LUMINANCE
}

var internalFormats = map[gl.InternalFormat]int32{
	gl.Luminance8:   gogl.LUMINANCE8,
	gl.Luminance16:  gogl.LUMINANCE16,
	gl.Luminance32F: gogl.LUMINANCE32F_ARB,
	gl.RGB8:         gogl.RGB8,
	gl.RGB16:        gogl.RGB16,
	gl.RGB32F:       gogl.RGB32F_ARB,
	gl.RGBA8:        gogl.RGBA8,
	gl.RGBA16:       gogl.RGBA16,
	gl.RGBA32F:      gogl.RGBA32F_ARB,
}

// NewTexture implements gl.Backend.
func (b *Backend) NewTexture(desc gl.TextureDesc) (uint32, error) {
	var id uint32
	gogl.GenTextures(1, &id)
	if id == 0 {
		return 0, fmt.Errorf("opengl: cannot create texture")
	}
	t := target(desc.Target)
	gogl.BindTexture(t, id)
	defer gogl.BindTexture(t, 0)
	filter := int32(gogl.NEAREST)
	if desc.Filter == gl.Linear {
		filter = gogl.LINEAR
	}
	gogl.TexParameteri(t, gogl.TEXTURE_MIN_FILTER, filter)
	gogl.TexParameteri(t, gogl.TEXTURE_MAG_FILTER, filter)
	for _, wrap := range []uint32{gogl.TEXTURE_WRAP_S, gogl.TEXTURE_WRAP_T, gogl.TEXTURE_WRAP_R} {
		gogl.TexParameteri(t, wrap, gogl.CLAMP_TO_EDGE)
	}
	return id, nil
}

// SetTextureData implements gl.Backend. A nil data allocates storage
// without uploading anything.
func (b *Backend) SetTextureData(id uint32, desc gl.TextureDesc, data []byte) error {
	if data != nil && len(data) != desc.NumBytes() {
		return fmt.Errorf("opengl: texture %d: %d bytes for %v (need %d)", id, len(data), desc.Shape, desc.NumBytes())
	}
	internal, ok := internalFormats[desc.Internal]
	if !ok {
		return fmt.Errorf("opengl: texture %d: unknown internal format %d", id, desc.Internal)
	}
	var ptr unsafe.Pointer
	if len(data) > 0 {
		ptr = gogl.Ptr(data)
	}
	t := target(desc.Target)
	gogl.BindTexture(t, id)
	defer gogl.BindTexture(t, 0)
	w, h, d := int32(max(desc.Shape[0], 1)), int32(max(desc.Shape[1], 1)), int32(max(desc.Shape[2], 1))
	f, pt := format(desc.Format), pixelType(desc.Type)
	switch desc.Target {
	case gl.Texture1D:
		gogl.TexImage1D(t, 0, internal, w, 0, f, pt, ptr)
	case gl.Texture2D:
		gogl.TexImage2D(t, 0, internal, w, h, 0, f, pt, ptr)
	default:
		gogl.TexImage3D(t, 0, internal, w, h, d, 0, f, pt, ptr)
	}
	return glError("upload texture")
}

// DeleteTexture implements gl.Backend.
func (b *Backend) DeleteTexture(id uint32) { gogl.DeleteTextures(1, &id) }

// BindTexture implements gl.Backend.
func (b *Backend) BindTexture(unit int, t gl.TextureTarget, id uint32) {
	gogl.ActiveTexture(gogl.TEXTURE0 + uint32(unit))
	gogl.BindTexture(target(t), id)
	gogl.ActiveTexture(gogl.TEXTURE0)
}

// NewFramebuffer implements gl.Backend.
func (b *Backend) NewFramebuffer(colour uint32, width, height int) (uint32, error) {
	var fb framebuffer
	gogl.GenFramebuffersEXT(1, &fb.fbo)
	gogl.GenRenderbuffersEXT(1, &fb.rbo)
	gogl.BindFramebufferEXT(gogl.FRAMEBUFFER_EXT, fb.fbo)
	defer gogl.BindFramebufferEXT(gogl.FRAMEBUFFER_EXT, 0)

	gogl.FramebufferTexture2DEXT(gogl.FRAMEBUFFER_EXT, gogl.COLOR_ATTACHMENT0_EXT, gogl.TEXTURE_2D, colour, 0)
	gogl.BindRenderbufferEXT(gogl.RENDERBUFFER_EXT, fb.rbo)
	gogl.RenderbufferStorageEXT(gogl.RENDERBUFFER_EXT, gogl.DEPTH24_STENCIL8_EXT, int32(width), int32(height))
	gogl.BindRenderbufferEXT(gogl.RENDERBUFFER_EXT, 0)
	gogl.FramebufferRenderbufferEXT(gogl.FRAMEBUFFER_EXT, gogl.DEPTH_ATTACHMENT_EXT, gogl.RENDERBUFFER_EXT, fb.rbo)
	gogl.FramebufferRenderbufferEXT(gogl.FRAMEBUFFER_EXT, gogl.STENCIL_ATTACHMENT_EXT, gogl.RENDERBUFFER_EXT, fb.rbo)

	if status := gogl.CheckFramebufferStatusEXT(gogl.FRAMEBUFFER_EXT); status != gogl.FRAMEBUFFER_COMPLETE_EXT {
		gogl.DeleteFramebuffersEXT(1, &fb.fbo)
		gogl.DeleteRenderbuffersEXT(1, &fb.rbo)
		return 0, fmt.Errorf("opengl: incomplete framebuffer (status 0x%x)", status)
	}
	b.framebuffers[fb.fbo] = fb
	return fb.fbo, nil
}

// BindFramebuffer implements gl.Backend.
func (b *Backend) BindFramebuffer(id uint32) { gogl.BindFramebufferEXT(gogl.FRAMEBUFFER_EXT, id) }

// DeleteFramebuffer implements gl.Backend.
func (b *Backend) DeleteFramebuffer(id uint32) {
	fb, ok := b.framebuffers[id]
	if !ok {
		return
	}
	delete(b.framebuffers, id)
	gogl.DeleteFramebuffersEXT(1, &fb.fbo)
	gogl.DeleteRenderbuffersEXT(1, &fb.rbo)
}

func compile(kind uint32, src string) (uint32, error) {
	shader := gogl.CreateShader(kind)
	csrc, free := gogl.Strs(src + "\x00")
	gogl.ShaderSource(shader, 1, csrc, nil)
	free()
	gogl.CompileShader(shader)

	var status int32
	gogl.GetShaderiv(shader, gogl.COMPILE_STATUS, &status)
	if status == gogl.FALSE {
		var n int32
		gogl.GetShaderiv(shader, gogl.INFO_LOG_LENGTH, &n)
		log := strings.Repeat("\x00", int(n+1))
		gogl.GetShaderInfoLog(shader, n, nil, gogl.Str(log))
		gogl.DeleteShader(shader)
		return 0, errors.New(strings.TrimRight(log, "\x00"))
	}
	return shader, nil
}

// NewProgram implements gl.Backend.
func (b *Backend) NewProgram(name, vertex, fragment string) (uint32, error) {
	vs, err := compile(gogl.VERTEX_SHADER, vertex)
	if err != nil {
		return 0, fmt.Errorf("opengl: compiling %s vertex shader: %w", name, err)
	}
	defer gogl.DeleteShader(vs)
	fs, err := compile(gogl.FRAGMENT_SHADER, fragment)
	if err != nil {
		return 0, fmt.Errorf("opengl: compiling %s fragment shader: %w", name, err)
	}
	defer gogl.DeleteShader(fs)

	prog := gogl.CreateProgram()
	gogl.AttachShader(prog, vs)
	gogl.AttachShader(prog, fs)
	// vertex must be attribute 0 for drawing with client side arrays
	gogl.BindAttribLocation(prog, 0, gogl.Str("vertex\x00"))
	gogl.LinkProgram(prog)

	var status int32
	gogl.GetProgramiv(prog, gogl.LINK_STATUS, &status)
	if status == gogl.FALSE {
		var n int32
		gogl.GetProgramiv(prog, gogl.INFO_LOG_LENGTH, &n)
		log := strings.Repeat("\x00", int(n+1))
		gogl.GetProgramInfoLog(prog, n, nil, gogl.Str(log))
		gogl.DeleteProgram(prog)
		return 0, fmt.Errorf("opengl: linking %s: %s", name, strings.TrimRight(log, "\x00"))
	}
	b.attribs[prog] = map[string]int32{}
	b.uniforms[prog] = map[string]int32{}
	logx.Logger().Debug("opengl program linked", "program", name, "id", prog)
	return prog, nil
}

// UseProgram implements gl.Backend.
func (b *Backend) UseProgram(id uint32) {
	b.program = id
	gogl.UseProgram(id)
}

// DeleteProgram implements gl.Backend.
func (b *Backend) DeleteProgram(id uint32) {
	if b.program == id {
		b.UseProgram(0)
	}
	delete(b.attribs, id)
	delete(b.uniforms, id)
	gogl.DeleteProgram(id)
}

func (b *Backend) uniform(prog uint32, name string) int32 {
	locs := b.uniforms[prog]
	if loc, ok := locs[name]; ok {
		return loc
	}
	loc := gogl.GetUniformLocation(prog, gogl.Str(name+"\x00"))
	if locs != nil {
		locs[name] = loc
	}
	return loc
}

func (b *Backend) attrib(prog uint32, name string) int32 {
	locs := b.attribs[prog]
	if loc, ok := locs[name]; ok {
		return loc
	}
	loc := gogl.GetAttribLocation(prog, gogl.Str(name+"\x00"))
	if locs != nil {
		locs[name] = loc
	}
	return loc
}

// SetUniform implements gl.Backend. Uniforms which the linker removed are
// ignored.
func (b *Backend) SetUniform(prog uint32, name string, value any) error {
	loc := b.uniform(prog, name)
	if loc < 0 {
		return nil
	}
	if b.program != prog {
		prev := b.program
		gogl.UseProgram(prog)
		defer gogl.UseProgram(prev)
	}
	switch v := value.(type) {
	case bool:
		var i int32
		if v {
			i = 1
		}
		gogl.Uniform1i(loc, i)
	case int:
		gogl.Uniform1i(loc, int32(v))
	case int32:
		gogl.Uniform1i(loc, v)
	case float32:
		gogl.Uniform1f(loc, v)
	case float64:
		gogl.Uniform1f(loc, float32(v))
	case mgl32.Vec2:
		gogl.Uniform2f(loc, v[0], v[1])
	case mgl32.Vec3:
		gogl.Uniform3f(loc, v[0], v[1], v[2])
	case mgl32.Vec4:
		gogl.Uniform4f(loc, v[0], v[1], v[2], v[3])
	case mgl32.Mat3:
		gogl.UniformMatrix3fv(loc, 1, false, &v[0])
	case mgl32.Mat4:
		gogl.UniformMatrix4fv(loc, 1, false, &v[0])
	case []float32:
		if len(v) > 0 {
			gogl.Uniform1fv(loc, int32(len(v)), &v[0])
		}
	default:
		return fmt.Errorf("opengl: uniform %s: unsupported type %T", name, value)
	}
	return nil
}

// Viewport implements gl.Backend.
func (b *Backend) Viewport(x, y, width, height int) {
	gogl.Viewport(int32(x), int32(y), int32(width), int32(height))
}

// Clear implements gl.Backend.
func (b *Backend) Clear(mask gl.ClearMask, colour [4]float32) {
	var bits uint32
	if mask&gl.ClearColour != 0 {
		gogl.ClearColor(colour[0], colour[1], colour[2], colour[3])
		bits |= gogl.COLOR_BUFFER_BIT
	}
	if mask&gl.ClearDepth != 0 {
		bits |= gogl.DEPTH_BUFFER_BIT
	}
	if mask&gl.ClearStencil != 0 {
		bits |= gogl.STENCIL_BUFFER_BIT
	}
	gogl.Clear(bits)
}

// LoadProjection implements gl.Backend.
func (b *Backend) LoadProjection(m mgl32.Mat4) {
	gogl.MatrixMode(gogl.PROJECTION)
	gogl.LoadMatrixf(&m[0])
}

// LoadModelView implements gl.Backend.
func (b *Backend) LoadModelView(m mgl32.Mat4) {
	gogl.MatrixMode(gogl.MODELVIEW)
	gogl.LoadMatrixf(&m[0])
}

func capability(c gl.Capability) uint32 {
	return [...]uint32{
		gl.Blend:             gogl.BLEND,
		gl.DepthTest:         gogl.DEPTH_TEST,
		gl.StencilTest:       gogl.STENCIL_TEST,
		gl.CullFace:          gogl.CULL_FACE,
		gl.PolygonOffsetFill: gogl.POLYGON_OFFSET_FILL,
		gl.Multisample:       gogl.MULTISAMPLE,
	}[c]
}

// Enable implements gl.Backend.
func (b *Backend) Enable(c gl.Capability) {
	gogl.Enable(capability(c))
	if c == gl.Blend {
		gogl.BlendFunc(gogl.SRC_ALPHA, gogl.ONE_MINUS_SRC_ALPHA)
	}
}

// Disable implements gl.Backend.
func (b *Backend) Disable(c gl.Capability) { gogl.Disable(capability(c)) }

// DepthMask implements gl.Backend.
func (b *Backend) DepthMask(write bool) { gogl.DepthMask(write) }

// ColorMask implements gl.Backend.
func (b *Backend) ColorMask(r, g, bl, a bool) { gogl.ColorMask(r, g, bl, a) }

// CullFace implements gl.Backend.
func (b *Backend) CullFace(f gl.Face) {
	if f == gl.FrontFace {
		gogl.CullFace(gogl.FRONT)
	} else {
		gogl.CullFace(gogl.BACK)
	}
}

var compareFuncs = [...]uint32{
	gl.Always:       gogl.ALWAYS,
	gl.Never:        gogl.NEVER,
	gl.Equal:        gogl.EQUAL,
	gl.NotEqual:     gogl.NOTEQUAL,
	gl.Less:         gogl.LESS,
	gl.LessEqual:    gogl.LEQUAL,
	gl.Greater:      gogl.GREATER,
	gl.GreaterEqual: gogl.GEQUAL,
}

var stencilActions = [...]uint32{
	gl.Keep:     gogl.KEEP,
	gl.Zero:     gogl.ZERO,
	gl.Replace:  gogl.REPLACE,
	gl.IncrWrap: gogl.INCR_WRAP,
	gl.DecrWrap: gogl.DECR_WRAP,
	gl.Invert:   gogl.INVERT,
}

// StencilFunc implements gl.Backend.
func (b *Backend) StencilFunc(fn gl.CompareFunc, ref int32, mask uint32) {
	gogl.StencilFunc(compareFuncs[fn], ref, mask)
}

// StencilOp implements gl.Backend.
func (b *Backend) StencilOp(fail, zfail, zpass gl.StencilAction) {
	gogl.StencilOp(stencilActions[fail], stencilActions[zfail], stencilActions[zpass])
}

// LineWidth implements gl.Backend.
func (b *Backend) LineWidth(w float32) { gogl.LineWidth(w) }

// PointSize implements gl.Backend.
func (b *Backend) PointSize(s float32) { gogl.PointSize(s) }

var primitives = [...]uint32{
	gl.Points:        gogl.POINTS,
	gl.Lines:         gogl.LINES,
	gl.LineLoop:      gogl.LINE_LOOP,
	gl.LineStrip:     gogl.LINE_STRIP,
	gl.Triangles:     gogl.TRIANGLES,
	gl.TriangleStrip: gogl.TRIANGLE_STRIP,
	gl.TriangleFan:   gogl.TRIANGLE_FAN,
}

// texCoordAttribs are the vertex shader inputs which receive
// VertexData.TexCoords, in order of preference.
var texCoordAttribs = []string{"texCoord", "vertexData", "vertIndex"}

// Draw implements gl.Backend.
func (b *Backend) Draw(prim gl.Primitive, data gl.VertexData) error {
	return b.DrawInstanced(prim, data, gl.Instances{Count: 1})
}

// DrawInstanced implements gl.Backend. OpenGL 2.1 has no instanced
// drawing, so the geometry is drawn once per instance with the instance
// attributes set as constant vertex attributes.
func (b *Backend) DrawInstanced(prim gl.Primitive, data gl.VertexData, inst gl.Instances) error {
	if b.program == 0 {
		return fmt.Errorf("opengl: draw %s with no program", prim)
	}
	if len(data.Vertices)%3 != 0 {
		return fmt.Errorf("opengl: draw %s: %d vertex values is not a multiple of 3", prim, len(data.Vertices))
	}
	nverts := len(data.Vertices) / 3
	if nverts == 0 {
		return nil
	}

	var enabled []uint32
	bind := func(name string, comps int, values []float32) {
		loc := b.attrib(b.program, name)
		if loc < 0 || len(values) == 0 {
			return
		}
		gogl.EnableVertexAttribArray(uint32(loc))
		gogl.VertexAttribPointer(uint32(loc), int32(comps), gogl.FLOAT, false, 0, gogl.Ptr(values))
		enabled = append(enabled, uint32(loc))
	}
	defer func() {
		for _, loc := range enabled {
			gogl.DisableVertexAttribArray(loc)
		}
	}()

	bind("vertex", 3, data.Vertices)
	if data.TexComps > 0 {
		for _, name := range texCoordAttribs {
			if b.attrib(b.program, name) >= 0 {
				bind(name, data.TexComps, data.TexCoords)
				break
			}
		}
	}
	bind("colour", 4, data.Colours)
	bind("normal", 3, data.Normals)

	mode := primitives[prim]
	for i := range max(inst.Count, 1) {
		for _, a := range inst.Attribs {
			loc := b.attrib(b.program, a.Name)
			if loc < 0 {
				continue
			}
			v := a.Data[i*a.Comps : (i+1)*a.Comps]
			switch a.Comps {
			case 1:
				gogl.VertexAttrib1f(uint32(loc), v[0])
			case 2:
				gogl.VertexAttrib2f(uint32(loc), v[0], v[1])
			case 3:
				gogl.VertexAttrib3f(uint32(loc), v[0], v[1], v[2])
			case 4:
				gogl.VertexAttrib4f(uint32(loc), v[0], v[1], v[2], v[3])
			default:
				return fmt.Errorf("opengl: instance attribute %s has %d components", a.Name, a.Comps)
			}
		}
		if data.Indices != nil {
			gogl.DrawElements(mode, int32(len(data.Indices)), gogl.UNSIGNED_INT, gogl.Ptr(data.Indices))
		} else {
			gogl.DrawArrays(mode, 0, int32(nverts))
		}
	}
	return glError("draw " + prim.String())
}

// ReadPixels implements gl.Backend. The image is flipped so that its
// first row is the top of the framebuffer.
func (b *Backend) ReadPixels(x, y, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("opengl: read %dx%d pixels", width, height)
	}
	buf := make([]byte, 4*width*height)
	gogl.ReadPixels(int32(x), int32(y), int32(width), int32(height), gogl.RGBA, gogl.UNSIGNED_BYTE, gogl.Ptr(buf))
	if err := glError("read pixels"); err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	stride := 4 * width
	for row := range height {
		copy(img.Pix[row*img.Stride:row*img.Stride+stride], buf[(height-1-row)*stride:(height-row)*stride])
	}
	return img, nil
}

func glError(op string) error {
	if code := gogl.GetError(); code != gogl.NO_ERROR {
		return fmt.Errorf("opengl: %s: error 0x%x", op, code)
	}
	return nil
}
