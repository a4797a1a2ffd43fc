// Package gl defines the rendering backend used by the rendering core.
//
// All drawing goes through the Backend interface, so that the same
// GLObject and canvas code can drive a real OpenGL context (package
// opengl) or the Recorder, which records calls without drawing and is used
// to verify draw behaviour in tests.
package gl

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"
)

// TextureTarget identifies the dimensionality of a texture.
type TextureTarget int

const (
	Texture1D TextureTarget = iota
	Texture2D
	Texture3D
)

// PixelType is the element type of texture data.
type PixelType int

const (
	UnsignedByte PixelType = iota
	UnsignedShort
	Float
)

// Size returns the number of bytes in one element.
func (p PixelType) Size() int {
	switch p {
	case UnsignedShort:
		return 2
	case Float:
		return 4
	}
	return 1
}

func (p PixelType) String() string {
	return [...]string{"ubyte", "ushort", "float"}[p]
}

// Format is the base format of texture data, i.e. its channel layout.
type Format int

const (
	Luminance Format = iota
	RGB
	RGBA
)

// Channels returns the number of values per texel.
func (f Format) Channels() int {
	return [...]int{1, 3, 4}[f]
}

// FormatForChannels returns the base format storing n values per texel.
func FormatForChannels(n int) (Format, error) {
	switch n {
	case 1:
		return Luminance, nil
	case 3:
		return RGB, nil
	case 4:
		return RGBA, nil
	}
	return 0, fmt.Errorf("unsupported number of texture channels: %d", n)
}

// InternalFormat is the GPU storage format of a texture.
type InternalFormat int

const (
	Luminance8 InternalFormat = iota
	Luminance16
	Luminance32F
	RGB8
	RGB16
	RGB32F
	RGBA8
	RGBA16
	RGBA32F
)

// InternalFormatFor returns the storage format for a base format and
// element type.
func InternalFormatFor(f Format, p PixelType) InternalFormat {
	return InternalFormat(int(f)*3 + int(p))
}

// Filter selects texture interpolation.
type Filter int

const (
	Nearest Filter = iota
	Linear
)

// TextureDesc describes the storage of a texture.
type TextureDesc struct {
	Target   TextureTarget
	Shape    [3]int
	Type     PixelType
	Format   Format
	Internal InternalFormat
	Filter   Filter
}

// NumBytes returns the size of the texture data described by d.
func (d TextureDesc) NumBytes() int {
	n := d.Type.Size() * d.Format.Channels()
	for _, s := range d.Shape {
		n *= max(s, 1)
	}
	return n
}

// Primitive is a geometric primitive type.
type Primitive int

const (
	Points Primitive = iota
	Lines
	LineLoop
	LineStrip
	Triangles
	TriangleStrip
	TriangleFan
)

func (p Primitive) String() string {
	return [...]string{"points", "lines", "lineloop", "linestrip", "triangles", "trianglestrip", "trianglefan"}[p]
}

// Capability is a piece of fixed GL state which can be switched on and
// off.
type Capability int

const (
	Blend Capability = iota
	DepthTest
	StencilTest
	CullFace
	PolygonOffsetFill
	Multisample
)

// StencilAction is what happens to a stencil value.
type StencilAction int

const (
	Keep StencilAction = iota
	Zero
	Replace
	IncrWrap
	DecrWrap
	Invert
)

// CompareFunc is a depth or stencil comparison.
type CompareFunc int

const (
	Always CompareFunc = iota
	Never
	Equal
	NotEqual
	Less
	LessEqual
	Greater
	GreaterEqual
)

// Face selects front or back facing polygons.
type Face int

const (
	FrontFace Face = iota
	BackFace
)

// ClearMask selects the buffers cleared by Clear.
type ClearMask int

const (
	ClearColour ClearMask = 1 << iota
	ClearDepth
	ClearStencil
)

// VertexData is the geometry passed to a draw call.
type VertexData struct {
	// Vertices holds 3 values per vertex.
	Vertices []float32

	// TexCoords holds TexComps values per vertex.
	TexCoords []float32
	TexComps  int

	// Colours, if set, holds 4 values per vertex.
	Colours []float32

	// Normals, if set, holds 3 values per vertex.
	Normals []float32

	// Indices, if set, selects vertices for indexed drawing.
	Indices []uint32
}

// NumVertices returns the number of vertices drawn.
func (v VertexData) NumVertices() int {
	if v.Indices != nil {
		return len(v.Indices)
	}
	return len(v.Vertices) / 3
}

// InstanceAttrib is a per-instance vertex attribute.
type InstanceAttrib struct {
	Name  string
	Comps int
	Data  []float32
}

// Instances describes instanced drawing: the same geometry is drawn Count
// times, with per-instance attributes.
type Instances struct {
	Count   int
	Attribs []InstanceAttrib
}

// Caps describes the capabilities of a GL context.
type Caps struct {
	Version          string
	Renderer         string
	MaxTextureSize   int
	Max3DTextureSize int

	// FloatTextures reports whether floating point textures with 1, 3
	// and 4 channels can be created and sampled without normalisation.
	FloatTextures bool
}

// Backend is the contract between the rendering core and a GL
// implementation. All methods must be called on the render thread.
type Backend interface {
	Caps() Caps

	NewTexture(desc TextureDesc) (uint32, error)
	SetTextureData(id uint32, desc TextureDesc, data []byte) error
	DeleteTexture(id uint32)
	BindTexture(unit int, target TextureTarget, id uint32)

	// NewFramebuffer creates a framebuffer rendering into the colour
	// texture, with a depth/stencil attachment of the same size.
	NewFramebuffer(colour uint32, width, height int) (uint32, error)
	BindFramebuffer(id uint32)
	DeleteFramebuffer(id uint32)

	NewProgram(name, vertex, fragment string) (uint32, error)
	UseProgram(id uint32)
	DeleteProgram(id uint32)
	SetUniform(program uint32, name string, value any) error

	Viewport(x, y, width, height int)
	Clear(mask ClearMask, colour [4]float32)
	LoadProjection(m mgl32.Mat4)
	LoadModelView(m mgl32.Mat4)

	Enable(c Capability)
	Disable(c Capability)
	DepthMask(write bool)
	ColorMask(r, g, b, a bool)
	CullFace(f Face)
	StencilFunc(fn CompareFunc, ref int32, mask uint32)
	StencilOp(fail, zfail, zpass StencilAction)
	LineWidth(w float32)
	PointSize(s float32)

	Draw(prim Primitive, data VertexData) error
	DrawInstanced(prim Primitive, data VertexData, inst Instances) error

	ReadPixels(x, y, width, height int) (*image.RGBA, error)
}

// Stats summarises rendering work, for logging.
type Stats struct {
	DrawCalls     int
	Vertices      int
	Instances     int
	TexturesAlive int
	TextureBytes  int
}

// LogValue implements slog.LogValuer.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("draw_calls", s.DrawCalls),
		slog.Int("vertices", s.Vertices),
		slog.Int("instances", s.Instances),
		slog.Int("textures", s.TexturesAlive),
		slog.Int("texture_bytes", s.TextureBytes),
	)
}
