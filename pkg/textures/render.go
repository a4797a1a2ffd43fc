package textures

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/routines"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/shaders"
)

// RenderTexture is a 2D RGBA texture with an attached framebuffer, so that
// scenes can be drawn into it and later drawn onto another target.
type RenderTexture struct {
	*Texture
	fbo           uint32
	width, height int
}

// NewRenderTexture creates a render texture with no storage. Call SetSize
// before drawing into it.
func NewRenderTexture(b gl.Backend, name string) *RenderTexture {
	return &RenderTexture{Texture: newTexture(b, name)}
}

// SetSize allocates storage for a width x height texture. It is a no-op if
// the size has not changed.
func (t *RenderTexture) SetSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("render texture %s: invalid size %dx%d", t.name, width, height)
	}
	if t.ready && width == t.width && height == t.height {
		return nil
	}
	if t.fbo != 0 {
		t.backend.DeleteFramebuffer(t.fbo)
		t.fbo = 0
	}
	desc := gl.TextureDesc{
		Target:   gl.Texture2D,
		Shape:    [3]int{width, height, 1},
		Type:     gl.UnsignedByte,
		Format:   gl.RGBA,
		Internal: gl.RGBA8,
		Filter:   gl.Linear,
	}
	if err := t.upload(desc, nil); err != nil {
		return err
	}
	fbo, err := t.backend.NewFramebuffer(t.id, width, height)
	if err != nil {
		t.ready = false
		return fmt.Errorf("render texture %s: %w", t.name, err)
	}
	t.fbo = fbo
	t.width, t.height = width, height
	return nil
}

// Size returns the texture size in pixels.
func (t *RenderTexture) Size() (width, height int) { return t.width, t.height }

// Framebuffer returns the framebuffer handle.
func (t *RenderTexture) Framebuffer() uint32 { return t.fbo }

// BindAsTarget directs drawing into the texture.
func (t *RenderTexture) BindAsTarget() {
	t.backend.BindFramebuffer(t.fbo)
	t.backend.Viewport(0, 0, t.width, t.height)
}

// UnbindAsTarget restores drawing to the default framebuffer.
func (t *RenderTexture) UnbindAsTarget() {
	t.backend.BindFramebuffer(0)
}

// Clear clears the texture contents, binding it as the render target.
func (t *RenderTexture) Clear(colour [4]float32) {
	t.BindAsTarget()
	t.backend.Clear(gl.ClearColour|gl.ClearDepth|gl.ClearStencil, colour)
}

// Destroy deletes the framebuffer and texture.
func (t *RenderTexture) Destroy() {
	if t.fbo != 0 {
		t.backend.DeleteFramebuffer(t.fbo)
		t.fbo = 0
	}
	t.Texture.Destroy()
}

// Blitter draws 2D textures onto rectangles of the current render target.
type Blitter struct {
	backend gl.Backend
	program *gl.Program
}

// NewBlitter compiles the texture drawing program.
func NewBlitter(b gl.Backend) (*Blitter, error) {
	vert, frag, err := shaders.Load("texture")
	if err != nil {
		return nil, err
	}
	prog, err := gl.NewProgram(b, "texture", vert, frag)
	if err != nil {
		return nil, err
	}
	return &Blitter{backend: b, program: prog}, nil
}

// Draw draws tex over the rectangle [lo, hi] of the display plane
// perpendicular to zax, at depth zpos, using the given projection and
// model-view matrices.
func (bl *Blitter) Draw(tex *Texture, lo, hi [3]float64, zax int, zpos float64, mvp mgl32.Mat4) error {
	if !tex.Ready() {
		return nil
	}
	verts := routines.SliceVertices(lo, hi, zax, zpos)
	xax, yax := routines.OtherAxes(zax)
	texCoords := make([]float32, 0, 2*len(verts))
	for _, v := range verts {
		u := float32((v[xax] - lo[xax]) / (hi[xax] - lo[xax]))
		w := float32((v[yax] - lo[yax]) / (hi[yax] - lo[yax]))
		texCoords = append(texCoords, u, w)
	}

	bl.program.Load()
	defer bl.program.Unload()
	if _, err := bl.program.Set("MVP", mvp); err != nil {
		return err
	}
	if _, err := bl.program.Set("renderTexture", int32(0)); err != nil {
		return err
	}
	tex.Bind(0)
	defer tex.Unbind(0)
	return bl.backend.Draw(gl.Triangles, gl.VertexData{
		Vertices:  routines.Flatten(verts),
		TexCoords: texCoords,
		TexComps:  2,
	})
}

// Destroy deletes the program.
func (bl *Blitter) Destroy() { bl.program.Destroy() }
