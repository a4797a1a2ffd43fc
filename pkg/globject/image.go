package globject

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/affine"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/resources"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/routines"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/textures"
)

// imageSlot holds one shared image texture acquired from the registry.
// Changing the image or options acquires the new texture before releasing
// the old one, so a texture shared with another canvas is never destroyed
// and recreated in between.
type imageSlot struct {
	env      *Env
	listener string
	onData   func()

	key resources.Key
	tex *textures.ImageTexture
}

func newImageSlot(env *Env, listener string, onData func()) imageSlot {
	return imageSlot{env: env, listener: listener, onData: onData}
}

// set points the slot at a texture of img with opts. A nil img empties the
// slot.
func (s *imageSlot) set(img *models.Image, opts textures.ImageOptions) error {
	if img == nil {
		s.release()
		return nil
	}
	key := textures.ImageKey(img, opts)
	if s.tex != nil && key == s.key {
		return nil
	}
	tex, err := resources.Acquire(s.env.Registry, key, func() (*textures.ImageTexture, error) {
		return textures.NewImageTexture(s.env.Backend, s.env.Queue, s.env.Probe, key.String(), img, opts)
	})
	if err != nil {
		return err
	}
	s.release()
	s.key, s.tex = key, tex
	if s.onData != nil {
		tex.Notifier().Listen(s.listener, textures.DataProp, func(string) { s.onData() })
	}
	return nil
}

func (s *imageSlot) release() {
	if s.tex == nil {
		return
	}
	s.tex.Notifier().RemoveAll(s.listener)
	if err := s.env.Registry.Delete(s.key); err != nil {
		panic(fmt.Sprintf("releasing %s: %v", s.key, err))
	}
	s.tex = nil
	s.key = resources.Key{}
}

// ready reports whether a required texture is ready.
func (s *imageSlot) ready() bool { return s.tex != nil && s.tex.Ready() }

// optionalReady reports whether an optional texture is absent or ready.
func (s *imageSlot) optionalReady() bool { return s.tex == nil || s.tex.Ready() }

func (s *imageSlot) bind(unit int) {
	if s.tex != nil {
		s.tex.Bind(unit)
	}
}

func (s *imageSlot) unbind(unit int) {
	if s.tex != nil {
		s.tex.Unbind(unit)
	}
}

func (s *imageSlot) voxValXform() mgl32.Mat4 {
	if s.tex == nil {
		return mgl32.Ident4()
	}
	return s.tex.VoxValXform()
}

// valScaleOffset returns the texture to data value scale and offset, for
// shaders which apply them to several channels.
func (s *imageSlot) valScaleOffset() mgl32.Vec2 {
	if s.tex == nil || s.tex.Prepared() == nil {
		return mgl32.Vec2{1, 0}
	}
	p := s.tex.Prepared()
	return mgl32.Vec2{float32(p.Scale), float32(p.Offset)}
}

func (s *imageSlot) shape() [3]int {
	if s.tex == nil {
		return [3]int{1, 1, 1}
	}
	return s.tex.Shape()
}

func filter(i models.Interpolation) gl.Filter {
	if i == models.NoInterpolation {
		return gl.Nearest
	}
	return gl.Linear
}

// rangeXform returns a transform mapping [lo, hi] to [0, 1], or to [1, 0]
// when inverted.
func rangeXform(lo, hi float64, invert bool) mgl32.Mat4 {
	span := hi - lo
	if span == 0 {
		span = 1
	}
	scale, offset := 1/span, -lo/span
	if invert {
		scale, offset = -scale, 1-offset
	}
	m := mgl32.Ident4()
	m.Set(0, 0, float32(scale))
	m.Set(0, 3, float32(offset))
	return m
}

// gammaExponent maps a gamma setting in [-1, 1] to an exponent in
// [0.1, 10].
func gammaExponent(g float64) float64 {
	return math.Pow(10, math.Max(-1, math.Min(1, g)))
}

// imageBase is shared by every GLObject drawing an image.
type imageBase struct {
	base
	iopts *models.ImageOpts
}

func (o *imageBase) initImage(env *Env, ov models.Overlay, otype models.OverlayType) error {
	if err := o.init(env, ov, otype); err != nil {
		return err
	}
	o.iopts = models.ImageOptsOf(o.opts)
	if o.iopts == nil {
		o.destroyBase()
		return fmt.Errorf("overlay %s: %s options are not image options", ov.Name(), otype)
	}
	return nil
}

func (o *imageBase) image() *models.Image { return o.iopts.Image() }

func (o *imageBase) slot(name string) imageSlot {
	return newImageSlot(o.env, o.listener+"_"+name, func() {
		o.shaderDirty = true
		o.notify()
	})
}

// outlineOffsets returns the texture coordinate offsets used to detect
// edges, zero along the depth axis.
func outlineOffsets(width float64, shape [3]int, axes Axes) mgl32.Vec3 {
	var off mgl32.Vec3
	for ax := 0; ax < 3; ax++ {
		if ax == axes.Z() {
			continue
		}
		off[ax] = float32(width / float64(max(shape[ax], 1)))
	}
	return off
}

// drawSlices draws one textured slice per depth in a single draw call,
// applying each slice's xform to its vertices.
func (o *imageBase) drawSlices(prog *gl.Program, axes Axes, zposes []float64, xforms []*mgl32.Mat4, bbox *models.Bounds) error {
	var verts, tcs []float32
	shape := o.image().Shape3()
	xform := o.iopts.VoxToDisplay()
	for i, z := range zposes {
		if !o.visible(z, axes) {
			continue
		}
		v, _, tc := routines.Slice2D(shape, xform, axes.Z(), z, bbox)
		if i < len(xforms) && xforms[i] != nil {
			v = transformPoints(*xforms[i], v)
		}
		verts = append(verts, routines.Flatten(v)...)
		tcs = append(tcs, routines.Flatten(tc)...)
	}
	if len(verts) == 0 {
		return nil
	}
	prog.Load()
	if _, err := prog.Set("MVP", o.mvp(nil)); err != nil {
		return err
	}
	return o.backend().Draw(gl.Triangles, gl.VertexData{Vertices: verts, TexCoords: tcs, TexComps: 3})
}

// drawBox draws the image's display bounding box, clipped to bbox, with
// texture coordinates, for ray-casting programs.
func (o *imageBase) drawBox(prog *gl.Program, xform *mgl32.Mat4, bbox *models.Bounds) error {
	b := o.Bounds()
	if bbox != nil {
		for ax := 0; ax < 3; ax++ {
			b.Lo[ax] = math.Max(b.Lo[ax], bbox.Lo[ax])
			b.Hi[ax] = math.Min(b.Hi[ax], bbox.Hi[ax])
		}
	}
	if b.Empty() {
		return nil
	}
	verts := routines.BoxTriangles(b.Lo, b.Hi)
	vox := affine.TransformAll(o.iopts.DisplayToVox(), verts)
	tcs := routines.VoxToTex(vox, o.image().Shape3())

	prog.Load()
	if _, err := prog.Set("MVP", o.mvp(xform)); err != nil {
		return err
	}
	be := o.backend()
	be.Enable(gl.CullFace)
	be.CullFace(gl.BackFace)
	defer be.Disable(gl.CullFace)
	return be.Draw(gl.Triangles, gl.VertexData{
		Vertices:  routines.Flatten(verts),
		TexCoords: routines.Flatten(tcs),
		TexComps:  3,
	})
}

// texCameraDir returns the view direction in texture coordinates.
func (o *imageBase) texCameraDir(dir [3]float64) mgl32.Vec3 {
	shape := o.image().Shape3()
	v := affine.TransformVector(o.iopts.DisplayToVox(), dir)
	var out mgl32.Vec3
	for ax := 0; ax < 3; ax++ {
		out[ax] = float32(v[ax] / float64(max(shape[ax], 1)))
	}
	if out.Len() == 0 {
		return mgl32.Vec3{0, 0, 1}
	}
	return out.Normalize()
}

// axisDir returns the unit vector along display axis ax.
func axisDir(ax int) [3]float64 {
	var d [3]float64
	d[ax] = 1
	return d
}

func transformPoints(m mgl32.Mat4, pts [][3]float64) [][3]float64 {
	out := make([][3]float64, len(pts))
	for i, p := range pts {
		v := mgl32.TransformCoordinate(vec3(p), m)
		out[i] = [3]float64{float64(v[0]), float64(v[1]), float64(v[2])}
	}
	return out
}
