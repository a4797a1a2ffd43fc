package globject

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"gonum.org/v1/gonum/floats"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/affine"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/routines"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/textures"
)

// glyph is a tessellated unit sphere.
type glyph struct {
	res     int
	verts   []float32
	normals []float32
	indices []uint32
	angles  [][2]float64
	nverts  int
}

func newGlyph(res int) glyph {
	verts, angles, indices := routines.UnitSphere(res)
	flat := routines.Flatten(verts)
	return glyph{
		res:     res,
		verts:   flat,
		normals: flat,
		indices: indices,
		angles:  angles,
		nverts:  len(verts),
	}
}

// slabVoxels returns the voxels of the slice at zpos, within bbox if
// given, or nil if the slice is outside the image.
func (o *imageBase) slabVoxels(zpos float64, axes Axes, bbox *models.Bounds) [][3]int {
	shape := o.image().Shape3()
	zvox, ok := routines.SliceVoxel(shape, o.iopts.DisplayToVox(), axes.Z(), zpos, o.Bounds().Centre())
	if !ok {
		return nil
	}
	voxels := routines.PointGrid(shape, axes.Z(), zvox, 1)
	if bbox == nil {
		return voxels
	}
	xform := o.iopts.VoxToDisplay()
	kept := voxels[:0]
	for _, v := range voxels {
		if bbox.Contains(affine.Transform(xform, [3]float64{float64(v[0]), float64(v[1]), float64(v[2])})) {
			kept = append(kept, v)
		}
	}
	return kept
}

// glyphMVP returns the MVP for glyph programs, whose vertex positions are
// voxel coordinates scaled by pixdim.
func (o *imageBase) glyphMVP(xform *mgl32.Mat4) mgl32.Mat4 {
	pix := o.image().Pixdim
	unscale := mgl32.Scale3D(float32(1/pix[0]), float32(1/pix[1]), float32(1/pix[2]))
	return o.mvp(xform).Mul4(affine.ToMat4(o.iopts.VoxToDisplay())).Mul4(unscale)
}

func (o *imageBase) pixdim() mgl32.Vec3 {
	pix := o.image().Pixdim
	return mgl32.Vec3{float32(pix[0]), float32(pix[1]), float32(pix[2])}
}

// Tensor draws a diffusion tensor field as one ellipsoid per voxel.
type Tensor struct {
	imageBase
	topts  *models.TensorOpts
	tensor *models.TensorImage

	vecs  [3]imageSlot
	vals  [3]imageSlot
	glyph glyph
	prog  *gl.Program
}

// NewTensor creates a Tensor for ov, which must be a *models.TensorImage.
func NewTensor(env *Env, ov models.Overlay) (*Tensor, error) {
	tensor, ok := ov.(*models.TensorImage)
	if !ok {
		return nil, fmt.Errorf("overlay %s is not a tensor image", ov.Name())
	}
	t := &Tensor{tensor: tensor}
	if err := t.initImage(env, ov, models.TensorType); err != nil {
		return nil, err
	}
	t.topts = t.opts.(*models.TensorOpts)
	for i := range t.vecs {
		t.vecs[i] = t.slot(fmt.Sprintf("v%d", i+1))
		t.vals[i] = t.slot(fmt.Sprintf("l%d", i+1))
	}
	t.onChange = func(kind ChangeKind, _ string) error {
		if kind == TextureRefresh {
			t.glyph = newGlyph(t.topts.TensorResolution.Get())
		}
		return nil
	}
	var err error
	if t.prog, err = t.program("tensor"); err == nil {
		err = t.refreshTextures()
	}
	if err != nil {
		t.Destroy()
		return nil, err
	}
	t.glyph = newGlyph(t.topts.TensorResolution.Get())
	return t, nil
}

func (t *Tensor) refreshTextures() error {
	for i, img := range t.tensor.Eigenvectors() {
		if err := t.vecs[i].set(img, textures.ImageOptions{NVals: 3}); err != nil {
			return err
		}
	}
	for i, img := range t.tensor.Eigenvalues() {
		if err := t.vals[i].set(img, textures.ImageOptions{}); err != nil {
			return err
		}
	}
	return nil
}

// Ready implements GLObject.
func (t *Tensor) Ready() bool {
	if t.destroyed || !t.programsReady() {
		return false
	}
	for i := range t.vecs {
		if !t.vecs[i].ready() || !t.vals[i].ready() {
			return false
		}
	}
	return true
}

// eigValMax returns the largest absolute first eigenvalue.
func (t *Tensor) eigValMax() float64 {
	data := t.tensor.L1.Volume(0)
	if len(data) == 0 {
		return 1
	}
	m := math.Max(math.Abs(floats.Max(data)), math.Abs(floats.Min(data)))
	if m == 0 {
		return 1
	}
	return m
}

func (t *Tensor) updateShader() error {
	o := t.topts
	colours, suppress, _ := vectorColours(&o.VectorOpts, &t.base)
	shape := t.image().Shape3()
	u := map[string]any{
		"imageShape":  mgl32.Vec3{float32(shape[0]), float32(shape[1]), float32(shape[2])},
		"pixdim":      t.pixdim(),
		"eigValMax":   float32(t.eigValMax()),
		"tensorScale": float32(o.TensorScale.Get() / 100),
		"colours":     colours,
		"suppress":    suppress,
		"lighting":    o.Lighting.Get(),
		"lightPos":    vec3(t.view().LightPos),
		"alpha":       float32(t.alpha()),
	}
	for i := range t.vecs {
		u[fmt.Sprintf("v%dTexture", i+1)] = int32(i)
		u[fmt.Sprintf("l%dTexture", i+1)] = int32(i + 3)
	}
	return t.prog.SetAll(u)
}

// PreDraw implements GLObject.
func (t *Tensor) PreDraw() error {
	if t.shaderDirty {
		if err := t.updateShader(); err != nil {
			return err
		}
		t.shaderDirty = false
	}
	for i := range t.vecs {
		t.vecs[i].bind(i)
		t.vals[i].bind(i + 3)
	}
	return nil
}

// Draw2D implements GLObject. One glyph is drawn per voxel in the slice,
// as a single instanced draw.
func (t *Tensor) Draw2D(zpos float64, axes Axes, xform *mgl32.Mat4, bbox *models.Bounds) error {
	if !t.visible(zpos, axes) {
		return nil
	}
	voxels := t.slabVoxels(zpos, axes, bbox)
	if len(voxels) == 0 {
		return nil
	}
	inst := make([]float32, 0, 3*len(voxels))
	for _, v := range voxels {
		inst = append(inst, float32(v[0]), float32(v[1]), float32(v[2]))
	}

	t.prog.Load()
	if _, err := t.prog.Set("MVP", t.glyphMVP(xform)); err != nil {
		return err
	}
	if _, err := t.prog.Set("lightPos", vec3(t.view().LightPos)); err != nil {
		return err
	}
	be := t.backend()
	be.Enable(gl.DepthTest)
	defer be.Disable(gl.DepthTest)
	return be.DrawInstanced(gl.Triangles,
		gl.VertexData{Vertices: t.glyph.verts, Normals: t.glyph.normals, Indices: t.glyph.indices},
		gl.Instances{Count: len(voxels), Attribs: []gl.InstanceAttrib{{Name: "voxel", Comps: 3, Data: inst}}})
}

// DrawAll implements GLObject.
func (t *Tensor) DrawAll(axes Axes, zposes []float64, xforms []*mgl32.Mat4) error {
	return drawLoop(t, axes, zposes, xforms)
}

// PostDraw implements GLObject.
func (t *Tensor) PostDraw() error {
	for i := range t.vecs {
		t.vals[i].unbind(i + 3)
		t.vecs[i].unbind(i)
	}
	t.prog.Unload()
	return nil
}

// Destroy implements GLObject.
func (t *Tensor) Destroy() {
	if t.destroyBase() {
		for i := range t.vecs {
			t.vecs[i].release()
			t.vals[i].release()
		}
	}
}
