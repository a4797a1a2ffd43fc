package globject

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/textures"
)

// Texture units used by the SH program.
const (
	shRadiusUnit = iota
	shCmapUnit
)

// SHCoefficients returns the number of coefficients of a symmetric SH
// basis of the given even order.
func SHCoefficients(order int) int { return (order + 1) * (order + 2) / 2 }

// legendre returns the associated Legendre polynomial P_l^m(x), for
// 0 <= m <= l, without the Condon-Shortley phase.
func legendre(l, m int, x float64) float64 {
	pmm := 1.0
	if m > 0 {
		s := math.Sqrt((1 - x) * (1 + x))
		f := 1.0
		for i := 1; i <= m; i++ {
			pmm *= f * s
			f += 2
		}
	}
	if l == m {
		return pmm
	}
	pmmp1 := x * float64(2*m+1) * pmm
	if l == m+1 {
		return pmmp1
	}
	var pll float64
	for ll := m + 2; ll <= l; ll++ {
		pll = (x*float64(2*ll-1)*pmmp1 - float64(ll+m-1)*pmm) / float64(ll-m)
		pmm, pmmp1 = pmmp1, pll
	}
	return pll
}

func shNorm(l, m int) float64 {
	r := 1.0
	for i := l - m + 1; i <= l+m; i++ {
		r /= float64(i)
	}
	return math.Sqrt(float64(2*l+1) / (4 * math.Pi) * r)
}

// SHBasis returns the real symmetric SH basis of the given order, sampled
// at (inclination, azimuth) angles: one row per angle, one column per
// coefficient, ordered by degree l = 0, 2, ... and order m = -l..l.
func SHBasis(order int, angles [][2]float64) *mat.Dense {
	basis := mat.NewDense(len(angles), SHCoefficients(order), nil)
	for i, a := range angles {
		theta, phi := a[0], a[1]
		x := math.Cos(theta)
		col := 0
		for l := 0; l <= order; l += 2 {
			for m := -l; m <= l; m++ {
				am := m
				if am < 0 {
					am = -am
				}
				v := shNorm(l, am) * legendre(l, am, x)
				switch {
				case m < 0:
					v *= math.Sqrt2 * math.Sin(float64(am)*phi)
				case m > 0:
					v *= math.Sqrt2 * math.Cos(float64(m)*phi)
				}
				basis.Set(i, col, v)
				col++
			}
		}
	}
	return basis
}

// shKey identifies the inputs of one radius computation.
type shKey struct {
	zax, zvox int
	res       int
	order     int
	threshold float64
	normalise bool
	bbox      models.Bounds
	hasBBox   bool
}

// SH draws spherical harmonic coefficient images as one FOD glyph per
// voxel.
type SH struct {
	imageBase
	sopts *models.SHOpts

	glyph  glyph
	basis  *mat.Dense
	radius *textures.RadiusTexture
	cmap   *textures.ColourMapTexture
	prog   *gl.Program

	key     shKey
	valid   bool
	voxels  [][3]int
	radii   []float64
	radiusR [2]float64
}

// NewSH creates an SH for ov.
func NewSH(env *Env, ov models.Overlay) (*SH, error) {
	s := &SH{}
	if err := s.initImage(env, ov, models.SHType); err != nil {
		return nil, err
	}
	s.sopts = s.opts.(*models.SHOpts)
	s.radius = textures.NewRadiusTexture(env.Backend, env.Probe, s.name+"_radius")
	s.cmap = textures.NewColourMapTexture(env.Backend, s.name+"_cmap")
	s.onChange = func(kind ChangeKind, prop string) error {
		switch {
		case kind == TextureRefresh:
			s.refreshBasis()
		case prop == models.CmapProp:
			return s.setCmap(s.cmap, s.sopts.Cmap.Get(), 256, true)
		}
		return nil
	}
	var err error
	if s.prog, err = s.program("sh"); err == nil {
		err = s.setCmap(s.cmap, s.sopts.Cmap.Get(), 256, true)
	}
	if err != nil {
		s.Destroy()
		return nil, err
	}
	s.refreshBasis()
	return s, nil
}

// order returns the SH order in use, limited by the number of
// coefficient volumes.
func (s *SH) order() int {
	maxOrder, _ := models.SHOrderForVolumes(s.image().NumVolumes())
	o := s.sopts.SHOrder.Get()
	if o > maxOrder || o < 0 {
		o = maxOrder
	}
	return o - o%2
}

func (s *SH) refreshBasis() {
	s.glyph = newGlyph(s.sopts.SHResolution.Get())
	s.basis = SHBasis(s.order(), s.glyph.angles)
	s.valid = false
}

// Radii computes the glyph radii for voxels, voxel-major and
// vertex-minor. Voxels outside the image, and voxels whose radii are all
// below the radius threshold, are dropped; the kept voxels are returned
// with their radii.
func (s *SH) Radii(voxels [][3]int) ([][3]int, []float64) {
	img := s.image()
	ncoefs := SHCoefficients(s.order())
	threshold := s.sopts.RadiusThreshold.Get()
	normalise := s.sopts.Normalise.Get()

	var inb [][3]int
	for _, v := range voxels {
		if img.InBounds(v) {
			inb = append(inb, v)
		}
	}
	if len(inb) == 0 {
		return nil, nil
	}

	coefs := mat.NewDense(ncoefs, len(inb), nil)
	for j, v := range inb {
		for c := 0; c < ncoefs; c++ {
			coefs.Set(c, j, img.Value(v[0], v[1], v[2], c))
		}
	}
	var radii mat.Dense
	radii.Mul(s.basis, coefs)

	nverts := s.glyph.nverts
	kept := inb[:0]
	out := make([]float64, 0, nverts*len(inb))
	col := make([]float64, nverts)
	for j, v := range inb {
		mat.Col(col, j, &radii)
		if floats.Max(col) < threshold {
			continue
		}
		if normalise {
			lo, hi := floats.Min(col), floats.Max(col)
			if hi > lo {
				for i := range col {
					col[i] = 0.5 * (col[i] - lo) / (hi - lo)
				}
			} else {
				for i := range col {
					col[i] = 0.5
				}
			}
		}
		kept = append(kept, v)
		out = append(out, col...)
	}
	return kept, out
}

func (s *SH) currentKey(zax, zvox int, bbox *models.Bounds) shKey {
	o := s.sopts
	k := shKey{
		zax:       zax,
		zvox:      zvox,
		res:       o.SHResolution.Get(),
		order:     s.order(),
		threshold: o.RadiusThreshold.Get(),
		normalise: o.Normalise.Get(),
	}
	if bbox != nil {
		k.bbox, k.hasBBox = *bbox, true
	}
	return k
}

// update recomputes and uploads the radii of the slice at zpos if needed.
func (s *SH) update(zpos float64, axes Axes, bbox *models.Bounds) error {
	voxels := s.slabVoxels(zpos, axes, bbox)
	if len(voxels) == 0 {
		s.voxels, s.radii = nil, nil
		s.valid = false
		return nil
	}
	key := s.currentKey(axes.Z(), voxels[0][axes.Z()], bbox)
	if s.valid && key == s.key {
		return nil
	}
	kept, radii := s.Radii(voxels)
	s.voxels, s.radii = kept, radii
	s.key, s.valid = key, true
	if len(radii) == 0 {
		return nil
	}
	s.radiusR = [2]float64{floats.Min(radii), floats.Max(radii)}
	return s.radius.Set(radii)
}

// Ready implements GLObject.
func (s *SH) Ready() bool {
	return !s.destroyed && s.programsReady() && s.cmap.Ready()
}

func (s *SH) updateShader() error {
	o := s.sopts
	colours, _, _ := vectorColours(&o.VectorOpts, &s.base)
	pix := s.image().Pixdim
	return s.prog.SetAll(map[string]any{
		"radiusTexture":     int32(shRadiusUnit),
		"cmapTexture":       int32(shCmapUnit),
		"pixdim":            s.pixdim(),
		"sizeScaling":       float32(o.Size.Get() / 100 * math.Min(pix[0], math.Min(pix[1], pix[2]))),
		"colours":           colours,
		"colourByDirection": o.ColourMode.Get() == models.SHColourByDirection,
		"lighting":          o.Lighting.Get(),
		"alpha":             float32(s.alpha()),
	})
}

// PreDraw implements GLObject.
func (s *SH) PreDraw() error {
	if s.shaderDirty {
		if err := s.updateShader(); err != nil {
			return err
		}
		s.shaderDirty = false
	}
	s.cmap.Bind(shCmapUnit)
	return nil
}

// Draw2D implements GLObject.
func (s *SH) Draw2D(zpos float64, axes Axes, xform *mgl32.Mat4, bbox *models.Bounds) error {
	if !s.visible(zpos, axes) {
		return nil
	}
	if err := s.update(zpos, axes, bbox); err != nil {
		return err
	}
	if len(s.voxels) == 0 {
		return nil
	}

	vox := make([]float32, 0, 3*len(s.voxels))
	idx := make([]float32, len(s.voxels))
	for i, v := range s.voxels {
		vox = append(vox, float32(v[0]), float32(v[1]), float32(v[2]))
		idx[i] = float32(i)
	}
	vertIdx := make([]float32, s.glyph.nverts)
	for i := range vertIdx {
		vertIdx[i] = float32(i)
	}
	shape := s.radius.Shape()

	s.prog.Load()
	err := s.prog.SetAll(map[string]any{
		"MVP":         s.glyphMVP(xform),
		"radTexShape": mgl32.Vec3{float32(shape[0]), float32(shape[1]), float32(shape[2])},
		"numVertices": float32(s.glyph.nverts),
		"cmapXform":   rangeXform(s.radiusR[0], s.radiusR[1], false),
		"lightPos":    vec3(s.view().LightPos),
	})
	if err != nil {
		return err
	}
	be := s.backend()
	s.radius.Bind(shRadiusUnit)
	be.Enable(gl.DepthTest)
	defer be.Disable(gl.DepthTest)
	return be.DrawInstanced(gl.Triangles,
		gl.VertexData{
			Vertices:  s.glyph.verts,
			TexCoords: vertIdx,
			TexComps:  1,
			Indices:   s.glyph.indices,
		},
		gl.Instances{Count: len(s.voxels), Attribs: []gl.InstanceAttrib{
			{Name: "voxel", Comps: 3, Data: vox},
			{Name: "voxelIndex", Comps: 1, Data: idx},
		}})
}

// DrawAll implements GLObject.
func (s *SH) DrawAll(axes Axes, zposes []float64, xforms []*mgl32.Mat4) error {
	return drawLoop(s, axes, zposes, xforms)
}

// PostDraw implements GLObject.
func (s *SH) PostDraw() error {
	s.cmap.Unbind(shCmapUnit)
	if s.radius.Ready() {
		s.radius.Unbind(shRadiusUnit)
	}
	s.prog.Unload()
	return nil
}

// Destroy implements GLObject.
func (s *SH) Destroy() {
	if s.destroyBase() {
		s.radius.Destroy()
		s.cmap.Destroy()
	}
}
