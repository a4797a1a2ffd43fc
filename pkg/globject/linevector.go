package globject

import (
	"math"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"gonum.org/v1/gonum/mat"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/affine"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/routines"
)

// lineKey identifies the inputs that line segment geometry depends on.
type lineKey struct {
	xform       [16]float64
	orientFlip  bool
	directed    bool
	unitLength  bool
	lengthScale float64
}

// segment is one vector line, in display coordinates, with the unit
// direction used to colour it.
type segment struct {
	start, end [3]float32
	dir        [3]float32
}

// LineVector draws a 3-volume vector image as one line per voxel.
type LineVector struct {
	imageBase
	lopts *models.LineVectorOpts
	aux   auxTextures
	prog  *gl.Program

	key   lineKey
	valid bool
	segs  []segment

	// generated counts geometry regenerations.
	generated int
}

// NewLineVector creates a LineVector for ov.
func NewLineVector(env *Env, ov models.Overlay) (*LineVector, error) {
	l := &LineVector{}
	if err := l.initImage(env, ov, models.LineVectorType); err != nil {
		return nil, err
	}
	l.lopts = l.opts.(*models.LineVectorOpts)
	l.aux = l.newAuxTextures()
	l.onChange = func(kind ChangeKind, _ string) error {
		switch kind {
		case TextureRefresh:
			return l.aux.refresh(&l.base, &l.lopts.VectorOpts)
		case GeometryRefresh:
			l.refresh()
		}
		return nil
	}
	var err error
	if l.prog, err = l.program("linevector"); err == nil {
		err = l.aux.refresh(&l.base, &l.lopts.VectorOpts)
	}
	if err != nil {
		l.Destroy()
		return nil, err
	}
	l.refresh()
	return l, nil
}

func (l *LineVector) currentKey() lineKey {
	o := l.lopts
	k := lineKey{
		orientFlip:  o.OrientFlip.Get(),
		directed:    o.Directed.Get(),
		unitLength:  o.UnitLength.Get(),
		lengthScale: o.LengthScale.Get(),
	}
	copy(k.xform[:], l.iopts.VoxToDisplay().RawMatrix().Data)
	return k
}

// refresh regenerates the line geometry if anything it depends on has
// changed, and reports whether it did.
func (l *LineVector) refresh() bool {
	key := l.currentKey()
	if l.valid && key == l.key {
		return false
	}
	l.segs = lineSegments(l.image(), l.iopts.VoxToDisplay(), key)
	l.key, l.valid = key, true
	l.generated++
	return true
}

// lineSegments computes one segment per voxel. Each vector is centred on
// its voxel, or starts at the voxel centre when directed. A unit length
// vector spans the smallest voxel dimension.
func lineSegments(img *models.Image, voxToDisplay *mat.Dense, key lineKey) []segment {
	shape := img.Shape3()
	vx, vy, vz := img.Volume(0), img.Volume(1), img.Volume(2)
	segs := make([]segment, img.NumVoxels())
	scale := float32(key.lengthScale / 100)

	// unit length vectors are one minimum pixdim long in world space
	minPix := math.Min(img.Pixdim[0], math.Min(img.Pixdim[1], img.Pixdim[2]))
	var unit [3]float32
	for ax := range unit {
		unit[ax] = 1
		if img.Pixdim[ax] > 0 && minPix > 0 {
			unit[ax] = float32(minPix / img.Pixdim[ax])
		}
	}

	for i := range segs {
		v := [3]float32{float32(vx[i]), float32(vy[i]), float32(vz[i])}
		if key.orientFlip {
			v[0] = -v[0]
		}
		n := math32.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
		if n == 0 {
			continue
		}
		var dir [3]float32
		for ax := range v {
			dir[ax] = v[ax] / n
			if key.unitLength {
				v[ax] = dir[ax] * unit[ax]
			}
			v[ax] *= scale
		}

		x := i % shape[0]
		y := (i / shape[0]) % shape[1]
		z := i / (shape[0] * shape[1])
		c := [3]float64{float64(x), float64(y), float64(z)}
		var s, e [3]float64
		for ax := range c {
			if key.directed {
				s[ax] = c[ax]
				e[ax] = c[ax] + float64(v[ax])/2
			} else {
				s[ax] = c[ax] - float64(v[ax])/2
				e[ax] = c[ax] + float64(v[ax])/2
			}
		}
		s, e = affine.Transform(voxToDisplay, s), affine.Transform(voxToDisplay, e)
		segs[i] = segment{
			start: [3]float32{float32(s[0]), float32(s[1]), float32(s[2])},
			end:   [3]float32{float32(e[0]), float32(e[1]), float32(e[2])},
			dir:   dir,
		}
	}
	return segs
}

// Ready implements GLObject.
func (l *LineVector) Ready() bool {
	return !l.destroyed && l.programsReady() && l.aux.ready()
}

func (l *LineVector) updateShader() error {
	u := l.aux.uniforms(&l.lopts.VectorOpts)
	shape := l.image().Shape3()
	u["imageShape"] = mgl32.Vec3{float32(shape[0]), float32(shape[1]), float32(shape[2])}
	u["displayToVox"] = affine.ToMat4(l.iopts.DisplayToVox())
	u["alpha"] = float32(l.alpha())
	return l.prog.SetAll(u)
}

// PreDraw implements GLObject.
func (l *LineVector) PreDraw() error {
	if l.shaderDirty {
		if err := l.updateShader(); err != nil {
			return err
		}
		l.shaderDirty = false
	}
	l.aux.bind()
	return nil
}

// lineColour returns the colour of a line with unit direction dir. With
// transparent suppression, lines dominated by a suppressed channel are
// fully transparent.
func lineColour(dir [3]float32, colours mgl32.Mat3, suppress mgl32.Vec3, transparent bool) [4]float32 {
	a := mgl32.Vec3{math32.Abs(dir[0]), math32.Abs(dir[1]), math32.Abs(dir[2])}
	c := colours.Mul3x1(a)
	alpha := float32(1)
	if transparent {
		dom := 0
		for ax := 1; ax < 3; ax++ {
			if a[ax] > a[dom] {
				dom = ax
			}
		}
		if suppress[dom] != 0 {
			alpha = 0
		}
	}
	return [4]float32{c[0], c[1], c[2], alpha}
}

// Draw2D implements GLObject.
func (l *LineVector) Draw2D(zpos float64, axes Axes, xform *mgl32.Mat4, bbox *models.Bounds) error {
	if !l.visible(zpos, axes) {
		return nil
	}
	l.refresh()

	img := l.image()
	shape := img.Shape3()
	zvox, ok := routines.SliceVoxel(shape, l.iopts.DisplayToVox(), axes.Z(), zpos, l.Bounds().Centre())
	if !ok {
		return nil
	}
	colours, suppress, transparent := vectorColours(&l.lopts.VectorOpts, &l.base)

	var lines, cols []float32
	for _, v := range routines.PointGrid(shape, axes.Z(), zvox, 1) {
		s := l.segs[img.Index(v[0], v[1], v[2], 0)]
		if s.dir == ([3]float32{}) {
			continue
		}
		if bbox != nil {
			mid := [3]float64{
				float64(s.start[0]+s.end[0]) / 2,
				float64(s.start[1]+s.end[1]) / 2,
				float64(s.start[2]+s.end[2]) / 2,
			}
			if !bbox.Contains(mid) {
				continue
			}
		}
		lines = append(lines, s.start[0], s.start[1], s.start[2], s.end[0], s.end[1], s.end[2])
		c := lineColour(s.dir, colours, suppress, transparent)
		// six vertices per widened line
		for i := 0; i < 6; i++ {
			cols = append(cols, c[:]...)
		}
	}
	if len(lines) == 0 {
		return nil
	}

	width := float32(l.lopts.LineWidth.Get() * l.view().PixelSize)
	d := axisDir(axes.Z())
	verts := routines.WidenLines(lines, width, [3]float32{float32(d[0]), float32(d[1]), float32(d[2])})

	l.prog.Load()
	if _, err := l.prog.Set("MVP", l.mvp(xform)); err != nil {
		return err
	}
	return l.backend().Draw(gl.Triangles, gl.VertexData{Vertices: verts, Colours: cols})
}

// DrawAll implements GLObject.
func (l *LineVector) DrawAll(axes Axes, zposes []float64, xforms []*mgl32.Mat4) error {
	return drawLoop(l, axes, zposes, xforms)
}

// PostDraw implements GLObject.
func (l *LineVector) PostDraw() error {
	l.aux.unbind()
	l.prog.Unload()
	return nil
}

// Destroy implements GLObject.
func (l *LineVector) Destroy() {
	if l.destroyBase() {
		l.aux.release()
		l.segs = nil
	}
}
