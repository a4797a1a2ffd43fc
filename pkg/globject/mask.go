package globject

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/affine"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/textures"
)

// Mask draws the voxels of an image within a threshold range in a single
// colour, filled or outlined.
type Mask struct {
	imageBase
	mopts *models.MaskOpts
	data  imageSlot
	prog  *gl.Program
}

// NewMask creates a Mask for ov.
func NewMask(env *Env, ov models.Overlay) (*Mask, error) {
	m := &Mask{}
	if err := m.initImage(env, ov, models.MaskType); err != nil {
		return nil, err
	}
	m.mopts = m.opts.(*models.MaskOpts)
	m.data = m.slot("image")
	m.onChange = func(kind ChangeKind, _ string) error {
		if kind == TextureRefresh {
			return m.refreshTextures()
		}
		return nil
	}
	var err error
	if m.prog, err = m.program("mask"); err == nil {
		err = m.refreshTextures()
	}
	if err != nil {
		m.Destroy()
		return nil, err
	}
	return m, nil
}

func (m *Mask) refreshTextures() error {
	o := m.mopts
	return m.data.set(m.image(), textures.ImageOptions{
		Volume:        o.Volume.Get(),
		Resolution:    o.Resolution.Get(),
		Interpolation: filter(o.Interpolation.Get()),
	})
}

// Ready implements GLObject.
func (m *Mask) Ready() bool { return !m.destroyed && m.programsReady() && m.data.ready() }

func (m *Mask) updateShader() error {
	o := m.mopts
	colour := o.Colour.Get()
	colour[3] *= m.alpha()
	thres := o.Threshold.Get()
	return m.prog.SetAll(map[string]any{
		"imageTexture": int32(0),
		"voxValXform":  m.data.voxValXform(),
		"threshold":    mgl32.Vec2{float32(thres[0]), float32(thres[1])},
		"invert":       o.Invert.Get(),
		"outline":      o.Outline.Get(),
		"colour":       vec4(colour),
	})
}

// PreDraw implements GLObject.
func (m *Mask) PreDraw() error {
	if m.shaderDirty {
		if err := m.updateShader(); err != nil {
			return err
		}
		m.shaderDirty = false
	}
	m.data.bind(0)
	return nil
}

func (m *Mask) setOffsets(axes Axes) error {
	_, err := m.prog.Set("offsets", outlineOffsets(float64(m.mopts.OutlineWidth.Get()), m.data.shape(), axes))
	return err
}

// Draw2D implements GLObject.
func (m *Mask) Draw2D(zpos float64, axes Axes, xform *mgl32.Mat4, bbox *models.Bounds) error {
	if err := m.setOffsets(axes); err != nil {
		return err
	}
	return m.drawSlices(m.prog, axes, []float64{zpos}, []*mgl32.Mat4{xform}, bbox)
}

// DrawAll implements GLObject.
func (m *Mask) DrawAll(axes Axes, zposes []float64, xforms []*mgl32.Mat4) error {
	if err := m.setOffsets(axes); err != nil {
		return err
	}
	return m.drawSlices(m.prog, axes, zposes, xforms, nil)
}

// PostDraw implements GLObject.
func (m *Mask) PostDraw() error {
	m.data.unbind(0)
	m.prog.Unload()
	return nil
}

// Destroy implements GLObject.
func (m *Mask) Destroy() {
	if m.destroyBase() {
		m.data.release()
	}
}

// Label draws a label image through a lookup table.
type Label struct {
	imageBase
	lopts *models.LabelOpts
	data  imageSlot
	lut   *textures.LookupTexture
	prog  *gl.Program
}

// NewLabel creates a Label for ov.
func NewLabel(env *Env, ov models.Overlay) (*Label, error) {
	l := &Label{}
	if err := l.initImage(env, ov, models.LabelType); err != nil {
		return nil, err
	}
	l.lopts = l.opts.(*models.LabelOpts)
	l.data = l.slot("image")
	l.lut = textures.NewLookupTexture(env.Backend, l.name+"_lut")
	l.onChange = func(kind ChangeKind, _ string) error {
		if kind == TextureRefresh {
			return l.refreshTextures()
		}
		return nil
	}
	var err error
	if l.prog, err = l.program("label"); err == nil {
		err = l.refreshTextures()
	}
	if err != nil {
		l.Destroy()
		return nil, err
	}
	return l, nil
}

func (l *Label) refreshTextures() error {
	o := l.lopts
	err := l.data.set(l.image(), textures.ImageOptions{
		Volume:     o.Volume.Get(),
		Resolution: o.Resolution.Get(),
	})
	if err != nil {
		return err
	}
	return l.lut.Set(o.Lut.Get(), 1)
}

// Ready implements GLObject.
func (l *Label) Ready() bool {
	return !l.destroyed && l.programsReady() && l.data.ready() && l.lut.Ready()
}

func (l *Label) updateShader() error {
	o := l.lopts
	return l.prog.SetAll(map[string]any{
		"imageTexture": int32(0),
		"lutTexture":   int32(1),
		"voxValXform":  l.data.voxValXform(),
		"numLabels":    float32(l.lut.NumLabels()),
		"outline":      o.Outline.Get(),
		"alpha":        float32(l.alpha()),
	})
}

// PreDraw implements GLObject.
func (l *Label) PreDraw() error {
	if l.shaderDirty {
		if err := l.updateShader(); err != nil {
			return err
		}
		l.shaderDirty = false
	}
	l.data.bind(0)
	l.lut.Bind(1)
	return nil
}

func (l *Label) setOffsets(axes Axes) error {
	_, err := l.prog.Set("offsets", outlineOffsets(float64(l.lopts.OutlineWidth.Get()), l.data.shape(), axes))
	return err
}

// Draw2D implements GLObject.
func (l *Label) Draw2D(zpos float64, axes Axes, xform *mgl32.Mat4, bbox *models.Bounds) error {
	if err := l.setOffsets(axes); err != nil {
		return err
	}
	return l.drawSlices(l.prog, axes, []float64{zpos}, []*mgl32.Mat4{xform}, bbox)
}

// DrawAll implements GLObject.
func (l *Label) DrawAll(axes Axes, zposes []float64, xforms []*mgl32.Mat4) error {
	if err := l.setOffsets(axes); err != nil {
		return err
	}
	return l.drawSlices(l.prog, axes, zposes, xforms, nil)
}

// PostDraw implements GLObject.
func (l *Label) PostDraw() error {
	l.lut.Unbind(1)
	l.data.unbind(0)
	l.prog.Unload()
	return nil
}

// Destroy implements GLObject.
func (l *Label) Destroy() {
	if l.destroyBase() {
		l.data.release()
		l.lut.Destroy()
	}
}

// LabelAt returns the label value and name at a display location, for
// the canvas to show when label names are enabled.
func (l *Label) LabelAt(p [3]float64) (int, string, bool) {
	img := l.image()
	f := affine.Transform(l.iopts.DisplayToVox(), p)
	v := [3]int{int(math.Round(f[0])), int(math.Round(f[1])), int(math.Round(f[2]))}
	if !img.InBounds(v) {
		return 0, "", false
	}
	val := img.LabelValue(v, l.lopts.Volume.Get())
	lbl, ok := l.lopts.Lut.Get().Get(val)
	if !ok {
		return val, "", true
	}
	return val, lbl.Name, true
}

// ShowNames reports whether label names should be drawn.
func (l *Label) ShowNames() bool { return l.lopts.ShowNames.Get() }
