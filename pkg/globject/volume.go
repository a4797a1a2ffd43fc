package globject

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/textures"
)

// Texture units used by volume programs.
const (
	volImageUnit = iota
	volCmapUnit
	volNegCmapUnit
	volClipUnit
)

// setCmap fills t with the named colour map, using the display's alpha,
// brightness and contrast.
func (b *base) setCmap(t *textures.ColourMapTexture, cmap string, res int, interp bool) error {
	colours, err := models.ColourMap(cmap, res, interp)
	if err != nil {
		return err
	}
	bright, contrast := b.bricon()
	return t.Set(textures.ColourMapOptions{
		Colours:     colours,
		Alpha:       b.alpha(),
		Brightness:  bright,
		Contrast:    contrast,
		Interpolate: interp,
	})
}

// Volume draws a scalar image through a colour map, with optional
// negative colour map, clipping and modulation.
type Volume struct {
	imageBase
	vopts *models.VolumeOpts

	data    imageSlot
	clip    imageSlot
	cmap    *textures.ColourMapTexture
	negCmap *textures.ColourMapTexture

	prog   *gl.Program
	prog3d *gl.Program
}

// NewVolume creates a Volume for ov.
func NewVolume(env *Env, ov models.Overlay) (*Volume, error) {
	v := &Volume{}
	if err := v.initImage(env, ov, models.VolumeType); err != nil {
		return nil, err
	}
	v.vopts = v.opts.(*models.VolumeOpts)
	v.data = v.slot("image")
	v.clip = v.slot("clip")
	v.cmap = textures.NewColourMapTexture(env.Backend, v.name+"_cmap")
	v.negCmap = textures.NewColourMapTexture(env.Backend, v.name+"_negcmap")
	v.onChange = v.changed

	var err error
	if v.prog, err = v.program("volume"); err == nil {
		v.prog3d, err = v.program("volume3d")
	}
	if err == nil {
		err = v.refreshTextures()
	}
	if err != nil {
		v.Destroy()
		return nil, err
	}
	return v, nil
}

func (v *Volume) changed(kind ChangeKind, _ string) error {
	if kind == TextureRefresh {
		return v.refreshTextures()
	}
	return nil
}

func (v *Volume) refreshTextures() error {
	o := v.vopts
	err := v.data.set(v.image(), textures.ImageOptions{
		Volume:        o.Volume.Get(),
		Resolution:    o.Resolution.Get(),
		Interpolation: filter(o.Interpolation.Get()),
	})
	if err != nil {
		return err
	}
	if err := v.clip.set(o.ClipImage.Get(), textures.ImageOptions{}); err != nil {
		return err
	}
	if err := v.setCmap(v.cmap, o.Cmap.Get(), o.CmapResolution.Get(), o.InterpolateCmaps.Get()); err != nil {
		return err
	}
	return v.setCmap(v.negCmap, o.NegativeCmap.Get(), o.CmapResolution.Get(), o.InterpolateCmaps.Get())
}

// Ready implements GLObject.
func (v *Volume) Ready() bool {
	return !v.destroyed && v.programsReady() && v.data.ready() && v.clip.optionalReady() &&
		v.cmap.Ready() && v.negCmap.Ready()
}

func (v *Volume) updateShader() error {
	o := v.vopts
	dlo, dhi := o.DisplayRange.Get()[0], o.DisplayRange.Get()[1]
	clo, chi := o.ClippingRange.Get()[0], o.ClippingRange.Get()[1]
	mlo, mhi := o.ModulateRange.Get()[0], o.ModulateRange.Get()[1]
	u := map[string]any{
		"imageTexture":     int32(volImageUnit),
		"colourTexture":    int32(volCmapUnit),
		"negColourTexture": int32(volNegCmapUnit),
		"clipTexture":      int32(volClipUnit),
		"modulateTexture":  int32(volImageUnit),
		"voxValXform":      v.data.voxValXform(),
		"cmapXform":        rangeXform(dlo, dhi, o.Invert.Get()),
		"clipping":         mgl32.Vec3{float32(clo), float32(chi), 0},
		"modulate":         mgl32.Vec3{float32(mlo), float32(mhi), 0},
		"invertClip":       o.InvertClipping.Get(),
		"useNegCmap":       o.UseNegativeCmap.Get(),
		"useClipImage":     v.clip.tex != nil,
		"modulateAlpha":    o.ModulateAlpha.Get(),
		"gamma":            float32(gammaExponent(o.Gamma.Get())),
	}
	if err := v.prog.SetAll(u); err != nil {
		return err
	}
	return v.prog3d.SetAll(map[string]any{
		"imageTexture":  int32(volImageUnit),
		"colourTexture": int32(volCmapUnit),
		"voxValXform":   v.data.voxValXform(),
		"cmapXform":     rangeXform(dlo, dhi, o.Invert.Get()),
		"clipping":      mgl32.Vec3{float32(clo), float32(chi), 0},
		"gamma":         float32(gammaExponent(o.Gamma.Get())),
		"alpha":         float32(v.alpha()),
	})
}

// PreDraw implements GLObject.
func (v *Volume) PreDraw() error {
	if v.shaderDirty {
		if err := v.updateShader(); err != nil {
			return err
		}
		v.shaderDirty = false
	}
	v.data.bind(volImageUnit)
	v.cmap.Bind(volCmapUnit)
	v.negCmap.Bind(volNegCmapUnit)
	v.clip.bind(volClipUnit)
	return nil
}

// Draw2D implements GLObject.
func (v *Volume) Draw2D(zpos float64, axes Axes, xform *mgl32.Mat4, bbox *models.Bounds) error {
	return v.drawSlices(v.prog, axes, []float64{zpos}, []*mgl32.Mat4{xform}, bbox)
}

// DrawAll implements GLObject. All slices are drawn in one call.
func (v *Volume) DrawAll(axes Axes, zposes []float64, xforms []*mgl32.Mat4) error {
	return v.drawSlices(v.prog, axes, zposes, xforms, nil)
}

// Draw3D implements Drawer3D by ray casting through the image bounding
// box.
func (v *Volume) Draw3D(xform *mgl32.Mat4, bbox *models.Bounds) error {
	view := v.view()
	if err := v.prog3d.SetAll(map[string]any{
		"cameraDir": v.texCameraDir(view.CameraDir),
		"numSteps":  int32(max(view.NumSteps, 1)),
	}); err != nil {
		return err
	}
	return v.drawBox(v.prog3d, xform, bbox)
}

// PostDraw implements GLObject.
func (v *Volume) PostDraw() error {
	v.clip.unbind(volClipUnit)
	v.negCmap.Unbind(volNegCmapUnit)
	v.cmap.Unbind(volCmapUnit)
	v.data.unbind(volImageUnit)
	v.prog.Unload()
	return nil
}

// Destroy implements GLObject.
func (v *Volume) Destroy() {
	if !v.destroyBase() {
		return
	}
	v.data.release()
	v.clip.release()
	v.cmap.Destroy()
	v.negCmap.Destroy()
}

// MIP draws a maximum (or minimum) intensity projection along the viewing
// axis.
type MIP struct {
	imageBase
	mopts *models.MIPOpts

	data imageSlot
	cmap *textures.ColourMapTexture
	prog *gl.Program
}

// NewMIP creates a MIP for ov.
func NewMIP(env *Env, ov models.Overlay) (*MIP, error) {
	m := &MIP{}
	if err := m.initImage(env, ov, models.MIPType); err != nil {
		return nil, err
	}
	m.mopts = m.opts.(*models.MIPOpts)
	m.data = m.slot("image")
	m.cmap = textures.NewColourMapTexture(env.Backend, m.name+"_cmap")
	m.onChange = func(kind ChangeKind, _ string) error {
		if kind == TextureRefresh {
			return m.refreshTextures()
		}
		return nil
	}

	var err error
	if m.prog, err = m.program("mip"); err == nil {
		err = m.refreshTextures()
	}
	if err != nil {
		m.Destroy()
		return nil, err
	}
	return m, nil
}

func (m *MIP) refreshTextures() error {
	o := m.mopts
	err := m.data.set(m.image(), textures.ImageOptions{
		Volume:        o.Volume.Get(),
		Resolution:    o.Resolution.Get(),
		Interpolation: filter(o.Interpolation.Get()),
	})
	if err != nil {
		return err
	}
	return m.setCmap(m.cmap, o.Cmap.Get(), o.CmapResolution.Get(), o.InterpolateCmaps.Get())
}

// Ready implements GLObject.
func (m *MIP) Ready() bool {
	return !m.destroyed && m.programsReady() && m.data.ready() && m.cmap.Ready()
}

func (m *MIP) updateShader() error {
	o := m.mopts
	dr, cr := o.DisplayRange.Get(), o.ClippingRange.Get()
	return m.prog.SetAll(map[string]any{
		"imageTexture":  int32(volImageUnit),
		"colourTexture": int32(volCmapUnit),
		"voxValXform":   m.data.voxValXform(),
		"cmapXform":     rangeXform(dr[0], dr[1], o.Invert.Get()),
		"clipping":      mgl32.Vec2{float32(cr[0]), float32(cr[1])},
		"window":        float32(o.Window.Get() / 100),
		"useMinimum":    o.Minimum.Get(),
		"useAbsolute":   o.Absolute.Get(),
	})
}

// PreDraw implements GLObject.
func (m *MIP) PreDraw() error {
	if m.shaderDirty {
		if err := m.updateShader(); err != nil {
			return err
		}
		m.shaderDirty = false
	}
	m.data.bind(volImageUnit)
	m.cmap.Bind(volCmapUnit)
	return nil
}

func (m *MIP) setRay(dir [3]float64) error {
	return m.prog.SetAll(map[string]any{
		"cameraDir": m.texCameraDir(dir),
		"numSteps":  int32(max(m.view().NumSteps, 1)),
	})
}

// Draw2D implements GLObject. The projection is taken along the depth
// axis, so every visible depth gives the same image.
func (m *MIP) Draw2D(zpos float64, axes Axes, xform *mgl32.Mat4, bbox *models.Bounds) error {
	if err := m.setRay(axisDir(axes.Z())); err != nil {
		return err
	}
	return m.drawSlices(m.prog, axes, []float64{zpos}, []*mgl32.Mat4{xform}, bbox)
}

// DrawAll implements GLObject.
func (m *MIP) DrawAll(axes Axes, zposes []float64, xforms []*mgl32.Mat4) error {
	if err := m.setRay(axisDir(axes.Z())); err != nil {
		return err
	}
	return m.drawSlices(m.prog, axes, zposes, xforms, nil)
}

// Draw3D implements Drawer3D, projecting along the camera direction.
func (m *MIP) Draw3D(xform *mgl32.Mat4, bbox *models.Bounds) error {
	if err := m.setRay(m.view().CameraDir); err != nil {
		return err
	}
	return m.drawBox(m.prog, xform, bbox)
}

// PostDraw implements GLObject.
func (m *MIP) PostDraw() error {
	m.cmap.Unbind(volCmapUnit)
	m.data.unbind(volImageUnit)
	m.prog.Unload()
	return nil
}

// Destroy implements GLObject.
func (m *MIP) Destroy() {
	if !m.destroyBase() {
		return
	}
	m.data.release()
	m.cmap.Destroy()
}
