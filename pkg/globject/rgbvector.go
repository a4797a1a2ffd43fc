package globject

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/textures"
)

// Texture units used by vector programs.
const (
	vecDataUnit = iota
	vecModulateUnit
	vecClipUnit
	vecColourUnit
	vecCmapUnit
)

// channelColours builds the colour matrix for three channels, replacing
// suppressed channels with white or black, and applying brightness and
// contrast. The returned vector flags suppressed channels, and the bool
// is true when suppressed channels should become transparent.
func channelColours(cols [3]models.Colour, suppress [3]bool, mode models.SuppressMode, bright, contrast float64) (mgl32.Mat3, mgl32.Vec3, bool) {
	scale, offset := textures.BriconScaleOffset(bright, contrast)
	var flags mgl32.Vec3
	for i := range cols {
		if !suppress[i] {
			for c := 0; c < 3; c++ {
				cols[i][c] = math.Max(0, math.Min(1, (cols[i][c]-0.5)*scale+0.5+offset))
			}
			continue
		}
		flags[i] = 1
		if mode == models.SuppressWhite {
			cols[i] = models.RGB(1, 1, 1)
		} else {
			cols[i] = models.RGB(0, 0, 0)
		}
	}
	return colourMatrix(cols[0], cols[1], cols[2]), flags, mode == models.SuppressTransparent
}

// auxTextures are the optional modulate, clip and colour images of
// vector overlays.
type auxTextures struct {
	modulate imageSlot
	clip     imageSlot
	colour   imageSlot
	cmap     *textures.ColourMapTexture
}

func (o *imageBase) newAuxTextures() auxTextures {
	return auxTextures{
		modulate: o.slot("modulate"),
		clip:     o.slot("clip"),
		colour:   o.slot("colour"),
		cmap:     textures.NewColourMapTexture(o.env.Backend, o.name+"_cmap"),
	}
}

func (a *auxTextures) refresh(o *base, vo *models.VectorOpts) error {
	if err := a.modulate.set(vo.ModulateImage.Get(), textures.ImageOptions{}); err != nil {
		return err
	}
	if err := a.clip.set(vo.ClipImage.Get(), textures.ImageOptions{}); err != nil {
		return err
	}
	if err := a.colour.set(vo.ColourImage.Get(), textures.ImageOptions{}); err != nil {
		return err
	}
	return o.setCmap(a.cmap, vo.Cmap.Get(), 256, true)
}

func (a *auxTextures) ready() bool {
	return a.modulate.optionalReady() && a.clip.optionalReady() && a.colour.optionalReady() && a.cmap.Ready()
}

func (a *auxTextures) uniforms(vo *models.VectorOpts) map[string]any {
	mr, cr := vo.ModulateRange.Get(), vo.ClippingRange.Get()
	cmapXform := mgl32.Ident4()
	if img := vo.ColourImage.Get(); img != nil {
		lo, hi := img.DataRange()
		cmapXform = rangeXform(lo, hi, false)
	}
	return map[string]any{
		"modulateTexture":    int32(vecModulateUnit),
		"clipTexture":        int32(vecClipUnit),
		"colourImageTexture": int32(vecColourUnit),
		"cmapTexture":        int32(vecCmapUnit),
		"modValXform":        a.modulate.voxValXform(),
		"clipValXform":       a.clip.voxValXform(),
		"colourValXform":     a.colour.voxValXform(),
		"cmapXform":          cmapXform,
		"modulateRange":      mgl32.Vec2{float32(mr[0]), float32(mr[1])},
		"clipRange":          mgl32.Vec2{float32(cr[0]), float32(cr[1])},
		"useModulate":        a.modulate.tex != nil,
		"useClip":            a.clip.tex != nil,
		"useColourImage":     a.colour.tex != nil,
	}
}

func (a *auxTextures) bind() {
	a.modulate.bind(vecModulateUnit)
	a.clip.bind(vecClipUnit)
	a.colour.bind(vecColourUnit)
	a.cmap.Bind(vecCmapUnit)
}

func (a *auxTextures) unbind() {
	a.cmap.Unbind(vecCmapUnit)
	a.colour.unbind(vecColourUnit)
	a.clip.unbind(vecClipUnit)
	a.modulate.unbind(vecModulateUnit)
}

func (a *auxTextures) release() {
	a.modulate.release()
	a.clip.release()
	a.colour.release()
	a.cmap.Destroy()
}

func vectorColours(vo *models.VectorOpts, b *base) (mgl32.Mat3, mgl32.Vec3, bool) {
	bright, contrast := b.bricon()
	return channelColours(
		[3]models.Colour{vo.XColour.Get(), vo.YColour.Get(), vo.ZColour.Get()},
		[3]bool{vo.SuppressX.Get(), vo.SuppressY.Get(), vo.SuppressZ.Get()},
		vo.SuppressMode.Get(), bright, contrast)
}

// RGBVector draws a 3-volume vector image with each voxel coloured by the
// absolute value of its vector components.
type RGBVector struct {
	imageBase
	vopts *models.RGBVectorOpts
	data  imageSlot
	aux   auxTextures
	prog  *gl.Program
}

// NewRGBVector creates an RGBVector for ov.
func NewRGBVector(env *Env, ov models.Overlay) (*RGBVector, error) {
	v := &RGBVector{}
	if err := v.initImage(env, ov, models.RGBVectorType); err != nil {
		return nil, err
	}
	v.vopts = v.opts.(*models.RGBVectorOpts)
	v.data = v.slot("vector")
	v.aux = v.newAuxTextures()
	v.onChange = func(kind ChangeKind, _ string) error {
		if kind == TextureRefresh {
			return v.refreshTextures()
		}
		return nil
	}
	var err error
	if v.prog, err = v.program("rgbvector"); err == nil {
		err = v.refreshTextures()
	}
	if err != nil {
		v.Destroy()
		return nil, err
	}
	return v, nil
}

func (v *RGBVector) refreshTextures() error {
	o := v.vopts
	err := v.data.set(v.image(), textures.ImageOptions{
		NVals:         3,
		Resolution:    o.Resolution.Get(),
		Interpolation: filter(o.Interpolation.Get()),
	})
	if err != nil {
		return err
	}
	return v.aux.refresh(&v.base, &o.VectorOpts)
}

// Ready implements GLObject.
func (v *RGBVector) Ready() bool {
	return !v.destroyed && v.programsReady() && v.data.ready() && v.aux.ready()
}

func (v *RGBVector) updateShader() error {
	colours, suppress, transparent := vectorColours(&v.vopts.VectorOpts, &v.base)
	u := v.aux.uniforms(&v.vopts.VectorOpts)
	u["vectorTexture"] = int32(vecDataUnit)
	u["valXform"] = v.data.valScaleOffset()
	u["colours"] = colours
	u["suppress"] = suppress
	u["suppressTransparent"] = transparent
	u["alpha"] = float32(v.alpha())
	return v.prog.SetAll(u)
}

// PreDraw implements GLObject.
func (v *RGBVector) PreDraw() error {
	if v.shaderDirty {
		if err := v.updateShader(); err != nil {
			return err
		}
		v.shaderDirty = false
	}
	v.data.bind(vecDataUnit)
	v.aux.bind()
	return nil
}

// Draw2D implements GLObject.
func (v *RGBVector) Draw2D(zpos float64, axes Axes, xform *mgl32.Mat4, bbox *models.Bounds) error {
	return v.drawSlices(v.prog, axes, []float64{zpos}, []*mgl32.Mat4{xform}, bbox)
}

// DrawAll implements GLObject.
func (v *RGBVector) DrawAll(axes Axes, zposes []float64, xforms []*mgl32.Mat4) error {
	return v.drawSlices(v.prog, axes, zposes, xforms, nil)
}

// PostDraw implements GLObject.
func (v *RGBVector) PostDraw() error {
	v.aux.unbind()
	v.data.unbind(vecDataUnit)
	v.prog.Unload()
	return nil
}

// Destroy implements GLObject.
func (v *RGBVector) Destroy() {
	if v.destroyBase() {
		v.data.release()
		v.aux.release()
	}
}

// RGB draws a 3 or 4 volume image as red, green, blue and optionally
// alpha channels.
type RGB struct {
	imageBase
	ropts *models.RGBOpts
	data  imageSlot
	prog  *gl.Program
}

// NewRGB creates an RGB for ov.
func NewRGB(env *Env, ov models.Overlay) (*RGB, error) {
	r := &RGB{}
	if err := r.initImage(env, ov, models.RGBType); err != nil {
		return nil, err
	}
	r.ropts = r.opts.(*models.RGBOpts)
	r.data = r.slot("image")
	r.onChange = func(kind ChangeKind, _ string) error {
		if kind == TextureRefresh {
			return r.refreshTextures()
		}
		return nil
	}
	var err error
	if r.prog, err = r.program("rgb"); err == nil {
		err = r.refreshTextures()
	}
	if err != nil {
		r.Destroy()
		return nil, err
	}
	return r, nil
}

// nvals returns the number of channels stored: 4 when the image has an
// alpha volume, otherwise 3.
func (r *RGB) nvals() int {
	if r.image().NumVolumes() >= 4 {
		return 4
	}
	return 3
}

func (r *RGB) refreshTextures() error {
	o := r.ropts
	nvals := r.nvals()
	vol := min(o.Volume.Get(), r.image().NumVolumes()-nvals)
	return r.data.set(r.image(), textures.ImageOptions{
		Volume:        max(vol, 0),
		NVals:         nvals,
		Interpolation: filter(o.Interpolation.Get()),
	})
}

// Ready implements GLObject.
func (r *RGB) Ready() bool { return !r.destroyed && r.programsReady() && r.data.ready() }

func (r *RGB) updateShader() error {
	o := r.ropts
	bright, contrast := r.bricon()
	colours, suppress, transparent := channelColours(
		[3]models.Colour{o.RColour.Get(), o.GColour.Get(), o.BColour.Get()},
		[3]bool{o.SuppressR.Get(), o.SuppressG.Get(), o.SuppressB.Get()},
		o.SuppressMode.Get(), bright, contrast)
	return r.prog.SetAll(map[string]any{
		"imageTexture":        int32(0),
		"valXform":            r.data.valScaleOffset(),
		"colours":             colours,
		"suppress":            suppress,
		"suppressTransparent": transparent,
		"useAlpha":            r.nvals() == 4 && !o.SuppressA.Get(),
		"alpha":               float32(r.alpha()),
	})
}

// PreDraw implements GLObject.
func (r *RGB) PreDraw() error {
	if r.shaderDirty {
		if err := r.updateShader(); err != nil {
			return err
		}
		r.shaderDirty = false
	}
	r.data.bind(0)
	return nil
}

// Draw2D implements GLObject.
func (r *RGB) Draw2D(zpos float64, axes Axes, xform *mgl32.Mat4, bbox *models.Bounds) error {
	return r.drawSlices(r.prog, axes, []float64{zpos}, []*mgl32.Mat4{xform}, bbox)
}

// DrawAll implements GLObject.
func (r *RGB) DrawAll(axes Axes, zposes []float64, xforms []*mgl32.Mat4) error {
	return r.drawSlices(r.prog, axes, zposes, xforms, nil)
}

// PostDraw implements GLObject.
func (r *RGB) PostDraw() error {
	r.data.unbind(0)
	r.prog.Unload()
	return nil
}

// Destroy implements GLObject.
func (r *RGB) Destroy() {
	if r.destroyBase() {
		r.data.release()
	}
}
