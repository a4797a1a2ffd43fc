package models

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/pauldmccarthy/fsleyes-sub001/pkg/affine"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/props"
)

// Option property names. GLObjects listen for these to decide how much
// work a change requires.
const (
	VolumeProp           = "volume"
	TransformProp        = "transform"
	CustomXformProp      = "customXform"
	ResolutionProp       = "resolution"
	DisplayRangeProp     = "displayRange"
	ClippingRangeProp    = "clippingRange"
	ModulateRangeProp    = "modulateRange"
	InvertClippingProp   = "invertClipping"
	InvertProp           = "invert"
	GammaProp            = "gamma"
	CmapProp             = "cmap"
	NegativeCmapProp     = "negativeCmap"
	UseNegativeCmapProp  = "useNegativeCmap"
	CmapResolutionProp   = "cmapResolution"
	InterpolateCmapsProp = "interpolateCmaps"
	InterpolationProp    = "interpolation"
	ModulateAlphaProp    = "modulateAlpha"
	ClipImageProp        = "clipImage"
	ThresholdProp        = "threshold"
	ColourProp           = "colour"
	OutlineProp          = "outline"
	OutlineWidthProp     = "outlineWidth"
	LutProp              = "lut"
	ShowNamesProp        = "showNames"
	XColourProp          = "xColour"
	YColourProp          = "yColour"
	ZColourProp          = "zColour"
	SuppressXProp        = "suppressX"
	SuppressYProp        = "suppressY"
	SuppressZProp        = "suppressZ"
	SuppressModeProp     = "suppressMode"
	ModulateImageProp    = "modulateImage"
	ColourImageProp      = "colourImage"
	LineWidthProp        = "lineWidth"
	DirectedProp         = "directed"
	UnitLengthProp       = "unitLength"
	LengthScaleProp      = "lengthScale"
	OrientFlipProp       = "orientFlip"
	TensorResolutionProp = "tensorResolution"
	TensorScaleProp      = "tensorScale"
	LightingProp         = "lighting"
	SHResolutionProp     = "shResolution"
	SHOrderProp          = "shOrder"
	RadiusThresholdProp  = "radiusThreshold"
	NormaliseProp        = "normalise"
	SizeProp             = "size"
	ColourModeProp       = "colourMode"
	VertexDataProp       = "vertexData"
	VertexDataIndexProp  = "vertexDataIndex"
	VertexDataRangeProp  = "vertexDataRange"
	RefImageProp         = "refImage"
	CoordSpaceProp       = "coordSpace"
	FlatShadingProp      = "flatShading"
	WindowProp           = "window"
	MinimumProp          = "minimum"
	AbsoluteProp         = "absolute"
	RColourProp          = "rColour"
	GColourProp          = "gColour"
	BColourProp          = "bColour"
	SuppressRProp        = "suppressR"
	SuppressGProp        = "suppressG"
	SuppressBProp        = "suppressB"
	SuppressAProp        = "suppressA"
)

// TransformMode selects the voxel to display transform of an image.
type TransformMode int

const (
	AffineTransform TransformMode = iota
	PixdimTransform
	IDTransform
	CustomTransform
)

var transformNames = [...]string{"affine", "pixdim", "id", "custom"}

func (m TransformMode) String() string { return transformNames[m] }

// Interpolation selects texture sampling.
type Interpolation int

const (
	NoInterpolation Interpolation = iota
	LinearInterpolation
	SplineInterpolation
)

func (i Interpolation) String() string {
	return [...]string{"none", "linear", "spline"}[i]
}

// SuppressMode controls what replaces a suppressed vector/RGB channel.
type SuppressMode int

const (
	SuppressWhite SuppressMode = iota
	SuppressBlack
	SuppressTransparent
)

// SHColourMode selects how FOD glyphs are coloured.
type SHColourMode int

const (
	SHColourByRadius SHColourMode = iota
	SHColourByDirection
)

// Opts is implemented by every DisplayOptions variant.
type Opts interface {
	// Notifier returns the notifier fired when any option changes.
	Notifier() *props.Notifier

	// Type returns the overlay type these options are for.
	Type() OverlayType

	// Overlay returns the overlay these options are for.
	Overlay() Overlay

	// DisplayBounds returns the overlay bounds in the display coordinate
	// system.
	DisplayBounds() Bounds
}

// ImageOpts holds the options common to every image-based overlay type.
type ImageOpts struct {
	n       props.Notifier
	overlay Overlay
	image   *Image
	otype   OverlayType

	Volume      *props.Prop[int]
	Transform   *props.Prop[TransformMode]
	CustomXform *props.Value[*mat.Dense]

	// Resolution is the requested texture resolution in mm; zero means
	// native resolution.
	Resolution *props.Prop[float64]
}

func (o *ImageOpts) initImage(ov Overlay, img *Image, t OverlayType) {
	o.overlay = ov
	o.image = img
	o.otype = t
	o.Volume = props.New(&o.n, VolumeProp, 0)
	o.Transform = props.New(&o.n, TransformProp, AffineTransform)
	o.CustomXform = props.NewValue[*mat.Dense](&o.n, CustomXformProp, nil)
	o.Resolution = props.New(&o.n, ResolutionProp, 0.0)
}

// Notifier implements Opts.
func (o *ImageOpts) Notifier() *props.Notifier { return &o.n }

// Type implements Opts.
func (o *ImageOpts) Type() OverlayType { return o.otype }

// Overlay implements Opts.
func (o *ImageOpts) Overlay() Overlay { return o.overlay }

// Image returns the image which defines the overlay geometry.
func (o *ImageOpts) Image() *Image { return o.image }

// ImageOptions returns the options shared by every image type.
func (o *ImageOpts) ImageOptions() *ImageOpts { return o }

// VoxToDisplay returns the current voxel to display transform.
func (o *ImageOpts) VoxToDisplay() *mat.Dense {
	switch o.Transform.Get() {
	case IDTransform:
		return affine.Identity()
	case PixdimTransform:
		return affine.ScaleOffset(o.image.Pixdim, [3]float64{})
	case CustomTransform:
		if x := o.CustomXform.Get(); x != nil {
			return x
		}
	}
	return o.image.VoxToWorld()
}

// DisplayToVox returns the inverse of VoxToDisplay.
func (o *ImageOpts) DisplayToVox() *mat.Dense {
	inv, err := affine.Invert(o.VoxToDisplay())
	if err != nil {
		return o.image.WorldToVox()
	}
	return inv
}

// DisplayBounds implements Opts.
func (o *ImageOpts) DisplayBounds() Bounds {
	lo, hi := affine.VoxelBounds(o.image.Shape3(), o.VoxToDisplay())
	return Bounds{Lo: lo, Hi: hi}
}

// VolumeOpts are the options for greyscale/colour-mapped volumes.
type VolumeOpts struct {
	ImageOpts

	DisplayRange     *props.Prop[[2]float64]
	ClippingRange    *props.Prop[[2]float64]
	ModulateRange    *props.Prop[[2]float64]
	InvertClipping   *props.Prop[bool]
	Invert           *props.Prop[bool]
	Gamma            *props.Prop[float64]
	Cmap             *props.Prop[string]
	NegativeCmap     *props.Prop[string]
	UseNegativeCmap  *props.Prop[bool]
	CmapResolution   *props.Prop[int]
	InterpolateCmaps *props.Prop[bool]
	Interpolation    *props.Prop[Interpolation]
	ModulateAlpha    *props.Prop[bool]
	ClipImage        *props.Value[*Image]
}

// NewVolumeOpts creates volume options with a robust default display
// range.
func NewVolumeOpts(img *Image) *VolumeOpts {
	o := &VolumeOpts{}
	o.initImage(img, img, VolumeType)
	o.initVolume(img)
	return o
}

func (o *VolumeOpts) initVolume(img *Image) {
	dlo, dhi := img.DataRange()
	rlo, rhi := img.RobustRange()
	o.DisplayRange = props.New(&o.n, DisplayRangeProp, [2]float64{rlo, rhi})
	o.ClippingRange = props.New(&o.n, ClippingRangeProp, [2]float64{dlo, dhi + 1e-6*(dhi-dlo+1)})
	o.ModulateRange = props.New(&o.n, ModulateRangeProp, [2]float64{dlo, dhi})
	o.InvertClipping = props.New(&o.n, InvertClippingProp, false)
	o.Invert = props.New(&o.n, InvertProp, false)
	o.Gamma = props.New(&o.n, GammaProp, 0.0)
	o.Cmap = props.New(&o.n, CmapProp, "greyscale")
	o.NegativeCmap = props.New(&o.n, NegativeCmapProp, "greyscale")
	o.UseNegativeCmap = props.New(&o.n, UseNegativeCmapProp, false)
	o.CmapResolution = props.New(&o.n, CmapResolutionProp, 256)
	o.InterpolateCmaps = props.New(&o.n, InterpolateCmapsProp, true)
	o.Interpolation = props.New(&o.n, InterpolationProp, NoInterpolation)
	o.ModulateAlpha = props.New(&o.n, ModulateAlphaProp, false)
	o.ClipImage = props.NewValue[*Image](&o.n, ClipImageProp, nil)
}

// MIPOpts are the options for maximum intensity projections.
type MIPOpts struct {
	VolumeOpts

	// Window is the projection depth as a percentage of the image extent
	// along the viewing axis.
	Window   *props.Prop[float64]
	Minimum  *props.Prop[bool]
	Absolute *props.Prop[bool]
}

// NewMIPOpts creates MIP options.
func NewMIPOpts(img *Image) *MIPOpts {
	o := &MIPOpts{}
	o.initImage(img, img, MIPType)
	o.initVolume(img)
	o.Window = props.New(&o.n, WindowProp, 50.0)
	o.Minimum = props.New(&o.n, MinimumProp, false)
	o.Absolute = props.New(&o.n, AbsoluteProp, false)
	return o
}

// MaskOpts are the options for binary masks.
type MaskOpts struct {
	ImageOpts

	Threshold     *props.Prop[[2]float64]
	Invert        *props.Prop[bool]
	Colour        *props.Prop[Colour]
	Outline       *props.Prop[bool]
	OutlineWidth  *props.Prop[int]
	Interpolation *props.Prop[Interpolation]
}

// NewMaskOpts creates mask options thresholding at anything non-zero.
func NewMaskOpts(img *Image) *MaskOpts {
	o := &MaskOpts{}
	o.initImage(img, img, MaskType)
	_, hi := img.DataRange()
	o.Threshold = props.New(&o.n, ThresholdProp, [2]float64{0.1, hi + 1})
	o.Invert = props.New(&o.n, InvertProp, false)
	o.Colour = props.New(&o.n, ColourProp, RGB(1, 0, 0))
	o.Outline = props.New(&o.n, OutlineProp, false)
	o.OutlineWidth = props.New(&o.n, OutlineWidthProp, 1)
	o.Interpolation = props.New(&o.n, InterpolationProp, NoInterpolation)
	return o
}

// LabelOpts are the options for label (atlas) images.
type LabelOpts struct {
	ImageOpts

	Lut          *props.Value[*LookupTable]
	Outline      *props.Prop[bool]
	OutlineWidth *props.Prop[int]
	ShowNames    *props.Prop[bool]
}

// NewLabelOpts creates label options with a generated lookup table
// covering the image's label values.
func NewLabelOpts(img *Image) *LabelOpts {
	o := &LabelOpts{}
	o.initImage(img, img, LabelType)
	_, hi := img.DataRange()
	o.Lut = props.NewValue(&o.n, LutProp, RandomLookupTable("random", int(hi)))
	o.Outline = props.New(&o.n, OutlineProp, false)
	o.OutlineWidth = props.New(&o.n, OutlineWidthProp, 1)
	o.ShowNames = props.New(&o.n, ShowNamesProp, false)
	return o
}

// VectorOpts holds the options common to vector, tensor and SH types.
type VectorOpts struct {
	ImageOpts

	XColour       *props.Prop[Colour]
	YColour       *props.Prop[Colour]
	ZColour       *props.Prop[Colour]
	SuppressX     *props.Prop[bool]
	SuppressY     *props.Prop[bool]
	SuppressZ     *props.Prop[bool]
	SuppressMode  *props.Prop[SuppressMode]
	ModulateImage *props.Value[*Image]
	ClipImage     *props.Value[*Image]
	ColourImage   *props.Value[*Image]
	ModulateRange *props.Prop[[2]float64]
	ClippingRange *props.Prop[[2]float64]
	Cmap          *props.Prop[string]
}

func (o *VectorOpts) initVector(ov Overlay, img *Image, t OverlayType) {
	o.initImage(ov, img, t)
	o.XColour = props.New(&o.n, XColourProp, RGB(1, 0, 0))
	o.YColour = props.New(&o.n, YColourProp, RGB(0, 1, 0))
	o.ZColour = props.New(&o.n, ZColourProp, RGB(0, 0, 1))
	o.SuppressX = props.New(&o.n, SuppressXProp, false)
	o.SuppressY = props.New(&o.n, SuppressYProp, false)
	o.SuppressZ = props.New(&o.n, SuppressZProp, false)
	o.SuppressMode = props.New(&o.n, SuppressModeProp, SuppressWhite)
	o.ModulateImage = props.NewValue[*Image](&o.n, ModulateImageProp, nil)
	o.ClipImage = props.NewValue[*Image](&o.n, ClipImageProp, nil)
	o.ColourImage = props.NewValue[*Image](&o.n, ColourImageProp, nil)
	o.ModulateRange = props.New(&o.n, ModulateRangeProp, [2]float64{0, 1})
	o.ClippingRange = props.New(&o.n, ClippingRangeProp, [2]float64{0, 1})
	o.Cmap = props.New(&o.n, CmapProp, "greyscale")
}

// RGBVectorOpts are the options for vector images drawn as RGB.
type RGBVectorOpts struct {
	VectorOpts
	Interpolation *props.Prop[Interpolation]
}

// NewRGBVectorOpts creates RGB vector options.
func NewRGBVectorOpts(img *Image) *RGBVectorOpts {
	o := &RGBVectorOpts{}
	o.initVector(img, img, RGBVectorType)
	o.Interpolation = props.New(&o.n, InterpolationProp, NoInterpolation)
	return o
}

// LineVectorOpts are the options for vector images drawn as lines.
type LineVectorOpts struct {
	VectorOpts

	LineWidth  *props.Prop[float64]
	Directed   *props.Prop[bool]
	UnitLength *props.Prop[bool]

	// LengthScale is a percentage applied to every line.
	LengthScale *props.Prop[float64]

	// OrientFlip negates the x component of every vector, for images
	// stored with a neurological voxel orientation.
	OrientFlip *props.Prop[bool]
}

// NewLineVectorOpts creates line vector options.
func NewLineVectorOpts(img *Image) *LineVectorOpts {
	o := &LineVectorOpts{}
	o.initVector(img, img, LineVectorType)
	o.LineWidth = props.New(&o.n, LineWidthProp, 1.0)
	o.Directed = props.New(&o.n, DirectedProp, false)
	o.UnitLength = props.New(&o.n, UnitLengthProp, true)
	o.LengthScale = props.New(&o.n, LengthScaleProp, 100.0)
	o.OrientFlip = props.New(&o.n, OrientFlipProp, false)
	return o
}

// TensorOpts are the options for tensor ellipsoid glyphs.
type TensorOpts struct {
	VectorOpts

	Lighting         *props.Prop[bool]
	TensorResolution *props.Prop[int]

	// TensorScale is a percentage; at 100 the largest tensor fills one
	// voxel.
	TensorScale *props.Prop[float64]
}

// NewTensorOpts creates tensor options.
func NewTensorOpts(t *TensorImage) *TensorOpts {
	o := &TensorOpts{}
	o.initVector(t, t.Reference(), TensorType)
	o.Lighting = props.New(&o.n, LightingProp, true)
	o.TensorResolution = props.New(&o.n, TensorResolutionProp, 10)
	o.TensorScale = props.New(&o.n, TensorScaleProp, 100.0)
	return o
}

// SHOpts are the options for spherical harmonic FOD glyphs.
type SHOpts struct {
	VectorOpts

	SHResolution    *props.Prop[int]
	SHOrder         *props.Prop[int]
	RadiusThreshold *props.Prop[float64]
	Normalise       *props.Prop[bool]
	Lighting        *props.Prop[bool]
	Size            *props.Prop[float64]
	ColourMode      *props.Prop[SHColourMode]
}

// NewSHOpts creates SH options for an image of SH coefficients.
func NewSHOpts(img *Image) (*SHOpts, error) {
	order, ok := SHOrderForVolumes(img.NumVolumes())
	if !ok {
		return nil, fmt.Errorf("image %s: %d volumes is not a symmetric SH coefficient count", img.Name(), img.NumVolumes())
	}
	o := &SHOpts{}
	o.initVector(img, img, SHType)
	o.SHResolution = props.New(&o.n, SHResolutionProp, 8)
	o.SHOrder = props.New(&o.n, SHOrderProp, order)
	o.RadiusThreshold = props.New(&o.n, RadiusThresholdProp, 0.05)
	o.Normalise = props.New(&o.n, NormaliseProp, false)
	o.Lighting = props.New(&o.n, LightingProp, false)
	o.Size = props.New(&o.n, SizeProp, 100.0)
	o.ColourMode = props.New(&o.n, ColourModeProp, SHColourByDirection)
	return o, nil
}

// RGBOpts are the options for 3 or 4 channel colour images.
type RGBOpts struct {
	ImageOpts

	RColour       *props.Prop[Colour]
	GColour       *props.Prop[Colour]
	BColour       *props.Prop[Colour]
	SuppressR     *props.Prop[bool]
	SuppressG     *props.Prop[bool]
	SuppressB     *props.Prop[bool]
	SuppressA     *props.Prop[bool]
	SuppressMode  *props.Prop[SuppressMode]
	Interpolation *props.Prop[Interpolation]
}

// NewRGBOpts creates RGB(A) image options.
func NewRGBOpts(img *Image) *RGBOpts {
	o := &RGBOpts{}
	o.initImage(img, img, RGBType)
	o.RColour = props.New(&o.n, RColourProp, RGB(1, 0, 0))
	o.GColour = props.New(&o.n, GColourProp, RGB(0, 1, 0))
	o.BColour = props.New(&o.n, BColourProp, RGB(0, 0, 1))
	o.SuppressR = props.New(&o.n, SuppressRProp, false)
	o.SuppressG = props.New(&o.n, SuppressGProp, false)
	o.SuppressB = props.New(&o.n, SuppressBProp, false)
	o.SuppressA = props.New(&o.n, SuppressAProp, false)
	o.SuppressMode = props.New(&o.n, SuppressModeProp, SuppressWhite)
	o.Interpolation = props.New(&o.n, InterpolationProp, NoInterpolation)
	return o
}

// MeshCoordSpace identifies the coordinate system of mesh vertices
// relative to a reference image.
type MeshCoordSpace int

const (
	MeshWorldSpace MeshCoordSpace = iota
	MeshPixdimSpace
	MeshVoxelSpace
)

// MeshOpts are the options for surface meshes.
type MeshOpts struct {
	n    props.Notifier
	mesh *Mesh

	Colour          *props.Prop[Colour]
	Outline         *props.Prop[bool]
	OutlineWidth    *props.Prop[float64]
	RefImage        *props.Value[*Image]
	CoordSpace      *props.Prop[MeshCoordSpace]
	VertexData      *props.Prop[string]
	VertexDataIndex *props.Prop[int]
	VertexDataRange *props.Prop[[2]float64]
	Cmap            *props.Prop[string]
	FlatShading     *props.Prop[bool]
}

// NewMeshOpts creates mesh options.
func NewMeshOpts(m *Mesh) *MeshOpts {
	o := &MeshOpts{mesh: m}
	o.Colour = props.New(&o.n, ColourProp, RGB(1, 0, 0))
	o.Outline = props.New(&o.n, OutlineProp, false)
	o.OutlineWidth = props.New(&o.n, OutlineWidthProp, 2.0)
	o.RefImage = props.NewValue[*Image](&o.n, RefImageProp, nil)
	o.CoordSpace = props.New(&o.n, CoordSpaceProp, MeshWorldSpace)
	o.VertexData = props.New(&o.n, VertexDataProp, "")
	o.VertexDataIndex = props.New(&o.n, VertexDataIndexProp, 0)
	o.VertexDataRange = props.New(&o.n, VertexDataRangeProp, [2]float64{0, 1})
	o.Cmap = props.New(&o.n, CmapProp, "greyscale")
	o.FlatShading = props.New(&o.n, FlatShadingProp, false)
	return o
}

// Notifier implements Opts.
func (o *MeshOpts) Notifier() *props.Notifier { return &o.n }

// Type implements Opts.
func (o *MeshOpts) Type() OverlayType { return MeshType }

// Overlay implements Opts.
func (o *MeshOpts) Overlay() Overlay { return o.mesh }

// Mesh returns the displayed mesh.
func (o *MeshOpts) Mesh() *Mesh { return o.mesh }

// VertsToDisplay returns the transform from mesh vertex coordinates to
// the display coordinate system.
func (o *MeshOpts) VertsToDisplay() *mat.Dense {
	ref := o.RefImage.Get()
	if ref == nil {
		return affine.Identity()
	}
	switch o.CoordSpace.Get() {
	case MeshVoxelSpace:
		return ref.VoxToWorld()
	case MeshPixdimSpace:
		scale := [3]float64{1 / ref.Pixdim[0], 1 / ref.Pixdim[1], 1 / ref.Pixdim[2]}
		return affine.Compose(ref.VoxToWorld(), affine.ScaleOffset(scale, [3]float64{}))
	}
	return affine.Identity()
}

// DisplayBounds implements Opts.
func (o *MeshOpts) DisplayBounds() Bounds {
	xform := o.VertsToDisplay()
	b := EmptyBounds()
	mb := o.mesh.Bounds()
	if mb.Empty() {
		return b
	}
	for corner := 0; corner < 8; corner++ {
		var p [3]float64
		for ax := 0; ax < 3; ax++ {
			if corner&(1<<ax) == 0 {
				p[ax] = mb.Lo[ax]
			} else {
				p[ax] = mb.Hi[ax]
			}
		}
		w := affine.Transform(xform, p)
		b = b.Union(Bounds{Lo: w, Hi: w})
	}
	return b
}

// optsFactories maps each overlay type to the constructor of its options.
var optsFactories = map[OverlayType]func(Overlay) (Opts, error){
	VolumeType:     imageOpts(func(img *Image) (Opts, error) { return NewVolumeOpts(img), nil }),
	MIPType:        imageOpts(func(img *Image) (Opts, error) { return NewMIPOpts(img), nil }),
	MaskType:       imageOpts(func(img *Image) (Opts, error) { return NewMaskOpts(img), nil }),
	LabelType:      imageOpts(func(img *Image) (Opts, error) { return NewLabelOpts(img), nil }),
	RGBVectorType:  imageOpts(func(img *Image) (Opts, error) { return NewRGBVectorOpts(img), nil }),
	LineVectorType: imageOpts(func(img *Image) (Opts, error) { return NewLineVectorOpts(img), nil }),
	RGBType:        imageOpts(func(img *Image) (Opts, error) { return NewRGBOpts(img), nil }),
	SHType:         imageOpts(func(img *Image) (Opts, error) { return NewSHOpts(img) }),
	TensorType: func(ov Overlay) (Opts, error) {
		t, ok := ov.(*TensorImage)
		if !ok {
			return nil, fmt.Errorf("overlay %s is not a tensor image", ov.Name())
		}
		return NewTensorOpts(t), nil
	},
	MeshType: func(ov Overlay) (Opts, error) {
		m, ok := ov.(*Mesh)
		if !ok {
			return nil, fmt.Errorf("overlay %s is not a mesh", ov.Name())
		}
		return NewMeshOpts(m), nil
	},
}

func imageOpts(fn func(*Image) (Opts, error)) func(Overlay) (Opts, error) {
	return func(ov Overlay) (Opts, error) {
		img, ok := ov.(*Image)
		if !ok {
			return nil, fmt.Errorf("overlay %s is not an image", ov.Name())
		}
		return fn(img)
	}
}

// NewOpts creates the default options of type t for ov.
func NewOpts(ov Overlay, t OverlayType) (Opts, error) {
	factory, ok := optsFactories[t]
	if !ok {
		return nil, fmt.Errorf("no display options for overlay type %s", t)
	}
	return factory(ov)
}
