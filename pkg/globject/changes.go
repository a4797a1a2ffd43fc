package globject

import (
	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
)

// ChangeKind is the work needed after a display option changes.
type ChangeKind int

const (
	// ShaderUpdate needs only new shader uniform values.
	ShaderUpdate ChangeKind = iota + 1

	// TextureRefresh needs texture contents to be regenerated.
	TextureRefresh

	// GeometryRefresh needs vertex data to be regenerated.
	GeometryRefresh
)

func (k ChangeKind) String() string {
	switch k {
	case ShaderUpdate:
		return "shader"
	case TextureRefresh:
		return "texture"
	case GeometryRefresh:
		return "geometry"
	}
	return "none"
}

type kindTable map[string]ChangeKind

func table(shader, texture, geometry []string) kindTable {
	t := kindTable{}
	for _, p := range shader {
		t[p] = ShaderUpdate
	}
	for _, p := range texture {
		t[p] = TextureRefresh
	}
	for _, p := range geometry {
		t[p] = GeometryRefresh
	}
	return t
}

var imageGeometry = []string{models.TransformProp, models.CustomXformProp}

var changeKinds = map[models.OverlayType]kindTable{
	models.VolumeType: table(
		[]string{models.DisplayRangeProp, models.ClippingRangeProp, models.ModulateRangeProp,
			models.InvertClippingProp, models.InvertProp, models.GammaProp,
			models.UseNegativeCmapProp, models.ModulateAlphaProp},
		[]string{models.CmapProp, models.NegativeCmapProp, models.CmapResolutionProp,
			models.InterpolateCmapsProp, models.AlphaProp, models.BrightnessProp, models.ContrastProp,
			models.VolumeProp, models.ResolutionProp, models.InterpolationProp, models.ClipImageProp},
		imageGeometry),

	models.MaskType: table(
		[]string{models.ThresholdProp, models.InvertProp, models.ColourProp, models.OutlineProp,
			models.OutlineWidthProp, models.AlphaProp},
		[]string{models.VolumeProp, models.ResolutionProp, models.InterpolationProp},
		imageGeometry),

	models.LabelType: table(
		[]string{models.OutlineProp, models.OutlineWidthProp, models.AlphaProp, models.ShowNamesProp},
		[]string{models.LutProp, models.VolumeProp, models.ResolutionProp},
		imageGeometry),

	models.RGBVectorType: table(
		[]string{models.XColourProp, models.YColourProp, models.ZColourProp,
			models.SuppressXProp, models.SuppressYProp, models.SuppressZProp, models.SuppressModeProp,
			models.ModulateRangeProp, models.ClippingRangeProp,
			models.AlphaProp, models.BrightnessProp, models.ContrastProp},
		[]string{models.InterpolationProp, models.VolumeProp, models.ResolutionProp,
			models.ColourImageProp, models.ModulateImageProp, models.ClipImageProp},
		imageGeometry),

	models.LineVectorType: table(
		[]string{models.XColourProp, models.YColourProp, models.ZColourProp,
			models.SuppressXProp, models.SuppressYProp, models.SuppressZProp, models.SuppressModeProp,
			models.ModulateRangeProp, models.ClippingRangeProp, models.LineWidthProp, models.AlphaProp},
		[]string{models.ModulateImageProp, models.ClipImageProp, models.ColourImageProp},
		[]string{models.DirectedProp, models.UnitLengthProp, models.LengthScaleProp,
			models.OrientFlipProp, models.TransformProp, models.CustomXformProp}),

	models.TensorType: table(
		[]string{models.XColourProp, models.YColourProp, models.ZColourProp,
			models.SuppressXProp, models.SuppressYProp, models.SuppressZProp, models.SuppressModeProp,
			models.TensorScaleProp, models.LightingProp, models.AlphaProp,
			models.ModulateRangeProp, models.ClippingRangeProp},
		[]string{models.TensorResolutionProp},
		imageGeometry),

	models.SHType: table(
		[]string{models.ColourModeProp, models.CmapProp, models.XColourProp, models.YColourProp,
			models.ZColourProp, models.LightingProp, models.AlphaProp, models.SizeProp},
		[]string{models.SHResolutionProp, models.SHOrderProp, models.RadiusThresholdProp,
			models.NormaliseProp, models.VolumeProp},
		imageGeometry),

	models.MeshType: table(
		[]string{models.ColourProp, models.OutlineProp, models.OutlineWidthProp,
			models.VertexDataRangeProp, models.CmapProp, models.AlphaProp, models.FlatShadingProp},
		[]string{models.VertexDataProp, models.VertexDataIndexProp},
		[]string{models.RefImageProp, models.CoordSpaceProp, models.TransformProp}),

	models.MIPType: table(
		[]string{models.DisplayRangeProp, models.ClippingRangeProp, models.InvertProp, models.GammaProp,
			models.WindowProp, models.MinimumProp, models.AbsoluteProp},
		[]string{models.CmapProp, models.AlphaProp, models.BrightnessProp, models.ContrastProp,
			models.VolumeProp, models.ResolutionProp, models.InterpolationProp},
		imageGeometry),

	models.RGBType: table(
		[]string{models.RColourProp, models.GColourProp, models.BColourProp,
			models.SuppressRProp, models.SuppressGProp, models.SuppressBProp, models.SuppressAProp,
			models.SuppressModeProp, models.AlphaProp, models.BrightnessProp, models.ContrastProp},
		[]string{models.InterpolationProp, models.VolumeProp},
		imageGeometry),
}

// ChangeKinds returns, for an overlay type, the kind of work each option
// change requires. Options not in the map need no GLObject work.
func ChangeKinds(t models.OverlayType) map[string]ChangeKind {
	out := map[string]ChangeKind{}
	for p, k := range changeKinds[t] {
		out[p] = k
	}
	return out
}

// Classify returns the kind of work a change to prop requires for
// overlays of type t.
func Classify(t models.OverlayType, prop string) (ChangeKind, bool) {
	k, ok := changeKinds[t][prop]
	return k, ok
}
