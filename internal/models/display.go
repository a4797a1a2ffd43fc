package models

import (
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/props"
)

// OverlayType selects how an overlay is displayed, and therefore which
// DisplayOptions variant and GLObject variant are used for it.
type OverlayType int

const (
	VolumeType OverlayType = iota
	MaskType
	LabelType
	RGBVectorType
	LineVectorType
	TensorType
	SHType
	MeshType
	MIPType
	RGBType
)

var overlayTypeNames = [...]string{
	"volume", "mask", "label", "rgbvector", "linevector", "tensor", "sh", "mesh", "mip", "rgb",
}

func (t OverlayType) String() string {
	if int(t) < len(overlayTypeNames) {
		return overlayTypeNames[t]
	}
	return "unknown"
}

// Display property names.
const (
	NameProp        = "name"
	EnabledProp     = "enabled"
	AlphaProp       = "alpha"
	BrightnessProp  = "brightness"
	ContrastProp    = "contrast"
	OverlayTypeProp = "overlayType"
)

// Display holds the settings common to every overlay type.
type Display struct {
	n       props.Notifier
	overlay Overlay

	Name    *props.Prop[string]
	Enabled *props.Prop[bool]

	// Alpha, Brightness and Contrast are percentages; 50 is neutral for
	// brightness and contrast.
	Alpha      *props.Prop[float64]
	Brightness *props.Prop[float64]
	Contrast   *props.Prop[float64]

	OverlayType *props.Prop[OverlayType]
}

// NewDisplay creates display settings for ov, with its default overlay
// type.
func NewDisplay(ov Overlay) *Display {
	d := &Display{overlay: ov}
	d.Name = props.New(&d.n, NameProp, ov.Name())
	d.Enabled = props.New(&d.n, EnabledProp, true)
	d.Alpha = props.New(&d.n, AlphaProp, 100.0)
	d.Brightness = props.New(&d.n, BrightnessProp, 50.0)
	d.Contrast = props.New(&d.n, ContrastProp, 50.0)
	d.OverlayType = props.New(&d.n, OverlayTypeProp, DefaultOverlayType(ov))
	return d
}

// Notifier returns the display notifier.
func (d *Display) Notifier() *props.Notifier { return &d.n }

// Target returns the displayed overlay.
func (d *Display) Target() Overlay { return d.overlay }

// DefaultOverlayType returns the overlay type initially used for ov.
func DefaultOverlayType(ov Overlay) OverlayType {
	switch o := ov.(type) {
	case *Mesh:
		return MeshType
	case *TensorImage:
		return TensorType
	case *Image:
		if o.NumVolumes() == 3 && o.DType == Float32 {
			return RGBVectorType
		}
	}
	return VolumeType
}

// shOrders maps the number of coefficients in a spherical harmonic image
// to its SH order, for symmetric (even order only) bases.
var shOrders = map[int]int{1: 0, 6: 2, 15: 4, 28: 6, 45: 8, 66: 10, 91: 12, 120: 14, 153: 16}

// SHOrderForVolumes returns the maximum symmetric SH order representable
// by an image with nvols coefficient volumes.
func SHOrderForVolumes(nvols int) (int, bool) {
	o, ok := shOrders[nvols]
	return o, ok
}

// ValidOverlayTypes returns the overlay types which can be used to
// display ov.
func ValidOverlayTypes(ov Overlay) []OverlayType {
	switch o := ov.(type) {
	case *Mesh:
		return []OverlayType{MeshType}
	case *TensorImage:
		return []OverlayType{TensorType}
	case *Image:
		types := []OverlayType{VolumeType, MaskType, LabelType, MIPType}
		switch o.NumVolumes() {
		case 3:
			types = append(types, RGBVectorType, LineVectorType, RGBType)
		case 4:
			types = append(types, RGBType)
		}
		if _, ok := SHOrderForVolumes(o.NumVolumes()); ok && o.NumVolumes() > 1 {
			types = append(types, SHType)
		}
		return types
	}
	return nil
}
