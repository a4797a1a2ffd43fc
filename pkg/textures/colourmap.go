package textures

import (
	"math"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
)

// ColourMapOptions controls the content of a ColourMapTexture.
type ColourMapOptions struct {
	// Colours are the colour map entries, evenly spaced over [0, 1].
	Colours []models.Colour

	// Alpha, in [0, 1], scales the opacity of every entry.
	Alpha float64

	// Brightness and Contrast, in [0, 1], shift and scale the colour map
	// around its centre. 0.5 leaves it unchanged.
	Brightness float64
	Contrast   float64

	Interpolate bool
}

// BriconScaleOffset converts brightness and contrast in [0, 1] to the
// scale and offset applied to colour map positions.
func BriconScaleOffset(brightness, contrast float64) (scale, offset float64) {
	if contrast <= 0.5 {
		scale = contrast * 2
	} else {
		scale = 20*math.Pow(contrast, 4) - 0.25
	}
	return scale, brightness - 0.5
}

// ColourMapTexture is a 1D RGBA texture holding a colour map.
type ColourMapTexture struct {
	*Texture
	opts ColourMapOptions
}

// NewColourMapTexture creates an empty colour map texture.
func NewColourMapTexture(b gl.Backend, name string) *ColourMapTexture {
	return &ColourMapTexture{Texture: newTexture(b, name)}
}

// Set uploads a new colour map.
func (t *ColourMapTexture) Set(opts ColourMapOptions) error {
	t.opts = opts
	n := len(opts.Colours)
	if n == 0 {
		return nil
	}
	scale, offset := BriconScaleOffset(opts.Brightness, opts.Contrast)

	data := make([]byte, 4*n)
	for i := 0; i < n; i++ {
		// colour map position after brightness/contrast
		pos := 0.5
		if n > 1 {
			pos = float64(i) / float64(n-1)
		}
		pos = (pos-0.5)*scale + 0.5 + offset
		c := sample(opts.Colours, math.Max(0, math.Min(1, pos)))
		c[3] *= opts.Alpha
		for j := 0; j < 4; j++ {
			data[4*i+j] = uint8(math.Round(math.Max(0, math.Min(1, c[j])) * 255))
		}
	}

	filter := gl.Nearest
	if opts.Interpolate {
		filter = gl.Linear
	}
	desc := gl.TextureDesc{
		Target:   gl.Texture1D,
		Shape:    [3]int{n, 1, 1},
		Type:     gl.UnsignedByte,
		Format:   gl.RGBA,
		Internal: gl.RGBA8,
		Filter:   filter,
	}
	return t.upload(desc, data)
}

// Size returns the number of colour map entries.
func (t *ColourMapTexture) Size() int { return len(t.opts.Colours) }

// sample returns the colour at position pos in [0, 1] of an evenly spaced
// colour list, by nearest neighbour.
func sample(colours []models.Colour, pos float64) models.Colour {
	i := int(math.Round(pos * float64(len(colours)-1)))
	return colours[i]
}

// LookupTexture is a 1D RGBA texture indexed by label value. Labels which
// are missing or disabled are transparent.
type LookupTexture struct {
	*Texture
	n int
}

// NewLookupTexture creates an empty lookup table texture.
func NewLookupTexture(b gl.Backend, name string) *LookupTexture {
	return &LookupTexture{Texture: newTexture(b, name)}
}

// Set uploads the labels of lut, with opacity scaled by alpha.
func (t *LookupTexture) Set(lut *models.LookupTable, alpha float64) error {
	n := lut.Max() + 1
	data := make([]byte, 4*n)
	for _, lbl := range lut.Labels() {
		if !lbl.Enabled || lbl.Value < 0 {
			continue
		}
		c := lbl.Colour
		c[3] *= alpha
		for j := 0; j < 4; j++ {
			data[4*lbl.Value+j] = uint8(math.Round(math.Max(0, math.Min(1, c[j])) * 255))
		}
	}
	t.n = n
	return t.upload(gl.TextureDesc{
		Target:   gl.Texture1D,
		Shape:    [3]int{n, 1, 1},
		Type:     gl.UnsignedByte,
		Format:   gl.RGBA,
		Internal: gl.RGBA8,
		Filter:   gl.Nearest,
	}, data)
}

// NumLabels returns the texture length.
func (t *LookupTexture) NumLabels() int { return t.n }
