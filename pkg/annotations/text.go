package annotations

import (
	"fmt"
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/textures"
)

// Text coordinate systems.
const (
	DisplayCoords     = "display"
	ProportionCoords  = "proportions"
	PixelCoords       = "pixels"
	defaultFontSize   = 10
	glyphHeightPixels = 13
)

// Text is a string rendered to a bitmap and drawn as a textured quad.
// (X, Y) is interpreted in Coordinates, and the text is aligned to it
// with HAlign ("left", "centre", "right") and VAlign ("bottom",
// "centre", "top"). FontSize is the text height in pixels.
type Text struct {
	Base
	Text        string
	X, Y        float64
	FontSize    float64
	HAlign      string
	VAlign      string
	Coordinates string

	// Off is set for text which should be laid out but not drawn.
	Off bool
}

// NewText creates a left and bottom aligned text annotation in
// proportional coordinates.
func NewText(text string, x, y float64, colour models.Colour) *Text {
	t := &Text{
		Base:        DefaultBase(colour),
		Text:        text,
		X:           x,
		Y:           y,
		FontSize:    defaultFontSize,
		HAlign:      "left",
		VAlign:      "bottom",
		Coordinates: ProportionCoords,
	}
	t.ApplyMVP = false
	return t
}

// Kind implements Object.
func (t *Text) Kind() Kind { return TextKind }

// Render rasterises the text in white on a transparent background.
func (t *Text) Render() *image.RGBA {
	face := basicfont.Face7x13
	d := &font.Drawer{Face: face}
	w := d.MeasureString(t.Text).Ceil()
	m := face.Metrics()
	h := (m.Ascent + m.Descent).Ceil()
	img := image.NewRGBA(image.Rect(0, 0, max(w, 1), max(h, 1)))
	d.Dst = img
	d.Src = image.White
	d.Dot = fixed.Point26_6{Y: m.Ascent}
	d.DrawString(t.Text)
	return img
}

// colourise sets the colour of every pixel of img to the text colour,
// keeping the rasterised coverage as the alpha channel.
func (t *Text) colourise(img *image.RGBA) {
	c := t.colour()
	for i := 0; i+3 < len(img.Pix); i += 4 {
		a := float32(img.Pix[i+3]) / 255 * c[3]
		img.Pix[i+0] = uint8(255 * c[0])
		img.Pix[i+1] = uint8(255 * c[1])
		img.Pix[i+2] = uint8(255 * c[2])
		img.Pix[i+3] = uint8(255 * a)
	}
}

func (t *Text) context(dc *drawContext) (*drawContext, error) {
	switch t.Coordinates {
	case "", ProportionCoords:
		return dc.a.proportions(), nil
	case PixelCoords:
		return dc.a.pixels(), nil
	case DisplayCoords:
		return dc.a.context(&Base{ApplyMVP: true}, dc.zpos), nil
	}
	return nil, fmt.Errorf("unknown text coordinates %q", t.Coordinates)
}

// corners returns the lower left and upper right of the text quad, in
// the units of dc, for a bitmap of w by h pixels.
func (t *Text) corners(dc *drawContext, w, h int) (lo, hi [2]float64, err error) {
	scale := t.FontSize / glyphHeightPixels
	if t.FontSize <= 0 {
		scale = defaultFontSize / glyphHeightPixels
	}
	tw := float64(w) * scale * dc.pixel[0]
	th := float64(h) * scale * dc.pixel[1]

	x, y := t.X, t.Y
	switch t.HAlign {
	case "", "left":
	case "centre", "center":
		x -= tw / 2
	case "right":
		x -= tw
	default:
		return lo, hi, fmt.Errorf("unknown horizontal alignment %q", t.HAlign)
	}
	switch t.VAlign {
	case "", "bottom":
	case "centre", "center":
		y -= th / 2
	case "top":
		y -= th
	default:
		return lo, hi, fmt.Errorf("unknown vertical alignment %q", t.VAlign)
	}
	return [2]float64{x, y}, [2]float64{x + tw, y + th}, nil
}

func (t *Text) draw(dc *drawContext) error {
	if t.Off || t.Text == "" {
		return nil
	}
	tdc, err := t.context(dc)
	if err != nil {
		return err
	}
	img := t.Render()
	t.colourise(img)
	lo, hi, err := t.corners(tdc, img.Rect.Dx(), img.Rect.Dy())
	if err != nil {
		return err
	}

	tex := textures.NewBitmapTexture(dc.a.backend, fmt.Sprintf("annotations_text_%p", t))
	defer tex.Destroy()
	if err := tex.Set(img); err != nil {
		return err
	}

	quad := [][2]float64{
		{lo[0], lo[1]}, {hi[0], lo[1]}, {lo[0], hi[1]},
		{lo[0], hi[1]}, {hi[0], lo[1]}, {hi[0], hi[1]},
	}
	tcs := []float32{0, 0, 1, 0, 0, 1, 0, 1, 1, 0, 1, 1}

	prog := dc.a.tex
	prog.Load()
	defer prog.Unload()
	if err := prog.SetAll(map[string]any{"MVP": tdc.mvp, "renderTexture": int32(0)}); err != nil {
		return err
	}
	tex.Bind(0)
	defer tex.Unbind(0)
	return dc.a.backend.Draw(gl.Triangles, gl.VertexData{
		Vertices:  tdc.vertices(quad),
		TexCoords: tcs,
		TexComps:  2,
	})
}
