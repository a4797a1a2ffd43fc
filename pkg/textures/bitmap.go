package textures

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
)

// BitmapTexture is a 2D RGBA texture holding a CPU rendered image, such as
// rasterised text.
type BitmapTexture struct {
	*Texture
	width, height int
}

// NewBitmapTexture creates an empty bitmap texture.
func NewBitmapTexture(b gl.Backend, name string) *BitmapTexture {
	return &BitmapTexture{Texture: newTexture(b, name)}
}

// Set uploads img. Rows are flipped so that the first texture row is the
// bottom of the image.
func (t *BitmapTexture) Set(img image.Image) error {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	data := make([]byte, 4*w*h)
	for y := 0; y < h; y++ {
		copy(data[(h-1-y)*4*w:(h-y)*4*w], rgba.Pix[y*rgba.Stride:y*rgba.Stride+4*w])
	}
	err := t.upload(gl.TextureDesc{
		Target:   gl.Texture2D,
		Shape:    [3]int{w, h, 1},
		Type:     gl.UnsignedByte,
		Format:   gl.RGBA,
		Internal: gl.RGBA8,
		Filter:   gl.Linear,
	}, data)
	if err != nil {
		return err
	}
	t.width, t.height = w, h
	return nil
}

// Size returns the bitmap size in pixels.
func (t *BitmapTexture) Size() (width, height int) { return t.width, t.height }
