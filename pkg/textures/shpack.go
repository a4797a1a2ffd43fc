package textures

import (
	"fmt"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/texdata"
)

var packPrimes = [...]int{2, 3, 5, 7}

// PackShape returns a 3D texture shape able to hold n values with every
// dimension at most maxSize. Starting from (n, 1, 1), the largest
// dimension is repeatedly divided by its smallest prime factor from
// {2, 3, 5, 7}, and the smallest dimension multiplied by it. When the
// largest dimension has no such factor it is grown by one, padding the
// texture.
func PackShape(n, maxSize int) ([3]int, error) {
	if n <= 0 {
		return [3]int{}, fmt.Errorf("cannot pack %d values", n)
	}
	if maxSize <= 0 || n > maxSize*maxSize*maxSize {
		return [3]int{}, &SizeError{Name: "packed", Shape: [3]int{n, 1, 1}, Limit: maxSize}
	}
	shape := [3]int{n, 1, 1}
	for {
		big, small := 0, 0
		for ax := 1; ax < 3; ax++ {
			if shape[ax] > shape[big] {
				big = ax
			}
			if shape[ax] < shape[small] {
				small = ax
			}
		}
		if shape[big] <= maxSize {
			return shape, nil
		}

		divided := false
		for _, p := range packPrimes {
			if shape[big]%p == 0 && shape[small]*p <= maxSize {
				shape[big] /= p
				shape[small] *= p
				divided = true
				break
			}
		}
		if !divided {
			shape[big]++
		}
		if shape[0]*shape[1]*shape[2] > maxSize*maxSize*maxSize {
			return [3]int{}, &SizeError{Name: "packed", Shape: shape, Limit: maxSize}
		}
	}
}

// Pack lays out values in a 3D buffer of the given shape, x fastest,
// padding with zeros.
func Pack(values []float64, shape [3]int) []float64 {
	out := make([]float64, shape[0]*shape[1]*shape[2])
	copy(out, values)
	return out
}

// Unpack reads n values back from a buffer packed with Pack, visiting
// texels in x, y, z order.
func Unpack(buf []float64, shape [3]int, n int) []float64 {
	out := make([]float64, 0, n)
	for z := 0; z < shape[2]; z++ {
		for y := 0; y < shape[1]; y++ {
			for x := 0; x < shape[0]; x++ {
				if len(out) == n {
					return out
				}
				out = append(out, buf[z*shape[0]*shape[1]+y*shape[0]+x])
			}
		}
	}
	return out
}

// RadiusTexture is a 3D texture holding packed per-vertex glyph radii,
// voxel-major and vertex-minor.
type RadiusTexture struct {
	*Texture
	probe    *texdata.FloatProbe
	prepared *texdata.Prepared
	n        int
}

// NewRadiusTexture creates an empty radius texture.
func NewRadiusTexture(b gl.Backend, probe *texdata.FloatProbe, name string) *RadiusTexture {
	if probe == nil {
		probe = texdata.BackendProbe(b)
	}
	return &RadiusTexture{Texture: newTexture(b, name), probe: probe}
}

// Set packs and uploads radii.
func (t *RadiusTexture) Set(radii []float64) error {
	shape, err := PackShape(len(radii), t.backend.Caps().Max3DTextureSize)
	if err != nil {
		return err
	}
	prepared, err := texdata.Prepare([][]float64{Pack(radii, shape)}, shape, models.Float32,
		texdata.Options{}, t.probe.Supported)
	if err != nil {
		return err
	}
	if err := t.upload(prepared.Desc(gl.Texture3D, gl.Nearest), prepared.Data); err != nil {
		return err
	}
	t.prepared = prepared
	t.n = len(radii)
	return nil
}

// Shape returns the packed texture shape.
func (t *RadiusTexture) Shape() [3]int { return t.desc.Shape }

// Len returns the number of radii stored.
func (t *RadiusTexture) Len() int { return t.n }

// Prepared returns the uploaded data, or nil.
func (t *RadiusTexture) Prepared() *texdata.Prepared { return t.prepared }
