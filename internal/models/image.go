package models

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/pauldmccarthy/fsleyes-sub001/pkg/affine"
)

// ErrShape is returned when image data does not match the image shape.
var ErrShape = errors.New("image data does not match shape")

// Image is a 3D or 4D voxel image, as decoded by the file loading layer.
type Image struct {
	id   uint64
	name string

	// Shape holds the number of voxels along x, y and z, and the number
	// of volumes (1 for 3D images).
	Shape [4]int

	// Pixdim is the physical size of each voxel in mm.
	Pixdim [3]float64

	// DType is the element type of the data on disk. Data is always held
	// as float64, but the texture layer uses DType to pick a GPU format.
	DType DType

	// data is the voxel data as a 1D array in x-fastest order, then y,
	// then z, then volume.
	data []float64

	voxToWorld *mat.Dense
	worldToVox *mat.Dense
}

// NewImage creates an image. If voxToWorld is nil, a pixdim scaling
// transform is used.
func NewImage(name string, shape [4]int, pixdim [3]float64, dtype DType, data []float64, voxToWorld *mat.Dense) (*Image, error) {
	if shape[3] <= 0 {
		shape[3] = 1
	}
	n := shape[0] * shape[1] * shape[2] * shape[3]
	if n <= 0 || len(data) != n {
		return nil, fmt.Errorf("%w: %s has shape %v but %d values", ErrShape, name, shape, len(data))
	}
	for i, p := range pixdim {
		if p <= 0 {
			pixdim[i] = 1
		}
	}
	if voxToWorld == nil {
		voxToWorld = affine.ScaleOffset(pixdim, [3]float64{})
	}
	worldToVox, err := affine.Invert(voxToWorld)
	if err != nil {
		return nil, fmt.Errorf("image %s: %w", name, err)
	}
	return &Image{
		id:         nextID(),
		name:       name,
		Shape:      shape,
		Pixdim:     pixdim,
		DType:      dtype,
		data:       data,
		voxToWorld: voxToWorld,
		worldToVox: worldToVox,
	}, nil
}

// ID implements Overlay.
func (img *Image) ID() uint64 { return img.id }

// Name implements Overlay.
func (img *Image) Name() string { return img.name }

// Shape3 returns the spatial shape of the image.
func (img *Image) Shape3() [3]int {
	return [3]int{img.Shape[0], img.Shape[1], img.Shape[2]}
}

// NumVolumes returns the number of volumes in the image.
func (img *Image) NumVolumes() int { return img.Shape[3] }

// NumVoxels returns the number of voxels in one volume.
func (img *Image) NumVoxels() int {
	return img.Shape[0] * img.Shape[1] * img.Shape[2]
}

// Data returns all of the image data.
func (img *Image) Data() []float64 { return img.data }

// Volume returns the data for volume t. The returned slice aliases the
// image data.
func (img *Image) Volume(t int) []float64 {
	if t < 0 || t >= img.Shape[3] {
		t = 0
	}
	n := img.NumVoxels()
	return img.data[t*n : (t+1)*n]
}

// Index returns the offset of voxel (x, y, z) in volume t.
func (img *Image) Index(x, y, z, t int) int {
	w, h, d := img.Shape[0], img.Shape[1], img.Shape[2]
	return t*w*h*d + z*w*h + y*w + x
}

// Value returns the value at voxel (x, y, z) in volume t.
func (img *Image) Value(x, y, z, t int) float64 {
	return img.data[img.Index(x, y, z, t)]
}

// InBounds reports whether the voxel coordinates lie within the image.
func (img *Image) InBounds(vox [3]int) bool {
	for i := 0; i < 3; i++ {
		if vox[i] < 0 || vox[i] >= img.Shape[i] {
			return false
		}
	}
	return true
}

// LabelValue returns the value at a voxel as an integer label. Voxels
// outside the image have label 0.
func (img *Image) LabelValue(vox [3]int, t int) int {
	if !img.InBounds(vox) {
		return 0
	}
	return int(math.Round(img.Value(vox[0], vox[1], vox[2], t)))
}

// VoxToWorld returns the voxel to world transform.
func (img *Image) VoxToWorld() *mat.Dense { return img.voxToWorld }

// WorldToVox returns the world to voxel transform.
func (img *Image) WorldToVox() *mat.Dense { return img.worldToVox }

// WorldToVoxel returns the voxel containing the world coordinate p.
func (img *Image) WorldToVoxel(p [3]float64) [3]int {
	v := affine.Transform(img.worldToVox, p)
	return [3]int{int(math.Round(v[0])), int(math.Round(v[1])), int(math.Round(v[2]))}
}

// VoxelToWorld returns the world coordinates of a voxel centre.
func (img *Image) VoxelToWorld(v [3]int) [3]float64 {
	return affine.Transform(img.voxToWorld, [3]float64{float64(v[0]), float64(v[1]), float64(v[2])})
}

// Bounds implements Overlay.
func (img *Image) Bounds() Bounds {
	lo, hi := affine.VoxelBounds(img.Shape3(), img.voxToWorld)
	return Bounds{Lo: lo, Hi: hi}
}

// DataRange returns the minimum and maximum over all image data.
func (img *Image) DataRange() (lo, hi float64) {
	return floats.Min(img.data), floats.Max(img.data)
}

// RobustRange returns the 2nd and 98th percentiles of the non-zero data,
// which make a better default display range than the full data range for
// images with outliers. It falls back to the data range when all data is
// zero.
func (img *Image) RobustRange() (lo, hi float64) {
	nonzero := make([]float64, 0, len(img.data))
	for _, v := range img.data {
		if v != 0 && !math.IsNaN(v) {
			nonzero = append(nonzero, v)
		}
	}
	if len(nonzero) == 0 {
		return img.DataRange()
	}
	sort.Float64s(nonzero)
	lo = stat.Quantile(0.02, stat.Empirical, nonzero, nil)
	hi = stat.Quantile(0.98, stat.Empirical, nonzero, nil)
	if lo == hi {
		return nonzero[0], nonzero[len(nonzero)-1]
	}
	return lo, hi
}
