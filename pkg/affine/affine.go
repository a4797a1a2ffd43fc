// Package affine provides helpers for the 4x4 affine transformations which
// map between voxel, world and display coordinate systems.
package affine

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"gonum.org/v1/gonum/mat"
)

// ErrSingular is returned when inverting a non-invertible transform.
var ErrSingular = errors.New("affine: singular transform")

// Identity returns a new 4x4 identity matrix.
func Identity() *mat.Dense {
	x := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		x.Set(i, i, 1)
	}
	return x
}

// ScaleOffset returns a transform which scales by scale and then
// translates by offset.
func ScaleOffset(scale, offset [3]float64) *mat.Dense {
	x := Identity()
	for i := 0; i < 3; i++ {
		x.Set(i, i, scale[i])
		x.Set(i, 3, offset[i])
	}
	return x
}

// FromRows builds a transform from 16 row-major values.
func FromRows(v [16]float64) *mat.Dense {
	return mat.NewDense(4, 4, v[:])
}

// Compose returns xforms[0] * xforms[1] * ... * xforms[n-1]. The last
// transform is applied to a point first.
func Compose(xforms ...*mat.Dense) *mat.Dense {
	out := Identity()
	for _, x := range xforms {
		var tmp mat.Dense
		tmp.Mul(out, x)
		out = &tmp
	}
	return out
}

// Invert returns the inverse of x.
func Invert(x *mat.Dense) (*mat.Dense, error) {
	var inv mat.Dense
	if err := inv.Inverse(x); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	return &inv, nil
}

// Transform applies x to the point p.
func Transform(x *mat.Dense, p [3]float64) [3]float64 {
	var out [3]float64
	for r := 0; r < 3; r++ {
		out[r] = x.At(r, 0)*p[0] + x.At(r, 1)*p[1] + x.At(r, 2)*p[2] + x.At(r, 3)
	}
	return out
}

// TransformAll applies x to every point in pts, returning a new slice.
func TransformAll(x *mat.Dense, pts [][3]float64) [][3]float64 {
	out := make([][3]float64, len(pts))
	for i, p := range pts {
		out[i] = Transform(x, p)
	}
	return out
}

// TransformVector applies the rotation/scaling part of x to v, ignoring
// the translation.
func TransformVector(x *mat.Dense, v [3]float64) [3]float64 {
	var out [3]float64
	for r := 0; r < 3; r++ {
		out[r] = x.At(r, 0)*v[0] + x.At(r, 1)*v[1] + x.At(r, 2)*v[2]
	}
	return out
}

// Scales returns the length of each of the first three columns of x, i.e.
// the scaling applied along each voxel axis.
func Scales(x *mat.Dense) [3]float64 {
	var out [3]float64
	for c := 0; c < 3; c++ {
		a, b, d := x.At(0, c), x.At(1, c), x.At(2, c)
		out[c] = math.Sqrt(a*a + b*b + d*d)
	}
	return out
}

// Equal reports whether a and b differ by no more than tol in every element.
func Equal(a, b *mat.Dense, tol float64) bool {
	return mat.EqualApprox(a, b, tol)
}

// ToMat4 converts x into a column-major float32 matrix suitable for
// uploading to the GPU.
func ToMat4(x *mat.Dense) mgl32.Mat4 {
	var m mgl32.Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			m.Set(r, c, float32(x.At(r, c)))
		}
	}
	return m
}

// FromMat4 converts a GPU matrix into a float64 transform.
func FromMat4(m mgl32.Mat4) *mat.Dense {
	x := mat.NewDense(4, 4, nil)
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			x.Set(r, c, float64(m.At(r, c)))
		}
	}
	return x
}

// VoxelBounds returns the axis-aligned bounding box, in the output space of
// x, of a voxel grid of the given shape. Voxel centres lie on integer
// coordinates, so the grid extends half a voxel beyond them.
func VoxelBounds(shape [3]int, x *mat.Dense) (lo, hi [3]float64) {
	for i := 0; i < 3; i++ {
		lo[i] = math.Inf(1)
		hi[i] = math.Inf(-1)
	}
	for corner := 0; corner < 8; corner++ {
		var p [3]float64
		for ax := 0; ax < 3; ax++ {
			if corner&(1<<ax) == 0 {
				p[ax] = -0.5
			} else {
				p[ax] = float64(shape[ax]) - 0.5
			}
		}
		w := Transform(x, p)
		for ax := 0; ax < 3; ax++ {
			lo[ax] = math.Min(lo[ax], w[ax])
			hi[ax] = math.Max(hi[ax], w[ax])
		}
	}
	return lo, hi
}
