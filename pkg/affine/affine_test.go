package affine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestComposeAppliesLastFirst(t *testing.T) {
	scale := ScaleOffset([3]float64{2, 2, 2}, [3]float64{})
	shift := ScaleOffset([3]float64{1, 1, 1}, [3]float64{10, 0, 0})

	p := Transform(Compose(shift, scale), [3]float64{1, 1, 1})
	assert.Equal(t, [3]float64{12, 2, 2}, p)

	p = Transform(Compose(scale, shift), [3]float64{1, 1, 1})
	assert.Equal(t, [3]float64{22, 2, 2}, p)
}

func TestInvertRoundTrip(t *testing.T) {
	x := ScaleOffset([3]float64{2, 3, 4}, [3]float64{-5, 6, 7})
	inv, err := Invert(x)
	require.NoError(t, err)

	p := [3]float64{1.5, -2, 9}
	back := Transform(inv, Transform(x, p))
	assert.InDeltaSlice(t, p[:], back[:], 1e-12)
}

func TestInvertSingular(t *testing.T) {
	_, err := Invert(mat.NewDense(4, 4, nil))
	assert.ErrorIs(t, err, ErrSingular)
}

func TestVoxelBounds(t *testing.T) {
	lo, hi := VoxelBounds([3]int{4, 4, 4}, ScaleOffset([3]float64{2, 2, 2}, [3]float64{}))
	assert.Equal(t, [3]float64{-1, -1, -1}, lo)
	assert.Equal(t, [3]float64{7, 7, 7}, hi)
}

func TestMat4RoundTrip(t *testing.T) {
	x := ScaleOffset([3]float64{2, 3, 4}, [3]float64{1, 2, 3})
	m := ToMat4(x)
	assert.Equal(t, float32(1), m.At(0, 3))
	assert.True(t, Equal(x, FromMat4(m), 1e-6))
}

func TestScales(t *testing.T) {
	assert.Equal(t, [3]float64{2, 3, 4}, Scales(ScaleOffset([3]float64{2, -3, 4}, [3]float64{})))
}
