package texdata

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
)

func noFloat(int) bool { return false }
func withFloat(int) bool { return true }

func TestChooseType(t *testing.T) {
	tests := []struct {
		dtype     models.DType
		normalise bool
		floatOK   bool
		want      gl.PixelType
		offset    float64
		norm      bool
	}{
		{models.Uint8, false, false, gl.UnsignedByte, 0, false},
		{models.Int8, false, false, gl.UnsignedByte, 128, false},
		{models.Uint16, false, false, gl.UnsignedShort, 0, false},
		{models.Int16, false, false, gl.UnsignedShort, 32768, false},
		{models.Int32, false, false, gl.UnsignedShort, 0, true},
		{models.Float32, false, false, gl.UnsignedShort, 0, true},
		{models.Float32, false, true, gl.Float, 0, false},
		{models.Uint8, true, false, gl.UnsignedShort, 0, true},
		{models.Uint8, true, true, gl.Float, 0, false},
	}
	for _, tc := range tests {
		tt, err := ChooseType(tc.normalise, tc.dtype, 1, tc.floatOK)
		require.NoError(t, err)
		assert.Equal(t, tc.want, tt.Type, "%v normalise=%v float=%v", tc.dtype, tc.normalise, tc.floatOK)
		assert.Equal(t, tc.offset, tt.Offset, "%v", tc.dtype)
		assert.Equal(t, tc.norm, tt.Normalised, "%v", tc.dtype)
		assert.Equal(t, gl.InternalFormatFor(gl.Luminance, tt.Type), tt.Internal)
	}

	_, err := ChooseType(false, models.Uint8, 2, false)
	assert.Error(t, err)
}

func roundTrip(t *testing.T, data []float64, dtype models.DType, opts Options, floatOK func(int) bool) {
	t.Helper()
	p, err := Prepare([][]float64{data}, [3]int{len(data), 1, 1}, dtype, opts, floatOK)
	require.NoError(t, err)

	tol := (p.DataRange[1]-p.DataRange[0])/math.MaxUint16 + 1e-6
	for i, v := range data {
		assert.InDelta(t, v, p.DataValue(p.Stored(i)), tol, "%v value %d", dtype, i)
	}
}

func TestPrepareRoundTrip(t *testing.T) {
	roundTrip(t, []float64{0, 1, 127, 255}, models.Uint8, Options{}, noFloat)
	roundTrip(t, []float64{-128, -1, 0, 127}, models.Int8, Options{}, noFloat)
	roundTrip(t, []float64{0, 300, 65535}, models.Uint16, Options{}, noFloat)
	roundTrip(t, []float64{-32768, -5, 0, 32767}, models.Int16, Options{}, noFloat)
	roundTrip(t, []float64{-1000, 0, 12345, 99999}, models.Int32, Options{}, noFloat)
	roundTrip(t, []float64{-0.5, 0.25, 3.75, 1e3}, models.Float32, Options{}, noFloat)
	roundTrip(t, []float64{-0.5, 0.25, 3.75, 1e3}, models.Float32, Options{}, withFloat)
	roundTrip(t, []float64{0, 17, 255}, models.Uint8, Options{Normalise: true}, noFloat)
}

func TestPrepareCollapsedRange(t *testing.T) {
	p, err := Prepare([][]float64{{7, 7, 7}}, [3]int{3, 1, 1}, models.Float32, Options{}, noFloat)
	require.NoError(t, err)
	assert.True(t, p.Normalised)
	assert.Equal(t, 1.0, p.Scale)
	assert.Equal(t, 7.0, p.Offset)
	assert.Equal(t, 7.0, p.DataValue(p.Stored(1)))
}

func TestPrepareInterleavesChannels(t *testing.T) {
	x := []float64{1, 2}
	y := []float64{3, 4}
	z := []float64{5, 6}
	p, err := Prepare([][]float64{x, y, z}, [3]int{2, 1, 1}, models.Float32, Options{}, withFloat)
	require.NoError(t, err)
	assert.Equal(t, gl.RGB, p.Format)
	assert.Equal(t, gl.RGB32F, p.Internal)
	assert.Len(t, p.Data, 2*3*4)
	assert.Equal(t, 3.0, p.Stored(1))
	assert.Equal(t, 2.0, p.Stored(3))
}

func TestPrepareMagnitudePrefilter(t *testing.T) {
	p, err := Prepare([][]float64{{3}, {4}, {0}}, [3]int{1, 1, 1}, models.Float32,
		Options{Prefilter: Magnitude}, withFloat)
	require.NoError(t, err)
	assert.Equal(t, 1, p.NVals)
	assert.Equal(t, gl.Luminance, p.Format)
	assert.Equal(t, 5.0, p.Stored(0))
}

func TestPrepareShapeMismatch(t *testing.T) {
	_, err := Prepare([][]float64{{1, 2, 3}}, [3]int{2, 2, 1}, models.Uint8, Options{}, noFloat)
	assert.Error(t, err)
	_, err = Prepare(nil, [3]int{}, models.Uint8, Options{}, noFloat)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestSubsample(t *testing.T) {
	shape := [3]int{4, 4, 2}
	data := make([]float64, 32)
	for i := range data {
		data[i] = float64(i)
	}
	out, s := Subsample([][]float64{data}, shape, [3]float64{1, 1, 1}, 2)
	assert.Equal(t, [3]int{2, 2, 1}, s)
	assert.Equal(t, []float64{0, 2, 8, 10}, out[0])

	same, s := Subsample([][]float64{data}, shape, [3]float64{2, 2, 2}, 1.5)
	assert.Equal(t, shape, s)
	assert.Equal(t, data, same[0])
}

func TestFloatProbeMemoized(t *testing.T) {
	calls := 0
	p := NewFloatProbe(func(n int) bool {
		calls++
		return n == 1
	})
	assert.True(t, p.Supported(1))
	assert.True(t, p.Supported(1))
	assert.False(t, p.Supported(3))
	assert.Equal(t, 2, calls)

	rec := gl.NewRecorder(gl.Caps{FloatTextures: true})
	bp := BackendProbe(rec)
	assert.True(t, bp.Supported(4))
	assert.False(t, bp.Supported(2))
}
