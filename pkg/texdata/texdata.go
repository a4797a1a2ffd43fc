// Package texdata prepares voxel data for upload to the GPU. It decides
// the texture storage format for arbitrary data, converts the data, and
// returns the transformation between texture values and data values.
package texdata

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"gonum.org/v1/gonum/floats"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
)

// ErrNoData is returned when there is nothing to prepare.
var ErrNoData = errors.New("texdata: no data")

// TextureType is the GPU representation chosen for some data.
type TextureType struct {
	Type     gl.PixelType
	Format   gl.Format
	Internal gl.InternalFormat

	// Normalised is true when the data is rescaled into the full
	// unsigned 16 bit range.
	Normalised bool

	// Offset is added to signed integer data to make it unsigned.
	Offset float64
}

// ChooseType returns the texture type for data of the given type and
// channel count. Signed 8 and 16 bit data is stored unsigned with an offset
// of 2^7 or 2^15. Any other data, or data for which normalisation is
// requested, is stored as float32 if floatOK, and otherwise normalised to
// unsigned 16 bit.
func ChooseType(normalise bool, dtype models.DType, nvals int, floatOK bool) (TextureType, error) {
	format, err := gl.FormatForChannels(nvals)
	if err != nil {
		return TextureType{}, err
	}
	tt := TextureType{Format: format}

	switch {
	case !normalise && dtype == models.Uint8:
		tt.Type = gl.UnsignedByte
	case !normalise && dtype == models.Int8:
		tt.Type = gl.UnsignedByte
		tt.Offset = 128
	case !normalise && dtype == models.Uint16:
		tt.Type = gl.UnsignedShort
	case !normalise && dtype == models.Int16:
		tt.Type = gl.UnsignedShort
		tt.Offset = 32768
	case floatOK:
		tt.Type = gl.Float
	default:
		tt.Type = gl.UnsignedShort
		tt.Normalised = true
	}
	tt.Internal = gl.InternalFormatFor(format, tt.Type)
	return tt, nil
}

// Prefilter transforms per-channel data before conversion. It may change
// the number of channels.
type Prefilter func(channels [][]float64) [][]float64

// Options controls data preparation.
type Options struct {
	// Normalise requests that the data be rescaled into [0, 1] texture
	// values. It is ignored when float textures are available.
	Normalise bool

	// NormaliseRange overrides the data range used for normalisation.
	NormaliseRange *[2]float64

	// Prefilter is applied after resampling and before conversion.
	Prefilter Prefilter

	// Resolution, if positive, is the requested resolution in mm. The
	// data is subsampled on a regular grid when it is coarser than the
	// voxel size.
	Resolution float64
	Pixdim     [3]float64
}

// Prepared is data ready for upload.
type Prepared struct {
	TextureType

	// Shape is the texture shape, after any subsampling.
	Shape [3]int

	// NVals is the number of channels.
	NVals int

	// Data is the converted data, channel-interleaved, little endian.
	Data []byte

	// Scale and Offset map texture values to data values:
	// data = tex*Scale + Offset. Texture values of integer textures are
	// the normalised values the GPU samples, i.e. stored/255 or
	// stored/65535.
	Scale  float64
	Offset float64

	// DataRange is the range of the prepared (prefiltered) data.
	DataRange [2]float64
}

// Desc returns the texture description for the prepared data.
func (p *Prepared) Desc(target gl.TextureTarget, filter gl.Filter) gl.TextureDesc {
	return gl.TextureDesc{
		Target:   target,
		Shape:    p.Shape,
		Type:     p.Type,
		Format:   p.Format,
		Internal: p.Internal,
		Filter:   filter,
	}
}

// DataValue converts a sampled texture value to a data value.
func (p *Prepared) DataValue(tex float64) float64 {
	return tex*p.Scale + p.Offset
}

// TexValue converts a data value to the texture value the GPU would
// sample, before quantisation.
func (p *Prepared) TexValue(v float64) float64 {
	return (v - p.Offset) / p.Scale
}

// VoxValXform returns DataValue as a 4x4 matrix for shaders.
func (p *Prepared) VoxValXform() mgl32.Mat4 {
	m := mgl32.Ident4()
	m.Set(0, 0, float32(p.Scale))
	m.Set(0, 3, float32(p.Offset))
	return m
}

// InvVoxValXform returns TexValue as a 4x4 matrix for shaders.
func (p *Prepared) InvVoxValXform() mgl32.Mat4 {
	m := mgl32.Ident4()
	m.Set(0, 0, float32(1/p.Scale))
	m.Set(0, 3, float32(-p.Offset/p.Scale))
	return m
}

// Stored returns element i of the prepared data, as the texture value the
// GPU samples.
func (p *Prepared) Stored(i int) float64 {
	switch p.Type {
	case gl.UnsignedByte:
		return float64(p.Data[i]) / math.MaxUint8
	case gl.UnsignedShort:
		return float64(binary.LittleEndian.Uint16(p.Data[2*i:])) / math.MaxUint16
	}
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(p.Data[4*i:])))
}

// Prepare converts channels, each holding one value per voxel of shape,
// into texture data. floatOK reports whether float textures with a given
// number of channels are supported.
func Prepare(channels [][]float64, shape [3]int, dtype models.DType, opts Options, floatOK func(nvals int) bool) (*Prepared, error) {
	if len(channels) == 0 || len(channels[0]) == 0 {
		return nil, ErrNoData
	}
	n := shape[0] * shape[1] * shape[2]
	for i, c := range channels {
		if len(c) != n {
			return nil, fmt.Errorf("texdata: channel %d has %d values, shape %v needs %d", i, len(c), shape, n)
		}
	}

	if opts.Resolution > 0 {
		channels, shape = Subsample(channels, shape, opts.Pixdim, opts.Resolution)
	}
	if opts.Prefilter != nil {
		channels = opts.Prefilter(channels)
		if len(channels) == 0 {
			return nil, fmt.Errorf("%w after prefilter", ErrNoData)
		}
		// prefiltered data is no longer of the original integer type
		if dtype.IsInteger() {
			dtype = models.Float64
		}
	}

	nvals := len(channels)
	isFloat := floatOK != nil && floatOK(nvals)
	tt, err := ChooseType(opts.Normalise, dtype, nvals, isFloat)
	if err != nil {
		return nil, err
	}

	lo, hi := channelRange(channels)
	p := &Prepared{
		TextureType: tt,
		Shape:       shape,
		NVals:       nvals,
		DataRange:   [2]float64{lo, hi},
	}
	if tt.Normalised && opts.NormaliseRange != nil {
		lo, hi = opts.NormaliseRange[0], opts.NormaliseRange[1]
	}

	switch {
	case tt.Type == gl.Float:
		p.Scale, p.Offset = 1, 0
	case tt.Normalised:
		// a collapsed range keeps an identity scale; the offset alone
		// reproduces the single data value
		p.Scale, p.Offset = hi-lo, lo
		if hi == lo {
			p.Scale = 1
		}
	case tt.Type == gl.UnsignedByte:
		p.Scale, p.Offset = math.MaxUint8, -tt.Offset
	default:
		p.Scale, p.Offset = math.MaxUint16, -tt.Offset
	}

	p.Data = encode(channels, tt, p, lo, hi)
	return p, nil
}

func channelRange(channels [][]float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, c := range channels {
		finite := make([]float64, 0, len(c))
		for _, v := range c {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				finite = append(finite, v)
			}
		}
		if len(finite) == 0 {
			continue
		}
		lo = math.Min(lo, floats.Min(finite))
		hi = math.Max(hi, floats.Max(finite))
	}
	if lo > hi {
		return 0, 0
	}
	return lo, hi
}

func encode(channels [][]float64, tt TextureType, p *Prepared, lo, hi float64) []byte {
	nvals := len(channels)
	n := len(channels[0])
	size := tt.Type.Size()
	buf := make([]byte, n*nvals*size)

	for i := 0; i < n; i++ {
		for c := 0; c < nvals; c++ {
			v := channels[c][i]
			off := (i*nvals + c) * size
			switch {
			case tt.Type == gl.Float:
				binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(float32(v)))
			case tt.Normalised:
				if math.IsNaN(v) {
					v = lo
				}
				t := 0.0
				if hi > lo {
					t = (v - lo) / (hi - lo)
				}
				binary.LittleEndian.PutUint16(buf[off:], uint16(math.Round(clamp(t, 0, 1)*math.MaxUint16)))
			case tt.Type == gl.UnsignedByte:
				buf[off] = uint8(clamp(math.Round(v+tt.Offset), 0, math.MaxUint8))
			default:
				binary.LittleEndian.PutUint16(buf[off:], uint16(clamp(math.Round(v+tt.Offset), 0, math.MaxUint16)))
			}
		}
	}
	return buf
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// SubsampleSteps returns, per axis, the number of voxels spanned by
// resolution mm, and the resulting subsampled shape.
func SubsampleSteps(shape [3]int, pixdim [3]float64, resolution float64) (step, out [3]int) {
	for ax := 0; ax < 3; ax++ {
		step[ax] = 1
		if resolution > 0 && pixdim[ax] > 0 {
			step[ax] = max(1, int(math.Floor(resolution/pixdim[ax])))
		}
		out[ax] = (shape[ax] + step[ax] - 1) / step[ax]
	}
	return step, out
}

// Subsample keeps every step'th voxel along each axis, where step is the
// number of voxels spanned by resolution mm. It returns the subsampled
// channels and their shape.
func Subsample(channels [][]float64, shape [3]int, pixdim [3]float64, resolution float64) ([][]float64, [3]int) {
	step, out := SubsampleSteps(shape, pixdim, resolution)
	if step == [3]int{1, 1, 1} {
		return channels, shape
	}

	result := make([][]float64, len(channels))
	for c, data := range channels {
		sub := make([]float64, 0, out[0]*out[1]*out[2])
		for z := 0; z < shape[2]; z += step[2] {
			for y := 0; y < shape[1]; y += step[1] {
				for x := 0; x < shape[0]; x += step[0] {
					sub = append(sub, data[z*shape[0]*shape[1]+y*shape[0]+x])
				}
			}
		}
		result[c] = sub
	}
	return result, out
}

// Magnitude is a Prefilter which replaces vector channels with their
// per-voxel magnitude.
func Magnitude(channels [][]float64) [][]float64 {
	out := make([]float64, len(channels[0]))
	for i := range out {
		var sum float64
		for _, c := range channels {
			sum += c[i] * c[i]
		}
		out[i] = math.Sqrt(sum)
	}
	return [][]float64{out}
}

// Abs is a Prefilter which takes the absolute value of every channel.
func Abs(channels [][]float64) [][]float64 {
	out := make([][]float64, len(channels))
	for i, c := range channels {
		a := make([]float64, len(c))
		for j, v := range c {
			a[j] = math.Abs(v)
		}
		out[i] = a
	}
	return out
}
