package opengl

import (
	"testing"

	gogl "github.com/go-gl/gl/v2.1/gl"
	"github.com/stretchr/testify/assert"

	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
)

// The tables below are plain constants, so they can be checked without a
// GL context.

func TestEnumTablesAreComplete(t *testing.T) {
	assert.Len(t, primitives, int(gl.TriangleFan)+1)
	assert.Equal(t, uint32(gogl.TRIANGLES), primitives[gl.Triangles])

	assert.Len(t, compareFuncs, int(gl.GreaterEqual)+1)
	assert.Equal(t, uint32(gogl.NOTEQUAL), compareFuncs[gl.NotEqual])
	assert.Len(t, stencilActions, int(gl.Invert)+1)
	assert.Equal(t, uint32(gogl.INCR_WRAP), stencilActions[gl.IncrWrap])

	for c := gl.Blend; c <= gl.Multisample; c++ {
		assert.NotZero(t, capability(c), "capability %d", c)
	}
	for f := gl.Luminance8; f <= gl.RGBA32F; f++ {
		assert.Contains(t, internalFormats, f)
	}
}

func TestTextureEnums(t *testing.T) {
	assert.Equal(t, uint32(gogl.TEXTURE_1D), target(gl.Texture1D))
	assert.Equal(t, uint32(gogl.TEXTURE_2D), target(gl.Texture2D))
	assert.Equal(t, uint32(gogl.TEXTURE_3D), target(gl.Texture3D))

	assert.Equal(t, uint32(gogl.UNSIGNED_BYTE), pixelType(gl.UnsignedByte))
	assert.Equal(t, uint32(gogl.UNSIGNED_SHORT), pixelType(gl.UnsignedShort))
	assert.Equal(t, uint32(gogl.FLOAT), pixelType(gl.Float))

	assert.Equal(t, uint32(gogl.LUMINANCE), format(gl.Luminance))
	assert.Equal(t, uint32(gogl.RGB), format(gl.RGB))
	assert.Equal(t, uint32(gogl.RGBA), format(gl.RGBA))

	assert.Equal(t, int32(gogl.LUMINANCE32F_ARB), internalFormats[gl.Luminance32F])
}
