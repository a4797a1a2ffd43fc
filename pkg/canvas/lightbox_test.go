package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
)

func newLightBox(t *testing.T, f *fixture, lb LightBoxOptions) *LightBoxCanvas {
	t.Helper()
	c, err := NewLightBoxCanvas(f.env(), 2, DefaultOptions(), lb)
	require.NoError(t, err)
	t.Cleanup(c.Destroy)
	return c
}

func TestLightBoxLayout(t *testing.T) {
	f := newFixture(rampImage(t))
	lb := DefaultLightBoxOptions()
	lb.NCols = 3
	c := newLightBox(t, f, lb)

	// the image spans 4 display units along z
	assert.Equal(t, 4, c.NSlices())
	assert.Equal(t, 2, c.NRows())
	assert.InDelta(t, 0.0, c.SlicePos(0), 1e-9)
	assert.InDelta(t, 3.0, c.SlicePos(3), 1e-9)

	require.NoError(t, c.SetSliceSpacing(0.5))
	assert.Equal(t, 8, c.NSlices())
	assert.Equal(t, 3, c.NRows())

	require.NoError(t, c.SetNCols(8))
	assert.Equal(t, 1, c.NRows())

	require.NoError(t, c.SetZRange(0, 1.2))
	assert.Equal(t, 3, c.NSlices())
	assert.InDelta(t, 0.25, c.SlicePos(0), 1e-9)

	c.ClearZRange()
	assert.Equal(t, 8, c.NSlices())

	assert.ErrorIs(t, c.SetSliceSpacing(0), ErrSliceSpacing)
	assert.ErrorIs(t, c.SetNCols(0), ErrNCols)
	assert.ErrorIs(t, c.SetZRange(2, 1), ErrZRange)
	assert.Equal(t, 8, c.NSlices())
}

func TestLightBoxCoordinateRoundTrip(t *testing.T) {
	f := newFixture(rampImage(t))
	lb := DefaultLightBoxOptions()
	lb.NCols = 3
	c := newLightBox(t, f, lb)
	// the 12x8 grid fills a 300x200 canvas exactly
	require.NoError(t, c.Initialise(300, 200))

	p, ok := c.CanvasToWorld(10, 190)
	require.True(t, ok)
	assert.InDelta(t, -0.1, p[0], 1e-9)
	assert.InDelta(t, 3.1, p[1], 1e-9)
	assert.InDelta(t, 0.0, p[2], 1e-9)

	// the last cell of the bottom row is empty
	_, ok = c.CanvasToWorld(290, 10)
	assert.False(t, ok)
	_, ok = c.CanvasToWorld(-5, 10)
	assert.False(t, ok)
	_, ok = c.CanvasToWorld(10, 205)
	assert.False(t, ok)

	n := 0
	for x := 3.0; x < 300; x += 13 {
		for y := 2.0; y < 200; y += 11 {
			p, ok := c.CanvasToWorld(x, y)
			if !ok {
				continue
			}
			n++
			gx, gy, ok := c.WorldToCanvas(p)
			require.True(t, ok)
			assert.InDelta(t, x, gx, 1e-6)
			assert.InDelta(t, y, gy, 1e-6)
		}
	}
	assert.Positive(t, n)

	_, _, ok = c.WorldToCanvas([3]float64{1, 1, 10})
	assert.False(t, ok)
}

func TestLightBoxRoundTripWithLetterbox(t *testing.T) {
	f := newFixture(rampImage(t))
	lb := DefaultLightBoxOptions()
	lb.NCols = 2
	lb.SliceSpacing = 0.7
	c := newLightBox(t, f, lb)
	require.NoError(t, c.Initialise(500, 120))

	n := 0
	for x := 0.5; x < 500; x += 7 {
		for y := 0.5; y < 120; y += 5 {
			p, ok := c.CanvasToWorld(x, y)
			if !ok {
				continue
			}
			n++
			gx, gy, ok := c.WorldToCanvas(p)
			require.True(t, ok)
			assert.InDelta(t, x, gx, 1e-6)
			assert.InDelta(t, y, gy, 1e-6)
		}
	}
	assert.Positive(t, n)
}

func TestLightBoxDraw(t *testing.T) {
	img := rampImage(t)
	f := newFixture(img)
	lb := DefaultLightBoxOptions()
	lb.NCols = 3
	lb.ShowGridLines = true
	c := newLightBox(t, f, lb)
	require.NoError(t, c.Initialise(300, 200))
	f.queue.Flush(10)
	f.ctx.SetLocation([3]float64{1, 1, 1.2})

	require.NoError(t, c.Draw())
	assert.NotEmpty(t, f.programDraws("volume"))

	var lines, loops int
	for _, d := range f.programDraws("annotations_flat") {
		switch d.Prim {
		case gl.Lines:
			lines++
		case gl.LineLoop:
			loops++
		}
	}
	// two column and one row separators, and the cursor slice outline
	assert.Equal(t, 3, lines)
	assert.Equal(t, 1, loops)

	transient, _, _ := c.Annotations().Len()
	assert.Zero(t, transient)
}

func TestLightBoxOffscreenDrawsEverySlice(t *testing.T) {
	img := rampImage(t)
	f := newFixture(img)
	opts := DefaultOptions()
	opts.RenderMode = Offscreen
	lb := DefaultLightBoxOptions()
	lb.NCols = 2
	c, err := NewLightBoxCanvas(f.env(), 2, opts, lb)
	require.NoError(t, err)
	t.Cleanup(c.Destroy)
	require.NoError(t, c.Initialise(100, 100))
	f.queue.Flush(10)

	require.NoError(t, c.Draw())
	assert.NotEmpty(t, f.programDraws("volume"))
	assert.Len(t, f.programDraws("texture"), 1)

	f.rec.Reset()
	require.NoError(t, c.Draw())
	assert.Empty(t, f.programDraws("volume"))
}
