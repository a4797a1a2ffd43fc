package visualization

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/annotations"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/config"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
)

// testVolume creates a 10x10x5 image in which every z slice has the
// value z/5.
func testVolume(t *testing.T) *models.Image {
	t.Helper()
	width, height, depth := 10, 10, 5
	data := make([]float64, width*height*depth)
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				data[z*width*height+y*width+x] = float64(z) / float64(depth)
			}
		}
	}
	img, err := models.NewImage("test", [4]int{width, height, depth, 1}, [3]float64{1, 1, 2}, models.Float32, data, nil)
	require.NoError(t, err)
	return img
}

func testConfig(layout string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Canvas.Layout = layout
	cfg.Render.Width = 64
	cfg.Render.Height = 48
	return cfg
}

func newViewer(t *testing.T, cfg *config.Config) (*Viewer, *gl.Recorder) {
	t.Helper()
	rec := gl.NewRecorder(gl.Caps{FloatTextures: true, MaxTextureSize: 2048, Max3DTextureSize: 512})
	v, err := NewViewer(rec, cfg)
	require.NoError(t, err)
	t.Cleanup(v.Close)
	return v, rec
}

func TestNewViewerLayouts(t *testing.T) {
	for layout, names := range map[string][]string{
		config.LayoutOrtho:    {"X", "Y", "Z"},
		config.LayoutLightBox: {"lightbox"},
		config.Layout3D:       {"3d"},
	} {
		t.Run(layout, func(t *testing.T) {
			v, _ := newViewer(t, testConfig(layout))
			assert.Equal(t, names, v.Names())
			for _, name := range names {
				c, err := v.Canvas(name)
				require.NoError(t, err)
				w, h := c.Size()
				assert.Equal(t, 64, w)
				assert.Equal(t, 48, h)
			}
			_, err := v.Canvas("sagittal")
			assert.ErrorIs(t, err, ErrUnknownCanvas)
		})
	}

	cfg := testConfig("grid")
	_, err := NewViewer(gl.NewRecorder(gl.Caps{}), cfg)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestFrameDrawsEveryCanvas(t *testing.T) {
	v, rec := newViewer(t, testConfig(config.LayoutOrtho))
	img := testVolume(t)
	v.AddOverlay(img)
	assert.Equal(t, v.Context().Bounds().Centre(), v.Context().Location())

	require.NoError(t, v.Frame())
	volumes := 0
	for _, d := range rec.Draws() {
		if strings.HasSuffix(rec.ProgramName(d.Program), "_volume") {
			volumes++
		}
	}
	assert.Equal(t, 3, volumes)
	for _, name := range v.Names() {
		c, _ := v.Canvas(name)
		assert.NoError(t, c.Failed(img))
	}

	v.Close()
	assert.Zero(t, v.Registry().Len())
	assert.Zero(t, rec.LivePrograms())
}

func TestScreenshot(t *testing.T) {
	cfg := testConfig(config.LayoutOrtho)
	cfg.Render.Background = "#ff0000"
	v, _ := newViewer(t, cfg)
	v.AddOverlay(testVolume(t))

	shot, err := v.Screenshot("Z", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 48), shot.Bounds())
	r, g, b, _ := shot.At(3, 3).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0, 0}, [3]uint32{r, g, b})

	scaled, err := v.Screenshot("Z", 32, 24)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 24), scaled.Bounds())

	dir := t.TempDir()
	pngPath := filepath.Join(dir, "z.png")
	require.NoError(t, v.SaveScreenshot("Z", pngPath))
	f, err := os.Open(pngPath)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, shot.Bounds(), decoded.Bounds())

	jpgPath := filepath.Join(dir, "z.jpg")
	require.NoError(t, v.SaveScreenshot("Z", jpgPath))
	data, err := os.ReadFile(jpgPath)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8}, data[:2])

	assert.ErrorIs(t, v.SaveScreenshot("3d", pngPath), ErrUnknownCanvas)
}

func TestAnnotationsRoundTrip(t *testing.T) {
	v, _ := newViewer(t, testConfig(config.LayoutOrtho))
	v.AddOverlay(testVolume(t))
	v.MarkLocation()
	v.Label("subject 01")

	var buf bytes.Buffer
	require.NoError(t, v.SaveAnnotations(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	// a point and a label per canvas
	assert.Len(t, lines, 6)

	ortho, _ := newViewer(t, testConfig(config.LayoutOrtho))
	n, err := ortho.LoadAnnotations(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	z, _ := ortho.Canvas("Z")
	_, _, persistent := z.Annotations().Len()
	assert.Equal(t, 2, persistent)

	cfg := testConfig(config.LayoutLightBox)
	cfg.Canvas.ZAxis = 1
	lb, _ := newViewer(t, cfg)
	n, err = lb.LoadAnnotations(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	c, _ := lb.Canvas(config.LayoutLightBox)
	for _, obj := range c.Annotations().Annotations() {
		if p, ok := obj.(*annotations.Point); ok {
			loc := v.Context().Location()
			assert.Equal(t, loc[0], p.X)
			assert.Equal(t, loc[2], p.Y)
		}
	}
}

func TestExtractSlice(t *testing.T) {
	img := testVolume(t)
	for z := 0; z < 5; z++ {
		slice, err := ExtractSlice(img, 2, z, 0)
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 10, 10), slice.Bounds())
		// the data range is 0 to 0.8
		want := float64(z) / 5 / 0.8 * 65535
		assert.InDelta(t, want, float64(slice.Gray16At(3, 7).Y), 1)
	}

	x, err := ExtractSlice(img, 0, 4, 0)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 5, 10), x.Bounds())
	assert.Equal(t, uint16(65535), x.Gray16At(4, 0).Y)

	y, err := ExtractSlice(img, 1, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 5), y.Bounds())
	assert.Equal(t, uint16(0), y.Gray16At(9, 0).Y)

	_, err = ExtractSlice(img, 2, 5, 0)
	assert.Error(t, err)
	_, err = ExtractSlice(img, 2, -1, 0)
	assert.Error(t, err)
	_, err = ExtractSlice(img, 3, 0, 0)
	assert.Error(t, err)
	_, err = ExtractSlice(img, 2, 0, 1)
	assert.Error(t, err)
}

func TestParseAxis(t *testing.T) {
	for s, want := range map[string]int{"x": 0, "Y": 1, "z": 2} {
		got, err := ParseAxis(s)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseAxis("w")
	assert.Error(t, err)
}

func TestSaveSliceSequence(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "slices")
	require.NoError(t, SaveSliceSequence(testVolume(t), 2, 0, dir))
	files, err := filepath.Glob(filepath.Join(dir, "slice_z_*.png"))
	require.NoError(t, err)
	assert.Len(t, files, 5)

	assert.Error(t, SaveSliceSequence(testVolume(t), 5, 0, dir))
}

func writeGrey(t *testing.T, path string, value uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 4, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			img.SetGray(x, y, color.Gray{Y: value})
		}
	}
	// mark the top left pixel
	img.SetGray(0, 0, color.Gray{Y: 255})
	require.NoError(t, SaveImage(img, path))
}

func TestLoadSlices(t *testing.T) {
	dir := t.TempDir()
	for i, n := range []int{10, 2, 1} {
		writeGrey(t, filepath.Join(dir, fmt.Sprintf("slice%d.png", n)), uint8(50*(i+1)))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	img, err := LoadSlices(dir, [3]float64{0.5, 0.5, 2})
	require.NoError(t, err)
	assert.Equal(t, [4]int{4, 3, 3, 1}, img.Shape)
	assert.Equal(t, [3]float64{0.5, 0.5, 2}, img.Pixdim)

	// slice1 was written last with 150, slice10 first with 50
	assert.InDelta(t, 150.0/255, img.Value(1, 0, 0, 0), 1e-9)
	assert.InDelta(t, 100.0/255, img.Value(1, 0, 1, 0), 1e-9)
	assert.InDelta(t, 50.0/255, img.Value(1, 0, 2, 0), 1e-9)
	// the top left pixel is the last voxel row
	assert.InDelta(t, 1.0, img.Value(0, 2, 0, 0), 1e-9)

	writeGrey(t, filepath.Join(dir, "slice3.png"), 0)
	big := image.NewGray(image.Rect(0, 0, 5, 5))
	require.NoError(t, SaveImage(big, filepath.Join(dir, "slice4.png")))
	_, err = LoadSlices(dir, [3]float64{1, 1, 1})
	assert.Error(t, err)

	_, err = LoadSlices(t.TempDir(), [3]float64{1, 1, 1})
	assert.Error(t, err)
}
