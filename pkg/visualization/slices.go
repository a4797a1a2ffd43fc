package visualization

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/logx"
	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
)

var axisNames = [3]string{"x", "y", "z"}

// ParseAxis converts "x", "y" or "z" to an axis index.
func ParseAxis(s string) (int, error) {
	for i, name := range axisNames {
		if strings.EqualFold(s, name) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", s)
}

// ExtractSlice extracts the voxel slice at position along axis from a
// volume of img, as a 16 bit greyscale image scaled to the image data
// range. The image columns and rows follow the two remaining axes in
// ascending order.
func ExtractSlice(img *models.Image, axis, position, volume int) (*image.Gray16, error) {
	if axis < 0 || axis > 2 {
		return nil, fmt.Errorf("invalid axis %d", axis)
	}
	shape := img.Shape3()
	if position < 0 || position >= shape[axis] {
		return nil, fmt.Errorf("position %d exceeds %s size %d", position, axisNames[axis], shape[axis])
	}
	if volume < 0 || volume >= img.NumVolumes() {
		return nil, fmt.Errorf("%s has no volume %d", img.Name(), volume)
	}

	cax, rax := 0, 1
	switch axis {
	case 0:
		cax, rax = 2, 1
	case 1:
		cax, rax = 0, 2
	}
	lo, hi := img.DataRange()
	scale := 0.0
	if hi > lo {
		scale = 65535 / (hi - lo)
	}

	out := image.NewGray16(image.Rect(0, 0, shape[cax], shape[rax]))
	var vox [3]int
	vox[axis] = position
	for r := 0; r < shape[rax]; r++ {
		for c := 0; c < shape[cax]; c++ {
			vox[cax], vox[rax] = c, r
			v := (img.Value(vox[0], vox[1], vox[2], volume) - lo) * scale
			out.SetGray16(c, r, color.Gray16{Y: uint16(math.Max(0, math.Min(65535, v)))})
		}
	}
	return out, nil
}

// SaveSliceSequence extracts and saves every slice along axis to
// outputDir, as slice_<axis>_<position>.png.
func SaveSliceSequence(img *models.Image, axis, volume int, outputDir string) error {
	if axis < 0 || axis > 2 {
		return fmt.Errorf("invalid axis %d", axis)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}
	n := img.Shape3()[axis]
	for pos := 0; pos < n; pos++ {
		slice, err := ExtractSlice(img, axis, pos, volume)
		if err != nil {
			return err
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", axisNames[axis], pos))
		if err := SaveImage(slice, filename); err != nil {
			return err
		}
	}
	logx.Logger().Info("slices saved", "image", img.Name(), "axis", axisNames[axis], "count", n, "dir", outputDir)
	return nil
}

var sliceExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".bmp": true, ".tif": true, ".tiff": true}

// sliceNumber extracts the digits of a file name, used to order slices.
func sliceNumber(filename string) int {
	var digits strings.Builder
	for _, c := range filepath.Base(filename) {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return n
}

// LoadSlices reads a directory of 2D greyscale images, ordered by the
// number in their file names, into a 3D image with z along the file
// order. Every slice must have the same size. The red channel of colour
// images is used.
func LoadSlices(dir string, pixdim [3]float64) (*models.Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && sliceExts[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no slice images found in %s", dir)
	}
	sort.SliceStable(files, func(i, j int) bool {
		ni, nj := sliceNumber(files[i]), sliceNumber(files[j])
		if ni != nj {
			return ni < nj
		}
		return files[i] < files[j]
	})

	var (
		data          []float64
		width, height int
	)
	for z, name := range files {
		slice, err := decode(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to load image %s: %w", name, err)
		}
		b := slice.Bounds()
		if z == 0 {
			width, height = b.Dx(), b.Dy()
			data = make([]float64, 0, width*height*len(files))
		} else if b.Dx() != width || b.Dy() != height {
			return nil, fmt.Errorf("slice %s is %dx%d, expected %dx%d", name, b.Dx(), b.Dy(), width, height)
		}
		// image rows run top down, voxel y runs bottom up
		for y := height - 1; y >= 0; y-- {
			for x := 0; x < width; x++ {
				r, _, _, _ := slice.At(b.Min.X+x, b.Min.Y+y).RGBA()
				data = append(data, float64(r)/65535)
			}
		}
	}
	name := filepath.Base(filepath.Clean(dir))
	img, err := models.NewImage(name, [4]int{width, height, len(files), 1}, pixdim, models.Float32, data, nil)
	if err != nil {
		return nil, err
	}
	logx.Logger().Info("slices loaded", "dir", dir, "slices", len(files), "width", width, "height", height)
	return img, nil
}

func decode(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	return img, err
}
