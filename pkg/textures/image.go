package textures

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/logx"
	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/idle"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/props"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/resources"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/texdata"
)

// DataProp is notified on an ImageTexture after new data has been
// uploaded.
const DataProp = "data"

// ImageOptions controls how an ImageTexture samples its image.
type ImageOptions struct {
	// Volume is the first volume used.
	Volume int

	// NVals is the number of consecutive volumes stored per texel: 1 for
	// scalar data, 3 for vector data.
	NVals int

	Normalise      bool
	NormaliseRange *[2]float64

	// Prefilter is applied to the data before upload. PrefilterName
	// identifies it, as functions cannot be compared.
	Prefilter     texdata.Prefilter
	PrefilterName string

	// Resolution, if positive, subsamples the image to approximately
	// this resolution in mm.
	Resolution float64

	Interpolation gl.Filter
}

func (o ImageOptions) equal(other ImageOptions) bool {
	sameRange := (o.NormaliseRange == nil) == (other.NormaliseRange == nil)
	if sameRange && o.NormaliseRange != nil {
		sameRange = *o.NormaliseRange == *other.NormaliseRange
	}
	return o.Volume == other.Volume &&
		o.NVals == other.NVals &&
		o.Normalise == other.Normalise &&
		sameRange &&
		o.PrefilterName == other.PrefilterName &&
		o.Resolution == other.Resolution &&
		o.Interpolation == other.Interpolation
}

// ImageKey returns the registry key under which an image texture with
// the given options is shared.
func ImageKey(img *models.Image, opts ImageOptions) resources.Key {
	variant := map[string]any{
		"volume": opts.Volume,
		"nvals":  max(opts.NVals, 1),
		"norm":   opts.Normalise,
		"res":    opts.Resolution,
		"interp": opts.Interpolation,
	}
	if opts.PrefilterName != "" {
		variant["prefilter"] = opts.PrefilterName
	}
	return resources.Key{Kind: "imagetexture", Overlay: img.ID(), Variant: resources.Variant(variant)}
}

// ImageTexture is a 3D texture holding one or more volumes of an image.
// Data is prepared and uploaded on the idle queue, so the texture is not
// ready immediately after creation or refresh.
type ImageTexture struct {
	*Texture
	n props.Notifier

	image    *models.Image
	opts     ImageOptions
	probe    *texdata.FloatProbe
	queue    *idle.Queue
	prepared *texdata.Prepared
	err      error
}

// NewImageTexture creates a texture for img and queues its first upload.
// If queue is nil the upload happens immediately. The texture fails early
// with a *SizeError if the image cannot be stored on this GPU.
func NewImageTexture(b gl.Backend, queue *idle.Queue, probe *texdata.FloatProbe, name string, img *models.Image, opts ImageOptions) (*ImageTexture, error) {
	opts.NVals = max(opts.NVals, 1)
	if opts.Volume+opts.NVals > img.NumVolumes() {
		return nil, fmt.Errorf("texture %s: volumes %d-%d out of range for %d volumes",
			name, opts.Volume, opts.Volume+opts.NVals-1, img.NumVolumes())
	}
	_, shape := texdata.SubsampleSteps(img.Shape3(), img.Pixdim, opts.Resolution)
	if err := CheckSize(b.Caps(), name, gl.Texture3D, shape); err != nil {
		return nil, err
	}
	if probe == nil {
		probe = texdata.BackendProbe(b)
	}
	t := &ImageTexture{
		Texture: newTexture(b, name),
		image:   img,
		opts:    opts,
		probe:   probe,
		queue:   queue,
	}
	t.Refresh()
	return t, nil
}

// Notifier returns the texture's change notifier.
func (t *ImageTexture) Notifier() *props.Notifier { return &t.n }

// Image returns the image the texture was created from.
func (t *ImageTexture) Image() *models.Image { return t.image }

// Options returns the current options.
func (t *ImageTexture) Options() ImageOptions { return t.opts }

// Err returns the error from the last refresh, if any.
func (t *ImageTexture) Err() error { return t.err }

// Set changes the texture options, refreshing the data if they changed.
func (t *ImageTexture) Set(opts ImageOptions) {
	opts.NVals = max(opts.NVals, 1)
	if opts.equal(t.opts) {
		return
	}
	t.opts = opts
	t.Refresh()
}

// Refresh queues a data upload. Repeated refreshes before the queue runs
// are coalesced.
func (t *ImageTexture) Refresh() {
	if t.destroyed {
		return
	}
	t.ready = false
	if t.queue == nil {
		t.refresh()
		return
	}
	t.queue.Add(idle.Task{
		Name:         "imagetexture_refresh_" + t.name,
		Func:         t.refresh,
		Skip:         t.Destroyed,
		DropIfQueued: true,
	})
}

func (t *ImageTexture) refresh() {
	if t.destroyed {
		return
	}
	img := t.image
	channels := make([][]float64, t.opts.NVals)
	for i := range channels {
		channels[i] = img.Volume(t.opts.Volume + i)
	}
	prepared, err := texdata.Prepare(channels, img.Shape3(), img.DType, texdata.Options{
		Normalise:      t.opts.Normalise,
		NormaliseRange: t.opts.NormaliseRange,
		Prefilter:      t.opts.Prefilter,
		Resolution:     t.opts.Resolution,
		Pixdim:         img.Pixdim,
	}, t.probe.Supported)
	if err == nil {
		err = t.upload(prepared.Desc(gl.Texture3D, t.opts.Interpolation), prepared.Data)
	}
	if err != nil {
		t.err = err
		logx.Logger().Warn("image texture upload failed", "texture", t.name, "error", err)
		return
	}
	t.err = nil
	t.prepared = prepared
	logx.Logger().Debug("image texture uploaded", "texture", t.name,
		"shape", prepared.Shape, "type", prepared.Type, "normalised", prepared.Normalised)
	t.n.Notify(DataProp)
}

// Prepared returns the last uploaded data, or nil.
func (t *ImageTexture) Prepared() *texdata.Prepared { return t.prepared }

// Shape returns the texture shape, which may be smaller than the image
// shape when subsampling.
func (t *ImageTexture) Shape() [3]int {
	if t.prepared == nil {
		_, shape := texdata.SubsampleSteps(t.image.Shape3(), t.image.Pixdim, t.opts.Resolution)
		return shape
	}
	return t.prepared.Shape
}

// VoxValXform returns the transform from texture values to data values.
func (t *ImageTexture) VoxValXform() mgl32.Mat4 {
	if t.prepared == nil {
		return mgl32.Ident4()
	}
	return t.prepared.VoxValXform()
}

// InvVoxValXform returns the transform from data values to texture
// values.
func (t *ImageTexture) InvVoxValXform() mgl32.Mat4 {
	if t.prepared == nil {
		return mgl32.Ident4()
	}
	return t.prepared.InvVoxValXform()
}

// Destroy releases the texture and its listeners.
func (t *ImageTexture) Destroy() {
	t.Texture.Destroy()
	if t.queue != nil {
		t.queue.Cancel("imagetexture_refresh_" + t.name)
	}
	t.prepared = nil
}
