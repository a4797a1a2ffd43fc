// Package globject implements the per-overlay, per-canvas rendering objects.
// A GLObject turns one overlay and its display options into textures,
// shader state and draw calls on a gl.Backend.
package globject

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/logx"
	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/idle"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/props"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/resources"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/shaders"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/texdata"
)

// UpdatedProp is notified on a GLObject whenever its appearance changes
// and the canvas should redraw.
const UpdatedProp = "updated"

// ErrUnsupportedType is returned by New for overlay types without a
// GLObject.
var ErrUnsupportedType = errors.New("no GLObject for overlay type")

// ConstructionError is returned when a GLObject cannot be built. The
// overlay is left without a GLObject.
type ConstructionError struct {
	Overlay string
	Type    models.OverlayType
	Err     error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("creating %s GLObject for %s: %v", e.Type, e.Overlay, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

// View is the camera state of the canvas drawing a GLObject. Canvases
// update it before every draw.
type View struct {
	Projection mgl32.Mat4
	ModelView  mgl32.Mat4

	// PixelSize is the size of one screen pixel in display units.
	PixelSize float64

	LightPos  [3]float64
	CameraDir [3]float64

	// NumSteps is the number of samples taken along each ray by
	// ray-casting shaders.
	NumSteps int
}

// NewView returns a view with identity matrices.
func NewView() *View {
	return &View{
		Projection: mgl32.Ident4(),
		ModelView:  mgl32.Ident4(),
		PixelSize:  1,
		LightPos:   [3]float64{1, 1, -1},
		CameraDir:  [3]float64{0, 0, -1},
		NumSteps:   100,
	}
}

// Env is everything a GLObject needs from its canvas and application.
type Env struct {
	Backend  gl.Backend
	Registry *resources.Registry
	Queue    *idle.Queue
	Probe    *texdata.FloatProbe
	Context  *models.DisplayContext
	View     *View

	// CanvasID identifies the owning canvas in listener names and
	// private resource keys.
	CanvasID uint64
}

// Axes maps the horizontal, vertical and depth screen axes to display
// axes.
type Axes [3]int

// ZAxes returns the axes of a canvas whose depth axis is zax.
func ZAxes(zax int) Axes {
	switch zax {
	case 0:
		return Axes{1, 2, 0}
	case 1:
		return Axes{0, 2, 1}
	}
	return Axes{0, 1, 2}
}

// X returns the horizontal display axis.
func (a Axes) X() int { return a[0] }

// Y returns the vertical display axis.
func (a Axes) Y() int { return a[1] }

// Z returns the depth display axis.
func (a Axes) Z() int { return a[2] }

// GLObject is the rendering contract shared by every overlay type.
//
// PreDraw and PostDraw must be called in pairs around one or more calls
// to Draw2D, DrawAll or Drawer3D.Draw3D.
type GLObject interface {
	Name() string
	Overlay() models.Overlay
	Type() models.OverlayType

	// Notifier fires UpdatedProp when the object needs to be redrawn.
	Notifier() *props.Notifier

	// Ready reports whether the shader programs and all required
	// textures are ready.
	Ready() bool

	// Bounds returns the object's extent in display coordinates.
	Bounds() models.Bounds

	PreDraw() error

	// Draw2D draws a cross-section at depth zpos along axes.Z(). xform,
	// if given, is applied before the canvas view; bbox, if given,
	// clips the slice. Nothing is drawn if zpos is outside Bounds.
	Draw2D(zpos float64, axes Axes, xform *mgl32.Mat4, bbox *models.Bounds) error

	// DrawAll is Draw2D for each (zposes[i], xforms[i]) pair. xforms
	// may be nil.
	DrawAll(axes Axes, zposes []float64, xforms []*mgl32.Mat4) error

	PostDraw() error

	// Destroy releases every owned and shared resource. It is safe to
	// call more than once.
	Destroy()
	Destroyed() bool
}

// Drawer3D is implemented by GLObjects which can draw a full 3D
// representation.
type Drawer3D interface {
	Draw3D(xform *mgl32.Mat4, bbox *models.Bounds) error
}

// Supports3D reports whether obj can draw in 3D.
func Supports3D(obj GLObject) bool {
	_, ok := obj.(Drawer3D)
	return ok
}

type factory func(env *Env, ov models.Overlay) (GLObject, error)

var factories = map[models.OverlayType]factory{
	models.VolumeType:     func(env *Env, ov models.Overlay) (GLObject, error) { return NewVolume(env, ov) },
	models.MIPType:        func(env *Env, ov models.Overlay) (GLObject, error) { return NewMIP(env, ov) },
	models.MaskType:       func(env *Env, ov models.Overlay) (GLObject, error) { return NewMask(env, ov) },
	models.LabelType:      func(env *Env, ov models.Overlay) (GLObject, error) { return NewLabel(env, ov) },
	models.RGBVectorType:  func(env *Env, ov models.Overlay) (GLObject, error) { return NewRGBVector(env, ov) },
	models.LineVectorType: func(env *Env, ov models.Overlay) (GLObject, error) { return NewLineVector(env, ov) },
	models.TensorType:     func(env *Env, ov models.Overlay) (GLObject, error) { return NewTensor(env, ov) },
	models.SHType:         func(env *Env, ov models.Overlay) (GLObject, error) { return NewSH(env, ov) },
	models.MeshType:       func(env *Env, ov models.Overlay) (GLObject, error) { return NewMesh(env, ov) },
	models.RGBType:        func(env *Env, ov models.Overlay) (GLObject, error) { return NewRGB(env, ov) },
}

// New creates the GLObject for ov, of the overlay type currently selected
// in its Display. Failures are returned as *ConstructionError.
func New(env *Env, ov models.Overlay) (GLObject, error) {
	otype := env.Context.Display(ov).OverlayType.Get()
	f, ok := factories[otype]
	if !ok {
		return nil, &ConstructionError{Overlay: ov.Name(), Type: otype, Err: ErrUnsupportedType}
	}
	obj, err := f(env, ov)
	if err != nil {
		var ce *ConstructionError
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, &ConstructionError{Overlay: ov.Name(), Type: otype, Err: err}
	}
	logx.Logger().Debug("globject created", "overlay", ov.Name(), "type", otype.String(), "canvas", env.CanvasID)
	return obj, nil
}

var lastObject uint64

// base holds the state and behaviour shared by every variant.
type base struct {
	env      *Env
	overlay  models.Overlay
	otype    models.OverlayType
	display  *models.Display
	opts     models.Opts
	name     string
	listener string
	n        props.Notifier

	programs    []*gl.Program
	shaderDirty bool
	destroyed   bool

	// onChange is called for every classified option change.
	onChange func(kind ChangeKind, prop string) error
}

func (b *base) init(env *Env, ov models.Overlay, otype models.OverlayType) error {
	lastObject++
	b.env = env
	b.overlay = ov
	b.otype = otype
	b.display = env.Context.Display(ov)
	b.name = fmt.Sprintf("%s_%s_%d", otype, ov.Name(), lastObject)
	b.listener = fmt.Sprintf("globject_%d_%d", env.CanvasID, lastObject)
	b.shaderDirty = true

	opts, err := env.Context.Opts(ov)
	if err != nil {
		return err
	}
	if opts.Type() != otype {
		return fmt.Errorf("overlay %s has %s options, not %s", ov.Name(), opts.Type(), otype)
	}
	b.opts = opts

	b.display.Notifier().Listen(b.listener, props.All, b.changed)
	b.opts.Notifier().Listen(b.listener, props.All, b.changed)
	return nil
}

func (b *base) changed(prop string) {
	if b.destroyed {
		return
	}
	kind, ok := Classify(b.otype, prop)
	if !ok {
		return
	}
	logx.Logger().Debug("globject option changed", "object", b.name, "prop", prop, "kind", kind.String())
	b.shaderDirty = true
	if b.onChange != nil {
		if err := b.onChange(kind, prop); err != nil {
			logx.Logger().Warn("globject refresh failed", "object", b.name, "prop", prop, "error", err)
		}
	}
	b.notify()
}

func (b *base) notify() { b.n.Notify(UpdatedProp) }

func (b *base) Name() string { return b.name }
func (b *base) Overlay() models.Overlay { return b.overlay }
func (b *base) Type() models.OverlayType { return b.otype }
func (b *base) Notifier() *props.Notifier { return &b.n }
func (b *base) Destroyed() bool { return b.destroyed }
func (b *base) Bounds() models.Bounds { return b.opts.DisplayBounds() }
func (b *base) programsReady() bool { return allReady(b.programs) }
func (b *base) backend() gl.Backend { return b.env.Backend }
func (b *base) view() *View { return b.env.View }
func (b *base) alpha() float64 { return b.display.Alpha.Get() / 100 }
func (b *base) bricon() (float64, float64) { return b.display.Brightness.Get() / 100, b.display.Contrast.Get() / 100 }
func (b *base) visible(zpos float64, a Axes) bool { return b.Bounds().ContainsAlong(a.Z(), zpos) }

func allReady(progs []*gl.Program) bool {
	for _, p := range progs {
		if !p.Ready() {
			return false
		}
	}
	return true
}

// program compiles a shader program owned by the object.
func (b *base) program(name string) (*gl.Program, error) {
	vert, frag, err := shaders.Load(name)
	if err != nil {
		return nil, err
	}
	p, err := gl.NewProgram(b.env.Backend, b.name+"_"+name, vert, frag)
	if err != nil {
		return nil, err
	}
	b.programs = append(b.programs, p)
	return p, nil
}

// mvp returns the canvas projection and model-view, with xform applied
// first.
func (b *base) mvp(xform *mgl32.Mat4) mgl32.Mat4 {
	v := b.view()
	m := v.Projection.Mul4(v.ModelView)
	if xform != nil {
		m = m.Mul4(*xform)
	}
	return m
}

// destroyBase removes listeners and deletes programs. It reports false if
// the object was already destroyed.
func (b *base) destroyBase() bool {
	if b.destroyed {
		return false
	}
	b.destroyed = true
	b.display.Notifier().RemoveAll(b.listener)
	b.opts.Notifier().RemoveAll(b.listener)
	for _, p := range b.programs {
		p.Destroy()
	}
	b.programs = nil
	logx.Logger().Debug("globject destroyed", "object", b.name)
	return true
}

// drawLoop is the default DrawAll.
func drawLoop(obj GLObject, axes Axes, zposes []float64, xforms []*mgl32.Mat4) error {
	var errs []error
	for i, z := range zposes {
		var x *mgl32.Mat4
		if i < len(xforms) {
			x = xforms[i]
		}
		if err := obj.Draw2D(z, axes, x, nil); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func vec3(v [3]float64) mgl32.Vec3 {
	return mgl32.Vec3{float32(v[0]), float32(v[1]), float32(v[2])}
}

func vec4(c models.Colour) mgl32.Vec4 {
	return mgl32.Vec4{float32(c[0]), float32(c[1]), float32(c[2]), float32(c[3])}
}

// colourMatrix packs three colours into the columns of a mat3.
func colourMatrix(x, y, z models.Colour) mgl32.Mat3 {
	return mgl32.Mat3FromCols(
		mgl32.Vec3{float32(x[0]), float32(x[1]), float32(x[2])},
		mgl32.Vec3{float32(y[0]), float32(y[1]), float32(y[2])},
		mgl32.Vec3{float32(z[0]), float32(z[1]), float32(z[2])},
	)
}

func boolf(v bool) float32 {
	if v {
		return 1
	}
	return 0
}
