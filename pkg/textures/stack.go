package textures

import (
	"fmt"
	"math"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/logx"
	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/gl"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/idle"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/resources"
)

// DefaultStackDepth is the default number of slices in a
// RenderTextureStack.
const DefaultStackDepth = 256

// SliceRenderer draws one slice at display depth zpos into target.
type SliceRenderer func(target *RenderTexture, zpos float64) error

// StackKey returns the registry key of the texture stack of an overlay
// along zax. Stacks are shared between canvases unless the key is made
// private with Key.Private.
func StackKey(ov models.Overlay, zax int) resources.Key {
	return resources.Key{
		Kind:    "stack",
		Overlay: ov.ID(),
		Variant: resources.Variant(map[string]any{"zax": zax}),
	}
}

// RenderTextureStack is a set of 2D textures, each holding a
// pre-rendered slice of an overlay at evenly spaced depths. Slices are
// rendered progressively on the idle queue; a slice which is requested
// before it has been rendered is rendered on demand.
type RenderTextureStack struct {
	backend gl.Backend
	queue   *idle.Queue
	name    string

	render        SliceRenderer
	zax           int
	bounds        models.Bounds
	depth         int
	width, height int

	textures  []*RenderTexture
	dirty     []bool
	destroyed bool
}

// NewRenderTextureStack creates an empty stack. Configure must be called
// before it is used.
func NewRenderTextureStack(b gl.Backend, queue *idle.Queue, name string, render SliceRenderer) *RenderTextureStack {
	return &RenderTextureStack{backend: b, queue: queue, name: name, render: render, depth: DefaultStackDepth}
}

// Name returns the stack name.
func (s *RenderTextureStack) Name() string { return s.name }

// ZAx returns the depth axis.
func (s *RenderTextureStack) ZAx() int { return s.zax }

// Bounds returns the display bounds covered by the stack.
func (s *RenderTextureStack) Bounds() models.Bounds { return s.bounds }

// Depth returns the number of slices.
func (s *RenderTextureStack) Depth() int { return s.depth }

// SetRenderer replaces the function used to render slices, and
// invalidates every slice.
func (s *RenderTextureStack) SetRenderer(render SliceRenderer) {
	s.render = render
	s.Invalidate()
}

// Configure sets the depth axis, the display bounds the slices cover, the
// number of slices and the texture size. Existing slices are discarded if
// any of them change.
func (s *RenderTextureStack) Configure(zax int, bounds models.Bounds, depth, width, height int) error {
	if depth <= 0 || width <= 0 || height <= 0 {
		return fmt.Errorf("texture stack %s: invalid configuration depth=%d size=%dx%d", s.name, depth, width, height)
	}
	if s.textures != nil && zax == s.zax && bounds == s.bounds && depth == s.depth &&
		width == s.width && height == s.height {
		return nil
	}
	s.destroyTextures()
	s.zax, s.bounds, s.depth, s.width, s.height = zax, bounds, depth, width, height
	s.textures = make([]*RenderTexture, depth)
	s.dirty = make([]bool, depth)
	s.Invalidate()
	logx.Logger().Debug("texture stack configured", "stack", s.name, "zax", zax, "depth", depth)
	return nil
}

// Invalidate marks every slice as needing to be re-rendered, and queues
// progressive rendering.
func (s *RenderTextureStack) Invalidate() {
	if s.destroyed {
		return
	}
	for i := range s.dirty {
		s.dirty[i] = true
	}
	s.queueNext()
}

func (s *RenderTextureStack) taskName() string { return "stack_render_" + s.name }

func (s *RenderTextureStack) queueNext() {
	if s.queue == nil || s.destroyed {
		return
	}
	s.queue.Add(idle.Task{
		Name:         s.taskName(),
		Func:         s.renderNext,
		Skip:         func() bool { return s.destroyed },
		DropIfQueued: true,
	})
}

// renderNext renders one dirty slice and queues the next.
func (s *RenderTextureStack) renderNext() {
	for i, d := range s.dirty {
		if d {
			if err := s.renderSlice(i); err != nil {
				logx.Logger().Warn("texture stack slice failed", "stack", s.name, "slice", i, "error", err)
				s.dirty[i] = false
			}
			s.queueNext()
			return
		}
	}
}

// Pending returns the number of slices still to be rendered.
func (s *RenderTextureStack) Pending() int {
	n := 0
	for _, d := range s.dirty {
		if d {
			n++
		}
	}
	return n
}

// Index returns the index of the slice nearest to display depth zpos, and
// whether zpos lies within the stack's depth range.
func (s *RenderTextureStack) Index(zpos float64) (int, bool) {
	lo, hi := s.bounds.Lo[s.zax], s.bounds.Hi[s.zax]
	if s.depth == 0 || zpos < lo || zpos > hi {
		return 0, false
	}
	step := (hi - lo) / float64(s.depth)
	if step == 0 {
		return 0, true
	}
	i := int(math.Floor((zpos - lo) / step))
	return min(max(i, 0), s.depth-1), true
}

// SlicePos returns the display depth of slice i, at the centre of its
// depth interval.
func (s *RenderTextureStack) SlicePos(i int) float64 {
	lo, hi := s.bounds.Lo[s.zax], s.bounds.Hi[s.zax]
	step := (hi - lo) / float64(s.depth)
	return lo + (float64(i)+0.5)*step
}

// Texture returns the slice texture nearest to zpos, rendering it first
// if necessary. It returns nil if zpos is outside the stack.
func (s *RenderTextureStack) Texture(zpos float64) (*RenderTexture, error) {
	if s.destroyed {
		return nil, fmt.Errorf("texture stack %s has been destroyed", s.name)
	}
	i, ok := s.Index(zpos)
	if !ok {
		return nil, nil
	}
	if s.dirty[i] || s.textures[i] == nil {
		if err := s.renderSlice(i); err != nil {
			return nil, err
		}
	}
	return s.textures[i], nil
}

func (s *RenderTextureStack) renderSlice(i int) error {
	if s.render == nil {
		return fmt.Errorf("texture stack %s has no renderer", s.name)
	}
	tex := s.textures[i]
	if tex == nil {
		tex = NewRenderTexture(s.backend, fmt.Sprintf("%s_%d", s.name, i))
		s.textures[i] = tex
	}
	if err := tex.SetSize(s.width, s.height); err != nil {
		return err
	}
	tex.Clear([4]float32{0, 0, 0, 0})
	err := s.render(tex, s.SlicePos(i))
	tex.UnbindAsTarget()
	if err != nil {
		return err
	}
	s.dirty[i] = false
	return nil
}

func (s *RenderTextureStack) destroyTextures() {
	for _, t := range s.textures {
		if t != nil {
			t.Destroy()
		}
	}
	s.textures = nil
	s.dirty = nil
}

// Destroy releases every slice texture. It is normally called by the
// resource registry when the last reference is deleted.
func (s *RenderTextureStack) Destroy() {
	if s.destroyed {
		return
	}
	s.destroyed = true
	if s.queue != nil {
		s.queue.Cancel(s.taskName())
	}
	s.destroyTextures()
	logx.Logger().Debug("texture stack destroyed", "stack", s.name)
}

// Destroyed reports whether Destroy has been called.
func (s *RenderTextureStack) Destroyed() bool { return s.destroyed }
