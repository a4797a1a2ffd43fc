package models

import (
	"fmt"
	"math"

	"github.com/pauldmccarthy/fsleyes-sub001/pkg/affine"
	"github.com/pauldmccarthy/fsleyes-sub001/pkg/props"
)

// Display context property names.
const (
	LocationProp        = "location"
	BoundsProp          = "bounds"
	SelectedOverlayProp = "selectedOverlay"
	SyncDisplayProp     = "syncOverlayDisplay"
)

// DisplayContext holds the display state shared by the canvases of one
// view: the overlay list, per-overlay Display and Opts records, the
// selected overlay, the cursor location and the display bounds.
//
// A child context (one with a parent) shares its parent's Display and Opts
// records for every overlay whose display is synchronised, and owns
// private records for the rest.
type DisplayContext struct {
	n        props.Notifier
	overlays *OverlayList
	parent   *DisplayContext
	listener string

	displays map[uint64]*Display
	opts     map[uint64]Opts
	unsynced map[uint64]bool

	SelectedOverlay    *props.Prop[int]
	SyncOverlayDisplay *props.Prop[bool]

	location    [3]float64
	voxLocation [3]int
	voxValid    bool
	locating    bool

	bounds Bounds
}

var lastContext int

// NewDisplayContext creates a context for overlays. parent may be nil.
func NewDisplayContext(overlays *OverlayList, parent *DisplayContext) *DisplayContext {
	lastContext++
	dc := &DisplayContext{
		overlays: overlays,
		parent:   parent,
		listener: fmt.Sprintf("DisplayContext_%d", lastContext),
		displays: map[uint64]*Display{},
		opts:     map[uint64]Opts{},
		unsynced: map[uint64]bool{},
		bounds:   EmptyBounds(),
	}
	dc.SelectedOverlay = props.New(&dc.n, SelectedOverlayProp, 0)
	dc.SyncOverlayDisplay = props.New(&dc.n, SyncDisplayProp, true)
	overlays.Notifier().Listen(dc.listener, OverlaysProp, func(string) { dc.overlaysChanged() })
	if parent != nil {
		parent.n.Listen(dc.listener, BoundsProp, func(string) { dc.UpdateBounds() })
	}
	dc.overlaysChanged()
	return dc
}

// Notifier returns the context notifier.
func (dc *DisplayContext) Notifier() *props.Notifier { return &dc.n }

// Overlays returns the overlay list.
func (dc *DisplayContext) Overlays() *OverlayList { return dc.overlays }

// Parent returns the parent context, or nil.
func (dc *DisplayContext) Parent() *DisplayContext { return dc.parent }

// Destroy removes the listeners registered by the context.
func (dc *DisplayContext) Destroy() {
	dc.overlays.Notifier().RemoveAll(dc.listener)
	if dc.parent != nil {
		dc.parent.n.RemoveAll(dc.listener)
	}
	for _, d := range dc.displays {
		d.Notifier().RemoveAll(dc.listener)
	}
	for _, o := range dc.opts {
		o.Notifier().RemoveAll(dc.listener)
	}
}

// Synced reports whether the display of ov is shared with the parent
// context. A context without a parent is always synced.
func (dc *DisplayContext) Synced(ov Overlay) bool {
	if dc.parent == nil {
		return true
	}
	return dc.SyncOverlayDisplay.Get() && !dc.unsynced[ov.ID()]
}

// SetSynced controls whether the display of ov is shared with the parent.
func (dc *DisplayContext) SetSynced(ov Overlay, synced bool) {
	if dc.unsynced[ov.ID()] == !synced {
		return
	}
	if synced {
		delete(dc.unsynced, ov.ID())
	} else {
		dc.unsynced[ov.ID()] = true
	}
	dc.n.Notify(SyncDisplayProp)
}

// Display returns the Display for ov, creating it if necessary.
func (dc *DisplayContext) Display(ov Overlay) *Display {
	if dc.parent != nil && dc.Synced(ov) {
		return dc.parent.Display(ov)
	}
	if d, ok := dc.displays[ov.ID()]; ok {
		return d
	}
	d := NewDisplay(ov)
	dc.displays[ov.ID()] = d
	d.Notifier().Listen(dc.listener, OverlayTypeProp, func(string) {
		dc.retype(ov)
	})
	d.Notifier().Listen(dc.listener, EnabledProp, func(string) { dc.UpdateBounds() })
	return d
}

// Opts returns the display options for ov, matching its current overlay
// type.
func (dc *DisplayContext) Opts(ov Overlay) (Opts, error) {
	if dc.parent != nil && dc.Synced(ov) {
		return dc.parent.Opts(ov)
	}
	if o, ok := dc.opts[ov.ID()]; ok {
		return o, nil
	}
	o, err := NewOpts(ov, dc.Display(ov).OverlayType.Get())
	if err != nil {
		return nil, err
	}
	dc.opts[ov.ID()] = o
	o.Notifier().Listen(dc.listener, TransformProp, func(string) { dc.UpdateBounds() })
	o.Notifier().Listen(dc.listener, CustomXformProp, func(string) { dc.UpdateBounds() })
	o.Notifier().Listen(dc.listener, RefImageProp, func(string) { dc.UpdateBounds() })
	o.Notifier().Listen(dc.listener, CoordSpaceProp, func(string) { dc.UpdateBounds() })
	return o, nil
}

// retype discards the options of ov after its overlay type changes; new
// options are created on the next call to Opts.
func (dc *DisplayContext) retype(ov Overlay) {
	if old, ok := dc.opts[ov.ID()]; ok {
		old.Notifier().RemoveAll(dc.listener)
		delete(dc.opts, ov.ID())
	}
	dc.UpdateBounds()
}

func (dc *DisplayContext) overlaysChanged() {
	live := map[uint64]bool{}
	for _, ov := range dc.overlays.All() {
		live[ov.ID()] = true
	}
	for id, d := range dc.displays {
		if !live[id] {
			d.Notifier().RemoveAll(dc.listener)
			delete(dc.displays, id)
		}
	}
	for id, o := range dc.opts {
		if !live[id] {
			o.Notifier().RemoveAll(dc.listener)
			delete(dc.opts, id)
		}
	}
	n := dc.overlays.Len()
	if sel := dc.SelectedOverlay.Get(); sel >= n && n > 0 {
		dc.SelectedOverlay.Set(n - 1)
	}
	dc.UpdateBounds()
}

// Selected returns the selected overlay, or nil if the list is empty.
func (dc *DisplayContext) Selected() Overlay {
	n := dc.overlays.Len()
	if n == 0 {
		return nil
	}
	sel := dc.SelectedOverlay.Get()
	if sel < 0 || sel >= n {
		sel = 0
	}
	return dc.overlays.At(sel)
}

// Bounds returns the union of the display bounds of every enabled overlay.
func (dc *DisplayContext) Bounds() Bounds { return dc.bounds }

// UpdateBounds recomputes the display bounds, notifying listeners if they
// changed.
func (dc *DisplayContext) UpdateBounds() {
	b := EmptyBounds()
	for _, ov := range dc.overlays.All() {
		if !dc.Display(ov).Enabled.Get() {
			continue
		}
		opts, err := dc.Opts(ov)
		if err != nil {
			continue
		}
		b = b.Union(opts.DisplayBounds())
	}
	if b == dc.bounds {
		return
	}
	dc.bounds = b
	dc.n.Notify(BoundsProp)
}

// Location returns the cursor location in display coordinates.
func (dc *DisplayContext) Location() [3]float64 { return dc.location }

// VoxelLocation returns the voxel at the cursor in the selected overlay,
// if the selected overlay is an image and the cursor is inside it.
func (dc *DisplayContext) VoxelLocation() ([3]int, bool) {
	return dc.voxLocation, dc.voxValid
}

// SetLocation moves the cursor. World and voxel coordinates are computed
// together and listeners are notified once. Calls made while listeners are
// running, or which do not change the location, are ignored.
func (dc *DisplayContext) SetLocation(p [3]float64) {
	if dc.locating || p == dc.location {
		return
	}
	dc.locating = true
	defer func() { dc.locating = false }()

	dc.location = p
	dc.voxLocation, dc.voxValid = dc.toVoxel(p)
	dc.n.Notify(LocationProp)
}

// SetVoxelLocation moves the cursor to the centre of a voxel in the
// selected overlay.
func (dc *DisplayContext) SetVoxelLocation(v [3]int) {
	opts := dc.selectedImageOpts()
	if opts == nil {
		return
	}
	p := affine.Transform(opts.VoxToDisplay(), [3]float64{float64(v[0]), float64(v[1]), float64(v[2])})
	dc.SetLocation(p)
}

func (dc *DisplayContext) toVoxel(p [3]float64) ([3]int, bool) {
	opts := dc.selectedImageOpts()
	if opts == nil {
		return [3]int{}, false
	}
	v := affine.Transform(opts.DisplayToVox(), p)
	vox := [3]int{roundHalfUp(v[0]), roundHalfUp(v[1]), roundHalfUp(v[2])}
	return vox, opts.Image().InBounds(vox)
}

func (dc *DisplayContext) selectedImageOpts() *ImageOpts {
	ov := dc.Selected()
	if ov == nil {
		return nil
	}
	opts, err := dc.Opts(ov)
	if err != nil {
		return nil
	}
	return ImageOptsOf(opts)
}

// ImageOptsOf returns the image options embedded in opts, or nil if opts
// are not for an image overlay type.
func ImageOptsOf(opts Opts) *ImageOpts {
	type imageOptser interface{ ImageOptions() *ImageOpts }
	if io, ok := opts.(imageOptser); ok {
		return io.ImageOptions()
	}
	return nil
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
