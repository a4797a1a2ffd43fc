package models

import "github.com/pauldmccarthy/fsleyes-sub001/pkg/props"

// SelectionProp is notified whenever a Selection changes.
const SelectionProp = "selection"

// Selection is a binary voxel mask aligned with an image, used to
// highlight selected voxels.
type Selection struct {
	n     props.Notifier
	shape [3]int
	mask  []uint8

	// dirty holds the bounding box of changes since the last call to
	// Dirty.
	dirtyLo, dirtyHi [3]int
	dirty            bool
}

// NewSelection creates an empty selection over an image grid.
func NewSelection(shape [3]int) *Selection {
	return &Selection{shape: shape, mask: make([]uint8, shape[0]*shape[1]*shape[2])}
}

// Notifier returns the selection's change notifier.
func (s *Selection) Notifier() *props.Notifier { return &s.n }

// Shape returns the grid shape.
func (s *Selection) Shape() [3]int { return s.shape }

// Mask returns the raw mask, one byte per voxel, x fastest.
func (s *Selection) Mask() []uint8 { return s.mask }

// Selected reports whether a voxel is selected.
func (s *Selection) Selected(v [3]int) bool {
	if !s.inBounds(v) {
		return false
	}
	return s.mask[s.index(v)] != 0
}

// SetBlock selects or deselects the block of voxels [lo, hi], clipped to
// the grid.
func (s *Selection) SetBlock(lo, hi [3]int, selected bool) {
	for ax := 0; ax < 3; ax++ {
		lo[ax] = max(lo[ax], 0)
		hi[ax] = min(hi[ax], s.shape[ax]-1)
		if lo[ax] > hi[ax] {
			return
		}
	}
	var val uint8
	if selected {
		val = 1
	}
	for z := lo[2]; z <= hi[2]; z++ {
		for y := lo[1]; y <= hi[1]; y++ {
			for x := lo[0]; x <= hi[0]; x++ {
				s.mask[s.index([3]int{x, y, z})] = val
			}
		}
	}
	s.markDirty(lo, hi)
	s.n.Notify(SelectionProp)
}

// Clear deselects everything.
func (s *Selection) Clear() {
	clear(s.mask)
	s.markDirty([3]int{}, [3]int{s.shape[0] - 1, s.shape[1] - 1, s.shape[2] - 1})
	s.n.Notify(SelectionProp)
}

// Count returns the number of selected voxels.
func (s *Selection) Count() int {
	n := 0
	for _, v := range s.mask {
		if v != 0 {
			n++
		}
	}
	return n
}

// Dirty returns and resets the bounding box of changes.
func (s *Selection) Dirty() (lo, hi [3]int, ok bool) {
	lo, hi, ok = s.dirtyLo, s.dirtyHi, s.dirty
	s.dirty = false
	return lo, hi, ok
}

func (s *Selection) markDirty(lo, hi [3]int) {
	if !s.dirty {
		s.dirtyLo, s.dirtyHi, s.dirty = lo, hi, true
		return
	}
	for ax := 0; ax < 3; ax++ {
		s.dirtyLo[ax] = min(s.dirtyLo[ax], lo[ax])
		s.dirtyHi[ax] = max(s.dirtyHi[ax], hi[ax])
	}
}

func (s *Selection) index(v [3]int) int {
	return v[2]*s.shape[0]*s.shape[1] + v[1]*s.shape[0] + v[0]
}

func (s *Selection) inBounds(v [3]int) bool {
	for ax := 0; ax < 3; ax++ {
		if v[ax] < 0 || v[ax] >= s.shape[ax] {
			return false
		}
	}
	return true
}
