package models

import (
	"slices"

	"github.com/pauldmccarthy/fsleyes-sub001/pkg/props"
)

// OverlaysProp is the property name notified when the overlay list changes.
const OverlaysProp = "overlays"

// OverlayList is the ordered list of loaded overlays. The first overlay
// is drawn first, i.e. at the bottom.
type OverlayList struct {
	n        props.Notifier
	overlays []Overlay
}

// NewOverlayList creates a list containing overlays.
func NewOverlayList(overlays ...Overlay) *OverlayList {
	return &OverlayList{overlays: slices.Clone(overlays)}
}

// Notifier returns the list notifier.
func (l *OverlayList) Notifier() *props.Notifier { return &l.n }

// Len returns the number of overlays.
func (l *OverlayList) Len() int { return len(l.overlays) }

// At returns the overlay at index i.
func (l *OverlayList) At(i int) Overlay { return l.overlays[i] }

// All returns a copy of the list contents.
func (l *OverlayList) All() []Overlay { return slices.Clone(l.overlays) }

// Index returns the position of ov in the list, or -1.
func (l *OverlayList) Index(ov Overlay) int {
	for i, o := range l.overlays {
		if o.ID() == ov.ID() {
			return i
		}
	}
	return -1
}

// Contains reports whether ov is in the list.
func (l *OverlayList) Contains(ov Overlay) bool { return l.Index(ov) >= 0 }

// Append adds ov to the end (top) of the list.
func (l *OverlayList) Append(ov Overlay) {
	l.overlays = append(l.overlays, ov)
	l.n.Notify(OverlaysProp)
}

// Insert adds ov at position i.
func (l *OverlayList) Insert(i int, ov Overlay) {
	l.overlays = slices.Insert(l.overlays, i, ov)
	l.n.Notify(OverlaysProp)
}

// Remove removes ov from the list. It reports whether ov was present.
func (l *OverlayList) Remove(ov Overlay) bool {
	i := l.Index(ov)
	if i < 0 {
		return false
	}
	l.overlays = slices.Delete(l.overlays, i, i+1)
	l.n.Notify(OverlaysProp)
	return true
}

// Move moves ov to position i.
func (l *OverlayList) Move(ov Overlay, i int) {
	from := l.Index(ov)
	if from < 0 || from == i {
		return
	}
	l.overlays = slices.Delete(l.overlays, from, from+1)
	l.overlays = slices.Insert(l.overlays, i, ov)
	l.n.Notify(OverlaysProp)
}
