// Package models holds the data consumed by the rendering core: overlays
// (images, meshes, tensor fields), the ordered overlay list, per-overlay
// display settings and the display context shared by canvases.
package models

import (
	"math"
	"sync/atomic"
)

// Overlay is anything which can be displayed on a canvas.
type Overlay interface {
	// ID returns an identifier which is unique for the lifetime of the
	// process.
	ID() uint64

	// Name returns the overlay name.
	Name() string

	// Bounds returns the overlay bounding box in world coordinates.
	Bounds() Bounds
}

var lastID atomic.Uint64

func nextID() uint64 {
	return lastID.Add(1)
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Lo, Hi [3]float64
}

// EmptyBounds returns a box which contains nothing, suitable as the
// starting point for Union.
func EmptyBounds() Bounds {
	inf := math.Inf(1)
	return Bounds{
		Lo: [3]float64{inf, inf, inf},
		Hi: [3]float64{-inf, -inf, -inf},
	}
}

// Empty reports whether b contains no points.
func (b Bounds) Empty() bool {
	for i := 0; i < 3; i++ {
		if b.Lo[i] > b.Hi[i] {
			return true
		}
	}
	return false
}

// Union returns the smallest box containing b and o.
func (b Bounds) Union(o Bounds) Bounds {
	if o.Empty() {
		return b
	}
	if b.Empty() {
		return o
	}
	var out Bounds
	for i := 0; i < 3; i++ {
		out.Lo[i] = math.Min(b.Lo[i], o.Lo[i])
		out.Hi[i] = math.Max(b.Hi[i], o.Hi[i])
	}
	return out
}

// Len returns the length of the box along axis ax.
func (b Bounds) Len(ax int) float64 {
	return b.Hi[ax] - b.Lo[ax]
}

// Centre returns the centre of the box.
func (b Bounds) Centre() [3]float64 {
	return [3]float64{
		(b.Lo[0] + b.Hi[0]) / 2,
		(b.Lo[1] + b.Hi[1]) / 2,
		(b.Lo[2] + b.Hi[2]) / 2,
	}
}

// ContainsAlong reports whether v lies within the box along axis ax,
// boundaries included.
func (b Bounds) ContainsAlong(ax int, v float64) bool {
	return v >= b.Lo[ax] && v <= b.Hi[ax]
}

// Contains reports whether p lies within the box.
func (b Bounds) Contains(p [3]float64) bool {
	for i := 0; i < 3; i++ {
		if !b.ContainsAlong(i, p[i]) {
			return false
		}
	}
	return true
}

// DType identifies the element type of the original image data.
type DType int

const (
	Uint8 DType = iota
	Int8
	Uint16
	Int16
	Int32
	Float32
	Float64
)

var dtypeNames = [...]string{"uint8", "int8", "uint16", "int16", "int32", "float32", "float64"}

func (d DType) String() string {
	if int(d) < len(dtypeNames) {
		return dtypeNames[d]
	}
	return "unknown"
}

// IsInteger reports whether d is an integer type.
func (d DType) IsInteger() bool {
	return d != Float32 && d != Float64
}

// Range returns the representable range of an integer type.
func (d DType) Range() (lo, hi float64) {
	switch d {
	case Uint8:
		return 0, math.MaxUint8
	case Int8:
		return math.MinInt8, math.MaxInt8
	case Uint16:
		return 0, math.MaxUint16
	case Int16:
		return math.MinInt16, math.MaxInt16
	case Int32:
		return math.MinInt32, math.MaxInt32
	}
	return -math.MaxFloat32, math.MaxFloat32
}
