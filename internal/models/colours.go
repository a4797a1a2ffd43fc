package models

import (
	"fmt"
	"math"
	"sort"
)

// Colour is an RGBA colour with components in [0, 1].
type Colour [4]float64

// RGB returns a fully opaque colour.
func RGB(r, g, b float64) Colour { return Colour{r, g, b, 1} }

// Float32 returns the colour as float32 components.
func (c Colour) Float32() [4]float32 {
	return [4]float32{float32(c[0]), float32(c[1]), float32(c[2]), float32(c[3])}
}

// builtin colour maps, as control points spread evenly over [0, 1].
var colourMaps = map[string][]Colour{
	"greyscale":      {RGB(0, 0, 0), RGB(1, 1, 1)},
	"red-yellow":     {RGB(1, 0, 0), RGB(1, 1, 0)},
	"blue-lightblue": {RGB(0, 0, 1), RGB(0, 1, 1)},
	"hot":            {RGB(0, 0, 0), RGB(1, 0, 0), RGB(1, 1, 0), RGB(1, 1, 1)},
	"cool":           {RGB(0, 1, 1), RGB(1, 0, 1)},
	"red":            {RGB(0, 0, 0), RGB(1, 0, 0)},
	"green":          {RGB(0, 0, 0), RGB(0, 1, 0)},
	"blue":           {RGB(0, 0, 0), RGB(0, 0, 1)},
	"pink":           {RGB(0, 0, 0), RGB(1, 0.5, 0.75), RGB(1, 1, 1)},
	"render3":        {RGB(0, 0, 1), RGB(0, 1, 0), RGB(1, 0, 0)},
}

// ColourMapNames returns the names of all builtin colour maps, sorted.
func ColourMapNames() []string {
	names := make([]string, 0, len(colourMaps))
	for n := range colourMaps {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ColourMap samples the named colour map at n evenly spaced points.
// When interpolate is false, neighbouring control points are not blended.
func ColourMap(name string, n int, interpolate bool) ([]Colour, error) {
	points, ok := colourMaps[name]
	if !ok {
		return nil, fmt.Errorf("unknown colour map %q", name)
	}
	if n < 2 {
		n = 2
	}
	out := make([]Colour, n)
	segs := float64(len(points) - 1)
	for i := range out {
		pos := float64(i) / float64(n-1) * segs
		lo := int(math.Floor(pos))
		if lo >= len(points)-1 {
			out[i] = points[len(points)-1]
			continue
		}
		if !interpolate {
			out[i] = points[int(math.Round(pos))]
			continue
		}
		frac := pos - float64(lo)
		for c := 0; c < 4; c++ {
			out[i][c] = points[lo][c]*(1-frac) + points[lo+1][c]*frac
		}
	}
	return out, nil
}

// Label is one entry in a lookup table.
type Label struct {
	Value   int
	Name    string
	Colour  Colour
	Enabled bool
}

// LookupTable maps integer label values to names and colours.
type LookupTable struct {
	Name   string
	labels map[int]Label
}

// NewLookupTable creates an empty lookup table.
func NewLookupTable(name string) *LookupTable {
	return &LookupTable{Name: name, labels: map[int]Label{}}
}

// RandomLookupTable creates a table with n labels (1..n) whose colours
// are spread around the hue circle.
func RandomLookupTable(name string, n int) *LookupTable {
	lut := NewLookupTable(name)
	for i := 1; i <= n; i++ {
		h := math.Mod(float64(i)*0.618033988749895, 1)
		lut.Set(i, fmt.Sprintf("Label %d", i), hsvColour(h, 0.8, 0.95))
	}
	return lut
}

// Set adds or replaces a label.
func (l *LookupTable) Set(value int, name string, colour Colour) {
	l.labels[value] = Label{Value: value, Name: name, Colour: colour, Enabled: true}
}

// SetEnabled shows or hides a label.
func (l *LookupTable) SetEnabled(value int, enabled bool) {
	if lbl, ok := l.labels[value]; ok {
		lbl.Enabled = enabled
		l.labels[value] = lbl
	}
}

// Get returns the label for value.
func (l *LookupTable) Get(value int) (Label, bool) {
	lbl, ok := l.labels[value]
	return lbl, ok
}

// Labels returns all labels sorted by value.
func (l *LookupTable) Labels() []Label {
	out := make([]Label, 0, len(l.labels))
	for _, lbl := range l.labels {
		out = append(out, lbl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out
}

// Max returns the largest label value, or 0 for an empty table.
func (l *LookupTable) Max() int {
	m := 0
	for v := range l.labels {
		if v > m {
			m = v
		}
	}
	return m
}

func hsvColour(h, s, v float64) Colour {
	i := math.Floor(h * 6)
	f := h*6 - i
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)
	switch int(i) % 6 {
	case 0:
		return RGB(v, t, p)
	case 1:
		return RGB(q, v, p)
	case 2:
		return RGB(p, v, t)
	case 3:
		return RGB(p, q, v)
	case 4:
		return RGB(t, p, v)
	}
	return RGB(v, p, q)
}
