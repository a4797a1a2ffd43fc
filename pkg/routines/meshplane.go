package routines

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// planeEps is the distance below which a vertex is considered to lie on a
// plane.
const planeEps = 1e-9

// Plane is a plane described by a point on it and its normal.
type Plane struct {
	Origin [3]float64
	Normal [3]float64
}

// AxisPlane returns the plane perpendicular to axis ax at position pos.
func AxisPlane(ax int, pos float64) Plane {
	var p Plane
	p.Origin[ax] = pos
	p.Normal[ax] = 1
	return p
}

// Equation returns the coefficients (a, b, c, d) of the plane equation
// ax + by + cz = d, with a unit normal.
func (p Plane) Equation() [4]float64 {
	n := r3.Unit(vec(p.Normal))
	return [4]float64{n.X, n.Y, n.Z, r3.Dot(n, vec(p.Origin))}
}

// Distance returns the signed distance of pt from the plane, in units of
// the normal's length.
func (p Plane) Distance(pt [3]float64) float64 {
	return r3.Dot(r3.Sub(vec(pt), vec(p.Origin)), vec(p.Normal))
}

// PlaneFromPoints returns the plane through three points.
func PlaneFromPoints(a, b, c [3]float64) Plane {
	n := r3.Cross(r3.Sub(vec(b), vec(a)), r3.Sub(vec(c), vec(a)))
	return Plane{Origin: a, Normal: arr(r3.Unit(n))}
}

// LinePlane returns the intersection of the line through a and b with the
// plane, the position t along a->b at which it occurs, and whether the
// line intersects the plane at all.
func LinePlane(a, b [3]float64, p Plane) ([3]float64, float64, bool) {
	da := p.Distance(a)
	db := p.Distance(b)
	if da == db {
		return [3]float64{}, 0, false
	}
	t := da / (da - db)
	pt := r3.Add(vec(a), r3.Scale(t, r3.Sub(vec(b), vec(a))))
	return arr(pt), t, true
}

// Segment is one line segment of the intersection between a mesh and a
// plane.
type Segment struct {
	// Face is the index of the intersected triangle.
	Face int

	Points [2][3]float64

	// Weights holds, for each end point, the barycentric contribution
	// of the triangle's three vertices, so that vertex data can be
	// interpolated onto the segment.
	Weights [2][3]float64
}

// MeshPlane computes the intersection of a triangle mesh with a plane.
// Each face is classified by the signed distances of its vertices to the
// plane. A face produces a segment when one of its edges lies on the
// plane, when one vertex lies on the plane and the other two are on
// opposite sides, or when its vertices straddle the plane with no vertex
// on it. Faces lying in, touching, or missing the plane produce nothing.
func MeshPlane(vertices [][3]float64, faces [][3]int, p Plane) []Segment {
	var out []Segment
	for fi, f := range faces {
		var d [3]float64
		var side [3]int
		zeros, pos, neg := 0, 0, 0
		for i := 0; i < 3; i++ {
			d[i] = p.Distance(vertices[f[i]])
			switch {
			case math.Abs(d[i]) < planeEps:
				zeros++
			case d[i] > 0:
				side[i] = 1
				pos++
			default:
				side[i] = -1
				neg++
			}
		}

		seg := Segment{Face: fi}
		switch {
		case zeros == 2:
			n := 0
			for i := 0; i < 3; i++ {
				if side[i] == 0 {
					seg.Points[n] = vertices[f[i]]
					seg.Weights[n][i] = 1
					n++
				}
			}

		case zeros == 1 && pos == 1 && neg == 1:
			on := indexOf(side, 0)
			a, b := (on+1)%3, (on+2)%3
			seg.Points[0] = vertices[f[on]]
			seg.Weights[0][on] = 1
			seg.Points[1], seg.Weights[1] = edgePoint(vertices, f, d, a, b)

		case zeros == 0 && pos > 0 && neg > 0:
			// the lone vertex is the one on the minority side
			lone := indexOf(side, 1)
			if pos == 2 {
				lone = indexOf(side, -1)
			}
			a, b := (lone+1)%3, (lone+2)%3
			seg.Points[0], seg.Weights[0] = edgePoint(vertices, f, d, lone, a)
			seg.Points[1], seg.Weights[1] = edgePoint(vertices, f, d, lone, b)

		default:
			continue
		}
		out = append(out, seg)
	}
	return out
}

func edgePoint(vertices [][3]float64, f [3]int, d [3]float64, a, b int) ([3]float64, [3]float64) {
	t := d[a] / (d[a] - d[b])
	va, vb := vec(vertices[f[a]]), vec(vertices[f[b]])
	var w [3]float64
	w[a] = 1 - t
	w[b] = t
	return arr(r3.Add(va, r3.Scale(t, r3.Sub(vb, va)))), w
}

func indexOf(side [3]int, v int) int {
	for i, s := range side {
		if s == v {
			return i
		}
	}
	return -1
}

func vec(a [3]float64) r3.Vec { return r3.Vec{X: a[0], Y: a[1], Z: a[2]} }
func arr(v r3.Vec) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }
