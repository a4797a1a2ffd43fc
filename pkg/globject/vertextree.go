package globject

import (
	"gonum.org/v1/gonum/spatial/kdtree"
)

// vertex is a mesh vertex in display coordinates, remembering its index
// in the mesh.
type vertex struct {
	P     [3]float64
	Index int
}

// Compare implements kdtree.Comparable.
func (v vertex) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return v.P[d] - c.(vertex).P[d]
}

// Dims implements kdtree.Comparable.
func (v vertex) Dims() int { return 3 }

// Distance returns the squared distance between two vertices.
func (v vertex) Distance(c kdtree.Comparable) float64 {
	q := c.(vertex)
	dx := v.P[0] - q.P[0]
	dy := v.P[1] - q.P[1]
	dz := v.P[2] - q.P[2]
	return dx*dx + dy*dy + dz*dz
}

// vertices satisfies kdtree.Interface.
type vertices []vertex

func (p vertices) Index(i int) kdtree.Comparable         { return p[i] }
func (p vertices) Len() int                              { return len(p) }
func (p vertices) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements kdtree.Interface.
func (p vertices) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(vertexPlane{vertices: p, Dim: d}, kdtree.MedianOfRandoms(vertexPlane{vertices: p, Dim: d}, 100))
}

// vertexPlane sorts vertices along one dimension.
type vertexPlane struct {
	vertices
	kdtree.Dim
}

func (p vertexPlane) Less(i, j int) bool {
	return p.vertices[i].P[p.Dim] < p.vertices[j].P[p.Dim]
}

func (p vertexPlane) Slice(start, end int) kdtree.SortSlicer {
	return vertexPlane{vertices: p.vertices[start:end], Dim: p.Dim}
}

func (p vertexPlane) Swap(i, j int) {
	p.vertices[i], p.vertices[j] = p.vertices[j], p.vertices[i]
}

// newVertexTree builds a kd-tree over display space vertex positions.
func newVertexTree(pts [][3]float64) *kdtree.Tree {
	if len(pts) == 0 {
		return nil
	}
	vs := make(vertices, len(pts))
	for i, p := range pts {
		vs[i] = vertex{P: p, Index: i}
	}
	return kdtree.New(vs, false)
}
