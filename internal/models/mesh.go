package models

import (
	"fmt"
	"math"
)

// Mesh is a triangle surface mesh, with vertices in world coordinates.
type Mesh struct {
	id   uint64
	name string

	// Vertices holds the x, y, z coordinates of each vertex.
	Vertices [][3]float64

	// Indices holds the three vertex indices of each triangle.
	Indices [][3]int

	// VertexData holds named per-vertex data sets, e.g. cortical
	// thickness, which can be used to colour the mesh.
	VertexData map[string][][]float64

	normals [][3]float64
	bounds  Bounds
}

// NewMesh creates a mesh, checking that every index refers to a vertex.
func NewMesh(name string, vertices [][3]float64, indices [][3]int) (*Mesh, error) {
	for i, tri := range indices {
		for _, idx := range tri {
			if idx < 0 || idx >= len(vertices) {
				return nil, fmt.Errorf("mesh %s: triangle %d refers to vertex %d of %d", name, i, idx, len(vertices))
			}
		}
	}
	m := &Mesh{
		id:         nextID(),
		name:       name,
		Vertices:   vertices,
		Indices:    indices,
		VertexData: map[string][][]float64{},
		bounds:     EmptyBounds(),
	}
	for _, v := range vertices {
		for ax := 0; ax < 3; ax++ {
			m.bounds.Lo[ax] = math.Min(m.bounds.Lo[ax], v[ax])
			m.bounds.Hi[ax] = math.Max(m.bounds.Hi[ax], v[ax])
		}
	}
	return m, nil
}

// ID implements Overlay.
func (m *Mesh) ID() uint64 { return m.id }

// Name implements Overlay.
func (m *Mesh) Name() string { return m.name }

// Bounds implements Overlay.
func (m *Mesh) Bounds() Bounds { return m.bounds }

// AddVertexData attaches a per-vertex data set to the mesh. Each column of
// data holds one value per vertex.
func (m *Mesh) AddVertexData(key string, data [][]float64) error {
	for i, col := range data {
		if len(col) != len(m.Vertices) {
			return fmt.Errorf("mesh %s: vertex data %s column %d has %d values, need %d",
				m.name, key, i, len(col), len(m.Vertices))
		}
	}
	m.VertexData[key] = data
	return nil
}

// Normals returns area-weighted per-vertex normals, computed on first use.
func (m *Mesh) Normals() [][3]float64 {
	if m.normals != nil {
		return m.normals
	}
	normals := make([][3]float64, len(m.Vertices))
	for _, tri := range m.Indices {
		a, b, c := m.Vertices[tri[0]], m.Vertices[tri[1]], m.Vertices[tri[2]]
		u := [3]float64{b[0] - a[0], b[1] - a[1], b[2] - a[2]}
		v := [3]float64{c[0] - a[0], c[1] - a[1], c[2] - a[2]}
		n := [3]float64{
			u[1]*v[2] - u[2]*v[1],
			u[2]*v[0] - u[0]*v[2],
			u[0]*v[1] - u[1]*v[0],
		}
		for _, idx := range tri {
			for ax := 0; ax < 3; ax++ {
				normals[idx][ax] += n[ax]
			}
		}
	}
	for i, n := range normals {
		l := math.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
		if l > 0 {
			normals[i] = [3]float64{n[0] / l, n[1] / l, n[2] / l}
		}
	}
	m.normals = normals
	return normals
}
