// Package stl reads and writes STL surface files, converts them to and
// from Mesh overlays, and extracts isosurfaces from images.
package stl

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/logx"
	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
)

// ErrFormat is returned for files which are neither binary nor ASCII STL.
var ErrFormat = errors.New("stl: malformed file")

// Triangle is a single STL facet.
type Triangle struct {
	Normal   [3]float32
	Vertices [3][3]float32
}

const (
	headerSize   = 80
	triangleSize = 50
)

// ComputeNormal sets the facet normal from the vertex winding.
func (t *Triangle) ComputeNormal() {
	a, b, c := t.Vertices[0], t.Vertices[1], t.Vertices[2]
	u := [3]float32{b[0] - a[0], b[1] - a[1], b[2] - a[2]}
	v := [3]float32{c[0] - a[0], c[1] - a[1], c[2] - a[2]}
	n := [3]float32{
		u[1]*v[2] - u[2]*v[1],
		u[2]*v[0] - u[0]*v[2],
		u[0]*v[1] - u[1]*v[0],
	}
	l := float32(math.Sqrt(float64(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])))
	if l > 0 {
		n[0], n[1], n[2] = n[0]/l, n[1]/l, n[2]/l
	}
	t.Normal = n
}

// Read decodes a binary or ASCII STL stream. A file which starts with
// "solid" but whose size matches its binary triangle count is read as
// binary, as many exporters write that header.
func Read(r io.Reader) ([]Triangle, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("stl: %w", err)
	}
	if len(data) >= headerSize+4 {
		n := binary.LittleEndian.Uint32(data[headerSize:])
		if int64(len(data)) == headerSize+4+int64(n)*triangleSize {
			return readBinary(data[headerSize+4:], int(n)), nil
		}
	}
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("solid")) {
		return readASCII(data)
	}
	return nil, fmt.Errorf("%w: %d bytes is not a binary STL and there is no solid header", ErrFormat, len(data))
}

func readBinary(data []byte, n int) []Triangle {
	tris := make([]Triangle, n)
	f := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
	}
	for i := range tris {
		off := i * triangleSize
		for j := range 3 {
			tris[i].Normal[j] = f(off + 4*j)
		}
		for v := range 3 {
			for j := range 3 {
				tris[i].Vertices[v][j] = f(off + 12 + 12*v + 4*j)
			}
		}
	}
	return tris
}

func readASCII(data []byte) ([]Triangle, error) {
	var (
		tris []Triangle
		cur  Triangle
		nv   int
		line int
	)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "facet":
			cur, nv = Triangle{}, 0
			if len(fields) == 5 && fields[1] == "normal" {
				n, err := parseVec(fields[2:])
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %v", ErrFormat, line, err)
				}
				cur.Normal = n
			}
		case "vertex":
			if nv >= 3 || len(fields) != 4 {
				return nil, fmt.Errorf("%w: line %d: unexpected vertex", ErrFormat, line)
			}
			v, err := parseVec(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrFormat, line, err)
			}
			cur.Vertices[nv] = v
			nv++
		case "endfacet":
			if nv != 3 {
				return nil, fmt.Errorf("%w: line %d: facet has %d vertices", ErrFormat, line, nv)
			}
			tris = append(tris, cur)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("stl: %w", err)
	}
	return tris, nil
}

func parseVec(fields []string) ([3]float32, error) {
	var v [3]float32
	for i, s := range fields {
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return v, err
		}
		v[i] = float32(f)
	}
	return v, nil
}

// Write encodes triangles as binary STL.
func Write(w io.Writer, tris []Triangle) error {
	bw := bufio.NewWriter(w)
	header := make([]byte, headerSize)
	copy(header, "binary STL")
	if _, err := bw.Write(header); err != nil {
		return fmt.Errorf("stl: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(tris))); err != nil {
		return fmt.Errorf("stl: %w", err)
	}
	buf := make([]byte, triangleSize)
	for _, t := range tris {
		for j := range 3 {
			binary.LittleEndian.PutUint32(buf[4*j:], math.Float32bits(t.Normal[j]))
		}
		for v := range 3 {
			for j := range 3 {
				binary.LittleEndian.PutUint32(buf[12+12*v+4*j:], math.Float32bits(t.Vertices[v][j]))
			}
		}
		if _, err := bw.Write(buf); err != nil {
			return fmt.Errorf("stl: %w", err)
		}
	}
	return bw.Flush()
}

// ToMesh builds a Mesh overlay from triangles, merging vertices which
// have identical coordinates.
func ToMesh(name string, tris []Triangle) (*models.Mesh, error) {
	index := make(map[[3]float32]int, len(tris))
	verts := make([][3]float64, 0, len(tris))
	faces := make([][3]int, len(tris))
	for i, t := range tris {
		for v, p := range t.Vertices {
			idx, ok := index[p]
			if !ok {
				idx = len(verts)
				index[p] = idx
				verts = append(verts, [3]float64{float64(p[0]), float64(p[1]), float64(p[2])})
			}
			faces[i][v] = idx
		}
	}
	return models.NewMesh(name, verts, faces)
}

// FromMesh returns the triangles of a mesh, with normals computed from
// the vertex winding.
func FromMesh(m *models.Mesh) []Triangle {
	tris := make([]Triangle, len(m.Indices))
	for i, face := range m.Indices {
		for v, idx := range face {
			p := m.Vertices[idx]
			tris[i].Vertices[v] = [3]float32{float32(p[0]), float32(p[1]), float32(p[2])}
		}
		tris[i].ComputeNormal()
	}
	return tris
}

// Load reads an STL file as a Mesh overlay named after the file.
func Load(path string) (*models.Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("stl: %w", err)
	}
	defer f.Close()
	tris, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	m, err := ToMesh(name, tris)
	if err != nil {
		return nil, err
	}
	logx.Logger().Debug("stl loaded", "path", path, "triangles", len(tris), "vertices", len(m.Vertices))
	return m, nil
}

// Save writes a mesh as a binary STL file.
func Save(path string, m *models.Mesh) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("stl: %w", err)
	}
	if err := Write(f, FromMesh(m)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
