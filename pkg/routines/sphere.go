package routines

import "math"

// UnitSphere returns a tessellated unit sphere: res*res vertices on a
// latitude/longitude grid, their (inclination, azimuth) angles, and
// triangle indices.
func UnitSphere(res int) (vertices [][3]float64, angles [][2]float64, indices []uint32) {
	res = max(res, 3)
	vertices = make([][3]float64, 0, res*res)
	angles = make([][2]float64, 0, res*res)

	for i := 0; i < res; i++ {
		u := -math.Pi/2 + math.Pi*float64(i)/float64(res-1)
		for j := 0; j < res; j++ {
			v := -math.Pi + 2*math.Pi*float64(j)/float64(res-1)
			vertices = append(vertices, [3]float64{
				math.Cos(u) * math.Cos(v),
				math.Cos(u) * math.Sin(v),
				math.Sin(u),
			})
			angles = append(angles, [2]float64{math.Pi/2 - u, v})
		}
	}

	for i := 0; i < res-1; i++ {
		for j := 0; j < res-1; j++ {
			a := uint32(i*res + j)
			b := a + 1
			c := a + uint32(res)
			d := c + 1
			indices = append(indices, a, b, c, c, b, d)
		}
	}
	return vertices, angles, indices
}
