package repair

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/relievo/pkg/mesh"
)

type cellKey [3]int64

// weld merges vertices closer than tol and compacts the vertex list,
// dropping the merged duplicates. A vertex that stays its own
// representative survives compaction whether or not a triangle still
// references it. Returns the number of vertices merged into another.
// Each vertex maps to the lowest-index representative within
// tolerance, found through a uniform spatial hash with tol-sized
// cells.
func weld(m *mesh.Mesh, tol float64) int {
	n := len(m.Vertices)
	rep := make([]int, n)
	grid := make(map[cellKey][]int, n)
	welded := 0

	for i, v := range m.Vertices {
		rep[i] = i
		base := cell(v, tol)
		found := -1
		for dx := int64(-1); dx <= 1; dx++ {
			for dy := int64(-1); dy <= 1; dy++ {
				for dz := int64(-1); dz <= 1; dz++ {
					k := cellKey{base[0] + dx, base[1] + dy, base[2] + dz}
					for _, j := range grid[k] {
						if dist(v, m.Vertices[j]) <= tol && (found < 0 || j < found) {
							found = j
						}
					}
				}
			}
		}
		if found >= 0 {
			rep[i] = found
			welded++
		} else {
			grid[base] = append(grid[base], i)
		}
	}
	if welded == 0 {
		return 0
	}

	// Compact: keep only representatives that survive remapping.
	remap := make([]int, n)
	for i := range remap {
		remap[i] = -1
	}
	verts := m.Vertices[:0]
	for i := 0; i < n; i++ {
		if rep[i] == i {
			remap[i] = len(verts)
			verts = append(verts, m.Vertices[i])
		}
	}
	m.Vertices = verts
	for i, t := range m.Triangles {
		m.Triangles[i] = mesh.Triangle{
			remap[rep[t[0]]],
			remap[rep[t[1]]],
			remap[rep[t[2]]],
		}
	}
	return welded
}

func cell(v r3.Vec, tol float64) cellKey {
	return cellKey{
		int64(math.Floor(v.X / tol)),
		int64(math.Floor(v.Y / tol)),
		int64(math.Floor(v.Z / tol)),
	}
}

func dist(a, b r3.Vec) float64 {
	return r3.Norm(r3.Sub(a, b))
}
