package repair

import (
	"github.com/chazu/relievo/pkg/mesh"
)

// orient makes triangle windings consistent across each connected
// component and turns closed components outward. Traversal starts at
// the lowest-index unvisited triangle and spreads across manifold
// edges; a neighbor that walks the shared edge in the same direction
// as the current face is flipped. Closed components with negative
// signed volume are then flipped wholesale. Returns how many faces
// ended up with a different winding than they came in with.
func orient(m *mesh.Mesh) int {
	adj := m.EdgeTriangles()
	visited := make([]bool, len(m.Triangles))
	flipped := make([]bool, len(m.Triangles))

	for seed := range m.Triangles {
		if visited[seed] {
			continue
		}
		comp := []int{seed}
		open := false
		visited[seed] = true
		queue := []int{seed}
		for len(queue) > 0 {
			ti := queue[0]
			queue = queue[1:]
			t := m.Triangles[ti]
			for _, pair := range [3][2]int{{t[0], t[1]}, {t[1], t[2]}, {t[2], t[0]}} {
				tris := adj[mesh.EdgeBetween(pair[0], pair[1])]
				if len(tris) == 1 {
					open = true
					continue
				}
				if len(tris) != 2 {
					continue
				}
				other := tris[0]
				if other == ti {
					other = tris[1]
				}
				if visited[other] {
					continue
				}
				if m.Triangles[other].Traverses(pair[0], pair[1]) {
					m.Triangles[other] = m.Triangles[other].Flipped()
					flipped[other] = !flipped[other]
				}
				visited[other] = true
				comp = append(comp, other)
				queue = append(queue, other)
			}
		}
		if !open && componentVolume(m, comp) < 0 {
			for _, ti := range comp {
				m.Triangles[ti] = m.Triangles[ti].Flipped()
				flipped[ti] = !flipped[ti]
			}
		}
	}

	n := 0
	for _, f := range flipped {
		if f {
			n++
		}
	}
	return n
}

// componentVolume is the signed volume of one component's faces via
// the divergence theorem, positive when windings face outward.
func componentVolume(m *mesh.Mesh, comp []int) float64 {
	sum := 0.0
	for _, ti := range comp {
		t := m.Triangles[ti]
		a, b, c := m.Vertices[t[0]], m.Vertices[t[1]], m.Vertices[t[2]]
		sum += a.X*(b.Y*c.Z-c.Y*b.Z) - b.X*(a.Y*c.Z-c.Y*a.Z) + c.X*(a.Y*b.Z-b.Y*a.Z)
	}
	return sum / 6
}
