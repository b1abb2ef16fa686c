package repair

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/relievo/pkg/mesh"
)

// resolveNonManifold breaks edges shared by three or more triangles.
// For each such edge the pair of faces forming the flattest consistent
// surface continuation stays; every other face on the edge is removed
// from the mesh, so its remaining edges re-enter the boundary pool and
// are closed later by hole filling. Returns the number of edges
// resolved.
//
// Edges are resolved one at a time, lowest edge first. Removing faces
// renumbers the triangle list, so the adjacency is rebuilt between
// edges rather than consumed from one stale snapshot.
func resolveNonManifold(m *mesh.Mesh) int {
	resolved := 0
	for {
		tris, ok := overSharedEdge(m)
		if !ok {
			return resolved
		}
		keepA, keepB := bestPair(m, tris)
		drop := make(map[int]bool, len(tris)-2)
		for _, ti := range tris {
			if ti != keepA && ti != keepB {
				drop[ti] = true
			}
		}
		kept := m.Triangles[:0]
		for ti, t := range m.Triangles {
			if drop[ti] {
				continue
			}
			kept = append(kept, t)
		}
		m.Triangles = kept
		resolved++
	}
}

// overSharedEdge returns the triangles incident to the lowest-ordered
// edge currently referenced by more than two faces.
func overSharedEdge(m *mesh.Mesh) ([]int, bool) {
	var found mesh.Edge
	var tris []int
	for e, ts := range m.EdgeTriangles() {
		if len(ts) <= 2 {
			continue
		}
		if tris == nil || e.A < found.A || (e.A == found.A && e.B < found.B) {
			found, tris = e, ts
		}
	}
	return tris, tris != nil
}

// bestPair picks the two triangles on a shared edge that continue
// each other most smoothly. Opposite edge traversal means consistent
// winding; the score favors consistent, near-coplanar pairs. Ties go
// to the earliest pair in index order.
func bestPair(m *mesh.Mesh, tris []int) (int, int) {
	bestA, bestB := tris[0], tris[1]
	best := -2.0
	for x := 0; x < len(tris); x++ {
		for y := x + 1; y < len(tris); y++ {
			a, b := m.Triangles[tris[x]], m.Triangles[tris[y]]
			s := r3.Dot(r3.Unit(m.Normal(a)), r3.Unit(m.Normal(b)))
			if sameTraversal(a, b) {
				s = -s
			}
			if s > best {
				best = s
				bestA, bestB = tris[x], tris[y]
			}
		}
	}
	return bestA, bestB
}

// sameTraversal reports whether two triangles walk their shared edge
// in the same direction, which would make their windings disagree.
func sameTraversal(a, b mesh.Triangle) bool {
	for _, e := range [3][2]int{{a[0], a[1]}, {a[1], a[2]}, {a[2], a[0]}} {
		if b.Traverses(e[0], e[1]) {
			return true
		}
	}
	return false
}
