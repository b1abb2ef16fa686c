package repair

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/relievo/pkg/mesh"
)

// fillHoles closes boundary loops with new triangles. Boundary edges
// are walked in the direction their owning face traverses them, so
// each closed walk circles a hole; the fill triangulates the walk
// reversed, which makes every new face traverse the boundary opposite
// to its owner and keeps windings consistent. Loops that cannot be
// closed or triangulated are reported as unfillable.
func fillHoles(m *mesh.Mesh) (filled, unfillable int) {
	counts := m.EdgeCounts()
	outgoing := make(map[int][]int)
	var order [][2]int
	for _, t := range m.Triangles {
		for _, pr := range [3][2]int{{t[0], t[1]}, {t[1], t[2]}, {t[2], t[0]}} {
			if counts[mesh.EdgeBetween(pr[0], pr[1])] == 1 {
				outgoing[pr[0]] = append(outgoing[pr[0]], pr[1])
				order = append(order, pr)
			}
		}
	}
	if len(order) == 0 {
		return 0, 0
	}

	used := make(map[[2]int]bool, len(order))
	for _, start := range order {
		if used[start] {
			continue
		}
		loop, ok := walk(start[0], start[1], outgoing, used, len(order))
		if !ok {
			unfillable++
			continue
		}
		if len(loop) < 3 {
			continue
		}
		if !triangulateHole(m, loop) {
			unfillable++
			continue
		}
		filled++
	}
	return filled, unfillable
}

// walk follows unused directed boundary edges from u until it returns
// to u. A dead end means the boundary is not a simple loop.
func walk(u, v int, outgoing map[int][]int, used map[[2]int]bool, limit int) ([]int, bool) {
	loop := []int{u}
	used[[2]int{u, v}] = true
	cur := v
	for cur != u {
		loop = append(loop, cur)
		next := -1
		for _, w := range outgoing[cur] {
			if !used[[2]int{cur, w}] {
				next = w
				break
			}
		}
		if next < 0 || len(loop) > limit {
			return nil, false
		}
		used[[2]int{cur, next}] = true
		cur = next
	}
	return loop, true
}

func triangulateHole(m *mesh.Mesh, loop []int) bool {
	n := len(loop)
	rev := make([]int, n)
	pts := make([]r3.Vec, n)
	for i := range loop {
		rev[i] = loop[n-1-i]
		pts[i] = m.Vertices[rev[i]]
	}
	tris, ok := mesh.TriangulatePolygon(pts)
	if !ok {
		return false
	}
	for _, t := range tris {
		m.AddTriangle(rev[t[0]], rev[t[1]], rev[t[2]])
	}
	return true
}
