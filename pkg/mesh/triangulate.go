package mesh

import "gonum.org/v1/gonum/spatial/r3"

// PolygonNormal returns the Newell normal of a closed polygon. The
// result is unnormalized; its direction follows the polygon winding by
// the right-hand rule.
func PolygonNormal(pts []r3.Vec) r3.Vec {
	var n r3.Vec
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		n.X += (p.Y - q.Y) * (p.Z + q.Z)
		n.Y += (p.Z - q.Z) * (p.X + q.X)
		n.Z += (p.X - q.X) * (p.Y + q.Y)
	}
	return n
}

// TriangulatePolygon triangulates a closed polygon by ear clipping,
// returning index triples into pts wound consistently with the
// polygon's own orientation. It favors convexity and performs no
// refinement. Returns false for loops shorter than three points or
// loops no ear can be clipped from (self-intersecting after chaining).
func TriangulatePolygon(pts []r3.Vec) ([][3]int, bool) {
	if len(pts) < 3 {
		return nil, false
	}
	n := PolygonNormal(pts)
	if r3.Norm(n) == 0 {
		return nil, false
	}
	n = r3.Unit(n)

	// Project onto the plane spanned by (u, v) with (u, v, n)
	// right-handed, so the polygon is counterclockwise in 2D.
	u := perpendicular(n)
	v := r3.Cross(n, u)
	px := make([]float64, len(pts))
	py := make([]float64, len(pts))
	for i, p := range pts {
		px[i] = r3.Dot(p, u)
		py[i] = r3.Dot(p, v)
	}

	idx := make([]int, len(pts))
	for i := range idx {
		idx[i] = i
	}

	var tris [][3]int
	for len(idx) > 3 {
		clipped := false
		for i := 0; i < len(idx); i++ {
			ia := idx[(i+len(idx)-1)%len(idx)]
			ib := idx[i]
			ic := idx[(i+1)%len(idx)]
			if !convex(px, py, ia, ib, ic) {
				continue
			}
			if anyInside(px, py, idx, ia, ib, ic) {
				continue
			}
			tris = append(tris, [3]int{ia, ib, ic})
			idx = append(idx[:i], idx[i+1:]...)
			clipped = true
			break
		}
		if !clipped {
			return nil, false
		}
	}
	tris = append(tris, [3]int{idx[0], idx[1], idx[2]})
	return tris, true
}

// perpendicular returns a unit vector perpendicular to n.
func perpendicular(n r3.Vec) r3.Vec {
	ref := r3.Vec{X: 1}
	if n.X > 0.9 || n.X < -0.9 {
		ref = r3.Vec{Y: 1}
	}
	return r3.Unit(r3.Cross(n, ref))
}

func cross2(ax, ay, bx, by float64) float64 {
	return ax*by - ay*bx
}

// convex reports whether the corner a-b-c turns counterclockwise.
func convex(px, py []float64, a, b, c int) bool {
	return cross2(px[b]-px[a], py[b]-py[a], px[c]-px[b], py[c]-py[b]) > 1e-12
}

// anyInside reports whether any remaining polygon point lies strictly
// inside triangle a-b-c.
func anyInside(px, py []float64, idx []int, a, b, c int) bool {
	for _, i := range idx {
		if i == a || i == b || i == c {
			continue
		}
		d0 := cross2(px[b]-px[a], py[b]-py[a], px[i]-px[a], py[i]-py[a])
		d1 := cross2(px[c]-px[b], py[c]-py[b], px[i]-px[b], py[i]-py[b])
		d2 := cross2(px[a]-px[c], py[a]-py[c], px[i]-px[c], py[i]-py[c])
		if d0 > 0 && d1 > 0 && d2 > 0 {
			return true
		}
	}
	return false
}
