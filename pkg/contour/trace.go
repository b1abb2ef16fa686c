package contour

// Marching-squares iso-line extraction. Each grid quad contributes
// zero, one, or two line segments; segments are then chained into
// closed loops by endpoint identity. Interpolated crossing points on a
// shared quad edge are computed from the same two samples in both
// quads, so endpoints match exactly without tolerance games.

import "github.com/chazu/relievo/pkg/field"

type point struct {
	X, Y float64
}

type segment struct {
	a, b point
}

// traceLoops extracts all closed iso-lines of the field at the given
// threshold, in grid coordinates (x right, y down). Open chains, which
// can only occur when the iso-line runs off the grid border, are
// discarded.
func traceLoops(f *field.Field, iso float64) [][]point {
	var segs []segment
	for y := 0; y < f.Height()-1; y++ {
		for x := 0; x < f.Width()-1; x++ {
			segs = append(segs, quadSegments(f, x, y, iso)...)
		}
	}
	return chain(segs)
}

// quadSegments applies the 16-case marching-squares table to the quad
// whose top-left sample is (x, y).
func quadSegments(f *field.Field, x, y int, iso float64) []segment {
	tl := f.At(x, y)
	tr := f.At(x+1, y)
	br := f.At(x+1, y+1)
	bl := f.At(x, y+1)

	code := 0
	if tl >= iso {
		code |= 1
	}
	if tr >= iso {
		code |= 2
	}
	if br >= iso {
		code |= 4
	}
	if bl >= iso {
		code |= 8
	}
	if code == 0 || code == 15 {
		return nil
	}

	fx, fy := float64(x), float64(y)
	lerp := func(v0, v1 float64) float64 {
		return (iso - v0) / (v1 - v0)
	}
	top := point{fx + lerp(tl, tr), fy}
	right := point{fx + 1, fy + lerp(tr, br)}
	bottom := point{fx + lerp(bl, br), fy + 1}
	left := point{fx, fy + lerp(tl, bl)}

	switch code {
	case 1:
		return []segment{{left, top}}
	case 2:
		return []segment{{top, right}}
	case 3:
		return []segment{{left, right}}
	case 4:
		return []segment{{right, bottom}}
	case 5:
		// Saddle: the cell center decides which corners connect.
		if (tl+tr+br+bl)/4 >= iso {
			return []segment{{top, right}, {bottom, left}}
		}
		return []segment{{left, top}, {right, bottom}}
	case 6:
		return []segment{{top, bottom}}
	case 7:
		return []segment{{left, bottom}}
	case 8:
		return []segment{{bottom, left}}
	case 9:
		return []segment{{top, bottom}}
	case 10:
		if (tl+tr+br+bl)/4 >= iso {
			return []segment{{left, top}, {right, bottom}}
		}
		return []segment{{top, right}, {bottom, left}}
	case 11:
		return []segment{{right, bottom}}
	case 12:
		return []segment{{right, left}}
	case 13:
		return []segment{{top, right}}
	case 14:
		return []segment{{left, top}}
	}
	return nil
}

// chain links segments into closed loops by walking endpoint
// adjacency. Segment direction is not trusted; each loop's rotation is
// normalized later from its signed area.
func chain(segs []segment) [][]point {
	type end struct {
		seg   int
		other point
	}
	adj := make(map[point][]end, len(segs)*2)
	for i, s := range segs {
		adj[s.a] = append(adj[s.a], end{seg: i, other: s.b})
		adj[s.b] = append(adj[s.b], end{seg: i, other: s.a})
	}

	used := make([]bool, len(segs))
	var loops [][]point
	for i, s := range segs {
		if used[i] {
			continue
		}
		used[i] = true
		loop := []point{s.a, s.b}
		cur := s.b
		closed := false
		for {
			var next *end
			for k := range adj[cur] {
				if !used[adj[cur][k].seg] {
					next = &adj[cur][k]
					break
				}
			}
			if next == nil {
				break
			}
			used[next.seg] = true
			cur = next.other
			if cur == s.a {
				closed = true
				break
			}
			loop = append(loop, cur)
		}
		if closed && len(loop) >= 3 {
			loops = append(loops, loop)
		}
	}
	return loops
}

// signedArea returns twice the signed area of the loop; positive for
// counterclockwise loops in a y-up frame.
func signedArea(loop []point) float64 {
	var a float64
	for i, p := range loop {
		q := loop[(i+1)%len(loop)]
		a += p.X*q.Y - q.X*p.Y
	}
	return a
}

// contains reports whether p lies inside the loop by ray casting.
func contains(loop []point, p point) bool {
	inside := false
	for i, a := range loop {
		b := loop[(i+1)%len(loop)]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			xAt := a.X + (p.Y-a.Y)/(b.Y-a.Y)*(b.X-a.X)
			if p.X < xAt {
				inside = !inside
			}
		}
	}
	return inside
}

// reverse flips a loop in place.
func reverse(loop []point) {
	for i, j := 0, len(loop)-1; i < j; i, j = i+1, j-1 {
		loop[i], loop[j] = loop[j], loop[i]
	}
}
