// Package contour builds stepped "wedding cake" solids from a scalar
// field by tracing iso-intensity boundary loops per band and extruding
// each loop into a closed slab. A photo mode redistributes the band
// boundaries toward mid-tones, where continuous-tone photographs carry
// most of their structure.
package contour

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/relievo/pkg/field"
	"github.com/chazu/relievo/pkg/mesh"
)

// Options controls contour mesh generation.
type Options struct {
	// Levels partitions the [0,1] intensity range into this many
	// bands. Band 0 is background and produces no geometry.
	Levels int

	// Elevation is the extrusion height of each band; band L spans
	// z in [(L-1)*Elevation, L*Elevation].
	Elevation float64

	// PhotoMode warps band boundaries so they cluster near mid-tones.
	// Tracing and extrusion are unchanged.
	PhotoMode bool
}

// DefaultOptions mirror the original tool defaults.
func DefaultOptions() Options {
	return Options{Levels: 10, Elevation: 1}
}

// Build traces the iso-contour loops of every band and stacks their
// extruded slabs. Bands whose trace yields no loops contribute
// nothing. The result is a union of closed slabs; overlapping caps at
// slab interfaces are legitimate for printing and are left to the
// repair engine when a single watertight shell is required.
func Build(f *field.Field, opts Options) *mesh.Mesh {
	m := mesh.New()
	if opts.Levels < 2 {
		return m
	}
	for level := 1; level < opts.Levels; level++ {
		iso := bandBoundary(level, opts.Levels, opts.PhotoMode)
		loops := worldLoops(f, iso)
		if len(loops) == 0 {
			continue
		}
		z0 := float64(level-1) * opts.Elevation
		z1 := float64(level) * opts.Elevation
		for _, lp := range loops {
			emitSlab(m, lp, z0, z1)
		}
	}
	return m
}

// bandBoundary returns the intensity threshold between band L-1 and
// band L. Photo mode uses an arcsine warp whose slope is smallest at
// mid-range, packing boundaries around 0.5.
func bandBoundary(level, levels int, photo bool) float64 {
	t := float64(level) / float64(levels)
	if !photo {
		return t
	}
	return 0.5 + math.Asin(2*t-1)/math.Pi
}

// worldLoop is a closed boundary polyline in world coordinates.
// Outer loops are counterclockwise; hole loops clockwise.
type worldLoop struct {
	pts  []point
	hole bool
}

// worldLoops traces the iso-lines at the given threshold and converts
// them to world coordinates (y flipped to match the grid builders),
// classifying loops as outer boundaries or holes by containment
// parity and normalizing their rotation.
func worldLoops(f *field.Field, iso float64) []worldLoop {
	raw := traceLoops(f, iso)
	if len(raw) == 0 {
		return nil
	}
	h := float64(f.Height() - 1)
	loops := make([]worldLoop, len(raw))
	for i, lp := range raw {
		pts := make([]point, len(lp))
		for j, p := range lp {
			pts[j] = point{X: p.X, Y: h - p.Y}
		}
		loops[i] = worldLoop{pts: pts}
	}
	for i := range loops {
		depth := 0
		for j := range loops {
			if i != j && contains(loops[j].pts, loops[i].pts[0]) {
				depth++
			}
		}
		loops[i].hole = depth%2 == 1
		ccw := signedArea(loops[i].pts) > 0
		if loops[i].hole == ccw {
			reverse(loops[i].pts)
		}
	}
	return loops
}

// emitSlab extrudes one loop into a vertical prism between z0 and z1:
// a ring of wall quads plus, for outer loops, ear-clipped caps at both
// heights. Walls face away from the enclosed material for outer and
// hole loops alike because hole loops arrive with opposite rotation.
func emitSlab(m *mesh.Mesh, lp worldLoop, z0, z1 float64) {
	n := len(lp.pts)
	bot := make([]int, n)
	top := make([]int, n)
	for i, p := range lp.pts {
		bot[i] = m.AddVertex(r3.Vec{X: p.X, Y: p.Y, Z: z0})
		top[i] = m.AddVertex(r3.Vec{X: p.X, Y: p.Y, Z: z1})
	}
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		m.AddTriangle(top[i], bot[i], bot[j])
		m.AddTriangle(top[i], bot[j], top[j])
	}
	if lp.hole {
		return
	}

	capPts := make([]r3.Vec, n)
	for i := range lp.pts {
		capPts[i] = m.Vertices[top[i]]
	}
	if tris, ok := mesh.TriangulatePolygon(capPts); ok {
		for _, t := range tris {
			// Loop is counterclockwise, so these face +z.
			m.AddTriangle(top[t[0]], top[t[1]], top[t[2]])
			// Mirror for the bottom cap, facing -z.
			m.AddTriangle(bot[t[0]], bot[t[2]], bot[t[1]])
		}
	}
}
