// Package repair normalizes broken triangle soups into printable
// meshes. The engine runs a fixed pipeline: duplicate and degenerate
// face removal, vertex welding, non-manifold edge resolution, winding
// unification, then hole filling. Running the pipeline on its own
// output is a no-op.
package repair

import (
	"github.com/chazu/relievo/pkg/mesh"
)

// Options tunes the repair pipeline.
type Options struct {
	// WeldTolerance is the maximum distance between two vertices for
	// them to be merged during welding.
	WeldTolerance float64
}

// DefaultOptions returns the standard tolerances.
func DefaultOptions() Options {
	return Options{WeldTolerance: 1e-6}
}

// Report tallies what each pipeline stage changed.
type Report struct {
	DuplicateFaces   int
	DegenerateFaces  int
	VerticesWelded   int
	NonManifoldEdges int
	FacesFlipped     int
	HolesFilled      int
	Unfillable       int
}

// Changed reports whether any stage modified the mesh.
func (r Report) Changed() bool {
	return r.DuplicateFaces > 0 || r.DegenerateFaces > 0 ||
		r.VerticesWelded > 0 || r.NonManifoldEdges > 0 ||
		r.FacesFlipped > 0 || r.HolesFilled > 0
}

// Engine runs the repair pipeline.
type Engine struct {
	opts Options
}

// New returns an engine with the given options. A zero or negative
// weld tolerance falls back to the default.
func New(opts Options) *Engine {
	if opts.WeldTolerance <= 0 {
		opts.WeldTolerance = DefaultOptions().WeldTolerance
	}
	return &Engine{opts: opts}
}

// Repair runs all stages on a copy of m and returns the repaired mesh
// with a stage-by-stage report. The input is never modified.
func (e *Engine) Repair(m *mesh.Mesh) (*mesh.Mesh, Report, error) {
	var rep Report
	if m == nil || m.IsEmpty() {
		return nil, rep, mesh.ErrEmptyMesh
	}
	out := m.Clone()

	dd := dropDuplicates(out)
	rep.DuplicateFaces += dd.duplicates
	rep.DegenerateFaces += dd.degenerates

	rep.VerticesWelded = weld(out, e.opts.WeldTolerance)

	// Welding can collapse triangles into degenerates or make two
	// faces identical, so sweep again before topology work.
	dd = dropDuplicates(out)
	rep.DuplicateFaces += dd.duplicates
	rep.DegenerateFaces += dd.degenerates

	rep.NonManifoldEdges = resolveNonManifold(out)
	rep.FacesFlipped = orient(out)
	rep.HolesFilled, rep.Unfillable = fillHoles(out)

	if out.IsEmpty() {
		return nil, rep, mesh.ErrEmptyMesh
	}
	return out, rep, nil
}

type dropStats struct {
	duplicates  int
	degenerates int
}

// zeroArea is the area floor below which a triangle is treated as
// degenerate even when its three indices differ.
const zeroArea = 1e-12

// dropDuplicates removes degenerate triangles and all but the first
// of any set of triangles over the same vertex triple, winding
// ignored.
func dropDuplicates(m *mesh.Mesh) dropStats {
	var st dropStats
	seen := make(map[[3]int]struct{}, len(m.Triangles))
	kept := m.Triangles[:0]
	for _, t := range m.Triangles {
		if t.Degenerate() || m.Area(t) < zeroArea {
			st.degenerates++
			continue
		}
		key := sortedTriple(t)
		if _, ok := seen[key]; ok {
			st.duplicates++
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, t)
	}
	m.Triangles = kept
	return st
}

func sortedTriple(t mesh.Triangle) [3]int {
	a, b, c := t[0], t[1], t[2]
	if a > b {
		a, b = b, a
	}
	if b > c {
		b, c = c, b
	}
	if a > b {
		a, b = b, a
	}
	return [3]int{a, b, c}
}
