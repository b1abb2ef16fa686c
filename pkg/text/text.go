// Package text renders TrueType strings into printable solids by
// extruding the glyph outlines through an SDF and tessellating with
// marching cubes.
package text

import (
	"errors"
	"fmt"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/relievo/pkg/mesh"
)

// defaultMeshCells controls marching cubes tessellation resolution.
const defaultMeshCells = 200

// ErrEmptyText is returned when the input string renders no glyphs.
var ErrEmptyText = errors.New("text: nothing to render")

// Options controls text solid generation.
type Options struct {
	// FontPath locates the TrueType font file.
	FontPath string

	// Size is the glyph height in model units.
	Size float64

	// Thickness is the extrusion depth of the glyphs.
	Thickness float64

	// BasePlate adds a backing slab under the glyphs when positive,
	// of that thickness, sized to the text bounding box.
	BasePlate float64

	// Mirror flips the result across the YZ plane for stamps and
	// molds.
	Mirror bool

	// Cells overrides the marching cubes resolution when positive.
	Cells int
}

// DefaultOptions match the original tool defaults.
func DefaultOptions() Options {
	return Options{Size: 20, Thickness: 5}
}

// Build renders s into an indexed mesh. The glyph SDF is extruded to
// the configured thickness, optionally backed by a base plate, then
// tessellated.
func Build(s string, opts Options) (*mesh.Mesh, error) {
	if s == "" {
		return nil, ErrEmptyText
	}
	font, err := sdf.LoadFont(opts.FontPath)
	if err != nil {
		return nil, fmt.Errorf("load font %q: %w", opts.FontPath, err)
	}
	glyphs, err := sdf.TextSDF2(font, sdf.NewText(s), opts.Size)
	if err != nil {
		return nil, fmt.Errorf("render text: %w", err)
	}
	if glyphs == nil {
		return nil, ErrEmptyText
	}
	solid := sdf.Extrude3D(glyphs, opts.Thickness)

	if opts.BasePlate > 0 {
		bb := glyphs.BoundingBox()
		size := bb.Size()
		plate, err := sdf.Box3D(v3.Vec{X: size.X, Y: size.Y, Z: opts.BasePlate}, 0)
		if err != nil {
			return nil, fmt.Errorf("base plate: %w", err)
		}
		center := bb.Center()
		m := sdf.Translate3d(v3.Vec{
			X: center.X,
			Y: center.Y,
			Z: -(opts.Thickness + opts.BasePlate) / 2,
		})
		solid = sdf.Union3D(solid, sdf.Transform3D(plate, m))
	}

	cells := opts.Cells
	if cells <= 0 {
		cells = defaultMeshCells
	}
	triangles := render.ToTriangles(solid, render.NewMarchingCubesUniform(cells))
	if len(triangles) == 0 {
		return nil, ErrEmptyText
	}

	// Index the triangle soup, merging bit-identical vertices so the
	// repair engine sees shared topology.
	m := mesh.New()
	index := make(map[[3]float64]int, len(triangles))
	vertex := func(v v3.Vec) int {
		key := [3]float64{v.X, v.Y, v.Z}
		if i, ok := index[key]; ok {
			return i
		}
		i := m.AddVertex(r3.Vec{X: v.X, Y: v.Y, Z: v.Z})
		index[key] = i
		return i
	}
	for _, tri := range triangles {
		m.AddTriangle(vertex(tri.V[0]), vertex(tri.V[1]), vertex(tri.V[2]))
	}

	if opts.Mirror {
		mirrorX(m)
	}
	return m, nil
}

// mirrorX negates x and flips windings so normals still face outward.
func mirrorX(m *mesh.Mesh) {
	for i := range m.Vertices {
		m.Vertices[i].X = -m.Vertices[i].X
	}
	for i, t := range m.Triangles {
		m.Triangles[i] = t.Flipped()
	}
}
