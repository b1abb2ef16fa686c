// Package heightfield builds a triangulated relief mesh directly from
// a scalar intensity field: one vertex per grid cell, elevation
// proportional to intensity, and an optional fused base plate that
// closes the model into a printable solid.
package heightfield

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/relievo/pkg/field"
	"github.com/chazu/relievo/pkg/mesh"
)

// Options controls heightfield mesh generation. MaxHeight and
// BaseHeight are absolute model units.
type Options struct {
	// MaxHeight is the relief height a full-intensity cell maps to.
	MaxHeight float64

	// BaseHeight is added beneath the relief; the base plate spans
	// z=0 to z=BaseHeight under a zero-intensity cell.
	BaseHeight float64

	// ObjectOnly omits the base plate and walls, and excludes
	// background cells entirely, producing an open surface.
	ObjectOnly bool

	// Border pads the field with background cells before building.
	// Ignored in object-only mode.
	Border int
}

// DefaultOptions mirror the original tool defaults.
func DefaultOptions() Options {
	return Options{MaxHeight: 5, BaseHeight: 1}
}

// Build converts the field into a relief mesh. The grid spacing is one
// unit per cell; callers rescale afterwards if needed. Output is
// deterministic: identical fields and options produce identical vertex
// ordering and triangle lists.
func Build(f *field.Field, opts Options) *mesh.Mesh {
	if opts.ObjectOnly {
		return buildOpen(f, opts)
	}
	if opts.Border > 0 {
		f = f.Border(opts.Border, 0)
	}
	return buildClosed(f, opts)
}

// elevation maps an intensity sample to a z value.
func (o Options) elevation(v float64) float64 {
	return o.BaseHeight + v*o.MaxHeight
}

// buildClosed emits the full top surface, a flat bottom layer at z=0,
// and perimeter walls, forming a closed solid. Background cells sit at
// base height, so the plate spans the whole image.
func buildClosed(f *field.Field, opts Options) *mesh.Mesh {
	rows, cols := f.Height(), f.Width()
	m := mesh.New()

	// Top vertices in row-major order, then the bottom layer. The
	// top index of sample (x, y) is y*cols+x; bottom adds rows*cols.
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			m.AddVertex(r3.Vec{
				X: float64(x),
				Y: float64(rows - 1 - y),
				Z: opts.elevation(f.At(x, y)),
			})
		}
	}
	bottom := rows * cols
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			m.AddVertex(r3.Vec{X: float64(x), Y: float64(rows - 1 - y)})
		}
	}

	// Surface quads, fixed diagonal from (x, y+1) to (x+1, y).
	for y := 0; y < rows-1; y++ {
		for x := 0; x < cols-1; x++ {
			a := y*cols + x
			b := y*cols + x + 1
			c := (y+1)*cols + x
			d := (y+1)*cols + x + 1
			// Top, facing +z.
			m.AddTriangle(a, c, b)
			m.AddTriangle(c, d, b)
			// Bottom, facing -z.
			m.AddTriangle(bottom+a, bottom+b, bottom+c)
			m.AddTriangle(bottom+c, bottom+b, bottom+d)
		}
	}

	// Perimeter walls. Each quad joins a top edge to the matching
	// bottom edge, wound outward.
	for x := 0; x < cols-1; x++ {
		// South edge (world y=0, sample row rows-1).
		st := (rows-1)*cols + x
		m.AddTriangle(st, bottom+st, st+1)
		m.AddTriangle(bottom+st, bottom+st+1, st+1)
		// North edge (sample row 0).
		nt := x
		m.AddTriangle(nt, nt+1, bottom+nt)
		m.AddTriangle(bottom+nt, nt+1, bottom+nt+1)
	}
	for y := 0; y < rows-1; y++ {
		// West edge (x=0).
		wt := y * cols
		m.AddTriangle(wt, bottom+wt, wt+cols)
		m.AddTriangle(bottom+wt, bottom+wt+cols, wt+cols)
		// East edge (x=cols-1).
		et := y*cols + cols - 1
		m.AddTriangle(et, et+cols, bottom+et)
		m.AddTriangle(bottom+et, et+cols, bottom+et+cols)
	}
	return m
}

// buildOpen emits only the top surface over non-background cells,
// leaving holes where background was. The result is open and usually
// needs the repair engine before printing.
func buildOpen(f *field.Field, opts Options) *mesh.Mesh {
	rows, cols := f.Height(), f.Width()
	m := mesh.New()

	// Map each object cell to a vertex index; -1 marks background.
	idx := make([]int, rows*cols)
	for i := range idx {
		idx[i] = -1
	}
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := f.At(x, y)
			if v == 0 {
				continue
			}
			idx[y*cols+x] = m.AddVertex(r3.Vec{
				X: float64(x),
				Y: float64(rows - 1 - y),
				Z: opts.elevation(v),
			})
		}
	}
	for y := 0; y < rows-1; y++ {
		for x := 0; x < cols-1; x++ {
			a := idx[y*cols+x]
			b := idx[y*cols+x+1]
			c := idx[(y+1)*cols+x]
			d := idx[(y+1)*cols+x+1]
			if a >= 0 && b >= 0 && c >= 0 {
				m.AddTriangle(a, c, b)
			}
			if c >= 0 && d >= 0 && b >= 0 {
				m.AddTriangle(c, d, b)
			}
		}
	}
	return m
}

// Tessellate builds an open surface over the full grid with the given
// elevation mapping. The topographic builder shares this tessellation
// so both builders keep the same diagonal-split determinism.
func Tessellate(f *field.Field, elevation func(v float64) float64) *mesh.Mesh {
	rows, cols := f.Height(), f.Width()
	m := mesh.New()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			m.AddVertex(r3.Vec{
				X: float64(x),
				Y: float64(rows - 1 - y),
				Z: elevation(f.At(x, y)),
			})
		}
	}
	for y := 0; y < rows-1; y++ {
		for x := 0; x < cols-1; x++ {
			a := y*cols + x
			b := y*cols + x + 1
			c := (y+1)*cols + x
			d := (y+1)*cols + x + 1
			m.AddTriangle(a, c, b)
			m.AddTriangle(c, d, b)
		}
	}
	return m
}
