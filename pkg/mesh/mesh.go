// Package mesh defines the indexed triangle mesh shared by all
// builders and the repair engine. A Mesh owns its vertex and triangle
// slices exclusively; stages hand whole meshes to each other and never
// alias into one another's storage.
package mesh

import (
	"errors"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrEmptyMesh reports a mesh with no triangles where geometry was required.
var ErrEmptyMesh = errors.New("mesh: empty mesh")

// Triangle is an ordered triple of vertex indices. The winding order
// defines the outward normal by the right-hand rule.
type Triangle [3]int

// Edges returns the triangle's three edges in canonical (min,max)
// form, traversal direction discarded.
func (t Triangle) Edges() [3]Edge {
	return [3]Edge{
		EdgeBetween(t[0], t[1]),
		EdgeBetween(t[1], t[2]),
		EdgeBetween(t[2], t[0]),
	}
}

// Degenerate reports whether the triangle repeats a vertex index.
func (t Triangle) Degenerate() bool {
	return t[0] == t[1] || t[1] == t[2] || t[2] == t[0]
}

// Has reports whether the triangle references vertex index v.
func (t Triangle) Has(v int) bool {
	return t[0] == v || t[1] == v || t[2] == v
}

// Third returns the vertex of the triangle that is neither a nor b.
func (t Triangle) Third(a, b int) int {
	for _, v := range t {
		if v != a && v != b {
			return v
		}
	}
	return -1
}

// Traverses reports whether the triangle walks the edge from a to b in
// that direction.
func (t Triangle) Traverses(a, b int) bool {
	return (t[0] == a && t[1] == b) ||
		(t[1] == a && t[2] == b) ||
		(t[2] == a && t[0] == b)
}

// Flipped returns the triangle with reversed winding.
func (t Triangle) Flipped() Triangle {
	return Triangle{t[0], t[2], t[1]}
}

// Edge is an unordered pair of vertex indices with A < B. Edges are
// derived on demand for adjacency analysis and never stored in a Mesh.
type Edge struct {
	A, B int
}

// EdgeBetween returns the canonical edge for the vertex pair (a, b).
func EdgeBetween(a, b int) Edge {
	if a > b {
		a, b = b, a
	}
	return Edge{A: a, B: b}
}

// Mesh is an indexed triangle mesh. Vertex insertion order is index
// order. Meshes produced by the builders are not guaranteed manifold;
// the repair engine establishes that invariant.
type Mesh struct {
	Vertices  []r3.Vec
	Triangles []Triangle
}

// New returns an empty mesh.
func New() *Mesh {
	return &Mesh{}
}

// AddVertex appends a vertex and returns its index.
func (m *Mesh) AddVertex(v r3.Vec) int {
	m.Vertices = append(m.Vertices, v)
	return len(m.Vertices) - 1
}

// AddTriangle appends a triangle over the given vertex indices.
func (m *Mesh) AddTriangle(a, b, c int) {
	m.Triangles = append(m.Triangles, Triangle{a, b, c})
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int { return len(m.Vertices) }

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int { return len(m.Triangles) }

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool { return len(m.Triangles) == 0 }

// Clone returns a deep copy of the mesh.
func (m *Mesh) Clone() *Mesh {
	out := &Mesh{
		Vertices:  make([]r3.Vec, len(m.Vertices)),
		Triangles: make([]Triangle, len(m.Triangles)),
	}
	copy(out.Vertices, m.Vertices)
	copy(out.Triangles, m.Triangles)
	return out
}

// Normal returns the unnormalized face normal of triangle t.
func (m *Mesh) Normal(t Triangle) r3.Vec {
	e1 := r3.Sub(m.Vertices[t[1]], m.Vertices[t[0]])
	e2 := r3.Sub(m.Vertices[t[2]], m.Vertices[t[0]])
	return r3.Cross(e1, e2)
}

// Area returns the area of triangle t.
func (m *Mesh) Area(t Triangle) float64 {
	return r3.Norm(m.Normal(t)) / 2
}

// SignedVolume returns the signed volume enclosed by the mesh using
// the divergence theorem. Positive for consistently outward-wound
// closed meshes; meaningful only up to sign for open meshes.
func (m *Mesh) SignedVolume() float64 {
	var vol float64
	for _, t := range m.Triangles {
		a := m.Vertices[t[0]]
		b := m.Vertices[t[1]]
		c := m.Vertices[t[2]]
		vol += r3.Dot(a, r3.Cross(b, c)) / 6
	}
	return vol
}

// EdgeCounts maps every canonical edge to the number of triangles
// referencing it.
func (m *Mesh) EdgeCounts() map[Edge]int {
	counts := make(map[Edge]int, len(m.Triangles)*3/2)
	for _, t := range m.Triangles {
		for _, e := range t.Edges() {
			counts[e]++
		}
	}
	return counts
}

// EdgeTriangles maps every canonical edge to the indices of the
// triangles referencing it, in triangle order.
func (m *Mesh) EdgeTriangles() map[Edge][]int {
	adj := make(map[Edge][]int, len(m.Triangles)*3/2)
	for i, t := range m.Triangles {
		for _, e := range t.Edges() {
			adj[e] = append(adj[e], i)
		}
	}
	return adj
}

// BoundaryEdges returns all edges referenced by exactly one triangle.
func (m *Mesh) BoundaryEdges() []Edge {
	var out []Edge
	for e, n := range m.EdgeCounts() {
		if n == 1 {
			out = append(out, e)
		}
	}
	return out
}

// IsManifold reports whether every edge is referenced by exactly one
// or two triangles.
func (m *Mesh) IsManifold() bool {
	for _, n := range m.EdgeCounts() {
		if n > 2 {
			return false
		}
	}
	return true
}

// IsWatertight reports whether the mesh is manifold with no boundary
// edges.
func (m *Mesh) IsWatertight() bool {
	for _, n := range m.EdgeCounts() {
		if n != 2 {
			return false
		}
	}
	return len(m.Triangles) > 0
}

// Bounds returns the axis-aligned bounding box of the mesh vertices.
func (m *Mesh) Bounds() (min, max r3.Vec) {
	if len(m.Vertices) == 0 {
		return r3.Vec{}, r3.Vec{}
	}
	min, max = m.Vertices[0], m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		if v.X < min.X {
			min.X = v.X
		}
		if v.Y < min.Y {
			min.Y = v.Y
		}
		if v.Z < min.Z {
			min.Z = v.Z
		}
		if v.X > max.X {
			max.X = v.X
		}
		if v.Y > max.Y {
			max.Y = v.Y
		}
		if v.Z > max.Z {
			max.Z = v.Z
		}
	}
	return min, max
}
