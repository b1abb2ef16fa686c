// Package stl reads and writes STL files in both binary and ASCII
// form. Reading auto-detects the format and merges identical vertices
// so downstream topology work sees an indexed mesh rather than a
// triangle soup.
package stl

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/relievo/pkg/mesh"
)

// DecodeError wraps a malformed or truncated STL stream.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "stl: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErrf(format string, args ...interface{}) error {
	return &DecodeError{Err: fmt.Errorf(format, args...)}
}

// Write encodes m as binary STL with recomputed facet normals.
func Write(w io.Writer, m *mesh.Mesh) error {
	if m == nil || m.IsEmpty() {
		return mesh.ErrEmptyMesh
	}
	bw := bufio.NewWriter(w)
	var header [80]byte
	copy(header[:], "relievo binary stl")
	if _, err := bw.Write(header[:]); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(m.Triangles))); err != nil {
		return err
	}
	var rec [50]byte
	for _, t := range m.Triangles {
		n := unitNormal(m, t)
		putVec(rec[0:], n)
		putVec(rec[12:], m.Vertices[t[0]])
		putVec(rec[24:], m.Vertices[t[1]])
		putVec(rec[36:], m.Vertices[t[2]])
		rec[48], rec[49] = 0, 0
		if _, err := bw.Write(rec[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteASCII encodes m as ASCII STL under the given solid name.
func WriteASCII(w io.Writer, m *mesh.Mesh, name string) error {
	if m == nil || m.IsEmpty() {
		return mesh.ErrEmptyMesh
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "solid %s\n", name)
	for _, t := range m.Triangles {
		n := unitNormal(m, t)
		fmt.Fprintf(bw, "  facet normal %g %g %g\n", n.X, n.Y, n.Z)
		fmt.Fprintf(bw, "    outer loop\n")
		for _, vi := range t {
			v := m.Vertices[vi]
			fmt.Fprintf(bw, "      vertex %g %g %g\n", v.X, v.Y, v.Z)
		}
		fmt.Fprintf(bw, "    endloop\n")
		fmt.Fprintf(bw, "  endfacet\n")
	}
	fmt.Fprintf(bw, "endsolid %s\n", name)
	return bw.Flush()
}

// Read decodes an STL stream, sniffing whether it is ASCII or binary.
// A "solid" prefix alone is not trusted because binary exporters emit
// it in the header too, so the facet count is cross-checked.
func Read(r io.Reader) (*mesh.Mesh, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if isASCII(data) {
		return readASCII(data)
	}
	return readBinary(data)
}

func isASCII(data []byte) bool {
	if !bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("solid")) {
		return false
	}
	// A binary file of n facets is exactly 84+50n bytes. If the
	// length fits the declared count, binary wins.
	if len(data) >= 84 {
		n := binary.LittleEndian.Uint32(data[80:84])
		if len(data) == 84+50*int(n) {
			return false
		}
	}
	return true
}

func readBinary(data []byte) (*mesh.Mesh, error) {
	if len(data) < 84 {
		return nil, decodeErrf("truncated header: %d bytes", len(data))
	}
	count := binary.LittleEndian.Uint32(data[80:84])
	if len(data) < 84+50*int(count) {
		return nil, decodeErrf("truncated body: %d facets declared, %d bytes", count, len(data))
	}
	b := builder{m: mesh.New(), index: make(map[[3]float64]int)}
	for i := 0; i < int(count); i++ {
		rec := data[84+50*i:]
		// Facet normal at rec[0:12] is ignored; winding is the
		// source of truth.
		b.triangle(getVec(rec[12:]), getVec(rec[24:]), getVec(rec[36:]))
	}
	return b.m, nil
}

func readASCII(data []byte) (*mesh.Mesh, error) {
	b := builder{m: mesh.New(), index: make(map[[3]float64]int)}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	var tri []r3.Vec
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || fields[0] != "vertex" {
			continue
		}
		if len(fields) != 4 {
			return nil, decodeErrf("line %d: malformed vertex", line)
		}
		var v r3.Vec
		if _, err := fmt.Sscan(fields[1], &v.X); err != nil {
			return nil, decodeErrf("line %d: %v", line, err)
		}
		if _, err := fmt.Sscan(fields[2], &v.Y); err != nil {
			return nil, decodeErrf("line %d: %v", line, err)
		}
		if _, err := fmt.Sscan(fields[3], &v.Z); err != nil {
			return nil, decodeErrf("line %d: %v", line, err)
		}
		tri = append(tri, v)
		if len(tri) == 3 {
			b.triangle(tri[0], tri[1], tri[2])
			tri = tri[:0]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if len(tri) != 0 {
		return nil, decodeErrf("dangling vertices at end of file")
	}
	return b.m, nil
}

// builder accumulates triangles, merging bit-identical vertices.
type builder struct {
	m     *mesh.Mesh
	index map[[3]float64]int
}

func (b *builder) vertex(v r3.Vec) int {
	key := [3]float64{v.X, v.Y, v.Z}
	if i, ok := b.index[key]; ok {
		return i
	}
	i := b.m.AddVertex(v)
	b.index[key] = i
	return i
}

func (b *builder) triangle(a, c, d r3.Vec) {
	b.m.AddTriangle(b.vertex(a), b.vertex(c), b.vertex(d))
}

// Save writes m to path as binary STL.
func Save(path string, m *mesh.Mesh) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load reads an STL file from path.
func Load(path string) (*mesh.Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// unitNormal returns the unit facet normal, or zero for degenerate
// triangles, which some writers emit and readers tolerate.
func unitNormal(m *mesh.Mesh, t mesh.Triangle) r3.Vec {
	n := m.Normal(t)
	if l := r3.Norm(n); l > 0 {
		return r3.Scale(1/l, n)
	}
	return r3.Vec{}
}

func putVec(b []byte, v r3.Vec) {
	binary.LittleEndian.PutUint32(b[0:], math.Float32bits(float32(v.X)))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(float32(v.Y)))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(float32(v.Z)))
}

func getVec(b []byte) r3.Vec {
	return r3.Vec{
		X: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[0:]))),
		Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))),
		Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[8:]))),
	}
}
