package stl_test

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/chazu/relievo/pkg/mesh"
	"github.com/chazu/relievo/pkg/stl"
)

func tetra() *mesh.Mesh {
	m := mesh.New()
	a := m.AddVertex(r3.Vec{X: 0, Y: 0, Z: 0})
	b := m.AddVertex(r3.Vec{X: 1, Y: 0, Z: 0})
	c := m.AddVertex(r3.Vec{X: 0, Y: 1, Z: 0})
	d := m.AddVertex(r3.Vec{X: 0, Y: 0, Z: 1})
	m.AddTriangle(a, c, b)
	m.AddTriangle(a, b, d)
	m.AddTriangle(b, c, d)
	m.AddTriangle(a, d, c)
	return m
}

func TestBinaryRoundtrip(t *testing.T) {
	in := tetra()
	var buf bytes.Buffer
	if err := stl.Write(&buf, in); err != nil {
		t.Fatal(err)
	}
	// 80-byte header, count, 4 records of 50 bytes.
	if got := buf.Len(); got != 84+4*50 {
		t.Errorf("encoded size = %d, want %d", got, 84+4*50)
	}

	out, err := stl.Read(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if out.TriangleCount() != 4 {
		t.Errorf("triangles = %d, want 4", out.TriangleCount())
	}
	// Identical corners should merge back into shared vertices.
	if out.VertexCount() != 4 {
		t.Errorf("vertices = %d, want 4", out.VertexCount())
	}
	if !out.IsWatertight() {
		t.Error("roundtripped tetra should be watertight")
	}
	if math.Abs(out.SignedVolume()-in.SignedVolume()) > 1e-6 {
		t.Errorf("volume drifted: %g vs %g", out.SignedVolume(), in.SignedVolume())
	}
}

func TestASCIIRoundtrip(t *testing.T) {
	in := tetra()
	var buf bytes.Buffer
	if err := stl.WriteASCII(&buf, in, "tetra"); err != nil {
		t.Fatal(err)
	}
	text := buf.String()
	if !strings.HasPrefix(text, "solid tetra") {
		t.Errorf("missing solid header: %q", text[:20])
	}
	if !strings.Contains(text, "endsolid tetra") {
		t.Error("missing endsolid footer")
	}
	if got := strings.Count(text, "facet normal"); got != 4 {
		t.Errorf("facets = %d, want 4", got)
	}

	out, err := stl.Read(strings.NewReader(text))
	if err != nil {
		t.Fatal(err)
	}
	if out.TriangleCount() != 4 {
		t.Errorf("triangles = %d, want 4", out.TriangleCount())
	}
	if out.VertexCount() != 4 {
		t.Errorf("vertices = %d, want 4", out.VertexCount())
	}
}

func TestWriteEmptyMesh(t *testing.T) {
	var buf bytes.Buffer
	if err := stl.Write(&buf, mesh.New()); !errors.Is(err, mesh.ErrEmptyMesh) {
		t.Errorf("Write err = %v, want ErrEmptyMesh", err)
	}
	if err := stl.WriteASCII(&buf, mesh.New(), "x"); !errors.Is(err, mesh.ErrEmptyMesh) {
		t.Errorf("WriteASCII err = %v, want ErrEmptyMesh", err)
	}
}

func TestReadTruncatedBinary(t *testing.T) {
	var buf bytes.Buffer
	if err := stl.Write(&buf, tetra()); err != nil {
		t.Fatal(err)
	}
	short := buf.Bytes()[:buf.Len()-10]

	_, err := stl.Read(bytes.NewReader(short))
	if err == nil {
		t.Fatal("expected decode error")
	}
	var de *stl.DecodeError
	if !errors.As(err, &de) {
		t.Errorf("err = %T, want *DecodeError", err)
	}
}

func TestReadMalformedASCII(t *testing.T) {
	src := `solid broken
  facet normal 0 0 1
    outer loop
      vertex 0 0 zero
    endloop
  endfacet
endsolid broken
`
	_, err := stl.Read(strings.NewReader(src))
	if err == nil {
		t.Fatal("expected decode error")
	}
	var de *stl.DecodeError
	if !errors.As(err, &de) {
		t.Errorf("err = %T, want *DecodeError", err)
	}
}

func TestReadBinaryWithSolidHeader(t *testing.T) {
	// Some binary exporters start the 80-byte header with "solid".
	in := tetra()
	var buf bytes.Buffer
	if err := stl.Write(&buf, in); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	copy(data[:5], "solid")

	out, err := stl.Read(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("misdetected as ASCII: %v", err)
	}
	if out.TriangleCount() != 4 {
		t.Errorf("triangles = %d, want 4", out.TriangleCount())
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tetra.stl")
	if err := stl.Save(path, tetra()); err != nil {
		t.Fatal(err)
	}
	m, err := stl.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if m.TriangleCount() != 4 {
		t.Errorf("triangles = %d, want 4", m.TriangleCount())
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := stl.Load(filepath.Join(t.TempDir(), "nope.stl")); err == nil {
		t.Error("expected error for missing file")
	}
}
