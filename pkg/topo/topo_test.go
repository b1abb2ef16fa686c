package topo_test

import (
	"math"
	"testing"

	"github.com/chazu/relievo/pkg/field"
	"github.com/chazu/relievo/pkg/topo"
)

func ramp(w, h int) *field.Field {
	f := field.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			f.Set(x, y, float64(x)/float64(w-1))
		}
	}
	return f
}

func TestBuildScalesElevation(t *testing.T) {
	m := topo.Build(ramp(5, 5), topo.Options{ZScale: 10})
	if m.IsEmpty() {
		t.Fatal("expected geometry")
	}
	_, max := m.Bounds()
	if math.Abs(max.Z-10) > 1e-12 {
		t.Errorf("max z = %g, want 10", max.Z)
	}
	min, _ := m.Bounds()
	if min.Z != 0 {
		t.Errorf("min z = %g, want 0", min.Z)
	}
}

func TestBuildIsOpenSurface(t *testing.T) {
	m := topo.Build(ramp(4, 4), topo.Options{ZScale: 5})
	if m.IsWatertight() {
		t.Error("topographic surface should be open")
	}
	// 4x4 grid tessellates into 3*3 quads of two triangles.
	if got := m.TriangleCount(); got != 18 {
		t.Errorf("triangles = %d, want 18", got)
	}
}

func TestBuildSmoothingFlattensPeaks(t *testing.T) {
	f := field.New(7, 7)
	f.Set(3, 3, 1)

	sharp := topo.Build(f, topo.Options{ZScale: 10})
	smooth := topo.Build(f, topo.Options{ZScale: 10, SmoothFactor: 2})

	_, maxSharp := sharp.Bounds()
	_, maxSmooth := smooth.Bounds()
	if maxSmooth.Z >= maxSharp.Z {
		t.Errorf("smoothed peak %g should be below sharp peak %g", maxSmooth.Z, maxSharp.Z)
	}
}

func TestBuildResolutionReduction(t *testing.T) {
	f := ramp(8, 8)
	full := topo.Build(f, topo.Options{ZScale: 5})
	reduced := topo.Build(f, topo.Options{ZScale: 5, ResolutionReduction: 2})

	if reduced.TriangleCount() >= full.TriangleCount() {
		t.Errorf("reduced build has %d triangles, full has %d",
			reduced.TriangleCount(), full.TriangleCount())
	}
}
