package engine

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/relievo/pkg/stl"
)

// ---------------------------------------------------------------------------
// Preprocessing tests
// ---------------------------------------------------------------------------

func TestPreprocessKeywords(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "simple keyword",
			input:  `(load-image "cat.png" :threshold 128)`,
			expect: `(load_image "cat.png" "__kw_threshold" 128)`,
		},
		{
			name:   "multiple keywords",
			input:  `(heightfield f :max-height 5 :base 1)`,
			expect: `(heightfield f "__kw_max-height" 5 "__kw_base" 1)`,
		},
		{
			name:   "keyword in string preserved",
			input:  `"thing with :keyword inside"`,
			expect: `"thing with :keyword inside"`,
		},
		{
			name:   "assignment operator preserved",
			input:  `(def x := 10)`,
			expect: `(def x := 10)`,
		},
		{
			name:   "kebab-case identifier",
			input:  `(text-model :object-only m)`,
			expect: `(text_model "__kw_object-only" m)`,
		},
		{
			name:   "minus operator preserved",
			input:  `(- 10 5)`,
			expect: `(- 10 5)`,
		},
		{
			name:   "comment converted to // style",
			input:  `;; comment with :keyword`,
			expect: `// comment with :keyword`,
		},
		{
			name:   "single semicolon comment",
			input:  `; simple comment`,
			expect: `// simple comment`,
		},
		{
			name:   "hyphen in keyword preserved",
			input:  `:z-scale`,
			expect: `"__kw_z-scale"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preprocessSource(tt.input)
			if got != tt.expect {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

func TestParseArgs(t *testing.T) {
	args := []zygo.Sexp{
		&zygo.SexpStr{S: "positional"},
		&zygo.SexpStr{S: kwPrefix + "levels"},
		&zygo.SexpInt{Val: 8},
	}
	pa := parseArgs(args)
	if len(pa.positional) != 1 {
		t.Fatalf("positional = %d, want 1", len(pa.positional))
	}
	v, ok := pa.kw["levels"]
	if !ok {
		t.Fatal("missing keyword levels")
	}
	n, err := toInt(v)
	if err != nil || n != 8 {
		t.Errorf("levels = %d (%v), want 8", n, err)
	}
}

// ---------------------------------------------------------------------------
// Pipeline evaluation tests
// ---------------------------------------------------------------------------

// writeTestImage creates a grayscale PNG with a bright centered square
// on black.
func writeTestImage(t *testing.T, dir string, size int) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := size / 4; y < 3*size/4; y++ {
		for x := size / 4; x < 3*size/4; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	path := filepath.Join(dir, "input.png")
	fh, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(fh, img); err != nil {
		t.Fatal(err)
	}
	if err := fh.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPipelineHeightfield(t *testing.T) {
	dir := t.TempDir()
	imgPath := writeTestImage(t, dir, 16)

	source := fmt.Sprintf(`
(def f (load-image %q :threshold 128))
(def m (heightfield f :max-height 4 :base 1))
(save-stl m "out.stl")
`, imgPath)

	eng := NewEngine(Options{OutDir: dir})
	res, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}
	if len(res.Outputs) != 1 {
		t.Fatalf("outputs = %d, want 1", len(res.Outputs))
	}

	m, err := stl.Load(res.Outputs[0])
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if m.IsEmpty() {
		t.Error("output mesh is empty")
	}
	if !m.IsWatertight() {
		t.Error("heightfield output should be watertight")
	}
}

func TestPipelineRepairReport(t *testing.T) {
	dir := t.TempDir()
	imgPath := writeTestImage(t, dir, 16)

	source := fmt.Sprintf(`
(def f (load-image %q :threshold 128))
(def m (repair (heightfield f)))
(save-stl m "fixed.stl")
`, imgPath)

	eng := NewEngine(Options{OutDir: dir})
	res, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}
	if len(res.Reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(res.Reports))
	}
	if len(res.Outputs) != 1 {
		t.Fatalf("outputs = %d, want 1", len(res.Outputs))
	}
	if _, err := os.Stat(res.Outputs[0]); err != nil {
		t.Errorf("output file missing: %v", err)
	}
}

func TestPipelineContourAndTopo(t *testing.T) {
	dir := t.TempDir()
	imgPath := writeTestImage(t, dir, 16)

	source := fmt.Sprintf(`
(def f (load-image %q))
(save-stl (contour f :levels 4 :elevation 2) "bands.stl")
(save-stl (topographic f :z-scale 6 :smoothing 1) "terrain.stl")
`, imgPath)

	eng := NewEngine(Options{OutDir: dir})
	res, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}
	if len(res.Outputs) != 2 {
		t.Fatalf("outputs = %d, want 2", len(res.Outputs))
	}
	for _, out := range res.Outputs {
		m, err := stl.Load(out)
		if err != nil {
			t.Fatalf("reading %s: %v", out, err)
		}
		if m.IsEmpty() {
			t.Errorf("%s: empty mesh", out)
		}
	}
}

func TestPipelineMissingImage(t *testing.T) {
	eng := NewEngine(Options{})
	res, evalErrs, err := eng.Evaluate(`(load-image "does-not-exist.png")`)
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if res != nil {
		t.Fatal("expected nil result")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected an eval error for a missing image")
	}
}

func TestPipelineWrongArgumentType(t *testing.T) {
	eng := NewEngine(Options{})
	res, evalErrs, err := eng.Evaluate(`(heightfield "not a field")`)
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if res != nil {
		t.Fatal("expected nil result")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected an eval error for a bad argument type")
	}
}

func TestPipelineFieldChaining(t *testing.T) {
	dir := t.TempDir()
	imgPath := writeTestImage(t, dir, 16)

	source := fmt.Sprintf(`
(def f (normalize (smooth (load-image %q) :radius 1)))
(save-stl (heightfield (border f :width 2) :max-height 3) "relief.stl")
`, imgPath)

	eng := NewEngine(Options{OutDir: dir})
	res, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}
	if len(res.Outputs) != 1 {
		t.Fatalf("outputs = %d, want 1", len(res.Outputs))
	}
}
