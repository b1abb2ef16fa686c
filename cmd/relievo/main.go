// Command relievo converts raster images into printable STL models and
// repairs broken meshes.
//
// Usage:
//
//	relievo heightfield [flags] image.png
//	relievo contour [flags] image.png
//	relievo topo [flags] image.png
//	relievo text [flags] "some string"
//	relievo repair [flags] model.stl
//	relievo run [flags] pipeline.lisp
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chazu/relievo/pkg/contour"
	"github.com/chazu/relievo/pkg/engine"
	"github.com/chazu/relievo/pkg/field"
	"github.com/chazu/relievo/pkg/heightfield"
	"github.com/chazu/relievo/pkg/mesh"
	"github.com/chazu/relievo/pkg/repair"
	"github.com/chazu/relievo/pkg/stl"
	"github.com/chazu/relievo/pkg/text"
	"github.com/chazu/relievo/pkg/topo"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "heightfield":
		err = runHeightfield(os.Args[2:])
	case "contour":
		err = runContour(os.Args[2:])
	case "topo":
		err = runTopo(os.Args[2:])
	case "text":
		err = runText(os.Args[2:])
	case "repair":
		err = runRepair(os.Args[2:])
	case "run":
		err = runScript(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "relievo: unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error("failed", "err", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `relievo converts images to printable STL models.

Commands:
  heightfield   relief surface from image intensity
  contour       stacked contour slabs from intensity bands
  topo          smoothed topographic surface
  text          extruded text solid
  repair        fix mesh topology in an STL file
  run           evaluate a Lisp pipeline script

Run 'relievo <command> -h' for command flags.`)
}

// imageFlags are shared by every image-driven builder.
type imageFlags struct {
	threshold int
	invert    bool
	smooth    int
	maxSize   int
}

func addImageFlags(fs *flag.FlagSet) *imageFlags {
	f := &imageFlags{}
	fs.IntVar(&f.threshold, "threshold", -1, "clamp pixels at or below this value (0-255) to background")
	fs.BoolVar(&f.invert, "invert", false, "invert intensity before building")
	fs.IntVar(&f.smooth, "smooth", 0, "box blur radius applied to the sampled field")
	fs.IntVar(&f.maxSize, "max-size", 0, "resample so the longer image side fits this many pixels")
	return f
}

// outputFlags control where results land.
type outputFlags struct {
	out       string
	timestamp bool
	ascii     bool
}

func addOutputFlags(fs *flag.FlagSet) *outputFlags {
	f := &outputFlags{}
	fs.StringVar(&f.out, "o", "", "output path (default: input name with .stl)")
	fs.BoolVar(&f.timestamp, "timestamp", false, "append a timestamp to the output name")
	fs.BoolVar(&f.ascii, "ascii", false, "write ASCII STL instead of binary")
	return f
}

func addVerbose(fs *flag.FlagSet) *bool {
	return fs.Bool("v", false, "verbose logging")
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// outputPath derives the destination file name from the input and
// output flags.
func outputPath(input, suffix string, of *outputFlags) string {
	path := of.out
	if path == "" {
		base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		path = base + suffix + ".stl"
	}
	if of.timestamp {
		stamp := time.Now().Format("2006-01-02-15-04-05")
		ext := filepath.Ext(path)
		path = strings.TrimSuffix(path, ext) + "_" + stamp + ext
	}
	return path
}

func loadField(path string, imf *imageFlags) (*field.Field, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	img, err := field.Decode(fh)
	if err != nil {
		return nil, err
	}
	return field.FromImage(img, field.Options{
		Threshold:    imf.threshold,
		Invert:       imf.invert,
		SmoothRadius: imf.smooth,
		MaxSize:      imf.maxSize,
	})
}

func saveMesh(m *mesh.Mesh, path string, ascii bool) error {
	if ascii {
		fh, err := os.Create(path)
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if err := stl.WriteASCII(fh, m, name); err != nil {
			fh.Close()
			return err
		}
		return fh.Close()
	}
	return stl.Save(path, m)
}

func runHeightfield(args []string) error {
	fs := flag.NewFlagSet("heightfield", flag.ExitOnError)
	imf := addImageFlags(fs)
	of := addOutputFlags(fs)
	verbose := addVerbose(fs)
	maxHeight := fs.Float64("max-height", 5, "relief height of a full-intensity pixel")
	base := fs.Float64("base", 1, "base plate thickness")
	objectOnly := fs.Bool("object-only", false, "emit only the relief surface, no base or walls")
	border := fs.Int("border", 0, "pad the field with background pixels")
	fs.Parse(args)
	setupLogging(*verbose)

	if fs.NArg() != 1 {
		return errors.New("heightfield: expected exactly one image argument")
	}
	input := fs.Arg(0)

	f, err := loadField(input, imf)
	if err != nil {
		return err
	}
	slog.Debug("sampled image", "width", f.Width(), "height", f.Height())

	m := heightfield.Build(f, heightfield.Options{
		MaxHeight:  *maxHeight,
		BaseHeight: *base,
		ObjectOnly: *objectOnly,
		Border:     *border,
	})
	if m.IsEmpty() {
		return errors.New("heightfield: image produced no geometry")
	}

	out := outputPath(input, "", of)
	if err := saveMesh(m, out, of.ascii); err != nil {
		return err
	}
	slog.Info("wrote model", "path", out, "triangles", m.TriangleCount())
	return nil
}

func runContour(args []string) error {
	fs := flag.NewFlagSet("contour", flag.ExitOnError)
	imf := addImageFlags(fs)
	of := addOutputFlags(fs)
	verbose := addVerbose(fs)
	levels := fs.Int("levels", 10, "number of intensity bands")
	elevation := fs.Float64("elevation", 1, "height of each band")
	photo := fs.Bool("photo", false, "redistribute bands toward mid-tones")
	fs.Parse(args)
	setupLogging(*verbose)

	if fs.NArg() != 1 {
		return errors.New("contour: expected exactly one image argument")
	}
	input := fs.Arg(0)

	f, err := loadField(input, imf)
	if err != nil {
		return err
	}
	slog.Debug("sampled image", "width", f.Width(), "height", f.Height())

	m := contour.Build(f, contour.Options{
		Levels:    *levels,
		Elevation: *elevation,
		PhotoMode: *photo,
	})
	if m.IsEmpty() {
		return errors.New("contour: no contours found, try adjusting -levels or -threshold")
	}

	out := outputPath(input, "", of)
	if err := saveMesh(m, out, of.ascii); err != nil {
		return err
	}
	slog.Info("wrote model", "path", out, "triangles", m.TriangleCount())
	return nil
}

func runTopo(args []string) error {
	fs := flag.NewFlagSet("topo", flag.ExitOnError)
	imf := addImageFlags(fs)
	of := addOutputFlags(fs)
	verbose := addVerbose(fs)
	zScale := fs.Float64("z-scale", 10, "elevation multiplier")
	smoothing := fs.Int("smoothing", 2, "smoothing passes")
	reduction := fs.Int("reduction", 0, "resolution reduction stride")
	fs.Parse(args)
	setupLogging(*verbose)

	if fs.NArg() != 1 {
		return errors.New("topo: expected exactly one image argument")
	}
	input := fs.Arg(0)

	f, err := loadField(input, imf)
	if err != nil {
		return err
	}

	m := topo.Build(f, topo.Options{
		ZScale:              *zScale,
		SmoothFactor:        *smoothing,
		ResolutionReduction: *reduction,
	})
	if m.IsEmpty() {
		return errors.New("topo: image produced no geometry")
	}

	out := outputPath(input, "", of)
	if err := saveMesh(m, out, of.ascii); err != nil {
		return err
	}
	slog.Info("wrote model", "path", out, "triangles", m.TriangleCount())
	return nil
}

func runText(args []string) error {
	fs := flag.NewFlagSet("text", flag.ExitOnError)
	of := addOutputFlags(fs)
	verbose := addVerbose(fs)
	font := fs.String("font", "", "path to a TrueType font file")
	size := fs.Float64("size", 20, "glyph height in model units")
	thickness := fs.Float64("thickness", 5, "extrusion depth")
	basePlate := fs.Float64("base", 0, "backing plate thickness, 0 for none")
	mirror := fs.Bool("mirror", false, "mirror for stamps and molds")
	fs.Parse(args)
	setupLogging(*verbose)

	if fs.NArg() != 1 {
		return errors.New("text: expected exactly one string argument")
	}
	if *font == "" {
		return errors.New("text: -font is required")
	}
	input := fs.Arg(0)

	m, err := text.Build(input, text.Options{
		FontPath:  *font,
		Size:      *size,
		Thickness: *thickness,
		BasePlate: *basePlate,
		Mirror:    *mirror,
	})
	if err != nil {
		return err
	}

	if of.out == "" {
		of.out = "text.stl"
	}
	out := outputPath(of.out, "", of)
	if err := saveMesh(m, out, of.ascii); err != nil {
		return err
	}
	slog.Info("wrote model", "path", out, "triangles", m.TriangleCount())
	return nil
}

func runRepair(args []string) error {
	fs := flag.NewFlagSet("repair", flag.ExitOnError)
	of := addOutputFlags(fs)
	verbose := addVerbose(fs)
	tolerance := fs.Float64("tolerance", 1e-6, "vertex weld distance")
	validate := fs.Bool("validate", false, "report problems without writing a repaired file")
	fs.Parse(args)
	setupLogging(*verbose)

	if fs.NArg() != 1 {
		return errors.New("repair: expected exactly one STL argument")
	}
	input := fs.Arg(0)

	m, err := stl.Load(input)
	if err != nil {
		return err
	}
	slog.Debug("loaded mesh", "vertices", m.VertexCount(), "triangles", m.TriangleCount())

	if *validate {
		boundary := len(m.BoundaryEdges())
		fmt.Printf("%s: %d vertices, %d triangles\n", input, m.VertexCount(), m.TriangleCount())
		fmt.Printf("  manifold:    %v\n", m.IsManifold())
		fmt.Printf("  watertight:  %v\n", m.IsWatertight())
		fmt.Printf("  boundary edges: %d\n", boundary)
		return nil
	}

	fixed, report, err := repair.New(repair.Options{WeldTolerance: *tolerance}).Repair(m)
	if err != nil {
		return err
	}
	printReport(report)

	out := outputPath(input, "_fixed", of)
	if err := saveMesh(fixed, out, of.ascii); err != nil {
		return err
	}
	slog.Info("wrote repaired model", "path", out, "triangles", fixed.TriangleCount())
	return nil
}

func printReport(r repair.Report) {
	if !r.Changed() && r.Unfillable == 0 {
		fmt.Println("mesh was already clean")
		return
	}
	fmt.Printf("  duplicate faces removed:   %d\n", r.DuplicateFaces)
	fmt.Printf("  degenerate faces removed:  %d\n", r.DegenerateFaces)
	fmt.Printf("  vertices welded:           %d\n", r.VerticesWelded)
	fmt.Printf("  non-manifold edges fixed:  %d\n", r.NonManifoldEdges)
	fmt.Printf("  faces reoriented:          %d\n", r.FacesFlipped)
	fmt.Printf("  holes filled:              %d\n", r.HolesFilled)
	if r.Unfillable > 0 {
		fmt.Printf("  unfillable holes:          %d\n", r.Unfillable)
	}
}

func runScript(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	verbose := addVerbose(fs)
	outDir := fs.String("out-dir", "", "directory for relative output paths")
	fs.Parse(args)
	setupLogging(*verbose)

	if fs.NArg() != 1 {
		return errors.New("run: expected exactly one script argument")
	}
	source, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}

	eng := engine.NewEngine(engine.Options{OutDir: *outDir})
	res, evalErrs, err := eng.Evaluate(string(source))
	if err != nil {
		return err
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			fmt.Fprintf(os.Stderr, "%s: %s\n", fs.Arg(0), e.Error())
		}
		return errors.New("run: script failed")
	}

	for _, rep := range res.Reports {
		printReport(rep)
	}
	for _, out := range res.Outputs {
		slog.Info("wrote model", "path", out)
	}
	if len(res.Outputs) == 0 {
		slog.Warn("script produced no output files")
	}
	return nil
}
