package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/relievo/pkg/contour"
	"github.com/chazu/relievo/pkg/field"
	"github.com/chazu/relievo/pkg/heightfield"
	"github.com/chazu/relievo/pkg/mesh"
	"github.com/chazu/relievo/pkg/repair"
	"github.com/chazu/relievo/pkg/stl"
	"github.com/chazu/relievo/pkg/text"
	"github.com/chazu/relievo/pkg/topo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms pipeline Lisp source code before passing
// it to zygomys. It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: max-height -> max_height
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpField wraps a field.Field so it can flow between builtins.
type sexpField struct {
	f *field.Field
}

func (s *sexpField) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(field %dx%d)", s.f.Width(), s.f.Height())
}
func (s *sexpField) Type() *zygo.RegisteredType { return nil }

// sexpMesh wraps a mesh.Mesh so it can flow between builtins.
type sexpMesh struct {
	m *mesh.Mesh
}

func (s *sexpMesh) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(mesh %d verts %d tris)", s.m.VertexCount(), s.m.TriangleCount())
}
func (s *sexpMesh) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value: treat as flag with nil.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toInt extracts an int from a Sexp.
func toInt(s zygo.Sexp) (int, error) {
	if v, ok := s.(*zygo.SexpInt); ok {
		return int(v.Val), nil
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toBool extracts a bool from a Sexp. SexpNull (a bare keyword flag)
// counts as true so (heightfield f :object-only) reads naturally.
func toBool(s zygo.Sexp) (bool, error) {
	switch v := s.(type) {
	case *zygo.SexpBool:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return true, nil
		}
	}
	return false, fmt.Errorf("expected bool, got %T (%s)", s, s.SexpString(nil))
}

// toField extracts a Field from a sexpField.
func toField(s zygo.Sexp) (*field.Field, error) {
	if f, ok := s.(*sexpField); ok {
		return f.f, nil
	}
	return nil, fmt.Errorf("expected field, got %T (%s)", s, s.SexpString(nil))
}

// toMesh extracts a Mesh from a sexpMesh.
func toMesh(s zygo.Sexp) (*mesh.Mesh, error) {
	if m, ok := s.(*sexpMesh); ok {
		return m.m, nil
	}
	return nil, fmt.Errorf("expected mesh, got %T (%s)", s, s.SexpString(nil))
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the pipeline DSL builtins into a zygomys
// environment. Output-producing builtins append to res during
// evaluation.
//
// Source code must be preprocessed with preprocessSource() before
// evaluation so that :keyword tokens are converted to recognizable
// string literals.
func registerBuiltins(env *zygo.Zlisp, res *Result, opts Options) {

	// -----------------------------------------------------------------------
	// (load-image "cat.png" :threshold 128 :invert true :smooth 2 :max-size 512)
	// -----------------------------------------------------------------------
	env.AddFunction("load_image", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("load-image requires a path argument")
		}
		path, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("load-image: path: %w", err)
		}

		fo := field.DefaultOptions()
		if v, ok := pa.kw["threshold"]; ok {
			if fo.Threshold, err = toInt(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("load-image: threshold: %w", err)
			}
		}
		if v, ok := pa.kw["invert"]; ok {
			if fo.Invert, err = toBool(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("load-image: invert: %w", err)
			}
		}
		if v, ok := pa.kw["smooth"]; ok {
			if fo.SmoothRadius, err = toInt(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("load-image: smooth: %w", err)
			}
		}
		if v, ok := pa.kw["max-size"]; ok {
			if fo.MaxSize, err = toInt(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("load-image: max-size: %w", err)
			}
		}

		fh, err := os.Open(path)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("load-image: %w", err)
		}
		defer fh.Close()
		img, err := field.Decode(fh)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("load-image: %w", err)
		}
		f, err := field.FromImage(img, fo)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("load-image: %w", err)
		}
		return &sexpField{f: f}, nil
	})

	// -----------------------------------------------------------------------
	// (normalize f), (invert f), (smooth f :radius 2), (border f :width 4)
	// -----------------------------------------------------------------------
	env.AddFunction("normalize", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		f, err := fieldArg("normalize", args)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpField{f: f.Normalize()}, nil
	})

	env.AddFunction("invert", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		f, err := fieldArg("invert", args)
		if err != nil {
			return zygo.SexpNull, err
		}
		return &sexpField{f: f.Invert()}, nil
	})

	env.AddFunction("smooth", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		f, err := fieldArg("smooth", pa.positional)
		if err != nil {
			return zygo.SexpNull, err
		}
		radius := 1
		if v, ok := pa.kw["radius"]; ok {
			if radius, err = toInt(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("smooth: radius: %w", err)
			}
		}
		return &sexpField{f: f.Smooth(radius)}, nil
	})

	env.AddFunction("border", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		f, err := fieldArg("border", pa.positional)
		if err != nil {
			return zygo.SexpNull, err
		}
		width := 1
		if v, ok := pa.kw["width"]; ok {
			if width, err = toInt(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("border: width: %w", err)
			}
		}
		return &sexpField{f: f.Border(width, 0)}, nil
	})

	// -----------------------------------------------------------------------
	// (heightfield f :max-height 5 :base 1 :object-only true :border 2)
	// -----------------------------------------------------------------------
	env.AddFunction("heightfield", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		f, err := fieldArg("heightfield", pa.positional)
		if err != nil {
			return zygo.SexpNull, err
		}
		ho := heightfield.DefaultOptions()
		if v, ok := pa.kw["max-height"]; ok {
			if ho.MaxHeight, err = toFloat64(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("heightfield: max-height: %w", err)
			}
		}
		if v, ok := pa.kw["base"]; ok {
			if ho.BaseHeight, err = toFloat64(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("heightfield: base: %w", err)
			}
		}
		if v, ok := pa.kw["object-only"]; ok {
			if ho.ObjectOnly, err = toBool(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("heightfield: object-only: %w", err)
			}
		}
		if v, ok := pa.kw["border"]; ok {
			if ho.Border, err = toInt(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("heightfield: border: %w", err)
			}
		}
		return &sexpMesh{m: heightfield.Build(f, ho)}, nil
	})

	// -----------------------------------------------------------------------
	// (contour f :levels 10 :elevation 1 :photo true)
	// -----------------------------------------------------------------------
	env.AddFunction("contour", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		f, err := fieldArg("contour", pa.positional)
		if err != nil {
			return zygo.SexpNull, err
		}
		co := contour.DefaultOptions()
		if v, ok := pa.kw["levels"]; ok {
			if co.Levels, err = toInt(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("contour: levels: %w", err)
			}
		}
		if v, ok := pa.kw["elevation"]; ok {
			if co.Elevation, err = toFloat64(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("contour: elevation: %w", err)
			}
		}
		if v, ok := pa.kw["photo"]; ok {
			if co.PhotoMode, err = toBool(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("contour: photo: %w", err)
			}
		}
		return &sexpMesh{m: contour.Build(f, co)}, nil
	})

	// -----------------------------------------------------------------------
	// (topographic f :z-scale 10 :smoothing 2 :reduction 2)
	// -----------------------------------------------------------------------
	env.AddFunction("topographic", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		f, err := fieldArg("topographic", pa.positional)
		if err != nil {
			return zygo.SexpNull, err
		}
		to := topo.DefaultOptions()
		if v, ok := pa.kw["z-scale"]; ok {
			if to.ZScale, err = toFloat64(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("topographic: z-scale: %w", err)
			}
		}
		if v, ok := pa.kw["smoothing"]; ok {
			if to.SmoothFactor, err = toInt(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("topographic: smoothing: %w", err)
			}
		}
		if v, ok := pa.kw["reduction"]; ok {
			if to.ResolutionReduction, err = toInt(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("topographic: reduction: %w", err)
			}
		}
		return &sexpMesh{m: topo.Build(f, to)}, nil
	})

	// -----------------------------------------------------------------------
	// (text-model "Hi" :font "some.ttf" :size 20 :thickness 5 :mirror true)
	// -----------------------------------------------------------------------
	env.AddFunction("text_model", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("text-model requires a string argument")
		}
		s, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("text-model: %w", err)
		}
		to := text.DefaultOptions()
		if v, ok := pa.kw["font"]; ok {
			if to.FontPath, err = toString(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("text-model: font: %w", err)
			}
		}
		if v, ok := pa.kw["size"]; ok {
			if to.Size, err = toFloat64(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("text-model: size: %w", err)
			}
		}
		if v, ok := pa.kw["thickness"]; ok {
			if to.Thickness, err = toFloat64(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("text-model: thickness: %w", err)
			}
		}
		if v, ok := pa.kw["base"]; ok {
			if to.BasePlate, err = toFloat64(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("text-model: base: %w", err)
			}
		}
		if v, ok := pa.kw["mirror"]; ok {
			if to.Mirror, err = toBool(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("text-model: mirror: %w", err)
			}
		}
		m, err := text.Build(s, to)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("text-model: %w", err)
		}
		return &sexpMesh{m: m}, nil
	})

	// -----------------------------------------------------------------------
	// (load-mesh "broken.stl")
	// -----------------------------------------------------------------------
	env.AddFunction("load_mesh", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("load-mesh requires a path argument")
		}
		path, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("load-mesh: path: %w", err)
		}
		m, err := stl.Load(path)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("load-mesh: %w", err)
		}
		return &sexpMesh{m: m}, nil
	})

	// -----------------------------------------------------------------------
	// (repair m :tolerance 0.001)
	// -----------------------------------------------------------------------
	env.AddFunction("repair", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("repair requires a mesh argument")
		}
		m, err := toMesh(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("repair: %w", err)
		}
		ro := repair.DefaultOptions()
		if v, ok := pa.kw["tolerance"]; ok {
			if ro.WeldTolerance, err = toFloat64(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("repair: tolerance: %w", err)
			}
		}
		fixed, report, err := repair.New(ro).Repair(m)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("repair: %w", err)
		}
		res.Reports = append(res.Reports, report)
		return &sexpMesh{m: fixed}, nil
	})

	// -----------------------------------------------------------------------
	// (save-stl m "out.stl" :ascii true)
	// -----------------------------------------------------------------------
	env.AddFunction("save_stl", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 2 {
			return zygo.SexpNull, fmt.Errorf("save-stl requires a mesh and a path")
		}
		m, err := toMesh(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("save-stl: %w", err)
		}
		path, err := toString(pa.positional[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("save-stl: path: %w", err)
		}
		if !filepath.IsAbs(path) && opts.OutDir != "" {
			path = filepath.Join(opts.OutDir, path)
		}

		ascii := false
		if v, ok := pa.kw["ascii"]; ok {
			if ascii, err = toBool(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("save-stl: ascii: %w", err)
			}
		}

		if ascii {
			fh, err := os.Create(path)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("save-stl: %w", err)
			}
			solidName := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			if err := stl.WriteASCII(fh, m, solidName); err != nil {
				fh.Close()
				return zygo.SexpNull, fmt.Errorf("save-stl: %w", err)
			}
			if err := fh.Close(); err != nil {
				return zygo.SexpNull, fmt.Errorf("save-stl: %w", err)
			}
		} else if err := stl.Save(path, m); err != nil {
			return zygo.SexpNull, fmt.Errorf("save-stl: %w", err)
		}

		res.Outputs = append(res.Outputs, path)
		return zygo.SexpNull, nil
	})
}

// fieldArg extracts the leading field argument common to the image
// pipeline builtins.
func fieldArg(fn string, args []zygo.Sexp) (*field.Field, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("%s requires a field argument", fn)
	}
	f, err := toField(args[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	return f, nil
}
