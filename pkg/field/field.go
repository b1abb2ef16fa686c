// Package field provides the 2D scalar intensity field sampled from
// raster images, plus the transforms the mesh builders depend on.
// Values are kept in [0,1]; 0 is the reserved background value.
package field

import "errors"

// ErrEmptyImage reports a source image with zero width or height.
var ErrEmptyImage = errors.New("field: image has zero width or height")

// DecodeError wraps a failure to parse an input image.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "field: decode image: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// Field is a row-major grid of intensity values in [0,1]. It is
// created by sampling an image and treated as immutable by consumers;
// the transform methods return new fields.
type Field struct {
	w, h int
	data []float64
}

// New returns a zero-valued field of the given dimensions.
func New(w, h int) *Field {
	return &Field{w: w, h: h, data: make([]float64, w*h)}
}

// Width returns the number of columns.
func (f *Field) Width() int { return f.w }

// Height returns the number of rows.
func (f *Field) Height() int { return f.h }

// At returns the intensity at column x, row y.
func (f *Field) At(x, y int) float64 {
	return f.data[y*f.w+x]
}

// Set stores an intensity at column x, row y. Builders never call
// this; it exists for field construction and tests.
func (f *Field) Set(x, y int, v float64) {
	f.data[y*f.w+x] = v
}

// Normalize rescales the field so its minimum maps to 0 and its
// maximum to 1. A constant field normalizes to all zeros.
func (f *Field) Normalize() *Field {
	min, max := f.data[0], f.data[0]
	for _, v := range f.data {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	out := New(f.w, f.h)
	if max == min {
		return out
	}
	scale := 1 / (max - min)
	for i, v := range f.data {
		out.data[i] = (v - min) * scale
	}
	return out
}

// Invert maps every value v to 1-v.
func (f *Field) Invert() *Field {
	out := New(f.w, f.h)
	for i, v := range f.data {
		out.data[i] = 1 - v
	}
	return out
}

// Smooth applies a separable box blur of the given radius. Radius 0
// returns the field unchanged.
func (f *Field) Smooth(radius int) *Field {
	if radius <= 0 {
		return f
	}
	// Horizontal pass into tmp, vertical pass into out. Rows are
	// independent, as are columns within a pass.
	tmp := New(f.w, f.h)
	for y := 0; y < f.h; y++ {
		for x := 0; x < f.w; x++ {
			var sum float64
			var n int
			for d := -radius; d <= radius; d++ {
				if x+d < 0 || x+d >= f.w {
					continue
				}
				sum += f.At(x+d, y)
				n++
			}
			tmp.Set(x, y, sum/float64(n))
		}
	}
	out := New(f.w, f.h)
	for y := 0; y < f.h; y++ {
		for x := 0; x < f.w; x++ {
			var sum float64
			var n int
			for d := -radius; d <= radius; d++ {
				if y+d < 0 || y+d >= f.h {
					continue
				}
				sum += tmp.At(x, y+d)
				n++
			}
			out.Set(x, y, sum/float64(n))
		}
	}
	return out
}

// SmoothPasses applies n successive radius-1 box blurs. Used by the
// topographic builder, whose inputs are assumed noisy.
func (f *Field) SmoothPasses(n int) *Field {
	out := f
	for i := 0; i < n; i++ {
		out = out.Smooth(1)
	}
	return out
}

// Downsample reduces resolution by the given integer stride,
// box-averaging each stride x stride block into one kept cell.
// Stride values below 2 return the field unchanged.
func (f *Field) Downsample(stride int) *Field {
	if stride <= 1 {
		return f
	}
	w := f.w / stride
	h := f.h / stride
	if w == 0 {
		w = 1
	}
	if h == 0 {
		h = 1
	}
	out := New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float64
			var n int
			for dy := 0; dy < stride; dy++ {
				for dx := 0; dx < stride; dx++ {
					sx := x*stride + dx
					sy := y*stride + dy
					if sx >= f.w || sy >= f.h {
						continue
					}
					sum += f.At(sx, sy)
					n++
				}
			}
			out.Set(x, y, sum/float64(n))
		}
	}
	return out
}

// Border returns the field padded on all sides with n cells of the
// given value.
func (f *Field) Border(n int, value float64) *Field {
	if n <= 0 {
		return f
	}
	out := New(f.w+2*n, f.h+2*n)
	for i := range out.data {
		out.data[i] = value
	}
	for y := 0; y < f.h; y++ {
		for x := 0; x < f.w; x++ {
			out.Set(x+n, y+n, f.At(x, y))
		}
	}
	return out
}
