package field

import (
	"image"
	"io"

	// Register decoders for the common raster formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
)

// Options controls intensity sampling.
type Options struct {
	// Threshold is in the 0-255 source domain; pixels at or below it
	// are clamped to the background value 0. Negative disables
	// thresholding.
	Threshold int

	// Invert maps intensity v to 1-v before thresholding or smoothing.
	Invert bool

	// SmoothRadius is the box blur radius applied after thresholding;
	// 0 is a no-op.
	SmoothRadius int

	// MaxSize limits the longer image side, resampling proportionally
	// when exceeded. 0 disables fitting.
	MaxSize int
}

// DefaultOptions returns sampling options with thresholding disabled.
func DefaultOptions() Options {
	return Options{Threshold: -1}
}

// Decode parses a raster image from r. Failures are reported as
// *DecodeError.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return img, nil
}

// FromImage samples img into a scalar field using the standard
// perceptual luminance weights. The field is the sole owner of its
// data; img is not retained.
func FromImage(img image.Image, opts Options) (*Field, error) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, ErrEmptyImage
	}
	if opts.MaxSize > 0 {
		img = fit(img, opts.MaxSize)
		b = img.Bounds()
	}

	f := New(b.Dx(), b.Dy())
	for y := 0; y < f.h; y++ {
		for x := 0; x < f.w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			// 16-bit channels; weights per ITU-R BT.601.
			lum := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bl)) / 65535
			f.Set(x, y, lum)
		}
	}

	if opts.Invert {
		f = f.Invert()
	}
	if opts.Threshold >= 0 {
		cut := float64(opts.Threshold) / 255
		for i, v := range f.data {
			if v <= cut {
				f.data[i] = 0
			}
		}
	}
	if opts.SmoothRadius > 0 {
		f = f.Smooth(opts.SmoothRadius)
	}
	return f, nil
}

// fit resamples img so its longer side is at most maxSize, preserving
// aspect ratio.
func fit(img image.Image, maxSize int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxSize && h <= maxSize {
		return img
	}
	if w >= h {
		h = h * maxSize / w
		w = maxSize
	} else {
		w = w * maxSize / h
		h = maxSize
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}
