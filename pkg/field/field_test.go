package field

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"
)

func grayImage(w, h int, fill uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = fill
	}
	return img
}

func TestFromImageLuminance(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	f, err := FromImage(img, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if got := f.At(0, 0); math.Abs(got-1) > 1e-3 {
		t.Errorf("white pixel = %g, want 1", got)
	}
}

func TestFromImageEmpty(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 0, 0))
	if _, err := FromImage(img, DefaultOptions()); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("err = %v, want ErrEmptyImage", err)
	}
}

func TestFromImageThreshold(t *testing.T) {
	img := grayImage(2, 1, 0)
	img.SetGray(0, 0, color.Gray{Y: 100})
	img.SetGray(1, 0, color.Gray{Y: 200})

	f, err := FromImage(img, Options{Threshold: 128})
	if err != nil {
		t.Fatal(err)
	}
	if got := f.At(0, 0); got != 0 {
		t.Errorf("pixel below threshold = %g, want exactly 0", got)
	}
	if got := f.At(1, 0); got <= 0 {
		t.Errorf("pixel above threshold = %g, want positive", got)
	}
}

func TestFromImageInvert(t *testing.T) {
	img := grayImage(1, 1, 0)
	f, err := FromImage(img, Options{Threshold: -1, Invert: true})
	if err != nil {
		t.Fatal(err)
	}
	if got := f.At(0, 0); math.Abs(got-1) > 1e-3 {
		t.Errorf("inverted black = %g, want 1", got)
	}
}

func TestFromImageMaxSize(t *testing.T) {
	img := grayImage(100, 40, 128)
	f, err := FromImage(img, Options{Threshold: -1, MaxSize: 50})
	if err != nil {
		t.Fatal(err)
	}
	if f.Width() != 50 {
		t.Errorf("width = %d, want 50", f.Width())
	}
	if f.Height() != 20 {
		t.Errorf("height = %d, want 20", f.Height())
	}
}

func TestDecodeBadData(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("not an image")))
	if err == nil {
		t.Fatal("expected decode error")
	}
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Errorf("err = %T, want *DecodeError", err)
	}
}

func TestDecodePNGRoundtrip(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, grayImage(3, 2, 77)); err != nil {
		t.Fatal(err)
	}
	img, err := Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 3 || img.Bounds().Dy() != 2 {
		t.Errorf("bounds = %v, want 3x2", img.Bounds())
	}
}

func TestNormalize(t *testing.T) {
	f := New(2, 1)
	f.Set(0, 0, 0.2)
	f.Set(1, 0, 0.6)
	n := f.Normalize()
	if got := n.At(0, 0); got != 0 {
		t.Errorf("min = %g, want 0", got)
	}
	if got := n.At(1, 0); math.Abs(got-1) > 1e-12 {
		t.Errorf("max = %g, want 1", got)
	}
}

func TestNormalizeConstant(t *testing.T) {
	f := New(2, 2)
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			f.Set(x, y, 0.5)
		}
	}
	n := f.Normalize()
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			if n.At(x, y) != 0 {
				t.Fatalf("constant field should normalize to 0, got %g", n.At(x, y))
			}
		}
	}
}

func TestSmoothPreservesMass(t *testing.T) {
	f := New(5, 5)
	f.Set(2, 2, 1)
	s := f.Smooth(1)

	var sum float64
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			sum += s.At(x, y)
		}
	}
	// Interior impulse spreads without clipping at the borders.
	if math.Abs(sum-1) > 1e-12 {
		t.Errorf("total mass = %g, want 1", sum)
	}
	if s.At(2, 2) >= 1 {
		t.Error("smoothing should lower the peak")
	}
}

func TestSmoothZeroRadiusNoop(t *testing.T) {
	f := New(2, 2)
	if f.Smooth(0) != f {
		t.Error("radius 0 should return the receiver")
	}
}

func TestDownsample(t *testing.T) {
	f := New(4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			f.Set(x, y, 1)
		}
	}
	d := f.Downsample(2)
	if d.Width() != 2 || d.Height() != 2 {
		t.Fatalf("size = %dx%d, want 2x2", d.Width(), d.Height())
	}
	if got := d.At(0, 0); got != 1 {
		t.Errorf("averaged block = %g, want 1", got)
	}
}

func TestBorder(t *testing.T) {
	f := New(2, 2)
	f.Set(0, 0, 0.7)
	b := f.Border(2, 0)
	if b.Width() != 6 || b.Height() != 6 {
		t.Fatalf("size = %dx%d, want 6x6", b.Width(), b.Height())
	}
	if got := b.At(2, 2); got != 0.7 {
		t.Errorf("interior value = %g, want 0.7", got)
	}
	if got := b.At(0, 0); got != 0 {
		t.Errorf("border value = %g, want 0", got)
	}
}
