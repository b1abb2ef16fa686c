// Package topo builds landscape-style relief meshes from large scalar
// fields. It differs from the plain heightfield builder in control
// idiom: a multiplicative z scale instead of an absolute height, plus
// resolution decimation and repeated smoothing for noisy
// elevation-like inputs.
package topo

import (
	"github.com/chazu/relievo/pkg/field"
	"github.com/chazu/relievo/pkg/heightfield"
	"github.com/chazu/relievo/pkg/mesh"
)

// Options controls topographic mesh generation.
type Options struct {
	// ZScale multiplies intensity directly into elevation.
	ZScale float64

	// SmoothFactor is the number of low-pass smoothing passes applied
	// before building.
	SmoothFactor int

	// ResolutionReduction is an integer stride; stride n keeps one
	// box-averaged cell per n x n block. Values below 2 keep full
	// resolution.
	ResolutionReduction int
}

// DefaultOptions mirror the original tool defaults.
func DefaultOptions() Options {
	return Options{ZScale: 10}
}

// Build downsamples and smooths the field, then tessellates it as an
// open surface with z = intensity * ZScale. The grid triangulation is
// shared with the heightfield builder, so the diagonal-split policy
// and vertex ordering are identical.
func Build(f *field.Field, opts Options) *mesh.Mesh {
	g := f.Downsample(opts.ResolutionReduction)
	g = g.SmoothPasses(opts.SmoothFactor)
	return heightfield.Tessellate(g, func(v float64) float64 {
		return v * opts.ZScale
	})
}
