// Package kernel builds normalized 1-D Gaussian kernels from the user-facing
// blur intensity. Kernels are cheap to build and are regenerated per job
// rather than cached.
package kernel

import (
	"errors"
	"fmt"
	"math"
)

const (
	// MinSize and MaxSize bound the kernel width. Sizes are always odd.
	MinSize = 3
	MaxSize = 121

	// MaxIntensity is the top of the user-facing intensity scale.
	MaxIntensity = 10.0
)

// ErrInvalidKernel reports an unusable sigma/size combination.
var ErrInvalidKernel = errors.New("invalid kernel parameters")

// Kernel is an immutable normalized 1-D Gaussian.
type Kernel struct {
	Sigma   float64
	Size    int
	Weights []float64
}

// Sigma maps an intensity in [0,10] to a Gaussian standard deviation in
// [0,20]. Out-of-range intensities are clamped.
func Sigma(intensity float64) float64 {
	if intensity < 0 {
		intensity = 0
	} else if intensity > MaxIntensity {
		intensity = MaxIntensity
	}
	return intensity * 2.0
}

// SizeFor returns the kernel width covering ±3 sigma, forced odd and clamped
// to [MinSize, MaxSize]. A non-positive sigma yields MinSize; callers treat
// intensity <= 0 as the identity transform and never build that kernel.
func SizeFor(sigma float64) int {
	if sigma <= 0 {
		return MinSize
	}
	size := 2*int(math.Ceil(3*sigma)) + 1
	if size%2 == 0 {
		size++
	}
	if size < MinSize {
		size = MinSize
	}
	if size > MaxSize {
		size = MaxSize
	}
	return size
}

// Generate builds a normalized Gaussian kernel of the given width.
func Generate(sigma float64, size int) (*Kernel, error) {
	if sigma <= 0 {
		return nil, fmt.Errorf("%w: sigma %v must be > 0", ErrInvalidKernel, sigma)
	}
	if size < MinSize || size%2 == 0 {
		return nil, fmt.Errorf("%w: size %d must be odd and >= %d", ErrInvalidKernel, size, MinSize)
	}
	center := size / 2
	weights := make([]float64, size)
	sum := 0.0
	for i := range weights {
		d := float64(i - center)
		weights[i] = math.Exp(-(d * d) / (2 * sigma * sigma))
		sum += weights[i]
	}
	for i := range weights {
		weights[i] /= sum
	}
	return &Kernel{Sigma: sigma, Size: size, Weights: weights}, nil
}

// ForIntensity builds the kernel for a blur intensity. Progressive mode
// halves sigma, shrinking the kernel roughly 4x for interactive previews.
func ForIntensity(intensity float64, progressive bool) (*Kernel, error) {
	sigma := Sigma(intensity)
	if progressive {
		sigma /= 2
	}
	return Generate(sigma, SizeFor(sigma))
}

// Radius is the half-width of the kernel.
func (k *Kernel) Radius() int {
	return k.Size / 2
}
