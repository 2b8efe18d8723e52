// Package convolve applies a 1-D Gaussian kernel as a separable two-pass
// convolution over an 8-bit pixel buffer.
//
// Boundary sampling uses mirror reflection: an out-of-range index is
// reflected back across the nearest image border, which avoids the dark-edge
// artifact that zero padding produces. Accumulation is done in float64 per
// channel, then rounded (+0.5, truncate) and clamped to [0,255]. The alpha
// channel, when present, is blurred exactly like the color channels.
package convolve

import (
	"fmt"

	"github.com/blurkit/blurkit/pkg/kernel"
	"github.com/blurkit/blurkit/pkg/pixbuf"
)

// Scratch holds the intermediate plane for the horizontal pass. Each
// concurrently running job must own its own Scratch; sharing one across
// workers is a data race.
type Scratch struct {
	horiz []float64
}

// NewScratch pre-sizes a scratch plane for images up to maxWidth x maxHeight
// with up to 4 channels.
func NewScratch(maxWidth, maxHeight int) *Scratch {
	return &Scratch{horiz: make([]float64, maxWidth*maxHeight*4)}
}

// plane returns a zero-offset view of n samples, growing if the caller asks
// for more than the scratch was sized for.
func (s *Scratch) plane(n int) []float64 {
	if len(s.horiz) < n {
		s.horiz = make([]float64, n)
	}
	return s.horiz[:n]
}

// mirrorIndex reflects i back into [0,n). Negative indices reflect across
// the left border (-1 -> 0), indices >= n across the right border
// (n -> n-1). The loop handles kernels wider than the image.
func mirrorIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i - 1
		}
		if i >= n {
			i = 2*n - 1 - i
		}
	}
	return i
}

func clampRound(v float64) uint8 {
	v += 0.5
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

// Separable blurs src with k and returns a new buffer of identical geometry.
// src is never written to. scratch may be nil, in which case a per-call
// plane is allocated.
func Separable(src *pixbuf.Buffer, k *kernel.Kernel, scratch *Scratch) (*pixbuf.Buffer, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if k == nil || len(k.Weights) != k.Size {
		return nil, fmt.Errorf("%w: malformed kernel", kernel.ErrInvalidKernel)
	}
	if scratch == nil {
		scratch = NewScratch(src.Width, src.Height)
	}

	w, h, ch := src.Width, src.Height, src.Channels
	radius := k.Radius()
	mid := scratch.plane(w * h * ch)

	// Horizontal pass: src bytes -> float plane.
	for y := 0; y < h; y++ {
		rowOut := mid[y*w*ch:]
		for x := 0; x < w; x++ {
			base := x * ch
			for c := 0; c < ch; c++ {
				acc := 0.0
				for t := -radius; t <= radius; t++ {
					sx := mirrorIndex(x+t, w)
					acc += float64(src.Pix[src.Offset(sx, y)+c]) * k.Weights[t+radius]
				}
				rowOut[base+c] = acc
			}
		}
	}

	dst, err := pixbuf.New(w, h, ch)
	if err != nil {
		return nil, err
	}

	// Vertical pass: float plane -> dst bytes.
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			di := dst.Offset(x, y)
			for c := 0; c < ch; c++ {
				acc := 0.0
				for t := -radius; t <= radius; t++ {
					sy := mirrorIndex(y+t, h)
					acc += mid[(sy*w+x)*ch+c] * k.Weights[t+radius]
				}
				dst.Pix[di+c] = clampRound(acc)
			}
		}
	}
	return dst, nil
}
