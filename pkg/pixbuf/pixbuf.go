// Package pixbuf defines the pixel buffer type shared by the blur engine,
// the result cache and the terminal front-end.
//
// Buffers are 8-bit per sample with 3 (RGB) or 4 (RGBA) channels and are
// treated as immutable once produced: the engine always writes into a fresh
// buffer and hands it off, so cached buffers can be read concurrently
// without copying or locking.
package pixbuf

import (
	"errors"
	"fmt"
	"image"
)

// MaxDim is the largest width or height a buffer may have.
const MaxDim = 8192

// ErrInvalidBuffer reports a nil, empty, oversized or unsupported buffer.
var ErrInvalidBuffer = errors.New("invalid pixel buffer")

// Buffer holds an 8-bit interleaved pixel image.
type Buffer struct {
	Width    int
	Height   int
	Channels int // 3 (RGB) or 4 (RGBA)
	Stride   int // bytes per row, >= Width*Channels
	Pix      []uint8
}

// New allocates a zeroed buffer after validating the requested geometry.
func New(width, height, channels int) (*Buffer, error) {
	b := &Buffer{
		Width:    width,
		Height:   height,
		Channels: channels,
		Stride:   width * channels,
	}
	if err := b.validateGeometry(); err != nil {
		return nil, err
	}
	b.Pix = make([]uint8, b.Stride*height)
	return b, nil
}

// Validate checks the buffer against the input contract: dimensions in
// [1,MaxDim], 3 or 4 channels, a stride wide enough to hold a row, and pixel
// storage covering every row.
func (b *Buffer) Validate() error {
	if err := b.validateGeometry(); err != nil {
		return err
	}
	if b.Pix == nil {
		return fmt.Errorf("%w: nil pixel data", ErrInvalidBuffer)
	}
	if len(b.Pix) < b.Stride*(b.Height-1)+b.Width*b.Channels {
		return fmt.Errorf("%w: pixel slice too short (%d bytes)", ErrInvalidBuffer, len(b.Pix))
	}
	return nil
}

func (b *Buffer) validateGeometry() error {
	if b == nil {
		return fmt.Errorf("%w: nil buffer", ErrInvalidBuffer)
	}
	if b.Width < 1 || b.Width > MaxDim || b.Height < 1 || b.Height > MaxDim {
		return fmt.Errorf("%w: dimensions %dx%d outside [1,%d]", ErrInvalidBuffer, b.Width, b.Height, MaxDim)
	}
	if b.Channels != 3 && b.Channels != 4 {
		return fmt.Errorf("%w: %d channels (want 3 or 4)", ErrInvalidBuffer, b.Channels)
	}
	if b.Stride < b.Width*b.Channels {
		return fmt.Errorf("%w: stride %d too small for width %d", ErrInvalidBuffer, b.Stride, b.Width)
	}
	return nil
}

// ByteSize returns the pixel payload size in bytes.
func (b *Buffer) ByteSize() int {
	return b.Stride * b.Height
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	if b == nil {
		return nil
	}
	out := &Buffer{
		Width:    b.Width,
		Height:   b.Height,
		Channels: b.Channels,
		Stride:   b.Stride,
		Pix:      make([]uint8, len(b.Pix)),
	}
	copy(out.Pix, b.Pix)
	return out
}

// Offset returns the index of the first sample of pixel (x, y).
func (b *Buffer) Offset(x, y int) int {
	return y*b.Stride + x*b.Channels
}

// FromNRGBA converts a stdlib NRGBA image into a 4-channel buffer.
// The pixel data is copied so the buffer owns its storage.
func FromNRGBA(img *image.NRGBA) *Buffer {
	if img == nil {
		return nil
	}
	r := img.Bounds()
	out := &Buffer{
		Width:    r.Dx(),
		Height:   r.Dy(),
		Channels: 4,
		Stride:   r.Dx() * 4,
	}
	out.Pix = make([]uint8, out.Stride*out.Height)
	for y := 0; y < out.Height; y++ {
		src := img.Pix[(y*img.Stride)+0 : y*img.Stride+out.Width*4]
		copy(out.Pix[y*out.Stride:], src)
	}
	return out
}

// ToNRGBA converts the buffer back to a stdlib image for encoding and
// preview. A 3-channel buffer gets an opaque alpha channel.
func (b *Buffer) ToNRGBA() *image.NRGBA {
	if b == nil {
		return nil
	}
	img := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			si := b.Offset(x, y)
			di := img.PixOffset(x, y)
			img.Pix[di+0] = b.Pix[si+0]
			img.Pix[di+1] = b.Pix[si+1]
			img.Pix[di+2] = b.Pix[si+2]
			if b.Channels == 4 {
				img.Pix[di+3] = b.Pix[si+3]
			} else {
				img.Pix[di+3] = 0xff
			}
		}
	}
	return img
}
